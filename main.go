package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatty/config"
	"chatty/logger"
	"chatty/middleware"
	msgmod "chatty/module/message"
	usermod "chatty/module/user"
	chat "chatty/service/chat"
	"chatty/service/natsx"
	"chatty/service/storage"
	redisx "chatty/service/storage/redis"
	"chatty/tools/ids"
	"chatty/tools/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.GatewayID == "" {
		cfg.GatewayID = "gw-" + ids.GenerateString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- storage ----
	mongoClient, err := storage.Open(ctx, storage.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
	})
	if err != nil {
		logger.Errorf("connect mongo: %v", err)
		os.Exit(1)
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = mongoClient.Close(sctx)
	}()

	if err := mongoClient.EnsureIndexes(ctx); err != nil {
		logger.Errorf("ensure indexes: %v", err)
		os.Exit(1)
	}

	userStore := storage.NewUserStore(mongoClient)
	messageStore := storage.NewMessageStore(mongoClient)
	mediaStore, err := storage.NewMediaStore(mongoClient)
	if err != nil {
		logger.Errorf("media store: %v", err)
		os.Exit(1)
	}

	// ---- optional presence mirror ----
	var mirror *storage.PresenceMirror
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Open(redisx.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Errorf("connect redis: %v", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		mirror = storage.NewPresenceMirror(rdb, cfg.GatewayID, cfg.PresenceTTL)
		logger.Info("presence mirror enabled", zap.String("addr", cfg.RedisAddr))
	}

	// ---- optional cross-gateway relay ----
	var relay *chat.NatsRelay
	if cfg.NatsURL != "" {
		nc, err := natsx.Dial(natsx.Config{URL: cfg.NatsURL, Name: cfg.GatewayID})
		if err != nil {
			logger.Errorf("connect nats: %v", err)
			os.Exit(1)
		}
		defer nc.Close()
		relay = chat.NewNatsRelay(nc, cfg.GatewayID)
		logger.Info("delivery relay enabled", zap.String("url", cfg.NatsURL))
	}

	// ---- live-connection gateway ----
	jwtOpts := security.DefaultOptions([]byte(cfg.JWTSecret))
	jwtOpts.TTL = cfg.JWTTTL

	gwOpts := chat.Options{
		JWT:           jwtOpts,
		SendQueueSize: cfg.SendQueueSize,
		FanoutWorkers: cfg.FanoutWorkers,
		FanoutQueue:   cfg.FanoutQueue,
	}
	if cfg.Production() {
		gwOpts.AllowedOrigin = cfg.CORSOrigin
	}
	var gateway *chat.Server
	if relay != nil {
		gateway = chat.NewServer(gwOpts, mirror, relay)
	} else {
		gateway = chat.NewServer(gwOpts, mirror, nil)
	}
	defer gateway.Shutdown()

	if relay != nil {
		if err := relay.Start(gateway.Router()); err != nil {
			logger.Errorf("start relay: %v", err)
			os.Exit(1)
		}
	}

	// ---- services and handlers ----
	userSvc := usermod.NewService(userStore, mediaStore, jwtOpts)
	userHandler := usermod.NewHandler(userSvc, jwtOpts, cfg.Production())

	msgSvc := msgmod.NewService(messageStore, mediaStore, gateway.Router(), cfg.MaxImageBytes)
	msgHandler := msgmod.NewHandler(msgSvc, userStore)

	limiterStore := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiterStore.Stop()

	// ---- routes ----
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS(cfg.CORSOrigin))

	authed := middleware.Auth(jwtOpts)
	userHandler.Register(r.Group("/api/auth"), middleware.RateLimit(limiterStore), authed)
	msgHandler.Register(r.Group("/api/messages", authed))

	r.GET("/api/media/:id", func(c *gin.Context) {
		serveMedia(c, mediaStore)
	})
	r.GET("/ws", gateway.HandleWS)

	if cfg.Production() {
		registerStatic(r, cfg.StaticDir)
	}

	// ---- serve + graceful shutdown ----
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Info("server listening",
			zap.Int("port", cfg.Port), zap.String("gateway_id", cfg.GatewayID))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http server exit: %v", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
}

func serveMedia(c *gin.Context, media *storage.MediaStore) {
	stream, contentType, err := media.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "media not found"})
		return
	}
	defer stream.Close()
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, stream)
}

// registerStatic serves the built frontend with an SPA fallback for
// client-side routes.
func registerStatic(r *gin.Engine, dir string) {
	r.Static("/assets", filepath.Join(dir, "assets"))
	r.StaticFile("/", filepath.Join(dir, "index.html"))
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
}
