package chat

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatty/logger"
	"chatty/service/storage"
	"chatty/tools/ids"
	"chatty/tools/safe"
	"chatty/tools/security"
)

// Options tunes the gateway.
type Options struct {
	JWT           security.Options
	SendQueueSize int
	FanoutWorkers int
	FanoutQueue   int
	// AllowedOrigin restricts ws upgrades; empty allows any origin
	// (development mode).
	AllowedOrigin string
}

// Server is the live-connection gateway: it upgrades authenticated
// clients, tracks them in the registry and owns their lifecycle
// (connecting -> connected -> disconnected, unregistered exactly once).
type Server struct {
	opts     Options
	reg      *Registry
	fanout   *Fanout
	presence *Presence
	router   *Router
	upgrader websocket.Upgrader
}

func NewServer(opts Options, mirror *storage.PresenceMirror, relay Relay) *Server {
	reg := NewRegistry()
	fanout := NewFanout(opts.FanoutWorkers, opts.FanoutQueue)

	s := &Server{
		opts:     opts,
		reg:      reg,
		fanout:   fanout,
		presence: NewPresence(reg, fanout, mirror),
	}
	s.router = NewRouter(reg, relay, s.Disconnect)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if opts.AllowedOrigin == "" {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || origin == opts.AllowedOrigin
		},
	}
	return s
}

func (s *Server) Registry() *Registry { return s.reg }
func (s *Server) Router() *Router    { return s.router }

// HandleWS authenticates and upgrades a connection, registers it and
// blocks on the read loop until the peer goes away. Anonymous upgrades
// never reach the registry.
func (s *Server) HandleWS(c *gin.Context) {
	userID, err := s.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[HandleWS] upgrade error: %v", err)
		return
	}

	cl := NewClient(ids.GenerateString(), userID, ws, s.opts.SendQueueSize)
	if s.reg.Add(cl) {
		s.onRegistered(cl)
	}
	logger.Info("client connected",
		zap.String("user_id", cl.UserID), zap.String("conn_id", cl.ConnID))

	safe.Go(cl.writePump)
	cl.readLoop()

	s.Disconnect(cl)
}

// Disconnect unregisters a client and closes it. Idempotent: the
// registry ignores unknown handles, so a disconnect racing an eviction
// announces presence once.
func (s *Server) Disconnect(cl *Client) {
	if s.reg.Remove(cl) {
		s.onUnregistered(cl)
		logger.Info("client disconnected",
			zap.String("user_id", cl.UserID), zap.String("conn_id", cl.ConnID))
	}
	cl.Close()
}

func (s *Server) onRegistered(cl *Client) {
	// the mirror write doubles as a TTL refresh for extra connections
	s.presence.UserOnline(cl.UserID)
}

func (s *Server) onUnregistered(cl *Client) {
	if s.reg.Online(cl.UserID) {
		// other devices still connected: refresh, don't drop
		s.presence.UserOnline(cl.UserID)
		return
	}
	s.presence.UserOffline(cl.UserID)
}

// Shutdown closes every connection and stops the fanout workers.
func (s *Server) Shutdown() {
	for _, cl := range s.reg.ListAll() {
		s.reg.Remove(cl)
		cl.Close()
	}
	s.fanout.Close()
}

// authenticate pulls the token from the query string (browser
// WebSocket API can't set headers), the jwt cookie, or a bearer header.
func (s *Server) authenticate(c *gin.Context) (string, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		if cookie, err := c.Cookie("jwt"); err == nil {
			token = cookie
		}
	}
	if token == "" {
		if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	return security.Verify(s.opts.JWT, token)
}
