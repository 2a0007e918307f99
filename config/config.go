package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full environment surface of the server. A .env file is
// honored in development; real environments set the variables directly.
type Config struct {
	Port   int    `envconfig:"PORT" default:"5001"`
	AppEnv string `envconfig:"APP_ENV" default:"development"`

	MongoURI      string `envconfig:"MONGODB_URI" required:"true"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"chatty"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`

	// Optional presence mirror; disabled when the address is empty.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"60s"`

	// Optional cross-gateway delivery relay; disabled when the URL is empty.
	NatsURL   string `envconfig:"NATS_URL"`
	GatewayID string `envconfig:"GATEWAY_ID"`

	RateLimitRPM  int `envconfig:"RATE_LIMIT_RPM" default:"10"`
	SendQueueSize int `envconfig:"SEND_QUEUE_SIZE" default:"64"`
	FanoutWorkers int `envconfig:"FANOUT_WORKERS" default:"4"`
	FanoutQueue   int `envconfig:"FANOUT_QUEUE" default:"256"`

	MaxImageBytes int64 `envconfig:"MAX_IMAGE_BYTES" default:"10485760"`

	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"http://localhost:5173"`
	StaticDir  string `envconfig:"STATIC_DIR" default:"frontend/dist"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Production() bool { return c.AppEnv == "production" }
