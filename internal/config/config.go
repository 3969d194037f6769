package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config carries all runtime settings, populated from the environment.
type Config struct {
	AppName  string `env:"APP_NAME,default=chatserver"`
	Env      string `env:"APP_ENV,default=development"`
	Host     string `env:"HTTP_HOST,default=0.0.0.0"`
	Port     int    `env:"HTTP_PORT,default=8000"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DatabasePath string `env:"DATABASE_PATH,default=chatserver.db"`

	JWTSecret          string `env:"JWT_SECRET"`
	AccessTokenMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES,default=1440"`

	CORSOrigins  string        `env:"CORS_ORIGINS"`
	EventTimeout time.Duration `env:"EVENT_TIMEOUT,default=10s"`

	MessageHistoryLimit int `env:"MESSAGE_HISTORY_LIMIT,default=200"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.EventTimeout <= 0 {
		return nil, fmt.Errorf("EVENT_TIMEOUT must be positive")
	}

	return &cfg, nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

// CORSOriginList splits the configured origins, falling back to the
// local development frontends.
func (c *Config) CORSOriginList() []string {
	if strings.TrimSpace(c.CORSOrigins) == "" {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	parts := strings.Split(c.CORSOrigins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
