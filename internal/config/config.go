package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds everything read from the environment. Secrets and
// connection strings come from .env in development (loaded by main).
type Config struct {
	Port      int    `env:"PORT" envDefault:"3001"`
	JWTSecret string `env:"JWT_SECRET,required"`

	// PostgreSQL (saved chats, reports)
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"user"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"password"`
	DBName     string `env:"DB_NAME" envDefault:"stringdb"`

	// Redis (violation counters)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Media store
	MediaDir string `env:"MEDIA_DIR" envDefault:"data/media"`

	// Report alerts via Telegram. Disabled when the token is empty.
	AlertBotToken string `env:"ALERT_BOT_TOKEN"`
	AlertChatID   int64  `env:"ALERT_CHAT_ID"`
}

// Load parses the process environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// DSN builds the PostgreSQL connection string for GORM.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}
