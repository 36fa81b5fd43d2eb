package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	Tokens     `yaml:"tokens"`
	Links      `yaml:"links"`
	Allowlist  `yaml:"allowlist"`
	Redis      `yaml:"redis"`
	Postgres   `yaml:"postgres"`
	RabbitMQ   `yaml:"rabbitmq"`
	SMTP       `yaml:"smtp"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address       string        `yaml:"address" env-default:"localhost:8080"`
	Timeout       time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" env-default:"60s"`
	AllowedOrigin string        `yaml:"allowed_origin" env-default:"http://localhost:3000"`
}

type Tokens struct {
	MagicLinkTTL  time.Duration `yaml:"magic_link_ttl" env-default:"4h"`
	SessionTTL    time.Duration `yaml:"session_ttl" env-default:"24h"`
	SessionSecret string        `yaml:"session_secret" env:"SESSION_SECRET" env-required:"true"`
}

type Links struct {
	// BaseURL is the public origin of the front-end that handles the
	// redemption page; the magic link points there.
	BaseURL string `yaml:"base_url" env-default:"http://localhost:3000"`
}

type Allowlist struct {
	Enabled bool     `yaml:"enabled" env-default:"false"`
	Entries []string `yaml:"entries"`
}

// Redis holds token store settings. An empty address switches the service to
// the in-memory store (dev only).
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

// Postgres holds audit trail settings. An empty host disables the audit trail.
type Postgres struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

// RabbitMQ holds mail queue settings. An empty URL disables queue delivery.
type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env-default:"email_jobs"`
}

// SMTP holds direct mail delivery settings. An empty host means no provider
// is configured and issuance falls back to logging the link.
type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" env-default:"587"`
	Username string `yaml:"username"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from"`
	ReplyTo  string `yaml:"reply_to"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist" + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config" + err.Error())
	}

	return &cfg
}
