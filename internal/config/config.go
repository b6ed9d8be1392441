package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName              string
	AppEnv               string
	AppPort              string
	LogLevel             string
	DatabaseDriver       string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	RealtimeChannel      string
	RealtimePingInterval time.Duration
	RealtimeSendBuffer   int
	MessageRateLimit     int
	MessageRateWindow    time.Duration
	JWTSecret            string
	SeedEnabled          bool
	SeedToken            string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INTERNHUB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "InternHub API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("realtime.channel", "internhub:realtime")
	v.SetDefault("realtime.ping_interval", "30s")
	v.SetDefault("realtime.send_buffer", 32)
	v.SetDefault("message.rate_limit", 20)
	v.SetDefault("message.rate_window", "1m")
	v.SetDefault("seed.enabled", false)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	pingInterval, err := parseDuration(v.GetString("realtime.ping_interval"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid realtime ping interval: %w", err)
	}

	rateWindow, err := parseDuration(v.GetString("message.rate_window"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid message rate window: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		LogLevel:             strings.ToLower(v.GetString("log.level")),
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		RealtimeChannel:      v.GetString("realtime.channel"),
		RealtimePingInterval: pingInterval,
		RealtimeSendBuffer:   v.GetInt("realtime.send_buffer"),
		MessageRateLimit:     v.GetInt("message.rate_limit"),
		MessageRateWindow:    rateWindow,
		JWTSecret:            v.GetString("jwt.secret"),
		SeedEnabled:          v.GetBool("seed.enabled"),
		SeedToken:            v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SeedEnabled && strings.TrimSpace(cfg.SeedToken) == "" {
		return Config{}, fmt.Errorf("seed token must be provided when seeding is enabled")
	}

	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.RealtimeSendBuffer <= 0 {
		cfg.RealtimeSendBuffer = 32
	}

	if cfg.MessageRateLimit <= 0 {
		cfg.MessageRateLimit = 20
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if parsed <= 0 {
		return fallback, nil
	}
	return parsed, nil
}
