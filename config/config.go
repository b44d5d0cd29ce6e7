// Package config loads service configuration from the environment.
//
// A .env file is honored when present (godotenv); explicit environment
// variables win. Defaults make `go run ./cmd/server` work with no setup.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port            int
	DBPath          string
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PORT", 8080)
	v.SetDefault("DB_PATH", "wallet.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("READ_TIMEOUT", 15*time.Second)
	v.SetDefault("WRITE_TIMEOUT", 15*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
	v.AutomaticEnv()

	return &Config{
		Port:            v.GetInt("PORT"),
		DBPath:          v.GetString("DB_PATH"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		ReadTimeout:     v.GetDuration("READ_TIMEOUT"),
		WriteTimeout:    v.GetDuration("WRITE_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}, nil
}
