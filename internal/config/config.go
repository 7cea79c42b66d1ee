// Package config loads server configuration from environment variables.
package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string `mapstructure:"PORT"`
	DatabasePath         string `mapstructure:"DATABASE_PATH"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	GoogleClientID       string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret   string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL    string `mapstructure:"GOOGLE_CALLBACK_URL"`
	FrontendURL          string `mapstructure:"FRONTEND_URL"`
	DeleteOrphanedEvents bool   `mapstructure:"DELETE_ORPHANED_EVENTS"`
	LogLevel             string `mapstructure:"LOG_LEVEL"`
}

// LoadConfig reads configuration from the environment with sensible defaults.
//
// An empty DATABASE_PATH selects the in-memory store — handy for local
// development and demos, but nothing survives a restart.
func LoadConfig() *Config {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DATABASE_PATH", "waterette.db")
	viper.SetDefault("GOOGLE_CALLBACK_URL", "http://localhost:8080/auth/google/callback")
	viper.SetDefault("FRONTEND_URL", "http://localhost:3000")
	viper.SetDefault("DELETE_ORPHANED_EVENTS", true)
	viper.SetDefault("LOG_LEVEL", "info")

	viper.BindEnv("DATABASE_PATH")
	viper.BindEnv("JWT_SECRET")
	viper.BindEnv("GOOGLE_CLIENT_ID")
	viper.BindEnv("GOOGLE_CLIENT_SECRET")
	viper.BindEnv("GOOGLE_CALLBACK_URL")
	viper.BindEnv("FRONTEND_URL")
	viper.BindEnv("DELETE_ORPHANED_EVENTS")
	viper.BindEnv("LOG_LEVEL")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	return &config
}
