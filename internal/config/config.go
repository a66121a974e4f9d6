package config

import (
	"fmt"
	"os"
	"time"
)

// Config is read from the environment; cmd/server loads a .env file first
// when one is present.
type Config struct {
	Addr            string
	DatabaseURL     string
	CanvasDir       string
	JWTSecret       string
	RoomIdleTimeout time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		Addr:            envOr("LISTEN_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		CanvasDir:       envOr("CANVAS_DIR", "canvas-files"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RoomIdleTimeout: 30 * time.Minute,
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if raw := os.Getenv("ROOM_IDLE_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse ROOM_IDLE_TIMEOUT: %w", err)
		}
		cfg.RoomIdleTimeout = d
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
