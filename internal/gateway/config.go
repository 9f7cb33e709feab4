// Package gateway implements the HTTP/SSE front door described in the
// module's domain-stack expansion: a gin service that accepts posted
// audio blocks for a session and streams back BPM updates over
// Server-Sent Events, fanning out through Redis pub/sub so more than
// one gateway replica can serve the same session's subscribers.
package gateway

import (
	"os"
	"strconv"
	"time"
)

// Config is the gateway's runtime configuration, loaded from the
// environment (optionally via a .env file in development).
type Config struct {
	Port string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret        string
	JWTTokenDuration time.Duration

	SessionTTL time.Duration
}

// NewConfig reads gateway configuration from the environment, falling
// back to development-friendly defaults.
func NewConfig() *Config {
	return &Config{
		Port: getEnv("PORT", "8088"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTTokenDuration: getEnvAsDuration("JWT_TOKEN_DURATION", "24h"),

		SessionTTL: getEnvAsDuration("SESSION_TTL", "30m"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key, fallback string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
