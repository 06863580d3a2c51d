// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the gateway's environment-backed configuration. Defaults suit
// local development; production overrides via env (godotenv loads a .env
// file in cmd/server).
type Config struct {
	Port          string
	StoreBackend  string // "memory" or "redis"
	RedisAddr     string
	RedisDB       int
	PresenceGrace time.Duration
	ReconnectWait time.Duration
}

// Load reads the environment.
func Load() Config {
	return Config{
		Port:          getEnv("JUDGEMENT_SERVICE_PORT", "8080"),
		StoreBackend:  getEnv("STORE_BACKEND", "memory"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		PresenceGrace: time.Duration(getEnvInt("PRESENCE_GRACE_SEC", 30)) * time.Second,
		ReconnectWait: time.Duration(getEnvInt("RECONNECT_WAIT_SEC", 300)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
