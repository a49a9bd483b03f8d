package config

import (
	"os"
	"strconv"
	"time"
)

type ShareConfig struct {
	CodeTTL        time.Duration
	QRSize         int
	RedisKeyPrefix string
}

func LoadShareConfig() *ShareConfig {
	return &ShareConfig{
		CodeTTL:        getEnvAsDuration("SHARE_CODE_TTL", 24*time.Hour),
		QRSize:         getEnvAsInt("SHARE_QR_SIZE", 256),
		RedisKeyPrefix: getEnv("SHARE_KEY_PREFIX", "share:"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
