package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Logging LoggingConfig
}

// ServerConfig holds the listen surfaces of the exchange.
type ServerConfig struct {
	ListenAddress string
	TCPPort       int
	HTTPPort      int
	Workers       uint
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from the environment, with an optional .env
// file providing defaults.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	return &Config{
		Server: ServerConfig{
			ListenAddress: getEnv("SKOLL_LISTEN_ADDRESS", "0.0.0.0"),
			TCPPort:       getEnvInt("SKOLL_TCP_PORT", 9001),
			HTTPPort:      getEnvInt("SKOLL_HTTP_PORT", 8080),
			Workers:       uint(getEnvInt("SKOLL_WORKERS", 10)),
		},
		Logging: LoggingConfig{
			Level:  getEnv("SKOLL_LOG_LEVEL", "info"),
			Pretty: getEnvBool("SKOLL_LOG_PRETTY", false),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
