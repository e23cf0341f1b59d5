package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	Mode               string
	OTelServiceName    string
	OTelEndpoint       string
	Environment        string
	DatabaseDriver     string
	DatabaseURL        string
	HourlyRate         string
	PlatePattern       string
	JWTSecret          string
	JWTExpirationHours int
	OperatorPassword   string
	SeedDemoData       bool
}

// Load reads an optional .env file from the working directory, then the
// process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env file: %v", err)
	}

	return &Config{
		Port:               envOr("APP_PORT", "8080"),
		Mode:               strings.ToLower(envOr("APP_MODE", "server")),
		OTelServiceName:    envOr("OTEL_SERVICE_NAME", "parking-manager"),
		OTelEndpoint:       envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		Environment:        envOr("APP_ENVIRONMENT", "development"),
		DatabaseDriver:     envOr("DATABASE_DRIVER", ""),
		DatabaseURL:        envOr("DATABASE_URL", "file:parking.db?_foreign_keys=on"),
		HourlyRate:         envOr("HOURLY_RATE", "5.00"),
		PlatePattern:       envOr("PLATE_PATTERN", `^[A-Z]{3}\d{3}$`),
		JWTSecret:          envOr("JWT_SECRET", "change-me-in-production"),
		JWTExpirationHours: envOrInt("JWT_EXPIRATION_HOURS", 24),
		OperatorPassword:   envOr("OPERATOR_PASSWORD", "123456"),
		SeedDemoData:       envOrBool("SEED_DEMO_DATA", true),
	}
}

// Persistent reports whether a database backs the in-memory state.
func (c *Config) Persistent() bool {
	return c.DatabaseDriver != ""
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envOrBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
