package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreJSON     = "json"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRedis    = "redis"

	// DevQRSecret is used when QR_SECRET_KEY is unset. Passes signed with it
	// are forgeable by anyone who has read this file.
	DevQRSecret = "entrypass-dev-secret"
)

type Config struct {
	Store  StoreConfig
	Import ImportConfig
	Event  EventConfig
	QR     QRConfig
	Kafka  KafkaConfig
	Log    LogConfig
}

type StoreConfig struct {
	Backend     string
	JSONPath    string
	SQLiteDSN   string
	PostgresDSN string
	RedisAddr   string
	RedisPrefix string
}

type ImportConfig struct {
	SourcePath            string
	OutputDir             string
	TempDir               string
	DefaultTeamSize       int
	MaxTeamMembers        int
	DisambiguateFilenames bool
	RepairMissingPasses   bool
	LockTTL               time.Duration
}

type EventConfig struct {
	Name string
	Slot string
}

type QRConfig struct {
	Secret    string
	ImageSize int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

type LogConfig struct {
	Dir string
}

func Load() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:     strings.ToLower(getEnv("STORE_BACKEND", StoreJSON)),
			JSONPath:    getEnv("STORE_JSON_PATH", "data/tickets.json"),
			SQLiteDSN:   getEnv("SQLITE_DSN", "file:tickets.db?cache=shared"),
			PostgresDSN: getEnv("POSTGRES_DSN", ""),
			RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPrefix: getEnv("REDIS_PREFIX", "entrypass"),
		},
		Import: ImportConfig{
			SourcePath:            getEnv("IMPORT_SOURCE", "app.xlsx"),
			OutputDir:             getEnv("PDF_OUTPUT_DIR", "static/pdf"),
			TempDir:               getEnv("QR_TEMP_DIR", ""),
			DefaultTeamSize:       getEnvInt("DEFAULT_TEAM_SIZE", 3),
			MaxTeamMembers:        getEnvInt("MAX_TEAM_MEMBERS", 4),
			DisambiguateFilenames: getEnvBool("DISAMBIGUATE_FILENAMES", false),
			RepairMissingPasses:   getEnvBool("REPAIR_MISSING_PASSES", true),
			LockTTL:               time.Duration(getEnvInt("IMPORT_LOCK_TTL_MINUTES", 30)) * time.Minute,
		},
		Event: EventConfig{
			Name: getEnv("EVENT_NAME", "HACKFEST2K26"),
			Slot: getEnv("EVENT_SLOT", "20 Feb 9:00 AM - 21 Feb 9:00 AM"),
		},
		QR: QRConfig{
			Secret:    getEnv("QR_SECRET_KEY", DevQRSecret),
			ImageSize: getEnvInt("QR_IMAGE_SIZE", 512),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_TICKETS", "entrypass.tickets.issued"),
			GroupID: getEnv("KAFKA_GROUP_ID", "entrypass-watch"),
		},
		Log: LogConfig{
			Dir: getEnv("LOG_DIR", "logs"),
		},
	}
}

// UsingDevSecret reports whether passes are signed with the built-in secret.
func (c *Config) UsingDevSecret() bool {
	return c.QR.Secret == DevQRSecret
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
