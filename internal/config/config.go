package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL string // sqlite file DSN or postgres URL
	DBDebug     bool
	RedisURL    string
	LogLevel    string
	Port        string
	Timezone    string

	Gmail  GmailConfig
	Backup BackupConfig
	Kafka  KafkaConfig
	Sync   SyncConfig
}

type GmailConfig struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Query        string
	BaseURL      string
}

type BackupConfig struct {
	Backend string // "r2", "file" or empty
	File    string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string
	R2ObjectKey       string
	R2Endpoint        string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type SyncConfig struct {
	Cron       string        // cron expression for the asynq scheduler
	Interval   time.Duration // gocron watch interval
	AutoBackup bool
}

// LoadConfig reads configuration from environment variables (.env file)
func LoadConfig() (*Config, error) {
	// Load .env file. In production, env variables are often set directly.
	_ = godotenv.Load()

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", "file:lotero.db"),
		DBDebug:     getEnvBool("DB_DEBUG", false),
		RedisURL:    getEnv("REDIS_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Port:        getEnv("PORT", "8080"),
		Timezone:    getEnv("TIMEZONE", "Europe/Madrid"),
		Gmail: GmailConfig{
			AccessToken:  getEnv("GMAIL_ACCESS_TOKEN", ""),
			ClientID:     getEnv("GMAIL_CLIENT_ID", ""),
			ClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
			RefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
			Query:        getEnv("GMAIL_QUERY", `from:info@tulotero.es subject:"Premio en el boleto"`),
			BaseURL:      getEnv("GMAIL_BASE_URL", "https://gmail.googleapis.com/gmail/v1/users/me"),
		},
		Backup: BackupConfig{
			Backend:           strings.ToLower(getEnv("BACKUP_BACKEND", "")),
			File:              getEnv("BACKUP_FILE", "loterotracker_backup.json"),
			R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			R2Bucket:          getEnv("R2_BUCKET_NAME", ""),
			R2ObjectKey:       getEnv("R2_OBJECT_KEY", "LoteroTracker/loterotracker_backup.json"),
			R2Endpoint:        getEnv("R2_ENDPOINT", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "lotero.prizes"),
		},
		Sync: SyncConfig{
			Cron:       getEnv("SYNC_CRON", "*/30 * * * *"),
			Interval:   getEnvDuration("SYNC_INTERVAL", 30*time.Minute),
			AutoBackup: getEnvBool("AUTO_BACKUP", false),
		},
	}, nil
}

// Location resolves Timezone, falling back to UTC when the zone database lacks it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper function to get env var or return default
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
