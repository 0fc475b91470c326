package config

import (
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

type PostgresConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout int
	Timeout     int
	Prefix      string
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

type AppConfig struct {
	Port     string
	Postgres PostgresConfig
	Redis    RedisConfig
	S3       S3Config

	RabbitMQURL string

	ExportDir         string
	FilesPublicPrefix string
	ExternalURL       string
	ExportPrefix      string
	// CleanupSchedule is a cron expression for removing exported files older than ExportRetention.
	CleanupSchedule string
	ExportRetention time.Duration

	PaymentLockTTL    time.Duration
	ReferenceCacheTTL time.Duration
	// Location decides which calendar day "today" is for due-date checks.
	Location *time.Location
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int value %q: %v", s, err)
	}
	return i
}

func mustBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		log.Fatalf("invalid bool value %q: %v", s, err)
	}
	return b
}

func mustSeconds(s string) time.Duration {
	return time.Duration(mustAtoi(s)) * time.Second
}

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("invalid time zone %q: %v", name, err)
	}
	return loc
}

func Load() AppConfig {
	return AppConfig{
		Port: getenv("APP_PORT", "8010"),
		Postgres: PostgresConfig{
			Host:         getenv("PG_HOST", "127.0.0.1"),
			Port:         mustAtoi(getenv("PG_PORT", "5432")),
			User:         getenv("PG_USER", "fees"),
			Password:     getenv("PG_PASSWORD", ""),
			DBName:       getenv("PG_DB", "fee_ledger"),
			SSLMode:      getenv("PG_SSLMODE", "disable"),
			MaxOpenConns: mustAtoi(getenv("PG_MAX_OPEN_CONNS", "20")),
		},
		Redis: RedisConfig{
			Addr:        getenv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    getenv("REDIS_PASSWORD", ""),
			DB:          mustAtoi(getenv("REDIS_DB", "0")),
			MaxRetries:  mustAtoi(getenv("REDIS_MAX_RETRIES", "5")),
			DialTimeout: mustAtoi(getenv("REDIS_DIAL_TIMEOUT", "10")),
			Timeout:     mustAtoi(getenv("REDIS_TIMEOUT", "5")),
			Prefix:      getenv("REDIS_PREFIX", "fee_ledger:"),
		},
		S3: S3Config{
			Enabled:         mustBool(getenv("S3_ENABLED", "false")),
			Endpoint:        getenv("S3_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getenv("S3_ACCESS_KEY", ""),
			SecretAccessKey: getenv("S3_SECRET_KEY", ""),
			Bucket:          getenv("S3_BUCKET", "fee-exports"),
			Region:          getenv("S3_REGION", "us-east-1"),
			UseSSL:          mustBool(getenv("S3_USE_SSL", "false")),
			Prefix:          getenv("S3_PREFIX", ""),
		},
		RabbitMQURL:       getenv("RABBITMQ_URL", ""),
		ExportDir:         getenv("EXPORT_DIR", "./exports"),
		FilesPublicPrefix: getenv("FILES_PUBLIC_PREFIX", "/files"),
		ExternalURL:       getenv("EXTERNAL_URL", ""),
		ExportPrefix:      getenv("EXPORT_CACHE_PREFIX", "exports:"),
		CleanupSchedule:   getenv("EXPORT_CLEANUP_SCHEDULE", "@every 5m"),
		ExportRetention:   mustSeconds(getenv("EXPORT_RETENTION", "1800")),
		PaymentLockTTL:    mustSeconds(getenv("PAYMENT_LOCK_TTL", "30")),
		ReferenceCacheTTL: mustSeconds(getenv("REFERENCE_CACHE_TTL", "600")),
		Location:          mustLocation(getenv("LEDGER_TIMEZONE", "Asia/Kolkata")),
	}
}
