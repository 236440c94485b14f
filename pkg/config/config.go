package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries read from the environment.
// A .env file in the working directory is honored when present.
type Config struct {
	HTTPAddr string

	DatabaseURL string

	RedisAddr   string
	PresenceTTL time.Duration

	KafkaBrokers []string
	EmailTopic   string

	JWTSecret []byte

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	PublicBaseURL string
}

func Load() *Config {
	// Missing .env is fine; env vars win either way.
	_ = godotenv.Load()

	return &Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:    getenv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=dialog port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		PresenceTTL:    getduration("PRESENCE_TTL", 60*time.Second),
		KafkaBrokers:   strings.Split(getenv("KAFKA_BROKERS", "localhost:19092"), ","),
		EmailTopic:     getenv("EMAIL_TOPIC", "email-tasks"),
		JWTSecret:      []byte(getenv("JWT_SECRET", "dev_secret_change_me")),
		SMTPHost:       getenv("SMTP_HOST", "localhost"),
		SMTPPort:       getint("SMTP_PORT", 587),
		SMTPUsername:   os.Getenv("SMTP_USERNAME"),
		SMTPPassword:   os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:       getenv("SMTP_FROM", "no-reply@dialog.local"),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",
		PublicBaseURL:  getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
