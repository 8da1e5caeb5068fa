package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env  string `validate:"oneof=development production test"`
	Port string `validate:"required,numeric"`

	DBHost     string `validate:"required"`
	DBPort     string `validate:"required,numeric"`
	DBUser     string `validate:"required"`
	DBPassword string
	DBName     string `validate:"required"`
	DBSSLMode  string

	JWTAccessSecret    string `validate:"required,min=16"`
	JWTRefreshSecret   string `validate:"required,min=16"`
	JWTAccessTTLHours  int    `validate:"gt=0"`
	JWTRefreshTTLHours int    `validate:"gt=0"`

	// Redis is optional; without it the in-flight lock and caches are disabled.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka is optional; without it visit events are delivered in-process.
	KafkaBrokers []string
	KafkaTopic   string `validate:"required_with=KafkaBrokers"`
	KafkaGroupID string `validate:"required_with=KafkaBrokers"`

	FCMCredentialsPath string
	FCMProjectID       string

	// SMTP is optional; without it assignments and review outcomes are not emailed.
	SMTPHost     string
	SMTPPort     string `validate:"omitempty,numeric"`
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string `validate:"omitempty,email"`
	SMTPFromName string

	CORSOrigins        []string
	RateLimitPerMinute int64 `validate:"gte=0"`
	UploadDir          string `validate:"required"`
	OverdueSweep       time.Duration
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getlist(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	origins := getlist("CORS_ORIGINS")
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	return &Config{
		Env:  getenv("APP_ENV", "development"),
		Port: getenv("PORT", "8080"),

		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		JWTAccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
		JWTAccessTTLHours:  getint("JWT_ACCESS_TTL_HOURS", 12),
		JWTRefreshTTLHours: getint("JWT_REFRESH_TTL_HOURS", 168),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getint("REDIS_DB", 0),

		KafkaBrokers: getlist("KAFKA_BROKERS"),
		KafkaTopic:   getenv("KAFKA_VISIT_TOPIC", "visit-events"),
		KafkaGroupID: getenv("KAFKA_GROUP_ID", "visit-notifications"),

		FCMCredentialsPath: os.Getenv("FCM_CREDENTIALS_PATH"),
		FCMProjectID:       os.Getenv("FCM_PROJECT_ID"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getenv("SMTP_PORT", "587"),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM_EMAIL"),
		SMTPFromName: getenv("SMTP_FROM_NAME", "Field Visit Tracker"),

		CORSOrigins:        origins,
		RateLimitPerMinute: int64(getint("RATE_LIMIT_PER_MINUTE", 100)),
		UploadDir:          getenv("UPLOAD_DIR", "./uploads"),
		OverdueSweep:       time.Duration(getint("OVERDUE_SWEEP_MINUTES", 15)) * time.Minute,
	}
}

// Validate checks the loaded values against their struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DSN is the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
