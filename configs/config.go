package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

func loadEnv() {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

// Fan-out modes for the offline notification sent when a joined socket closes.
const (
	FanoutAll   = "all"
	FanoutPeers = "peers"
)

type Settings struct {
	Port           string
	AppName        string
	LogLevel       string
	LogDevelopment bool

	DBDriver      string
	UsersDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	NATSURL       string

	JWTSecret     string
	TokenTTL      time.Duration
	RequireWSAuth bool
	OfflineFanout string
	HistoryLimit  int
	AllowOrigins  string

	CloudinaryURL     string
	BrevoAPIKey       string
	EmailSender       string
	EmailSenderName   string
	UnreadDigestAfter time.Duration
}

// Load reads the process settings. Unset keys fall back to development defaults.
func Load() *Settings {
	s := &Settings{
		Port:           withDefault("PORT", "8080"),
		AppName:        withDefault("APP_NAME", "Social Chat"),
		LogLevel:       withDefault("LOG_LEVEL", "info"),
		LogDevelopment: boolValue("LOG_DEVELOPMENT", false),

		DBDriver:      strings.ToLower(withDefault("DB_DRIVER", "postgres")),
		DatabaseURL:   Config("DATABASE_URL"),
		MongoURI:      withDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: withDefault("MONGO_DATABASE", "social_chat"),
		NATSURL:       Config("NATS_URL"),

		JWTSecret:     Config("JWT_SECRET"),
		TokenTTL:      durationValue("TOKEN_TTL", 72*time.Hour),
		RequireWSAuth: boolValue("WS_REQUIRE_AUTH", false),
		OfflineFanout: strings.ToLower(withDefault("RELAY_OFFLINE_FANOUT", FanoutAll)),
		HistoryLimit:  intValue("HISTORY_LIMIT", 50),
		AllowOrigins:  withDefault("CORS_ALLOW_ORIGINS", "*"),

		CloudinaryURL:     Config("CLOUDINARY_URL"),
		BrevoAPIKey:       Config("BREVO_API_KEY"),
		EmailSender:       Config("EMAIL_SENDER"),
		EmailSenderName:   Config("EMAIL_SENDER_NAME"),
		UnreadDigestAfter: durationValue("UNREAD_DIGEST_AFTER", time.Hour),
	}

	if s.OfflineFanout != FanoutAll && s.OfflineFanout != FanoutPeers {
		log.Printf("Warning: unknown RELAY_OFFLINE_FANOUT %q, using %q", s.OfflineFanout, FanoutAll)
		s.OfflineFanout = FanoutAll
	}
	if s.HistoryLimit <= 0 {
		s.HistoryLimit = 50
	}
	// Users always live in a relational database, even when messages go to Mongo.
	s.UsersDriver = s.DBDriver
	if s.DBDriver == "mongo" {
		s.UsersDriver = strings.ToLower(withDefault("USERS_DB_DRIVER", "postgres"))
	}
	if s.DatabaseURL == "" && s.UsersDriver == "sqlite" {
		s.DatabaseURL = "social_chat.db"
	}
	return s
}

func withDefault(key, fallback string) string {
	if v := strings.TrimSpace(Config(key)); v != "" {
		return v
	}
	return fallback
}

func boolValue(key string, fallback bool) bool {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid boolean for %s: %q", key, v)
		return fallback
	}
	return b
}

func intValue(key string, fallback int) int {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid integer for %s: %q", key, v)
		return fallback
	}
	return n
}

func durationValue(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(Config(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %q", key, v)
		return fallback
	}
	return d
}
