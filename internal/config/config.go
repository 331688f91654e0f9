package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig configures the reference backend in cmd/devserver.
type ServerConfig struct {
	Port           string
	LogLevel       slog.Level
	DataDir        string
	PublicURL      string
	JWTSecret      string
	MaxUploadCount int
	ProcessDelay   time.Duration
	OutdatedAfter  time.Duration
	S3             S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether upload slots should be presigned against S3 instead
// of the in-process blob store.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

func LoadServerConfig() ServerConfig {
	port := getEnv("PORT", "8080")
	publicURL := getEnv("PUBLIC_URL", "http://localhost:"+port)

	return ServerConfig{
		Port:           port,
		LogLevel:       ParseLevel(os.Getenv("LOG_LEVEL")),
		DataDir:        os.Getenv("DATA_DIR"),
		PublicURL:      strings.TrimRight(publicURL, "/"),
		JWTSecret:      getEnv("JWT_SECRET", "mysecret"),
		MaxUploadCount: getEnvInt("MAX_UPLOAD_COUNT", 10),
		ProcessDelay:   getEnvDuration("PROCESS_DELAY", 2*time.Second),
		OutdatedAfter:  getEnvDuration("OUTDATED_AFTER", 24*time.Hour),
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
	}
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) to a slog level. Anything
// else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return d
}
