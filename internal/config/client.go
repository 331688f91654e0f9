package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "UPQUEUE"

	ManifestSuccesses = "successes"
	ManifestAllSlots  = "all-slots"
)

var (
	ErrNoServerURL       = errors.New("config: server url missing")
	ErrInvalidServerURL  = errors.New("config: invalid server url")
	ErrInvalidPolicy     = errors.New("config: unknown manifest policy")
	ErrInvalidBatchSize  = errors.New("config: max batch size must be positive")
	ErrInvalidFileSize   = errors.New("config: invalid max file size")
	ErrInvalidReconnect  = errors.New("config: invalid reconnect settings")
	ErrInvalidConcurrent = errors.New("config: upload concurrency must not be negative")
)

// ClientConfig holds everything the upload client and the status view need.
type ClientConfig struct {
	ServerURL         string
	SessionToken      string
	SessionCookie     string
	LogLevel          slog.Level
	RequestTimeout    time.Duration
	UploadConcurrency int
	MaxBatchSize      int
	MaxFileSize       uint64
	ManifestPolicy    string
	PollInterval      time.Duration
	Reconnect         ReconnectConfig
}

// ReconnectConfig bounds push channel reconnection. Attempts == 0 leaves the
// channel disconnected after the first drop.
type ReconnectConfig struct {
	Initial  time.Duration
	Max      time.Duration
	Attempts int
}

// SetClientDefaults registers defaults for every client key on v.
func SetClientDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("session_cookie", "jwt")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("upload_concurrency", 0)
	v.SetDefault("max_batch_size", 10)
	v.SetDefault("max_file_size", "20 MB")
	v.SetDefault("manifest_policy", ManifestSuccesses)
	v.SetDefault("poll_interval", 0)
	v.SetDefault("reconnect_initial", 2*time.Second)
	v.SetDefault("reconnect_max", 30*time.Second)
	v.SetDefault("reconnect_attempts", 5)
}

// LoadDotEnv loads a .env file into the process environment if one exists.
func LoadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		slog.Debug("No .env file loaded", "path", path, "error", err)
	}
}

// LoadClientConfig reads the client configuration out of v. Defaults are
// applied first, then environment variables prefixed with UPQUEUE_.
func LoadClientConfig(v *viper.Viper) (*ClientConfig, error) {
	SetClientDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	maxFileSize, err := humanize.ParseBytes(v.GetString("max_file_size"))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileSize, v.GetString("max_file_size"))
	}

	cfg := &ClientConfig{
		ServerURL:         v.GetString("server_url"),
		SessionToken:      v.GetString("session_token"),
		SessionCookie:     v.GetString("session_cookie"),
		LogLevel:          ParseLevel(v.GetString("log_level")),
		RequestTimeout:    v.GetDuration("request_timeout"),
		UploadConcurrency: v.GetInt("upload_concurrency"),
		MaxBatchSize:      v.GetInt("max_batch_size"),
		MaxFileSize:       maxFileSize,
		ManifestPolicy:    v.GetString("manifest_policy"),
		PollInterval:      v.GetDuration("poll_interval"),
		Reconnect: ReconnectConfig{
			Initial:  v.GetDuration("reconnect_initial"),
			Max:      v.GetDuration("reconnect_max"),
			Attempts: v.GetInt("reconnect_attempts"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return ErrNoServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}
	if c.ManifestPolicy != ManifestSuccesses && c.ManifestPolicy != ManifestAllSlots {
		return fmt.Errorf("%w: %q", ErrInvalidPolicy, c.ManifestPolicy)
	}
	if c.MaxBatchSize < 1 {
		return ErrInvalidBatchSize
	}
	if c.UploadConcurrency < 0 {
		return ErrInvalidConcurrent
	}
	if c.Reconnect.Attempts < 0 || c.Reconnect.Initial < 0 || c.Reconnect.Max < c.Reconnect.Initial {
		return ErrInvalidReconnect
	}
	return nil
}
