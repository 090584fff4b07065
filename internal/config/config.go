package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultServerAddr       = ":8086"
	DefaultStreamRetryDelay = 5 * time.Second
)

type Config struct {
	ServerAddr     string
	AllowedOrigins []string

	// Exactly one of AuthToken and AuthTokenHash is set.
	AuthToken     string
	AuthTokenHash string

	StoreDSN    string
	RealtimeURL string
	RealtimeKey string

	StreamRetryDelay time.Duration
}

// NewConfig reads the relay's environment and validates it. serverAddr and
// allowedOrigins come from flags; empty values fall back to LISTEN_ADDR and
// ALLOWED_ORIGINS, then to defaults. Missing credentials or endpoints are
// startup errors.
func NewConfig(serverAddr string, allowedOrigins []string) (*Config, error) {
	cfg := &Config{
		ServerAddr:       serverAddr,
		AllowedOrigins:   allowedOrigins,
		AuthToken:        os.Getenv("AUTH_TOKEN"),
		AuthTokenHash:    os.Getenv("AUTH_TOKEN_HASH"),
		StoreDSN:         os.Getenv("STORE_DSN"),
		RealtimeURL:      os.Getenv("REALTIME_URL"),
		RealtimeKey:      os.Getenv("REALTIME_KEY"),
		StreamRetryDelay: DefaultStreamRetryDelay,
	}

	if cfg.ServerAddr == "" {
		cfg.ServerAddr = os.Getenv("LISTEN_ADDR")
	}
	if cfg.ServerAddr == "" {
		cfg.ServerAddr = DefaultServerAddr
	}
	if len(cfg.AllowedOrigins) == 0 {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			cfg.AllowedOrigins = splitOrigins(origins)
		} else {
			cfg.AllowedOrigins = []string{"*"}
		}
	}

	if cfg.AuthToken == "" && cfg.AuthTokenHash == "" {
		return nil, fmt.Errorf("one of AUTH_TOKEN or AUTH_TOKEN_HASH is required")
	}
	if cfg.AuthToken != "" && cfg.AuthTokenHash != "" {
		return nil, fmt.Errorf("AUTH_TOKEN and AUTH_TOKEN_HASH are mutually exclusive")
	}
	if cfg.StoreDSN == "" {
		return nil, fmt.Errorf("STORE_DSN is required")
	}
	if cfg.RealtimeURL == "" {
		return nil, fmt.Errorf("REALTIME_URL is required")
	}
	if _, err := url.Parse(cfg.RealtimeURL); err != nil {
		return nil, fmt.Errorf("invalid REALTIME_URL: %w", err)
	}
	if cfg.RealtimeKey == "" {
		return nil, fmt.Errorf("REALTIME_KEY is required")
	}

	if v := os.Getenv("STREAM_RETRY_DELAY"); v != "" {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid STREAM_RETRY_DELAY: %w", err)
		}
		if delay <= 0 {
			return nil, fmt.Errorf("STREAM_RETRY_DELAY must be positive")
		}
		cfg.StreamRetryDelay = delay
	}

	return cfg, nil
}

func splitOrigins(origins string) []string {
	var out []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
