package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	var (
		token = "secret-token"
		dsn   = "host=localhost user=postgres password=postgres dbname=chatrelay sslmode=disable"
		rtURL = "wss://realtime.example.com/socket"
		rtKey = "realtime-key"
	)

	tcases := []struct {
		name  string
		env   map[string]string
		addr  string
		orig  []string
		err   string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid config",
			env: map[string]string{
				"AUTH_TOKEN":   token,
				"STORE_DSN":    dsn,
				"REALTIME_URL": rtURL,
				"REALTIME_KEY": rtKey,
			},
			addr: "localhost:8080",
			orig: []string{"http://localhost:3000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost:8080", cfg.ServerAddr)
				assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
				assert.Equal(t, token, cfg.AuthToken)
				assert.Equal(t, dsn, cfg.StoreDSN)
				assert.Equal(t, rtURL, cfg.RealtimeURL)
				assert.Equal(t, rtKey, cfg.RealtimeKey)
				assert.Equal(t, DefaultStreamRetryDelay, cfg.StreamRetryDelay)
			},
		},
		{
			name: "defaults applied",
			env: map[string]string{
				"AUTH_TOKEN":   token,
				"STORE_DSN":    dsn,
				"REALTIME_URL": rtURL,
				"REALTIME_KEY": rtKey,
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultServerAddr, cfg.ServerAddr)
				assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
			},
		},
		{
			name: "env addr and origins used when flags empty",
			env: map[string]string{
				"AUTH_TOKEN":      token,
				"STORE_DSN":       dsn,
				"REALTIME_URL":    rtURL,
				"REALTIME_KEY":    rtKey,
				"LISTEN_ADDR":     ":9000",
				"ALLOWED_ORIGINS": "http://a.example, http://b.example",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":9000", cfg.ServerAddr)
				assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
			},
		},
		{
			name: "hashed token mode",
			env: map[string]string{
				"AUTH_TOKEN_HASH": "$2a$10$abcdefghijklmnopqrstuv",
				"STORE_DSN":       dsn,
				"REALTIME_URL":    rtURL,
				"REALTIME_KEY":    rtKey,
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.AuthToken)
				assert.NotEmpty(t, cfg.AuthTokenHash)
			},
		},
		{
			name: "custom retry delay",
			env: map[string]string{
				"AUTH_TOKEN":         token,
				"STORE_DSN":          dsn,
				"REALTIME_URL":       rtURL,
				"REALTIME_KEY":       rtKey,
				"STREAM_RETRY_DELAY": "250ms",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 250*time.Millisecond, cfg.StreamRetryDelay)
			},
		},
		{
			name: "missing token",
			env: map[string]string{
				"STORE_DSN":    dsn,
				"REALTIME_URL": rtURL,
				"REALTIME_KEY": rtKey,
			},
			err: "one of AUTH_TOKEN or AUTH_TOKEN_HASH is required",
		},
		{
			name: "token and hash both set",
			env: map[string]string{
				"AUTH_TOKEN":      token,
				"AUTH_TOKEN_HASH": "$2a$10$abcdefghijklmnopqrstuv",
				"STORE_DSN":       dsn,
				"REALTIME_URL":    rtURL,
				"REALTIME_KEY":    rtKey,
			},
			err: "mutually exclusive",
		},
		{
			name: "missing store DSN",
			env: map[string]string{
				"AUTH_TOKEN":   token,
				"REALTIME_URL": rtURL,
				"REALTIME_KEY": rtKey,
			},
			err: "STORE_DSN is required",
		},
		{
			name: "missing realtime URL",
			env: map[string]string{
				"AUTH_TOKEN":   token,
				"STORE_DSN":    dsn,
				"REALTIME_KEY": rtKey,
			},
			err: "REALTIME_URL is required",
		},
		{
			name: "missing realtime key",
			env: map[string]string{
				"AUTH_TOKEN":   token,
				"STORE_DSN":    dsn,
				"REALTIME_URL": rtURL,
			},
			err: "REALTIME_KEY is required",
		},
		{
			name: "invalid retry delay",
			env: map[string]string{
				"AUTH_TOKEN":         token,
				"STORE_DSN":          dsn,
				"REALTIME_URL":       rtURL,
				"REALTIME_KEY":       rtKey,
				"STREAM_RETRY_DELAY": "soon",
			},
			err: "invalid STREAM_RETRY_DELAY",
		},
		{
			name: "negative retry delay",
			env: map[string]string{
				"AUTH_TOKEN":         token,
				"STORE_DSN":          dsn,
				"REALTIME_URL":       rtURL,
				"REALTIME_KEY":       rtKey,
				"STREAM_RETRY_DELAY": "-5s",
			},
			err: "must be positive",
		},
	}

	envVars := []string{
		"AUTH_TOKEN", "AUTH_TOKEN_HASH", "STORE_DSN", "REALTIME_URL",
		"REALTIME_KEY", "LISTEN_ADDR", "ALLOWED_ORIGINS", "STREAM_RETRY_DELAY",
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			for _, name := range envVars {
				t.Setenv(name, tc.env[name])
			}

			cfg, err := NewConfig(tc.addr, tc.orig)
			if tc.err != "" {
				assert.ErrorContains(t, err, tc.err)
				return
			}
			assert.NoError(t, err)
			if tc.check != nil {
				tc.check(t, cfg)
			}
		})
	}
}

func Test_splitOrigins(t *testing.T) {
	tcases := []struct {
		name     string
		origins  string
		expected []string
	}{
		{
			name:     "single origin",
			origins:  "http://localhost:3000",
			expected: []string{"http://localhost:3000"},
		},
		{
			name:     "multiple origins with spaces",
			origins:  "http://a.example, http://b.example ,http://c.example",
			expected: []string{"http://a.example", "http://b.example", "http://c.example"},
		},
		{
			name:     "empty segments dropped",
			origins:  ",http://a.example,,",
			expected: []string{"http://a.example"},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, splitOrigins(tc.origins))
		})
	}
}
