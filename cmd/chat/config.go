package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the chat server configuration.
type Config struct {
	// Addr is the listen address of the HTTP server.
	Addr           string
	PingInterval   time.Duration
	PingTimeout    time.Duration
	MaxPayload     int64
	ConnectTimeout time.Duration
	AckTimeout     time.Duration
	AllowedOrigins []string
}

// LoadConfig reads the configuration from environment variables. Unset
// durations are left zero so the server defaults apply.
func LoadConfig() (*Config, error) {
	port := 3000
	if s := os.Getenv("PORT"); s != "" {
		p, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		port = p
	}

	cfg := &Config{
		Addr:           fmt.Sprintf(":%d", port),
		AllowedOrigins: []string{"*"},
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"PING_INTERVAL", &cfg.PingInterval},
		{"PING_TIMEOUT", &cfg.PingTimeout},
		{"CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"ACK_TIMEOUT", &cfg.AckTimeout},
	}
	for _, d := range durations {
		s := os.Getenv(d.env)
		if s == "" {
			continue
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = v
	}

	if s := os.Getenv("MAX_PAYLOAD"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("MAX_PAYLOAD: %w", err)
		}
		cfg.MaxPayload = v
	}

	if s := os.Getenv("ALLOWED_ORIGINS"); s != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(s, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}
