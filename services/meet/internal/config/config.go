package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the runtime configuration for meetd, loaded from the
// environment. Redis is mandatory; Postgres and NATS are optional and
// their absence switches the service to cache-only and single-process
// modes respectively.
type Config struct {
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	NATSURL       string
	EventsSubject string
	SessionTTL    time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      getEnv("MEET_HTTP_ADDR", ":8080"),
		RedisAddr:     getEnv("MEET_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("MEET_REDIS_PASSWORD"),
		DatabaseURL:   strings.TrimSpace(os.Getenv("MEET_DATABASE_URL")),
		NATSURL:       strings.TrimSpace(os.Getenv("MEET_NATS_URL")),
		EventsSubject: getEnv("MEET_EVENTS_SUBJECT", "meet.events"),
	}

	if raw := os.Getenv("MEET_REDIS_DB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid MEET_REDIS_DB: %q", raw)
		}
		cfg.RedisDB = n
	}

	ttl, err := parseTTLHours(os.Getenv("MEET_SESSION_TTL_HOURS"))
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = ttl

	return cfg, nil
}

func parseTTLHours(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 24 * time.Hour, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return 0, fmt.Errorf("invalid MEET_SESSION_TTL_HOURS: %q", raw)
	}
	return time.Duration(hours) * time.Hour, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
