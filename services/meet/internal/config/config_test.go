package config

import (
	"testing"
	"time"
)

func TestParseTTLHours(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{
			name:  "empty uses default",
			input: "",
			want:  24 * time.Hour,
		},
		{
			name:  "whitespace uses default",
			input: "  ",
			want:  24 * time.Hour,
		},
		{
			name:  "explicit hours",
			input: "6",
			want:  6 * time.Hour,
		},
		{
			name:    "zero is invalid",
			input:   "0",
			wantErr: true,
		},
		{
			name:    "negative is invalid",
			input:   "-3",
			wantErr: true,
		},
		{
			name:    "not a number",
			input:   "soon",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTTLHours(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTTLHours() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Fatalf("parseTTLHours() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"MEET_HTTP_ADDR", "MEET_REDIS_ADDR", "MEET_REDIS_PASSWORD",
		"MEET_REDIS_DB", "MEET_DATABASE_URL", "MEET_NATS_URL",
		"MEET_EVENTS_SUBJECT", "MEET_SESSION_TTL_HOURS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.EventsSubject != "meet.events" {
		t.Fatalf("EventsSubject = %q, want meet.events", cfg.EventsSubject)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.DatabaseURL != "" || cfg.NATSURL != "" {
		t.Fatalf("optional backends should default to unset")
	}
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("MEET_REDIS_DB", "primary")
	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted invalid MEET_REDIS_DB")
	}
}
