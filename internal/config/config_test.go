package config

import (
	"strings"
	"testing"
	"time"

	"dam-stability/internal/dam"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}

	if cfg != Default() {
		t.Fatalf("expected defaults %#v, got %#v", Default(), cfg)
	}
	if cfg.ResetDelay != 800*time.Millisecond {
		t.Fatalf("expected 800ms reset delay, got %s", cfg.ResetDelay)
	}
	if cfg.FactorMode != dam.FactorModeFixed {
		t.Fatalf("expected fixed factor mode, got %q", cfg.FactorMode)
	}
	if cfg.AnalysisTimeout != 0 {
		t.Fatalf("expected no analysis timeout, got %s", cfg.AnalysisTimeout)
	}
}

func TestFromLookupOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"HTTP_ADDR":         ":9090",
		"ANALYSIS_BASE_URL": " https://analysis.internal ",
		"ANALYSIS_TIMEOUT":  "30s",
		"FACTOR_MODE":       "computed",
		"DEFAULT_FRICTION":  "0.65",
		"RESET_DELAY":       "0s",
		"SESSION_KEY":       "secret",
		"SESSION_TTL":       "1h",
		"DATABASE_URL":      "postgres://localhost/dams",
		"RATE_LIMIT_RPS":    "2.5",
		"RATE_LIMIT_BURST":  "4",
		"OTEL_LOGS_ENABLED": "true",
	}))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}

	want := Config{
		Addr:            ":9090",
		AnalysisBaseURL: "https://analysis.internal",
		AnalysisTimeout: 30 * time.Second,
		FactorMode:      dam.FactorModeComputed,
		DefaultFriction: 0.65,
		ResetDelay:      0,
		SessionKey:      "secret",
		SessionTTL:      time.Hour,
		DatabaseURL:     "postgres://localhost/dams",
		RateLimitRPS:    2.5,
		RateLimitBurst:  4,
		OTLPLogs:        true,
	}
	if cfg != want {
		t.Fatalf("expected %#v, got %#v", want, cfg)
	}
}

func TestFromLookupReportsEveryInvalidValue(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		"ANALYSIS_TIMEOUT":  "soon",
		"FACTOR_MODE":       "magic",
		"RATE_LIMIT_BURST":  "0",
		"DEFAULT_FRICTION":  "-1",
		"OTEL_LOGS_ENABLED": "maybe",
	}))
	if err == nil {
		t.Fatal("expected error")
	}

	for _, key := range []string{"ANALYSIS_TIMEOUT", "FACTOR_MODE", "RATE_LIMIT_BURST", "DEFAULT_FRICTION", "OTEL_LOGS_ENABLED"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected error to mention %s, got %v", key, err)
		}
	}
}

func TestFromLookupRejectsZeroFriction(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{"DEFAULT_FRICTION": "0"}))
	if err == nil || !strings.Contains(err.Error(), "DEFAULT_FRICTION") {
		t.Fatalf("expected DEFAULT_FRICTION error, got %v", err)
	}
}
