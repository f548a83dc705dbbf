// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dam-stability/internal/dam"
)

// Config is the runtime configuration of the HTTP service.
type Config struct {
	Addr string

	AnalysisBaseURL string
	// AnalysisTimeout bounds one analysis request; zero means no timeout.
	AnalysisTimeout time.Duration

	FactorMode      dam.FactorMode
	DefaultFriction float64

	ResetDelay time.Duration
	SessionKey string
	SessionTTL time.Duration

	DatabaseURL string

	RateLimitRPS   float64
	RateLimitBurst int

	OTLPLogs bool
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		Addr:            ":8080",
		AnalysisBaseURL: "http://localhost:3000",
		FactorMode:      dam.FactorModeFixed,
		DefaultFriction: dam.DefaultFriction,
		ResetDelay:      800 * time.Millisecond,
		SessionTTL:      24 * time.Hour,
		RateLimitRPS:    5,
		RateLimitBurst:  10,
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads the configuration through lookup, which has the signature
// of os.LookupEnv. All invalid values are reported together.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, v))
			return
		}
		*dst = d
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid number %q", key, v))
			return
		}
		*dst = f
	}

	str("HTTP_ADDR", &cfg.Addr)
	str("ANALYSIS_BASE_URL", &cfg.AnalysisBaseURL)
	dur("ANALYSIS_TIMEOUT", &cfg.AnalysisTimeout)
	float("DEFAULT_FRICTION", &cfg.DefaultFriction)
	if cfg.DefaultFriction == 0 {
		errs = append(errs, errors.New("DEFAULT_FRICTION: must be greater than zero"))
		cfg.DefaultFriction = dam.DefaultFriction
	}
	dur("RESET_DELAY", &cfg.ResetDelay)
	str("SESSION_KEY", &cfg.SessionKey)
	dur("SESSION_TTL", &cfg.SessionTTL)
	str("DATABASE_URL", &cfg.DatabaseURL)
	float("RATE_LIMIT_RPS", &cfg.RateLimitRPS)

	if v, ok := lookup("FACTOR_MODE"); ok {
		mode, err := dam.ParseFactorMode(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FACTOR_MODE: %w", err))
		} else {
			cfg.FactorMode = mode
		}
	}

	if v, ok := lookup("RATE_LIMIT_BURST"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 {
			errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST: invalid burst %q", v))
		} else {
			cfg.RateLimitBurst = n
		}
	}

	if v, ok := lookup("OTEL_LOGS_ENABLED"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_LOGS_ENABLED: invalid bool %q", v))
		} else {
			cfg.OTLPLogs = b
		}
	}

	if cfg.SessionTTL == 0 {
		errs = append(errs, errors.New("SESSION_TTL: must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
