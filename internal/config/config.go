package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// AuthMode selects how the identity resolver treats incoming requests.
type AuthMode string

const (
	// AuthModeStrict requires a verifiable credential on every request.
	AuthModeStrict AuthMode = "strict"
	// AuthModeDevelopmentBypass short-circuits resolution into a synthetic
	// principal. Selectable only in binaries built with the devauth tag.
	AuthModeDevelopmentBypass AuthMode = "development_bypass"
)

// Config carries everything read from the environment at startup. Nothing in
// the request path reads env vars directly.
type Config struct {
	ListenAddr          string
	DatabaseDSN         string
	PlatformTokenSecret string
	PlatformTokenIssuer string
	SessionTTL          time.Duration
	AuthMode            AuthMode
}

const (
	defaultListenAddr = ":8080"
	defaultSessionTTL = 12 * time.Hour
	defaultIssuer     = "gymgate-platform"
)

// Load reads configuration from GYMGATE_* environment variables once.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:          envOr("GYMGATE_LISTEN_ADDR", defaultListenAddr),
		DatabaseDSN:         strings.TrimSpace(os.Getenv("GYMGATE_PG_DSN")),
		PlatformTokenSecret: strings.TrimSpace(os.Getenv("GYMGATE_PLATFORM_TOKEN_SECRET")),
		PlatformTokenIssuer: envOr("GYMGATE_PLATFORM_TOKEN_ISSUER", defaultIssuer),
		SessionTTL:          defaultSessionTTL,
	}

	if raw := strings.TrimSpace(os.Getenv("GYMGATE_SESSION_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: parse GYMGATE_SESSION_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("config: GYMGATE_SESSION_TTL must be positive")
		}
		cfg.SessionTTL = ttl
	}

	mode, err := ParseAuthMode(os.Getenv("GYMGATE_AUTH_MODE"))
	if err != nil {
		return Config{}, err
	}
	cfg.AuthMode = mode

	return cfg, nil
}

// ParseAuthMode validates the requested mode. The development bypass is
// rejected outright unless the binary was compiled with the devauth build
// tag, so production builds cannot select it regardless of environment.
func ParseAuthMode(raw string) (AuthMode, error) {
	switch AuthMode(strings.TrimSpace(strings.ToLower(raw))) {
	case "", AuthModeStrict:
		return AuthModeStrict, nil
	case AuthModeDevelopmentBypass:
		if !devBypassAllowed {
			return "", errors.New("config: development_bypass auth mode is not available in this build")
		}
		return AuthModeDevelopmentBypass, nil
	default:
		return "", fmt.Errorf("config: unknown auth mode %q", raw)
	}
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
