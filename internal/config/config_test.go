package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr: got %q", cfg.ListenAddr)
	}
	if cfg.SessionTTL != defaultSessionTTL {
		t.Errorf("SessionTTL: got %v", cfg.SessionTTL)
	}
	if cfg.AuthMode != AuthModeStrict {
		t.Errorf("AuthMode: got %q", cfg.AuthMode)
	}
}

func TestLoadSessionTTL(t *testing.T) {
	t.Setenv("GYMGATE_SESSION_TTL", "30m")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL: got %v", cfg.SessionTTL)
	}

	t.Setenv("GYMGATE_SESSION_TTL", "-5m")
	if _, err := Load(); err == nil {
		t.Fatal("negative TTL should be rejected")
	}

	t.Setenv("GYMGATE_SESSION_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("unparseable TTL should be rejected")
	}
}

func TestParseAuthMode(t *testing.T) {
	for _, raw := range []string{"", "strict", "  STRICT  "} {
		mode, err := ParseAuthMode(raw)
		if err != nil || mode != AuthModeStrict {
			t.Errorf("raw %q: got %q, %v", raw, mode, err)
		}
	}

	if _, err := ParseAuthMode("permissive"); err == nil {
		t.Error("unknown mode should be rejected")
	}

	// Whether the bypass parses depends on the devauth build tag; either way
	// it must never come back silently downgraded to strict.
	mode, err := ParseAuthMode("development_bypass")
	if err == nil && mode != AuthModeDevelopmentBypass {
		t.Errorf("bypass parsed to %q", mode)
	}
	if !devBypassAllowed && err == nil {
		t.Error("bypass must be rejected in builds without the devauth tag")
	}
}
