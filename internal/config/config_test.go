package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress || cfg.StoreDriver != StoreDriverSQLite {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl %s", cfg.TokenTTL)
	}
	if cfg.ReconcileInterval != time.Second || cfg.HealthInterval != 5*time.Second {
		t.Fatalf("unexpected intervals %s %s", cfg.ReconcileInterval, cfg.HealthInterval)
	}
	if cfg.HealthProbePath != "/health" || len(cfg.BootstrapPairs) != 0 {
		t.Fatalf("unexpected health defaults %#v", cfg)
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	_, err := Load(NewViper())
	if err == nil || !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("expected signing secret error, got %v", err)
	}
}

func TestLoadValidatesDriverAndIntervals(t *testing.T) {
	testCases := []struct {
		name  string
		key   string
		value any
	}{
		{name: "unknown driver", key: "store.driver", value: "postgres"},
		{name: "zero interval", key: "reconcile.interval", value: "0s"},
		{name: "negative concurrency", key: "health.concurrency", value: -1},
		{name: "zero ttl", key: "auth.token_ttl_minutes", value: 0},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set("auth.signing_secret", "secret")
			configViper.Set(testCase.key, testCase.value)
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMemoryDriverSkipsDatabasePath(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("store.driver", "MEMORY")
	configViper.Set("database.path", "")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("unexpected driver %q", cfg.StoreDriver)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SOCIAL_AUTH_SIGNING_SECRET", "from-env")
	t.Setenv("SOCIAL_HEALTH_PROBE_PATH", "/ping")

	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SigningSecret != "from-env" || cfg.HealthProbePath != "/ping" {
		t.Fatalf("environment not applied: %#v", cfg)
	}
}

func TestParseBootstrapPairs(t *testing.T) {
	pairs, err := ParseBootstrapPairs([]string{
		"p1=http://localhost:9090,http://localhost:9091",
		" ",
		"p2=http://localhost:9190",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected two pairs, got %d", len(pairs))
	}
	if pairs[0].StandbyAddress != "http://localhost:9091" || pairs[0].ActiveAddress != "http://localhost:9090" {
		t.Fatalf("unexpected first pair %#v", pairs[0])
	}
	if pairs[1].StandbyAddress != "" {
		t.Fatalf("expected second pair without standby, got %#v", pairs[1])
	}

	if _, err := ParseBootstrapPairs([]string{"missing-separator"}); err == nil {
		t.Fatalf("expected error for entry without pair id")
	}
	if _, err := ParseBootstrapPairs([]string{"p1=ftp://nope"}); err == nil {
		t.Fatalf("expected error for invalid address")
	}
}
