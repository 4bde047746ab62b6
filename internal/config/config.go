package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/replicas"
	"github.com/spf13/viper"
)

const (
	envPrefix                 = "SOCIAL"
	defaultHTTPAddress        = "0.0.0.0:8080"
	defaultDatabasePath       = "social.db"
	defaultStoreDriver        = StoreDriverSQLite
	defaultLogLevel           = "info"
	defaultLogEncoding        = "json"
	defaultTokenTTLMinutes    = 30
	defaultReconcileInterval  = time.Second
	defaultReconcileTimeout   = 2 * time.Second
	defaultReconcileWorkers   = 8
	defaultHealthInterval     = 5 * time.Second
	defaultHealthProbeTimeout = 2 * time.Second
	defaultHealthProbePath    = "/health"
	defaultHealthConcurrency  = 8
	defaultHeartbeatInterval  = 15 * time.Second
	StoreDriverSQLite         = "sqlite"
	StoreDriverMemory         = "memory"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress           string
	DatabasePath          string
	StoreDriver           string
	LogLevel              string
	LogEncoding           string
	SigningSecret         string
	TokenTTL              time.Duration
	ReconcileInterval     time.Duration
	ReconcileStoreTimeout time.Duration
	ReconcileConcurrency  int
	HealthInterval        time.Duration
	HealthProbeTimeout    time.Duration
	HealthProbePath       string
	HealthConcurrency     int
	StreamHeartbeat       time.Duration
	BootstrapPairs        []replicas.ServerPair
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("store.driver", defaultStoreDriver)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("reconcile.interval", defaultReconcileInterval)
	configViper.SetDefault("reconcile.store_timeout", defaultReconcileTimeout)
	configViper.SetDefault("reconcile.concurrency", defaultReconcileWorkers)
	configViper.SetDefault("health.interval", defaultHealthInterval)
	configViper.SetDefault("health.probe_timeout", defaultHealthProbeTimeout)
	configViper.SetDefault("health.probe_path", defaultHealthProbePath)
	configViper.SetDefault("health.concurrency", defaultHealthConcurrency)
	configViper.SetDefault("stream.heartbeat", defaultHeartbeatInterval)
	configViper.SetDefault("replicas.bootstrap", []string{})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	bootstrap, err := ParseBootstrapPairs(configViper.GetStringSlice("replicas.bootstrap"))
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		HTTPAddress:           configViper.GetString("http.address"),
		DatabasePath:          configViper.GetString("database.path"),
		StoreDriver:           strings.ToLower(strings.TrimSpace(configViper.GetString("store.driver"))),
		LogLevel:              configViper.GetString("log.level"),
		LogEncoding:           configViper.GetString("log.encoding"),
		SigningSecret:         configViper.GetString("auth.signing_secret"),
		TokenTTL:              time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		ReconcileInterval:     configViper.GetDuration("reconcile.interval"),
		ReconcileStoreTimeout: configViper.GetDuration("reconcile.store_timeout"),
		ReconcileConcurrency:  configViper.GetInt("reconcile.concurrency"),
		HealthInterval:        configViper.GetDuration("health.interval"),
		HealthProbeTimeout:    configViper.GetDuration("health.probe_timeout"),
		HealthProbePath:       configViper.GetString("health.probe_path"),
		HealthConcurrency:     configViper.GetInt("health.concurrency"),
		StreamHeartbeat:       configViper.GetDuration("stream.heartbeat"),
		BootstrapPairs:        bootstrap,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// ParseBootstrapPairs reads entries of the form "pairId=primary[,standby]".
func ParseBootstrapPairs(entries []string) ([]replicas.ServerPair, error) {
	pairs := make([]replicas.ServerPair, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pairID, addresses, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("replicas.bootstrap entry %q must look like pairId=primary,standby", entry)
		}
		primary, standby, _ := strings.Cut(addresses, ",")
		pair, err := replicas.NewServerPair(pairID, primary, standby)
		if err != nil {
			return nil, fmt.Errorf("replicas.bootstrap entry %q: %w", entry, err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	switch c.StoreDriver {
	case StoreDriverSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("store.driver must be %q or %q", StoreDriverSQLite, StoreDriverMemory)
	}
	if c.ReconcileInterval <= 0 || c.HealthInterval <= 0 {
		return fmt.Errorf("reconcile.interval and health.interval must be positive")
	}
	if c.ReconcileStoreTimeout <= 0 || c.HealthProbeTimeout <= 0 {
		return fmt.Errorf("reconcile.store_timeout and health.probe_timeout must be positive")
	}
	if c.ReconcileConcurrency <= 0 || c.HealthConcurrency <= 0 {
		return fmt.Errorf("reconcile.concurrency and health.concurrency must be positive")
	}
	if c.StreamHeartbeat <= 0 {
		return fmt.Errorf("stream.heartbeat must be positive")
	}
	return nil
}
