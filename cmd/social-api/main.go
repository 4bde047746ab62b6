package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/accounts"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/auth"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/config"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/database"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/logging"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/presence"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/pushbus"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/reconcile"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/replicas"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/schedule"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/server"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "social-api",
		Short: "Distributed social networking backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("store-driver", defaults.GetString("store.driver"), "Document store driver (sqlite, memory)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-encoding", defaults.GetString("log.encoding"), "Log encoding (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().Duration("reconcile-interval", defaults.GetDuration("reconcile.interval"), "Interval between reconciliation ticks")
	cmd.PersistentFlags().Duration("health-interval", defaults.GetDuration("health.interval"), "Interval between replica health checks")
	cmd.PersistentFlags().StringSlice("replica", nil, "Bootstrap replica pair as pairId=primary,standby (repeatable)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "store.driver", "store-driver")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.encoding", "log-encoding")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "reconcile.interval", "reconcile-interval")
	bindFlag(cmd, "health.interval", "health-interval")
	bindFlag(cmd, "replicas.bootstrap", "replica")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func openStore(appConfig config.AppConfig, logger *zap.Logger) (store.Store, func(), error) {
	if appConfig.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory document store; data is lost on exit")
		return store.NewMemoryStore(), func() {}, nil
	}
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	documentStore, err := store.NewSQLStore(store.SQLStoreConfig{Database: db})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return documentStore, func() { _ = sqlDB.Close() }, nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogEncoding)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	documentStore, closeStore, err := openStore(appConfig, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := replicas.NewRegistry(replicas.RegistryConfig{Store: documentStore, Logger: logger})
	if err != nil {
		return err
	}
	if len(appConfig.BootstrapPairs) > 0 {
		added, err := registry.Bootstrap(ctx, appConfig.BootstrapPairs)
		if err != nil {
			return err
		}
		if added > 0 {
			logger.Info("replica registry bootstrapped", zap.Int("pairs", added))
		}
	}
	allocator, err := replicas.NewAllocator(registry, logger)
	if err != nil {
		return err
	}
	monitor, err := replicas.NewHealthMonitor(replicas.HealthMonitorConfig{
		Registry: registry,
		Prober: replicas.NewHTTPProber(replicas.HTTPProberConfig{
			Path:    appConfig.HealthProbePath,
			Timeout: appConfig.HealthProbeTimeout,
		}),
		ProbeTimeout: appConfig.HealthProbeTimeout,
		Concurrency:  appConfig.HealthConcurrency,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	socialService, err := social.NewService(social.ServiceConfig{
		Store:      documentStore,
		Clock:      time.Now,
		IDProvider: social.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        auth.DefaultIssuer,
		Audience:      auth.DefaultAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Store:     documentStore,
		Allocator: allocator,
		Directory: socialService,
		Tokens:    tokenManager,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	tracker := presence.NewTracker()
	bus := pushbus.NewBus(pushbus.Config{Logger: logger})
	engine, err := reconcile.NewEngine(reconcile.Config{
		Repository:   socialService,
		Presence:     tracker,
		Publisher:    bus,
		StoreTimeout: appConfig.ReconcileStoreTimeout,
		Concurrency:  appConfig.ReconcileConcurrency,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	reconcileLoop, err := schedule.NewLoop("reconcile", appConfig.ReconcileInterval, func(tickCtx context.Context) {
		engine.Tick(tickCtx)
	}, logger)
	if err != nil {
		return err
	}
	healthLoop, err := schedule.NewLoop("replica-health", appConfig.HealthInterval, func(tickCtx context.Context) {
		_, _ = monitor.Tick(tickCtx)
	}, logger)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:          accountService,
		TokenManager:      tokenManager,
		Social:            socialService,
		Live:              engine,
		Registry:          registry,
		Resolver:          allocator,
		Presence:          tracker,
		Bus:               bus,
		HeartbeatInterval: appConfig.StreamHeartbeat,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loops := schedule.NewGroup(reconcileLoop, healthLoop)
	if err := loops.Start(signalCtx); err != nil {
		return err
	}
	defer loops.Stop()

	// Streams never go idle, so request contexts are cancelled before Shutdown.
	requestCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()
	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		loops.Stop()
		cancelRequests()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
