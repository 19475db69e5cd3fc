package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/capacity"
	"github.com/tributary-ai/triage-router/internal/classify"
	"github.com/tributary-ai/triage-router/internal/config"
	"github.com/tributary-ai/triage-router/internal/middleware"
	"github.com/tributary-ai/triage-router/internal/quota"
	"github.com/tributary-ai/triage-router/internal/routing"
	"github.com/tributary-ai/triage-router/internal/scoring"
	"github.com/tributary-ai/triage-router/internal/security"
	"github.com/tributary-ai/triage-router/internal/selector"
	"github.com/tributary-ai/triage-router/internal/server"
	"github.com/tributary-ai/triage-router/internal/store"
)

// Application holds the wired engines and the HTTP front end.
type Application struct {
	config *config.Config
	server *server.Server
	logger *logrus.Logger
}

// NewApplication loads configuration and wires every component. The quota
// ledger, record store and decision store are owned here and passed into
// the engines by reference.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	ledger, err := buildLedger(cfg, logger)
	if err != nil {
		return nil, err
	}

	backing := store.NewMemoryStore()
	sel := selector.New(cfg.Providers.Catalog, cfg.Providers.Fallback, ledger, logger)
	tracker := capacity.NewTracker(backing, logger)
	scorer := scoring.NewScorer(cfg.Scoring)

	router := routing.NewRouter(cfg.Groups.Catalog, cfg.Groups.Default, tracker, scorer, backing, backing, backing, logger)
	router.SetBalancer(cfg.Balancer)
	router.SetRules(cfg.BuildRules())

	classifiers := buildClassifiers(cfg, logger)

	srv, err := server.NewServer(router, sel, classifiers, tracker, cfg.Groups.Catalog, cfg.Providers.Fallback, toServerConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		server: srv,
		logger: logger,
	}, nil
}

// buildLedger selects the quota backend from configuration.
func buildLedger(cfg *config.Config, logger *logrus.Logger) (quota.Ledger, error) {
	switch cfg.Quota.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Quota.RedisAddr,
			Password: cfg.Quota.RedisPassword,
			DB:       cfg.Quota.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Quota.RedisAddr, err)
		}

		logger.WithField("addr", cfg.Quota.RedisAddr).Info("Using Redis quota ledger")
		return quota.NewRedisLedger(client, cfg.Providers.Catalog, logger, quota.WithKeyPrefix(cfg.Quota.KeyPrefix)), nil
	default:
		logger.Info("Using in-memory quota ledger")
		return quota.NewMemoryLedger(cfg.Providers.Catalog, logger), nil
	}
}

// buildClassifiers registers one classifier backend per provider with
// credentials configured. The local rule-based backend is always present.
func buildClassifiers(cfg *config.Config, logger *logrus.Logger) *classify.Registry {
	registry := classify.NewRegistry()
	registry.Register("local", classify.NewRuleClassifier(cfg.Groups.Catalog, cfg.Groups.Default))

	categories := cfg.GroupIDs()
	if cfg.Classifiers.OpenAI != nil && cfg.Classifiers.OpenAI.APIKey != "" {
		registry.Register("openai", classify.NewOpenAIClassifier(cfg.Classifiers.OpenAI, categories, logger))
	}
	if cfg.Classifiers.Anthropic != nil && cfg.Classifiers.Anthropic.APIKey != "" {
		registry.Register("anthropic", classify.NewAnthropicClassifier(cfg.Classifiers.Anthropic, categories, logger))
	}
	return registry
}

// toServerConfig assembles the HTTP server configuration.
func toServerConfig(cfg *config.Config) *server.Config {
	return &server.Config{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		Validation: &middleware.ValidationConfig{
			Enabled:  cfg.Server.ValidationEnabled,
			SpecPath: cfg.Server.OpenAPISpecPath,
		},
		Auth: &security.Config{
			APIKeys:   cfg.Security.APIKeys,
			JWTSecret: cfg.Security.JWTSecret,
			JWTExpiry: cfg.Security.JWTExpiry,
		},
	}
}

// Run starts the application and blocks until shutdown.
func (app *Application) Run() error {
	app.logger.Info("Starting triage router")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		serverErrors <- app.server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	app.logger.Info("Shutdown complete")
	return nil
}

// setupLogger configures the global logger from config.
func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		app.logger.WithError(err).Fatal("Application exited with error")
	}
}
