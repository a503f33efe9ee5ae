// Package main contains the entrypoint for the CareConnector assistant gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/careconnector/gateway/internal/app"
	"github.com/careconnector/gateway/internal/chat"
	"github.com/careconnector/gateway/internal/config"
	"github.com/careconnector/gateway/internal/database"
	"github.com/careconnector/gateway/internal/gemini"
	"github.com/careconnector/gateway/internal/instruction"
	"github.com/careconnector/gateway/internal/logger"
	"github.com/careconnector/gateway/internal/policy"
	"github.com/careconnector/gateway/internal/profile"
	"github.com/careconnector/gateway/internal/relay"
	"github.com/careconnector/gateway/internal/resilience"
	"github.com/careconnector/gateway/internal/scheduler"
	"github.com/careconnector/gateway/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires all components, serves until ctx is cancelled and returns the
// process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	tmpl, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		log.Error("Failed to load safety policy", "path", cfg.Policy.Path, "error", err)
		return 1
	}

	db, err := database.Open(cfg.Database.Path, log)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.Close(db, log)
	store := database.NewStore(db, log)

	if err := database.SeedProfiles(ctx, store, cfg.Database.SeedFile, log); err != nil {
		log.Error("Failed to seed user profiles", "path", cfg.Database.SeedFile, "error", err)
		return 1
	}

	generator, err := gemini.NewGenerator(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	accessor := profile.NewAccessor(store, log)
	builder := instruction.NewBuilder(tmpl, accessor, log)

	router := chat.NewRouter(chat.Options{
		Builder:   builder,
		Generator: generator,
		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:          "gemini",
			MaxFailures:   cfg.Breaker.MaxFailures,
			Timeout:       cfg.Gemini.Timeout,
			ResetInterval: cfg.Breaker.ResetInterval,
			Logger:        log,
		}),
		BaseConfig:   gemini.BaseContentConfig(cfg.Gemini),
		DefaultModel: cfg.Gemini.ModelName,
		Timeout:      cfg.Gemini.Timeout,
		Logger:       log,
	})

	mailer := relay.New(cfg.Relay, accessor, log, relay.WithBreaker(
		resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:          "email_relay",
			MaxFailures:   cfg.Breaker.MaxFailures,
			Timeout:       cfg.Relay.Timeout,
			ResetInterval: cfg.Breaker.ResetInterval,
			IsFailure:     func(err error) bool { return !relay.IsClientFailure(err) },
			Logger:        log,
		}),
	))
	if !mailer.Configured() {
		log.Warn("Email relay base URL not set; send-email requests will be rejected")
	}

	srv := server.New(cfg, server.Deps{
		Profiles: accessor,
		Chat:     router,
		Mailer:   mailer,
		Store:    store,
	}, log)

	sched, err := scheduler.New(log, &cfg.Scheduler, scheduler.RegisterAllTasks(scheduler.TaskDeps{
		Logger: log,
		Store:  store,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	runErr := app.New(log, srv, sched).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Gateway stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Gateway stopped gracefully.")
	return 0
}
