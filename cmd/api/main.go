package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jkim999/primary-care-consultant/internal/api"
	"github.com/jkim999/primary-care-consultant/internal/consultation"
	"github.com/jkim999/primary-care-consultant/internal/logger"
	"github.com/jkim999/primary-care-consultant/internal/policy"
	"github.com/jkim999/primary-care-consultant/internal/settings"
	stores "github.com/jkim999/primary-care-consultant/internal/stores/consultation"
	"github.com/jkim999/primary-care-consultant/pkg/agent"
	"github.com/jkim999/primary-care-consultant/pkg/utils"
)

// Start the API server
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := settings.Load(utils.NewConfigFromEnv(envFile), "")

	log := logger.New(cfg.LogLevel, logger.FormatJSON, nil)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("[API]: invalid configuration")
	}

	pol, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		log.WithError(err).Fatal("[API]: failed to load policy")
	}

	generator, err := agent.NewGenerator(cfg.Backend, cfg.GeneratorConfig())
	if err != nil {
		log.WithError(err).Fatal("[API]: failed to create generator")
	}

	store, err := stores.Open(cfg.Store, log)
	if err != nil {
		log.WithError(err).Fatal("[API]: failed to open consultation store")
	}
	defer store.Close()

	orchestrator, err := consultation.New(generator, pol, cfg.Config, store, log)
	if err != nil {
		log.WithError(err).Fatal("[API]: failed to create orchestrator")
	}

	server, err := api.NewServer(cfg, orchestrator, store, log)
	if err != nil {
		log.WithError(err).Fatal("[API]: failed to create server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.WithError(err).Error("[API]: server stopped")
	}
}
