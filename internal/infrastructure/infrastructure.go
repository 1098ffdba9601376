// Package infrastructure provides core service initialization for
// application startup. It assembles the shared dependencies (logging,
// database, blob storage, LLM clients) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/pkg/database"
	"github.com/wardenhq/warden/pkg/lifecycle"
	"github.com/wardenhq/warden/pkg/llm"
	"github.com/wardenhq/warden/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// It provides a single point of initialization for lifecycle coordination,
// logging, database access, blob storage, and the LLM transport.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System

	// Primary runs classification and the supporting analysis stages;
	// Verifier runs the secondary pass and arbitration. They may share a
	// model when no secondary model is configured.
	Primary  llm.Client
	Verifier llm.Client
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	primary, err := llm.NewAnthropic(&cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm init failed: %w", err)
	}

	verifierCfg := cfg.LLM
	verifierCfg.Model = cfg.LLM.Verifier()
	verifier, err := llm.NewAnthropic(&verifierCfg)
	if err != nil {
		return nil, fmt.Errorf("verifier llm init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Primary:   llm.WithRetry(primary, &cfg.LLM, logger),
		Verifier:  llm.WithRetry(verifier, &verifierCfg, logger),
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// Database and storage hooks are registered for startup and shutdown
// coordination; the LLM clients are stateless and need no hooks.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	return nil
}
