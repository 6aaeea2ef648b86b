// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, database, storage, classifier) that domain systems require.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/sdgindex/internal/classifier"
	"github.com/JaimeStill/sdgindex/internal/config"
	"github.com/JaimeStill/sdgindex/pkg/database"
	"github.com/JaimeStill/sdgindex/pkg/lifecycle"
	"github.com/JaimeStill/sdgindex/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
// Storage is nil when no connection string is configured.
type Infrastructure struct {
	Lifecycle  *lifecycle.Coordinator
	Logger     *slog.Logger
	Database   database.System
	Storage    storage.System
	Classifier classifier.Client
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	var store storage.System
	if cfg.Storage.Configured() {
		store, err = storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
	} else {
		logger.Info("blob storage not configured, export archives disabled")
	}

	return &Infrastructure{
		Lifecycle:  lc,
		Logger:     logger,
		Database:   db,
		Storage:    store,
		Classifier: classifier.New(cfg.Classifier, logger),
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// The database gates readiness; an unreachable classifier is only logged.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	i.Lifecycle.Require(i.Database)

	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}

	i.Lifecycle.OnStartup(func() {
		if err := i.Classifier.Connect(i.Lifecycle.Context()); err != nil {
			i.Logger.Warn("classifier unreachable at startup", "error", err)
			return
		}
		i.Logger.Info("classifier reachable")
	})
	return nil
}
