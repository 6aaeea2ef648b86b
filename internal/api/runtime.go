package api

import (
	"github.com/JaimeStill/sdgindex/internal/config"
	"github.com/JaimeStill/sdgindex/internal/export"
	"github.com/JaimeStill/sdgindex/internal/infrastructure"
	"github.com/JaimeStill/sdgindex/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	MaxUploadSize int64
	MaxListSize   int32
	Export        export.Writer
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle:  infra.Lifecycle,
			Logger:     infra.Logger.With("module", "api"),
			Database:   infra.Database,
			Storage:    infra.Storage,
			Classifier: infra.Classifier,
		},
		Pagination:    cfg.API.Pagination,
		MaxUploadSize: cfg.API.MaxUploadSizeBytes(),
		MaxListSize:   cfg.Storage.MaxListSize,
		Export:        export.Writer{School: cfg.Export.School},
	}
}
