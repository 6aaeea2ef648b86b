// Package checkpoint provides durable batch checkpoint stores backed by a local
// file, Redis, or blob storage.
package checkpoint

import (
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/goccy/go-json"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/pkg/storage"
)

// Checkpoint errors.
var (
	ErrCorrupt = errors.New("checkpoint is corrupt")
	ErrLocked  = errors.New("another batch run holds the lock")
)

// Store is a batch.CheckpointStore that owns external resources.
type Store interface {
	batch.CheckpointStore
	Close() error
}

// New creates the store selected by cfg. The blob backend requires blobs.
func New(cfg *Config, blobs Blobs, logger *slog.Logger) (Store, error) {
	logger = logger.With("system", "checkpoint", "backend", cfg.Backend)

	switch cfg.Backend {
	case BackendFile:
		return NewFile(cfg.Path), nil
	case BackendRedis:
		return NewRedis(cfg.RedisURL, cfg.Key)
	case BackendBlob:
		if blobs == nil {
			return nil, fmt.Errorf("blob backend: %w", storage.ErrNotConfigured)
		}
		return NewBlob(blobs, path.Join("checkpoints", cfg.Key+".json")), nil
	default:
		logger.Error("unknown checkpoint backend")
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

func encode(job batch.Job) ([]byte, error) {
	return json.Marshal(job)
}

func decode(data []byte) (*batch.Job, error) {
	var job batch.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if !job.Consistent() {
		return nil, fmt.Errorf("%w: processed %d of %d with %d results", ErrCorrupt, job.Processed, job.Total, len(job.Results))
	}
	return &job, nil
}
