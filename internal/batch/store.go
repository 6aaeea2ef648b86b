package batch

import (
	"context"
	"slices"
	"sync"
)

// CheckpointStore persists the in-progress job. Load returns nil with no error
// when no checkpoint exists. The controller is the only writer.
type CheckpointStore interface {
	Load(ctx context.Context) (*Job, error)
	Save(ctx context.Context, job Job) error
	Clear(ctx context.Context) error
}

// MemoryStore is a process-local CheckpointStore.
type MemoryStore struct {
	mu  sync.Mutex
	job *Job
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil {
		return nil, nil
	}
	job := clone(*s.job)
	return &job, nil
}

func (s *MemoryStore) Save(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := clone(job)
	s.job = &saved
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.job = nil
	return nil
}

func clone(job Job) Job {
	job.Selection = slices.Clone(job.Selection)
	job.Results = slices.Clone(job.Results)
	return job
}
