package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/pkg/storage"
)

// Blobs is the subset of storage.System used by the blob store.
type Blobs interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (*storage.BlobResult, error)
	Delete(ctx context.Context, key string) error
}

// Blob stores the checkpoint as a JSON blob.
type Blob struct {
	blobs Blobs
	key   string
}

// NewBlob creates a Blob store at key.
func NewBlob(blobs Blobs, key string) *Blob {
	return &Blob{blobs: blobs, key: key}
}

func (b *Blob) Load(ctx context.Context) (*batch.Job, error) {
	res, err := b.blobs.Download(ctx, b.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("download checkpoint: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return decode(data)
}

func (b *Blob) Save(ctx context.Context, job batch.Job) error {
	data, err := encode(job)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return b.blobs.Upload(ctx, b.key, bytes.NewReader(data), "application/json")
}

func (b *Blob) Clear(ctx context.Context) error {
	if err := b.blobs.Delete(ctx, b.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (b *Blob) Close() error { return nil }
