package batch

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/naka-gawa/tap-mssql/internal/config"
	"github.com/naka-gawa/tap-mssql/internal/domain"
)

// Batcher turns record slices into jsonl batch files.
type Batcher struct {
	storage  Storage
	encoding domain.BatchEncoding
	prefix   string
	syncID   string
	size     int

	mu      sync.Mutex
	counter map[string]int
}

// NewBatcher returns a Batcher writing through storage. Each Batcher gets a
// fresh sync id so file names never collide across runs.
func NewBatcher(storage Storage, cfg *config.BatchConfig) *Batcher {
	return &Batcher{
		storage:  storage,
		encoding: domain.BatchEncoding{Format: cfg.Encoding.Format, Compression: cfg.Encoding.Compression},
		prefix:   cfg.Storage.Prefix,
		syncID:   uuid.NewString(),
		size:     cfg.BatchSize,
		counter:  make(map[string]int),
	}
}

// Encoding describes the files this Batcher writes.
func (b *Batcher) Encoding() domain.BatchEncoding {
	return b.encoding
}

// Size is the number of records per file.
func (b *Batcher) Size() int {
	return b.size
}

func (b *Batcher) nextName(stream string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.counter[stream]
	b.counter[stream] = n + 1
	name := fmt.Sprintf("%s%s--%s-%d.json", b.prefix, stream, b.syncID, n)
	if b.encoding.Compression == "gzip" {
		name += ".gz"
	}
	return name
}

// Write stores records as one file and returns its URL.
func (b *Batcher) Write(ctx context.Context, stream string, records []map[string]any) (string, error) {
	f, fileURL, err := b.storage.Create(ctx, b.nextName(stream))
	if err != nil {
		return "", err
	}

	var (
		w  io.Writer = f
		gz *gzip.Writer
	)
	if b.encoding.Compression == "gzip" {
		gz = gzip.NewWriter(f)
		w = gz
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to encode batch record: %w", err)
		}
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close batch file: %w", err)
	}
	return fileURL, nil
}
