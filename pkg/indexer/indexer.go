// Package indexer writes embedded chunks to a collection in bounded,
// ordered batches.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/retry"
	"github.com/xhad/lawrag/internal/types"
)

// DefaultMaxBatchSize matches Chroma's max_batch_size on its SQLite backend.
const DefaultMaxBatchSize = 41666

const (
	IDRandom        = "random"
	IDDeterministic = "deterministic"
)

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/xhad/lawrag/chunk"))

// Range is a half-open [Start, End) span of item positions.
type Range struct {
	Start, End int
}

// Partition splits n items into ceil(n/size) contiguous ranges in order.
func Partition(n, size int) []Range {
	if size <= 0 {
		size = DefaultMaxBatchSize
	}
	var out []Range
	for start := 0; start < n; start += size {
		out = append(out, Range{Start: start, End: min(start+size, n)})
	}
	return out
}

// BatchError reports the batch that failed. Earlier batches are already
// stored.
type BatchError struct {
	Index int
	Size  int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%v: batch %d (%d chunks): %v", types.ErrStoreWrite, e.Index, e.Size, e.Err)
}

func (e *BatchError) Unwrap() []error {
	return []error{types.ErrStoreWrite, e.Err}
}

type IndexerConfig struct {
	MaxBatchSize   int
	MaxRetries     int
	IDStrategy     string
	IdentifierKeys []string
	Logger         *slog.Logger
}

type Indexer struct {
	config IndexerConfig
	logger *slog.Logger
}

func NewWithConfig(config IndexerConfig) *Indexer {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	if config.IDStrategy == "" {
		config.IDStrategy = IDRandom
	}
	if len(config.IdentifierKeys) == 0 {
		config.IdentifierKeys = []string{"caseNumber", "case_id"}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{config: config, logger: logger}
}

// Index assigns an id to every chunk and adds them to coll one batch at a
// time. It stops at the first batch that still fails after retries.
func (ix *Indexer) Index(ctx context.Context, coll types.Collection, chunks []models.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks but %d embeddings", types.ErrStoreWrite, len(chunks), len(embeddings))
	}

	all := ix.Build(chunks, embeddings)
	policy := retry.Policy{MaxRetries: ix.config.MaxRetries}

	for i, r := range Partition(all.Len(), ix.config.MaxBatchSize) {
		batch := all.Slice(r.Start, r.End)

		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			return coll.Add(ctx, batch)
		})
		if err != nil {
			ix.logger.Error("batch insert failed", "collection", coll.Name(), "batch", i, "chunks", batch.Len(), "error", err)
			return &BatchError{Index: i, Size: batch.Len(), Err: err}
		}

		ix.logger.Info(fmt.Sprintf("batch %d: %d chunks", i, batch.Len()), "collection", coll.Name())
	}

	return nil
}

// Build lays chunks out as one aligned batch with fresh ids.
func (ix *Indexer) Build(chunks []models.Chunk, embeddings [][]float32) types.Batch {
	b := types.Batch{
		IDs:        make([]string, len(chunks)),
		Documents:  make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadatas:  make([]models.Metadata, len(chunks)),
	}
	for i, c := range chunks {
		b.IDs[i] = ix.id(c)
		b.Documents[i] = c.Text
		b.Embeddings[i] = embeddings[i]
		b.Metadatas[i] = c.Metadata.Clone()
	}
	return b
}

func (ix *Indexer) id(c models.Chunk) string {
	if ix.config.IDStrategy != IDDeterministic {
		return uuid.New().String()
	}

	for _, key := range ix.config.IdentifierKeys {
		v, ok := c.Metadata[key]
		if !ok || fmt.Sprint(v) == "" {
			continue
		}
		idx := 0
		if n, ok := c.Metadata["chunk_index"].(int); ok {
			idx = n
		}
		return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%v#%d", v, idx))).String()
	}
	return uuid.New().String()
}
