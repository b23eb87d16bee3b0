// Package store provides the vector store backends: PostgreSQL with
// pgvector, a Chroma server via chroma-go, and an in-memory store.
package store

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
)

type VectorStoreConfig struct {
	Backend   string // pgvector | chroma | memory
	URL       string
	VectorDim int
}

// New opens the configured backend.
func New(ctx context.Context, config VectorStoreConfig) (types.VectorStore, error) {
	switch config.Backend {
	case "pgvector":
		return NewPGVectorStore(ctx, config)
	case "chroma", "":
		return NewChromaStore(config)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown vector store backend %q", config.Backend)
}

var collectionName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{1,62}$`)

func validateName(name string) error {
	if !collectionName.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// normalizeMetadata turns integral JSON numbers back into ints so that
// chunk_index reads the same from every backend.
func normalizeMetadata(m map[string]any) models.Metadata {
	out := make(models.Metadata, len(m))
	for k, v := range m {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[k] = int(f)
			continue
		}
		out[k] = v
	}
	return out
}
