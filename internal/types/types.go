package types

import (
	"context"
	"fmt"

	"github.com/xhad/lawrag/internal/models"
)

// Core interfaces

// Embedder maps texts to fixed-dimension vectors, one per input, in order.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer turns a prompt into generated text. An empty model selects
// the binding's default.
type Completer interface {
	Complete(ctx context.Context, prompt string, model string) (string, error)
}

type VectorStore interface {
	GetOrCreate(ctx context.Context, name string) (Collection, error)
	Close()
}

type Collection interface {
	Name() string
	Add(ctx context.Context, batch Batch) error
	Query(ctx context.Context, embedding []float32, n int) (QueryResult, error)
	Count(ctx context.Context) (int, error)
}

// Batch holds index-aligned slices for a single insert call.
type Batch struct {
	IDs        []string
	Documents  []string
	Embeddings [][]float32
	Metadatas  []models.Metadata
}

func (b Batch) Len() int {
	return len(b.IDs)
}

// Validate reports a batch whose parallel slices disagree in length.
func (b Batch) Validate() error {
	n := len(b.IDs)
	if len(b.Documents) != n || len(b.Embeddings) != n || len(b.Metadatas) != n {
		return fmt.Errorf("misaligned batch: ids=%d documents=%d embeddings=%d metadatas=%d",
			n, len(b.Documents), len(b.Embeddings), len(b.Metadatas))
	}
	return nil
}

// Slice returns the items in [start, end) of every parallel slice.
func (b Batch) Slice(start, end int) Batch {
	return Batch{
		IDs:        b.IDs[start:end],
		Documents:  b.Documents[start:end],
		Embeddings: b.Embeddings[start:end],
		Metadatas:  b.Metadatas[start:end],
	}
}

// QueryResult holds the nearest neighbours of one query, closest first.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []models.Metadata
	Distances []float64
}

func (r QueryResult) Len() int {
	return len(r.Documents)
}
