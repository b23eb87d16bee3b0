// Package rag answers questions from the indexed precedents: it retrieves
// the nearest chunks and composes the completion prompt.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
)

// UnknownIdentifier labels citations whose metadata has no identifier.
const UnknownIdentifier = "알 수 없음"

type RetrieverConfig struct {
	TopK           int
	PreviewLength  int
	IdentifierKeys []string
}

type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	coll     types.Collection
	logger   *slog.Logger
}

func NewRetriever(embedder types.Embedder, coll types.Collection, config RetrieverConfig, logger *slog.Logger) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if config.PreviewLength <= 0 {
		config.PreviewLength = 500
	}
	if len(config.IdentifierKeys) == 0 {
		config.IdentifierKeys = []string{"caseNumber", "case_id"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{config: config, embedder: embedder, coll: coll, logger: logger}
}

// Retrieve returns up to k citations ranked by similarity to query. A k of
// zero or less uses the configured default. An empty collection yields an
// empty list, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Citation, error) {
	if k <= 0 {
		k = r.config.TopK
	}

	vecs, err := r.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", types.ErrEmbedding, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: query: got %d vectors", types.ErrEmbedding, len(vecs))
	}

	res, err := r.coll.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStoreQuery, err)
	}

	citations := make([]models.Citation, 0, res.Len())
	for i, doc := range res.Documents {
		var meta models.Metadata
		if i < len(res.Metadatas) {
			meta = res.Metadatas[i]
		}
		var dist float64
		if i < len(res.Distances) {
			dist = res.Distances[i]
		}
		citations = append(citations, models.Citation{
			Rank:       i + 1,
			Identifier: r.identifier(meta),
			Preview:    Preview(doc, r.config.PreviewLength),
			Text:       doc,
			Metadata:   meta,
			Distance:   dist,
		})
	}

	r.logger.Debug("retrieved", "query_len", len([]rune(query)), "k", k, "hits", len(citations))
	return citations, nil
}

func (r *Retriever) identifier(meta models.Metadata) string {
	for _, key := range r.config.IdentifierKeys {
		if v, ok := meta[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
	}
	return UnknownIdentifier
}

// Preview returns the first n code points of text.
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
