package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	chromago "github.com/amikos-tech/chroma-go"
	chromatypes "github.com/amikos-tech/chroma-go/types"

	"github.com/xhad/lawrag/internal/types"
)

var errPrecomputed = errors.New("chroma: embeddings are computed by the caller")

// ChromaStore talks to a Chroma server. Chunks always arrive with their
// embeddings, so the collection's embedding function is never used.
type ChromaStore struct {
	client *chromago.Client
}

func NewChromaStore(config VectorStoreConfig) (*ChromaStore, error) {
	u, err := url.Parse(config.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid chroma url %q", config.URL)
	}

	client, err := chromago.NewClient(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}
	return &ChromaStore{client: client}, nil
}

func (s *ChromaStore) GetOrCreate(ctx context.Context, name string) (types.Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	col, err := s.client.CreateCollection(ctx, name, map[string]any{}, true, precomputed{}, chromatypes.COSINE)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create collection %s: %w", name, err)
	}
	return &chromaCollection{col: col, name: name}, nil
}

func (s *ChromaStore) Close() {}

type chromaCollection struct {
	col  *chromago.Collection
	name string
}

func (c *chromaCollection) Name() string {
	return c.name
}

func (c *chromaCollection) Add(ctx context.Context, b types.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	metadatas := make([]map[string]any, len(b.Metadatas))
	for i, m := range b.Metadatas {
		metadatas[i] = map[string]any(m.Clone())
	}

	_, err := c.col.Add(ctx, toChromaEmbeddings(b.Embeddings), metadatas, b.Documents, b.IDs)
	return err
}

func (c *chromaCollection) Query(ctx context.Context, embedding []float32, n int) (types.QueryResult, error) {
	qr, err := c.col.QueryWithOptions(ctx,
		chromatypes.WithQueryEmbeddings(toChromaEmbeddings([][]float32{embedding})),
		chromatypes.WithNResults(int32(max(0, n))),
		chromatypes.WithInclude(chromatypes.IDocuments, chromatypes.IMetadatas, chromatypes.IDistances),
	)
	if err != nil {
		return types.QueryResult{}, err
	}
	return fromChromaResults(qr.Ids, qr.Documents, qr.Metadatas, qr.Distances), nil
}

func (c *chromaCollection) Count(ctx context.Context) (int, error) {
	n, err := c.col.Count(ctx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func toChromaEmbeddings(vs [][]float32) []*chromatypes.Embedding {
	out := make([]*chromatypes.Embedding, len(vs))
	for i, v := range vs {
		out[i] = chromatypes.NewEmbeddingFromFloat32(v)
	}
	return out
}

// fromChromaResults flattens the first row of a single-embedding query.
func fromChromaResults(ids, docs [][]string, metas [][]map[string]any, dists [][]float32) types.QueryResult {
	var res types.QueryResult
	if len(ids) == 0 {
		return res
	}

	for i, id := range ids[0] {
		res.IDs = append(res.IDs, id)

		doc := ""
		if len(docs) > 0 && i < len(docs[0]) {
			doc = docs[0][i]
		}
		res.Documents = append(res.Documents, doc)

		var meta map[string]any
		if len(metas) > 0 && i < len(metas[0]) {
			meta = metas[0][i]
		}
		res.Metadatas = append(res.Metadatas, normalizeMetadata(meta))

		var dist float64
		if len(dists) > 0 && i < len(dists[0]) {
			dist = float64(dists[0][i])
		}
		res.Distances = append(res.Distances, dist)
	}
	return res
}

// precomputed satisfies chroma's EmbeddingFunction and refuses to embed.
type precomputed struct{}

func (precomputed) EmbedDocuments(context.Context, []string) ([]*chromatypes.Embedding, error) {
	return nil, errPrecomputed
}

func (precomputed) EmbedQuery(context.Context, string) (*chromatypes.Embedding, error) {
	return nil, errPrecomputed
}

func (precomputed) EmbedRecords(context.Context, []*chromatypes.Record, bool) error {
	return errPrecomputed
}
