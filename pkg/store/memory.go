package store

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
)

// MemoryStore is an in-process store using brute-force cosine distance.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, name string) (types.Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{name: name, index: make(map[string]int)}
		s.collections[name] = c
	}
	return c, nil
}

func (s *MemoryStore) Close() {}

type memoryCollection struct {
	mu    sync.RWMutex
	name  string
	index map[string]int
	items []models.IndexedItem
}

func (c *memoryCollection) Name() string {
	return c.name
}

// Add upserts by id.
func (c *memoryCollection) Add(_ context.Context, b types.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, id := range b.IDs {
		item := models.IndexedItem{
			ID:        id,
			Document:  b.Documents[i],
			Embedding: b.Embeddings[i],
			Metadata:  b.Metadatas[i].Clone(),
		}
		if j, ok := c.index[id]; ok {
			c.items[j] = item
			continue
		}
		c.index[id] = len(c.items)
		c.items = append(c.items, item)
	}
	return nil
}

func (c *memoryCollection) Query(_ context.Context, embedding []float32, n int) (types.QueryResult, error) {
	var res types.QueryResult
	if n <= 0 {
		return res, errors.New("n must be positive")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	type scored struct {
		i    int
		dist float64
	}
	scores := make([]scored, len(c.items))
	for i, item := range c.items {
		scores[i] = scored{i: i, dist: cosineDistance(item.Embedding, embedding)}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].dist < scores[b].dist })

	if n > len(scores) {
		n = len(scores)
	}
	for _, s := range scores[:n] {
		item := c.items[s.i]
		res.IDs = append(res.IDs, item.ID)
		res.Documents = append(res.Documents, item.Document)
		res.Metadatas = append(res.Metadatas, item.Metadata.Clone())
		res.Distances = append(res.Distances, s.dist)
	}
	return res, nil
}

func (c *memoryCollection) Count(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items), nil
}

func cosineDistance(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
