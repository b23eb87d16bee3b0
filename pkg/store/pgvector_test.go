package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/lawrag/pkg/store"
)

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	url := os.Getenv("LAWRAG_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LAWRAG_TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		Backend:   "pgvector",
		URL:       url,
		VectorDim: 3,
	}
}

func TestPGVectorStore(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()

	s, err := store.New(ctx, config)
	require.NoError(t, err)
	defer s.Close()

	name := "test_" + uuid.NewString()[:8]
	coll, err := s.GetOrCreate(ctx, name)
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, testBatch()))
	// re-adding the same ids overwrites
	require.NoError(t, coll.Add(ctx, testBatch()))

	n, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := coll.Query(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "a", res.IDs[0])
	assert.Equal(t, "2020다1", res.Metadatas[0]["caseNumber"])
}
