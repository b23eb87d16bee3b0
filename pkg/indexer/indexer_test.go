package indexer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/lawrag/internal/logging"
	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
	"github.com/xhad/lawrag/pkg/indexer"
)

type recordingCollection struct {
	batches []types.Batch
	failAt  int
	calls   int
}

func (c *recordingCollection) Name() string { return "legal_docs" }

func (c *recordingCollection) Add(_ context.Context, b types.Batch) error {
	c.calls++
	if err := b.Validate(); err != nil {
		return err
	}
	if c.failAt > 0 && len(c.batches)+1 == c.failAt {
		return errors.New("quota exceeded")
	}
	c.batches = append(c.batches, b)
	return nil
}

func (c *recordingCollection) Query(context.Context, []float32, int) (types.QueryResult, error) {
	return types.QueryResult{}, nil
}

func (c *recordingCollection) Count(context.Context) (int, error) { return 0, nil }

func makeChunks(n int) ([]models.Chunk, [][]float32) {
	chunks := make([]models.Chunk, n)
	embs := make([][]float32, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			Text:     fmt.Sprintf("chunk-%d", i),
			Metadata: models.Metadata{"case_id": fmt.Sprint(i / 2), "chunk_index": i % 2},
		}
		embs[i] = []float32{float32(i)}
	}
	return chunks, embs
}

func TestPartition(t *testing.T) {
	for _, tc := range []struct {
		n, size, want int
	}{
		{0, 3, 0},
		{1, 3, 1},
		{3, 3, 1},
		{7, 3, 3},
		{100000, 41666, 3},
	} {
		ranges := indexer.Partition(tc.n, tc.size)
		require.Len(t, ranges, tc.want, "n=%d size=%d", tc.n, tc.size)

		next := 0
		for _, r := range ranges {
			assert.Equal(t, next, r.Start)
			assert.LessOrEqual(t, r.End-r.Start, tc.size)
			assert.Greater(t, r.End, r.Start)
			next = r.End
		}
		assert.Equal(t, tc.n, next)
	}
}

func TestIndexBatchesInOrder(t *testing.T) {
	chunks, embs := makeChunks(7)
	coll := &recordingCollection{}
	ix := indexer.NewWithConfig(indexer.IndexerConfig{MaxBatchSize: 3, Logger: logging.Discard()})

	require.NoError(t, ix.Index(context.Background(), coll, chunks, embs))
	require.Len(t, coll.batches, 3)
	assert.Equal(t, []int{3, 3, 1}, []int{coll.batches[0].Len(), coll.batches[1].Len(), coll.batches[2].Len()})

	seen := map[string]bool{}
	pos := 0
	for _, b := range coll.batches {
		for j := range b.IDs {
			// document, embedding and metadata stay aligned with their chunk
			assert.Equal(t, chunks[pos].Text, b.Documents[j])
			assert.Equal(t, embs[pos], b.Embeddings[j])
			assert.Equal(t, chunks[pos].Metadata, b.Metadatas[j])
			assert.False(t, seen[b.IDs[j]], "duplicate id %s", b.IDs[j])
			seen[b.IDs[j]] = true
			pos++
		}
	}
	assert.Equal(t, 7, pos)
}

func TestIndexStopsAtFailedBatch(t *testing.T) {
	chunks, embs := makeChunks(7)
	coll := &recordingCollection{failAt: 2}
	ix := indexer.NewWithConfig(indexer.IndexerConfig{MaxBatchSize: 3, MaxRetries: 1, Logger: logging.Discard()})

	err := ix.Index(context.Background(), coll, chunks, embs)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreWrite)

	var batchErr *indexer.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 1, batchErr.Index)
	assert.Equal(t, 3, batchErr.Size)

	// first batch stored, second tried twice, third never sent
	assert.Len(t, coll.batches, 1)
	assert.Equal(t, 3, coll.calls)
}

func TestIndexRejectsMisalignedInput(t *testing.T) {
	chunks, embs := makeChunks(3)
	coll := &recordingCollection{}
	ix := indexer.NewWithConfig(indexer.IndexerConfig{Logger: logging.Discard()})

	err := ix.Index(context.Background(), coll, chunks, embs[:2])
	assert.ErrorIs(t, err, types.ErrStoreWrite)
	assert.Zero(t, coll.calls)
}

func TestIDsAreUniqueAcrossRuns(t *testing.T) {
	chunks, embs := makeChunks(4)
	ix := indexer.NewWithConfig(indexer.IndexerConfig{Logger: logging.Discard()})

	first := ix.Build(chunks, embs)
	second := ix.Build(chunks, embs)

	ids := map[string]bool{}
	for _, id := range append(first.IDs, second.IDs...) {
		assert.False(t, ids[id])
		ids[id] = true
	}
}

func TestDeterministicIDs(t *testing.T) {
	chunks, embs := makeChunks(4)
	chunks = append(chunks, models.Chunk{Text: "no id", Metadata: models.Metadata{}})
	embs = append(embs, []float32{9})

	ix := indexer.NewWithConfig(indexer.IndexerConfig{IDStrategy: indexer.IDDeterministic, Logger: logging.Discard()})

	first := ix.Build(chunks, embs)
	second := ix.Build(chunks, embs)

	assert.Equal(t, first.IDs[:4], second.IDs[:4])
	assert.NotEqual(t, first.IDs[0], first.IDs[1], "chunk_index separates chunks of one case")
	assert.NotEqual(t, first.IDs[4], second.IDs[4], "records without identifier fall back to random ids")
}
