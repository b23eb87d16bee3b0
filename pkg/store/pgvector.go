package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/lawrag/internal/types"
)

// PGVectorStore keeps each collection in its own table.
type PGVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewPGVectorStore(ctx context.Context, config VectorStoreConfig) (*PGVectorStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 384 // all-minilm
	}

	pool, err := pgxpool.New(ctx, config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Enable pgvector extension
	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	return &PGVectorStore{
		config: config,
		pool:   pool,
	}, nil
}

func (vs *PGVectorStore) GetOrCreate(ctx context.Context, name string) (types.Collection, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	table := pgx.Identifier{name}.Sanitize()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d)
		)`, table, vs.config.VectorDim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := indexDDL(name, table)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &pgCollection{name: name, table: table, pool: vs.pool}, nil
}

// indexDDL builds the HNSW cosine index. HNSW needs no training rows and
// can be created on an empty table.
func indexDDL(name, table string) string {
	return fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		pgx.Identifier{name + "_embedding_idx"}.Sanitize(), table)
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

type pgCollection struct {
	name  string
	table string
	pool  *pgxpool.Pool
}

func (c *pgCollection) Name() string {
	return c.name
}

// Add writes the batch in one transaction.
func (c *pgCollection) Add(ctx context.Context, b types.Batch) error {
	if err := b.Validate(); err != nil {
		return err
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		c.table)

	batch := &pgx.Batch{}
	for i := range b.IDs {
		batch.Queue(stmt,
			b.IDs[i],
			sanitizeUTF8(b.Documents[i]),
			map[string]any(b.Metadatas[i]),
			pgvector.NewVector(b.Embeddings[i]),
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert %s: %w", b.IDs[i], err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (c *pgCollection) Query(ctx context.Context, embedding []float32, n int) (types.QueryResult, error) {
	var res types.QueryResult

	query := fmt.Sprintf(`
		SELECT id, document, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance
		LIMIT $2`,
		c.table)

	rows, err := c.pool.Query(ctx, query, pgvector.NewVector(embedding), n)
	if err != nil {
		return res, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, doc  string
			meta     map[string]any
			distance float64
		)
		if err := rows.Scan(&id, &doc, &meta, &distance); err != nil {
			return res, fmt.Errorf("failed to scan row: %w", err)
		}
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, normalizeMetadata(meta))
		res.Distances = append(res.Distances, distance)
	}

	return res, rows.Err()
}

func (c *pgCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", c.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// sanitizeUTF8 drops invalid bytes, which PostgreSQL TEXT rejects.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
