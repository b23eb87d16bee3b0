package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xhad/lawrag/internal/types"
	cfgPkg "github.com/xhad/lawrag/pkg/config"
	"github.com/xhad/lawrag/pkg/extractor"
	"github.com/xhad/lawrag/pkg/indexer"
	"github.com/xhad/lawrag/pkg/ingest"
	"github.com/xhad/lawrag/pkg/llm"
	"github.com/xhad/lawrag/pkg/processor"
	"github.com/xhad/lawrag/pkg/rag"
	"github.com/xhad/lawrag/pkg/store"
)

// app owns the long-lived clients for one command invocation.
type app struct {
	cfg      *cfgPkg.Config
	logger   *slog.Logger
	embedder types.Embedder
	store    types.VectorStore
	coll     types.Collection
}

func openApp(ctx context.Context, cfg *cfgPkg.Config, logger *slog.Logger) (*app, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:   cfg.Embedder.Provider,
		Model:      cfg.Embedder.Model,
		BaseURL:    cfg.Embedder.BaseURL,
		BatchSize:  cfg.Embedder.BatchSize,
		RateLimit:  cfg.Embedder.RateLimit,
		MaxRetries: *cfg.Embedder.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vs, err := store.New(ctx, store.VectorStoreConfig{
		Backend:   cfg.Store.Backend,
		URL:       cfg.Store.URL,
		VectorDim: cfg.Store.VectorDim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	coll, err := vs.GetOrCreate(ctx, cfg.Store.Collection)
	if err != nil {
		vs.Close()
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}

	logger.Debug("clients ready",
		"embedder", cfg.Embedder.Provider,
		"model", cfg.Embedder.Model,
		"store", cfg.Store.Backend,
		"collection", coll.Name(),
	)

	return &app{cfg: cfg, logger: logger, embedder: embedder, store: vs, coll: coll}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func (a *app) pipeline() ingest.Pipeline {
	return ingest.Pipeline{
		Extractor: extractor.NewWithConfig(extractor.ExtractorConfig{
			URIFields:   a.cfg.Extractor.URIFields,
			FlatFields:  a.cfg.Extractor.FlatFields,
			StripMarkup: a.cfg.Extractor.StripMarkup,
		}),
		Processor: processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize: a.cfg.Processor.ChunkSize,
		}),
		Embedder: a.embedder,
		Indexer: indexer.NewWithConfig(indexer.IndexerConfig{
			MaxBatchSize:   a.cfg.Store.BatchSize,
			MaxRetries:     *a.cfg.Store.MaxRetries,
			IDStrategy:     a.cfg.Ingest.IDStrategy,
			IdentifierKeys: a.cfg.Retrieval.IdentifierKeys,
			Logger:         a.logger,
		}),
		Collection: a.coll,
		Logger:     a.logger,
	}
}

// asker builds the query pipeline. model overrides the configured LLM
// model when set.
func (a *app) asker(model string) (*rag.Pipeline, error) {
	completer, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    a.cfg.LLM.Provider,
		Model:       a.cfg.LLM.Model,
		Temperature: *a.cfg.LLM.Temperature,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		BaseURL:     a.cfg.LLM.BaseURL,
		Command:     a.cfg.LLM.Command,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	opts := []rag.Option{rag.WithModel(model)}
	if a.cfg.LLM.CountTokens {
		opts = append(opts, rag.WithTokenCounter(llm.NewTokenCounter()))
	}

	return &rag.Pipeline{
		Retriever: rag.NewRetriever(a.embedder, a.coll, rag.RetrieverConfig{
			TopK:           a.cfg.Retrieval.TopK,
			PreviewLength:  a.cfg.Retrieval.PreviewLength,
			IdentifierKeys: a.cfg.Retrieval.IdentifierKeys,
		}, a.logger),
		Composer: rag.NewComposer(completer, a.logger, opts...),
	}, nil
}

func (a *app) requestTimeout() time.Duration {
	return time.Duration(a.cfg.Server.RequestTimeoutSeconds) * time.Second
}
