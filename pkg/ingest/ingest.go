// Package ingest drives record loading, extraction, chunking, embedding
// and indexing for the two source kinds.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
	"github.com/xhad/lawrag/pkg/extractor"
	"github.com/xhad/lawrag/pkg/indexer"
	"github.com/xhad/lawrag/pkg/processor"
	"github.com/xhad/lawrag/pkg/source"
)

// Mode is the failure policy of a driver.
type Mode string

const (
	// ModeFatal aborts the run on the first error.
	ModeFatal Mode = "fatal"
	// ModeSkipPage logs embedding and insert failures and moves on to the
	// next page. Load failures still abort.
	ModeSkipPage Mode = "skip-page"
)

const DefaultPageSize = 10000

// Progress is called after each unit of work with done out of total.
type Progress func(done, total int)

// Report summarises a run.
type Report struct {
	Mode         Mode
	Records      int
	Documents    int
	Chunks       int
	Pages        int
	SkippedPages []int
}

// Pipeline holds the stages shared by both drivers.
type Pipeline struct {
	Extractor  extractor.Extractor
	Processor  processor.Processor
	Embedder   types.Embedder
	Indexer    *indexer.Indexer
	Collection types.Collection
	Logger     *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// store chunks documents, embeds the chunks and writes them.
func (p *Pipeline) store(ctx context.Context, docs []models.ExtractedDocument) (int, error) {
	chunks := p.Processor.Process(docs)
	p.logger().Info("chunked", "documents", len(docs), "chunks", len(chunks))
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := p.Embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		if !errors.Is(err, types.ErrEmbedding) {
			err = fmt.Errorf("%w: %v", types.ErrEmbedding, err)
		}
		return 0, err
	}
	p.logger().Info("embedded", "chunks", len(embeddings))

	if err := p.Indexer.Index(ctx, p.Collection, chunks, embeddings); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// FileIngestor loads one URI-keyed JSON export. Every error is fatal.
type FileIngestor struct {
	Pipeline
	Progress Progress
}

func (f *FileIngestor) Run(ctx context.Context, path string) (Report, error) {
	report := Report{Mode: ModeFatal}
	log := f.logger().With("mode", ModeFatal, "source", path)

	recs, err := source.LoadURIRecords(path)
	if err != nil {
		log.Error("failed to load source", "error", err)
		return report, err
	}
	report.Records = len(recs)
	log.Info("loaded source", "records", len(recs))

	docs := f.Extractor.ExtractURIRecords(recs)
	report.Documents = len(docs)
	log.Info("extracted", "documents", len(docs))

	n, err := f.store(ctx, docs)
	if err != nil {
		log.Error("ingestion aborted", "error", err)
		return report, err
	}
	report.Chunks = n
	report.Pages = 1
	if f.Progress != nil {
		f.Progress(1, 1)
	}

	log.Info("ingestion finished", "chunks", n)
	return report, nil
}

// DatasetIngestor walks a paginated dataset, skipping pages that fail to
// embed or insert.
type DatasetIngestor struct {
	Pipeline
	PageSize int
	Progress Progress
}

func (d *DatasetIngestor) Run(ctx context.Context, pager source.Pager) (Report, error) {
	report := Report{Mode: ModeSkipPage}
	log := d.logger().With("mode", ModeSkipPage)

	size := d.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	total, err := pager.Len(ctx)
	if err != nil {
		log.Error("failed to load dataset", "error", err)
		return report, err
	}
	pages := (total + size - 1) / size
	log.Info("loaded dataset", "records", total, "pages", pages)

	for page := 0; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		offset := page * size
		recs, err := pager.Page(ctx, offset, min(size, total-offset))
		if err != nil {
			log.Error("failed to load page", "page", page, "error", err)
			return report, err
		}
		report.Records += len(recs)

		docs := d.Extractor.ExtractFlatRecords(recs)
		report.Documents += len(docs)

		n, err := d.store(ctx, docs)
		report.Pages++
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			log.Error("skipping page", "page", page, "offset", offset, "error", err)
			report.SkippedPages = append(report.SkippedPages, page)
		} else {
			report.Chunks += n
			log.Info("page stored", "page", page, "offset", offset, "records", len(recs), "chunks", n)
		}

		if d.Progress != nil {
			d.Progress(page+1, pages)
		}
	}

	log.Info("ingestion finished", "pages", report.Pages, "skipped", len(report.SkippedPages), "chunks", report.Chunks)
	return report, nil
}
