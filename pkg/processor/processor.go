package processor

import (
	"github.com/xhad/lawrag/internal/models"
)

// DefaultChunkSize is the window size in characters (Unicode code points).
const DefaultChunkSize = 1000

// ChunkIndexKey is added to a chunk's metadata only when its document was split.
const ChunkIndexKey = "chunk_index"

type ProcessorConfig struct {
	ChunkSize int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}

	return Processor{
		config: config,
	}
}

func (p *Processor) ChunkSize() int {
	return p.config.ChunkSize
}

// Process chunks every document, keeping document order.
func (p *Processor) Process(docs []models.ExtractedDocument) []models.Chunk {
	var chunks []models.Chunk

	for _, doc := range docs {
		chunks = append(chunks, p.Chunk(doc)...)
	}

	return chunks
}

// Chunk returns the document unchanged as a single chunk when it fits,
// including when it is empty. Longer documents are split into windows
// tagged with chunk_index.
func (p *Processor) Chunk(doc models.ExtractedDocument) []models.Chunk {
	runes := []rune(doc.Text)
	if len(runes) <= p.config.ChunkSize {
		return []models.Chunk{{Text: doc.Text, Metadata: doc.Metadata.Clone()}}
	}

	parts := splitRunes(runes, p.config.ChunkSize)
	chunks := make([]models.Chunk, len(parts))
	for i, part := range parts {
		meta := doc.Metadata.Clone()
		meta[ChunkIndexKey] = i
		chunks[i] = models.Chunk{Text: part, Metadata: meta}
	}

	return chunks
}

// SplitText cuts text into contiguous, non-overlapping windows of size
// code points. The last window may be shorter; empty text yields none.
func SplitText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return splitRunes([]rune(text), size)
}

func splitRunes(runes []rune, size int) []string {
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
