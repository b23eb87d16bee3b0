package models

// Metadata is attached to every chunk. Values are strings or ints.
type Metadata map[string]any

// Clone returns a shallow copy so chunks of one document never share a map.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// FieldValue is one entry of a URI record field, e.g. {"value": "2020다123"}.
type FieldValue map[string]any

// URIRecord is a knowledge-base entry keyed by its subject URI.
type URIRecord struct {
	URI        string
	Properties map[string][]FieldValue
}

// FlatRecord is one row of the precedents dataset.
type FlatRecord map[string]any

// ExtractedDocument is the combined text of one record's fields of interest.
type ExtractedDocument struct {
	Text     string
	Metadata Metadata
}

// Chunk is a bounded slice of an ExtractedDocument. Metadata carries
// "chunk_index" only when the parent document was split.
type Chunk struct {
	Text     string
	Metadata Metadata
}

// IndexedItem is a chunk as written to the vector store.
type IndexedItem struct {
	ID        string
	Document  string
	Embedding []float32
	Metadata  Metadata
}

// Citation is a retrieved chunk prepared for display and prompting.
type Citation struct {
	Rank       int      `json:"rank"`
	Identifier string   `json:"identifier"`
	Preview    string   `json:"preview"`
	Text       string   `json:"text"`
	Metadata   Metadata `json:"metadata,omitempty"`
	Distance   float64  `json:"distance"`
}
