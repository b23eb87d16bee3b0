package types

import "errors"

// Error kinds shared by the ingestion and query paths. Callers wrap them
// with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrSourceLoad = errors.New("source load failed")
	ErrEmbedding  = errors.New("embedding failed")
	ErrStoreWrite = errors.New("vector store write failed")
	ErrStoreQuery = errors.New("vector store query failed")
	ErrCompletion = errors.New("completion failed")
)
