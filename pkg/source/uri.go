// Package source loads precedent records: the URI-keyed knowledge-base
// export and the paginated precedents dataset.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
)

// LoadURIRecords reads a JSON object mapping subject URI to its
// properties. Records are returned in file order.
func LoadURIRecords(path string) ([]models.URIRecord, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no source file given", types.ErrSourceLoad)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceLoad, err)
	}
	defer f.Close()

	recs, err := decodeURIRecords(json.NewDecoder(bufio.NewReaderSize(f, 1<<20)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceLoad, path, err)
	}
	return recs, nil
}

// decodeURIRecords walks the top-level object token by token so the
// key order of the file survives.
func decodeURIRecords(dec *json.Decoder) ([]models.URIRecord, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var recs []models.URIRecord
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		uri, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}

		var props map[string][]models.FieldValue
		if err := dec.Decode(&props); err != nil {
			return nil, fmt.Errorf("record %s: %w", uri, err)
		}
		recs = append(recs, models.URIRecord{URI: uri, Properties: props})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return recs, nil
}
