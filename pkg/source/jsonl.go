package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
)

const maxLine = 64 << 20

// JSONLPager reads a local JSON-lines export, one record per line.
// Blank lines are ignored.
type JSONLPager struct {
	path string
}

func NewJSONLPager(path string) *JSONLPager {
	return &JSONLPager{path: path}
}

func (p *JSONLPager) Len(ctx context.Context) (int, error) {
	n := 0
	err := p.scan(ctx, func(int, []byte) (bool, error) {
		n++
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *JSONLPager) Page(ctx context.Context, offset, limit int) ([]models.FlatRecord, error) {
	var recs []models.FlatRecord
	err := p.scan(ctx, func(i int, line []byte) (bool, error) {
		if i < offset {
			return true, nil
		}
		if i >= offset+limit {
			return false, nil
		}
		var rec models.FlatRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return false, fmt.Errorf("record %d: %w", i, err)
		}
		recs = append(recs, rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (p *JSONLPager) scan(ctx context.Context, fn func(i int, line []byte) (bool, error)) error {
	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSourceLoad, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), maxLine)

	i := 0
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := fn(i, line)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", types.ErrSourceLoad, p.path, err)
		}
		if !more {
			return nil
		}
		i++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrSourceLoad, p.path, err)
	}
	return nil
}
