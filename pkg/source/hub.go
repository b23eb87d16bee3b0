package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/retry"
	"github.com/xhad/lawrag/internal/types"
)

// Pager reads a flat-record dataset a page at a time.
type Pager interface {
	Len(ctx context.Context) (int, error)
	Page(ctx context.Context, offset, limit int) ([]models.FlatRecord, error)
}

type HubConfig struct {
	Endpoint       string
	Dataset        string
	Config         string
	Split          string
	RowsPerRequest int
	RateLimit      float64
	Token          string
}

// HubPager reads rows from the Hugging Face datasets-server API, which
// serves at most 100 rows per request.
type HubPager struct {
	config  HubConfig
	client  *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
}

func NewHubPager(config HubConfig) *HubPager {
	if config.Endpoint == "" {
		config.Endpoint = "https://datasets-server.huggingface.co"
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")
	if config.Config == "" {
		config.Config = "default"
	}
	if config.Split == "" {
		config.Split = "train"
	}
	if config.RowsPerRequest <= 0 || config.RowsPerRequest > 100 {
		config.RowsPerRequest = 100
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &HubPager{
		config:  config,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
		policy:  retry.Policy{MaxRetries: 3, BaseDelay: time.Second},
	}
}

// Len returns the number of rows in the configured split.
func (p *HubPager) Len(ctx context.Context) (int, error) {
	var resp struct {
		Size struct {
			Splits []struct {
				Config  string `json:"config"`
				Split   string `json:"split"`
				NumRows int    `json:"num_rows"`
			} `json:"splits"`
		} `json:"size"`
	}

	q := url.Values{"dataset": {p.config.Dataset}}
	if err := p.get(ctx, "/size", q, &resp); err != nil {
		return 0, fmt.Errorf("%w: dataset size: %v", types.ErrSourceLoad, err)
	}

	for _, s := range resp.Size.Splits {
		if s.Config == p.config.Config && s.Split == p.config.Split {
			return s.NumRows, nil
		}
	}
	return 0, fmt.Errorf("%w: split %s/%s not found in %s", types.ErrSourceLoad, p.config.Config, p.config.Split, p.config.Dataset)
}

// Page fetches rows [offset, offset+limit), issuing as many requests as
// the per-request row cap needs. A short read means the split ended.
func (p *HubPager) Page(ctx context.Context, offset, limit int) ([]models.FlatRecord, error) {
	recs := make([]models.FlatRecord, 0, limit)

	for len(recs) < limit {
		length := min(p.config.RowsPerRequest, limit-len(recs))
		rows, err := p.rows(ctx, offset+len(recs), length)
		if err != nil {
			return nil, fmt.Errorf("%w: rows at offset %d: %v", types.ErrSourceLoad, offset+len(recs), err)
		}
		recs = append(recs, rows...)
		if len(rows) < length {
			break
		}
	}

	return recs, nil
}

func (p *HubPager) rows(ctx context.Context, offset, length int) ([]models.FlatRecord, error) {
	var resp struct {
		Rows []struct {
			RowIdx int               `json:"row_idx"`
			Row    models.FlatRecord `json:"row"`
		} `json:"rows"`
	}

	q := url.Values{
		"dataset": {p.config.Dataset},
		"config":  {p.config.Config},
		"split":   {p.config.Split},
		"offset":  {strconv.Itoa(offset)},
		"length":  {strconv.Itoa(length)},
	}
	if err := p.get(ctx, "/rows", q, &resp); err != nil {
		return nil, err
	}

	out := make([]models.FlatRecord, len(resp.Rows))
	for i, r := range resp.Rows {
		out[i] = r.Row
	}
	return out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("datasets-server returned %d: %s", e.code, e.body)
}

func (p *HubPager) get(ctx context.Context, path string, q url.Values, out any) error {
	u := p.config.Endpoint + path + "?" + q.Encode()

	return retry.Do(ctx, p.policy, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		if p.config.Token != "" {
			req.Header.Set("Authorization", "Bearer "+p.config.Token)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return retry.Permanent(err)
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(err)
		}
		return nil
	})
}
