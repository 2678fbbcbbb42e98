// Package remote scores candidate batches with an external HTTP predictor.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/okian/rfqmatch/internal/domain/model"
	"github.com/okian/rfqmatch/internal/domain/scoring"
)

const (
	defaultTimeout  = 2 * time.Second
	maxResponseSize = 1 << 20
	scorePath       = "/score"
)

type scoreRequest struct {
	RFQ       model.RFQ                `json:"rfq"`
	Suppliers []model.EnrichedSupplier `json:"suppliers"`
}

type scoreResponse struct {
	Scores []supplierScore `json:"scores"`
}

type supplierScore struct {
	SupplierID string   `json:"supplier_id"`
	Score      *float64 `json:"score"`
}

// Client implements scoring.Scorer against a remote predictor. Any failure
// fails the whole batch; there are no retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithTimeout bounds each call, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client for the predictor at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements scoring.Scorer.
func (c *Client) Name() string { return string(model.StrategyExternal) }

// ScoreBatch posts the RFQ and candidates and validates the reply.
// Errors wrap scoring.ErrExternalScorer.
func (c *Client) ScoreBatch(ctx context.Context, rfq model.RFQ, candidates []model.EnrichedSupplier) (map[string]int, error) {
	scores, err := c.scoreBatch(ctx, rfq, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scoring.ErrExternalScorer, err)
	}
	return scores, nil
}

func (c *Client) scoreBatch(ctx context.Context, rfq model.RFQ, candidates []model.EnrichedSupplier) (map[string]int, error) {
	body, err := json.Marshal(scoreRequest{RFQ: rfq, Suppliers: candidates})
	if err != nil {
		return nil, fmt.Errorf("encoding score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+scorePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return nil, fmt.Errorf("%w: %d", scoring.ErrUnexpectedStatus, resp.StatusCode)
	}

	var result scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&result); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", scoring.ErrMalformedResponse, err)
	}

	scores := make(map[string]int, len(result.Scores))
	for _, s := range result.Scores {
		if s.SupplierID == "" || s.Score == nil {
			return nil, fmt.Errorf("%w: entry without supplier id or score", scoring.ErrMalformedResponse)
		}
		if _, dup := scores[s.SupplierID]; dup {
			return nil, fmt.Errorf("%w: supplier %s scored twice", scoring.ErrMalformedResponse, s.SupplierID)
		}
		v := *s.Score
		if v < scoring.MinScore || v > scoring.MaxScore {
			return nil, fmt.Errorf("%w: supplier %s scored %v", scoring.ErrScoreOutOfRange, s.SupplierID, v)
		}
		scores[s.SupplierID] = int(math.Round(v))
	}

	if err := scoring.ValidateBatch(candidates, scores); err != nil {
		return nil, err
	}
	return scores, nil
}
