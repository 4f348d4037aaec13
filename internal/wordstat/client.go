// Package wordstat provides the client contract for the Yandex Wordstat v2
// topRequests API and its HTTP implementation.
package wordstat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/komyaka/wordstat/internal/models"
	"github.com/komyaka/wordstat/pkg/utils"
)

// DefaultEndpoint is the Wordstat v2 topRequests URL.
const DefaultEndpoint = "https://searchapi.api.cloud.yandex.net/v2/wordstat/topRequests"

// Row is one related phrase with its monthly impression count.
type Row struct {
	Phrase string `json:"phrase"`
	Count  int64  `json:"count"`
}

// Client fetches related phrases for a seed phrase. Implementations fail
// with *APIError so callers can classify the failure.
type Client interface {
	TopRequests(ctx context.Context, phrase string) ([]Row, error)
}

// Params discriminate a query beyond the phrase itself; they take part in
// the cache key so differently-parameterized queries do not collide.
type Params struct {
	Limit   int
	Regions []int
	Device  string
}

// Key renders the parameters as a stable cache-key suffix.
func (p Params) Key() string {
	return fmt.Sprintf("limit=%d;regions=%v;device=%s", p.Limit, p.Regions, p.Device)
}

// HTTPClient implements Client over HTTP with Api-Key auth.
type HTTPClient struct {
	endpoint string
	apiKey   string
	params   Params
	http     *http.Client
	logger   *zap.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithLogger sets a logger for request debug output.
func WithLogger(l *zap.Logger) HTTPClientOption {
	return func(c *HTTPClient) { c.logger = l }
}

// WithEndpoint overrides the API endpoint (tests, proxies).
func WithEndpoint(url string) HTTPClientOption {
	return func(c *HTTPClient) { c.endpoint = url }
}

// NewHTTPClient creates a client. apiKey must be non-empty; timeout bounds
// each request.
func NewHTTPClient(apiKey string, params Params, timeout time.Duration, opts ...HTTPClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key cannot be empty")
	}
	if params.Limit < 1 || params.Limit > 2000 {
		return nil, fmt.Errorf("params.Limit must be in [1, 2000], got %d", params.Limit)
	}
	c := &HTTPClient{
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
		params:   params,
		http:     &http.Client{Timeout: timeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Params returns the query parameters this client was built with.
func (c *HTTPClient) Params() Params { return c.params }

type topRequestsBody struct {
	Phrase  string `json:"phrase"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
	Regions []int  `json:"regions,omitempty"`
	Device  string `json:"device,omitempty"`
}

// rawRow tolerates counts sent as JSON strings, which the API does for
// large values.
type rawRow struct {
	Phrase string          `json:"phrase"`
	Count  json.RawMessage `json:"count"`
}

type topRequestsResponse struct {
	Results      []rawRow `json:"results"`
	Associations []rawRow `json:"associations"`
}

// TopRequests posts the phrase and merges the results and associations
// arrays into one row list. Failures are always *APIError.
func (c *HTTPClient) TopRequests(ctx context.Context, phrase string) ([]Row, error) {
	body, err := json.Marshal(topRequestsBody{
		Phrase:  phrase,
		Page:    0,
		Limit:   c.params.Limit,
		Regions: c.params.Regions,
		Device:  c.params.Device,
	})
	if err != nil {
		return nil, &APIError{Kind: KindMalformed, Message: "encode request body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Kind: KindMalformed, Message: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("wordstat request", zap.String("phrase", phrase), zap.Int("limit", c.params.Limit))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			Kind:       classifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    utils.Truncate(string(b), 512),
		}
	}

	var parsed topRequestsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &APIError{Kind: KindMalformed, Message: "decode response", Err: err}
	}

	rows := make([]Row, 0, len(parsed.Results)+len(parsed.Associations))
	rows = appendRows(rows, parsed.Results)
	rows = appendRows(rows, parsed.Associations)
	c.logger.Debug("wordstat response",
		zap.String("phrase", phrase),
		zap.Int("results", len(parsed.Results)),
		zap.Int("associations", len(parsed.Associations)),
	)
	return rows, nil
}

func appendRows(dst []Row, src []rawRow) []Row {
	for _, r := range src {
		if r.Phrase == "" {
			continue
		}
		count := models.FlexCount(r.Count)
		if count < 0 {
			continue
		}
		dst = append(dst, Row{Phrase: r.Phrase, Count: count})
	}
	return dst
}
