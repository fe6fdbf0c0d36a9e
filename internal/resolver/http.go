package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/resolvekit/resolveguard/internal/resolution"
)

// HTTP resolves batches against a downstream HTTP service. It posts
// {"keys": [...]} and expects {"results": {"<key>": <value>, ...}} back.
type HTTP struct {
	endpoint *url.URL
	client   *http.Client
	logger   *slog.Logger
}

type batchRequest struct {
	Keys []string `json:"keys"`
}

type batchResponse struct {
	Results map[string]any `json:"results"`
}

// NewHTTP creates a downstream HTTP resolver for the given endpoint.
func NewHTTP(endpoint string, timeout time.Duration, logger *slog.Logger) (*HTTP, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("resolver: invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("resolver: endpoint %q must be http or https", endpoint)
	}

	return &HTTP{
		endpoint: u,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

// Resolve dispatches the batch to the downstream service. The returned result
// settles on a separate goroutine once the downstream responds: per-item
// values on success, a batch-level error on transport or protocol failure.
func (h *HTTP) Resolve(ctx context.Context, env resolution.Env, batch []resolution.Item) *resolution.Result {
	res := resolution.NewResult()

	keys := make([]string, len(batch))
	for i, item := range batch {
		keys[i] = fmt.Sprint(item)
	}

	go func() {
		body, err := h.post(ctx, keys)
		if err != nil {
			h.logger.Warn("Downstream batch failed",
				slog.String("endpoint", h.endpoint.String()),
				slog.Int("batch_size", len(keys)),
				slog.Any("err", err))
			res.Fail(err)
			return
		}

		items := make([]resolution.ItemResult, len(keys))
		for i, key := range keys {
			value, ok := body.Results[key]
			if !ok {
				items[i] = resolution.ItemResult{Err: fmt.Errorf("resolver: no result for key %q", key)}
				continue
			}
			items[i] = resolution.ItemResult{Value: value}
		}
		res.Complete(items)
	}()

	return res
}

func (h *HTTP) post(ctx context.Context, keys []string) (*batchResponse, error) {
	payload, err := json.Marshal(batchRequest{Keys: keys})
	if err != nil {
		return nil, fmt.Errorf("resolver: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("resolver: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolver: downstream call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver: downstream returned status %d", resp.StatusCode)
	}

	var body batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("resolver: decode response: %w", err)
	}

	return &body, nil
}
