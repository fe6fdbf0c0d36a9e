package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/resolvekit/resolveguard/internal/dispatch"
	"github.com/resolvekit/resolveguard/internal/metrics"
	"github.com/resolvekit/resolveguard/internal/resolution"
)

// ResolveHandler exposes the guarded resolution pipeline over HTTP. A request
// names a dispatch source and a batch of keys; the response carries one entry
// per key, either a value or a failure descriptor.
type ResolveHandler struct {
	logger           *slog.Logger
	resolve          resolution.ResolveFunc
	metricsCollector *metrics.Collector
}

type resolveRequest struct {
	Source string   `json:"source"`
	Keys   []string `json:"keys"`
}

type resolveResponse struct {
	Results []itemResponse `json:"results"`
}

type itemResponse struct {
	Key   string            `json:"key"`
	Value any               `json:"value,omitempty"`
	Error *dispatch.Failure `json:"error,omitempty"`
}

func NewResolveHandler(logger *slog.Logger, resolve resolution.ResolveFunc, collector *metrics.Collector) *ResolveHandler {
	return &ResolveHandler{
		logger:           logger,
		resolve:          resolve,
		metricsCollector: collector,
	}
}

func (h *ResolveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Keys) == 0 {
		http.Error(w, "keys must not be empty", http.StatusBadRequest)
		return
	}

	h.logger.Info("Received batch",
		slog.String("from", clientIP),
		slog.String("source", req.Source),
		slog.Int("batch_size", len(req.Keys)))

	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventBatchReceived,
		Timestamp: time.Now(),
	})

	env := resolution.Env{"source": req.Source}
	batch := make([]resolution.Item, len(req.Keys))
	for i, key := range req.Keys {
		batch[i] = key
	}

	start := time.Now()
	items, err := h.resolve(r.Context(), env, batch).Wait(r.Context())
	duration := time.Since(start)

	h.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventBatchResolved,
		Timestamp: time.Now(),
		Duration:  duration,
		Failed:    err != nil,
	})

	if err != nil {
		h.respondBatchError(w, req, err)
		return
	}

	resp := resolveResponse{Results: make([]itemResponse, len(items))}
	for i, item := range items {
		entry := itemResponse{Key: req.Keys[i]}

		var open *dispatch.OpenError
		switch {
		case item.Err == nil:
			entry.Value = item.Value
		case errors.As(item.Err, &open):
			descriptor := open.Descriptor()
			entry.Error = &descriptor
			h.emitEvent(metrics.MetricEvent{
				Type:      metrics.EventCallDenied,
				Timestamp: time.Now(),
				Breaker:   open.BreakerName,
			})
		default:
			entry.Error = &dispatch.Failure{Message: item.Err.Error()}
		}

		resp.Results[i] = entry
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode response", slog.Any("err", err))
	}
}

// respondBatchError renders a whole-batch failure: an open breaker under
// throw-on-open maps to 503 with its descriptor, anything else to 502.
func (h *ResolveHandler) respondBatchError(w http.ResponseWriter, req resolveRequest, err error) {
	var open *dispatch.OpenError
	if errors.As(err, &open) {
		h.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventCallDenied,
			Timestamp: time.Now(),
			Breaker:   open.BreakerName,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(open.Descriptor())
		return
	}

	h.logger.Warn("Batch resolution failed",
		slog.String("source", req.Source),
		slog.Any("err", err))
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (h *ResolveHandler) emitEvent(event metrics.MetricEvent) {
	if h.metricsCollector == nil {
		return
	}

	h.metricsCollector.Emit(event)
}
