package main

import (
	"encoding/json"
	"net/http"

	"github.com/resolvekit/resolveguard/internal/dispatch"
	"github.com/resolvekit/resolveguard/internal/handler"
	"github.com/resolvekit/resolveguard/internal/metrics"
)

func setupRouter(resolveHandler *handler.ResolveHandler, metricsCollector *metrics.Collector, table *dispatch.Table) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/resolve", resolveHandler.ServeHTTP)
	mux.HandleFunc("/metrics", metricsCollector.Handler())
	mux.HandleFunc("/breakers", breakersHandler(table))

	return mux
}

func breakersHandler(table *dispatch.Table) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(table.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
