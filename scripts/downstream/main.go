// Downstream is a fake batch-resolution backend used for pipeline testing.
// It provides /resolve-batch and /health endpoints and can inject failures.
//
// Usage:
//
//	go run ./scripts/downstream -port 9090 -fail-rate 0.0
//
// Raise -fail-rate (0.0-1.0) to make the endpoint return 500s and watch the
// circuit breakers trip.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

type batchRequest struct {
	Keys []string `json:"keys"`
}

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	failRate := flag.Float64("fail-rate", 0.0, "fraction of batches answered with HTTP 500")
	latency := flag.Duration("latency", 20*time.Millisecond, "simulated resolution latency per batch")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/resolve-batch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		log.Printf("batch: size=%d from=%s", len(req.Keys), r.RemoteAddr)
		time.Sleep(*latency)

		if rand.Float64() < *failRate {
			http.Error(w, "simulated downstream failure", http.StatusInternalServerError)
			return
		}

		results := make(map[string]any, len(req.Keys))
		for _, key := range req.Keys {
			results[key] = fmt.Sprintf("value-for-%s", key)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("fake downstream listening on %s (fail-rate=%.2f)", addr, *failRate)
	log.Fatal(http.ListenAndServe(addr, mux))
}
