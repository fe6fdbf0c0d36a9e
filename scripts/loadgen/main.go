// Loadgen is a concurrent batch load generator for the resolution pipeline.
// It reports throughput, latency percentiles, and how many batches were
// denied by an open circuit breaker.
//
// Usage:
//
//	go run ./scripts/loadgen -url http://localhost:8080/resolve -source search -batches 500 -concurrency 10
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type resolveRequest struct {
	Source string   `json:"source"`
	Keys   []string `json:"keys"`
}

type resolveResponse struct {
	Results []struct {
		Key   string `json:"key"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"results"`
}

func main() {
	var (
		url         = flag.String("url", "http://localhost:8080/resolve", "Target URL")
		source      = flag.String("source", "search", "Dispatch source for every batch")
		batches     = flag.Int("batches", 100, "Total number of batches to send")
		batchSize   = flag.Int("batch-size", 5, "Keys per batch")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		timeoutSec  = flag.Int("timeout", 10, "Per-request timeout in seconds")
	)
	flag.Parse()

	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var success, failure, denied int32
	var mu sync.Mutex
	var latencies []time.Duration

	worker := func() {
		defer wg.Done()
		for n := range jobs {
			keys := make([]string, *batchSize)
			for i := range keys {
				keys[i] = fmt.Sprintf("key-%d-%d", n, i)
			}

			payload, _ := json.Marshal(resolveRequest{Source: *source, Keys: keys})

			start := time.Now()
			resp, err := client.Post(*url, "application/json", bytes.NewReader(payload))
			elapsed := time.Since(start)

			if err != nil {
				atomic.AddInt32(&failure, 1)
				continue
			}

			var body resolveResponse
			decodeErr := json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()

			mu.Lock()
			latencies = append(latencies, elapsed)
			mu.Unlock()

			switch {
			case resp.StatusCode == http.StatusServiceUnavailable:
				atomic.AddInt32(&denied, 1)
			case resp.StatusCode != http.StatusOK || decodeErr != nil:
				atomic.AddInt32(&failure, 1)
			case batchDenied(body):
				atomic.AddInt32(&denied, 1)
			default:
				atomic.AddInt32(&success, 1)
			}
		}
	}

	begin := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go worker()
	}
	for n := 0; n < *batches; n++ {
		jobs <- n
	}
	close(jobs)
	wg.Wait()
	total := time.Since(begin)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	fmt.Printf("batches: %d  success: %d  denied: %d  failed: %d\n",
		*batches, success, denied, failure)
	fmt.Printf("elapsed: %s  throughput: %.1f batches/s\n",
		total.Round(time.Millisecond), float64(*batches)/total.Seconds())

	if len(latencies) > 0 {
		fmt.Printf("latency p50: %s  p95: %s  p99: %s\n",
			pct(latencies, 0.50), pct(latencies, 0.95), pct(latencies, 0.99))
	}

	if failure > 0 {
		os.Exit(1)
	}
}

// batchDenied reports whether every item of the batch carries an open-breaker
// failure descriptor.
func batchDenied(body resolveResponse) bool {
	if len(body.Results) == 0 {
		return false
	}
	for _, r := range body.Results {
		if r.Error == nil || !strings.Contains(r.Error.Message, "is open.") {
			return false
		}
	}
	return true
}

func pct(sorted []time.Duration, p float64) time.Duration {
	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
