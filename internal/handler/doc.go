// Package handler implements the HTTP entry point of the resolution pipeline.
// It decodes batch requests, runs them through the breaker-wrapped resolver,
// and renders per-item values or failure descriptors.
package handler
