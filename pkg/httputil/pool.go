// Package httputil provides the pooled HTTP client shared by every
// external-call adapter (validator, knowledge search, generator, cloud
// TTS, prompt/phoneme fetchers).
package httputil

import (
	"net/http"
	"time"
)

// NewPooledClient creates an http.Client tuned for many short-lived
// outbound calls to a small set of upstream hosts.
func NewPooledClient(poolSize int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}
