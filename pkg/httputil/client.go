// Package httputil provides shared HTTP utilities with connection pooling
// and safe response handling for outbound collaborator calls.
package httputil

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize is the default maximum size for reading HTTP response
// bodies. External scorers are untrusted; a misconfigured provider must not
// be able to OOM the worker.
const MaxResponseSize = 2 * 1024 * 1024 // 2MB

// Shared transport with connection pooling, safe for concurrent use.
// Reusing TCP connections matters here: the LLM escalation path can fire on
// every mid-band submission.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// TimeoutTier defines standard timeout categories for different operation types.
type TimeoutTier int

const (
	// TierFast for quick operations like health checks (5s)
	TierFast TimeoutTier = iota
	// TierMedium for standard API calls (30s)
	TierMedium
	// TierSlow for model/LLM operations that may take longer (60s)
	TierSlow
)

var timeoutDurations = map[TimeoutTier]time.Duration{
	TierFast:   5 * time.Second,
	TierMedium: 30 * time.Second,
	TierSlow:   60 * time.Second,
}

// Singleton clients per timeout tier - initialized once, reused everywhere.
var (
	clientFast   *http.Client
	clientMedium *http.Client
	clientSlow   *http.Client
	clientOnce   sync.Once
)

func initClients() {
	clientFast = &http.Client{Timeout: timeoutDurations[TierFast], Transport: sharedTransport}
	clientMedium = &http.Client{Timeout: timeoutDurations[TierMedium], Transport: sharedTransport}
	clientSlow = &http.Client{Timeout: timeoutDurations[TierSlow], Transport: sharedTransport}
}

// Client returns a shared HTTP client for the given timeout tier. These
// clients share one connection pool and should be used instead of creating
// http.Client instances per request. The client timeout is an upper bound;
// per-call deadlines still come from the request context.
func Client(tier TimeoutTier) *http.Client {
	clientOnce.Do(initClients)
	switch tier {
	case TierFast:
		return clientFast
	case TierMedium:
		return clientMedium
	case TierSlow:
		return clientSlow
	default:
		return clientMedium
	}
}

// ReadResponseBody safely reads an HTTP response body with a size limit.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	body, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxSize)
	}
	return body, nil
}
