// Package httpx provides the HTTP client used for node JSON-RPC. Requests
// that provably never reached the node are retried with backoff.
package httpx

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"
)

const userAgent = "contract-cli/1.0"

// New returns an http.Client with the given per-request timeout and retry
// budget.
func New(timeout time.Duration, retries int) *http.Client {
	if retries < 0 {
		retries = 0
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &Transport{Base: http.DefaultTransport, Retries: retries},
	}
}

// Transport retries dial failures and 429/503 responses. Anything the node
// may have acted on is returned as is.
type Transport struct {
	Base    http.RoundTripper
	Retries int
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var body []byte
	if req.Body != nil {
		buf, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		body = buf
	}

	var lastErr error
	for attempt := 0; attempt <= t.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		cloneReq := req.Clone(ctx)
		if body != nil {
			cloneReq.Body = io.NopCloser(bytes.NewReader(body))
			cloneReq.ContentLength = int64(len(body))
		}
		if cloneReq.Header.Get("User-Agent") == "" {
			cloneReq.Header.Set("User-Agent", userAgent)
		}

		resp, err := t.base().RoundTrip(cloneReq)
		if err != nil {
			lastErr = err
			if isDialError(err) && attempt < t.Retries {
				continue
			}
			return nil, err
		}
		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) && attempt < t.Retries {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

func (t *Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func isDialError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func backoff(attempt int) time.Duration {
	base := 120 * time.Millisecond
	d := base * time.Duration(1<<uint(attempt-1))
	if d > 2*time.Second {
		d = 2 * time.Second
	}
	jitter := time.Duration(rand.Intn(75)) * time.Millisecond
	return d + jitter
}
