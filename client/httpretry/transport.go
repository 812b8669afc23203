package httpretry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAttempts = 10
	DefaultDelay    = time.Second
)

// StatusError is returned for a transient HTTP status once the attempts are
// used up.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transient http status %d", e.StatusCode)
}

// Transport retries a request a fixed number of times with a fixed delay on
// transport failures, 408 and 5xx. Only wrap idempotent calls with it.
// Leave http.Client.Timeout unset on clients using it: that timeout covers
// every attempt at once. Use the per-attempt timeout instead.
type Transport struct {
	next     http.RoundTripper
	attempts uint
	delay    time.Duration
	timeout  time.Duration
}

// NewTransport wraps next. A zero timeout leaves each attempt bounded only by
// the request context.
func NewTransport(next http.RoundTripper, attempts uint, delay, timeout time.Duration) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	if attempts == 0 {
		attempts = 1
	}
	return &Transport{
		next:     next,
		attempts: attempts,
		delay:    delay,
		timeout:  timeout,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// body can't be replayed, a single shot is all we can do
		return t.next.RoundTrip(req)
	}

	attempt := uint(0)
	return retry.DoWithData(
		func() (*http.Response, error) {
			attempt++
			r := req
			if attempt > 1 && req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, retry.Unrecoverable(fmt.Errorf("rewind request body: %w", err))
				}
				r = req.Clone(req.Context())
				r.Body = body
			}
			resp, err := t.attempt(r)
			if err != nil {
				return nil, err
			}
			if isTransientStatus(resp.StatusCode) {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
				_ = resp.Body.Close()
				return nil, &StatusError{StatusCode: resp.StatusCode}
			}
			return resp, nil
		},
		retry.Attempts(t.attempts),
		retry.Delay(t.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(req.Context()),
		retry.RetryIf(func(err error) bool {
			return req.Context().Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Msgf("[httpretry]: %s %s attempt %d/%d failed", req.Method, req.URL.Redacted(), n+1, t.attempts)
		}),
	)
}

// attempt runs a single round trip under the per-attempt timeout. The timeout
// stays armed until the caller closes the response body.
func (t *Transport) attempt(r *http.Request) (*http.Response, error) {
	if t.timeout <= 0 {
		return t.next.RoundTrip(r)
	}
	ctx, cancel := context.WithTimeout(r.Context(), t.timeout)
	resp, err := t.next.RoundTrip(r.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func isTransientStatus(code int) bool {
	return code == http.StatusRequestTimeout || code >= 500
}
