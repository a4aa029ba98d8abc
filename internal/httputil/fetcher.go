package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"animport/internal/logging"
)

// ErrFetch is matched by every *FetchError.
var ErrFetch = errors.New("fetch failed")

// FetchError reports a page that could not be retrieved after the retry
// policy was exhausted.
type FetchError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetching %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// RetryPolicy controls how transient failures are retried.
type RetryPolicy struct {
	Retries   int           // extra attempts after the first
	BaseDelay time.Duration // doubled after every failed attempt
}

// maxRetryAfter bounds how long a server may ask us to wait.
const maxRetryAfter = 120 * time.Second

// Delay returns the backoff before the given attempt (1-based retry count).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	return p.BaseDelay << (retry - 1)
}

// Fetcher retrieves raw page content over HTTP.
type Fetcher struct {
	client    *http.Client
	userAgent string
	policy    RetryPolicy
	limiter   *rate.Limiter
}

// FetcherOptions configures NewFetcher.
type FetcherOptions struct {
	Client       *http.Client
	UserAgent    string
	Retry        RetryPolicy
	RequestDelay time.Duration // minimum spacing between requests; 0 disables
}

// NewFetcher creates a page fetcher with retry and courtesy spacing.
func NewFetcher(opts FetcherOptions) *Fetcher {
	client := opts.Client
	if client == nil {
		client = NewClient(0)
	}
	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}
	return &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		policy:    opts.Retry,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

// Fetch returns the body of url as text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, err := f.FetchBytes(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchBytes performs a GET with the retry policy and returns the raw body.
func (f *Fetcher) FetchBytes(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := NewRequest(ctx, url, accept, f.userAgent)
	if err != nil {
		return nil, &FetchError{URL: url, Attempts: 0, Err: err}
	}

	var (
		lastErr    error
		lastStatus int
		retryAfter time.Duration
	)
	attempts := 0
	for attempt := 0; attempt <= f.policy.Retries; attempt++ {
		if attempt > 0 {
			wait := f.policy.Delay(attempt)
			if retryAfter > 0 {
				wait = retryAfter
			}
			logging.Debug("retrying fetch", "url", url, "attempt", attempt+1, "wait", wait)
			if err := sleep(ctx, wait); err != nil {
				return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
			}
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
		}

		attempts++
		body, status, ra, err := f.do(req)
		if err == nil {
			return body, nil
		}
		lastErr, lastStatus, retryAfter = err, status, ra

		if !isRetryable(status, err) {
			break
		}
	}

	return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) do(req *http.Request) (body []byte, status int, retryAfter time.Duration, err error) {
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, 0, nil
}

// Wait blocks for the backoff before the given retry, or until ctx is done.
func (p RetryPolicy) Wait(ctx context.Context, retry int) error {
	return sleep(ctx, p.Delay(retry))
}

// RetryableStatus reports whether a response status is worth retrying.
func RetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isRetryable reports whether a failed attempt may succeed when repeated.
// Transport errors count only when they are timeouts or dropped connections;
// TLS and certificate failures are permanent.
func isRetryable(status int, err error) bool {
	if status != 0 {
		return RetryableStatus(status)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		return 0
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
