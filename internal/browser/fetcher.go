// Package browser fetches pages through a headless Chromium so that content
// injected by scripts is present in the returned markup.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"

	"animport/internal/httputil"
	"animport/internal/logging"
)

// Options configures New.
type Options struct {
	UserAgent    string
	Timeout      time.Duration // per navigation
	Retry        httputil.RetryPolicy
	RequestDelay time.Duration

	// Install downloads the driver and Chromium on first use.
	Install bool
}

// loader renders one page. The playwright implementation is started lazily.
type loader interface {
	load(ctx context.Context, url string) (content string, status int, err error)
	close() error
}

// Fetcher implements the page fetcher contract on top of playwright.
// It is safe for sequential use; concurrent calls are serialized.
type Fetcher struct {
	opts    Options
	limiter *rate.Limiter
	start   func(Options) (loader, error)

	mu     sync.Mutex
	loader loader
	closed bool
}

// New returns a Fetcher. No browser is started until the first Fetch.
func New(opts Options) *Fetcher {
	return newFetcher(opts, launchChromium)
}

func newFetcher(opts Options, start func(Options) (loader, error)) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = httputil.DefaultUserAgent
	}
	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}
	return &Fetcher{
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		start:   start,
	}
}

// Fetch renders url and returns the resulting document markup.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := httputil.ValidateURL(url); err != nil {
		return "", &httputil.FetchError{URL: url, Err: err}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", &httputil.FetchError{URL: url, Err: errors.New("browser fetcher closed")}
	}
	if f.loader == nil {
		l, err := f.start(f.opts)
		if err != nil {
			return "", &httputil.FetchError{URL: url, Err: fmt.Errorf("starting browser: %w", err)}
		}
		f.loader = l
	}

	var (
		lastErr    error
		lastStatus int
		attempts   int
	)
	for attempt := 0; attempt <= f.opts.Retry.Retries; attempt++ {
		if attempt > 0 {
			logging.Debug("retrying render", "url", url, "attempt", attempt+1)
			if err := f.opts.Retry.Wait(ctx, attempt); err != nil {
				return "", &httputil.FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return "", &httputil.FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: err}
		}

		attempts++
		content, status, err := f.loader.load(ctx, url)
		if err == nil {
			return content, nil
		}
		lastErr, lastStatus = err, status

		if !retryable(status, err) {
			break
		}
	}

	return "", &httputil.FetchError{URL: url, StatusCode: lastStatus, Attempts: attempts, Err: lastErr}
}

// Close stops the browser and the playwright driver. It is safe to call
// more than once.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.loader == nil {
		return nil
	}
	err := f.loader.close()
	f.loader = nil
	return err
}

func retryable(status int, err error) bool {
	if status != 0 {
		return httputil.RetryableStatus(status)
	}
	return errors.Is(err, playwright.ErrTimeout)
}

// chromium drives a single headless page.
type chromium struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	timeout time.Duration
}

func launchChromium(opts Options) (loader, error) {
	if opts.Install {
		logging.Info("installing playwright driver and chromium")
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("installing playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(opts.UserAgent),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("opening page: %w", err)
	}

	logging.Debug("chromium started")
	return &chromium{pw: pw, browser: browser, page: page, timeout: opts.Timeout}, nil
}

func (c *chromium) load(ctx context.Context, url string) (string, int, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	resp, err := c.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(c.timeout.Milliseconds())),
	})
	if err != nil {
		return "", 0, fmt.Errorf("navigating: %w", err)
	}

	status := 0
	if resp != nil {
		status = resp.Status()
	}
	if status >= 400 {
		return "", status, fmt.Errorf("unexpected status %d", status)
	}

	content, err := c.page.Content()
	if err != nil {
		return "", status, fmt.Errorf("reading content: %w", err)
	}
	return content, status, nil
}

func (c *chromium) close() error {
	var errs []error
	if err := c.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing browser: %w", err))
	}
	if err := c.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping playwright: %w", err))
	}
	return errors.Join(errs...)
}
