// Package ncbi provides a shared base HTTP client for NCBI E-utilities.
// All PubMed traffic funnels through one BaseClient so that rate
// limiting, retries, common parameters, and response size guards apply
// uniformly.
package ncbi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	// DefaultTool identifies this application to NCBI.
	DefaultTool = "medlit"
	// DefaultEmail is the contact email sent to NCBI.
	DefaultEmail = "medlit@users.noreply.github.com"

	// Rate limits per NCBI policy.
	RateWithoutKey = 3  // requests per second without API key
	RateWithKey    = 10 // requests per second with API key

	// DefaultMaxResponseBytes is the maximum response body size (50 MB).
	DefaultMaxResponseBytes int64 = 50 * 1024 * 1024

	// Retry policy for transient failures.
	maxAttempts  = 3
	maxRetryWait = 10 * time.Second
)

// baseRetryWait is the base duration for exponential backoff between
// attempts. Tests override this to avoid real sleeps.
var baseRetryWait = 1 * time.Second

// TransportError is returned when a request fails after exhausting
// retries: a network-level failure or a non-2xx status from NCBI.
type TransportError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ncbi %s: HTTP %d after %d attempts", e.Endpoint, e.Status, maxAttempts)
	}
	return fmt.Sprintf("ncbi %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BaseClient is a shared HTTP client for NCBI E-utilities. The token
// bucket limiter gates every outbound request, including retries; it is
// never bypassed for the lifetime of the client.
type BaseClient struct {
	BaseURL    string
	APIKey     string
	Tool       string
	Email      string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxBytes   int64
	Log        zerolog.Logger
}

// Option configures a BaseClient.
type Option func(*BaseClient)

// WithBaseURL sets the base URL for requests.
func WithBaseURL(u string) Option {
	return func(c *BaseClient) { c.BaseURL = u }
}

// WithAPIKey sets the NCBI API key and raises the rate limit accordingly.
func WithAPIKey(key string) Option {
	return func(c *BaseClient) {
		c.APIKey = key
		if key != "" {
			c.Limiter = rate.NewLimiter(rate.Limit(RateWithKey), 1)
		}
	}
}

// WithTool sets the tool parameter for NCBI requests.
func WithTool(tool string) Option {
	return func(c *BaseClient) { c.Tool = tool }
}

// WithEmail sets the email parameter for NCBI requests.
func WithEmail(email string) Option {
	return func(c *BaseClient) { c.Email = email }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *BaseClient) { c.HTTPClient = hc }
}

// WithMaxResponseBytes sets the maximum allowed response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *BaseClient) { c.MaxBytes = n }
}

// WithLogger sets the logger used for request-level events.
func WithLogger(log zerolog.Logger) Option {
	return func(c *BaseClient) { c.Log = log }
}

// NewBaseClient creates a new NCBI base client with the given options.
func NewBaseClient(opts ...Option) *BaseClient {
	c := &BaseClient{
		BaseURL:  DefaultBaseURL,
		Tool:     DefaultTool,
		Email:    DefaultEmail,
		MaxBytes: DefaultMaxResponseBytes,
		Limiter:  rate.NewLimiter(rate.Limit(RateWithoutKey), 1),
		Log:      zerolog.Nop(),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases pooled connections. Call it when a logical session of
// related search/fetch calls ends.
func (c *BaseClient) Close() {
	c.HTTPClient.CloseIdleConnections()
}

// DoGet performs a rate-limited GET request with common NCBI parameters
// and a response size limit, retrying transient failures with
// exponential backoff (1s base, doubling, 10s cap). Each attempt
// re-acquires a limiter token. Returns the response body.
func (c *BaseClient) DoGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	// Common NCBI params, set once per request.
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}
	if c.Tool != "" {
		params.Set("tool", c.Tool)
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}

	u, err := url.JoinPath(c.BaseURL, endpoint)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}
	fullURL := u + "?" + params.Encode()

	var lastErr error
	var lastStatus int

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoff(attempt, retryAfterHint(lastErr))
			c.Log.Debug().
				Str("endpoint", endpoint).
				Int("attempt", attempt+1).
				Dur("wait", wait).
				Msg("retrying ncbi request")
			if err := sleepWithContext(ctx, wait); err != nil {
				return nil, fmt.Errorf("retry wait: %w", err)
			}
		}

		// Wait for a rate limiter token (respects context cancellation).
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request canceled: %w", ctx.Err())
			}
			lastErr = err
			lastStatus = 0
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			lastErr = &statusError{status: resp.StatusCode, retryAfter: resp.Header.Get("Retry-After")}
			lastStatus = resp.StatusCode
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			continue
		}

		// Guard against unbounded reads: read up to MaxBytes+1 to detect
		// oversized responses.
		r := io.LimitReader(resp.Body, c.MaxBytes+1)
		body, err := io.ReadAll(r)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			lastStatus = 0
			continue
		}
		if int64(len(body)) > c.MaxBytes {
			return nil, fmt.Errorf("response exceeds maximum size of %d bytes", c.MaxBytes)
		}

		return body, nil
	}

	return nil, &TransportError{Endpoint: endpoint, Status: lastStatus, Err: lastErr}
}

// statusError carries a non-2xx status between retry attempts.
type statusError struct {
	status     int
	retryAfter string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

// backoff returns the wait before the given retry (attempt is 1-based
// for the first retry): exponential from baseRetryWait, capped at
// maxRetryWait. A Retry-After hint from the server overrides the
// computed wait.
func backoff(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		if hint > maxRetryWait {
			return maxRetryWait
		}
		return hint
	}
	wait := baseRetryWait * time.Duration(1<<(attempt-1))
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	return wait
}

func retryAfterHint(err error) time.Duration {
	se, ok := err.(*statusError)
	if !ok {
		return 0
	}
	return retryAfterDuration(se.retryAfter)
}

func retryAfterDuration(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
