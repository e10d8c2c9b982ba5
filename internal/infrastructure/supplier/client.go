package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/partselect/backend/internal/domain"
	"golang.org/x/time/rate"
)

// Client defaults
const (
	defaultTimeout           = 30 * time.Second
	defaultRequestsPerSecond = 5
	defaultBurst             = 10
	defaultMaxRetries        = 3
	baseBackoff              = 500 * time.Millisecond
	maxBodyBytes             = 4 << 20
	errorBodyBytes           = 512
)

// Config describes one vendor platform
type Config struct {
	Name              string
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	MaxRetries        int
	Logger            *slog.Logger
}

// Client talks to a distributor parts API and satisfies domain.CatalogSource
type Client struct {
	name        string
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	maxRetries  int
	debug       bool
	logger      *slog.Logger

	// sleep waits between retries; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new vendor API client
func NewClient(cfg Config) (*Client, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		return nil, fmt.Errorf("%w: vendor name is required", domain.ErrInvalidRequest)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("%w: vendor %s: base url is required", domain.ErrInvalidRequest, name)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRequestsPerSecond
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		name: name,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries:  retries,
		logger:      logger.With("vendor", name),
		sleep:       sleepContext,
	}, nil
}

// SetDebug toggles verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		c.logger.Info(fmt.Sprintf(format, args...))
	}
}

// Name implements domain.CatalogSource
func (c *Client) Name() string {
	return c.name
}

// Search queries the platform's part search endpoint
func (c *Client) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawRecord, error) {
	params := url.Values{}
	params.Set("q", req.Term)
	if req.Category != "" {
		params.Set("category", req.Category)
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	for _, key := range []string{domain.SpecVoltage, domain.SpecCurrent, domain.SpecPackage} {
		if v := req.Constraints[key]; v != "" {
			params.Set(key, v)
		}
	}

	reqURL := fmt.Sprintf("%s/v1/parts/search?%s", c.baseURL, params.Encode())

	var resp searchResponse
	err := c.getJSON(ctx, reqURL, &resp)
	if errors.Is(err, domain.ErrNoCandidates) {
		return []domain.RawRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := mapParts(resp.Parts, c.name)
	c.logger.Debug("Vendor search", "term", req.Term, "results", len(records))
	return records, nil
}

// PriceAndStock returns the platform's offers for one part. An unknown part
// yields no quotes.
func (c *Client) PriceAndStock(ctx context.Context, partNumber string) ([]domain.PriceQuote, error) {
	reqURL := fmt.Sprintf("%s/v1/parts/%s/offers", c.baseURL, url.PathEscape(strings.TrimSpace(partNumber)))

	var resp offersResponse
	err := c.getJSON(ctx, reqURL, &resp)
	if errors.Is(err, domain.ErrNoCandidates) {
		return []domain.PriceQuote{}, nil
	}
	if err != nil {
		return nil, err
	}
	return mapOffers(resp.Offers, c.name), nil
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "PartSelect/1.0")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	return resp, nil
}

// getJSON fetches reqURL and decodes the body into out. Transport errors,
// 429 and 5xx are retried with exponential backoff; other 4xx are not.
// A 404 is reported as domain.ErrNoCandidates.
func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, exponentialBackoff(attempt-1)); err != nil {
				return err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrRateLimited, err)
		}

		c.debugLog("GET %s (attempt %d)", reqURL, attempt)
		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.logger.Warn("Vendor request failed", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		body, err := readLimitedBody(resp.Body, maxBodyBytes)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return domain.ErrNoCandidates
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrRateLimited, resp.StatusCode)
		case resp.StatusCode >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
		default:
			return fmt.Errorf("%w: status %d, body: %s",
				domain.ErrSourceUnavailable, resp.StatusCode, truncate(body, errorBodyBytes))
		}

		c.logger.Warn("Vendor API error", "attempt", attempt, "status", resp.StatusCode)
	}

	c.logger.Warn("All retries failed", "url", reqURL, "error", lastErr)
	return lastErr
}

// exponentialBackoff returns the wait before retry n (1-based): 500ms, 1s, 2s, ...
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return baseBackoff * time.Duration(1<<(attempt-1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
