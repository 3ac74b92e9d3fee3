package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// ErrEmptyPage is returned by a PageSource when the upstream answered with
// no content.
var ErrEmptyPage = errors.New("empty page")

// PageSource fetches one raw listing page for a region. Any error means the
// pagination is over; callers do not distinguish the last page from a
// transient failure.
type PageSource interface {
	Fetch(ctx context.Context, region, page int) ([]byte, error)
}

// HTTPSourceConfig holds settings for HTTPSource.
type HTTPSourceConfig struct {
	// BaseURL is the listing endpoint; region and page are added as query
	// parameters.
	BaseURL string
	// Timeout per page request
	Timeout time.Duration
	// RequestsPerSecond bounds the request rate against the upstream. Zero
	// disables throttling.
	RequestsPerSecond float64
	UserAgent         string
	// MaxBodyBytes caps how much of a page is read.
	MaxBodyBytes int64
}

// DefaultHTTPSourceConfig returns the settings used against the upstream
// price aggregator.
func DefaultHTTPSourceConfig() HTTPSourceConfig {
	return HTTPSourceConfig{
		BaseURL:           "https://russiabase.ru/prices",
		Timeout:           12 * time.Second,
		RequestsPerSecond: 1,
		UserAgent:         "Mozilla/5.0 (compatible; pricefed/1.0)",
		MaxBodyBytes:      8 << 20,
	}
}

// HTTPSource is a PageSource backed by plain HTTP GET requests.
type HTTPSource struct {
	config  HTTPSourceConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPSource creates an HTTP page source.
func NewHTTPSource(config HTTPSourceConfig) *HTTPSource {
	defaults := DefaultHTTPSourceConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &HTTPSource{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
	}
}

// PageURL returns the URL of one listing page.
func (s *HTTPSource) PageURL(region, page int) (string, error) {
	u, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("region", strconv.Itoa(region))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Fetch downloads one listing page.
func (s *HTTPSource) Fetch(ctx context.Context, region, page int) ([]byte, error) {
	pageURL, err := s.PageURL(region, page)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyPage
	}

	return body, nil
}
