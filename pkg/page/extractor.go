package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/cometx/pkg/logger"
	"github.com/papercomputeco/cometx/pkg/utils"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxBytes = 5 << 20
)

// ErrUnsupportedURL is returned for URLs that are not http(s).
var ErrUnsupportedURL = errors.New("page: only http and https URLs are supported")

// HTTPExtractor fetches pages over HTTP and parses them with Parse.
type HTTPExtractor struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// Option configures an HTTPExtractor.
type Option func(*HTTPExtractor)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *HTTPExtractor) { e.client = c }
}

// WithMaxBytes limits how much of a response body is read.
func WithMaxBytes(n int64) Option {
	return func(e *HTTPExtractor) { e.maxBytes = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *HTTPExtractor) { e.logger = l }
}

func NewHTTPExtractor(opts ...Option) *HTTPExtractor {
	e := &HTTPExtractor{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *HTTPExtractor) Extract(ctx context.Context, rawURL string) (*Context, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating page request: %w", err)
	}
	req.Header.Set("User-Agent", utils.UserAgent()+" (+page-context)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching page: unexpected status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, e.maxBytes)
	final := resp.Request.URL.String()

	e.logger.Debug("page fetched",
		"url", final,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
	)

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("reading page: %w", err)
		}
		return &Context{
			URL:     final,
			Content: TruncateRunes(normalise(string(data)), MaxContentRunes),
		}, nil
	}

	return Parse(body, final)
}
