// Package fetcher downloads media bytes over HTTP and classifies failures
// into the igarchive error taxonomy.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
)

// DefaultMaxBytes caps a single media download.
const DefaultMaxBytes int64 = 512 << 20

// Fetcher retrieves the body behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client is an HTTP media fetcher
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	maxBytes   int64
	logger     logger.Logger
}

// NewClient creates a fetcher with the given per-request timeout
func NewClient(timeout time.Duration, userAgent string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if userAgent == "" {
		userAgent = "igarchive"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "image/avif,image/webp,image/apng,image/*,video/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Sec-Fetch-Dest":  "image",
			"Sec-Fetch-Mode":  "no-cors",
		},
		maxBytes: DefaultMaxBytes,
		logger:   log.WithField("component", "fetcher"),
	}
}

// SetHeader sets a custom header for every request
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetMaxBytes overrides the download size cap
func (c *Client) SetMaxBytes(n int64) {
	c.maxBytes = n
}

// Fetch downloads url and returns its body. Failures are typed: transport
// problems as network errors, HTTP statuses via errors.FromStatusCode.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeInput, err, "invalid media url")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      logger.URLPrefix(url),
			"duration": time.Since(start),
			"error":    err.Error(),
		})
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.Network(err, "request media")
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, errs.Network(err, "read media body")
	}
	if int64(len(data)) > c.maxBytes {
		return nil, errs.New(errs.ErrorTypeInput, fmt.Sprintf("media exceeds %d bytes", c.maxBytes))
	}
	if len(data) == 0 {
		return nil, errs.New(errs.ErrorTypeNetwork, "empty media body")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      logger.URLPrefix(url),
		"status":   resp.StatusCode,
		"size":     len(data),
		"duration": time.Since(start),
	})

	return data, nil
}

func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	err := errs.FromStatusCode(resp.StatusCode)
	c.logger.DebugWithFields("unexpected media response", map[string]interface{}{
		"status": resp.StatusCode,
		"type":   string(err.Type),
		"url":    logger.URLPrefix(resp.Request.URL.String()),
	})
	return err
}
