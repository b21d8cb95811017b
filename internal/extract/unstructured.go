package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout     = 120 * time.Second
	DefaultMaxFileSize = 500 << 20
)

// UnstructuredClient calls an Unstructured partition API.
type UnstructuredClient struct {
	url         string
	client      *http.Client
	maxFileSize int64
	limiter     *rate.Limiter
}

// ClientOption configures an UnstructuredClient.
type ClientOption func(*UnstructuredClient)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *UnstructuredClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithMaxFileSize sets the largest upload accepted.
func WithMaxFileSize(n int64) ClientOption {
	return func(c *UnstructuredClient) {
		if n > 0 {
			c.maxFileSize = n
		}
	}
}

// WithRateLimit throttles outbound requests. rps <= 0 disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *UnstructuredClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// NewUnstructuredClient returns a client for the partition endpoint at url.
func NewUnstructuredClient(url string, opts ...ClientOption) *UnstructuredClient {
	c := &UnstructuredClient{
		url:         url,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract uploads content as a multipart "files" part with one "ocr_languages" field per hint.
func (c *UnstructuredClient) Extract(ctx context.Context, content []byte, filename string, langs []string) ([]Element, error) {
	if err := checkSize(content, c.maxFileSize); err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("unstructured rate limit: %w", err)
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("write multipart file: %w", err)
	}
	for _, lang := range langs {
		if err := mw.WriteField("ocr_languages", lang); err != nil {
			return nil, fmt.Errorf("write ocr_languages: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("create unstructured request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("unstructured API timed out after %s: %w", c.client.Timeout, err)
		}
		return nil, fmt.Errorf("unstructured API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unstructured API returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var elements []Element
	if err := json.NewDecoder(resp.Body).Decode(&elements); err != nil {
		return nil, fmt.Errorf("decode unstructured response: %w", err)
	}
	return elements, nil
}
