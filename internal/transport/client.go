// Package transport opens streaming HTTP exchanges with the chat endpoint.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "chatwidget/1.0"

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client posts JSON bodies and hands back the raw response stream.
type Client struct {
	resty *resty.Client
}

// Options configures a Client.
type Options struct {
	// Timeout bounds the whole exchange, body reads included. Zero disables it.
	Timeout time.Duration
	Headers map[string]string
}

// NewClient creates a client. Retries are disabled: each send is a single
// attempt.
func NewClient(opts Options) *Client {
	rc := resty.New().
		SetRetryCount(0).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/x-ndjson, text/event-stream, */*")
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	for k, v := range opts.Headers {
		rc.SetHeader(k, v)
	}
	return &Client{resty: rc}
}

// Stream POSTs body as JSON to url and returns the open response body. The
// caller must close it. Cancelling ctx aborts both the request and any
// pending body read.
func (c *Client) Stream(ctx context.Context, url string, body any) (io.ReadCloser, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}

	raw := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		var snippet []byte
		if raw != nil {
			snippet, _ = io.ReadAll(io.LimitReader(raw, 512))
			raw.Close()
		}
		return nil, &StatusError{
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("post %s: empty response body", url)
	}

	slog.Debug("stream opened", "url", url, "status", resp.StatusCode(),
		"content_type", resp.Header().Get("Content-Type"))
	return raw, nil
}
