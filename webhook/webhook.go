// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package webhook

//go:generate mockgen -copyright_file=../.github/license-header.txt -source=webhook.go -destination=mocks/mock_sender.go -package=mocks Sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	validation "github.com/stacklok/errorflynn/validation/http"
)

// maxErrorBody bounds how much of a rejection body is kept in a StatusError.
const maxErrorBody = 1024

// Sender delivers messages to a webhook.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// StatusError is returned when the webhook answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("webhook returned %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// Client posts messages to a single incoming-webhook URL.
// It is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithHeaders adds headers sent with every delivery.
func WithHeaders(headers map[string]string) Option {
	return func(cl *Client) {
		for k, v := range headers {
			cl.headers[k] = v
		}
	}
}

// WithTimeout bounds each delivery. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// New returns a client bound to url. The URL and any extra headers are validated.
func New(url string, opts ...Option) (*Client, error) {
	if err := validation.ValidateWebhookURL(url); err != nil {
		return nil, err
	}

	c := &Client{
		url:     url,
		headers: map[string]string{},
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := validation.ValidateHeaders(c.headers); err != nil {
		return nil, err
	}
	return c, nil
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Send posts msg as JSON. Any 2xx answer counts as delivered.
func (c *Client) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding webhook message: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if id := NotificationID(ctx); id != "" {
		req.Header.Set(NotificationIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
