// Package client sends GraphQL documents to the target endpoint.
//
// Every request passes through a weighted semaphore that bounds how many are
// in flight, and through a retrying transport that backs off on transport
// errors, 429 and 5xx responses. GraphQL-level errors are a normal response
// and are never retried.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/semaphore"

	"github.com/samwightt/gqlblind/pkg/config"
	"github.com/samwightt/gqlblind/pkg/logger"
)

// GraphQLError is one entry of a response's "errors" array.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Location is a position in the sent document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Response is a decoded GraphQL response.
type Response struct {
	StatusCode int
	Data       json.RawMessage
	Errors     []GraphQLError
}

// HasData reports whether the response carries a non-null "data" member.
func (r *Response) HasData() bool {
	trimmed := bytes.TrimSpace(r.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Messages returns the message of every error, in order.
func (r *Response) Messages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// Sender is the interface the probing oracle depends on.
type Sender interface {
	Send(ctx context.Context, document string, variables map[string]any) (*Response, error)
}

// Client is a concurrency-limited, retrying GraphQL client. It is safe for
// concurrent use.
type Client struct {
	url       string
	headers   map[string]string
	userAgent string

	http    *http.Client
	base    *http.Transport
	sem     *semaphore.Weighted
	metrics *metrics
	log     *logger.Logger
}

// New returns a client for cfg.URL. reg may be nil.
func New(cfg config.Config, log *logger.Logger, reg prometheus.Registerer) (*Client, error) {
	base, err := newBaseTransport(cfg)
	if err != nil {
		return nil, err
	}
	return newClient(cfg, log, reg, base, base), nil
}

// newClient lets tests replace the connection-level transport.
func newClient(cfg config.Config, log *logger.Logger, reg prometheus.Registerer, base *http.Transport, rt http.RoundTripper) *Client {
	if log == nil {
		log = logger.Nop()
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	m := newMetrics(reg)
	return &Client{
		url:       cfg.URL,
		headers:   headers,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Transport: newRetryTransport(rt, cfg, m)},
		base:      base,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		metrics:   m,
		log:       log.With("component", "client"),
	}
}

type requestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type responseBody struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Send posts document and returns the decoded response. A response whose
// status is 200 or 4xx and whose body is a GraphQL result is returned as is,
// errors included. Exhausted retries yield a *RequestError; an undecodable
// body yields a *ProtocolError.
func (c *Client) Send(ctx context.Context, document string, variables map[string]any) (*Response, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		c.metrics.requests.WithLabelValues(outcomeCanceled).Inc()
		return nil, fmt.Errorf("waiting for a request slot: %w", err)
	}
	defer c.sem.Release(1)

	c.metrics.inFlight.Inc()
	defer c.metrics.inFlight.Dec()

	payload, err := json.Marshal(requestBody{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, attempts := withAttemptCounter(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.metrics.requests.WithLabelValues(outcomeCanceled).Inc()
			return nil, ctxErr
		}
		c.metrics.requests.WithLabelValues(outcomeTransport).Inc()
		reqErr := &RequestError{Attempts: int(attempts.Load()), Err: err}
		c.log.Debug("request failed", "attempts", reqErr.Attempts, "err", err)
		return nil, reqErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.requests.WithLabelValues(outcomeTransport).Inc()
		return nil, &RequestError{Attempts: int(attempts.Load()), StatusCode: resp.StatusCode, Err: err}
	}

	if retryableStatus(resp.StatusCode) {
		c.metrics.requests.WithLabelValues(outcomeHTTPError).Inc()
		c.log.Debug("request failed", "attempts", attempts.Load(), "status", resp.StatusCode)
		return nil, &RequestError{
			Attempts:   int(attempts.Load()),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body)),
		}
	}

	var decoded responseBody
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.metrics.requests.WithLabelValues(outcomeProtocol).Inc()
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: snippet(body), Err: err}
	}
	if decoded.Data == nil && decoded.Errors == nil {
		c.metrics.requests.WithLabelValues(outcomeProtocol).Inc()
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Body: snippet(body), Err: errors.New(`neither "data" nor "errors" present`)}
	}

	c.metrics.requests.WithLabelValues(outcomeOK).Inc()
	return &Response{StatusCode: resp.StatusCode, Data: decoded.Data, Errors: decoded.Errors}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
}
