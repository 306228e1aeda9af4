package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/rehttp"
	"golang.org/x/net/http/httpproxy"

	"github.com/samwightt/gqlblind/pkg/config"
)

// newBaseTransport builds the connection-level transport: proxy selection,
// TLS verification and a connection pool sized to the concurrency limit.
func newBaseTransport(cfg config.Config) (*http.Transport, error) {
	proxy, err := proxyFunc(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = proxy
	t.MaxIdleConnsPerHost = cfg.Concurrency
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec // opt-in via --no-ssl
	return t, nil
}

// proxyFunc returns an explicit proxy when raw is set and otherwise follows
// HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
func proxyFunc(raw string) (func(*http.Request) (*url.URL, error), error) {
	if raw == "" {
		fromEnv := httpproxy.FromEnvironment().ProxyFunc()
		return func(req *http.Request) (*url.URL, error) {
			return fromEnv(req.URL)
		}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return http.ProxyURL(u), nil
}

// newRetryTransport wraps next with retries for transport failures, 429 and
// 5xx responses. Every attempt passes through the attempt counter so errors
// can report how many were made.
func newRetryTransport(next http.RoundTripper, cfg config.Config, m *metrics) *rehttp.Transport {
	counted := &countingTransport{next: next, metrics: m}
	t := rehttp.NewTransport(counted, retryPolicy(cfg.MaxRetries), backoffDelay(cfg.Backoff, cfg.BackoffFactor, cfg.MaxBackoff))
	t.PerAttemptTimeout = cfg.Timeout
	return t
}

func retryPolicy(maxRetries int) rehttp.RetryFn {
	return rehttp.RetryAll(
		rehttp.RetryMaxRetries(maxRetries),
		func(a rehttp.Attempt) bool {
			if a.Error != nil {
				return retryableError(a.Request.Context(), a.Error)
			}
			return a.Response != nil && retryableStatus(a.Response.StatusCode)
		},
	)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryableError(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !IsFatal(err)
}

// backoffDelay waits base*factor^n before retry n (0-based), capped at limit
// when limit is positive.
func backoffDelay(base time.Duration, factor float64, limit time.Duration) rehttp.DelayFn {
	return func(a rehttp.Attempt) time.Duration {
		d := float64(base) * math.Pow(factor, float64(a.Index))
		if limit > 0 && d > float64(limit) {
			return limit
		}
		return time.Duration(d)
	}
}

type attemptsKey struct{}

func withAttemptCounter(ctx context.Context) (context.Context, *atomic.Int32) {
	n := &atomic.Int32{}
	return context.WithValue(ctx, attemptsKey{}, n), n
}

type countingTransport struct {
	next    http.RoundTripper
	metrics *metrics
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if n, ok := req.Context().Value(attemptsKey{}).(*atomic.Int32); ok {
		n.Add(1)
	}
	t.metrics.attempts.Inc()
	return t.next.RoundTrip(req)
}
