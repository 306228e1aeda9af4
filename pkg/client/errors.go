package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// RequestError is returned when a request could not be completed, either
// because every attempt failed at the transport level or because the server
// kept answering 429 or 5xx.
type RequestError struct {
	Attempts   int
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request failed after %d attempt(s): HTTP %d", e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("request failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when the server answered but the body is not a
// GraphQL response.
type ProtocolError struct {
	StatusCode int
	Body       string // truncated
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid GraphQL response (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("invalid GraphQL response (HTTP %d): %q", e.StatusCode, e.Body)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err means the endpoint can never be reached, such
// as a host name that does not resolve. Fatal errors abort a run.
func IsFatal(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// IsInconclusive reports whether err only says that one request failed.
// Such errors make a probe inconclusive but do not abort the run.
func IsInconclusive(err error) bool {
	if err == nil || IsFatal(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var reqErr *RequestError
	var protoErr *ProtocolError
	return errors.As(err, &reqErr) || errors.As(err, &protoErr)
}

const maxBodySnippet = 256

func snippet(body []byte) string {
	if len(body) > maxBodySnippet {
		return string(body[:maxBodySnippet]) + "..."
	}
	return string(body)
}
