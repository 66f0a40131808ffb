// Package llm provides the OpenAI-style chat completion client used by the
// conversation loop, along with error classification and retry policy.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
)

// Kind is the closed taxonomy of transport and API failures.
type Kind int

const (
	// KindUnknown is any failure the classifier cannot place.
	KindUnknown Kind = iota
	// KindTimeout is a request that exceeded its wall-clock deadline.
	KindTimeout
	// KindRateLimit is a 429 with an optional retry-after hint.
	KindRateLimit
	// KindAuthentication is a 401 (bad or missing API key).
	KindAuthentication
	// KindForbidden is a 403.
	KindForbidden
	// KindNotFound is a 404 (usually a bad model or endpoint path).
	KindNotFound
	// KindContextLength is a request rejected for exceeding the model's
	// context window.
	KindContextLength
	// KindTokenLimit is a quota/token budget exhaustion.
	KindTokenLimit
	// KindServer is a 5xx; the request may succeed on retry.
	KindServer
	// KindClientAPI is any other 4xx; retrying will not help.
	KindClientAPI
	// KindConnection is a DNS, refused or reset failure.
	KindConnection
	// KindNetwork is any other transport failure.
	KindNetwork
	// KindInterrupted is a user-cancelled request. Never retried.
	KindInterrupted
)

// String returns the taxonomy name for the kind.
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindContextLength:
		return "context_length_exceeded"
	case KindTokenLimit:
		return "token_limit"
	case KindServer:
		return "server_error"
	case KindClientAPI:
		return "client_api_error"
	case KindConnection:
		return "connection_error"
	case KindNetwork:
		return "network_error"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error is a classified transport or API failure.
type Error struct {
	// Kind places the failure in the closed taxonomy.
	Kind Kind
	// Message is a human-readable explanation suitable for the caller.
	Message string
	// RetryAfter is the server's backoff hint for rate limits, if any.
	RetryAfter time.Duration
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Recoverable reports whether a retry may succeed. Only transport and
// server-class failures are recoverable; client errors and interruption
// are not.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindServer, KindConnection, KindNetwork:
		return true
	default:
		return false
	}
}

// IsInterrupted reports whether err classifies as a user cancellation.
func IsInterrupted(err error) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind == KindInterrupted
	}
	return errors.Is(err, context.Canceled)
}

// Classify maps a low-level failure into the taxonomy. Already-classified
// errors pass through unchanged. Classify(nil) returns nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}

	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindInterrupted, Message: "request cancelled", Err: err}
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return classifyAPI(apierr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var dnserr *net.DNSError
	if errors.As(err, &dnserr) {
		return &Error{Kind: KindConnection, Message: "DNS lookup failed: " + dnserr.Name, Err: err}
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return &Error{Kind: KindConnection, Message: "connection failed", Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &Error{Kind: KindNetwork, Message: "transport failure", Err: err}
	}

	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}

// classifyAPI maps an API error response by status code and error code.
func classifyAPI(apierr *openai.Error) *Error {
	msg := strings.TrimSpace(apierr.Message)
	if msg == "" {
		msg = fmt.Sprintf("API returned status %d", apierr.StatusCode)
	}

	switch {
	case apierr.StatusCode == http.StatusUnauthorized:
		return &Error{Kind: KindAuthentication, Message: msg, Err: apierr}
	case apierr.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindForbidden, Message: msg, Err: apierr}
	case apierr.StatusCode == http.StatusNotFound:
		return &Error{Kind: KindNotFound, Message: msg, Err: apierr}
	case apierr.StatusCode == http.StatusRequestTimeout:
		return &Error{Kind: KindTimeout, Message: msg, Err: apierr}
	case apierr.StatusCode == http.StatusTooManyRequests:
		if apierr.Code == "insufficient_quota" {
			return &Error{Kind: KindTokenLimit, Message: msg, Err: apierr}
		}
		return &Error{
			Kind:       KindRateLimit,
			Message:    msg,
			RetryAfter: retryAfterHint(apierr.Response),
			Err:        apierr,
		}
	case isContextLength(apierr):
		return &Error{Kind: KindContextLength, Message: msg, Err: apierr}
	case apierr.StatusCode >= 500:
		return &Error{Kind: KindServer, Message: msg, Err: apierr}
	case apierr.StatusCode >= 400:
		return &Error{Kind: KindClientAPI, Message: msg, Err: apierr}
	default:
		return &Error{Kind: KindUnknown, Message: msg, Err: apierr}
	}
}

func isContextLength(apierr *openai.Error) bool {
	if apierr.Code == "context_length_exceeded" {
		return true
	}
	lower := strings.ToLower(apierr.Message)
	return strings.Contains(lower, "context length") ||
		strings.Contains(lower, "maximum context")
}

// retryAfterHint parses the Retry-After header as delay seconds.
func retryAfterHint(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
