package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Kind classifies why a single model invocation failed.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindRateLimited     Kind = "rate_limited"
	KindProviderError   Kind = "provider_error"
	KindInvalidResponse Kind = "invalid_response"
)

// Retryable reports whether the same model may be asked again.
// Only load-related failures qualify; deterministic rejections do not.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindRateLimited
}

var ErrInvalidResponse = errors.New("invalid response from model provider")

// Params carries the sampling parameters forwarded to a provider.
type Params struct {
	Temperature      float64
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	MaxTokens        int
}

// Request is one generation call against a provider-side model name.
type Request struct {
	Model  string
	System string
	Prompt string
	Params Params
}

// Transport performs exactly one outbound generation call per Generate.
type Transport interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// InvocationError is the classified failure of a single invocation.
type InvocationError struct {
	Kind       Kind
	Model      string
	RetryAfter time.Duration
	Err        error
}

func (e *InvocationError) Error() string {
	msg := string(e.Kind)
	if e.Model != "" {
		msg = e.Model + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvocationError) Unwrap() error { return e.Err }

func NewInvocationError(kind Kind, err error) *InvocationError {
	return &InvocationError{Kind: kind, Err: err}
}

// KindOf returns the classification of err, defaulting to ProviderError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// Classify converts any transport error into an InvocationError.
// Caller cancellation is reported as a timeout: the call did not finish in
// the time it was allowed.
func Classify(err error) *InvocationError {
	if err == nil {
		return nil
	}
	var inv *InvocationError
	if errors.As(err, &inv) {
		return inv
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewInvocationError(KindTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewInvocationError(KindTimeout, err)
	}
	if errors.Is(err, ErrInvalidResponse) {
		return NewInvocationError(KindInvalidResponse, err)
	}
	return NewInvocationError(KindProviderError, err)
}

// KindForStatus maps an HTTP status and error body to a failure kind.
func KindForStatus(status int, body string) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 529:
		// Anthropic "overloaded"; transient like a rate limit.
		return KindRateLimited
	case status == 408 || status == 504:
		return KindTimeout
	case status == 400 && isContextLengthError(body):
		return KindInvalidResponse
	default:
		return KindProviderError
	}
}

func isContextLengthError(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "context_length_exceeded") ||
		strings.Contains(b, "maximum context length") ||
		strings.Contains(b, "prompt is too long")
}

func statusError(provider string, status int, body []byte) error {
	const max = 2048
	if len(body) > max {
		body = body[:max]
	}
	return fmt.Errorf("%s: unexpected status %d %s: %s", provider, status, http.StatusText(status), strings.TrimSpace(string(body)))
}
