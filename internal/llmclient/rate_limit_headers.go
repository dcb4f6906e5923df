package llmclient

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitHeaders represents normalized provider rate-limit signals.
type RateLimitHeaders struct {
	RetryAfterSeconds int

	LimitRequests     int
	LimitTokens       int
	RemainingRequests int
	RemainingTokens   int

	ResetRequests time.Duration
	ResetTokens   time.Duration
}

// RetryAfter converts the signals to the wait a caller should honor before
// asking the same provider again. Zero means no hint.
func (h RateLimitHeaders) RetryAfter() time.Duration {
	if h.RetryAfterSeconds > 0 {
		return time.Duration(h.RetryAfterSeconds) * time.Second
	}
	if h.RemainingTokens == 0 && h.ResetTokens > 0 {
		return h.ResetTokens
	}
	if h.RemainingRequests == 0 && h.ResetRequests > 0 {
		return h.ResetRequests
	}
	return 0
}

// ParseRateLimitHeaders reads the OpenAI-style headers also used by Groq and
// the anthropic-ratelimit-* family.
func ParseRateLimitHeaders(h http.Header) (RateLimitHeaders, bool) {
	out := RateLimitHeaders{
		RemainingRequests: -1,
		RemainingTokens:   -1,
	}
	found := false

	readInt := func(keys ...string) (int, bool) {
		for _, key := range keys {
			v := strings.TrimSpace(h.Get(key))
			if v == "" {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				continue
			}
			return n, true
		}
		return 0, false
	}
	readDur := func(keys ...string) (time.Duration, bool) {
		for _, key := range keys {
			v := strings.TrimSpace(h.Get(key))
			if v == "" {
				continue
			}
			if d, err := time.ParseDuration(v); err == nil {
				return d, true
			}
			// anthropic reports reset instants as RFC 3339.
			if at, err := time.Parse(time.RFC3339, v); err == nil {
				if d := time.Until(at); d > 0 {
					return d, true
				}
				return 0, true
			}
		}
		return 0, false
	}

	if v, ok := readInt("retry-after"); ok {
		out.RetryAfterSeconds = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-limit-requests", "anthropic-ratelimit-requests-limit"); ok {
		out.LimitRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-limit-tokens", "anthropic-ratelimit-tokens-limit"); ok {
		out.LimitTokens = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-requests", "anthropic-ratelimit-requests-remaining"); ok {
		out.RemainingRequests = v
		found = true
	}
	if v, ok := readInt("x-ratelimit-remaining-tokens", "anthropic-ratelimit-tokens-remaining"); ok {
		out.RemainingTokens = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-requests", "anthropic-ratelimit-requests-reset"); ok {
		out.ResetRequests = v
		found = true
	}
	if v, ok := readDur("x-ratelimit-reset-tokens", "anthropic-ratelimit-tokens-reset"); ok {
		out.ResetTokens = v
		found = true
	}

	return out, found
}
