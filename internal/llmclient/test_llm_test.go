package llmclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindRetryable(t *testing.T) {
	assert.True(t, KindTimeout.Retryable())
	assert.True(t, KindRateLimited.Retryable())
	assert.False(t, KindProviderError.Retryable())
	assert.False(t, KindInvalidResponse.Retryable())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"canceled", fmt.Errorf("do: %w", context.Canceled), KindTimeout},
		{"invalid", ErrInvalidResponse, KindInvalidResponse},
		{"other", errors.New("boom"), KindProviderError},
		{"already classified", NewInvocationError(KindRateLimited, errors.New("slow down")), KindRateLimited},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err).Kind)
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindRateLimited, KindForStatus(429, ""))
	assert.Equal(t, KindRateLimited, KindForStatus(529, ""))
	assert.Equal(t, KindTimeout, KindForStatus(504, ""))
	assert.Equal(t, KindInvalidResponse, KindForStatus(400, `{"error":{"code":"context_length_exceeded"}}`))
	assert.Equal(t, KindProviderError, KindForStatus(400, `{"error":"bad"}`))
	assert.Equal(t, KindProviderError, KindForStatus(500, ""))
}

func TestInvocationErrorMessage(t *testing.T) {
	err := &InvocationError{Kind: KindTimeout, Model: "gpt-4o", Err: errors.New("slow")}
	assert.Equal(t, "gpt-4o: timeout: slow", err.Error())
	assert.ErrorIs(t, &InvocationError{Kind: KindInvalidResponse, Err: ErrInvalidResponse}, ErrInvalidResponse)
}

func TestStatusError(t *testing.T) {
	err := statusError("groq", 503, []byte("  upstream busy \n"))
	assert.EqualError(t, err, "groq: unexpected status 503 Service Unavailable: upstream busy")

	long := statusError("openai", 500, bytes.Repeat([]byte("x"), 4096))
	assert.Len(t, long.Error(), len("openai: unexpected status 500 Internal Server Error: ")+2048)
}
