package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint/internal/llmclient"
)

type sleepRecorder struct{ waits []time.Duration }

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func newTestDispatcher(t *testing.T, tr *stubTransport, opts ...DispatcherOption) (*Dispatcher, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	c := NewClient(testCatalog(), map[string]llmclient.Transport{"stub": tr})
	opts = append([]DispatcherOption{withSleep(rec.sleep)}, opts...)
	return NewDispatcher(c, opts...), rec
}

func mustSelect(t *testing.T, in PartialSelection) ValidSelection {
	t.Helper()
	sel, err := NewValidator(testCatalog()).Validate(in)
	require.NoError(t, err)
	return sel
}

func TestDispatcher_PrimarySucceeds(t *testing.T) {
	tr := newStubTransport("stub")
	d, rec := newTestDispatcher(t, tr)
	out, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha", FallbackModel: "beta"}), "p")
	require.NoError(t, err)
	assert.Equal(t, "alpha", out.ModelUsed)
	assert.Len(t, out.Attempts, 1)
	assert.Empty(t, rec.waits)
}

func TestDispatcher_ProviderErrorWithoutFallback(t *testing.T) {
	tr := newStubTransport("stub").fail("alpha", kindErr(llmclient.KindProviderError))
	d, rec := newTestDispatcher(t, tr)

	_, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha"}), "p")
	fr, ok := IsFailureReport(err)
	require.True(t, ok)
	assert.Equal(t, llmclient.KindProviderError, fr.LastKind)
	assert.Equal(t, []string{"alpha"}, fr.Attempted)
	assert.Equal(t, []string{"alpha"}, tr.models())
	assert.Empty(t, rec.waits)
}

func TestDispatcher_TimeoutExhaustsThenFailsOver(t *testing.T) {
	timeout := kindErr(llmclient.KindTimeout)
	tr := newStubTransport("stub").fail("alpha", timeout, timeout, timeout)
	d, rec := newTestDispatcher(t, tr)

	out, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha", FallbackModel: "beta"}), "p")
	require.NoError(t, err)
	assert.Equal(t, "beta", out.ModelUsed)
	assert.Equal(t, []string{"alpha", "alpha", "alpha", "beta"}, tr.models())
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, rec.waits)
	require.Len(t, out.Attempts, 4)
	assert.Equal(t, llmclient.KindTimeout, out.Attempts[0].Kind)
	assert.Empty(t, out.Attempts[3].Kind)
}

func TestDispatcher_FallbackGetsItsOwnRetryBudget(t *testing.T) {
	timeout := kindErr(llmclient.KindTimeout)
	tr := newStubTransport("stub").
		fail("alpha", timeout, timeout, timeout).
		fail("beta", timeout, timeout, timeout)
	d, _ := newTestDispatcher(t, tr)

	_, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha", FallbackModel: "beta"}), "p")
	fr, ok := IsFailureReport(err)
	require.True(t, ok)
	assert.Equal(t, llmclient.KindTimeout, fr.LastKind)
	assert.Equal(t, []string{"alpha", "beta"}, fr.Attempted)
	assert.Equal(t, "beta", fr.LastModel())
	assert.Len(t, fr.Attempts, 6)
	assert.Equal(t, []string{"alpha", "alpha", "alpha", "beta", "beta", "beta"}, tr.models())
}

func TestDispatcher_DeterministicErrorsFailOverImmediately(t *testing.T) {
	tr := newStubTransport("stub").fail("alpha", kindErr(llmclient.KindInvalidResponse))
	d, rec := newTestDispatcher(t, tr)

	out, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha", FallbackModel: "beta"}), "p")
	require.NoError(t, err)
	assert.Equal(t, "beta", out.ModelUsed)
	assert.Equal(t, []string{"alpha", "beta"}, tr.models())
	assert.Empty(t, rec.waits)
}

func TestDispatcher_HonorsRetryAfterHint(t *testing.T) {
	limited := &llmclient.InvocationError{Kind: llmclient.KindRateLimited, RetryAfter: 3 * time.Second}
	tr := newStubTransport("stub").fail("alpha", limited)
	d, rec := newTestDispatcher(t, tr)

	out, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha"}), "p")
	require.NoError(t, err)
	assert.Equal(t, "alpha", out.ModelUsed)
	assert.Equal(t, []time.Duration{3 * time.Second}, rec.waits)
}

func TestDispatcher_BackoffCap(t *testing.T) {
	d := NewDispatcher(nil, WithBackoff(time.Second, 3*time.Second))
	for i, want := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		got, ok := d.backoff(i, 0)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	got, ok := d.backoff(40, 0)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, got)

	got, ok = d.backoff(0, 3*time.Second)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, got)

	_, ok = NewDispatcher(nil).backoff(0, 6*time.Hour)
	assert.False(t, ok)
}

func TestDispatcher_LongRetryHintFailsOver(t *testing.T) {
	limited := &llmclient.InvocationError{Kind: llmclient.KindRateLimited, RetryAfter: 6 * time.Hour}
	tr := newStubTransport("stub").fail("alpha", limited)
	d, rec := newTestDispatcher(t, tr)

	out, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha", FallbackModel: "beta"}), "p")
	require.NoError(t, err)
	assert.Equal(t, "beta", out.ModelUsed)
	assert.Equal(t, []string{"alpha", "beta"}, tr.models())
	assert.Empty(t, rec.waits)
}

func TestDispatcher_ZeroRetries(t *testing.T) {
	tr := newStubTransport("stub").fail("alpha", kindErr(llmclient.KindTimeout))
	d, _ := newTestDispatcher(t, tr, WithRetries(0))
	_, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha"}), "p")
	require.Error(t, err)
	assert.Equal(t, []string{"alpha"}, tr.models())
}

func TestDispatcher_CancellationStopsFailover(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := newStubTransport("stub")
	inv := InvokerFunc(func(ctx context.Context, call Call) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	c := NewClient(testCatalog(), map[string]llmclient.Transport{"stub": tr},
		WithMiddleware(func(Invoker) Invoker { return inv }))
	d := NewDispatcher(c)

	_, err := d.Run(ctx, mustSelect(t, PartialSelection{PrimaryModel: "alpha", FallbackModel: "beta"}), "p")
	fr, ok := IsFailureReport(err)
	require.True(t, ok)
	assert.Equal(t, llmclient.KindTimeout, fr.LastKind)
	assert.Equal(t, []string{"alpha"}, fr.Attempted)
	assert.Len(t, fr.Attempts, 1)
	assert.Empty(t, tr.models())
}

type failoverRecorder struct{ moves []string }

func (f *failoverRecorder) ObserveFailover(from, to string, kind llmclient.Kind) {
	f.moves = append(f.moves, from+"->"+to+":"+string(kind))
}

func TestDispatcher_ReportsFailover(t *testing.T) {
	fo := &failoverRecorder{}
	tr := newStubTransport("stub").fail("alpha", kindErr(llmclient.KindProviderError))
	d, _ := newTestDispatcher(t, tr, WithFailoverObserver(fo))
	_, err := d.Run(context.Background(), mustSelect(t, PartialSelection{PrimaryModel: "alpha", FallbackModel: "gamma"}), "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha->gamma:provider_error"}, fo.moves)
}

func TestDispatcher_ClampsTuningForFallback(t *testing.T) {
	tr := newStubTransport("stub").fail("gamma", kindErr(llmclient.KindProviderError))
	d, _ := newTestDispatcher(t, tr)
	sel := mustSelect(t, PartialSelection{PrimaryModel: "gamma", FallbackModel: "beta", MaxTokens: ptr(6000)})
	_, err := d.Run(context.Background(), sel, "p")
	require.NoError(t, err)
	require.Len(t, tr.calls, 2)
	assert.Equal(t, 6000, tr.calls[0].Params.MaxTokens)
	assert.Equal(t, 2048, tr.calls[1].Params.MaxTokens)
}
