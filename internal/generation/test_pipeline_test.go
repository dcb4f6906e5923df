package generation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint/internal/llm"
	"blueprint/internal/llmclient"
)

var input = ProjectInput{Description: "a todo app"}

func TestPipeline_TwoOfSixFailIsPartial(t *testing.T) {
	d := newStubDispatcher()
	d.fail[StageUXWireframes] = llmclient.KindProviderError
	d.fail[StageDeploymentConfig] = llmclient.KindTimeout

	b := NewPipeline(d).Run(context.Background(), input, selection("primary", "backup"), DefaultStages())

	assert.Equal(t, StatusPartial, b.OverallStatus)
	assert.Equal(t, []string{
		StageProductPlan, StageTechnicalArchitecture, StageUXWireframes,
		StageDesignSystem, StageBackendScaffold, StageDeploymentConfig,
	}, b.Keys())
	ux, _ := b.Get(StageUXWireframes)
	assert.Equal(t, StageFailed, ux.Status)
	assert.Equal(t, llmclient.KindProviderError, ux.Error)
	assert.Equal(t, "backup", ux.ModelUsed)
	assert.Empty(t, ux.Text)
	plan, _ := b.Get(StageProductPlan)
	assert.Equal(t, "text for productPlan", plan.Text)
	assert.Equal(t, "primary", b.ModelUsed)
	assert.NotEmpty(t, b.RunID)
}

func TestPipeline_AllRequiredFailIsFailed(t *testing.T) {
	d := newStubDispatcher()
	for _, st := range DefaultStages() {
		d.fail[st.Key] = llmclient.KindRateLimited
	}
	b := NewPipeline(d).Run(context.Background(), input, selection("primary", ""), DefaultStages())

	assert.Equal(t, StatusFailed, b.OverallStatus)
	require.Len(t, b.Results, 6)
	for _, r := range b.Results {
		assert.Empty(t, r.Text)
		assert.Equal(t, llmclient.KindRateLimited, r.Error)
		assert.Equal(t, "primary", r.ModelUsed)
	}
	assert.Equal(t, "primary", b.ModelUsed)
}

func TestPipeline_AllStagesAttemptedInOrder(t *testing.T) {
	d := newStubDispatcher()
	d.fail["a"] = llmclient.KindProviderError
	NewPipeline(d).Run(context.Background(), input, selection("primary", ""), stagesNamed("a", "b", "c"))
	assert.Equal(t, []string{"a", "b", "c"}, d.called())
}

func TestPipeline_BundleModelIsFallbackWhenOnlyFallbackAnswered(t *testing.T) {
	d := newStubDispatcher()
	d.answerWith["a"] = "backup"
	d.fail["b"] = llmclient.KindTimeout
	b := NewPipeline(d).Run(context.Background(), input, selection("primary", "backup"), stagesNamed("a", "b"))

	assert.Equal(t, "backup", b.ModelUsed)
	a, _ := b.Get("a")
	assert.Equal(t, "backup", a.ModelUsed)
}

func TestPipeline_OptionalStagesDoNotAffectStatus(t *testing.T) {
	d := newStubDispatcher()
	d.fail["extra"] = llmclient.KindProviderError
	stages := stagesNamed("a", "extra")
	stages[1].Required = false
	b := NewPipeline(d).Run(context.Background(), input, selection("primary", ""), stages)
	assert.Equal(t, StatusCompleted, b.OverallStatus)
}

func TestPipeline_ConcurrentKeepsDeclaredOrder(t *testing.T) {
	d := newStubDispatcher()
	d.delay["a"] = 80 * time.Millisecond
	d.delay["b"] = 40 * time.Millisecond
	d.delay["c"] = 5 * time.Millisecond
	d.delay["d"] = 5 * time.Millisecond

	b := NewPipeline(d, WithConcurrency(2)).Run(context.Background(), input, selection("primary", ""), stagesNamed("a", "b", "c", "d"))

	assert.Equal(t, []string{"a", "b", "c", "d"}, b.Keys())
	assert.Equal(t, StatusCompleted, b.OverallStatus)
	assert.LessOrEqual(t, d.peak.Load(), int32(2))
	assert.Equal(t, int32(2), d.peak.Load())
}

func TestPipeline_CancellationPreservesCompletedStages(t *testing.T) {
	d := newStubDispatcher()
	d.delay["b"] = time.Second
	ctx, cancel := context.WithCancel(context.Background())
	obs := &cancelAfter{stage: "b", cancel: cancel}

	b := NewPipeline(d, WithStageObserver(obs)).Run(ctx, input, selection("primary", "backup"), stagesNamed("a", "b", "c"))

	require.Len(t, b.Results, 3)
	assert.Equal(t, StageOK, b.Results[0].Status)
	assert.Equal(t, StageFailed, b.Results[1].Status)
	assert.Equal(t, llmclient.KindTimeout, b.Results[1].Error)
	assert.Equal(t, StageFailed, b.Results[2].Status)
	assert.Equal(t, llmclient.KindTimeout, b.Results[2].Error)
	assert.Equal(t, StatusPartial, b.OverallStatus)
	assert.Equal(t, []string{"a", "b"}, d.called())
}

// cancelAfter cancels the run shortly after the named stage starts.
type cancelAfter struct {
	stage  string
	cancel context.CancelFunc
}

func (c *cancelAfter) OnStageStart(_ context.Context, _ string, _ int, st Stage) {
	if st.Key == c.stage {
		time.AfterFunc(20*time.Millisecond, c.cancel)
	}
}
func (c *cancelAfter) OnStageDone(context.Context, string, int, StageResult) {}

func TestPipeline_StrictTokenBudget(t *testing.T) {
	d := newStubDispatcher()
	long := Stage{Key: "long", Required: true, Prompt: func(ProjectInput) string {
		return string(make([]byte, 1000)) + " words words"
	}}
	sel, err := llm.NewValidator(testCatalog()).Validate(llm.PartialSelection{PrimaryModel: "tiny", MaxTokens: ptr(1000)})
	require.NoError(t, err)

	b := NewPipeline(d, WithStrictTokenBudget(true)).Run(context.Background(), input, sel, []Stage{long})
	assert.Equal(t, llmclient.KindInvalidResponse, b.Results[0].Error)
	assert.Empty(t, d.called())

	b = NewPipeline(d).Run(context.Background(), input, sel, []Stage{long})
	assert.Equal(t, StageOK, b.Results[0].Status)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingObserver) OnStageStart(_ context.Context, _ string, i int, st Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "start:"+st.Key)
}

func (r *recordingObserver) OnStageDone(_ context.Context, _ string, i int, res StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "done:"+res.StageKey+":"+string(res.Status))
}

func TestPipeline_NotifiesObservers(t *testing.T) {
	d := newStubDispatcher()
	d.fail["b"] = llmclient.KindProviderError
	static := &recordingObserver{}
	perRun := &recordingObserver{}

	ctx := WithObserver(context.Background(), perRun)
	NewPipeline(d, WithStageObserver(static)).Run(ctx, input, selection("primary", ""), stagesNamed("a", "b"))

	want := []string{"start:a", "done:a:ok", "start:b", "done:b:failed"}
	assert.Equal(t, want, static.events)
	assert.Equal(t, want, perRun.events)
}

func TestPipeline_UsesRunIDFromContext(t *testing.T) {
	ctx := llm.WithRunID(context.Background(), "run-42")
	b := NewPipeline(newStubDispatcher()).Run(ctx, input, selection("primary", ""), stagesNamed("a"))
	assert.Equal(t, "run-42", b.RunID)
}

type countingRecorder struct {
	mu      sync.Mutex
	stages  map[string]int
	bundles map[string]int
}

func (c *countingRecorder) ObserveStage(stage, status string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages[status]++
}

func (c *countingRecorder) ObserveBundle(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bundles[status]++
}

func TestPipeline_Records(t *testing.T) {
	d := newStubDispatcher()
	d.fail["b"] = llmclient.KindProviderError
	rec := &countingRecorder{stages: map[string]int{}, bundles: map[string]int{}}
	NewPipeline(d, WithRecorder(rec)).Run(context.Background(), input, selection("primary", ""), stagesNamed("a", "b", "c"))
	assert.Equal(t, map[string]int{"ok": 2, "failed": 1}, rec.stages)
	assert.Equal(t, map[string]int{"partial": 1}, rec.bundles)
}

func TestPipeline_WithRealDispatcher(t *testing.T) {
	catalog := testCatalog()
	client := llm.NewClient(catalog, map[string]llmclient.Transport{"stub": llm.NewFakeTransport()})
	disp := llm.NewDispatcher(client)
	sel, err := llm.NewValidator(catalog).Validate(llm.PartialSelection{PrimaryModel: "primary"})
	require.NoError(t, err)

	b := NewPipeline(disp).Run(context.Background(), input, sel, DefaultStages())
	assert.Equal(t, StatusCompleted, b.OverallStatus)
	for _, r := range b.Results {
		assert.Contains(t, r.Text, "Offline draft from primary")
		require.Len(t, r.Attempts, 1)
	}
}
