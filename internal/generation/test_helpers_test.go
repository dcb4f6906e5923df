package generation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"blueprint/internal/llm"
	"blueprint/internal/llmclient"
)

func testCatalog() *llm.Catalog {
	return llm.MustCatalog([]llm.AIModel{
		{ID: "primary", Provider: llm.ProviderOpenAI, MaxTokens: 4096, ContextWindow: 8000, Transport: "stub"},
		{ID: "backup", Provider: llm.ProviderAnthropic, MaxTokens: 4096, ContextWindow: 8000, Transport: "stub"},
		{ID: "tiny", Provider: llm.ProviderGoogle, MaxTokens: 1024, ContextWindow: 1100, Transport: "stub"},
	}, llm.CatalogDefaults{Model: "primary", Fallback: "backup"})
}

func selection(primary, fallback string) llm.ValidSelection {
	sel, err := llm.NewValidator(testCatalog()).Validate(llm.PartialSelection{
		PrimaryModel:  primary,
		FallbackModel: fallback,
		MaxTokens:     ptr(1000),
	})
	if err != nil {
		panic(err)
	}
	return sel
}

func ptr[T any](v T) *T { return &v }

// stubDispatcher fails the stages listed in fail and answers the rest.
// answerWith overrides which model "answered" and text what it said.
type stubDispatcher struct {
	mu         sync.Mutex
	fail       map[string]llmclient.Kind
	answerWith map[string]string
	text       map[string]string
	delay      map[string]time.Duration
	calls      []string
	inflight   atomic.Int32
	peak       atomic.Int32
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{
		fail:       map[string]llmclient.Kind{},
		answerWith: map[string]string{},
		text:       map[string]string{},
		delay:      map[string]time.Duration{},
	}
}

func (s *stubDispatcher) Run(ctx context.Context, sel llm.ValidSelection, prompt string) (llm.Outcome, error) {
	stage := llm.StageFrom(ctx)
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, stage)
	kind, failing := s.fail[stage]
	model := s.answerWith[stage]
	text, custom := s.text[stage]
	d := s.delay[stage]
	s.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return llm.Outcome{}, &llm.FailureReport{
				LastKind:  llmclient.KindTimeout,
				Attempted: []string{sel.Primary().ID},
				Err:       ctx.Err(),
			}
		}
	}
	if failing {
		attempted := []string{sel.Primary().ID}
		if fb, ok := sel.Fallback(); ok {
			attempted = append(attempted, fb.ID)
		}
		return llm.Outcome{}, &llm.FailureReport{LastKind: kind, Attempted: attempted}
	}
	if model == "" {
		model = sel.Primary().ID
	}
	if !custom {
		text = "text for " + stage
	}
	return llm.Outcome{Text: text, ModelUsed: model, Attempts: []llm.Attempt{{Model: model}}}, nil
}

func (s *stubDispatcher) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func stagesNamed(keys ...string) []Stage {
	out := make([]Stage, len(keys))
	for i, k := range keys {
		k := k
		out[i] = Stage{Key: k, Title: k, Required: true, Prompt: func(in ProjectInput) string { return k + ": " + in.Description }}
	}
	return out
}

type memTemplates map[string]ProjectTemplate

func (m memTemplates) GetTemplate(_ context.Context, id string) (ProjectTemplate, error) {
	t, ok := m[id]
	if !ok {
		return ProjectTemplate{}, ErrTemplateNotFound
	}
	return t, nil
}

func (m memTemplates) ListTemplates(_ context.Context, category string) ([]ProjectTemplate, error) {
	var out []ProjectTemplate
	for _, t := range m {
		if category == "" || t.Category == category {
			out = append(out, t)
		}
	}
	return out, nil
}
