package llm

import (
	"context"
	"sync"

	"blueprint/internal/llmclient"
)

// stubTransport answers from a per-model script. Each call pops the next
// error for that model; when the script is empty it succeeds.
type stubTransport struct {
	mu      sync.Mutex
	name    string
	script  map[string][]error
	calls   []llmclient.Request
	respond func(req llmclient.Request) string
}

func newStubTransport(name string) *stubTransport {
	return &stubTransport{name: name, script: map[string][]error{}}
}

func (s *stubTransport) fail(model string, errs ...error) *stubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script[model] = append(s.script[model], errs...)
	return s
}

func (s *stubTransport) Name() string { return s.name }
func (s *stubTransport) Close() error { return nil }

func (s *stubTransport) Generate(ctx context.Context, req llmclient.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	var err error
	if q := s.script[req.Model]; len(q) > 0 {
		err = q[0]
		s.script[req.Model] = q[1:]
	}
	respond := s.respond
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	if respond != nil {
		return respond(req), nil
	}
	return "ok from " + req.Model, nil
}

func (s *stubTransport) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Model
	}
	return out
}

func testModels() []AIModel {
	return []AIModel{
		{ID: "alpha", Provider: ProviderOpenAI, MaxTokens: 4096, Transport: "stub",
			CostPer1kTokens: Cost{Input: 0.01, Output: 0.03}, Capabilities: []string{CapText, CapCode}},
		{ID: "beta", Provider: ProviderAnthropic, MaxTokens: 2048, Transport: "stub",
			CostPer1kTokens: Cost{Input: 0.003, Output: 0.015}, Capabilities: []string{CapText}},
		{ID: "gamma", Provider: ProviderGoogle, MaxTokens: 8192, Transport: "stub",
			CostPer1kTokens: Cost{Input: 0.001, Output: 0.002}, Capabilities: []string{CapText, CapVision}},
	}
}

func testCatalog() *Catalog {
	return MustCatalog(testModels(), CatalogDefaults{Model: "alpha", Fallback: "beta"})
}

func kindErr(k llmclient.Kind) error {
	return llmclient.NewInvocationError(k, nil)
}
