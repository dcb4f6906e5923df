package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"
)

// GeminiTransport is a thin wrapper around the official genai client.
// It only focuses on the API call itself. Cross-cutting concerns
// (rate limiting, retries, logging) are applied by the llm package.
type GeminiTransport struct {
	cli *genai.Client
}

// NewGeminiTransport builds a Gemini API client. baseURL is optional and is
// mostly useful for pointing tests at a local server.
func NewGeminiTransport(ctx context.Context, apiKey, baseURL string, httpClient *http.Client) (*GeminiTransport, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &GeminiTransport{cli: cli}, nil
}

func (g *GeminiTransport) Name() string { return "gemini" }
func (g *GeminiTransport) Close() error { return nil }

func (g *GeminiTransport) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Params.Temperature)),
		TopP:             genai.Ptr(float32(req.Params.TopP)),
		MaxOutputTokens:  int32(req.Params.MaxTokens),
		FrequencyPenalty: genai.Ptr(float32(req.Params.FrequencyPenalty)),
		PresencePenalty:  genai.Ptr(float32(req.Params.PresencePenalty)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := g.cli.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", classifyGemini(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", NewInvocationError(KindInvalidResponse, ErrInvalidResponse)
	}
	txt := resp.Text()
	if strings.TrimSpace(txt) == "" {
		return "", NewInvocationError(KindInvalidResponse, ErrInvalidResponse)
	}
	return txt, nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return Classify(err)
	}
	kind := KindForStatus(apiErr.Code, apiErr.Message)
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		kind = KindRateLimited
	}
	if apiErr.Status == "DEADLINE_EXCEEDED" {
		kind = KindTimeout
	}
	inv := NewInvocationError(kind, err)
	if kind == KindRateLimited {
		inv.RetryAfter = geminiRetryDelay(apiErr.Details)
	}
	return inv
}

// geminiRetryDelay extracts google.rpc.RetryInfo.retryDelay ("12s") if present.
func geminiRetryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		t, _ := d["@type"].(string)
		if !strings.HasSuffix(t, "google.rpc.RetryInfo") {
			continue
		}
		s, _ := d["retryDelay"].(string)
		if dur, err := time.ParseDuration(s); err == nil {
			return dur
		}
	}
	return 0
}
