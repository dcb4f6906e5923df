package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	AnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

// AnthropicTransport calls the Anthropic Messages API.
type AnthropicTransport struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func NewAnthropicTransport(apiKey, baseURL string, httpClient *http.Client) *AnthropicTransport {
	if baseURL == "" {
		baseURL = AnthropicBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &AnthropicTransport{
		http:    httpClient,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (t *AnthropicTransport) Name() string { return "anthropic" }
func (t *AnthropicTransport) Close() error {
	t.http.CloseIdleConnections()
	return nil
}

type messagesReq struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
}

type messagesResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Generate sends one message. Anthropic has no frequency or presence
// penalty; those parameters are dropped.
func (t *AnthropicTransport) Generate(ctx context.Context, req Request) (string, error) {
	maxTokens := req.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	b, err := json.Marshal(messagesReq{
		Model:       req.Model,
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: clamp(req.Params.Temperature, 0, 1),
		TopP:        req.Params.TopP,
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/messages", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if t.apiKey != "" {
		httpReq.Header.Set("x-api-key", t.apiKey)
	}

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", httpFailure("anthropic", resp)
	}
	var out messagesResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", NewInvocationError(KindInvalidResponse, err)
	}
	var sb strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", NewInvocationError(KindInvalidResponse, ErrInvalidResponse)
	}
	return sb.String(), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
