package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"
)

// OpenAITransport calls an OpenAI-compatible Chat Completions endpoint.
// It serves both OpenAI and Groq.
// See: https://platform.openai.com/docs/api-reference/chat
type OpenAITransport struct {
	http    *http.Client
	name    string
	apiKey  string
	baseURL string
}

type OpenAIOption func(*OpenAITransport)

func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(t *OpenAITransport) {
		if c != nil {
			t.http = c
		}
	}
}

func WithOpenAIName(name string) OpenAIOption {
	return func(t *OpenAITransport) {
		if name != "" {
			t.name = name
		}
	}
}

// NewOpenAITransport creates a transport for baseURL (e.g. OpenAIBaseURL).
func NewOpenAITransport(apiKey, baseURL string, opts ...OpenAIOption) *OpenAITransport {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	t := &OpenAITransport{
		http:    &http.Client{Timeout: 120 * time.Second},
		name:    "openai",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *OpenAITransport) Name() string { return t.name }
func (t *OpenAITransport) Close() error {
	t.http.CloseIdleConnections()
	return nil
}

type chatReq struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (t *OpenAITransport) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})

	b, err := json.Marshal(chatReq{
		Model:            req.Model,
		Messages:         msgs,
		Temperature:      req.Params.Temperature,
		TopP:             req.Params.TopP,
		MaxTokens:        req.Params.MaxTokens,
		FrequencyPenalty: req.Params.FrequencyPenalty,
		PresencePenalty:  req.Params.PresencePenalty,
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.http.Do(httpReq)
	if err != nil {
		return "", Classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", httpFailure(t.name, resp)
	}
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", NewInvocationError(KindInvalidResponse, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", NewInvocationError(KindInvalidResponse, ErrInvalidResponse)
	}
	return out.Choices[0].Message.Content, nil
}

// httpFailure reads a non-2xx response into a classified InvocationError.
func httpFailure(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	inv := NewInvocationError(KindForStatus(resp.StatusCode, string(body)), statusError(provider, resp.StatusCode, body))
	if rl, ok := ParseRateLimitHeaders(resp.Header); ok {
		inv.RetryAfter = rl.RetryAfter()
	}
	return inv
}
