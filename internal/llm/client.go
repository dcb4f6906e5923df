package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"blueprint/internal/llmclient"
)

const DefaultInvokeTimeout = 60 * time.Second

// Call is one resolved invocation flowing through the middleware chain.
type Call struct {
	Model  AIModel
	System string
	Prompt string
	Tuning Tuning
}

// Invoker executes a resolved call. Middleware decorates Invokers.
type Invoker interface {
	Invoke(ctx context.Context, call Call) (string, error)
}

type InvokerFunc func(ctx context.Context, call Call) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, call Call) (string, error) { return f(ctx, call) }

// Invocation is the contract the dispatcher depends on.
type Invocation interface {
	Invoke(ctx context.Context, modelID, prompt string, t Tuning) (string, error)
}

// Client is the Model Invocation Client: it resolves a model id, bounds the
// call with a timeout and hands it to the transport registered for the model.
// It performs exactly one outbound call per Invoke and caches nothing.
type Client struct {
	catalog    *Catalog
	transports map[string]llmclient.Transport
	timeout    time.Duration
	system     string
	mws        []Middleware
	chain      Invoker
	log        *zap.Logger
}

type ClientOption func(*Client)

// WithTimeout sets the per-call wall-clock bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSystemPrompt sets an instruction sent with every call.
func WithSystemPrompt(s string) ClientOption {
	return func(c *Client) { c.system = s }
}

// WithMiddleware appends middlewares; the first one is outermost.
func WithMiddleware(mws ...Middleware) ClientOption {
	return func(c *Client) { c.mws = append(c.mws, mws...) }
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient builds a client. transports is keyed by AIModel.Transport.
func NewClient(catalog *Catalog, transports map[string]llmclient.Transport, opts ...ClientOption) *Client {
	c := &Client{
		catalog:    catalog,
		transports: make(map[string]llmclient.Transport, len(transports)),
		timeout:    DefaultInvokeTimeout,
		log:        zap.NewNop(),
	}
	for name, t := range transports {
		c.transports[name] = t
	}
	for _, o := range opts {
		o(c)
	}
	c.chain = Wrap(InvokerFunc(c.send), c.mws...)
	return c
}

// Invoke runs one generation call against modelID. Failures are always
// *llmclient.InvocationError.
func (c *Client) Invoke(ctx context.Context, modelID, prompt string, t Tuning) (string, error) {
	m, err := c.catalog.Get(modelID)
	if err != nil {
		return "", &llmclient.InvocationError{Kind: llmclient.KindProviderError, Model: modelID, Err: err}
	}
	if _, ok := c.transports[m.Transport]; !ok {
		return "", &llmclient.InvocationError{
			Kind:  llmclient.KindProviderError,
			Model: m.ID,
			Err:   fmt.Errorf("%w: %s (transport %q)", ErrNoTransport, m.ID, m.Transport),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.chain.Invoke(ctx, Call{Model: m, System: c.system, Prompt: prompt, Tuning: t})
	if err != nil {
		inv := llmclient.Classify(err)
		if inv.Model == "" {
			inv.Model = m.ID
		}
		return "", inv
	}
	return text, nil
}

func (c *Client) send(ctx context.Context, call Call) (string, error) {
	tr := c.transports[call.Model.Transport]
	return tr.Generate(ctx, llmclient.Request{
		Model:  call.Model.Upstream(),
		System: call.System,
		Prompt: call.Prompt,
		Params: call.Tuning.params(),
	})
}

// Close releases every transport.
func (c *Client) Close() error {
	var first error
	for name, t := range c.transports {
		if err := t.Close(); err != nil && first == nil {
			first = fmt.Errorf("close transport %s: %w", name, err)
		}
	}
	return first
}
