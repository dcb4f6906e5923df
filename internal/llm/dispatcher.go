package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"blueprint/internal/llmclient"
)

const (
	DefaultMaxRetries  = 2
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 8 * time.Second
)

// Attempt records one call made by the dispatcher.
type Attempt struct {
	Model    string         `json:"model"`
	Kind     llmclient.Kind `json:"kind,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// FailureReport is returned when every model in the chain was exhausted.
type FailureReport struct {
	LastKind  llmclient.Kind
	Attempted []string
	Attempts  []Attempt
	Err       error
}

func (r *FailureReport) Error() string {
	return fmt.Sprintf("all models failed (%s) after %d attempts on [%s]: %v",
		r.LastKind, len(r.Attempts), strings.Join(r.Attempted, ", "), r.Err)
}

func (r *FailureReport) Unwrap() error { return r.Err }

// LastModel returns the model of the final attempt.
func (r *FailureReport) LastModel() string {
	if len(r.Attempted) == 0 {
		return ""
	}
	return r.Attempted[len(r.Attempted)-1]
}

// Outcome is a successful dispatch.
type Outcome struct {
	Text      string
	ModelUsed string
	Attempts  []Attempt
}

// FailoverObserver is notified when the dispatcher moves to the fallback.
type FailoverObserver interface {
	ObserveFailover(from, to string, kind llmclient.Kind)
}

// Dispatcher retries transient failures on the primary, then fails over
// to the fallback with the same retry policy.
type Dispatcher struct {
	inv        Invocation
	maxRetries int
	base       time.Duration
	maxBackoff time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *zap.Logger
	failover   FailoverObserver
}

type DispatcherOption func(*Dispatcher)

// WithRetries sets the retries per model; 0 disables retrying.
func WithRetries(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

func WithBackoff(base, max time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if base > 0 {
			d.base = base
		}
		if max > 0 {
			d.maxBackoff = max
		}
	}
}

func WithDispatcherLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

func WithFailoverObserver(o FailoverObserver) DispatcherOption {
	return func(d *Dispatcher) { d.failover = o }
}

// withSleep replaces the backoff wait; tests use it to avoid real delays.
func withSleep(fn func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

func NewDispatcher(inv Invocation, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		inv:        inv,
		maxRetries: DefaultMaxRetries,
		base:       DefaultBaseBackoff,
		maxBackoff: DefaultMaxBackoff,
		sleep:      sleepCtx,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run asks the selection's models for prompt. Caller cancellation stops
// immediately with no further attempts and no failover.
func (d *Dispatcher) Run(ctx context.Context, sel ValidSelection, prompt string) (Outcome, error) {
	var (
		attempts  []Attempt
		attempted []string
		lastErr   error
		lastKind  llmclient.Kind
	)
	models := sel.Models()
	for i, m := range models {
		attempted = append(attempted, m.ID)
		tuning := sel.Tuning().Clamped(m)
		text, err := d.runModel(ctx, m.ID, prompt, tuning, &attempts)
		if err == nil {
			return Outcome{Text: text, ModelUsed: m.ID, Attempts: attempts}, nil
		}
		lastErr = err
		lastKind = llmclient.KindOf(err)
		if ctx.Err() != nil {
			break
		}
		if i+1 < len(models) {
			next := models[i+1].ID
			d.log.Info("failing over",
				zap.String("run_id", RunIDFrom(ctx)),
				zap.String("stage", StageFrom(ctx)),
				zap.String("from", m.ID),
				zap.String("to", next),
				zap.String("kind", string(lastKind)))
			if d.failover != nil {
				d.failover.ObserveFailover(m.ID, next, lastKind)
			}
		}
	}
	return Outcome{}, &FailureReport{
		LastKind:  lastKind,
		Attempted: attempted,
		Attempts:  attempts,
		Err:       lastErr,
	}
}

// runModel makes up to 1+maxRetries calls to one model.
func (d *Dispatcher) runModel(ctx context.Context, modelID, prompt string, t Tuning, attempts *[]Attempt) (string, error) {
	var last error
	for i := 0; i <= d.maxRetries; i++ {
		start := time.Now()
		text, err := d.inv.Invoke(withAttempt(ctx, len(*attempts)+1), modelID, prompt, t)
		a := Attempt{Model: modelID, Duration: time.Since(start)}
		if err == nil {
			*attempts = append(*attempts, a)
			return text, nil
		}
		inv := llmclient.Classify(err)
		a.Kind = inv.Kind
		*attempts = append(*attempts, a)
		last = inv

		if ctx.Err() != nil || !inv.Kind.Retryable() || i == d.maxRetries {
			return "", last
		}
		wait, ok := d.backoff(i, inv.RetryAfter)
		if !ok {
			d.log.Info("retry hint exceeds backoff cap, giving up on model",
				zap.String("run_id", RunIDFrom(ctx)),
				zap.String("stage", StageFrom(ctx)),
				zap.String("model", modelID),
				zap.Duration("retry_after", inv.RetryAfter),
				zap.Duration("max_backoff", d.maxBackoff))
			return "", last
		}
		d.log.Debug("retrying",
			zap.String("run_id", RunIDFrom(ctx)),
			zap.String("stage", StageFrom(ctx)),
			zap.String("model", modelID),
			zap.Int("attempt", i+1),
			zap.String("kind", string(inv.Kind)),
			zap.Duration("backoff", wait))
		if err := d.sleep(ctx, wait); err != nil {
			return "", last
		}
	}
	return "", last
}

// backoff returns base*2^i capped at maxBackoff, or the provider's hint
// when that is longer. ok is false when the hint exceeds maxBackoff: the
// model is treated as exhausted.
func (d *Dispatcher) backoff(i int, hint time.Duration) (time.Duration, bool) {
	if hint > d.maxBackoff {
		return 0, false
	}
	wait := d.maxBackoff
	if i < 30 {
		if w := d.base * time.Duration(1<<i); w > 0 && w < wait {
			wait = w
		}
	}
	if hint > wait {
		wait = hint
	}
	return wait, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsFailureReport reports whether err is a dispatcher exhaustion.
func IsFailureReport(err error) (*FailureReport, bool) {
	var fr *FailureReport
	ok := errors.As(err, &fr)
	return fr, ok
}
