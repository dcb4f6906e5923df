package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"blueprint/internal/llmclient"
)

// Middleware decorates an Invoker to inject cross-cutting concerns
// (rate limiting, logging, metrics, tracing).
type Middleware func(Invoker) Invoker

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Invoker, mws ...Middleware) Invoker {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Logging --------

// WithLogging logs every call's size, outcome and latency.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Invoker) Invoker {
		return InvokerFunc(func(ctx context.Context, call Call) (string, error) {
			fields := []zap.Field{
				zap.String("run_id", RunIDFrom(ctx)),
				zap.String("stage", StageFrom(ctx)),
				zap.String("model", call.Model.ID),
				zap.Int("attempt", AttemptFrom(ctx)),
			}
			logger.Debug("llm request", append(fields, zap.Int("prompt_bytes", len(call.Prompt)))...)
			start := time.Now()
			text, err := next.Invoke(ctx, call)
			fields = append(fields, zap.Duration("duration", time.Since(start)))
			if err != nil {
				logger.Warn("llm error", append(fields,
					zap.String("kind", string(llmclient.KindOf(err))),
					zap.Error(err))...)
				return "", err
			}
			logger.Debug("llm response", append(fields, zap.Int("response_bytes", len(text)))...)
			return text, nil
		})
	}
}

// -------- Metrics --------

// InvocationObserver receives one observation per call.
type InvocationObserver interface {
	ObserveInvocation(provider, model, outcome string, d time.Duration)
}

// WithMetrics reports outcome ("ok" or the failure kind) and latency.
func WithMetrics(obs InvocationObserver) Middleware {
	return func(next Invoker) Invoker {
		if obs == nil {
			return next
		}
		return InvokerFunc(func(ctx context.Context, call Call) (string, error) {
			start := time.Now()
			text, err := next.Invoke(ctx, call)
			outcome := "ok"
			if err != nil {
				outcome = string(llmclient.KindOf(err))
			}
			obs.ObserveInvocation(string(call.Model.Provider), call.Model.ID, outcome, time.Since(start))
			return text, err
		})
	}
}

// -------- Tracing --------

// WithTracing opens an llm.invoke span around each call.
func WithTracing(tracer trace.Tracer) Middleware {
	return func(next Invoker) Invoker {
		if tracer == nil {
			return next
		}
		return InvokerFunc(func(ctx context.Context, call Call) (string, error) {
			ctx, span := tracer.Start(ctx, "llm.invoke")
			defer span.End()
			span.SetAttributes(
				attribute.String("llm.model", call.Model.ID),
				attribute.String("llm.provider", string(call.Model.Provider)),
				attribute.String("llm.transport", call.Model.Transport),
				attribute.String("pipeline.stage", StageFrom(ctx)),
				attribute.Int("llm.attempt", AttemptFrom(ctx)),
			)
			text, err := next.Invoke(ctx, call)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, string(llmclient.KindOf(err)))
				return "", err
			}
			span.SetAttributes(attribute.Int("llm.response_bytes", len(text)))
			return text, nil
		})
	}
}

// -------- Rate limiting --------

// Limiter blocks until a call may proceed.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// RateLimit gates calls through the limiter registered for the model's
// transport. Transports without a limiter pass straight through. A
// limiter wait cut short by the caller surfaces as a timeout.
func RateLimit(limiters map[string]Limiter) Middleware {
	return func(next Invoker) Invoker {
		if len(limiters) == 0 {
			return next
		}
		return InvokerFunc(func(ctx context.Context, call Call) (string, error) {
			if l, ok := limiters[call.Model.Transport]; ok && l != nil {
				if err := l.Acquire(ctx); err != nil {
					return "", llmclient.Classify(err)
				}
			}
			return next.Invoke(ctx, call)
		})
	}
}
