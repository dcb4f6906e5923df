package llm

import "context"

type ctxKeyRunID struct{}
type ctxKeyStage struct{}
type ctxKeyAttempt struct{}

// WithRunID tags ctx with the pipeline run it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyRunID{}, runID)
}

func RunIDFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKeyRunID{}).(string)
	return v
}

// WithStage tags ctx with the stage key being generated.
func WithStage(ctx context.Context, stage string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKeyStage{}, stage)
}

func StageFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKeyStage{}).(string)
	return v
}

func withAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, ctxKeyAttempt{}, n)
}

// AttemptFrom returns the 1-based attempt number of the current call, or 0.
func AttemptFrom(ctx context.Context) int {
	if ctx == nil {
		return 0
	}
	v, _ := ctx.Value(ctxKeyAttempt{}).(int)
	return v
}
