package generation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"blueprint/internal/llm"
	"blueprint/internal/llmclient"
)

// Dispatcher is the part of llm.Dispatcher the pipeline uses.
type Dispatcher interface {
	Run(ctx context.Context, sel llm.ValidSelection, prompt string) (llm.Outcome, error)
}

// Pipeline drives an ordered stage list through a Dispatcher. It holds no
// state between runs.
type Pipeline struct {
	disp         Dispatcher
	concurrency  int
	strictBudget bool
	log          *zap.Logger
	tracer       trace.Tracer
	observer     Observer
	recorder     Recorder
	now          func() time.Time
}

type PipelineOption func(*Pipeline)

// WithConcurrency bounds how many stages run at once; 1 is sequential.
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithStrictTokenBudget fails stages whose prompt cannot fit the primary
// model's context window without calling the provider.
func WithStrictTokenBudget(on bool) PipelineOption {
	return func(p *Pipeline) { p.strictBudget = on }
}

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithTracer(t trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithStageObserver registers an observer notified for every run, in
// addition to any observer carried by the run's context.
func WithStageObserver(o Observer) PipelineOption {
	return func(p *Pipeline) { p.observer = o }
}

func WithRecorder(r Recorder) PipelineOption {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

func NewPipeline(d Dispatcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		disp:        d,
		concurrency: 1,
		log:         zap.NewNop(),
		tracer:      otel.Tracer("blueprint/internal/generation"),
		recorder:    noopRecorder{},
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run attempts every stage and always returns a bundle; stage failures are
// recorded, never raised. Canceling ctx records the interrupted and the
// not-yet-started stages as failed with a timeout.
func (p *Pipeline) Run(ctx context.Context, in ProjectInput, sel llm.ValidSelection, stages []Stage) Bundle {
	runID := llm.RunIDFrom(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = llm.WithRunID(ctx, runID)
	}
	ctx, span := p.tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("pipeline.stages", len(stages)),
		attribute.String("llm.primary", sel.Primary().ID),
	)

	p.log.Info("pipeline started",
		zap.String("run_id", runID),
		zap.Int("stages", len(stages)),
		zap.String("model", sel.Primary().ID),
		zap.Int("concurrency", p.concurrency))

	results := make([]StageResult, len(stages))
	if p.concurrency <= 1 || len(stages) <= 1 {
		for i, st := range stages {
			results[i] = p.runStage(ctx, runID, i, in, sel, st)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i, st := range stages {
			g.Go(func() error {
				results[i] = p.runStage(ctx, runID, i, in, sel, st)
				return nil
			})
		}
		_ = g.Wait()
	}

	fallbackID := ""
	if fb, ok := sel.Fallback(); ok {
		fallbackID = fb.ID
	}
	b := Bundle{
		RunID:         runID,
		ModelUsed:     bundleModel(results, sel.Primary().ID, fallbackID),
		GeneratedAt:   p.now().UTC(),
		OverallStatus: overallStatus(results),
		Input:         in,
		Results:       results,
	}
	p.recorder.ObserveBundle(string(b.OverallStatus))
	span.SetAttributes(attribute.String("bundle.status", string(b.OverallStatus)))
	p.log.Info("pipeline finished",
		zap.String("run_id", runID),
		zap.String("status", string(b.OverallStatus)),
		zap.String("model", b.ModelUsed))
	return b
}

func (p *Pipeline) runStage(ctx context.Context, runID string, idx int, in ProjectInput, sel llm.ValidSelection, st Stage) StageResult {
	ctx = llm.WithStage(ctx, st.Key)
	ctx, span := p.tracer.Start(ctx, "pipeline.stage")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.stage", st.Key), attribute.Int("pipeline.index", idx))

	res := StageResult{
		StageKey:  st.Key,
		Title:     st.Title,
		Required:  st.Required,
		ModelUsed: sel.Primary().ID,
		StartedAt: p.now().UTC(),
	}
	p.notifyStart(ctx, runID, idx, st)

	switch prompt := st.Prompt(in); {
	case ctx.Err() != nil:
		res.Status, res.Error = StageFailed, llmclient.KindTimeout
	case p.strictBudget && !fitsWindow(prompt, sel):
		res.Status, res.Error = StageFailed, llmclient.KindInvalidResponse
		p.log.Warn("prompt exceeds context window",
			zap.String("run_id", runID),
			zap.String("stage", st.Key),
			zap.String("model", sel.Primary().ID),
			zap.Int("prompt_tokens", llm.CountTokens(prompt)))
	default:
		out, err := p.disp.Run(ctx, sel, prompt)
		if err == nil {
			res.ModelUsed, res.Attempts = out.ModelUsed, out.Attempts
			if text := CleanArtifact(out.Text); text != "" {
				res.Status, res.Text = StageOK, text
			} else {
				res.Status, res.Error = StageFailed, llmclient.KindInvalidResponse
			}
			break
		}
		res.Status = StageFailed
		var fr *llm.FailureReport
		if errors.As(err, &fr) {
			res.Error, res.Attempts = fr.LastKind, fr.Attempts
			if m := fr.LastModel(); m != "" {
				res.ModelUsed = m
			}
		} else {
			res.Error = llmclient.KindOf(err)
		}
		if ctx.Err() != nil {
			res.Error = llmclient.KindTimeout
		}
	}
	res.FinishedAt = p.now().UTC()

	span.SetAttributes(attribute.String("stage.status", string(res.Status)), attribute.String("stage.model", res.ModelUsed))
	if !res.OK() {
		span.SetAttributes(attribute.String("stage.error", string(res.Error)))
	}
	p.recorder.ObserveStage(st.Key, string(res.Status), res.FinishedAt.Sub(res.StartedAt))
	p.log.Info("stage finished",
		zap.String("run_id", runID),
		zap.String("stage", st.Key),
		zap.String("status", string(res.Status)),
		zap.String("model", res.ModelUsed),
		zap.String("kind", string(res.Error)),
		zap.Int("attempts", len(res.Attempts)))
	p.notifyDone(ctx, runID, idx, res)
	return res
}

// fitsWindow checks prompt plus requested output against the primary's
// context window. Models without a known window always fit.
func fitsWindow(prompt string, sel llm.ValidSelection) bool {
	window := sel.Primary().ContextWindow
	if window <= 0 {
		return true
	}
	return llm.CountTokens(prompt)+sel.Tuning().MaxTokens <= window
}

func (p *Pipeline) notifyStart(ctx context.Context, runID string, idx int, st Stage) {
	if p.observer != nil {
		p.observer.OnStageStart(ctx, runID, idx, st)
	}
	ObserverFrom(ctx).OnStageStart(ctx, runID, idx, st)
}

func (p *Pipeline) notifyDone(ctx context.Context, runID string, idx int, res StageResult) {
	if p.observer != nil {
		p.observer.OnStageDone(ctx, runID, idx, res)
	}
	ObserverFrom(ctx).OnStageDone(ctx, runID, idx, res)
}
