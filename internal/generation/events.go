package generation

import (
	"context"
	"time"
)

// Observer receives stage lifecycle notifications. Calls may come from
// several goroutines when the pipeline runs concurrently.
type Observer interface {
	OnStageStart(ctx context.Context, runID string, index int, stage Stage)
	OnStageDone(ctx context.Context, runID string, index int, result StageResult)
}

type EventType string

const (
	EventStageStarted  EventType = "stage_started"
	EventStageFinished EventType = "stage_finished"
	EventBundle        EventType = "bundle"
	EventError         EventType = "error"
)

// Event is the wire form of a progress notification.
type Event struct {
	Type     EventType    `json:"type"`
	RunID    string       `json:"runId,omitempty"`
	Index    int          `json:"index"`
	StageKey string       `json:"stageKey,omitempty"`
	Title    string       `json:"title,omitempty"`
	Result   *StageResult `json:"result,omitempty"`
	Bundle   *Bundle      `json:"bundle,omitempty"`
	Message  string       `json:"message,omitempty"`
}

type observerKey struct{}

// WithObserver attaches a per-request observer to the context.
func WithObserver(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, o)
}

// ObserverFrom retrieves the observer from context, or returns a no-op one.
func ObserverFrom(ctx context.Context) Observer {
	if o, ok := ctx.Value(observerKey{}).(Observer); ok && o != nil {
		return o
	}
	return noopObserver{}
}

type noopObserver struct{}

func (noopObserver) OnStageStart(context.Context, string, int, Stage)     {}
func (noopObserver) OnStageDone(context.Context, string, int, StageResult) {}

// ChannelObserver sends events to a channel. Sends block until the reader
// takes them or ctx is done, so no progress is lost to a slow reader.
type ChannelObserver struct {
	Ch chan<- Event
}

func (c *ChannelObserver) OnStageStart(ctx context.Context, runID string, index int, stage Stage) {
	c.send(ctx, Event{Type: EventStageStarted, RunID: runID, Index: index, StageKey: stage.Key, Title: stage.Title})
}

func (c *ChannelObserver) OnStageDone(ctx context.Context, runID string, index int, result StageResult) {
	r := result
	c.send(ctx, Event{Type: EventStageFinished, RunID: runID, Index: index, StageKey: r.StageKey, Title: r.Title, Result: &r})
}

func (c *ChannelObserver) send(ctx context.Context, ev Event) {
	select {
	case c.Ch <- ev:
	case <-ctx.Done():
	}
}

// Recorder receives aggregate measurements; observability.Metrics
// implements it.
type Recorder interface {
	ObserveStage(stage, status string, d time.Duration)
	ObserveBundle(status string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveStage(string, string, time.Duration) {}
func (noopRecorder) ObserveBundle(string)                       {}
