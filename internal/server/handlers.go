package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"go.uber.org/zap"

	"blueprint/internal/generation"
	"blueprint/internal/llm"
)

// Generator is the engine surface the handlers drive.
type Generator interface {
	GenerateProject(ctx context.Context, in generation.ProjectInput, sel llm.PartialSelection) (generation.Bundle, error)
	GenerateFromTemplate(ctx context.Context, templateID, description, modelID string) (generation.Bundle, error)
}

// BundleStore persists finished bundles for later retrieval.
type BundleStore interface {
	Save(ctx context.Context, b generation.Bundle) error
	Load(ctx context.Context, runID string) (generation.Bundle, error)
	Markdown(ctx context.Context, runID string) ([]byte, error)
}

// StreamGauge tracks open progress streams; observability.Metrics
// implements it.
type StreamGauge interface {
	IncActiveStreams(transport string)
	DecActiveStreams(transport string)
}

type Deps struct {
	Generator Generator
	Catalog   *llm.Catalog
	Templates generation.TemplateSource
	Bundles   BundleStore
	Streams   StreamGauge
	Logger    *zap.Logger
}

type Handlers struct {
	gen       Generator
	catalog   *llm.Catalog
	templates generation.TemplateSource
	bundles   BundleStore
	streams   StreamGauge
	log       *zap.Logger
}

func NewHandlers(d Deps) *Handlers {
	h := &Handlers{
		gen:       d.Generator,
		catalog:   d.Catalog,
		templates: d.Templates,
		bundles:   d.Bundles,
		streams:   d.Streams,
		log:       d.Logger,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// Register mounts every connect procedure on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	opt := Codec()
	mux.Handle(GenerateProjectProcedure, connect.NewUnaryHandler(GenerateProjectProcedure, h.GenerateProject, opt))
	mux.Handle(GenerateFromTemplateProcedure, connect.NewUnaryHandler(GenerateFromTemplateProcedure, h.GenerateFromTemplate, opt))
	mux.Handle(GenerateProjectStreamProcedure, connect.NewServerStreamHandler(GenerateProjectStreamProcedure, h.GenerateProjectStream, opt))
	mux.Handle(ListModelsProcedure, connect.NewUnaryHandler(ListModelsProcedure, h.ListModels, opt))
	mux.Handle(ListTemplatesProcedure, connect.NewUnaryHandler(ListTemplatesProcedure, h.ListTemplates, opt))
	mux.Handle(GetTemplateProcedure, connect.NewUnaryHandler(GetTemplateProcedure, h.GetTemplate, opt))
	mux.Handle(GetBundleProcedure, connect.NewUnaryHandler(GetBundleProcedure, h.GetBundle, opt))
}

func (h *Handlers) GenerateProject(ctx context.Context, req *connect.Request[GenerateProjectRequest]) (*connect.Response[GenerateResponse], error) {
	b, err := h.gen.GenerateProject(ctx, req.Msg.Input, req.Msg.Selection)
	if err != nil {
		return nil, connectError(err)
	}
	h.archive(ctx, b)
	return connect.NewResponse(&GenerateResponse{Bundle: b}), nil
}

func (h *Handlers) GenerateFromTemplate(ctx context.Context, req *connect.Request[GenerateFromTemplateRequest]) (*connect.Response[GenerateResponse], error) {
	m := req.Msg
	b, err := h.gen.GenerateFromTemplate(ctx, m.TemplateID, m.Description, m.ModelID)
	if err != nil {
		return nil, connectError(err)
	}
	h.archive(ctx, b)
	return connect.NewResponse(&GenerateResponse{Bundle: b}), nil
}

func (h *Handlers) GenerateProjectStream(ctx context.Context, req *connect.Request[GenerateProjectRequest], stream *connect.ServerStream[generation.Event]) error {
	if h.streams != nil {
		h.streams.IncActiveStreams("connect")
		defer h.streams.DecActiveStreams("connect")
	}
	msg := req.Msg
	err := h.runStreaming(ctx, func(ctx context.Context) (generation.Bundle, error) {
		return h.gen.GenerateProject(ctx, msg.Input, msg.Selection)
	}, func(ev generation.Event) error {
		return stream.Send(&ev)
	})
	return connectError(err)
}

func (h *Handlers) ListModels(_ context.Context, req *connect.Request[ListModelsRequest]) (*connect.Response[ListModelsResponse], error) {
	models := h.catalog.List()
	if c := strings.TrimSpace(req.Msg.Capability); c != "" {
		models = h.catalog.FilterByCapability(c)
	}
	if p := llm.Provider(strings.ToLower(strings.TrimSpace(req.Msg.Provider))); p != "" {
		kept := make([]llm.AIModel, 0, len(models))
		for _, m := range models {
			if m.Provider == p {
				kept = append(kept, m)
			}
		}
		models = kept
	}
	def := h.catalog.DefaultModel()
	return connect.NewResponse(&ListModelsResponse{
		Models:          models,
		DefaultModel:    def,
		DefaultFallback: h.catalog.DefaultFallback(def),
	}), nil
}

func (h *Handlers) ListTemplates(ctx context.Context, req *connect.Request[ListTemplatesRequest]) (*connect.Response[ListTemplatesResponse], error) {
	if h.templates == nil {
		return connect.NewResponse(&ListTemplatesResponse{Templates: []generation.ProjectTemplate{}}), nil
	}
	ts, err := h.templates.ListTemplates(ctx, req.Msg.Category)
	if err != nil {
		return nil, connectError(err)
	}
	if ts == nil {
		ts = []generation.ProjectTemplate{}
	}
	return connect.NewResponse(&ListTemplatesResponse{Templates: ts}), nil
}

func (h *Handlers) GetTemplate(ctx context.Context, req *connect.Request[GetTemplateRequest]) (*connect.Response[GetTemplateResponse], error) {
	id := strings.TrimSpace(req.Msg.ID)
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("id is required"))
	}
	if h.templates == nil {
		return nil, connectError(&llm.NotFoundError{Resource: "template", ID: id, Err: generation.ErrTemplateNotFound})
	}
	t, err := h.templates.GetTemplate(ctx, id)
	if errors.Is(err, generation.ErrTemplateNotFound) {
		return nil, connectError(&llm.NotFoundError{Resource: "template", ID: id, Err: err})
	}
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&GetTemplateResponse{Template: t}), nil
}

func (h *Handlers) GetBundle(ctx context.Context, req *connect.Request[GetBundleRequest]) (*connect.Response[GetBundleResponse], error) {
	runID := strings.TrimSpace(req.Msg.RunID)
	if runID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("runId is required"))
	}
	if h.bundles == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("bundle archive is disabled"))
	}
	b, err := h.bundles.Load(ctx, runID)
	if err != nil {
		return nil, connectError(err)
	}
	resp := &GetBundleResponse{Bundle: b}
	if req.Msg.Markdown {
		md, err := h.bundles.Markdown(ctx, runID)
		if err != nil {
			return nil, connectError(err)
		}
		resp.Markdown = string(md)
	}
	return connect.NewResponse(resp), nil
}

// archive stores b; a failure is logged and does not fail the request.
func (h *Handlers) archive(ctx context.Context, b generation.Bundle) {
	if h.bundles == nil || b.RunID == "" {
		return
	}
	if err := h.bundles.Save(context.WithoutCancel(ctx), b); err != nil {
		h.log.Warn("archive bundle failed", zap.String("run_id", b.RunID), zap.Error(err))
	}
}

// runStreaming runs generate with a channel observer and forwards every
// progress event to send, finishing with a bundle event. A send failure
// cancels the run.
func (h *Handlers) runStreaming(ctx context.Context, generate func(context.Context) (generation.Bundle, error), send func(generation.Event) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unbuffered: every event is forwarded before generate returns.
	events := make(chan generation.Event)
	type result struct {
		bundle generation.Bundle
		err    error
	}
	done := make(chan result, 1)
	go func() {
		b, err := generate(generation.WithObserver(ctx, &generation.ChannelObserver{Ch: events}))
		done <- result{bundle: b, err: err}
	}()

	for {
		select {
		case ev := <-events:
			if err := send(ev); err != nil {
				cancel()
				<-done
				return err
			}
		case r := <-done:
			if r.err != nil {
				return r.err
			}
			h.archive(ctx, r.bundle)
			b := r.bundle
			return send(generation.Event{Type: generation.EventBundle, RunID: b.RunID, Index: len(b.Results), Bundle: &b})
		}
	}
}
