package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"blueprint/internal/llm"
)

// Engine is the entry point used by the server and CLI. It holds only the
// immutable catalog and the pipeline; every call is independent.
type Engine struct {
	catalog   *llm.Catalog
	validator *llm.Validator
	pipeline  *Pipeline
	expander  *Expander
	templates TemplateSource
	stages    []Stage
	log       *zap.Logger
}

type EngineOption func(*Engine)

// WithStages replaces the fixed project stage list.
func WithStages(stages []Stage) EngineOption {
	return func(e *Engine) {
		if len(stages) > 0 {
			e.stages = stages
		}
	}
}

func WithEngineLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEngine(catalog *llm.Catalog, pipeline *Pipeline, templates TemplateSource, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog:   catalog,
		validator: llm.NewValidator(catalog),
		pipeline:  pipeline,
		expander:  NewExpander(catalog, pipeline),
		templates: templates,
		stages:    DefaultStages(),
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Catalog() *llm.Catalog { return e.catalog }

func (e *Engine) Templates() TemplateSource { return e.templates }

// GenerateProject validates input and selection together and runs the
// fixed stage list. Only a *llm.ValidationError is returned as an error;
// provider trouble is reported inside the bundle.
func (e *Engine) GenerateProject(ctx context.Context, in ProjectInput, partial llm.PartialSelection) (Bundle, error) {
	verr := validationError()
	in.validate(verr)
	sel, err := e.validator.Validate(partial)
	mergeReasons(verr, err)
	if err := verr.OrNil(); err != nil {
		e.log.Info("generate rejected", zap.Strings("reasons", verr.Reasons))
		return Bundle{}, err
	}

	b := e.pipeline.Run(ctx, in, sel, e.stages)
	b.Source = "project"
	return b, nil
}

// GenerateFromTemplate loads templateID and expands it. A blank modelID
// picks the template's first recommended model known to the catalog, then
// the catalog default.
func (e *Engine) GenerateFromTemplate(ctx context.Context, templateID, description, modelID string) (Bundle, error) {
	if e.templates == nil {
		return Bundle{}, &llm.NotFoundError{Resource: "template", ID: templateID, Err: ErrTemplateNotFound}
	}
	tpl, err := e.templates.GetTemplate(ctx, strings.TrimSpace(templateID))
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return Bundle{}, &llm.NotFoundError{Resource: "template", ID: templateID, Err: err}
		}
		return Bundle{}, fmt.Errorf("load template %s: %w", templateID, err)
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = e.recommendedModel(tpl)
	}
	return e.expander.Expand(ctx, tpl, description, modelID)
}

func (e *Engine) recommendedModel(tpl ProjectTemplate) string {
	for _, id := range tpl.RecommendedModels {
		if e.catalog.Has(id) {
			return id
		}
	}
	return e.catalog.DefaultModel()
}
