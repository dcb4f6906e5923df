package generation

import (
	"context"
	"errors"

	"blueprint/internal/llm"
)

// Expander turns a template's sections into stages and runs them through
// the shared pipeline.
type Expander struct {
	catalog   *llm.Catalog
	validator *llm.Validator
	pipeline  *Pipeline
}

func NewExpander(catalog *llm.Catalog, pipeline *Pipeline) *Expander {
	return &Expander{catalog: catalog, validator: llm.NewValidator(catalog), pipeline: pipeline}
}

// TemplateStages derives one required stage per template section.
func TemplateStages(tpl ProjectTemplate, description string) []Stage {
	stages := make([]Stage, 0, len(tpl.Prompts))
	for _, sec := range tpl.Prompts {
		prompt := RenderSectionPrompt(tpl, sec.PromptTemplate, description)
		title := sec.Title
		if title == "" {
			title = sec.SectionKey
		}
		stages = append(stages, Stage{
			Key:      sec.SectionKey,
			Title:    title,
			Required: true,
			Prompt:   func(ProjectInput) string { return prompt },
		})
	}
	return stages
}

// Expand validates the template, the description and a selection made of
// modelID plus the catalog's default fallback, then runs the pipeline.
func (e *Expander) Expand(ctx context.Context, tpl ProjectTemplate, description, modelID string) (Bundle, error) {
	verr := validationError()
	mergeReasons(verr, tpl.Validate())
	in := ProjectInput{Description: description, Name: tpl.Name}
	in.validate(verr)

	partial := llm.DefaultSelection(e.catalog)
	partial.PrimaryModel = modelID
	partial.FallbackModel = e.catalog.DefaultFallback(modelID)
	if m, err := e.catalog.Get(modelID); err == nil && m.MaxTokens < llm.DefaultMaxTokens {
		// Stay within the primary's output limit.
		maxTokens := m.MaxTokens
		partial.MaxTokens = &maxTokens
	}
	sel, err := e.validator.Validate(partial)
	mergeReasons(verr, err)
	if err := verr.OrNil(); err != nil {
		return Bundle{}, err
	}
	b := e.pipeline.Run(ctx, in, sel, TemplateStages(tpl, description))
	b.Source = "template"
	b.TemplateID = tpl.ID
	return b, nil
}

func validationError() *llm.ValidationError { return &llm.ValidationError{} }

// mergeReasons folds a ValidationError's reasons into verr; any other
// error becomes a single reason.
func mergeReasons(verr *llm.ValidationError, err error) {
	if err == nil {
		return
	}
	var ve *llm.ValidationError
	if errors.As(err, &ve) {
		verr.Reasons = append(verr.Reasons, ve.Reasons...)
		return
	}
	verr.Reasons = append(verr.Reasons, err.Error())
}
