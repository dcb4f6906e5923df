package llm

import (
	"strings"

	"blueprint/internal/llmclient"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
	DefaultTopP        = 1.0
)

// Tuning holds the sampling parameters of a selection.
type Tuning struct {
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"maxTokens"`
	TopP             float64 `json:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
	PresencePenalty  float64 `json:"presencePenalty"`
}

func (t Tuning) params() llmclient.Params {
	return llmclient.Params{
		Temperature:      t.Temperature,
		TopP:             t.TopP,
		MaxTokens:        t.MaxTokens,
		FrequencyPenalty: t.FrequencyPenalty,
		PresencePenalty:  t.PresencePenalty,
	}
}

// PartialSelection is a model selection as received from a caller. Nil
// numeric fields take their defaults.
type PartialSelection struct {
	PrimaryModel     string   `json:"primaryModel"`
	FallbackModel    string   `json:"fallbackModel,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxTokens        *int     `json:"maxTokens,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	FrequencyPenalty *float64 `json:"frequencyPenalty,omitempty"`
	PresencePenalty  *float64 `json:"presencePenalty,omitempty"`
}

// ValidSelection is a selection that passed Validate. Its fields can only
// be set by the validator.
type ValidSelection struct {
	primary  AIModel
	fallback *AIModel
	tuning   Tuning
}

func (s ValidSelection) Primary() AIModel { return s.primary }

// Fallback returns the fallback model, if one is configured.
func (s ValidSelection) Fallback() (AIModel, bool) {
	if s.fallback == nil {
		return AIModel{}, false
	}
	return *s.fallback, true
}

func (s ValidSelection) Tuning() Tuning { return s.tuning }

// Models returns the ordered failover chain.
func (s ValidSelection) Models() []AIModel {
	out := []AIModel{s.primary}
	if s.fallback != nil {
		out = append(out, *s.fallback)
	}
	return out
}

// DefaultSelection returns the catalog's default primary and fallback with
// default tuning.
func DefaultSelection(c *Catalog) PartialSelection {
	primary := c.DefaultModel()
	return PartialSelection{
		PrimaryModel:  primary,
		FallbackModel: c.DefaultFallback(primary),
		Temperature:   ptr(DefaultTemperature),
		MaxTokens:     ptr(DefaultMaxTokens),
		TopP:          ptr(DefaultTopP),
	}
}

// Validator checks selections against a catalog and numeric bounds.
type Validator struct {
	catalog *Catalog
}

func NewValidator(c *Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate checks every rule independently and returns all violations in a
// single ValidationError.
func (v *Validator) Validate(in PartialSelection) (ValidSelection, error) {
	verr := &ValidationError{}
	var out ValidSelection

	primaryID := strings.TrimSpace(in.PrimaryModel)
	primaryOK := false
	if primaryID == "" {
		verr.Add("primaryModel is required")
	} else if m, err := v.catalog.Get(primaryID); err != nil {
		verr.Add("primaryModel %q is not a known model", primaryID)
	} else {
		out.primary = m
		primaryOK = true
	}

	if fallbackID := strings.TrimSpace(in.FallbackModel); fallbackID != "" {
		if m, err := v.catalog.Get(fallbackID); err != nil {
			verr.Add("fallbackModel %q is not a known model", fallbackID)
		} else if fallbackID == primaryID {
			verr.Add("fallbackModel must differ from primaryModel")
		} else {
			out.fallback = &m
		}
	}

	t := Tuning{
		Temperature:      deref(in.Temperature, DefaultTemperature),
		MaxTokens:        deref(in.MaxTokens, DefaultMaxTokens),
		TopP:             deref(in.TopP, DefaultTopP),
		FrequencyPenalty: deref(in.FrequencyPenalty, 0),
		PresencePenalty:  deref(in.PresencePenalty, 0),
	}
	if !inRange(t.Temperature, 0, 2) {
		verr.Add("temperature must be within [0, 2], got %g", t.Temperature)
	}
	if !inRange(t.TopP, 0, 1) {
		verr.Add("topP must be within [0, 1], got %g", t.TopP)
	}
	if !inRange(t.FrequencyPenalty, -2, 2) {
		verr.Add("frequencyPenalty must be within [-2, 2], got %g", t.FrequencyPenalty)
	}
	if !inRange(t.PresencePenalty, -2, 2) {
		verr.Add("presencePenalty must be within [-2, 2], got %g", t.PresencePenalty)
	}
	if t.MaxTokens < 1 {
		verr.Add("maxTokens must be at least 1, got %d", t.MaxTokens)
	} else if primaryOK && t.MaxTokens > out.primary.MaxTokens {
		verr.Add("maxTokens %d exceeds %s limit of %d", t.MaxTokens, out.primary.ID, out.primary.MaxTokens)
	}

	if err := verr.OrNil(); err != nil {
		return ValidSelection{}, err
	}
	out.tuning = t
	return out, nil
}

// Clamped returns the tuning with MaxTokens capped at m's limit. Used when
// the same tuning is sent to a fallback with a smaller output budget.
func (t Tuning) Clamped(m AIModel) Tuning {
	if m.MaxTokens > 0 && t.MaxTokens > m.MaxTokens {
		t.MaxTokens = m.MaxTokens
	}
	return t
}

// inRange is false for NaN.
func inRange(x, lo, hi float64) bool { return x >= lo && x <= hi }

func ptr[T any](v T) *T { return &v }

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
