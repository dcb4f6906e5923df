package llm

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	v := NewValidator(testCatalog())
	sel, err := v.Validate(PartialSelection{PrimaryModel: "alpha"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", sel.Primary().ID)
	_, hasFallback := sel.Fallback()
	assert.False(t, hasFallback)
	assert.Equal(t, Tuning{Temperature: 0.7, MaxTokens: 4000, TopP: 1}, sel.Tuning())
	assert.Len(t, sel.Models(), 1)
}

func TestValidate_WithFallback(t *testing.T) {
	v := NewValidator(testCatalog())
	sel, err := v.Validate(PartialSelection{
		PrimaryModel:     "alpha",
		FallbackModel:    "beta",
		Temperature:      ptr(0.0),
		MaxTokens:        ptr(100),
		TopP:             ptr(0.5),
		FrequencyPenalty: ptr(-2.0),
		PresencePenalty:  ptr(2.0),
	})
	require.NoError(t, err)
	fb, ok := sel.Fallback()
	require.True(t, ok)
	assert.Equal(t, "beta", fb.ID)
	assert.Equal(t, []string{"alpha", "beta"}, []string{sel.Models()[0].ID, sel.Models()[1].ID})
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	v := NewValidator(testCatalog())
	_, err := v.Validate(PartialSelection{
		PrimaryModel:     "unknown",
		FallbackModel:    "also-unknown",
		Temperature:      ptr(2.5),
		TopP:             ptr(-0.1),
		FrequencyPenalty: ptr(3.0),
		PresencePenalty:  ptr(-2.5),
		MaxTokens:        ptr(0),
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Reasons, 7)
	assert.Contains(t, ve.Error(), "temperature")
	assert.Contains(t, ve.Error(), "topP")
	assert.Contains(t, ve.Error(), "primaryModel")

	nan := math.NaN()
	_, err = v.Validate(PartialSelection{
		PrimaryModel:     "alpha",
		Temperature:      &nan,
		TopP:             &nan,
		FrequencyPenalty: &nan,
		PresencePenalty:  ptr(math.Inf(1)),
	})
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Reasons, 4)
	assert.Contains(t, ve.Error(), "temperature must be within [0, 2], got NaN")
}

func TestValidate_MissingPrimary(t *testing.T) {
	_, err := NewValidator(testCatalog()).Validate(PartialSelection{Temperature: ptr(-1.0)})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{
		"primaryModel is required",
		"temperature must be within [0, 2], got -1",
	}, ve.Reasons)
}

func TestValidate_ModelSpecificRules(t *testing.T) {
	v := NewValidator(testCatalog())
	_, err := v.Validate(PartialSelection{PrimaryModel: "beta", FallbackModel: "beta", MaxTokens: ptr(4096)})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Reasons, 2)
	assert.Contains(t, ve.Reasons[0], "must differ")
	assert.Contains(t, ve.Reasons[1], "exceeds beta limit of 2048")
}

func TestDefaultSelection_Validates(t *testing.T) {
	c := testCatalog()
	in := DefaultSelection(c)
	assert.Equal(t, "alpha", in.PrimaryModel)
	assert.Equal(t, "beta", in.FallbackModel)
	_, err := NewValidator(c).Validate(in)
	require.NoError(t, err)
}

func TestTuningClamped(t *testing.T) {
	tn := Tuning{MaxTokens: 4000}
	assert.Equal(t, 2048, tn.Clamped(AIModel{MaxTokens: 2048}).MaxTokens)
	assert.Equal(t, 4000, tn.Clamped(AIModel{MaxTokens: 8192}).MaxTokens)
}
