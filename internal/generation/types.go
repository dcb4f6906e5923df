package generation

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"blueprint/internal/llm"
	"blueprint/internal/llmclient"
)

// ProjectInput is the caller's description of the project to plan.
type ProjectInput struct {
	Description    string   `json:"description"`
	Name           string   `json:"name,omitempty"`
	TechStack      []string `json:"techStack,omitempty"`
	Features       []string `json:"features,omitempty"`
	TargetAudience string   `json:"targetAudience,omitempty"`
	Constraints    []string `json:"constraints,omitempty"`
}

func (in ProjectInput) validate(verr *llm.ValidationError) {
	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description is required")
	}
}

// PromptBuilder renders a stage prompt from the project input.
type PromptBuilder func(ProjectInput) string

// Stage is one discrete generation step producing one named artifact.
type Stage struct {
	Key      string
	Title    string
	Prompt   PromptBuilder
	Required bool
}

type StageStatus string

const (
	StageOK     StageStatus = "ok"
	StageFailed StageStatus = "failed"
)

type OverallStatus string

const (
	StatusCompleted OverallStatus = "completed"
	StatusPartial   OverallStatus = "partial"
	StatusFailed    OverallStatus = "failed"
)

// StageResult is produced exactly once per stage per run.
type StageResult struct {
	StageKey   string         `json:"stageKey"`
	Title      string         `json:"title,omitempty"`
	Required   bool           `json:"required"`
	Status     StageStatus    `json:"status"`
	ModelUsed  string         `json:"modelUsed"`
	Text       string         `json:"text,omitempty"`
	Error      llmclient.Kind `json:"error,omitempty"`
	Attempts   []llm.Attempt  `json:"attempts,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

func (r StageResult) OK() bool { return r.Status == StageOK }

// Bundle is the ordered set of stage outcomes of one run. It is never
// mutated after the pipeline returns it.
type Bundle struct {
	RunID         string        `json:"runId"`
	Source        string        `json:"source"`
	TemplateID    string        `json:"templateId,omitempty"`
	Input         ProjectInput  `json:"input"`
	ModelUsed     string        `json:"modelUsed"`
	GeneratedAt   time.Time     `json:"generatedAt"`
	OverallStatus OverallStatus `json:"overallStatus"`
	Results       []StageResult `json:"results"`
}

// Get returns the result for a stage key.
func (b Bundle) Get(key string) (StageResult, bool) {
	for _, r := range b.Results {
		if r.StageKey == key {
			return r, true
		}
	}
	return StageResult{}, false
}

// Keys returns stage keys in declared order.
func (b Bundle) Keys() []string {
	out := make([]string, len(b.Results))
	for i, r := range b.Results {
		out[i] = r.StageKey
	}
	return out
}

type bundleJSON Bundle

// MarshalJSON adds a "stages" object keyed by stage key. Keys are written
// in declared order, which encoding/json maps cannot guarantee.
func (b Bundle) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(bundleJSON(b))
	if err != nil {
		return nil, err
	}
	var stages bytes.Buffer
	stages.WriteByte('{')
	for i, r := range b.Results {
		if i > 0 {
			stages.WriteByte(',')
		}
		k, err := json.Marshal(r.StageKey)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		stages.Write(k)
		stages.WriteByte(':')
		stages.Write(v)
	}
	stages.WriteByte('}')

	out := bytes.NewBuffer(make([]byte, 0, len(base)+stages.Len()+12))
	out.Write(base[:len(base)-1])
	out.WriteString(`,"stages":`)
	out.Write(stages.Bytes())
	out.WriteByte('}')
	return out.Bytes(), nil
}

// UnmarshalJSON reads the results array; "stages" is derived data.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var v bundleJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = Bundle(v)
	return nil
}

// overallStatus: failed iff every required stage failed, partial iff some
// required stage failed and some succeeded, completed otherwise. With no
// required stages the rule is applied to all stages.
func overallStatus(results []StageResult) OverallStatus {
	considered := make([]StageResult, 0, len(results))
	for _, r := range results {
		if r.Required {
			considered = append(considered, r)
		}
	}
	if len(considered) == 0 {
		considered = results
	}
	failed := 0
	for _, r := range considered {
		if !r.OK() {
			failed++
		}
	}
	switch {
	case len(considered) == 0 || failed == 0:
		return StatusCompleted
	case failed == len(considered):
		return StatusFailed
	default:
		return StatusPartial
	}
}

// bundleModel reports the primary if it answered any stage, else the
// fallback if it did, else the primary.
func bundleModel(results []StageResult, primary, fallback string) string {
	usedFallback := false
	for _, r := range results {
		if !r.OK() {
			continue
		}
		if r.ModelUsed == primary {
			return primary
		}
		if fallback != "" && r.ModelUsed == fallback {
			usedFallback = true
		}
	}
	if usedFallback {
		return fallback
	}
	return primary
}
