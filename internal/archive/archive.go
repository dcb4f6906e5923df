package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"blueprint/internal/generation"
	"blueprint/internal/llm"
)

const (
	bundleJSONPath     = "bundle.json"
	bundleMarkdownPath = "bundle.md"
	stageDir           = "stages/"
)

// Archive writes bundles to a BlobStore as JSON, a combined Markdown
// document and one Markdown file per successful stage.
type Archive struct {
	blobs BlobStore
}

func New(blobs BlobStore) *Archive {
	return &Archive{blobs: blobs}
}

func (a *Archive) Save(ctx context.Context, b generation.Bundle) error {
	if strings.TrimSpace(b.RunID) == "" {
		return errors.New("archive: bundle has no run id")
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("archive: encode bundle: %w", err)
	}
	if err := a.blobs.Put(ctx, b.RunID, bundleJSONPath, raw, "application/json"); err != nil {
		return fmt.Errorf("archive: put %s: %w", bundleJSONPath, err)
	}
	if err := a.blobs.Put(ctx, b.RunID, bundleMarkdownPath, RenderMarkdown(b), "text/markdown"); err != nil {
		return fmt.Errorf("archive: put %s: %w", bundleMarkdownPath, err)
	}
	for _, r := range b.Results {
		if !r.OK() {
			continue
		}
		path := stageDir + r.StageKey + ".md"
		if err := a.blobs.Put(ctx, b.RunID, path, []byte(r.Text), "text/markdown"); err != nil {
			return fmt.Errorf("archive: put %s: %w", path, err)
		}
	}
	return nil
}

func (a *Archive) Load(ctx context.Context, runID string) (generation.Bundle, error) {
	raw, err := a.get(ctx, runID, bundleJSONPath)
	if err != nil {
		return generation.Bundle{}, err
	}
	var b generation.Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return generation.Bundle{}, fmt.Errorf("archive: decode bundle %s: %w", runID, err)
	}
	return b, nil
}

// Markdown returns the combined document written by Save.
func (a *Archive) Markdown(ctx context.Context, runID string) ([]byte, error) {
	return a.get(ctx, runID, bundleMarkdownPath)
}

// Files lists the archived object paths of a run.
func (a *Archive) Files(ctx context.Context, runID string) ([]string, error) {
	paths, err := a.blobs.List(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", runID, err)
	}
	if len(paths) == 0 {
		return nil, bundleNotFound(runID)
	}
	return paths, nil
}

func (a *Archive) get(ctx context.Context, runID, path string) ([]byte, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, bundleNotFound(runID)
	}
	raw, err := a.blobs.Get(ctx, runID, path)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, bundleNotFound(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: get %s/%s: %w", runID, path, err)
	}
	return raw, nil
}

func bundleNotFound(runID string) error {
	return &llm.NotFoundError{Resource: "bundle", ID: runID, Err: ErrBundleNotFound}
}
