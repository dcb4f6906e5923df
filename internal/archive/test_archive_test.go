package archive

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint/internal/generation"
	"blueprint/internal/llm"
	"blueprint/internal/llmclient"
)

func sampleBundle() generation.Bundle {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return generation.Bundle{
		RunID:         "run-1",
		Source:        "project",
		Input:         generation.ProjectInput{Description: "todo app", Name: "Todo"},
		ModelUsed:     "gpt-4o",
		GeneratedAt:   at,
		OverallStatus: generation.StatusPartial,
		Results: []generation.StageResult{
			{StageKey: "productPlan", Title: "Product Plan", Required: true, Status: generation.StageOK, ModelUsed: "gpt-4o", Text: "# Plan\nship it", StartedAt: at, FinishedAt: at},
			{StageKey: "designSystem", Title: "Design System", Required: true, Status: generation.StageFailed, ModelUsed: "gpt-4o", Error: llmclient.KindTimeout, StartedAt: at, FinishedAt: at},
		},
	}
}

func TestArchive_SaveLoad(t *testing.T) {
	ctx := context.Background()
	a := New(NewMemoryStore())
	b := sampleBundle()
	require.NoError(t, a.Save(ctx, b))

	got, err := a.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, b.Keys(), got.Keys())
	assert.Equal(t, generation.StatusPartial, got.OverallStatus)
	assert.Equal(t, llmclient.KindTimeout, got.Results[1].Error)

	files, err := a.Files(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"bundle.json", "bundle.md", "stages/productPlan.md"}, files)
}

func TestArchive_NotFound(t *testing.T) {
	ctx := context.Background()
	a := New(NewMemoryStore())

	_, err := a.Load(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBundleNotFound))
	assert.True(t, llm.IsNotFound(err))

	_, err = a.Markdown(ctx, "")
	assert.True(t, errors.Is(err, ErrBundleNotFound))

	_, err = a.Files(ctx, "missing")
	assert.True(t, errors.Is(err, ErrBundleNotFound))
}

func TestArchive_SaveRequiresRunID(t *testing.T) {
	b := sampleBundle()
	b.RunID = " "
	assert.Error(t, New(NewMemoryStore()).Save(context.Background(), b))
}

type brokenStore struct{ *MemoryStore }

func (brokenStore) Get(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("connection reset")
}

func TestArchive_StoreErrorIsNotNotFound(t *testing.T) {
	a := New(brokenStore{NewMemoryStore()})
	_, err := a.Load(context.Background(), "run-1")
	require.Error(t, err)
	assert.False(t, llm.IsNotFound(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRenderMarkdown(t *testing.T) {
	md := string(RenderMarkdown(sampleBundle()))

	assert.True(t, strings.HasPrefix(md, "# Todo\n"))
	assert.Contains(t, md, "- Status: partial")
	assert.Contains(t, md, "- Generated: 2026-01-02T03:04:05Z")
	assert.Contains(t, md, "## Product Plan\n\n### Plan\nship it")
	assert.Contains(t, md, "## Design System\n\n_Stage failed (timeout)._")
	assert.Less(t, strings.Index(md, "Product Plan"), strings.Index(md, "Design System"))
}

func TestDemoteHeadingsSkipsFences(t *testing.T) {
	in := "# A\n```sh\n# comment\n```\n## B"
	assert.Equal(t, "### A\n```sh\n# comment\n```\n#### B", demoteHeadings(in))
}

func TestMemoryStore_CopiesContent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "r", "/x.txt", buf, ""))
	buf[0] = 'z'

	got, err := s.Get(ctx, "r", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	_, err = s.Get(ctx, "r", "y.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Error(t, s.Put(ctx, "", "x", nil, ""))
}

func TestS3Store(t *testing.T) {
	endpoint := os.Getenv("BLUEPRINT_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("BLUEPRINT_TEST_S3_ENDPOINT not set")
	}
	s, err := NewS3Store(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("BLUEPRINT_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("BLUEPRINT_TEST_S3_SECRET_KEY"),
		Bucket:    "blueprint-test",
	})
	require.NoError(t, err)

	ctx := context.Background()
	a := New(s)
	b := sampleBundle()
	b.RunID = "s3-" + time.Now().Format("150405.000")
	require.NoError(t, a.Save(ctx, b))
	got, err := a.Load(ctx, b.RunID)
	require.NoError(t, err)
	assert.Equal(t, b.Keys(), got.Keys())

	_, err = a.Load(ctx, "absent-run")
	assert.True(t, errors.Is(err, ErrBundleNotFound))
}

func TestNewS3Store_RequiresConfig(t *testing.T) {
	_, err := NewS3Store(S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)
	_, err = NewS3Store(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.Error(t, err)
}
