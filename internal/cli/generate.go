package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"blueprint/internal/app"
	"blueprint/internal/archive"
	"blueprint/internal/generation"
	"blueprint/internal/llm"
)

type generateFlags struct {
	name        string
	techStack   []string
	features    []string
	audience    string
	constraints []string
	template    string
	model       string
	fallback    string
	temperature float64
	maxTokens   int
	topP        float64
	format      string
	out         string
	quiet       bool
}

// NewGenerateCmd runs one generation in-process and prints the bundle.
func NewGenerateCmd(opts *Options) *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate \"<project description>\"",
		Short: "Generate a deliverable bundle for a project description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.TrimSpace(args[0])
			if description == "" {
				return fmt.Errorf("description cannot be empty")
			}
			if f.format != "json" && f.format != "markdown" {
				return fmt.Errorf("--format must be json or markdown")
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if !f.quiet {
				ctx = generation.WithObserver(ctx, &progressPrinter{w: cmd.ErrOrStderr()})
			}
			b, err := runGenerate(ctx, a.Engine, a.Catalog, description, f, cmd)
			if err != nil {
				return err
			}
			if err := a.Archive.Save(ctx, b); err != nil {
				logger.Warn("archive bundle failed", zap.String("run_id", b.RunID), zap.Error(err))
			}
			return writeBundle(cmd.OutOrStdout(), f, b)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.name, "name", "", "Project name")
	fl.StringSliceVar(&f.techStack, "tech", nil, "Tech stack entries (repeatable or comma-separated)")
	fl.StringSliceVar(&f.features, "feature", nil, "Features (repeatable or comma-separated)")
	fl.StringVar(&f.audience, "audience", "", "Target audience")
	fl.StringSliceVar(&f.constraints, "constraint", nil, "Constraints (repeatable or comma-separated)")
	fl.StringVar(&f.template, "template", "", "Generate from a stored template id instead of the fixed stages")
	fl.StringVar(&f.model, "model", "", "Primary model id (default: catalog default)")
	fl.StringVar(&f.fallback, "fallback", "", "Fallback model id (default: catalog default fallback)")
	fl.Float64Var(&f.temperature, "temperature", llm.DefaultTemperature, "Sampling temperature [0,2]")
	fl.IntVar(&f.maxTokens, "max-tokens", llm.DefaultMaxTokens, "Maximum completion tokens per stage")
	fl.Float64Var(&f.topP, "top-p", llm.DefaultTopP, "Nucleus sampling [0,1]")
	fl.StringVar(&f.format, "format", "markdown", "Output format: json or markdown")
	fl.StringVarP(&f.out, "out", "o", "", "Write output to a file instead of stdout")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "Do not print stage progress")
	return cmd
}

func runGenerate(ctx context.Context, e *generation.Engine, catalog *llm.Catalog, description string, f *generateFlags, cmd *cobra.Command) (generation.Bundle, error) {
	if f.template != "" {
		return e.GenerateFromTemplate(ctx, f.template, description, f.model)
	}

	sel := llm.PartialSelection{PrimaryModel: f.model, FallbackModel: f.fallback}
	if sel.PrimaryModel == "" {
		sel.PrimaryModel = catalog.DefaultModel()
	}
	if sel.FallbackModel == "" && !cmd.Flags().Changed("fallback") {
		sel.FallbackModel = catalog.DefaultFallback(sel.PrimaryModel)
	}
	if cmd.Flags().Changed("temperature") {
		sel.Temperature = &f.temperature
	}
	if cmd.Flags().Changed("top-p") {
		sel.TopP = &f.topP
	}
	if cmd.Flags().Changed("max-tokens") {
		sel.MaxTokens = &f.maxTokens
	} else if m, err := catalog.Get(sel.PrimaryModel); err == nil && m.MaxTokens < llm.DefaultMaxTokens {
		limit := m.MaxTokens
		sel.MaxTokens = &limit
	}

	in := generation.ProjectInput{
		Description:    description,
		Name:           f.name,
		TechStack:      f.techStack,
		Features:       f.features,
		TargetAudience: f.audience,
		Constraints:    f.constraints,
	}
	return e.GenerateProject(ctx, in, sel)
}

func writeBundle(stdout io.Writer, f *generateFlags, b generation.Bundle) error {
	var data []byte
	if f.format == "json" {
		raw, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return err
		}
		data = append(raw, '\n')
	} else {
		data = archive.RenderMarkdown(b)
	}
	if f.out == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(f.out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.out, err)
	}
	fmt.Fprintf(stdout, "wrote %s (run %s, %s)\n", f.out, b.RunID, b.OverallStatus)
	return nil
}

// progressPrinter reports stage progress on stderr.
type progressPrinter struct {
	w io.Writer
}

func (p *progressPrinter) OnStageStart(_ context.Context, _ string, index int, stage generation.Stage) {
	title := stage.Title
	if title == "" {
		title = stage.Key
	}
	fmt.Fprintf(p.w, "[%d] %s ...\n", index+1, title)
}

func (p *progressPrinter) OnStageDone(_ context.Context, _ string, index int, r generation.StageResult) {
	if r.OK() {
		fmt.Fprintf(p.w, "[%d] %s ok (%s, %s)\n", index+1, r.StageKey, r.ModelUsed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		return
	}
	fmt.Fprintf(p.w, "[%d] %s failed: %s\n", index+1, r.StageKey, r.Error)
}
