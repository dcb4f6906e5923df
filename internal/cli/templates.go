package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"blueprint/internal/app"
)

func NewTemplatesCmd(opts *Options) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List stored project templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newQuietApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ts, err := a.Templates.ListTemplates(cmd.Context(), category)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tSECTIONS\tNAME")
			for _, t := range ts {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t.ID, t.Category, len(t.Prompts), t.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only templates in this category")
	cmd.AddCommand(newTemplateShowCmd(opts))
	return cmd
}

func newTemplateShowCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one template as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newQuietApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.Templates.GetTemplate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(t); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

// newQuietApp builds the application with logging limited to warnings so
// listings stay readable.
func newQuietApp(cmd *cobra.Command, opts *Options) (*app.App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel == "" {
		cfg.Log.Level = "warn"
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger)
}
