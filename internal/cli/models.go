package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"blueprint/internal/llm"
)

func NewModelsCmd(opts *Options) *cobra.Command {
	var capability, provider string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the model catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newQuietApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()
			catalog := a.Catalog

			models := catalog.List()
			if capability != "" {
				models = catalog.FilterByCapability(capability)
			}
			if provider != "" {
				p := llm.Provider(strings.ToLower(provider))
				kept := models[:0:0]
				for _, m := range models {
					if m.Provider == p {
						kept = append(kept, m)
					}
				}
				models = kept
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROVIDER\tTRANSPORT\tMAX TOKENS\tCOST/1K IN\tCOST/1K OUT\tCAPABILITIES")
			for _, m := range models {
				marker := ""
				if m.ID == catalog.DefaultModel() {
					marker = " *"
				}
				fmt.Fprintf(tw, "%s%s\t%s\t%s\t%d\t%.4f\t%.4f\t%s\n",
					m.ID, marker, m.Provider, m.Transport, m.MaxTokens,
					m.CostPer1kTokens.Input, m.CostPer1kTokens.Output, strings.Join(m.Capabilities, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&capability, "capability", "", "Only models with this capability")
	cmd.Flags().StringVar(&provider, "provider", "", "Only models from this provider")
	return cmd
}
