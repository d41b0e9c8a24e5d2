package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/codecraft/internal/config"
	"github.com/sakif/codecraft/internal/entitlement"
)

// NewLanguagesCommand prints the language catalogue and the tier each
// language needs.
func NewLanguagesCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List runnable languages and their tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalogue, err := config.LoadCatalogue(file)
			if err != nil {
				return err
			}
			policy := entitlement.NewPolicy(catalogue.FreeTags()...)

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return json.NewEncoder(out).Encode(catalogue.Languages)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TAG\tNAME\tVERSION\tTIER")
			for _, l := range catalogue.Languages {
				tier := "pro"
				if policy.IsFree(l.Tag) {
					tier = "free"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Tag, l.Name, l.Runtime.Version, tier)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "catalogue YAML (default: built-in)")
	return cmd
}
