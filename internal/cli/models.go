package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memvra/embedkit/internal/adapter"
	"github.com/memvra/embedkit/internal/config"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported models and their dimensions",
		Long: `List the embedding models known for a provider. With no --provider, every
provider is listed. Unknown models are still accepted by the adapters; they
are assumed to have the provider's default dimension.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers := adapter.Providers()
			if provider != "" {
				providers = []string{provider}
			}
			return printModels(cmd.OutOrStdout(), providers)
		},
	}
}

func printModels(w io.Writer, providers []string) error {
	defaults := config.DefaultGlobal()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tDIMENSION\tDESCRIPTION")
	for _, p := range providers {
		models, err := adapter.SupportedModels(p)
		if err != nil {
			return err
		}
		_, acfg := defaults.AdapterConfig(p)
		for _, name := range adapter.ModelNames(models) {
			spec := models[name]
			desc := spec.Description
			if name == acfg.Model {
				desc += " [default]"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p, name, spec.Dimension, desc)
		}
	}
	return tw.Flush()
}
