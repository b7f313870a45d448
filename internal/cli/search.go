package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memvra/embedkit/internal/adapter"
	"github.com/memvra/embedkit/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		topK   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search over the local index",
		Long: `Embed the query with the same provider and model used to build the index,
then print the nearest chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, emb, err := commandEnv()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, emb)
			if err != nil {
				return err
			}
			defer st.Close()

			matches, err := search(cmd.Context(), emb, st, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(matches)
			}
			printMatches(cmd.OutOrStdout(), matches)
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func search(ctx context.Context, emb adapter.Embedding, st *store.Store, query string, topK int) ([]store.Match, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := emb.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return st.Search(v.Values, topK)
}

func printMatches(w io.Writer, matches []store.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for _, m := range matches {
		fmt.Fprintf(w, "%s:%d-%d  (score %.3f)\n", m.Path, m.StartLine, m.EndLine, m.Similarity())
		for _, line := range strings.Split(strings.TrimRight(m.Content, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		fmt.Fprintln(w)
	}
}
