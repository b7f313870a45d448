package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memvra/embedkit/internal/config"
	"github.com/memvra/embedkit/internal/logger"
	"github.com/memvra/embedkit/internal/mcp"
	"github.com/memvra/embedkit/internal/store"
)

func newMCPCmd() *cobra.Command {
	var noSearch bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve embedding tools over MCP (stdio)",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
embed_text, embed_batch and list_models tools, plus search when a local
index built with the active model exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, emb, err := commandEnv()
			if err != nil {
				return err
			}

			var index mcp.Index
			if !noSearch {
				st, reason := openSearchIndex(cfg, emb)
				if st != nil {
					defer st.Close()
					index = st
				} else {
					logger.Warn("search disabled", "reason", reason)
				}
			}

			if err := mcp.NewServer(emb, index, version).ServeStdio(); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSearch, "no-search", false, "do not expose the search tool")
	return cmd
}

// openSearchIndex opens the store for the search tool. When the store is
// missing or holds another embedding space it returns nil and the reason.
func openSearchIndex(cfg config.GlobalConfig, emb embedder) (*store.Store, string) {
	path := cfg.StorePath()
	meta, ok, err := store.ReadMeta(path)
	if err != nil {
		return nil, fmt.Sprintf("read index %s: %v", path, err)
	}
	if !ok {
		return nil, fmt.Sprintf("no index at %s", path)
	}
	if meta.Model != emb.Model() || meta.Dimension != emb.Dimension() {
		return nil, fmt.Sprintf("index at %s was built with %s (%d dimensions); active model is %s (%d dimensions)",
			path, meta.Model, meta.Dimension, emb.Model(), emb.Dimension())
	}

	st, err := openStore(cfg, emb)
	if err != nil {
		return nil, err.Error()
	}
	return st, ""
}
