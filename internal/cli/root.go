// Package cli defines the Cobra command tree for the embedkit CLI.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/memvra/embedkit/internal/config"
	"github.com/memvra/embedkit/internal/logger"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Persistent flag values shared by all commands.
var (
	configPath string
	logLevel   string
	provider   string
	model      string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "embedkit",
	Short: "Turn text into embedding vectors with OpenAI, Ollama or Gemini",
	Long: `embedkit converts text into embedding vectors by calling a remote
embedding provider.

Use 'embedkit embed' for a single text, 'embedkit batch' for many, or
'embedkit index' to build a local semantic search index of a directory.

Run 'embedkit setup' once to store your provider and API key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logger.Init(level, os.Stderr)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if code := run(os.Stderr); code != 0 {
		os.Exit(code)
	}
}

// run executes the command tree and flushes the logger before returning;
// os.Exit skips deferred calls.
func run(stderr io.Writer) int {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.config/embedkit/config.toml)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVarP(&provider, "provider", "p", "", "embedding provider: openai, ollama, gemini")
	pf.StringVarP(&model, "model", "m", "", "embedding model (default from config)")

	rootCmd.AddCommand(
		newEmbedCmd(),
		newBatchCmd(),
		newModelsCmd(),
		newSetupCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newWatchCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
}

// loadConfig loads the file named by --config, or the global config.
func loadConfig() (config.GlobalConfig, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadGlobal()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "embedkit %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
