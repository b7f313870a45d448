package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/memvra/embedkit/internal/adapter"
	"github.com/memvra/embedkit/internal/config"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive first-time configuration",
		Long:  "Choose the default embedding provider and model, and store its API key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			reader := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			runSetup(&cfg, reader, out, readSecret(reader))

			if configPath != "" {
				err = config.SaveFile(configPath, cfg)
			} else {
				err = config.SaveGlobal(cfg)
			}
			if err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			path := configPath
			if path == "" {
				path, _ = config.GlobalConfigPath()
			}
			fmt.Fprintf(out, "Configuration saved to %s\n", path)
			return nil
		},
	}
}

// runSetup walks through the interactive prompts, updating cfg in place.
// secret reads an API key.
func runSetup(cfg *config.GlobalConfig, reader *bufio.Reader, out io.Writer, secret func() string) {
	fmt.Fprintln(out, "Which embedding provider do you want to use?")
	fmt.Fprintln(out, "  [1] OpenAI")
	fmt.Fprintln(out, "  [2] Ollama (local)")
	fmt.Fprintln(out, "  [3] Gemini (Google)")
	fmt.Fprint(out, "> ")

	switch strings.TrimSpace(readLineBuf(reader)) {
	case "2":
		cfg.DefaultProvider = adapter.ProviderOllama
		fmt.Fprintf(out, "Ollama host (press Enter for %s): ", cfg.Ollama.Host)
		if host := readLineBuf(reader); host != "" {
			cfg.Ollama.Host = host
		}
	case "3":
		cfg.DefaultProvider = adapter.ProviderGemini
		fmt.Fprint(out, "Enter your Gemini API key (or press Enter to set GEMINI_API_KEY later): ")
		if key := secret(); key != "" {
			cfg.Keys.Gemini = key
		}
	default:
		cfg.DefaultProvider = adapter.ProviderOpenAI
		fmt.Fprint(out, "Enter your OpenAI API key (or press Enter to set OPENAI_API_KEY later): ")
		if key := secret(); key != "" {
			cfg.Keys.OpenAI = key
		}
	}
	fmt.Fprintln(out)

	models, _ := adapter.SupportedModels(cfg.DefaultProvider)
	names := adapter.ModelNames(models)
	fmt.Fprintln(out, "Which model?")
	for i, name := range names {
		fmt.Fprintf(out, "  [%d] %s (%d dimensions)\n", i+1, name, models[name].Dimension)
	}
	fmt.Fprint(out, "> ")

	choice := strings.TrimSpace(readLineBuf(reader))
	var n int
	if _, err := fmt.Sscanf(choice, "%d", &n); err == nil && n >= 1 && n <= len(names) {
		setProviderModel(cfg, names[n-1])
	} else if choice != "" {
		setProviderModel(cfg, choice)
	}
	fmt.Fprintln(out)
}

func setProviderModel(cfg *config.GlobalConfig, name string) {
	switch cfg.DefaultProvider {
	case adapter.ProviderOllama:
		cfg.Ollama.Model = name
	case adapter.ProviderGemini:
		cfg.Gemini.Model = name
	default:
		cfg.OpenAI.Model = name
	}
}

// readSecret reads without echo from a terminal, or a plain line otherwise.
func readSecret(reader *bufio.Reader) func() string {
	return func() string {
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			b, err := term.ReadPassword(fd)
			fmt.Println()
			if err == nil {
				return strings.TrimSpace(string(b))
			}
		}
		return strings.TrimSpace(readLineBuf(reader))
	}
}

// readLineBuf reads a trimmed line from a bufio.Reader.
func readLineBuf(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
