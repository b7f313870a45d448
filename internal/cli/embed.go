package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memvra/embedkit/internal/adapter"
)

// embedOutput is the JSON shape printed by embed and batch.
type embedOutput struct {
	Index     *int      `json:"index,omitempty"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Vector    []float32 `json:"vector"`
}

func newEmbedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed [text|-]",
		Short: "Embed a single text and print the vector as JSON",
		Long: `Embed a single text with the configured provider and print
{provider, model, dimension, vector} as JSON.

With no argument or "-", the text is read from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, emb, err := commandEnv()
			if err != nil {
				return err
			}

			text, err := readText(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runEmbed(cmd.Context(), emb, text, cmd.OutOrStdout())
		},
	}
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [file|-]",
		Short: "Embed every line of a file in one request and print JSON lines",
		Long: `Read one text per line from a file (or stdin) and embed them all with a
single provider call. One JSON object is printed per input line, in input
order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, emb, err := commandEnv()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			texts, err := readLines(r)
			if err != nil {
				return err
			}
			return runBatch(cmd.Context(), emb, texts, cmd.OutOrStdout())
		},
	}
}

func runEmbed(ctx context.Context, emb embedder, text string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := emb.Embed(ctx, text)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(toOutput(emb, v, nil))
}

func runBatch(ctx context.Context, emb embedder, texts []string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	vecs, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for i, v := range vecs {
		idx := i
		if err := enc.Encode(toOutput(emb, v, &idx)); err != nil {
			return err
		}
	}
	return nil
}

func toOutput(emb embedder, v adapter.Vector, idx *int) embedOutput {
	return embedOutput{
		Index:     idx,
		Provider:  emb.Provider(),
		Model:     emb.Model(),
		Dimension: v.Dimension,
		Vector:    v.Values,
	}
}

// readText returns the single argument, or all of r when the argument is
// absent or "-".
func readText(args []string, r io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// readLines splits r into lines without their terminators.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}
