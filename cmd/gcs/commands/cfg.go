package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-code-structure/pkg/cfg"
	"github.com/l3aro/go-code-structure/pkg/graph"
	"github.com/l3aro/go-code-structure/pkg/structure"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file.go> <function>",
	Short: "Build and structure the control flow graph of a Go function",
	Long: `Parses a Go file, builds the control flow graph of one function
(methods are matched by name) and structures it from the entry block.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath, function := args[0], args[1]

		info, err := os.Stat(filePath)
		if err != nil {
			return fmt.Errorf("stat file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("path is a directory, expected a file: %s", filePath)
		}
		if !strings.HasSuffix(filePath, ".go") {
			return fmt.Errorf("unsupported file type: %s (only .go files supported)", filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		fn, err := cfg.ExtractGoSource(content, function)
		if err != nil {
			if errors.Is(err, cfg.ErrFunctionNotFound) {
				if s := similarFunctions(cfg.ListFunctions(content), function); len(s) > 0 {
					return fmt.Errorf("function %q not found in %s\nDid you mean: %s?", function, filePath, strings.Join(s, ", "))
				}
				return fmt.Errorf("function %q not found in %s", function, filePath)
			}
			return fmt.Errorf("extracting CFG: %w", err)
		}

		blocks := fn.Graph.Nodes()
		res, err := structure.Run(fn.Graph, []string{fn.Entry}, runOptions(cmd))
		if err != nil {
			return fmt.Errorf("structuring %s: %w", function, err)
		}
		rep := structure.NewReport(fn.Graph, res)

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			return writeJSON(out, struct {
				Function *cfg.Function     `json:"function"`
				Report   *structure.Report `json:"report"`
			}{fn, rep})
		}
		printFunction(out, fn, blocks)
		return rep.Text(out)
	},
}

// similarFunctions returns names sharing a case-insensitive prefix or substring with name.
func similarFunctions(names []string, name string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, n := range names {
		ln := strings.ToLower(n)
		if strings.HasPrefix(ln, lower) || strings.Contains(ln, lower) || strings.Contains(lower, ln) {
			out = append(out, n)
		}
	}
	return out
}

// printFunction lists the blocks as extracted, before any composite merging.
func printFunction(w io.Writer, fn *cfg.Function, blocks []*graph.Node) {
	fmt.Fprintf(w, "=== CFG for function: %s ===\n", fn.Name)
	fmt.Fprintf(w, "Cyclomatic Complexity: %d\n", fn.Complexity)
	fmt.Fprintf(w, "\nBlocks (%d):\n", len(blocks))
	for _, n := range blocks {
		fmt.Fprintf(w, "  %s\n", n.ID)
		for _, line := range strings.Split(n.Label, "\n") {
			if line != "" {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	fmt.Fprintln(w)
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cfgCmd.Flags().Bool("no-merge", false, "Do not merge straight-line chains into composites")
}
