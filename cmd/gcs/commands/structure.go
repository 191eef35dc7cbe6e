package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-code-structure/pkg/graphfile"
	"github.com/l3aro/go-code-structure/pkg/structure"
)

// structureCmd represents the structure command
var structureCmd = &cobra.Command{
	Use:   "structure <graph-file>",
	Short: "Structure a graph description",
	Long: `Loads a YAML or JSON graph description, detects loops, branches and joins,
and prints every edge with its kind and decision list.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		g, heads, err := graphfile.LoadGraph(path)
		if err != nil {
			return err
		}

		var rec *structure.Recorder
		var listeners []structure.Listener
		if trace, _ := cmd.Flags().GetBool("trace"); trace {
			rec = &structure.Recorder{}
			listeners = append(listeners, rec)
		}

		res, err := structure.Run(g, heads, runOptions(cmd, listeners...))
		if err != nil {
			return fmt.Errorf("structuring %s: %w", path, err)
		}
		rep := structure.NewReport(g, res)
		logger.Debug("report built", "file", path, "edges", len(rep.Edges))

		if snapshot, _ := cmd.Flags().GetString("snapshot"); snapshot != "" {
			if err := writeSnapshot(rep, snapshot); err != nil {
				return err
			}
			logger.Info("snapshot written", "path", snapshot)
		}

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			if rec == nil {
				return writeJSON(out, rep)
			}
			return writeJSON(out, struct {
				*structure.Report
				Trace []structure.Event `json:"trace"`
			}{rep, rec.Events})
		}

		if err := rep.Text(out); err != nil {
			return err
		}
		if rec != nil {
			printEvents(out, rec.Events)
		}
		return nil
	},
}

func writeSnapshot(rep *structure.Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	if err := rep.WriteMsgpack(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	structureCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	structureCmd.Flags().Bool("trace", false, "Print detector events")
	structureCmd.Flags().Bool("no-merge", false, "Do not merge straight-line chains into composites")
	structureCmd.Flags().String("snapshot", "", "Also write the report as msgpack to this path")
}
