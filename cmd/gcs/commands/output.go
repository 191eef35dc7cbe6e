package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-code-structure/internal/config"
	"github.com/l3aro/go-code-structure/pkg/structure"
)

// runOptions builds structure options from the loaded settings and the --no-merge flag.
func runOptions(cmd *cobra.Command, listeners ...structure.Listener) structure.RunOptions {
	merge := settings.MergeComposites
	if noMerge, _ := cmd.Flags().GetBool("no-merge"); noMerge {
		merge = false
	}
	if settings.Verbose {
		listeners = append(listeners, structure.LogListener{Logger: logger})
	}
	return structure.RunOptions{
		MergeComposites: merge,
		MaxNodes:        settings.MaxNodes,
		Logger:          logger,
		Listeners:       listeners,
	}
}

// jsonOutput reports whether --json was given or JSON is the configured format.
func jsonOutput(cmd *cobra.Command) bool {
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return true
	}
	return settings.ReportFormat == config.FormatJSON
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printEvents(w io.Writer, events []structure.Event) {
	fmt.Fprintf(w, "\nTrace (%d events):\n", len(events))
	for _, e := range events {
		switch e.Type {
		case structure.EventEdgeMarked:
			fmt.Fprintf(w, "  %s %s %s\n", e.Type, e.Edge, e.Kind)
		case structure.EventJoinDetected:
			fmt.Fprintf(w, "  %s %s ends=%v\n", e.Type, e.Node, e.Ends)
		case structure.EventNoNodeSelected, structure.EventStep:
			fmt.Fprintf(w, "  %s\n", e.Type)
		default:
			fmt.Fprintf(w, "  %s %s\n", e.Type, e.Node)
		}
	}
}
