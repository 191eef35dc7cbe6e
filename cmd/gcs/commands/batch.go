package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-code-structure/internal/batch"
	"github.com/l3aro/go-code-structure/internal/scanner"
	"github.com/l3aro/go-code-structure/pkg/cache"
	"github.com/l3aro/go-code-structure/pkg/structure"
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Structure every graph description and Go function under a directory",
	Long: `Walks a directory for .yaml, .yml and .json graph descriptions and .go files,
honoring .gcsignore files, and structures each graph and each Go function.
Reports are cached by content in the configured cache directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]

		opts := scanner.DefaultOptions()
		opts.Logger = logger
		r := &batch.Runner{
			Scanner: scanner.New(opts),
			Options: runOptions(cmd),
			Logger:  logger,
		}
		r.Jobs, _ = cmd.Flags().GetInt("jobs")

		noCache, _ := cmd.Flags().GetBool("no-cache")
		cachePath := filepath.Join(settings.CacheDir, cache.FileName)
		if !noCache {
			c, err := cache.New(settings.CacheSize)
			if err != nil {
				return err
			}
			if err := cache.LoadFromFile(c, cachePath); err != nil {
				logger.Warn("ignoring unreadable cache", "path", cachePath, "error", err)
				c.Clear()
			}
			r.Cache = c
		}

		results, err := r.Run(cmd.Context(), root)
		if err != nil {
			return err
		}

		if r.Cache != nil {
			if err := cache.PersistToFile(r.Cache, cachePath); err != nil {
				logger.Warn("saving cache", "path", cachePath, "error", err)
			}
			st := r.Cache.Stats()
			logger.Debug("cache stats", "len", st.Len, "hits", st.Hits, "misses", st.Misses)
		}

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			if err := writeJSON(out, results); err != nil {
				return err
			}
		} else {
			printBatch(out, results)
		}

		failed := 0
		for _, res := range results {
			if res.Failed() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d failed", failed, len(results))
		}
		return nil
	},
}

func printBatch(w io.Writer, results []batch.Result) {
	fmt.Fprintf(w, "=== Batch (%d) ===\n", len(results))
	for _, res := range results {
		if res.Failed() {
			fmt.Fprintf(w, "  %s: error: %s\n", res.Source, res.Error)
			continue
		}
		s := res.Report.Stats
		cached := ""
		if res.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(w, "  %s: nodes=%d loops=%d joins=%d gotos=%d%s\n",
			res.Source, s["nodes"], s["loops"], len(res.Report.Joins), s[string(structure.EdgeGoto)], cached)
	}
}

func init() {
	batchCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	batchCmd.Flags().Bool("no-merge", false, "Do not merge straight-line chains into composites")
	batchCmd.Flags().Bool("no-cache", false, "Ignore and do not update the report cache")
	batchCmd.Flags().IntP("jobs", "p", 0, "Files structured in parallel (default: GOMAXPROCS)")
}
