// Package batch structures every graph description and Go function under a
// directory, reusing cached reports for unchanged inputs.
package batch

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-code-structure/internal/log"
	"github.com/l3aro/go-code-structure/internal/scanner"
	"github.com/l3aro/go-code-structure/pkg/cache"
	"github.com/l3aro/go-code-structure/pkg/cfg"
	"github.com/l3aro/go-code-structure/pkg/graphfile"
	"github.com/l3aro/go-code-structure/pkg/structure"
)

// Result is the outcome for one graph file or one Go function.
type Result struct {
	// Source is the file path, with ":function" appended for Go sources.
	Source   string            `json:"source"`
	Function string            `json:"function,omitempty"`
	Cached   bool              `json:"cached"`
	Report   *structure.Report `json:"report,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Failed reports whether the unit could not be structured.
func (r Result) Failed() bool { return r.Error != "" }

// Runner structures the files a scanner finds.
type Runner struct {
	Scanner *scanner.Scanner
	Cache   *cache.ReportCache // Optional
	Options structure.RunOptions
	Jobs    int // Parallel files; defaults to GOMAXPROCS
	Logger  log.Logger
}

// Run scans root and structures every file found. Results follow scan order,
// functions in declaration order within a file. A file that fails to load or
// structure yields a failed Result; Run itself only fails on scan errors or
// cancellation.
func (r *Runner) Run(ctx context.Context, root string) ([]Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = log.Nop()
	}
	sc := r.Scanner
	if sc == nil {
		sc = scanner.New(scanner.DefaultOptions())
	}
	files, err := sc.Scan(root)
	if err != nil {
		return nil, err
	}
	logger.Debug("batch scan complete", "root", root, "files", len(files))

	jobs := r.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	perFile := make([][]Result, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i] = r.file(f, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var results []Result
	for _, rs := range perFile {
		results = append(results, rs...)
	}
	return results, nil
}

func (r *Runner) file(f scanner.FileInfo, logger log.Logger) []Result {
	data, err := os.ReadFile(f.FullPath)
	if err != nil {
		return []Result{failed(f.Path, "", err, logger)}
	}
	switch f.Kind {
	case scanner.KindGraph:
		return []Result{r.graph(f.Path, data, logger)}
	case scanner.KindGo:
		var out []Result
		for _, name := range cfg.ListFunctions(data) {
			out = append(out, r.function(f.Path, name, data, logger))
		}
		return out
	}
	return nil
}

func (r *Runner) graph(source string, data []byte, logger log.Logger) Result {
	key := cache.Key(data, r.Options.MergeComposites)
	if rep, ok := r.lookup(key); ok {
		return Result{Source: source, Cached: true, Report: rep}
	}

	d, err := graphfile.Parse(data)
	if err != nil {
		return failed(source, "", err, logger)
	}
	g, heads, err := graphfile.Build(d)
	if err != nil {
		return failed(source, "", err, logger)
	}
	res, err := structure.Run(g, heads, r.Options)
	if err != nil {
		return failed(source, "", err, logger)
	}
	rep := structure.NewReport(g, res)
	r.store(key, source, rep)
	return Result{Source: source, Report: rep}
}

func (r *Runner) function(path, name string, data []byte, logger log.Logger) Result {
	source := path + ":" + name
	key := cache.Key(append([]byte(name+"\x00"), data...), r.Options.MergeComposites)
	if rep, ok := r.lookup(key); ok {
		return Result{Source: source, Function: name, Cached: true, Report: rep}
	}

	fn, err := cfg.ExtractGoSource(data, name)
	if err != nil {
		return failed(source, name, err, logger)
	}
	res, err := structure.Run(fn.Graph, []string{fn.Entry}, r.Options)
	if err != nil {
		return failed(source, name, err, logger)
	}
	rep := structure.NewReport(fn.Graph, res)
	r.store(key, source, rep)
	return Result{Source: source, Function: name, Report: rep}
}

func (r *Runner) lookup(key string) (*structure.Report, bool) {
	if r.Cache == nil {
		return nil, false
	}
	return r.Cache.Get(key)
}

func (r *Runner) store(key, source string, rep *structure.Report) {
	if r.Cache != nil {
		r.Cache.Set(key, source, rep)
	}
}

func failed(source, function string, err error, logger log.Logger) Result {
	logger.Warn("structuring failed", "source", source, "error", err)
	return Result{Source: source, Function: function, Error: fmt.Sprint(err)}
}
