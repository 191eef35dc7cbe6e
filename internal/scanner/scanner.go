// Package scanner finds graph descriptions and Go sources under a directory.
// It honors .gcsignore files with gitignore-style patterns.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/l3aro/go-code-structure/internal/log"
)

// DefaultIgnoreFile is the per-directory ignore file name.
const DefaultIgnoreFile = ".gcsignore"

// FileInfo describes a discovered file.
type FileInfo struct {
	Path     string // Slash separated, relative to the scan root
	FullPath string
	Kind     Kind
	Size     int64
}

// Options configures a scan.
type Options struct {
	SkipHidden      bool
	FollowSymlinks  bool     // Follow file symlinks that resolve inside the root
	DefaultExcludes []string // Directory names never descended into
	IgnoreFileName  string
	Kinds           []Kind // Kinds to report; empty means every known kind
	Logger          log.Logger
}

// DefaultOptions returns the options the batch command uses.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: DefaultIgnoreFile,
		DefaultExcludes: []string{
			".git", ".hg", ".svn",
			"node_modules", "vendor", "testdata",
			"dist", "build", "bin", "target",
			".idea", ".vscode", ".gcs",
		},
	}
}

// scopedIgnore is an ignore set loaded from the file in dir (relative to root).
type scopedIgnore struct {
	dir string
	set IgnoreSet
}

// Scanner walks directory trees.
type Scanner struct {
	opts Options
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.IgnoreFileName == "" {
		opts.IgnoreFileName = DefaultIgnoreFile
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns matching files in lexical path order.
// Unreadable entries are logged and skipped.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanning %s: not a directory", root)
	}

	var (
		files   []FileInfo
		ignores []scopedIgnore
	)
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.opts.Logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if rel == "." {
			ignores = s.loadIgnores(ignores, absRoot, ".")
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if (s.opts.SkipHidden && strings.HasPrefix(name, ".")) || s.excluded(name) || ignored(ignores, rel, true) {
				return filepath.SkipDir
			}
			ignores = s.loadIgnores(ignores, path, rel)
			return nil
		}
		if s.opts.SkipHidden && strings.HasPrefix(name, ".") {
			return nil
		}
		if ignored(ignores, rel, false) {
			return nil
		}

		kind := DetectKind(filepath.Ext(name))
		if kind == KindUnknown || (len(s.opts.Kinds) > 0 && !slices.Contains(s.opts.Kinds, kind)) {
			return nil
		}

		fi, err := s.stat(absRoot, path, d)
		if err != nil || fi == nil {
			return nil
		}
		files = append(files, FileInfo{Path: rel, FullPath: path, Kind: kind, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// stat returns the file info for a regular file, resolving symlinks when allowed.
// It returns nil for entries that should be skipped.
func (s *Scanner) stat(absRoot, path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Info()
	}
	if !s.opts.FollowSymlinks {
		return nil, nil
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.opts.Logger.Debug("skipping broken symlink", "path", path)
		return nil, nil
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}
	if target != absRoot && !strings.HasPrefix(target, absRoot+string(filepath.Separator)) {
		s.opts.Logger.Debug("skipping symlink outside root", "path", path, "target", target)
		return nil, nil
	}
	fi, err := os.Stat(target)
	if err != nil || fi.IsDir() {
		return nil, nil
	}
	return fi, nil
}

func (s *Scanner) excluded(name string) bool {
	for _, ex := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, ex) {
			return true
		}
	}
	return false
}

func (s *Scanner) loadIgnores(ignores []scopedIgnore, dir, rel string) []scopedIgnore {
	set, err := LoadIgnoreFile(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		s.opts.Logger.Warn("reading ignore file", "dir", rel, "error", err)
		return ignores
	}
	if len(set) == 0 {
		return ignores
	}
	return append(ignores, scopedIgnore{dir: rel, set: set})
}

// ignored applies every ignore file from an ancestor directory, outermost first.
// Patterns match relative to the directory holding their file.
func ignored(ignores []scopedIgnore, rel string, isDir bool) bool {
	for _, sc := range ignores {
		sub := rel
		if sc.dir != "." {
			if !strings.HasPrefix(rel, sc.dir+"/") {
				continue
			}
			sub = strings.TrimPrefix(rel, sc.dir+"/")
		}
		if sc.set.Ignored(sub, isDir) {
			return true
		}
	}
	return false
}

// Scan scans root with DefaultOptions.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
