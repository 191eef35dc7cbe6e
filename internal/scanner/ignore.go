package scanner

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnorePattern is one gitignore-style line.
//
//	build/       matches a directory named build at any depth
//	/docs        anchored to the scan root
//	**/*.tmp.yml matches at any depth
//	!keep.yml    re-includes a previously ignored path
type IgnorePattern struct {
	raw      string
	negate   bool
	dirOnly  bool
	anchored bool
	segments []string
}

// ParseIgnorePattern parses a single pattern line.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		// A slash in the middle anchors the pattern, as in git.
		p.anchored = true
	}
	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string { return p.raw }

// IsNegation reports whether the pattern starts with "!".
func (p IgnorePattern) IsNegation() bool { return p.negate }

// Match reports whether relPath (slash separated, relative to the scan root) matches.
// A directory pattern also matches every path below the directory.
func (p IgnorePattern) Match(relPath string, isDir bool) bool {
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	starts := len(parts)
	if p.anchored {
		starts = 1
	}
	for i := 0; i < starts; i++ {
		for end := i + 1; end <= len(parts); end++ {
			if !matchSegments(p.segments, parts[i:end]) {
				continue
			}
			// A match on a proper prefix names a directory holding relPath.
			if end < len(parts) || !p.dirOnly || isDir {
				return true
			}
		}
	}
	return false
}

func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(strings.ToLower(pattern[0]), strings.ToLower(parts[0]))
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}

// IgnoreSet applies patterns in order; the last matching pattern wins.
type IgnoreSet []IgnorePattern

// Ignored reports whether relPath is excluded by the set.
func (s IgnoreSet) Ignored(relPath string, isDir bool) bool {
	ignored := false
	for _, p := range s {
		if p.Match(relPath, isDir) {
			ignored = !p.negate
		}
	}
	return ignored
}

// LoadIgnoreFile reads patterns from path. A missing file yields an empty set.
// Blank lines and lines starting with # are skipped.
func LoadIgnoreFile(path string) (IgnoreSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var set IgnoreSet
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set = append(set, ParseIgnorePattern(line))
	}
	return set, sc.Err()
}
