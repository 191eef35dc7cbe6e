package scanner

import "strings"

// Kind classifies a file the batch runner knows how to analyze.
type Kind string

const (
	KindUnknown Kind = ""
	KindGraph   Kind = "graph" // YAML or JSON graph description
	KindGo      Kind = "go"    // Go source, analyzed per function
)

var kindByExt = map[string]Kind{
	".yaml": KindGraph,
	".yml":  KindGraph,
	".json": KindGraph,
	".go":   KindGo,
}

// DetectKind returns the kind for a file extension, or KindUnknown.
func DetectKind(ext string) Kind {
	return kindByExt[strings.ToLower(ext)]
}
