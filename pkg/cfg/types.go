// Package cfg builds control flow graphs of Go functions from source, in the form
// the structure detector consumes.
package cfg

import (
	"errors"

	"github.com/l3aro/go-code-structure/pkg/graph"
)

// ErrFunctionNotFound is returned when the requested function is not declared in the source.
var ErrFunctionNotFound = errors.New("cfg: function not found")

const (
	EntryID = "entry" // Function entry block
	ExitID  = "exit"  // Single exit block every return flows to
)

// Function is the control flow graph of one function.
// Block ids are "entry", "exit" and "b1", "b2", ... in creation order; a block's
// label holds its statements, one per line.
type Function struct {
	Name       string       `json:"name"`
	Graph      *graph.Graph `json:"-"`
	Entry      string       `json:"entry"`
	Exit       string       `json:"exit"`
	Complexity int          `json:"cyclomatic_complexity"` // Cyclomatic complexity of the function
}
