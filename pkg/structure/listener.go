package structure

import (
	"github.com/l3aro/go-code-structure/internal/log"
	"github.com/l3aro/go-code-structure/pkg/graph"
	"github.com/l3aro/go-code-structure/pkg/join"
)

// Listener observes a detection run. Callbacks run synchronously on the
// detector's goroutine, in registration order.
//
// JoinDetected is the only callback that can change the run: it receives the
// successor the join belongs in front of and returns the node the detector should
// treat as the join. Listeners that do not splice return after unchanged. The
// value returned by one listener is passed as after to the next.
type Listener interface {
	NodeSelected(id string)
	NoNodeSelected()
	DecisionListsUpdated(lists ListView)
	EdgeMarked(e graph.Edge, kind EdgeKind)
	JoinDetected(decisionNode string, ends []string, after string) (string, error)
	JoinAdded(id string)
	CompositeFormed(id string)
	Step()
}

// NopListener implements Listener with no-ops. Embed it to override a subset.
type NopListener struct{}

func (NopListener) NodeSelected(string) {}
func (NopListener) NoNodeSelected() {}
func (NopListener) DecisionListsUpdated(ListView) {}
func (NopListener) EdgeMarked(graph.Edge, EdgeKind) {}
func (NopListener) JoinAdded(string) {}
func (NopListener) CompositeFormed(string) {}
func (NopListener) Step() {}
func (NopListener) JoinDetected(_ string, _ []string, after string) (string, error) {
	return after, nil
}

// EventType names a listener callback.
type EventType string

const (
	EventNodeSelected   EventType = "node_selected"
	EventNoNodeSelected EventType = "no_node_selected"
	EventListsUpdated   EventType = "lists_updated"
	EventEdgeMarked     EventType = "edge_marked"
	EventJoinDetected   EventType = "join_detected"
	EventJoinAdded      EventType = "join_added"
	EventComposite      EventType = "composite_formed"
	EventStep           EventType = "step"
)

// Event is one recorded callback.
type Event struct {
	Type EventType  `json:"type"`
	Node string     `json:"node,omitempty"`
	Edge graph.Edge `json:"edge,omitempty"`
	Kind EdgeKind   `json:"kind,omitempty"`
	Ends []string   `json:"ends,omitempty"`
}

// Recorder is a Listener that keeps every callback in order.
// Steps are only recorded when Steps is set.
type Recorder struct {
	NopListener
	Steps  bool
	Events []Event
}

func (r *Recorder) NodeSelected(id string) {
	r.Events = append(r.Events, Event{Type: EventNodeSelected, Node: id})
}

func (r *Recorder) NoNodeSelected() {
	r.Events = append(r.Events, Event{Type: EventNoNodeSelected})
}

func (r *Recorder) EdgeMarked(e graph.Edge, kind EdgeKind) {
	r.Events = append(r.Events, Event{Type: EventEdgeMarked, Edge: e, Kind: kind})
}

func (r *Recorder) JoinDetected(decisionNode string, ends []string, after string) (string, error) {
	r.Events = append(r.Events, Event{Type: EventJoinDetected, Node: decisionNode, Ends: ends})
	return after, nil
}

func (r *Recorder) JoinAdded(id string) {
	r.Events = append(r.Events, Event{Type: EventJoinAdded, Node: id})
}

func (r *Recorder) CompositeFormed(id string) {
	r.Events = append(r.Events, Event{Type: EventComposite, Node: id})
}

func (r *Recorder) Step() {
	if r.Steps {
		r.Events = append(r.Events, Event{Type: EventStep})
	}
}

// Of returns the recorded events of the given type.
func (r *Recorder) Of(t EventType) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// LogListener writes run progress to a logger at debug level.
type LogListener struct {
	NopListener
	Logger log.Logger
}

func (l LogListener) NodeSelected(id string) {
	l.Logger.Debug("node selected", "node", id)
}

func (l LogListener) EdgeMarked(e graph.Edge, kind EdgeKind) {
	l.Logger.Debug("edge marked", "edge", e.String(), "kind", string(kind))
}

func (l LogListener) JoinAdded(id string) {
	l.Logger.Debug("join added", "node", id)
}

func (l LogListener) CompositeFormed(id string) {
	l.Logger.Debug("composite formed", "node", id)
}

// injectorListener splices joins into the graph through a join.Injector.
type injectorListener struct {
	NopListener
	inj *join.Injector
}

func (l injectorListener) JoinDetected(decisionNode string, ends []string, after string) (string, error) {
	return l.inj.Inject(decisionNode, ends, after)
}

// InjectorListener returns a Listener that answers JoinDetected by splicing a
// join node into g.
func InjectorListener(inj *join.Injector) Listener {
	return injectorListener{inj: inj}
}
