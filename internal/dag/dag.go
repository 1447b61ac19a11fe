package dag

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is a directed graph keyed by string IDs. All operations on the graph
// are concurrency-safe.
type Graph struct {
	// mutex protects the fields below.
	mutex sync.RWMutex
	g     *simple.DirectedGraph
	nodes map[string]*node
	// order keeps node IDs in insertion order.
	order []string
}

// node is a graph vertex. It satisfies graph.Node, dot.Node and
// encoding.Attributer.
type node struct {
	gid   int64
	id    string
	attrs []encoding.Attribute
}

func (n *node) ID() int64                        { return n.gid }
func (n *node) DOTID() string                    { return n.id }
func (n *node) Attributes() []encoding.Attribute { return n.attrs }

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		g:     simple.NewDirectedGraph(),
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	n := &node{gid: g.g.NewNode().ID(), id: id}
	g.g.AddNode(n)
	g.nodes[id] = n
	g.order = append(g.order, id)
}

// SetAttr sets a DOT attribute (e.g. label, shape) on a node, replacing any
// previous value for key.
func (g *Graph) SetAttr(id, key, value string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node not found: %s", id)
	}
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs[i].Value = value
			return nil
		}
	}
	n.attrs = append(n.attrs, encoding.Attribute{Key: key, Value: value})
	return nil
}

// Attr returns a node attribute.
func (g *Graph) Attr(id, key string) (string, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return "", false
	}
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` consumes the output of `fromID`. An error is
// returned if either node does not exist or if the edge would create a
// self-reference.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	g.g.SetEdge(g.g.NewEdge(fromNode, toNode))
	return nil
}

// Nodes returns the node IDs in insertion order.
func (g *Graph) Nodes() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]string(nil), g.order...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Edges returns every edge as a [from, to] pair, ordered by the insertion
// order of their endpoints.
func (g *Graph) Edges() [][2]string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out [][2]string
	for _, id := range g.order {
		for _, to := range g.idsOf(g.g.From(g.nodes[id].gid)) {
			out = append(out, [2]string{id, to})
		}
	}
	return out
}

// Dependencies returns the IDs of the nodes that the given node depends on,
// sorted.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.idsOf(g.g.To(n.gid)), nil
}

// Dependents returns the IDs of the nodes that depend on the given node,
// sorted.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return g.idsOf(g.g.From(n.gid)), nil
}

func (g *Graph) idsOf(it graph.Nodes) []string {
	ids := make([]string, 0, it.Len())
	for it.Next() {
		ids = append(ids, it.Node().(*node).id)
	}
	sort.Strings(ids)
	return ids
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// naming a node of the first cycle found.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	_, err := topo.Sort(g.g)
	if err == nil {
		return nil
	}
	var unorderable topo.Unorderable
	if errors.As(err, &unorderable) && len(unorderable) > 0 && len(unorderable[0]) > 0 {
		ids := make([]string, 0, len(unorderable[0]))
		for _, n := range unorderable[0] {
			ids = append(ids, n.(*node).id)
		}
		sort.Strings(ids)
		return fmt.Errorf("cycle detected involving node '%s'", ids[0])
	}
	return fmt.Errorf("cycle detected: %w", err)
}

// dotGraph adds graph-wide DOT attributes to the underlying gonum graph.
type dotGraph struct {
	*simple.DirectedGraph
	name string
}

func (d dotGraph) DOTID() string { return d.name }

func (d dotGraph) DOTAttributers() (graphAttrs, nodeAttrs, edgeAttrs encoding.Attributer) {
	return attrs{{Key: "rankdir", Value: "TB"}},
		attrs{{Key: "shape", Value: "box"}, {Key: "style", Value: "rounded"}},
		attrs{}
}

type attrs []encoding.Attribute

func (a attrs) Attributes() []encoding.Attribute { return a }

// MarshalDOT renders the graph in Graphviz DOT format.
func (g *Graph) MarshalDOT(name string) ([]byte, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out, err := dot.Marshal(dotGraph{DirectedGraph: g.g, name: name}, name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding graph as DOT: %w", err)
	}
	return out, nil
}
