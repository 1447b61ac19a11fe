package shape

import (
	"fmt"
	"strconv"

	"github.com/specialistvlad/neuraldsl/internal/dag"
	"github.com/specialistvlad/neuraldsl/internal/model"
)

// InputNode is the graph ID of the network input.
const InputNode = "input"

// Report is the structural summary of the layers propagated so far: a graph
// with one node per layer and the parameter count series.
type Report struct {
	Graph       *dag.Graph
	Layers      []LayerStats
	TotalParams int64
}

// ParamCounts returns the parameter count of every layer in order.
func (r *Report) ParamCounts() []int64 {
	out := make([]int64, len(r.Layers))
	for i, s := range r.Layers {
		out[i] = s.Params
	}
	return out
}

// NodeID is the graph ID of the i-th propagated layer.
func NodeID(i int) string {
	return "layer_" + strconv.Itoa(i)
}

// GenerateReport builds the report for the layers propagated so far.
func (p *Propagator) GenerateReport() (*Report, error) {
	g := dag.New()
	g.AddNode(InputNode)

	var in model.Shape
	if len(p.stats) > 0 {
		in = p.stats[0].InputShape
	}
	if err := g.SetAttr(InputNode, "label", "Input\n"+in.String()); err != nil {
		return nil, err
	}

	prev := InputNode
	for _, s := range p.stats {
		id := NodeID(s.Index)
		g.AddNode(id)
		if err := g.SetAttr(id, "label", fmt.Sprintf("%s\n%s", s.Layer, s.OutputShape)); err != nil {
			return nil, err
		}
		if err := g.SetAttr(id, "tooltip", fmt.Sprintf("%d parameters", s.Params)); err != nil {
			return nil, err
		}
		if err := g.AddEdge(prev, id); err != nil {
			return nil, fmt.Errorf("error linking %s: %w", id, err)
		}
		prev = id
	}
	if err := g.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating architecture graph: %w", err)
	}

	return &Report{Graph: g, Layers: p.Stats(), TotalParams: p.TotalParams()}, nil
}
