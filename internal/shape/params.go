package shape

import (
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/model"
)

// param returns a layer parameter. A search space is replaced by its
// representative value with a warning.
func (p *Propagator) param(l *model.LayerNode, name string) (model.Value, bool) {
	v, ok := l.Param(name)
	if !ok {
		return nil, false
	}
	if h, isHPO := v.(*model.HPO); isHPO {
		rep := h.Representative()
		if rep == nil {
			return nil, false
		}
		p.diags.Warn(l.Range, "Search space in shape parameter",
			"%s %s is a search space; shapes use the representative value %s", l.Type, name, rep)
		return rep, true
	}
	return v, true
}

func toInt(v model.Value) (int, bool) {
	switch n := v.(type) {
	case model.Int:
		return int(n), true
	case model.Float:
		if float64(n) == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// intParam reads an integer parameter. A missing parameter yields def, or an
// error when required.
func (p *Propagator) intParam(l *model.LayerNode, name string, def int, required bool) (int, error) {
	v, ok := p.param(l, name)
	if !ok {
		if required {
			return 0, missing(l, name)
		}
		return def, nil
	}
	n, ok := toInt(v)
	if !ok {
		return 0, diag.NewShapeError(l.Range, "Invalid shape parameter",
			l.Type+" "+name+" must be an integer, got "+v.String())
	}
	return n, nil
}

// dimsParam reads an integer-or-tuple parameter of the given rank.
func (p *Propagator) dimsParam(l *model.LayerNode, name string, rank int, def []int, required bool) ([]int, error) {
	v, ok := p.param(l, name)
	if !ok {
		if required {
			return nil, missing(l, name)
		}
		return def, nil
	}
	if f, isFloat := v.(model.Float); isFloat {
		if n, whole := toInt(f); whole {
			v = model.Int(n)
		}
	}
	ds, err := model.Dims(v, rank)
	if err != nil {
		return nil, diag.NewShapeError(l.Range, "Invalid shape parameter", l.Type+" "+name+": "+err.Error())
	}
	return ds, nil
}

type padding struct {
	same bool
	pads []int
}

func (p *Propagator) paddingParam(l *model.LayerNode, rank int) (padding, error) {
	v, ok := p.param(l, "padding")
	if !ok {
		return padding{pads: make([]int, rank)}, nil
	}
	if s, isStr := v.(model.String); isStr {
		switch s {
		case "same":
			return padding{same: true}, nil
		case "valid":
			return padding{pads: make([]int, rank)}, nil
		}
		return padding{}, diag.NewShapeError(l.Range, "Invalid shape parameter",
			l.Type+` padding must be "same", "valid" or an integer, got `+s.String())
	}
	pads, err := p.dimsParam(l, "padding", rank, nil, true)
	return padding{pads: pads}, err
}

func (p *Propagator) boolParam(l *model.LayerNode, name string) bool {
	v, ok := p.param(l, name)
	if !ok {
		return false
	}
	b, isBool := v.(model.Bool)
	return isBool && bool(b)
}

func missing(l *model.LayerNode, name string) error {
	return diag.NewShapeError(l.Range, "Missing shape parameter",
		l.Type+" requires '"+name+"' to infer its output shape")
}
