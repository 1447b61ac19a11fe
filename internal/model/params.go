// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"encoding/json"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// Params is an insertion-ordered mapping from parameter name to Value. A nil
// *Params is a valid, empty mapping and renders as null.
type Params struct {
	om *orderedmap.OrderedMap[string, Value]
}

func (*Params) isValue() {}

// NewParams creates an empty parameter mapping.
func NewParams() *Params {
	return &Params{om: orderedmap.New[string, Value]()}
}

// ParamsOf builds a mapping from alternating key/value arguments. It is meant
// for tests and literals; it panics on an odd argument count.
func ParamsOf(kv ...any) *Params {
	if len(kv)%2 != 0 {
		panic("model.ParamsOf: odd number of arguments")
	}
	p := NewParams()
	for i := 0; i < len(kv); i += 2 {
		p.Set(kv[i].(string), kv[i+1].(Value))
	}
	return p
}

// Set stores v under key. An existing key keeps its original position.
func (p *Params) Set(key string, v Value) {
	p.om.Set(key, v)
}

// Get returns the value stored under key.
func (p *Params) Get(key string) (Value, bool) {
	if p == nil {
		return nil, false
	}
	return p.om.Get(key)
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Delete removes key, reporting whether it was present.
func (p *Params) Delete(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p.om.Delete(key)
	return ok
}

// Len returns the number of entries.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return p.om.Len()
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, p.Len())
	p.Each(func(k string, _ Value) {
		keys = append(keys, k)
	})
	return keys
}

// Each calls fn for every entry in insertion order.
func (p *Params) Each(fn func(key string, v Value)) {
	if p == nil {
		return
	}
	for pair := p.om.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Merge copies every entry of other into p, overwriting existing keys.
func (p *Params) Merge(other *Params) {
	other.Each(func(k string, v Value) {
		p.Set(k, Clone(v))
	})
}

// Clone returns a deep copy. Cloning nil yields nil.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	out := NewParams()
	out.Merge(p)
	return out
}

// Plain returns the mapping as map[string]any, or nil for a nil mapping.
func (p *Params) Plain() any {
	if p == nil {
		return nil
	}
	return p.PlainMap()
}

// PlainMap returns the mapping as a (possibly empty) map[string]any.
func (p *Params) PlainMap() map[string]any {
	out := make(map[string]any, p.Len())
	p.Each(func(k string, v Value) {
		out[k] = v.Plain()
	})
	return out
}

func (p *Params) String() string {
	if p == nil {
		return "None"
	}
	parts := make([]string, 0, p.Len())
	p.Each(func(k string, v Value) {
		parts = append(parts, k+"="+v.String())
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON keeps the source order of the keys.
func (p *Params) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	return json.Marshal(p.om)
}

// MarshalYAML renders an ordered YAML mapping.
func (p *Params) MarshalYAML() (any, error) {
	if p == nil {
		return nil, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	var err error
	p.Each(func(k string, v Value) {
		if err != nil {
			return
		}
		valNode := &yaml.Node{}
		if encErr := valNode.Encode(yamlValue(v)); encErr != nil {
			err = encErr
			return
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			valNode,
		)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// yamlValue returns what the YAML encoder should see for v. Tuples are
// rendered as flow sequences so kernel sizes stay on one line.
func yamlValue(v Value) any {
	switch t := v.(type) {
	case Tuple:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, d := range t {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: Int(d).String()})
		}
		return seq
	default:
		return v
	}
}
