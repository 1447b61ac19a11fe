// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"encoding/json"

	"github.com/hashicorp/hcl/v2"
)

// LayerNode is one validated layer. It owns its sublayers.
type LayerNode struct {
	Kind Kind
	// Type is the layer's type name as it appears in the output, e.g. "Dense",
	// "TimeDistributed(Conv2D)", a custom layer name or a macro name.
	Type string
	// Inner is the wrapped kind for TimeDistributed, KindUnknown otherwise.
	Inner Kind
	// Params is nil for layers that take no arguments at all.
	Params    *Params
	Sublayers []*LayerNode
	// Device is the validated `@ "device"` annotation, if any. It is also
	// recorded as params.device.
	Device string
	Range  hcl.Range
}

// EffectiveKind is the kind whose rules apply to the layer's own parameters:
// the wrapped kind for TimeDistributed, the kind itself otherwise.
func (l *LayerNode) EffectiveKind() Kind {
	if l.Kind == KindTimeDistributed && l.Inner != KindUnknown {
		return l.Inner
	}
	return l.Kind
}

// Param returns the named parameter.
func (l *LayerNode) Param(name string) (Value, bool) {
	return l.Params.Get(name)
}

// Clone returns a deep copy of the layer and its sublayers.
func (l *LayerNode) Clone() *LayerNode {
	if l == nil {
		return nil
	}
	out := *l
	out.Params = l.Params.Clone()
	out.Sublayers = CloneLayers(l.Sublayers)
	return &out
}

// CloneLayers deep-copies a layer sequence. The result is never nil.
func CloneLayers(layers []*LayerNode) []*LayerNode {
	out := make([]*LayerNode, len(layers))
	for i, l := range layers {
		out[i] = l.Clone()
	}
	return out
}

// Plain returns {"type", "params", "sublayers"}.
func (l *LayerNode) Plain() map[string]any {
	return map[string]any{
		"type":      l.Type,
		"params":    l.Params.Plain(),
		"sublayers": PlainLayers(l.Sublayers),
	}
}

// PlainLayers converts a layer sequence to its plain form.
func PlainLayers(layers []*LayerNode) []any {
	out := make([]any, len(layers))
	for i, l := range layers {
		out[i] = l.Plain()
	}
	return out
}

type layerDoc struct {
	Type      string       `json:"type" yaml:"type"`
	Params    *Params      `json:"params" yaml:"params"`
	Sublayers []*LayerNode `json:"sublayers" yaml:"sublayers"`
}

func (l *LayerNode) doc() layerDoc {
	subs := l.Sublayers
	if subs == nil {
		subs = []*LayerNode{}
	}
	return layerDoc{Type: l.Type, Params: l.Params, Sublayers: subs}
}

// MarshalJSON renders the layer with keys in contract order.
func (l *LayerNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.doc())
}

// MarshalYAML renders the layer with keys in contract order.
func (l *LayerNode) MarshalYAML() (any, error) {
	return l.doc(), nil
}
