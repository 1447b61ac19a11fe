// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the hyperparameter search space descriptor. A descriptor
// takes the place of a literal anywhere a parameter value is accepted, and it
// is carried through the model untouched so that an external optimizer can
// sample it later.
package model

import (
	"encoding/json"
	"strings"
)

// HPOType names the kind of search space.
type HPOType string

const (
	HPOCategorical HPOType = "categorical"
	HPORange       HPOType = "range"
	HPOLogRange    HPOType = "log_range"
)

// HPO is a hyperparameter search space. Only the fields of the active Type
// are meaningful:
//   - categorical: Values
//   - range: Start, End and the optional Step
//   - log_range: Low, High
type HPO struct {
	Type   HPOType
	Values []Value

	Start Value
	End   Value
	Step  Value

	Low  Value
	High Value
}

func (*HPO) isValue() {}

// Clone returns a deep copy of the descriptor.
func (h *HPO) Clone() *HPO {
	if h == nil {
		return nil
	}
	out := &HPO{Type: h.Type}
	if h.Values != nil {
		out.Values = make([]Value, len(h.Values))
		for i, v := range h.Values {
			out.Values[i] = Clone(v)
		}
	}
	out.Start = cloneOrNil(h.Start)
	out.End = cloneOrNil(h.End)
	out.Step = cloneOrNil(h.Step)
	out.Low = cloneOrNil(h.Low)
	out.High = cloneOrNil(h.High)
	return out
}

func cloneOrNil(v Value) Value {
	if v == nil {
		return nil
	}
	return Clone(v)
}

// Representative returns the value used where a concrete number is required
// but only a search space is known: the first choice, the range start or the
// log-range low bound.
func (h *HPO) Representative() Value {
	switch h.Type {
	case HPOCategorical:
		if len(h.Values) > 0 {
			return h.Values[0]
		}
	case HPORange:
		return h.Start
	case HPOLogRange:
		return h.Low
	}
	return nil
}

// Plain returns {"hpo": {...}} with the fields of the active type.
func (h *HPO) Plain() any {
	inner := map[string]any{"type": string(h.Type)}
	switch h.Type {
	case HPOCategorical:
		values := make([]any, len(h.Values))
		for i, v := range h.Values {
			values[i] = v.Plain()
		}
		inner["values"] = values
	case HPORange:
		inner["start"] = plainOrNil(h.Start)
		inner["end"] = plainOrNil(h.End)
		if h.Step != nil {
			inner["step"] = h.Step.Plain()
		}
	case HPOLogRange:
		inner["low"] = plainOrNil(h.Low)
		inner["high"] = plainOrNil(h.High)
	}
	return map[string]any{"hpo": inner}
}

func plainOrNil(v Value) any {
	if v == nil {
		return nil
	}
	return v.Plain()
}

func (h *HPO) String() string {
	var b strings.Builder
	b.WriteString("HPO(")
	switch h.Type {
	case HPOCategorical:
		b.WriteString("choice(")
		for i, v := range h.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(v.String())
		}
		b.WriteString(")")
	case HPORange:
		b.WriteString("range(" + h.Start.String() + ", " + h.End.String())
		if h.Step != nil {
			b.WriteString(", step=" + h.Step.String())
		}
		b.WriteString(")")
	case HPOLogRange:
		b.WriteString("log_range(" + h.Low.String() + ", " + h.High.String() + ")")
	}
	b.WriteString(")")
	return b.String()
}

// MarshalJSON renders the plain form.
func (h *HPO) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Plain())
}

// MarshalYAML renders the plain form.
func (h *HPO) MarshalYAML() (any, error) {
	return h.Plain(), nil
}
