// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a parameter value. The concrete type is one of Int, Float, String,
// Bool, Tuple, *HPO or *Params.
type Value interface {
	// Plain returns the value as a plain Go value (int, float64, string, bool,
	// []int, map[string]any).
	Plain() any
	// String renders the value the way it would be written in DSL source.
	String() string
	isValue()
}

// Int is an integer literal.
type Int int64

// Float is a floating point literal.
type Float float64

// String is a string literal or a bare identifier used as a value.
type String string

// Bool is a boolean literal.
type Bool bool

// Tuple is a parenthesised list of integers, e.g. a kernel size.
type Tuple []int

func (Int) isValue()    {}
func (Float) isValue()  {}
func (String) isValue() {}
func (Bool) isValue()   {}
func (Tuple) isValue()  {}

func (v Int) Plain() any    { return int(v) }
func (v Float) Plain() any  { return float64(v) }
func (v String) Plain() any { return string(v) }
func (v Bool) Plain() any   { return bool(v) }

func (v Tuple) Plain() any {
	out := make([]int, len(v))
	copy(out, v)
	return out
}

func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }

func (v Float) String() string {
	f := float64(v)
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (v String) String() string { return strconv.Quote(string(v)) }

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

func (v Tuple) String() string {
	parts := make([]string, len(v))
	for i, d := range v {
		parts[i] = strconv.Itoa(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// AsNumber reports the numeric value of v when it is an Int or a Float.
func AsNumber(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsInt reports the integer value of v when it is an Int.
func AsInt(v Value) (int, bool) {
	if n, ok := v.(Int); ok {
		return int(n), true
	}
	return 0, false
}

// Dims returns the dimensions of an integer or tuple value. A scalar is
// expanded to rank copies of itself.
func Dims(v Value, rank int) ([]int, error) {
	switch d := v.(type) {
	case Int:
		out := make([]int, rank)
		for i := range out {
			out[i] = int(d)
		}
		return out, nil
	case Tuple:
		if len(d) != rank {
			return nil, fmt.Errorf("expected %d dimensions, got %d", rank, len(d))
		}
		return append([]int(nil), d...), nil
	default:
		return nil, fmt.Errorf("expected an integer or a tuple of integers, got %s", v)
	}
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch c := v.(type) {
	case Tuple:
		return append(Tuple(nil), c...)
	case *HPO:
		return c.Clone()
	case *Params:
		return c.Clone()
	default:
		return v
	}
}

// TypeName is the human-readable name of the value's variant, used in messages.
func TypeName(v Value) string {
	switch v.(type) {
	case Int:
		return "integer"
	case Float:
		return "float"
	case String:
		return "string"
	case Bool:
		return "boolean"
	case Tuple:
		return "tuple"
	case *HPO:
		return "hyperparameter search space"
	case *Params:
		return "mapping"
	default:
		return "unknown"
	}
}
