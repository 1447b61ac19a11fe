// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Unknown marks an unconstrained dimension, written as None in source.
const Unknown = -1

// Shape is a tensor shape. Unknown entries are unconstrained (usually batch).
type Shape []int

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// Plain returns the dimensions with nil for Unknown entries.
func (s Shape) Plain() []any {
	out := make([]any, len(s))
	for i, d := range s {
		if d == Unknown {
			out[i] = nil
		} else {
			out[i] = d
		}
	}
	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d == Unknown {
			parts[i] = "None"
		} else {
			parts[i] = strconv.Itoa(d)
		}
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// MarshalJSON renders Unknown as null.
func (s Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Plain())
}

// MarshalYAML renders Unknown as null.
func (s Shape) MarshalYAML() (any, error) {
	return s.Plain(), nil
}

// Backend is the target framework identifier.
type Backend string

const (
	TensorFlow Backend = "tensorflow"
	PyTorch    Backend = "pytorch"
	ONNX       Backend = "onnx"
)

// DefaultBackend is used when a network does not declare a framework.
const DefaultBackend = TensorFlow

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(s)); b {
	case TensorFlow, PyTorch, ONNX:
		return b, nil
	}
	return "", fmt.Errorf("unsupported backend %q, expected one of tensorflow, pytorch, onnx", s)
}

// ChannelsFirst reports whether the backend lays tensors out as (N, C, ...).
func (b Backend) ChannelsFirst() bool {
	return b == PyTorch || b == ONNX
}
