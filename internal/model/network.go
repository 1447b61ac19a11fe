// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the compiled network description: the record handed to code
// generators and visualizers. Its plain and serialized forms use a fixed set of
// keys; output_layer, output_shape and training_config may be null.
package model

import (
	"encoding/json"
)

// RateWarnLimit is the upper bound of the tolerated rate band. A rate in
// (1, RateWarnLimit] is accepted with a warning, anything above is an error.
const RateWarnLimit = 1.2

// MaxRepeat is the largest accepted `* N` layer repetition.
const MaxRepeat = 10000

// DefaultDevice is the execution device when none is declared.
const DefaultDevice = "auto"

// Input is the declared input of a network.
type Input struct {
	Shape Shape
}

// Optimizer is the parsed optimizer declaration, e.g. Adam(learning_rate=1e-4).
type Optimizer struct {
	Type   string
	Params *Params
}

// ExecutionConfig holds where the network should run.
type ExecutionConfig struct {
	Device string
}

// Severity of a non-fatal diagnostic attached to a model.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Warning is a non-fatal diagnostic recorded on the model. Column is nil when
// the position within the line is unknown.
type Warning struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Line     int      `json:"line" yaml:"line"`
	Column   *int     `json:"column" yaml:"column"`
}

// Plain returns the warning as a plain map.
func (w Warning) Plain() map[string]any {
	var col any
	if w.Column != nil {
		col = *w.Column
	}
	return map[string]any{
		"severity": string(w.Severity),
		"message":  w.Message,
		"line":     w.Line,
		"column":   col,
	}
}

// TraceEntry is one step of shape propagation. The activation fields are only
// present in debug mode and stay nil until a runtime can measure them.
type TraceEntry struct {
	Layer          string
	OutputShape    Shape
	Debug          bool
	MeanActivation *float64
	ActiveRatio    *float64
	Anomaly        *bool
}

// Plain returns {"layer", "output_shape"} plus the debug keys in debug mode.
func (e TraceEntry) Plain() map[string]any {
	out := map[string]any{
		"layer":        e.Layer,
		"output_shape": e.OutputShape.Plain(),
	}
	if e.Debug {
		out["mean_activation"] = ptrPlain(e.MeanActivation)
		out["active_ratio"] = ptrPlain(e.ActiveRatio)
		out["anomaly"] = ptrPlain(e.Anomaly)
	}
	return out
}

func ptrPlain[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

type traceDoc struct {
	Layer          string   `json:"layer" yaml:"layer"`
	OutputShape    Shape    `json:"output_shape" yaml:"output_shape"`
	MeanActivation *float64 `json:"mean_activation" yaml:"mean_activation"`
	ActiveRatio    *float64 `json:"active_ratio" yaml:"active_ratio"`
	Anomaly        *bool    `json:"anomaly" yaml:"anomaly"`
}

type traceDocPlain struct {
	Layer       string `json:"layer" yaml:"layer"`
	OutputShape Shape  `json:"output_shape" yaml:"output_shape"`
}

func (e TraceEntry) doc() any {
	if !e.Debug {
		return traceDocPlain{Layer: e.Layer, OutputShape: e.OutputShape}
	}
	return traceDoc{
		Layer:          e.Layer,
		OutputShape:    e.OutputShape,
		MeanActivation: e.MeanActivation,
		ActiveRatio:    e.ActiveRatio,
		Anomaly:        e.Anomaly,
	}
}

// MarshalJSON renders the entry in key order.
func (e TraceEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.doc())
}

// MarshalYAML renders the entry in key order.
func (e TraceEntry) MarshalYAML() (any, error) {
	return e.doc(), nil
}

// Network is the validated description of a `network` block.
type Network struct {
	// Name is empty for anonymous networks.
	Name   string
	Input  Input
	Layers []*LayerNode
	// OutputLayer is the last layer when it produces the network output.
	OutputLayer *LayerNode
	// OutputShape is the output width, or nil when unknown.
	OutputShape     Value
	Loss            string
	Optimizer       Optimizer
	TrainingConfig  *Params
	ExecutionConfig ExecutionConfig
	Framework       Backend
	ShapeInfo       []TraceEntry
	Warnings        []Warning
}

// Plain returns the network as nested maps and slices.
func (n *Network) Plain() map[string]any {
	var outputLayer any
	if n.OutputLayer != nil {
		outputLayer = n.OutputLayer.Plain()
	}
	shapeInfo := make([]any, len(n.ShapeInfo))
	for i, e := range n.ShapeInfo {
		shapeInfo[i] = e.Plain()
	}
	warnings := make([]any, len(n.Warnings))
	for i, w := range n.Warnings {
		warnings[i] = w.Plain()
	}
	return map[string]any{
		"type":             "model",
		"name":             nameOrNil(n.Name),
		"input":            map[string]any{"type": "Input", "shape": n.Input.Shape.Plain()},
		"layers":           PlainLayers(n.Layers),
		"output_layer":     outputLayer,
		"output_shape":     plainOrNil(n.OutputShape),
		"loss":             n.Loss,
		"optimizer":        map[string]any{"type": n.Optimizer.Type, "params": n.Optimizer.Params.PlainMap()},
		"training_config":  n.TrainingConfig.Plain(),
		"execution_config": map[string]any{"device": n.ExecutionConfig.Device},
		"framework":        string(n.Framework),
		"shape_info":       shapeInfo,
		"warnings":         warnings,
	}
}

func nameOrNil(name string) any {
	if name == "" {
		return nil
	}
	return name
}

type inputDoc struct {
	Type  string `json:"type" yaml:"type"`
	Shape Shape  `json:"shape" yaml:"shape"`
}

type optimizerDoc struct {
	Type   string  `json:"type" yaml:"type"`
	Params *Params `json:"params" yaml:"params"`
}

type executionDoc struct {
	Device string `json:"device" yaml:"device"`
}

type networkDoc struct {
	Type            string       `json:"type" yaml:"type"`
	Name            *string      `json:"name" yaml:"name"`
	Input           inputDoc     `json:"input" yaml:"input"`
	Layers          []*LayerNode `json:"layers" yaml:"layers"`
	OutputLayer     *LayerNode   `json:"output_layer" yaml:"output_layer"`
	OutputShape     Value        `json:"output_shape" yaml:"output_shape"`
	Loss            string       `json:"loss" yaml:"loss"`
	Optimizer       optimizerDoc `json:"optimizer" yaml:"optimizer"`
	TrainingConfig  *Params      `json:"training_config" yaml:"training_config"`
	ExecutionConfig executionDoc `json:"execution_config" yaml:"execution_config"`
	Framework       string       `json:"framework" yaml:"framework"`
	ShapeInfo       []TraceEntry `json:"shape_info" yaml:"shape_info"`
	Warnings        []Warning    `json:"warnings" yaml:"warnings"`
}

func (n *Network) doc() networkDoc {
	d := networkDoc{
		Type:            "model",
		Input:           inputDoc{Type: "Input", Shape: n.Input.Shape},
		Layers:          n.Layers,
		OutputLayer:     n.OutputLayer,
		OutputShape:     n.OutputShape,
		Loss:            n.Loss,
		Optimizer:       optimizerDoc{Type: n.Optimizer.Type, Params: n.Optimizer.Params},
		TrainingConfig:  n.TrainingConfig,
		ExecutionConfig: executionDoc{Device: n.ExecutionConfig.Device},
		Framework:       string(n.Framework),
		ShapeInfo:       n.ShapeInfo,
		Warnings:        n.Warnings,
	}
	if n.Name != "" {
		name := n.Name
		d.Name = &name
	}
	if d.Layers == nil {
		d.Layers = []*LayerNode{}
	}
	if d.Optimizer.Params == nil {
		d.Optimizer.Params = NewParams()
	}
	if d.ShapeInfo == nil {
		d.ShapeInfo = []TraceEntry{}
	}
	if d.Warnings == nil {
		d.Warnings = []Warning{}
	}
	return d
}

// MarshalJSON renders the network with keys in contract order.
func (n *Network) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.doc())
}

// MarshalYAML renders the network with keys in contract order.
func (n *Network) MarshalYAML() (any, error) {
	return n.doc(), nil
}

// Research is the validated description of a `research` block.
type Research struct {
	Name       string
	Metrics    *Params
	References []string
}

// Plain returns {"type": "Research", "name", "params": {"metrics", "references"}}.
func (r *Research) Plain() map[string]any {
	refs := make([]any, len(r.References))
	for i, ref := range r.References {
		refs[i] = ref
	}
	return map[string]any{
		"type": "Research",
		"name": nameOrNil(r.Name),
		"params": map[string]any{
			"metrics":    r.Metrics.PlainMap(),
			"references": refs,
		},
	}
}

type researchParamsDoc struct {
	Metrics    *Params  `json:"metrics" yaml:"metrics"`
	References []string `json:"references" yaml:"references"`
}

type researchDoc struct {
	Type   string            `json:"type" yaml:"type"`
	Name   *string           `json:"name" yaml:"name"`
	Params researchParamsDoc `json:"params" yaml:"params"`
}

func (r *Research) doc() researchDoc {
	d := researchDoc{Type: "Research", Params: researchParamsDoc{Metrics: r.Metrics, References: r.References}}
	if r.Name != "" {
		name := r.Name
		d.Name = &name
	}
	if d.Params.Metrics == nil {
		d.Params.Metrics = NewParams()
	}
	if d.Params.References == nil {
		d.Params.References = []string{}
	}
	return d
}

// MarshalJSON renders the research block with keys in contract order.
func (r *Research) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.doc())
}

// MarshalYAML renders the research block with keys in contract order.
func (r *Research) MarshalYAML() (any, error) {
	return r.doc(), nil
}
