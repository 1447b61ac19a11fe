// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the closed set of layer kinds the compiler understands.
//
// Every validation and shape rule dispatches on Kind with a switch, so a new
// layer kind is added here once and the compiler then points at every switch
// that has to learn about it. Identifiers that are not built-in kinds are either
// custom layers (by naming convention) or references to macros.
package model

import (
	"regexp"
	"sort"
)

// Kind identifies a layer kind.
type Kind int

const (
	KindUnknown Kind = iota

	// Core
	KindDense
	KindOutput
	KindFlatten
	KindDropout
	KindActivation
	KindLambda
	KindReshape
	KindCustomShape

	// Convolution
	KindConv1D
	KindConv2D
	KindConv3D

	// Pooling
	KindMaxPooling1D
	KindMaxPooling2D
	KindMaxPooling3D
	KindAveragePooling1D
	KindAveragePooling2D
	KindAveragePooling3D
	KindGlobalMaxPooling1D
	KindGlobalMaxPooling2D
	KindGlobalAveragePooling1D
	KindGlobalAveragePooling2D

	// Normalization
	KindBatchNormalization
	KindLayerNormalization
	KindInstanceNormalization
	KindGroupNormalization

	// Recurrent
	KindLSTM
	KindGRU
	KindSimpleRNN
	KindLSTMCell
	KindGRUCell
	KindSimpleRNNDropoutWrapper

	// Attention and containers
	KindAttention
	KindTransformer
	KindTransformerEncoder
	KindTransformerDecoder
	KindResidualConnection
	KindInception
	KindSqueezeExcitation
	KindGraphAttention

	// Embedding, merge and noise
	KindEmbedding
	KindAdd
	KindConcatenate
	KindGaussianNoise

	// Wrappers
	KindTimeDistributed

	// KindCustom is a user layer following the <Name>Layer convention.
	KindCustom
	// KindMacro is a reference to a `define` block.
	KindMacro
)

type kindInfo struct {
	name string
	// spatial is the number of spatial dimensions of convolution and pooling kinds.
	spatial int
	// nullWhenEmpty marks kinds whose empty argument list yields null params.
	nullWhenEmpty bool
}

var kindTable = map[Kind]kindInfo{
	KindDense:       {name: "Dense"},
	KindOutput:      {name: "Output"},
	KindFlatten:     {name: "Flatten", nullWhenEmpty: true},
	KindDropout:     {name: "Dropout"},
	KindActivation:  {name: "Activation"},
	KindLambda:      {name: "Lambda"},
	KindReshape:     {name: "Reshape"},
	KindCustomShape: {name: "CustomShape"},

	KindConv1D: {name: "Conv1D", spatial: 1},
	KindConv2D: {name: "Conv2D", spatial: 2},
	KindConv3D: {name: "Conv3D", spatial: 3},

	KindMaxPooling1D:           {name: "MaxPooling1D", spatial: 1},
	KindMaxPooling2D:           {name: "MaxPooling2D", spatial: 2},
	KindMaxPooling3D:           {name: "MaxPooling3D", spatial: 3},
	KindAveragePooling1D:       {name: "AveragePooling1D", spatial: 1},
	KindAveragePooling2D:       {name: "AveragePooling2D", spatial: 2},
	KindAveragePooling3D:       {name: "AveragePooling3D", spatial: 3},
	KindGlobalMaxPooling1D:     {name: "GlobalMaxPooling1D", spatial: 1},
	KindGlobalMaxPooling2D:     {name: "GlobalMaxPooling2D", spatial: 2},
	KindGlobalAveragePooling1D: {name: "GlobalAveragePooling1D", spatial: 1},
	KindGlobalAveragePooling2D: {name: "GlobalAveragePooling2D", spatial: 2},

	KindBatchNormalization:    {name: "BatchNormalization", nullWhenEmpty: true},
	KindLayerNormalization:    {name: "LayerNormalization", nullWhenEmpty: true},
	KindInstanceNormalization: {name: "InstanceNormalization", nullWhenEmpty: true},
	KindGroupNormalization:    {name: "GroupNormalization"},

	KindLSTM:                    {name: "LSTM"},
	KindGRU:                     {name: "GRU"},
	KindSimpleRNN:               {name: "SimpleRNN"},
	KindLSTMCell:                {name: "LSTMCell"},
	KindGRUCell:                 {name: "GRUCell"},
	KindSimpleRNNDropoutWrapper: {name: "SimpleRNNDropoutWrapper"},

	KindAttention:          {name: "Attention", nullWhenEmpty: true},
	KindTransformer:        {name: "Transformer"},
	KindTransformerEncoder: {name: "TransformerEncoder"},
	KindTransformerDecoder: {name: "TransformerDecoder"},
	KindResidualConnection: {name: "ResidualConnection"},
	KindInception:          {name: "Inception"},
	KindSqueezeExcitation:  {name: "SqueezeExcitation"},
	KindGraphAttention:     {name: "GraphAttention"},

	KindEmbedding:     {name: "Embedding"},
	KindAdd:           {name: "Add"},
	KindConcatenate:   {name: "Concatenate"},
	KindGaussianNoise: {name: "GaussianNoise"},

	KindTimeDistributed: {name: "TimeDistributed"},
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTable))
	for k, info := range kindTable {
		m[info.name] = k
	}
	return m
}()

var customLayerPattern = regexp.MustCompile(`^[A-Z][a-zA-Z0-9]*Layer$`)

// LookupKind returns the built-in kind with the given name.
func LookupKind(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// IsCustomLayerName reports whether name follows the custom layer convention.
func IsCustomLayerName(name string) bool {
	return customLayerPattern.MatchString(name)
}

// KindNames returns the names of all built-in kinds, sorted.
func KindNames() []string {
	names := make([]string, 0, len(kindsByName))
	for name := range kindsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "custom"
	case KindMacro:
		return "macro"
	case KindUnknown:
		return "unknown"
	}
	return kindTable[k].name
}

// SpatialRank is the number of spatial dimensions for convolution and pooling
// kinds, zero otherwise.
func (k Kind) SpatialRank() int {
	return kindTable[k].spatial
}

// NullWhenEmpty reports whether an empty argument list yields null params.
func (k Kind) NullWhenEmpty() bool {
	return kindTable[k].nullWhenEmpty
}

// IsConv reports whether k is a convolution kind.
func (k Kind) IsConv() bool {
	return k == KindConv1D || k == KindConv2D || k == KindConv3D
}

// IsPooling reports whether k is a windowed (non-global) pooling kind.
func (k Kind) IsPooling() bool {
	return k >= KindMaxPooling1D && k <= KindAveragePooling3D
}

// IsGlobalPooling reports whether k is a global pooling kind.
func (k Kind) IsGlobalPooling() bool {
	return k >= KindGlobalMaxPooling1D && k <= KindGlobalAveragePooling2D
}

// IsRecurrent reports whether k is a recurrent layer or cell.
func (k Kind) IsRecurrent() bool {
	return k >= KindLSTM && k <= KindSimpleRNNDropoutWrapper
}

// IsCell reports whether k is a single-step recurrent cell.
func (k Kind) IsCell() bool {
	return k == KindLSTMCell || k == KindGRUCell
}

// IsTransformer reports whether k is a transformer block.
func (k Kind) IsTransformer() bool {
	return k == KindTransformer || k == KindTransformerEncoder || k == KindTransformerDecoder
}
