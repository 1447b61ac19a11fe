// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the Go representation of a compiled network
// description. It is the output contract of the compiler front end and the
// input of downstream code generators and visualizers.
//
// # Core Concepts
//
//   - LayerNode: one declared layer. It carries a Kind from the closed set of
//     supported layer kinds (or KindCustom / KindMacro), the display type name,
//     an ordered parameter mapping and its owned sublayers.
//
//   - Value: a parameter value. One of Int, Float, String, Bool, Tuple, *HPO or
//     *Params. Values are immutable once the transformer has produced them.
//
//   - Network: the full description of a `network` block, including the input
//     shape, the resolved layer sequence, loss, optimizer, training and
//     execution configuration, shape trace and non-fatal diagnostics.
//
//   - Research: the description of a `research` block.
//
// Every type exposes Plain(), which returns the model as nested maps, slices
// and scalars keyed exactly like the published contract, and implements
// json.Marshaler / yaml.Marshaler with the parameter order of the source.
//
// A Network is read-only once the compiler returns it; concurrent consumers may
// share it freely.
package model
