// Package shape infers tensor shapes through a compiled network.
//
// A Propagator walks layers in order, keeping a cursor on the current shape.
// Each step applies the rule of the layer's kind, counts the layer's
// trainable parameters, and appends a trace entry. Rules are pure functions
// of (input shape, layer, backend); the Propagator's only state is the trace
// and the per-layer statistics it accumulates for the report.
//
// Shapes may carry model.Unknown for unconstrained dimensions such as the
// batch. A leading Unknown is treated as the batch axis. Any known dimension
// that drops to zero or below aborts propagation with a *diag.ShapeError.
//
// Layouts follow the backend: channels-last for tensorflow, channels-first
// for pytorch and onnx.
package shape
