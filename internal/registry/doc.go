// Package registry provides the macro registry of a compilation unit.
//
// A `define Name { ... }` block registers a named layer sequence. Later layer
// statements may refer to it as `Name()`; the transformer records the
// reference as a layer of type Name, and consumers that need the body (shape
// propagation, code generation) expand it through the registry.
//
// A registry belongs to exactly one compilation unit and is never shared, so
// it needs no locking. Macros must be defined before they are referenced, a
// name can be defined only once, and a macro may not shadow a built-in layer.
package registry
