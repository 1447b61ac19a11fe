// Package dag holds the structural graph of a compiled network: one node per
// layer, one edge per forward connection. It is built by the shape engine's
// report and exported to Graphviz DOT for external rendering.
//
// The graph is stored in a gonum directed graph; this package maps the
// string IDs used by callers onto gonum node IDs and carries per-node
// attributes for the DOT output.
package dag
