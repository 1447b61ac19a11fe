// Package transform turns syntax trees into validated model values.
//
// It binds positional arguments to parameter names, resolves HPO expressions
// and macro references, checks every parameter against the rules of its layer
// kind, and expands `* N` repetitions. The first error aborts the unit;
// warnings and info messages are recorded in the Transformer's collector and
// copied onto the network.
package transform
