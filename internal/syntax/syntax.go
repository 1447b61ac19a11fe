// Package syntax defines the concrete syntax tree produced by the parser.
//
// The tree keeps the source form of every construct, including its range.
// Nothing here is validated beyond the grammar; interpretation belongs to the
// transform package.
package syntax

import (
	"github.com/hashicorp/hcl/v2"
)

// Expr is a value expression in argument or key position.
type Expr interface {
	Range() hcl.Range
	isExpr()
}

// Number is a numeric literal. Text includes a leading '-' for negative
// literals. IsInt is false when the literal has a fraction or an exponent.
type Number struct {
	Text  string
	IsInt bool
	Rng   hcl.Range
}

// Str is a string literal with its quotes removed.
type Str struct {
	Value string
	Rng   hcl.Range
}

// Bool is true/false (either case of the first letter).
type Bool struct {
	Value bool
	Rng   hcl.Range
}

// None is the None literal.
type None struct {
	Rng hcl.Range
}

// Ident is a bare identifier in value position.
type Ident struct {
	Name string
	Rng  hcl.Range
}

// Tuple is a parenthesised, comma separated list of expressions.
type Tuple struct {
	Elems []Expr
	Rng   hcl.Range
}

// Call is Name(args...). Both nested layers and HPO expressions are calls.
type Call struct {
	Name      string
	NameRange hcl.Range
	Args      []*Arg
	// Bare is set when a call-like form was written without parentheses, as
	// in an optimizer string such as "adam".
	Bare bool
	Rng  hcl.Range
}

// Arg is one argument. Name is empty for positional arguments.
type Arg struct {
	Name      string
	NameRange hcl.Range
	Value     Expr
	Rng       hcl.Range
}

func (e *Number) Range() hcl.Range { return e.Rng }
func (e *Str) Range() hcl.Range    { return e.Rng }
func (e *Bool) Range() hcl.Range   { return e.Rng }
func (e *None) Range() hcl.Range   { return e.Rng }
func (e *Ident) Range() hcl.Range  { return e.Rng }
func (e *Tuple) Range() hcl.Range  { return e.Rng }
func (e *Call) Range() hcl.Range   { return e.Rng }

func (*Number) isExpr() {}
func (*Str) isExpr()    {}
func (*Bool) isExpr()   {}
func (*None) isExpr()   {}
func (*Ident) isExpr()  {}
func (*Tuple) isExpr()  {}
func (*Call) isExpr()   {}

// Positional returns the positional arguments in order.
func (c *Call) Positional() []*Arg {
	var out []*Arg
	for _, a := range c.Args {
		if a.Name == "" {
			out = append(out, a)
		}
	}
	return out
}

// Layer is one layer statement:
//
//	Name(args) [@ "device"] [{ sublayers }] [* N]
type Layer struct {
	Call      *Call
	Device    *Str
	Sublayers []*Layer
	// HasBlock is set when a `{ ... }` block was written.
	HasBlock bool
	Repeat   *Number
	Rng      hcl.Range
}

// Decl is a top-level declaration of a file.
type Decl interface {
	Range() hcl.Range
	isDecl()
}

// Define is `define Name { layers }`.
type Define struct {
	Name      string
	NameRange hcl.Range
	Layers    []*Layer
	Rng       hcl.Range
}

// Entry is a `key: value` pair inside a block.
type Entry struct {
	Key      string
	KeyRange hcl.Range
	Value    Expr
}

// Research is `research [Name] { metrics { ... } [references { ... }] }`.
type Research struct {
	Name       string
	Metrics    []*Entry
	References []*Str
	Rng        hcl.Range
}

// Network is a `network [Name] { ... }` block. Keys may appear in any order;
// a nil field means the key was not written.
type Network struct {
	Name string
	// Input is the declared input shape.
	Input     *Tuple
	Layers    []*Layer
	HasLayers bool
	Loss      *Str
	Optimizer *Str
	Train     []*Entry
	HasTrain  bool
	Framework *Str
	Execution []*Entry
	// KeyRanges records where each key was written.
	KeyRanges map[string]hcl.Range
	Rng       hcl.Range
}

// File is a sequence of declarations in source order.
type File struct {
	Decls []Decl
	Rng   hcl.Range
}

func (d *Define) Range() hcl.Range   { return d.Rng }
func (d *Research) Range() hcl.Range { return d.Rng }
func (d *Network) Range() hcl.Range  { return d.Rng }

func (*Define) isDecl()   {}
func (*Research) isDecl() {}
func (*Network) isDecl()  {}
