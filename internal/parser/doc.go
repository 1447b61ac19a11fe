// Package parser turns DSL source into a syntax tree.
//
// It is a recursive-descent parser over the tokens produced by the lexer
// package. Each exported Parse function is one start rule of the grammar:
//
//	file     := (define | network | research)*
//	network  := "network" [NAME] "{" key* "}"
//	key      := "input" ":" tuple
//	          | "layers" ":" layer+
//	          | "loss" ":" STRING
//	          | "optimizer" ":" STRING
//	          | "framework" ":" STRING
//	          | "train" "{" (NAME ":" value [","])* "}"
//	          | "execution" "{" (NAME ":" value [","])* "}"
//	layer    := NAME "(" [args] ")" ["@" STRING] ["{" layer* "}"] ["*" INT]
//	args     := arg ("," arg)* [","]
//	arg      := NAME "=" value | value
//	value    := ["-"|"+"] NUMBER | STRING | tuple | NAME [ "(" [args] ")" ]
//	tuple    := "(" [value ("," value)* [","]] ")"
//	define   := "define" NAME "{" layer+ "}"
//	research := "research" [NAME] "{" "metrics" "{" (NAME ":" value)* "}"
//	            ["references" "{" ("paper" ":" STRING)* "}"] "}"
//
// Keys of a network block may appear in any order, each at most once. Which
// keys are required is decided by the transformer, so that a block with a
// broken layer reports the layer problem rather than a missing key.
//
// The grammar is LL(2): a layer is recognised by NAME followed by "(", and a
// named argument by NAME followed by "=". Any input that parses has exactly one
// tree. All failures are returned as *diag.SyntaxError.
package parser
