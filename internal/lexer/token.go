package lexer

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Type is the type of a token.
type Type int

const (
	EOF Type = iota
	Ident
	Int
	Float
	String

	LParen
	RParen
	LBrace
	RBrace
	Comma
	Equals
	Colon
	At
	Star
	Minus
	Plus
)

var typeNames = map[Type]string{
	EOF:    "end of input",
	Ident:  "identifier",
	Int:    "integer",
	Float:  "number",
	String: "string",
	LParen: "'('",
	RParen: "')'",
	LBrace: "'{'",
	RBrace: "'}'",
	Comma:  "','",
	Equals: "'='",
	Colon:  "':'",
	At:     "'@'",
	Star:   "'*'",
	Minus:  "'-'",
	Plus:   "'+'",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexical token. For strings Text holds the unquoted value; for
// every other type it is the source text.
type Token struct {
	Type  Type
	Text  string
	Range hcl.Range
}

// Describe renders the token for error messages.
func (t Token) Describe() string {
	switch t.Type {
	case EOF:
		return t.Type.String()
	case String:
		return fmt.Sprintf("string %q", t.Text)
	case Ident, Int, Float:
		return fmt.Sprintf("%s %q", t.Type, t.Text)
	}
	return t.Type.String()
}
