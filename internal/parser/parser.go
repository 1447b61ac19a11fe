package parser

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
	"github.com/specialistvlad/neuraldsl/internal/lexer"
	"github.com/specialistvlad/neuraldsl/internal/syntax"
)

// ParseLayer parses src as a single layer statement.
func ParseLayer(filename string, src []byte) (*syntax.Layer, error) {
	p, err := newParser(lexer.New(filename, src))
	if err != nil {
		return nil, err
	}
	l, err := p.layer()
	if err != nil {
		return nil, err
	}
	return l, p.expectEOF()
}

// ParseDefine parses src as a `define` block.
func ParseDefine(filename string, src []byte) (*syntax.Define, error) {
	p, err := newParser(lexer.New(filename, src))
	if err != nil {
		return nil, err
	}
	d, err := p.define()
	if err != nil {
		return nil, err
	}
	return d, p.expectEOF()
}

// ParseResearch parses src as a `research` block.
func ParseResearch(filename string, src []byte) (*syntax.Research, error) {
	p, err := newParser(lexer.New(filename, src))
	if err != nil {
		return nil, err
	}
	r, err := p.research()
	if err != nil {
		return nil, err
	}
	return r, p.expectEOF()
}

// ParseNetwork parses src as a `network` block.
func ParseNetwork(filename string, src []byte) (*syntax.Network, error) {
	p, err := newParser(lexer.New(filename, src))
	if err != nil {
		return nil, err
	}
	n, err := p.network()
	if err != nil {
		return nil, err
	}
	return n, p.expectEOF()
}

// ParseFile parses a whole source file: any number of `define`, `network` and
// `research` declarations.
func ParseFile(filename string, src []byte) (*syntax.File, error) {
	p, err := newParser(lexer.New(filename, src))
	if err != nil {
		return nil, err
	}
	return p.file()
}

// ParseCall parses a call-like form `Name(args)` or a bare `Name` embedded in
// a string literal. start is the position of the string's first character so
// that errors point into the enclosing file.
func ParseCall(filename string, src []byte, start hcl.Pos) (*syntax.Call, error) {
	p, err := newParser(lexer.NewAt(filename, src, start))
	if err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.Ident, "a name")
	if err != nil {
		return nil, err
	}

	var call *syntax.Call
	if p.at(lexer.LParen) {
		call, err = p.callAfterName(name)
		if err != nil {
			return nil, err
		}
	} else {
		call = &syntax.Call{Name: name.Text, NameRange: name.Range, Bare: true, Rng: name.Range}
	}
	return call, p.expectEOF()
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

func newParser(lx *lexer.Lexer) (*parser, error) {
	tokens, err := lx.All()
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens}, nil
}

func (p *parser) peek() lexer.Token {
	return p.tokens[p.pos]
}

// peekAt looks n tokens ahead, stopping at EOF.
func (p *parser) peekAt(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *parser) at(tt lexer.Type) bool {
	return p.peek().Type == tt
}

func (p *parser) atKeyword(word string) bool {
	tok := p.peek()
	return tok.Type == lexer.Ident && tok.Text == word
}

func (p *parser) next() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) accept(tt lexer.Type) bool {
	if p.at(tt) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(tt lexer.Type, what string) (lexer.Token, error) {
	if p.at(tt) {
		return p.next(), nil
	}
	return lexer.Token{}, p.unexpected(what)
}

func (p *parser) expectKeyword(word string) (lexer.Token, error) {
	if p.atKeyword(word) {
		return p.next(), nil
	}
	return lexer.Token{}, p.unexpected(fmt.Sprintf("%q", word))
}

func (p *parser) expectEOF() error {
	if p.at(lexer.EOF) {
		return nil
	}
	return p.unexpected("end of input")
}

func (p *parser) unexpected(what string) error {
	tok := p.peek()
	if tok.Type == lexer.EOF {
		return diag.NewSyntaxError(tok.Range, "Unexpected end of input",
			fmt.Sprintf("Expected %s, but the input ended.", what))
	}
	return diag.NewSyntaxError(tok.Range, "Unexpected token",
		fmt.Sprintf("Expected %s, but found %s.", what, tok.Describe()))
}

func (p *parser) prevEnd() hcl.Pos {
	if p.pos == 0 {
		return p.tokens[0].Range.Start
	}
	return p.tokens[p.pos-1].Range.End
}

func (p *parser) rangeFrom(start hcl.Range) hcl.Range {
	return hcl.Range{Filename: start.Filename, Start: start.Start, End: p.prevEnd()}
}

// atLayerStart reports whether the next tokens begin a layer statement.
func (p *parser) atLayerStart() bool {
	return p.at(lexer.Ident) && p.peekAt(1).Type == lexer.LParen
}

// layer := call ["@" STRING] ["{" layer+ "}"] ["*" INT]
func (p *parser) layer() (*syntax.Layer, error) {
	name, err := p.expect(lexer.Ident, "a layer name")
	if err != nil {
		return nil, err
	}
	if !p.at(lexer.LParen) {
		return nil, p.unexpected(fmt.Sprintf("'(' after layer name %q", name.Text))
	}
	call, err := p.callAfterName(name)
	if err != nil {
		return nil, err
	}
	l := &syntax.Layer{Call: call}

	if p.accept(lexer.At) {
		dev, err := p.expect(lexer.String, "a device string")
		if err != nil {
			return nil, err
		}
		l.Device = &syntax.Str{Value: dev.Text, Rng: dev.Range}
	}

	if p.accept(lexer.LBrace) {
		l.HasBlock = true
		if l.Sublayers, err = p.layerSeq(); err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBrace, "'}' or another layer"); err != nil {
			return nil, err
		}
	}

	if p.accept(lexer.Star) {
		n, err := p.expect(lexer.Int, "a repetition count")
		if err != nil {
			return nil, err
		}
		l.Repeat = &syntax.Number{Text: n.Text, IsInt: true, Rng: n.Range}
	}

	l.Rng = p.rangeFrom(name.Range)
	return l, nil
}

// layerSeq parses layers for as long as the input looks like one.
func (p *parser) layerSeq() ([]*syntax.Layer, error) {
	var out []*syntax.Layer
	for p.atLayerStart() {
		l, err := p.layer()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, p.unexpected("a layer")
	}
	return out, nil
}

// callAfterName parses "(" [args] ")" following an already consumed name.
func (p *parser) callAfterName(name lexer.Token) (*syntax.Call, error) {
	if _, err := p.expect(lexer.LParen, "'('"); err != nil {
		return nil, err
	}
	call := &syntax.Call{Name: name.Text, NameRange: name.Range}
	for !p.at(lexer.RParen) {
		arg, err := p.arg()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if !p.accept(lexer.Comma) {
			break
		}
	}
	if _, err := p.expect(lexer.RParen, "',' or ')'"); err != nil {
		return nil, err
	}
	call.Rng = p.rangeFrom(name.Range)
	return call, nil
}

// arg := NAME "=" expr | expr
func (p *parser) arg() (*syntax.Arg, error) {
	if p.at(lexer.Ident) && p.peekAt(1).Type == lexer.Equals {
		name := p.next()
		p.next()
		val, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &syntax.Arg{
			Name:      name.Text,
			NameRange: name.Range,
			Value:     val,
			Rng:       hcl.RangeBetween(name.Range, val.Range()),
		}, nil
	}

	val, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &syntax.Arg{Value: val, Rng: val.Range()}, nil
}

func (p *parser) expr() (syntax.Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.Minus, lexer.Plus:
		sign := p.next()
		num := p.peek()
		if num.Type != lexer.Int && num.Type != lexer.Float {
			return nil, p.unexpected(fmt.Sprintf("a number after '%s'", sign.Text))
		}
		p.next()
		text := num.Text
		if sign.Type == lexer.Minus {
			text = "-" + text
		}
		return &syntax.Number{Text: text, IsInt: num.Type == lexer.Int, Rng: hcl.RangeBetween(sign.Range, num.Range)}, nil

	case lexer.Int, lexer.Float:
		p.next()
		return &syntax.Number{Text: tok.Text, IsInt: tok.Type == lexer.Int, Rng: tok.Range}, nil

	case lexer.String:
		p.next()
		return &syntax.Str{Value: tok.Text, Rng: tok.Range}, nil

	case lexer.LParen:
		return p.tuple()

	case lexer.Ident:
		p.next()
		switch tok.Text {
		case "true", "True":
			return &syntax.Bool{Value: true, Rng: tok.Range}, nil
		case "false", "False":
			return &syntax.Bool{Value: false, Rng: tok.Range}, nil
		case "None":
			return &syntax.None{Rng: tok.Range}, nil
		}
		if p.at(lexer.LParen) {
			return p.callAfterName(tok)
		}
		return &syntax.Ident{Name: tok.Text, Rng: tok.Range}, nil
	}
	return nil, p.unexpected("a value")
}

// tuple := "(" [expr ("," expr)* [","]] ")"
func (p *parser) tuple() (*syntax.Tuple, error) {
	open, err := p.expect(lexer.LParen, "'('")
	if err != nil {
		return nil, err
	}
	t := &syntax.Tuple{}
	for !p.at(lexer.RParen) {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		t.Elems = append(t.Elems, e)
		if !p.accept(lexer.Comma) {
			break
		}
	}
	if _, err := p.expect(lexer.RParen, "',' or ')'"); err != nil {
		return nil, err
	}
	t.Rng = p.rangeFrom(open.Range)
	return t, nil
}

// entries := (NAME ":" expr [","])* up to the closing brace, which is consumed.
func (p *parser) entries() ([]*syntax.Entry, error) {
	var out []*syntax.Entry
	for !p.accept(lexer.RBrace) {
		key, err := p.expect(lexer.Ident, "a key or '}'")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon, fmt.Sprintf("':' after %q", key.Text)); err != nil {
			return nil, err
		}
		val, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, &syntax.Entry{Key: key.Text, KeyRange: key.Range, Value: val})
		p.accept(lexer.Comma)
	}
	return out, nil
}

// optionalName consumes an identifier used as a block name, if present.
func (p *parser) optionalName() string {
	if p.at(lexer.Ident) {
		return p.next().Text
	}
	return ""
}

// define := "define" NAME "{" layer+ "}"
func (p *parser) define() (*syntax.Define, error) {
	kw, err := p.expectKeyword("define")
	if err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.Ident, "a macro name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return nil, err
	}
	layers, err := p.layerSeq()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBrace, "a layer or '}'"); err != nil {
		return nil, err
	}
	return &syntax.Define{Name: name.Text, NameRange: name.Range, Layers: layers, Rng: p.rangeFrom(kw.Range)}, nil
}

// research := "research" [NAME] "{" "metrics" "{" entries "}" ["references" "{" ("paper" ":" STRING)* "}"] "}"
func (p *parser) research() (*syntax.Research, error) {
	kw, err := p.expectKeyword("research")
	if err != nil {
		return nil, err
	}
	r := &syntax.Research{Name: p.optionalName()}
	if _, err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return nil, err
	}

	seenMetrics, seenRefs := false, false
	for !p.accept(lexer.RBrace) {
		switch {
		case p.atKeyword("metrics") && !seenMetrics:
			p.next()
			if _, err := p.expect(lexer.LBrace, "'{' after metrics"); err != nil {
				return nil, err
			}
			if r.Metrics, err = p.entries(); err != nil {
				return nil, err
			}
			seenMetrics = true
		case p.atKeyword("references") && !seenRefs:
			p.next()
			if _, err := p.expect(lexer.LBrace, "'{' after references"); err != nil {
				return nil, err
			}
			for !p.accept(lexer.RBrace) {
				if _, err := p.expectKeyword("paper"); err != nil {
					return nil, err
				}
				if _, err := p.expect(lexer.Colon, "':' after paper"); err != nil {
					return nil, err
				}
				title, err := p.expect(lexer.String, "a paper title string")
				if err != nil {
					return nil, err
				}
				r.References = append(r.References, &syntax.Str{Value: title.Text, Rng: title.Range})
				p.accept(lexer.Comma)
			}
			seenRefs = true
		default:
			if !seenMetrics {
				return nil, p.unexpected(`"metrics"`)
			}
			return nil, p.unexpected(`"references" or '}'`)
		}
	}
	if !seenMetrics {
		return nil, diag.NewSyntaxError(p.rangeFrom(kw.Range), "Missing metrics block",
			"A research block must contain a metrics block.")
	}
	r.Rng = p.rangeFrom(kw.Range)
	return r, nil
}

// network := "network" [NAME] "{" network_key* "}"
func (p *parser) network() (*syntax.Network, error) {
	kw, err := p.expectKeyword("network")
	if err != nil {
		return nil, err
	}
	n := &syntax.Network{Name: p.optionalName(), KeyRanges: make(map[string]hcl.Range)}
	if _, err := p.expect(lexer.LBrace, "'{'"); err != nil {
		return nil, err
	}

	for !p.accept(lexer.RBrace) {
		key, err := p.expect(lexer.Ident, "a network key or '}'")
		if err != nil {
			return nil, err
		}
		if prev, dup := n.KeyRanges[key.Text]; dup {
			return nil, diag.NewSyntaxError(key.Range, "Duplicate key",
				fmt.Sprintf("The key %q was already set at line %d.", key.Text, prev.Start.Line))
		}
		n.KeyRanges[key.Text] = key.Range

		if err := p.networkKey(n, key); err != nil {
			return nil, err
		}
	}
	n.Rng = p.rangeFrom(kw.Range)
	return n, nil
}

func (p *parser) networkKey(n *syntax.Network, key lexer.Token) error {
	var err error
	switch key.Text {
	case "train", "execution":
		if _, err = p.expect(lexer.LBrace, fmt.Sprintf("'{' after %s", key.Text)); err != nil {
			return err
		}
		entries, err := p.entries()
		if err != nil {
			return err
		}
		if key.Text == "train" {
			n.Train, n.HasTrain = entries, true
		} else {
			n.Execution = entries
		}
		return nil
	}

	if _, err = p.expect(lexer.Colon, fmt.Sprintf("':' after %q", key.Text)); err != nil {
		return err
	}

	switch key.Text {
	case "input":
		n.Input, err = p.tuple()
	case "layers":
		n.Layers, err = p.layerSeq()
		n.HasLayers = true
	case "loss":
		n.Loss, err = p.str("a loss name string")
	case "optimizer":
		n.Optimizer, err = p.str("an optimizer string")
	case "framework":
		n.Framework, err = p.str("a framework string")
	default:
		err = diag.NewSyntaxError(key.Range, "Unknown network key",
			fmt.Sprintf("%q is not a valid key in a network block.", key.Text))
	}
	return err
}

func (p *parser) str(what string) (*syntax.Str, error) {
	tok, err := p.expect(lexer.String, what)
	if err != nil {
		return nil, err
	}
	return &syntax.Str{Value: tok.Text, Rng: tok.Range}, nil
}

// file := (define | network | research)*
func (p *parser) file() (*syntax.File, error) {
	f := &syntax.File{}
	start := p.peek().Range
	for !p.at(lexer.EOF) {
		var (
			decl syntax.Decl
			err  error
		)
		switch {
		case p.atKeyword("define"):
			decl, err = p.define()
		case p.atKeyword("network"):
			decl, err = p.network()
		case p.atKeyword("research"):
			decl, err = p.research()
		default:
			err = p.unexpected(`"define", "network" or "research"`)
		}
		if err != nil {
			return nil, err
		}
		f.Decls = append(f.Decls, decl)
	}
	f.Rng = p.rangeFrom(start)
	return f, nil
}
