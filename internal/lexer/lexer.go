package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/neuraldsl/internal/diag"
)

// Lexer converts DSL source into tokens. Whitespace and `#` line comments are
// skipped. Signs are separate tokens; the parser folds them into numbers.
type Lexer struct {
	filename string
	src      []byte

	// off indexes the next unread byte of src; pos is where that byte sits
	// in the reported file.
	off int
	pos hcl.Pos
	// tokOff and tokStart mark where the current token began.
	tokOff   int
	tokStart hcl.Pos
}

// New creates a lexer that reports positions from the start of src.
func New(filename string, src []byte) *Lexer {
	return NewAt(filename, src, hcl.InitialPos)
}

// NewAt creates a lexer whose first byte is at start. It is used to scan text
// embedded in a string literal so that positions point into the outer file.
func NewAt(filename string, src []byte, start hcl.Pos) *Lexer {
	return &Lexer{
		filename: filename,
		src:      src,
		pos:      start,
	}
}

// Tokenize scans all of src. The result always ends with an EOF token.
func Tokenize(filename string, src []byte) ([]Token, error) {
	return New(filename, src).All()
}

// All scans the remaining input. The result always ends with an EOF token.
func (l *Lexer) All() ([]Token, error) {
	tokens := make([]Token, 0, len(l.src)/4+1)
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

// Next scans one token.
func (l *Lexer) Next() (Token, error) {
	l.skipSpaceAndComments()
	l.tokOff = l.off
	l.tokStart = l.pos

	ch, ok := l.peek()
	if !ok {
		return l.token(EOF, ""), nil
	}

	switch {
	case isAlpha(ch):
		return l.scanIdent(), nil
	case isDigit(ch) || (ch == '.' && isDigit(l.peekAt(1))):
		return l.scanNumber()
	case ch == '"' || ch == '\'':
		return l.scanString(ch)
	}

	if tt, ok := punctuation[ch]; ok {
		l.advance()
		return l.token(tt, string(ch)), nil
	}

	r, _ := utf8.DecodeRune(l.src[l.off:])
	l.advance()
	return Token{}, diag.NewSyntaxError(l.rangeFromStart(), "Unexpected character",
		fmt.Sprintf("The character %q is not valid here.", r))
}

var punctuation = map[byte]Type{
	'(': LParen,
	')': RParen,
	'{': LBrace,
	'}': RBrace,
	',': Comma,
	'=': Equals,
	':': Colon,
	'@': At,
	'*': Star,
	'-': Minus,
	'+': Plus,
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		ch, ok := l.peek()
		if !ok {
			return
		}
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.advance()
		case ch == '#':
			for {
				c, ok := l.peek()
				if !ok || c == '\n' {
					break
				}
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) scanIdent() Token {
	for {
		ch, ok := l.peek()
		if !ok || !isAlphaNum(ch) {
			break
		}
		l.advance()
	}
	return l.token(Ident, string(l.src[l.tokOff:l.off]))
}

func (l *Lexer) scanNumber() (Token, error) {
	isFloat := false
	l.skipDigits()

	if ch, _ := l.peek(); ch == '.' && isDigit(l.peekAt(1)) {
		l.advance()
		l.skipDigits()
		isFloat = true
	}

	if ch, _ := l.peek(); ch == 'e' || ch == 'E' {
		next := l.peekAt(1)
		digitAt := 1
		if next == '+' || next == '-' {
			digitAt = 2
		}
		if isDigit(l.peekAt(digitAt)) {
			for i := 0; i < digitAt; i++ {
				l.advance()
			}
			l.skipDigits()
			isFloat = true
		}
	}

	text := string(l.src[l.tokOff:l.off])
	if isFloat {
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return Token{}, diag.NewSyntaxError(l.rangeFromStart(), "Invalid number", fmt.Sprintf("%q is not a valid number.", text))
		}
		return l.token(Float, text), nil
	}
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return Token{}, diag.NewSyntaxError(l.rangeFromStart(), "Invalid number", fmt.Sprintf("%q is out of range for an integer.", text))
	}
	return l.token(Int, text), nil
}

func (l *Lexer) skipDigits() {
	for isDigit(l.peekAt(0)) {
		l.advance()
	}
}

func (l *Lexer) scanString(quote byte) (Token, error) {
	l.advance() // opening quote

	var b strings.Builder
	for {
		ch, ok := l.peek()
		if !ok || ch == '\n' {
			return Token{}, diag.NewSyntaxError(l.rangeFromStart(), "Unterminated string",
				"A string literal must be closed on the line where it starts.")
		}
		start := l.off
		l.advance()

		switch ch {
		case quote:
			return l.token(String, b.String()), nil
		case '\\':
			esc, ok := l.peek()
			if !ok {
				continue
			}
			l.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '"', '\'':
				b.WriteByte(esc)
			default:
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
		default:
			b.Write(l.src[start:l.off])
		}
	}
}

func (l *Lexer) token(tt Type, text string) Token {
	return Token{Type: tt, Text: text, Range: l.rangeFromStart()}
}

func (l *Lexer) rangeFromStart() hcl.Range {
	return hcl.Range{Filename: l.filename, Start: l.tokStart, End: l.pos}
}

func (l *Lexer) peek() (byte, bool) {
	if l.off >= len(l.src) {
		return 0, false
	}
	return l.src[l.off], true
}

// peekAt returns the byte n positions ahead, or 0 past the end.
func (l *Lexer) peekAt(n int) byte {
	if l.off+n >= len(l.src) {
		return 0
	}
	return l.src[l.off+n]
}

// advance consumes one rune, keeping line and column in step.
func (l *Lexer) advance() {
	if l.off >= len(l.src) {
		return
	}
	_, size := utf8.DecodeRune(l.src[l.off:])
	if l.src[l.off] == '\n' {
		l.pos.Line++
		l.pos.Column = 1
	} else {
		l.pos.Column++
	}
	l.off += size
	l.pos.Byte += size
}

func isDigit(b byte) bool    { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool    { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool { return isAlpha(b) || isDigit(b) }
