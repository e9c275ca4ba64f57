package engine

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokKeyword
	tokPunct
)

type token struct {
	kind      tokenKind
	text      string
	num       float64
	line, col int
}

// keywords is the reserved-word set. A fixed, tiny alphabet like this is
// better served by a plain map than by a small-set library (see
// internal/require's ledger entry on why contains.Set was tried for the
// cycle-detection stack and dropped).
var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "nil": true, "true": true, "false": true,
	"local": true, "function": true, "end": true, "if": true, "then": true,
	"else": true, "elseif": true, "while": true, "do": true, "for": true,
	"in": true, "return": true, "break": true, "continue": true,
}

// lexer scans Quill source into tokens. Grounded on iolang/lex.go's
// accept-predicate scanning helper and line/col bookkeeping; the teacher's
// channel-of-tokens state-function plumbing is dropped because Quill's
// grammar is small enough that a conventional single-pass scanner with a
// peek buffer is simpler and just as correct.
type lexer struct {
	src        []rune
	pos        int
	line, col  int
	peeked     *token
	peekErr    error
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src), line: 1, col: 1}
}

func (lx *lexer) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("quill: %d:%d: %s", lx.line, lx.col, fmt.Sprintf(format, args...))
}

func (lx *lexer) peekRune() (rune, bool) {
	if lx.pos >= len(lx.src) {
		return 0, false
	}
	return lx.src[lx.pos], true
}

func (lx *lexer) advance() (rune, bool) {
	r, ok := lx.peekRune()
	if !ok {
		return 0, false
	}
	lx.pos++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r, true
}

func (lx *lexer) accept(pred func(rune) bool) string {
	var b strings.Builder
	for {
		r, ok := lx.peekRune()
		if !ok || !pred(r) {
			break
		}
		lx.advance()
		b.WriteRune(r)
	}
	return b.String()
}

func isSpace(r rune) bool  { return r == ' ' || r == '\t' || r == '\r' || r == '\n' }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
func isIdentPart(r rune) bool { return isIdentStart(r) || isDigit(r) }

func (lx *lexer) skipSpaceAndComments() error {
	for {
		lx.accept(isSpace)
		r, ok := lx.peekRune()
		if !ok {
			return nil
		}
		if r == '-' && lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '-' {
			lx.advance()
			lx.advance()
			lx.accept(func(r rune) bool { return r != '\n' })
			continue
		}
		return nil
	}
}

// peek returns the next token without consuming it.
func (lx *lexer) peek() (token, error) {
	if lx.peeked != nil {
		return *lx.peeked, lx.peekErr
	}
	t, err := lx.scan()
	lx.peeked = &t
	lx.peekErr = err
	return t, err
}

// next consumes and returns the next token.
func (lx *lexer) next() (token, error) {
	if lx.peeked != nil {
		t, err := *lx.peeked, lx.peekErr
		lx.peeked = nil
		return t, err
	}
	return lx.scan()
}

const punctChars = "+-*/%^#=<>(){}[];:,.\"'"

var multiPuncts = []string{"==", "~=", "<=", ">=", "..", "::"}

func (lx *lexer) scan() (token, error) {
	if err := lx.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	line, col := lx.line, lx.col
	r, ok := lx.peekRune()
	if !ok {
		return token{kind: tokEOF, line: line, col: col}, nil
	}
	switch {
	case isIdentStart(r):
		text := lx.accept(isIdentPart)
		kind := tokIdent
		if keywords[text] {
			kind = tokKeyword
		}
		return token{kind: kind, text: text, line: line, col: col}, nil
	case isDigit(r):
		return lx.scanNumber(line, col)
	case r == '"' || r == '\'':
		return lx.scanString(r, line, col)
	default:
		return lx.scanPunct(line, col)
	}
}

func (lx *lexer) scanNumber(line, col int) (token, error) {
	text := lx.accept(isDigit)
	if r, ok := lx.peekRune(); ok && r == '.' {
		lx.advance()
		text += "." + lx.accept(isDigit)
	}
	if r, ok := lx.peekRune(); ok && (r == 'e' || r == 'E') {
		save := lx.pos
		lx.advance()
		exp := ""
		if r2, ok2 := lx.peekRune(); ok2 && (r2 == '+' || r2 == '-') {
			lx.advance()
			exp += string(r2)
		}
		digits := lx.accept(isDigit)
		if digits == "" {
			lx.pos = save
		} else {
			text += "e" + exp + digits
		}
	}
	var f float64
	if _, err := fmt.Sscanf(text, "%g", &f); err != nil {
		return token{}, lx.errorf("malformed number %q", text)
	}
	return token{kind: tokNumber, text: text, num: f, line: line, col: col}, nil
}

func (lx *lexer) scanString(quote rune, line, col int) (token, error) {
	lx.advance()
	var b strings.Builder
	for {
		r, ok := lx.advance()
		if !ok {
			return token{}, lx.errorf("unterminated string literal")
		}
		if r == quote {
			break
		}
		if r == '\\' {
			esc, ok := lx.advance()
			if !ok {
				return token{}, lx.errorf("unterminated escape sequence")
			}
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '"', '\'':
				b.WriteRune(esc)
			default:
				b.WriteRune(esc)
			}
			continue
		}
		b.WriteRune(r)
	}
	return token{kind: tokString, text: b.String(), line: line, col: col}, nil
}

func (lx *lexer) scanPunct(line, col int) (token, error) {
	for _, mp := range multiPuncts {
		if lx.hasPrefix(mp) {
			for range mp {
				lx.advance()
			}
			return token{kind: tokPunct, text: mp, line: line, col: col}, nil
		}
	}
	r, _ := lx.advance()
	if !strings.ContainsRune(punctChars, r) {
		return token{}, lx.errorf("unexpected character %q", r)
	}
	return token{kind: tokPunct, text: string(r), line: line, col: col}, nil
}

func (lx *lexer) hasPrefix(s string) bool {
	rs := []rune(s)
	if lx.pos+len(rs) > len(lx.src) {
		return false
	}
	for i, r := range rs {
		if lx.src[lx.pos+i] != r {
			return false
		}
	}
	return true
}
