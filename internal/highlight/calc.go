package highlight

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrUncomputable is returned for expressions outside the arithmetic grammar
// or referencing unknown fields.
var ErrUncomputable = errors.New("uncomputable expression")

// Evaluate computes an arithmetic expression over named fields. The grammar
// is limited to numeric literals, identifiers present in vars, + - * / and
// parentheses. Division by zero yields 0.
func Evaluate(expr string, vars map[string]float64) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &parser{tokens: tokens, vars: vars}
	v, err := p.expr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("%w: unexpected %q", ErrUncomputable, p.tokens[p.pos].text)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrUncomputable
	}
	return v, nil
}

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	num  float64
}

func tokenize(s string) ([]token, error) {
	var out []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case strings.ContainsRune("+-*/()", r):
			out = append(out, token{kind: tokOp, text: string(r)})
			i++
		case unicode.IsDigit(r) || r == '.':
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(string(rs[i:j]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrUncomputable, string(rs[i:j]))
			}
			out = append(out, token{kind: tokNumber, text: string(rs[i:j]), num: n})
			i = j
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(rs) && (rs[j] == '_' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			out = append(out, token{kind: tokIdent, text: string(rs[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("%w: unexpected character %q", ErrUncomputable, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrUncomputable)
	}
	return out, nil
}

type parser struct {
	tokens []token
	pos    int
	vars   map[string]float64
}

func (p *parser) peekOp(ops string) (string, bool) {
	if p.pos >= len(p.tokens) {
		return "", false
	}
	t := p.tokens[p.pos]
	if t.kind != tokOp || !strings.Contains(ops, t.text) {
		return "", false
	}
	return t.text, true
}

// expr := term (('+' | '-') term)*
func (p *parser) expr() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("+-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			left += right
		} else {
			left -= right
		}
	}
}

// term := factor (('*' | '/') factor)*
func (p *parser) term() (float64, error) {
	left, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peekOp("*/")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.factor()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			left *= right
		} else if right == 0 {
			left = 0
		} else {
			left /= right
		}
	}
}

// factor := number | ident | '-' factor | '(' expr ')'
func (p *parser) factor() (float64, error) {
	if p.pos >= len(p.tokens) {
		return 0, fmt.Errorf("%w: unexpected end", ErrUncomputable)
	}
	t := p.tokens[p.pos]
	switch t.kind {
	case tokNumber:
		p.pos++
		return t.num, nil
	case tokIdent:
		v, ok := p.vars[strings.ToLower(t.text)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown field %q", ErrUncomputable, t.text)
		}
		p.pos++
		return v, nil
	}
	switch t.text {
	case "-":
		p.pos++
		v, err := p.factor()
		return -v, err
	case "(":
		p.pos++
		v, err := p.expr()
		if err != nil {
			return 0, err
		}
		if _, ok := p.peekOp(")"); !ok {
			return 0, fmt.Errorf("%w: missing )", ErrUncomputable)
		}
		p.pos++
		return v, nil
	}
	return 0, fmt.Errorf("%w: unexpected %q", ErrUncomputable, t.text)
}

// formatNumber renders whole numbers without decimals and others with one.
func formatNumber(v float64) string {
	v = math.Round(v*10) / 10
	if v == 0 {
		v = 0 // drop negative zero
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
