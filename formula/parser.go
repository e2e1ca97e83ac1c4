package formula

import (
	"fmt"
	"strconv"
	"strings"

	"formulareg/regerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokTilde
	tokPlus
	tokMinus
	tokStar
	tokColon
	tokPow // ^ or **
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of formula"
	}
	return strconv.Quote(t.text)
}

// Compile parses a formula string of the form "response ~ term (+|- term)*".
//
// Supported terms: bare identifiers, C(var), I(var^n) or I(var**n) with an
// integer n >= 2, a:b and a*b between two such factors, and the intercept
// literals 1 and 0. "- 1" and "0" suppress the intercept; the last intercept
// token wins. Any other "- term" marks the term as excluded.
func Compile(src string) (*Formula, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	return p.parseFormula()
}

func lex(src string) ([]token, error) {
	var toks []token
	tildes := 0
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		case c >= '0' && c <= '9':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start})
		case c == '*':
			if i+1 < len(src) && src[i+1] == '*' {
				toks = append(toks, token{tokPow, "**", i})
				i += 2
				continue
			}
			toks = append(toks, token{tokStar, "*", i})
			i++
		default:
			kind, ok := singleCharTokens[c]
			if !ok {
				return nil, &regerr.ParseError{Source: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
			if kind == tokTilde {
				tildes++
				if tildes > 1 {
					return nil, &regerr.ParseError{Source: src, Pos: i, Msg: "duplicate '~' separator"}
				}
			}
			toks = append(toks, token{kind, string(c), i})
			i++
		}
	}
	if tildes == 0 {
		return nil, &regerr.ParseError{Source: src, Pos: -1, Msg: "missing '~' separator between response and predictors"}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

var singleCharTokens = map[byte]tokenKind{
	'~': tokTilde,
	'+': tokPlus,
	'-': tokMinus,
	':': tokColon,
	'^': tokPow,
	'(': tokLParen,
	')': tokRParen,
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '.'
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(at token, format string, args ...any) error {
	return &regerr.ParseError{Source: p.src, Pos: at.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", what, t.describe())
	}
	return t, nil
}

func (p *parser) parseFormula() (*Formula, error) {
	first := p.peek()
	if first.kind == tokTilde {
		return nil, p.errorf(first, "missing response variable before '~'")
	}
	resp, err := p.expect(tokIdent, "response variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokTilde, "'~'"); err != nil {
		return nil, err
	}

	f := &Formula{Response: resp.text, Intercept: true, Source: strings.TrimSpace(p.src)}

	if p.peek().kind == tokEOF {
		return nil, p.errorf(p.peek(), "empty right-hand side")
	}

	excluded := false
	if t := p.peek(); t.kind == tokPlus || t.kind == tokMinus {
		excluded = t.kind == tokMinus
		p.next()
	}

	for {
		if err := p.parseSignedTerm(f, excluded); err != nil {
			return nil, err
		}

		op := p.next()
		switch op.kind {
		case tokEOF:
			return f, nil
		case tokPlus, tokMinus:
			if p.peek().kind == tokEOF {
				return nil, p.errorf(op, "operator %s has no right operand", op.describe())
			}
			excluded = op.kind == tokMinus
		default:
			return nil, p.errorf(op, "expected '+' or '-' between terms, found %s", op.describe())
		}
	}
}

// parseSignedTerm handles the intercept literals and appends any other term.
func (p *parser) parseSignedTerm(f *Formula, excluded bool) error {
	if t := p.peek(); t.kind == tokNumber {
		p.next()
		switch t.text {
		case "1":
			f.Intercept = !excluded
		case "0":
			f.Intercept = excluded
		default:
			return p.errorf(t, "numeric term %s; only 1 and 0 are allowed as terms", t.describe())
		}
		if nt := p.peek(); nt.kind == tokColon || nt.kind == tokStar {
			return p.errorf(nt, "intercept literal %s cannot be interacted", t.describe())
		}
		return nil
	}

	term, err := p.parseTerm()
	if err != nil {
		return err
	}
	term.Excluded = excluded
	f.Terms = append(f.Terms, term)
	return nil
}

func (p *parser) parseTerm() (Term, error) {
	left, err := p.parseFactor()
	if err != nil {
		return Term{}, err
	}

	op := p.peek()
	if op.kind != tokColon && op.kind != tokStar {
		return left, nil
	}
	p.next()

	right, err := p.parseFactor()
	if err != nil {
		return Term{}, err
	}
	if nt := p.peek(); nt.kind == tokColon || nt.kind == tokStar {
		return Term{}, p.errorf(nt, "only pairwise interactions are supported")
	}

	kind := Interaction
	if op.kind == tokStar {
		kind = FullInteraction
	}
	l, r := left, right
	return Term{Kind: kind, Left: &l, Right: &r}, nil
}

func (p *parser) parseFactor() (Term, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
	case tokNumber:
		return Term{}, p.errorf(t, "numeric literal %s cannot be used inside an interaction", t.describe())
	case tokEOF:
		return Term{}, p.errorf(t, "expected a term, found end of formula")
	default:
		return Term{}, p.errorf(t, "expected a term, found %s", t.describe())
	}

	if p.peek().kind != tokLParen {
		return Term{Kind: Variable, Name: t.text}, nil
	}
	open := p.next()

	switch t.text {
	case "C":
		name, err := p.expect(tokIdent, "variable name inside C()")
		if err != nil {
			return Term{}, err
		}
		if err := p.closeParen(open); err != nil {
			return Term{}, err
		}
		return Term{Kind: Categorical, Name: name.text}, nil

	case "I":
		name, err := p.expect(tokIdent, "variable name inside I()")
		if err != nil {
			return Term{}, err
		}
		if _, err := p.expect(tokPow, "'^' or '**' inside I()"); err != nil {
			return Term{}, err
		}
		degTok, err := p.expect(tokNumber, "polynomial degree")
		if err != nil {
			return Term{}, err
		}
		degree, convErr := strconv.Atoi(degTok.text)
		if convErr != nil {
			return Term{}, p.errorf(degTok, "polynomial degree %s is not an integer", degTok.describe())
		}
		if degree < 2 {
			return Term{}, p.errorf(degTok, "polynomial degree must be >= 2, got %d", degree)
		}
		if err := p.closeParen(open); err != nil {
			return Term{}, err
		}
		return Term{Kind: Polynomial, Name: name.text, Degree: degree}, nil
	}

	return Term{}, p.errorf(t, "unknown wrapper %s; expected C() or I()", t.describe())
}

func (p *parser) closeParen(open token) error {
	t := p.next()
	if t.kind != tokRParen {
		if t.kind == tokEOF {
			return p.errorf(open, "unbalanced parenthesis")
		}
		return p.errorf(t, "expected ')', found %s", t.describe())
	}
	return nil
}
