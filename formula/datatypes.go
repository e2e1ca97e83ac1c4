// Package formula compiles R-style model specifications such as
//
//	wage ~ educ + I(exper^2) + C(region) + female*married - 1
//
// into an immutable Formula value. Compiling is purely syntactic; no data is
// consulted until the design package expands the terms.
package formula

import (
	"strconv"
	"strings"
)

// Kind is the kind of a symbolic term.
type Kind int

const (
	// Variable is a bare identifier, one column.
	Variable Kind = iota
	// Categorical is C(var), one indicator per non-reference level.
	Categorical
	// Polynomial is I(var^n), powers 2..n.
	Polynomial
	// Interaction is a:b, the product columns only.
	Interaction
	// FullInteraction is a*b, expanded later to a + b + a:b.
	FullInteraction
)

func (k Kind) String() string {
	switch k {
	case Variable:
		return "variable"
	case Categorical:
		return "categorical"
	case Polynomial:
		return "polynomial"
	case Interaction:
		return "interaction"
	case FullInteraction:
		return "full-interaction"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Term is one signed predictor entry of a formula.
type Term struct {
	Kind Kind
	// Base variable for Variable, Categorical and Polynomial terms
	Name string
	// Highest power for Polynomial terms, always >= 2
	Degree int
	// Operands of Interaction and FullInteraction terms
	Left, Right *Term
	// Set for terms written as "- term"
	Excluded bool
}

// String renders the term in canonical source form, without its sign.
func (t Term) String() string {
	switch t.Kind {
	case Categorical:
		return "C(" + t.Name + ")"
	case Polynomial:
		return "I(" + t.Name + "^" + strconv.Itoa(t.Degree) + ")"
	case Interaction:
		return t.Left.String() + ":" + t.Right.String()
	case FullInteraction:
		return t.Left.String() + "*" + t.Right.String()
	}
	return t.Name
}

// Variables lists the data variables the term reads, in first-use order.
func (t Term) Variables() []string {
	switch t.Kind {
	case Interaction, FullInteraction:
		return appendUnique(t.Left.Variables(), t.Right.Variables()...)
	}
	return []string{t.Name}
}

// Formula is a compiled model specification. It is never mutated after
// Compile returns, so one value may be shared across concurrent fits.
type Formula struct {
	// Left-hand side variable
	Response string
	// Right-hand side terms in source order, excluded ones included
	Terms []Term
	// Whether the design matrix gets a leading column of ones
	Intercept bool
	// The string the formula was compiled from
	Source string
}

// String renders the formula in canonical form.
func (f *Formula) String() string {
	var b strings.Builder
	b.WriteString(f.Response)
	b.WriteString(" ~ ")
	if f.Intercept {
		b.WriteString("1")
	} else {
		b.WriteString("0")
	}
	for _, t := range f.Terms {
		if t.Excluded {
			b.WriteString(" - ")
		} else {
			b.WriteString(" + ")
		}
		b.WriteString(t.String())
	}
	return b.String()
}

// Variables lists every data variable the formula reads, response first.
func (f *Formula) Variables() []string {
	vars := []string{f.Response}
	for _, t := range f.Terms {
		vars = appendUnique(vars, t.Variables()...)
	}
	return vars
}

func appendUnique(dst []string, names ...string) []string {
	for _, n := range names {
		found := false
		for _, d := range dst {
			if d == n {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, n)
		}
	}
	return dst
}
