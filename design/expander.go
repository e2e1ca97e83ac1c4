package design

import (
	"math"
	"strconv"

	"formulareg/formula"
	"formulareg/regerr"
)

type ruleKind int

const (
	ruleIdentity ruleKind = iota
	ruleIndicator
	rulePower
	ruleProduct
)

// Column is one expanded design column and the rule that computes it.
type Column struct {
	Name string

	rule     ruleKind
	variable string  // identity, indicator and power rules
	level    float64 // indicator rule
	power    int     // power rule
	left     *Column // product rule
	right    *Column
}

// value evaluates the column for observation i.
func (c *Column) value(vars map[string][]float64, i int) float64 {
	switch c.rule {
	case ruleIndicator:
		if vars[c.variable][i] == c.level {
			return 1
		}
		return 0
	case rulePower:
		return math.Pow(vars[c.variable][i], float64(c.power))
	case ruleProduct:
		return c.left.value(vars, i) * c.right.value(vars, i)
	}
	return vars[c.variable][i]
}

// variables appends the data variables the column reads.
func (c *Column) variables(dst []string) []string {
	if c.rule == ruleProduct {
		return c.right.variables(c.left.variables(dst))
	}
	return append(dst, c.variable)
}

// Expansion is the ordered list of design columns a formula produces over a
// particular data source.
type Expansion struct {
	Response  string
	Intercept bool
	// Columns after the intercept, deduplicated, exclusions applied
	Columns []Column
	// Width each formula term contributed before deduplication, parallel to
	// Formula.Terms (excluded terms report the width they removed)
	Widths []int
}

// Width is the total design column count, intercept included.
func (e *Expansion) Width() int {
	if e.Intercept {
		return len(e.Columns) + 1
	}
	return len(e.Columns)
}

// Names lists the design column names in matrix order.
func (e *Expansion) Names() []string {
	names := make([]string, 0, e.Width())
	if e.Intercept {
		names = append(names, InterceptName)
	}
	for _, c := range e.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Expand computes the ordered design columns of f over data.
//
// Plain variables give one column, C(var) one indicator per level after the
// first observed one, I(var^n) the powers 2..n, a:b the left-major cross
// product of both sides and a*b the columns of a, b and a:b in that order.
// A column whose name was already produced is dropped, and excluded terms
// remove every column they would have produced.
func Expand(f *formula.Formula, data ColumnAccessor) (*Expansion, error) {
	ex := &expander{data: data, levels: make(map[string][]float64)}

	out := &Expansion{Response: f.Response, Intercept: f.Intercept, Widths: make([]int, len(f.Terms))}

	seen := make(map[string]bool)
	if f.Intercept {
		seen[InterceptName] = true
	}
	removed := make(map[string]bool)

	for i := range f.Terms {
		term := &f.Terms[i]
		cols, err := ex.term(term)
		if err != nil {
			return nil, err
		}
		out.Widths[i] = len(cols)

		if term.Excluded {
			for _, c := range cols {
				removed[c.Name] = true
			}
			continue
		}
		for _, c := range cols {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out.Columns = append(out.Columns, c)
		}
	}

	if len(removed) > 0 {
		kept := out.Columns[:0]
		for _, c := range out.Columns {
			if !removed[c.Name] {
				kept = append(kept, c)
			}
		}
		out.Columns = kept
	}

	return out, nil
}

type expander struct {
	data   ColumnAccessor
	levels map[string][]float64
}

func (ex *expander) term(t *formula.Term) ([]Column, error) {
	switch t.Kind {
	case formula.Variable:
		if !ex.data.Has(t.Name) {
			return nil, &regerr.VariableNotFoundError{Name: t.Name}
		}
		return []Column{{Name: t.Name, rule: ruleIdentity, variable: t.Name}}, nil

	case formula.Categorical:
		levels, err := ex.categoryLevels(t.Name)
		if err != nil {
			return nil, err
		}
		if len(levels) <= 1 {
			return nil, nil
		}
		cols := make([]Column, 0, len(levels)-1)
		for _, lv := range levels[1:] {
			cols = append(cols, Column{
				Name:     t.Name + "_" + formatLevel(lv),
				rule:     ruleIndicator,
				variable: t.Name,
				level:    lv,
			})
		}
		return cols, nil

	case formula.Polynomial:
		if !ex.data.Has(t.Name) {
			return nil, &regerr.VariableNotFoundError{Name: t.Name}
		}
		cols := make([]Column, 0, t.Degree-1)
		for p := 2; p <= t.Degree; p++ {
			cols = append(cols, Column{
				Name:     t.Name + "^" + strconv.Itoa(p),
				rule:     rulePower,
				variable: t.Name,
				power:    p,
			})
		}
		return cols, nil

	case formula.Interaction, formula.FullInteraction:
		left, err := ex.term(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := ex.term(t.Right)
		if err != nil {
			return nil, err
		}
		cross := crossProduct(left, right)
		if t.Kind == formula.Interaction {
			return cross, nil
		}
		cols := make([]Column, 0, len(left)+len(right)+len(cross))
		cols = append(cols, left...)
		cols = append(cols, right...)
		return append(cols, cross...), nil
	}

	return nil, &regerr.ParseError{Source: t.String(), Pos: -1, Msg: "unknown term kind " + t.Kind.String()}
}

// crossProduct builds width(left) * width(right) product columns, left-major.
func crossProduct(left, right []Column) []Column {
	cols := make([]Column, 0, len(left)*len(right))
	for i := range left {
		for j := range right {
			l, r := left[i], right[j]
			cols = append(cols, Column{
				Name:  l.Name + ":" + r.Name,
				rule:  ruleProduct,
				left:  &l,
				right: &r,
			})
		}
	}
	return cols
}

// categoryLevels returns the distinct values of a variable in first-appearance order.
func (ex *expander) categoryLevels(name string) ([]float64, error) {
	if lv, ok := ex.levels[name]; ok {
		return lv, nil
	}
	values, err := ex.data.Column(name)
	if err != nil {
		return nil, err
	}

	var levels []float64
	seen := make(map[float64]bool)
	for i, v := range values {
		if math.IsNaN(v) {
			return nil, &regerr.MissingValueError{Name: name, Row: i}
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		levels = append(levels, v)
	}
	ex.levels[name] = levels
	return levels, nil
}

func formatLevel(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
