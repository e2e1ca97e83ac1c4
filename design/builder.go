package design

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"formulareg/formula"
	"formulareg/regerr"
)

// Build materialises the response vector and the raw design matrix of f.
// Fails with *regerr.VariableNotFoundError when a variable is absent and with
// *regerr.DimensionMismatchError when a referenced variable's length differs
// from the response's.
func Build(f *formula.Formula, data ColumnAccessor) (*Matrix, error) {
	exp, err := Expand(f, data)
	if err != nil {
		return nil, err
	}
	return BuildExpansion(exp, data)
}

// BuildExpansion materialises an already computed expansion.
func BuildExpansion(exp *Expansion, data ColumnAccessor) (*Matrix, error) {
	// 1. Response
	yValues, err := data.Column(exp.Response)
	if err != nil {
		return nil, err
	}
	n := len(yValues)
	k := exp.Width()
	if n == 0 {
		return nil, &regerr.InsufficientObservationsError{Observations: 0, Parameters: k}
	}
	if k == 0 {
		return nil, fmt.Errorf("model for %q has no design columns: %w", exp.Response, regerr.ErrDimensionMismatch)
	}

	// 2. Every variable the columns read, checked against the response length
	vars := map[string][]float64{exp.Response: yValues}
	var names []string
	for i := range exp.Columns {
		names = exp.Columns[i].variables(names)
	}
	for _, name := range names {
		if _, ok := vars[name]; ok {
			continue
		}
		values, err := data.Column(name)
		if err != nil {
			return nil, err
		}
		if len(values) != n {
			return nil, &regerr.DimensionMismatchError{
				What:     fmt.Sprintf("length of variable %q vs response %q", name, exp.Response),
				Expected: n,
				Actual:   len(values),
			}
		}
		vars[name] = values
	}

	// 3. Fill X row by row
	y := mat.NewVecDense(n, nil)
	X := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		y.SetVec(i, yValues[i])

		col := 0
		if exp.Intercept {
			X.Set(i, col, 1.0)
			col++
		}
		for j := range exp.Columns {
			X.Set(i, col, exp.Columns[j].value(vars, i))
			col++
		}
	}

	return &Matrix{Response: y, X: X, Names: exp.Names()}, nil
}
