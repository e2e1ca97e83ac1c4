// Package collinear finds and removes exactly linearly dependent design
// columns before least squares.
//
// Columns are triangularised in their original order. A column whose
// remaining diagonal |R_jj| falls to tol times that column's own norm is
// deferred past the numerical rank and reported as omitted. Because the
// order is never permuted otherwise, the lowest-indexed member of every
// dependent set is the one kept.
package collinear

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"formulareg/regerr"
)

// DefaultTolerance is the relative rank threshold.
const DefaultTolerance = 1e-10

// Report describes which design columns survived.
type Report struct {
	// Original positions of retained columns, ascending
	Kept []int
	// Original positions of dropped columns, ascending
	Omitted []int
	// Names parallel to Kept and Omitted, set when names were supplied
	KeptNames    []string
	OmittedNames []string
	// Numerical rank, len(Kept)
	Rank int
	// |R_jj| for every original column; for omitted columns it is the
	// residual norm that fell below the threshold
	Diagonal []float64
}

// Detect inspects the columns of x. tol <= 0 selects DefaultTolerance.
func Detect(x mat.Matrix, tol float64) *Report {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	n, k := x.Dims()

	cols := make([][]float64, k)
	for j := 0; j < k; j++ {
		cols[j] = mat.Col(nil, j, x)
	}

	rep := &Report{Diagonal: make([]float64, k)}
	basis := make([][]float64, 0, min(n, k))

	for j := 0; j < k; j++ {
		v := cols[j]
		// Relative to the column itself so that units do not decide the rank
		norm := floats.Norm(v, 2)

		// Modified Gram-Schmidt, run twice to recover orthogonality lost to rounding
		for pass := 0; pass < 2; pass++ {
			for _, q := range basis {
				floats.AddScaled(v, -floats.Dot(q, v), q)
			}
		}
		r := floats.Norm(v, 2)
		rep.Diagonal[j] = r

		if norm == 0 || r <= tol*norm {
			rep.Omitted = append(rep.Omitted, j)
			continue
		}
		floats.Scale(1/r, v)
		basis = append(basis, v)
		rep.Kept = append(rep.Kept, j)
	}
	rep.Rank = len(rep.Kept)

	return rep
}

// Remove drops the dependent columns of x and returns the reduced matrix,
// the report and the retained names. names may be nil; otherwise it must have
// one entry per column of x.
func Remove(x mat.Matrix, names []string, tol float64) (*mat.Dense, *Report, error) {
	n, k := x.Dims()
	if names != nil && len(names) != k {
		return nil, nil, &regerr.DimensionMismatchError{What: "column names vs design columns", Expected: k, Actual: len(names)}
	}

	rep := Detect(x, tol)
	if rep.Rank == 0 {
		return nil, rep, &regerr.SingularSystemError{Detail: "design matrix has no linearly independent columns"}
	}

	if names != nil {
		for _, j := range rep.Kept {
			rep.KeptNames = append(rep.KeptNames, names[j])
		}
		for _, j := range rep.Omitted {
			rep.OmittedNames = append(rep.OmittedNames, names[j])
		}
	}

	clean := mat.NewDense(n, rep.Rank, nil)
	for c, j := range rep.Kept {
		for i := 0; i < n; i++ {
			clean.Set(i, c, x.At(i, j))
		}
	}
	return clean, rep, nil
}

// String summarises the report for logs.
func (r *Report) String() string {
	if len(r.OmittedNames) > 0 {
		return fmt.Sprintf("rank %d, omitted %v", r.Rank, r.OmittedNames)
	}
	return fmt.Sprintf("rank %d, omitted columns %v", r.Rank, r.Omitted)
}
