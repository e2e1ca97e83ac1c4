// Package estimate solves ordinary least squares on a full-rank design and
// derives the classical inference statistics from a supplied covariance.
package estimate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"formulareg/regerr"
)

// Fit holds the least squares solution for one response.
type Fit struct {
	Coefficients *mat.VecDense // k
	Residuals    *mat.VecDense // n, y - X*beta
	Fitted       *mat.VecDense // n, X*beta
}

// Dims returns the number of observations and coefficients.
func (f *Fit) Dims() (n, k int) {
	return f.Residuals.Len(), f.Coefficients.Len()
}

// RSS is the residual sum of squares.
func (f *Fit) RSS() float64 {
	return mat.Dot(f.Residuals, f.Residuals)
}

// FitLeastSquares minimises ||y - X*beta||^2 through a QR factorisation of X.
// X must already be of full column rank; a rank-deficient X fails with
// *regerr.SingularSystemError.
func FitLeastSquares(X mat.Matrix, y mat.Vector) (*Fit, error) {
	n, k := X.Dims()
	if y.Len() != n {
		return nil, &regerr.DimensionMismatchError{What: "response length vs design rows", Expected: n, Actual: y.Len()}
	}
	if k == 0 {
		return nil, &regerr.DimensionMismatchError{What: "design columns", Expected: 1, Actual: 0}
	}
	if n < k {
		return nil, &regerr.InsufficientObservationsError{Observations: n, Parameters: k}
	}

	var qr mat.QR
	qr.Factorize(X)

	// A zero or vanishing diagonal in R means X'X is not invertible
	var R mat.Dense
	qr.RTo(&R)
	maxDiag := 0.0
	for j := 0; j < k; j++ {
		maxDiag = math.Max(maxDiag, math.Abs(R.At(j, j)))
	}
	for j := 0; j < k; j++ {
		if d := math.Abs(R.At(j, j)); d == 0 || d <= 1e-14*maxDiag {
			return nil, &regerr.SingularSystemError{Detail: fmt.Sprintf("R[%d,%d] = %g in QR of the design matrix", j, j, R.At(j, j))}
		}
	}

	beta := mat.NewVecDense(k, nil)
	if err := qr.SolveVecTo(beta, false, y); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, &regerr.SingularSystemError{Detail: fmt.Sprintf("design matrix condition number %g", float64(cond))}
		}
		return nil, fmt.Errorf("least squares solve: %w", err)
	}

	fitted := mat.NewVecDense(n, nil)
	fitted.MulVec(X, beta)

	resid := mat.NewVecDense(n, nil)
	resid.SubVec(y, fitted)

	return &Fit{
		Coefficients: beta,
		Residuals:    resid,
		Fitted:       fitted,
	}, nil
}

// Predict evaluates X*beta for new rows with the fitted column layout.
func (f *Fit) Predict(X mat.Matrix) (*mat.VecDense, error) {
	n, k := X.Dims()
	if k != f.Coefficients.Len() {
		return nil, &regerr.DimensionMismatchError{What: "prediction columns vs coefficients", Expected: f.Coefficients.Len(), Actual: k}
	}
	if n == 0 {
		return nil, &regerr.InsufficientObservationsError{Observations: 0, Parameters: k}
	}
	out := mat.NewVecDense(n, nil)
	out.MulVec(X, f.Coefficients)
	return out, nil
}
