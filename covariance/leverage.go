package covariance

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"formulareg/regerr"
)

// maxLeverage is the hat value at or above which HC2-HC4 leave e_i^2
// unadjusted.
const maxLeverage = 0.9999

// Bread returns (X'X)^-1 through a Cholesky factorisation of X'X.
func Bread(X mat.Matrix) (*mat.SymDense, error) {
	n, k := X.Dims()
	if n < k {
		return nil, &regerr.InsufficientObservationsError{Observations: n, Parameters: k}
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, &regerr.SingularSystemError{Detail: "X'X is not positive definite"}
	}

	inv := mat.NewSymDense(k, nil)
	if err := chol.InverseTo(inv); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, &regerr.SingularSystemError{Detail: "inverting X'X: " + err.Error()}
		}
		// finite condition warnings still leave a usable inverse
	}
	return inv, nil
}

// Leverage returns the hat values h_i = x_i' bread x_i for every row of X.
func Leverage(X mat.Matrix, bread mat.Symmetric) []float64 {
	n, k := X.Dims()
	h := make([]float64, n)
	row := mat.NewVecDense(k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			row.SetVec(j, X.At(i, j))
		}
		h[i] = mat.Inner(row, bread, row)
	}
	return h
}
