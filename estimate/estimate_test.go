package estimate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"formulareg/regerr"
)

// almostEqual compares floats with tolerance
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func design(x ...[]float64) *mat.Dense {
	n := len(x[0])
	X := mat.NewDense(n, len(x)+1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j := range x {
			X.Set(i, j+1, x[j][i])
		}
	}
	return X
}

func TestFitExactLine(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	fit, err := FitLeastSquares(design(x), mat.NewVecDense(5, []float64{1, 2, 3, 4, 5}))
	require.NoError(t, err)

	if !almostEqual(fit.Coefficients.AtVec(0), 0, 1e-10) {
		t.Errorf("intercept = %v; want 0", fit.Coefficients.AtVec(0))
	}
	if !almostEqual(fit.Coefficients.AtVec(1), 1, 1e-10) {
		t.Errorf("slope = %v; want 1", fit.Coefficients.AtVec(1))
	}
	for i := 0; i < 5; i++ {
		if !almostEqual(fit.Residuals.AtVec(i), 0, 1e-10) {
			t.Errorf("residual %d = %v; want 0", i, fit.Residuals.AtVec(i))
		}
	}
}

func TestFitKnownCoefficients(t *testing.T) {
	tests := []struct {
		x1, x2 []float64
		beta   []float64
	}{
		{[]float64{1, 2, 3, 4, 5, 6}, []float64{2, 1, 5, 3, 8, 4}, []float64{0.5, 2, -1}},
		{[]float64{-1, 0, 1, 2, 3}, []float64{4, 4, 1, 0, 2}, []float64{10, 0, 0.25}},
	}

	for i, test := range tests {
		X := design(test.x1, test.x2)
		n, _ := X.Dims()
		y := mat.NewVecDense(n, nil)
		y.MulVec(X, mat.NewVecDense(3, test.beta))

		fit, err := FitLeastSquares(X, y)
		require.NoError(t, err)
		for j, want := range test.beta {
			if !almostEqual(fit.Coefficients.AtVec(j), want, 1e-9) {
				t.Errorf("Test %d: beta[%d] = %v; want %v", i+1, j, fit.Coefficients.AtVec(j), want)
			}
		}
	}
}

func TestResidualIdentities(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7}
	y := mat.NewVecDense(7, []float64{2.1, 3.9, 6.2, 7.8, 10.1, 12.3, 13.7})
	X := design(x)

	fit, err := FitLeastSquares(X, y)
	require.NoError(t, err)

	sum := 0.0
	for i := 0; i < 7; i++ {
		sum += fit.Residuals.AtVec(i)
		if !almostEqual(fit.Fitted.AtVec(i)+fit.Residuals.AtVec(i), y.AtVec(i), 1e-12) {
			t.Errorf("row %d: fitted + residual != y", i)
		}
	}
	if !almostEqual(sum, 0, 1e-10) {
		t.Errorf("sum of residuals = %v; want 0", sum)
	}

	// X'e = 0
	var xte mat.VecDense
	xte.MulVec(X.T(), fit.Residuals)
	for j := 0; j < xte.Len(); j++ {
		if !almostEqual(xte.AtVec(j), 0, 1e-9) {
			t.Errorf("X'e[%d] = %v; want 0", j, xte.AtVec(j))
		}
	}
}

func TestFitErrors(t *testing.T) {
	X := design([]float64{1, 2, 3})

	_, err := FitLeastSquares(X, mat.NewVecDense(2, []float64{1, 2}))
	assert.ErrorIs(t, err, regerr.ErrDimensionMismatch)

	wide := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	_, err = FitLeastSquares(wide, mat.NewVecDense(2, []float64{1, 2}))
	var io *regerr.InsufficientObservationsError
	require.ErrorAs(t, err, &io)
	assert.Equal(t, 2, io.Observations)
	assert.Equal(t, 3, io.Parameters)

	dup := mat.NewDense(4, 2, []float64{
		1, 1,
		2, 2,
		3, 3,
		4, 4,
	})
	_, err = FitLeastSquares(dup, mat.NewVecDense(4, []float64{1, 2, 3, 5}))
	assert.ErrorIs(t, err, regerr.ErrSingular)
}

func TestPredict(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	fit, err := FitLeastSquares(design(x), mat.NewVecDense(4, []float64{3, 5, 7, 9}))
	require.NoError(t, err)

	pred, err := fit.Predict(design([]float64{10, -1}))
	require.NoError(t, err)
	if !almostEqual(pred.AtVec(0), 21, 1e-9) || !almostEqual(pred.AtVec(1), -1, 1e-9) {
		t.Errorf("Predict = %v; want [21 -1]", mat.Formatted(pred.T()))
	}

	_, err = fit.Predict(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, regerr.ErrDimensionMismatch)
}

func TestInfer(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := mat.NewVecDense(8, []float64{1.2, 1.9, 3.2, 3.8, 5.1, 6.3, 6.8, 8.1})
	X := design(x)

	fit, err := FitLeastSquares(X, y)
	require.NoError(t, err)

	// classical covariance sigma^2 (X'X)^-1
	n, k := X.Dims()
	sigma2 := fit.RSS() / float64(n-k)
	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	var inv mat.Dense
	require.NoError(t, inv.Inverse(&xtx))
	cov := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			cov.SetSym(i, j, sigma2*inv.At(i, j))
		}
	}

	inf, err := Infer(fit, y, cov, true)
	require.NoError(t, err)

	assert.Equal(t, 6, inf.DFResid)
	assert.Equal(t, 1, inf.DFModel)
	assert.True(t, inf.RSquared > 0.99 && inf.RSquared <= 1)
	assert.Less(t, inf.AdjRSquared, inf.RSquared)
	assert.Less(t, inf.PValues[1], 1e-6)

	// with one regressor F equals t^2
	if !almostEqual(inf.FStatistic, inf.TValues[1]*inf.TValues[1], 1e-6*inf.FStatistic) {
		t.Errorf("F = %v; want t^2 = %v", inf.FStatistic, inf.TValues[1]*inf.TValues[1])
	}
	if !almostEqual(inf.FPValue, inf.PValues[1], 1e-9) {
		t.Errorf("F p-value = %v; want %v", inf.FPValue, inf.PValues[1])
	}

	for j := 0; j < k; j++ {
		b := fit.Coefficients.AtVec(j)
		if !(inf.CILower[j] < b && b < inf.CIUpper[j]) {
			t.Errorf("coefficient %d: %v outside [%v, %v]", j, b, inf.CILower[j], inf.CIUpper[j])
		}
	}
	assert.InDelta(t, inf.AIC-inf.BIC, 2*float64(k)-float64(k)*math.Log(float64(n)), 1e-9)
}

func TestInferErrors(t *testing.T) {
	X := design([]float64{1, 2})
	fit, err := FitLeastSquares(X, mat.NewVecDense(2, []float64{1, 3}))
	require.NoError(t, err)

	_, err = Infer(fit, mat.NewVecDense(2, []float64{1, 3}), mat.NewSymDense(2, nil), true)
	assert.ErrorIs(t, err, regerr.ErrInsufficientObservations)

	_, err = Infer(fit, mat.NewVecDense(2, []float64{1, 3}), mat.NewSymDense(3, nil), true)
	assert.ErrorIs(t, err, regerr.ErrDimensionMismatch)
}
