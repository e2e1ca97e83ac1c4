package diagnostics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"formulareg/estimate"
	"formulareg/regerr"
)

// almostEqual compares floats with tolerance
func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func withIntercept(cols ...[]float64) *mat.Dense {
	n := len(cols[0])
	X := mat.NewDense(n, len(cols)+1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j, c := range cols {
			X.Set(i, j+1, c[i])
		}
	}
	return X
}

func TestLeverage(t *testing.T) {
	X := withIntercept([]float64{1, 2, 3, 4, 10})
	h, err := Leverage(X)
	require.NoError(t, err)

	sum := 0.0
	for i, hi := range h {
		if hi < 0 || hi > 1+1e-12 {
			t.Errorf("h[%d] = %v out of [0, 1]", i, hi)
		}
		sum += hi
	}
	assert.InDelta(t, 2, sum, 1e-10)

	// the outlying x has the largest hat value
	for i := 0; i < 4; i++ {
		assert.Less(t, h[i], h[4])
	}

	// simple regression closed form 1/n + (x-xbar)^2/Sxx
	xbar, sxx := 4.0, 0.0
	for _, x := range []float64{1, 2, 3, 4, 10} {
		sxx += (x - xbar) * (x - xbar)
	}
	if !almostEqual(h[0], 0.2+9/sxx, 1e-12) {
		t.Errorf("h[0] = %v; want %v", h[0], 0.2+9/sxx)
	}
}

func TestVIF(t *testing.T) {
	tests := []struct {
		x1, x2 []float64
		min    float64 // lower bound on the non-intercept VIFs
	}{
		{[]float64{1, 2, 3, 4, 5, 6}, []float64{3, 1, 4, 1, 5, 9}, 1},
		{[]float64{1, 2, 3, 4, 5, 6}, []float64{1.1, 2.0, 3.1, 3.9, 5.2, 5.9}, 10},
	}

	for i, test := range tests {
		vif, err := VIF(withIntercept(test.x1, test.x2))
		require.NoError(t, err)
		require.Len(t, vif, 3)
		if !math.IsNaN(vif[0]) {
			t.Errorf("Test %d: intercept VIF = %v; want NaN", i+1, vif[0])
		}
		for j := 1; j < 3; j++ {
			if !(vif[j] >= test.min) || math.IsInf(vif[j], 0) {
				t.Errorf("Test %d: VIF[%d] = %v; want finite >= %v", i+1, j, vif[j], test.min)
			}
		}
		// with two regressors both VIFs are 1/(1-r^2)
		if !almostEqual(vif[1], vif[2], 1e-9*vif[1]) {
			t.Errorf("Test %d: VIF[1] = %v, VIF[2] = %v; want equal", i+1, vif[1], vif[2])
		}
	}
}

func TestConditionNumber(t *testing.T) {
	I := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0, 0})
	c, err := ConditionNumber(I)
	require.NoError(t, err)
	assert.InDelta(t, 1, c, 1e-12)

	D := mat.NewDense(2, 2, []float64{4, 0, 0, 0.5})
	c, err = ConditionNumber(D)
	require.NoError(t, err)
	assert.InDelta(t, 8, c, 1e-10)

	c, err = ConditionNumber(mat.NewDense(2, 2, []float64{1, 2, 2, 4}))
	require.NoError(t, err)
	assert.True(t, c > 1e15)
}

func TestCooksDistance(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7}
	y := mat.NewVecDense(7, []float64{1.1, 1.9, 3.2, 3.9, 5.1, 6.0, 12})
	X := withIntercept(x)
	fit, err := estimate.FitLeastSquares(X, y)
	require.NoError(t, err)

	d, err := CooksDistance(X, fit.Residuals)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.Less(t, d[i], d[6], "the outlier should dominate")
	}

	_, err = CooksDistance(X, mat.NewVecDense(3, nil))
	assert.ErrorIs(t, err, regerr.ErrDimensionMismatch)
}

func TestDurbinWatson(t *testing.T) {
	tests := []struct {
		e    []float64
		want float64
	}{
		{[]float64{1, -1, 1, -1}, 3},
		{[]float64{1, 1, 1, 1}, 0},
		{[]float64{0, 0, 0}, 0},
		{[]float64{5}, 0},
	}
	for i, test := range tests {
		got := DurbinWatson(mat.NewVecDense(len(test.e), test.e))
		if !almostEqual(got, test.want, 1e-12) {
			t.Errorf("Test %d: DurbinWatson = %v; want %v", i+1, got, test.want)
		}
	}
}

func TestJarqueBera(t *testing.T) {
	// symmetric residuals have zero skew
	e := mat.NewVecDense(6, []float64{-3, -1, 0, 0, 1, 3})
	res, err := JarqueBera(e)
	require.NoError(t, err)

	m2 := 20.0 / 6
	m4 := 164.0 / 6
	kurt := m4 / (m2 * m2)
	want := 1.0 * (kurt - 3) * (kurt - 3) / 4
	assert.InDelta(t, want, res.Statistic, 1e-12)
	assert.Equal(t, 2.0, res.DF)
	assert.InDelta(t, math.Exp(-want/2), res.PValue, 1e-12)

	_, err = JarqueBera(mat.NewVecDense(4, nil))
	assert.ErrorIs(t, err, regerr.ErrSingular)
}

func TestBreuschPagan(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	X := withIntercept(x)

	// residual spread grows with x
	e := mat.NewVecDense(10, []float64{0.1, -0.2, 0.4, -0.5, 0.8, -1.0, 1.3, -1.5, 1.9, -2.2})
	res, err := BreuschPagan(X, e)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.DF)
	assert.Greater(t, res.Statistic, 5.0)
	assert.Less(t, res.PValue, 0.05)

	flat := mat.NewVecDense(10, []float64{1, -1, 1, -1, 1, -1, 1, -1, 1, -1})
	res, err = BreuschPagan(X, flat)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.Statistic, 1e-9)
}

func TestSummarize(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	y := mat.NewVecDense(8, []float64{2.2, 3.8, 6.1, 8.3, 9.7, 12.2, 13.9, 16.1})
	X := withIntercept(x)
	fit, err := estimate.FitLeastSquares(X, y)
	require.NoError(t, err)

	s, err := Summarize(X, fit.Residuals)
	require.NoError(t, err)
	assert.True(t, s.DurbinWatson >= 0 && s.DurbinWatson <= 4)
	assert.Greater(t, s.ConditionNumber, 1.0)
	assert.True(t, s.JarqueBera.PValue >= 0 && s.JarqueBera.PValue <= 1)
}
