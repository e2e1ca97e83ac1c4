// Package diagnostics computes regression diagnostics on a kept design
// matrix and its residuals: hat values, variance inflation factors, the
// condition number, Cook's distance and the Durbin-Watson, Jarque-Bera and
// Breusch-Pagan statistics.
package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"formulareg/covariance"
	"formulareg/estimate"
	"formulareg/regerr"
)

// TestResult is a test statistic with its degrees of freedom and p-value.
type TestResult struct {
	Statistic float64
	DF        float64
	PValue    float64
}

// Leverage returns the diagonal of the hat matrix X (X'X)^-1 X'.
func Leverage(X mat.Matrix) ([]float64, error) {
	bread, err := covariance.Bread(X)
	if err != nil {
		return nil, err
	}
	return covariance.Leverage(X, bread), nil
}

// VIF returns the variance inflation factor of every column of X. Constant
// columns (the intercept) get NaN; an exactly explained column gets +Inf.
func VIF(X mat.Matrix) ([]float64, error) {
	n, k := X.Dims()
	if n == 0 || k == 0 {
		return nil, &regerr.InsufficientObservationsError{Observations: n, Parameters: k}
	}

	cols := make([][]float64, k)
	constant := make([]bool, k)
	hasConst := false
	for j := 0; j < k; j++ {
		cols[j] = mat.Col(nil, j, X)
		constant[j] = floats.Max(cols[j]) == floats.Min(cols[j]) && cols[j][0] != 0
		hasConst = hasConst || constant[j]
	}

	vif := make([]float64, k)
	for j := 0; j < k; j++ {
		if constant[j] {
			vif[j] = math.NaN()
			continue
		}

		if k == 1 {
			vif[j] = 1
			continue
		}

		// regress column j on every other column
		others := mat.NewDense(n, k-1, nil)
		c := 0
		for o := 0; o < k; o++ {
			if o == j {
				continue
			}
			others.SetCol(c, cols[o])
			c++
		}
		target := mat.NewVecDense(n, cols[j])
		aux, err := estimate.FitLeastSquares(others, target)
		if err != nil {
			return nil, err
		}
		r2 := estimate.RSquared(aux, target, hasConst)
		if r2 >= 1 {
			vif[j] = math.Inf(1)
		} else {
			vif[j] = 1 / (1 - r2)
		}
	}
	return vif, nil
}

// ConditionNumber is the ratio of the largest to the smallest singular value
// of X; +Inf when X is rank deficient.
func ConditionNumber(X mat.Matrix) (float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDNone); !ok {
		return 0, &regerr.SingularSystemError{Detail: "SVD of the design matrix did not converge"}
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0, &regerr.DimensionMismatchError{What: "design columns", Expected: 1, Actual: 0}
	}
	smallest := values[len(values)-1]
	if smallest == 0 {
		return math.Inf(1), nil
	}
	return values[0] / smallest, nil
}

// CooksDistance returns e_i^2 h_i / (k s^2 (1-h_i)^2) for each observation,
// with s^2 = e'e/(n-k). Rows with h_i at or above 0.9999 get NaN.
func CooksDistance(X mat.Matrix, e mat.Vector) ([]float64, error) {
	n, k := X.Dims()
	if e.Len() != n {
		return nil, &regerr.DimensionMismatchError{What: "residuals vs design rows", Expected: n, Actual: e.Len()}
	}
	if n <= k {
		return nil, &regerr.InsufficientObservationsError{Observations: n, Parameters: k}
	}

	h, err := Leverage(X)
	if err != nil {
		return nil, err
	}
	s2 := mat.Dot(e, e) / float64(n-k)

	d := make([]float64, n)
	for i, hi := range h {
		if hi >= 0.9999 || s2 == 0 {
			d[i] = math.NaN()
			continue
		}
		ei := e.AtVec(i)
		d[i] = ei * ei * hi / (float64(k) * s2 * (1 - hi) * (1 - hi))
	}
	return d, nil
}

// DurbinWatson is sum (e_t - e_{t-1})^2 / sum e_t^2, in [0, 4]. It is 0 for
// fewer than two residuals or all-zero residuals.
func DurbinWatson(e mat.Vector) float64 {
	n := e.Len()
	if n < 2 {
		return 0
	}
	num := 0.0
	for t := 1; t < n; t++ {
		d := e.AtVec(t) - e.AtVec(t-1)
		num += d * d
	}
	den := mat.Dot(e, e)
	if den == 0 {
		return 0
	}
	return num / den
}

// JarqueBera tests residual normality from sample skewness and kurtosis;
// the statistic is chi-squared with 2 degrees of freedom under H0.
func JarqueBera(e mat.Vector) (TestResult, error) {
	n := e.Len()
	if n < 3 {
		return TestResult{}, &regerr.InsufficientObservationsError{Observations: n, Parameters: 3}
	}
	r := mat.Col(nil, 0, e)
	mean := stat.Mean(r, nil)
	m2 := stat.MomentAbout(2, r, mean, nil)
	m3 := stat.MomentAbout(3, r, mean, nil)
	m4 := stat.MomentAbout(4, r, mean, nil)
	if m2 == 0 {
		return TestResult{}, &regerr.SingularSystemError{Detail: "residuals have zero variance"}
	}

	skew := m3 / math.Pow(m2, 1.5)
	kurt := m4 / (m2 * m2)
	jb := float64(n) / 6 * (skew*skew + (kurt-3)*(kurt-3)/4)

	chi2 := distuv.ChiSquared{K: 2}
	return TestResult{Statistic: jb, DF: 2, PValue: chi2.Survival(jb)}, nil
}

// BreuschPagan regresses e^2 on X and returns LM = n R^2, chi-squared with
// k-1 degrees of freedom (at least 1) under homoskedasticity.
func BreuschPagan(X mat.Matrix, e mat.Vector) (TestResult, error) {
	n, k := X.Dims()
	if e.Len() != n {
		return TestResult{}, &regerr.DimensionMismatchError{What: "residuals vs design rows", Expected: n, Actual: e.Len()}
	}

	sq := mat.NewVecDense(n, nil)
	sq.MulElemVec(e, e)

	aux, err := estimate.FitLeastSquares(X, sq)
	if err != nil {
		return TestResult{}, err
	}
	lm := float64(n) * estimate.RSquared(aux, sq, true)

	df := float64(k - 1)
	if df <= 0 {
		df = 1
	}
	chi2 := distuv.ChiSquared{K: df}
	return TestResult{Statistic: lm, DF: df, PValue: chi2.Survival(lm)}, nil
}

// Summary gathers the whole-model diagnostics for a report.
type Summary struct {
	ConditionNumber float64
	DurbinWatson    float64
	JarqueBera      TestResult
	BreuschPagan    TestResult
}

// Summarize computes every whole-model diagnostic of a fit.
func Summarize(X mat.Matrix, e mat.Vector) (*Summary, error) {
	cond, err := ConditionNumber(X)
	if err != nil {
		return nil, err
	}
	jb, err := JarqueBera(e)
	if err != nil {
		return nil, err
	}
	bp, err := BreuschPagan(X, e)
	if err != nil {
		return nil, err
	}
	return &Summary{
		ConditionNumber: cond,
		DurbinWatson:    DurbinWatson(e),
		JarqueBera:      jb,
		BreuschPagan:    bp,
	}, nil
}
