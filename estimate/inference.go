package estimate

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"formulareg/regerr"
)

// ConfidenceLevel of the reported coefficient intervals.
const ConfidenceLevel = 0.95

// Inference bundles per-coefficient tests and whole-model fit statistics.
type Inference struct {
	StdErrors []float64
	TValues   []float64
	PValues   []float64 // two-sided, Student t with DFResid degrees of freedom
	CILower   []float64
	CIUpper   []float64

	Observations int
	DFModel      int
	DFResid      int

	RSS         float64
	TSS         float64 // centred when the model has an intercept
	SigmaSq     float64 // RSS / DFResid
	RSquared    float64
	AdjRSquared float64
	FStatistic  float64
	FPValue     float64 // NaN when DFModel is 0

	LogLikelihood float64
	AIC           float64
	BIC           float64
}

// Infer computes the inference statistics of fit against the response y,
// using cov as the coefficient covariance. intercept selects the centred
// total sum of squares and drops one model degree of freedom.
func Infer(fit *Fit, y mat.Vector, cov mat.Symmetric, intercept bool) (*Inference, error) {
	n, k := fit.Dims()
	if y.Len() != n {
		return nil, &regerr.DimensionMismatchError{What: "response length vs residuals", Expected: n, Actual: y.Len()}
	}
	if cov.SymmetricDim() != k {
		return nil, &regerr.DimensionMismatchError{What: "covariance dimension vs coefficients", Expected: k, Actual: cov.SymmetricDim()}
	}
	dfResid := n - k
	if dfResid <= 0 {
		return nil, &regerr.InsufficientObservationsError{Observations: n, Parameters: k}
	}

	inf := &Inference{
		StdErrors:    make([]float64, k),
		TValues:      make([]float64, k),
		PValues:      make([]float64, k),
		CILower:      make([]float64, k),
		CIUpper:      make([]float64, k),
		Observations: n,
		DFResid:      dfResid,
	}

	// 1. Coefficient tests
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dfResid)}
	tCrit := tDist.Quantile(1 - (1-ConfidenceLevel)/2)
	for j := 0; j < k; j++ {
		b := fit.Coefficients.AtVec(j)
		v := cov.At(j, j)
		se := math.NaN()
		if v >= 0 {
			se = math.Sqrt(v)
		}
		inf.StdErrors[j] = se
		inf.TValues[j] = b / se
		inf.PValues[j] = 2 * tDist.Survival(math.Abs(inf.TValues[j]))
		inf.CILower[j] = b - tCrit*se
		inf.CIUpper[j] = b + tCrit*se
	}

	// 2. Sums of squares
	inf.RSS = fit.RSS()
	inf.TSS = totalSS(y, intercept)
	inf.DFModel = k
	if intercept {
		inf.DFModel = k - 1
	}
	inf.SigmaSq = inf.RSS / float64(dfResid)

	// 3. Goodness of fit
	inf.RSquared = rSquared(inf.RSS, inf.TSS)
	dfTotal := float64(n)
	if intercept {
		dfTotal = float64(n - 1)
	}
	inf.AdjRSquared = 1 - (1-inf.RSquared)*dfTotal/float64(dfResid)

	// 4. Overall F test against the intercept-only (or empty) model
	inf.FPValue = math.NaN()
	if inf.DFModel > 0 {
		msm := (inf.TSS - inf.RSS) / float64(inf.DFModel)
		if inf.SigmaSq < 1e-12 {
			inf.FStatistic = 0
		} else {
			inf.FStatistic = msm / inf.SigmaSq
		}
		if inf.FStatistic <= 0 || math.IsNaN(inf.FStatistic) {
			inf.FPValue = 1
		} else {
			fDist := distuv.F{D1: float64(inf.DFModel), D2: float64(dfResid)}
			inf.FPValue = fDist.Survival(inf.FStatistic)
		}
	}

	// 5. Gaussian log-likelihood and information criteria
	nf := float64(n)
	inf.LogLikelihood = -nf / 2 * (math.Log(2*math.Pi) + math.Log(inf.RSS/nf) + 1)
	inf.AIC = 2*float64(k) - 2*inf.LogLikelihood
	inf.BIC = float64(k)*math.Log(nf) - 2*inf.LogLikelihood

	return inf, nil
}

// RSquared is 1 - RSS/TSS for fit against y, with TSS centred when the
// model has an intercept. A constant response gives 0.
func RSquared(fit *Fit, y mat.Vector, intercept bool) float64 {
	return rSquared(fit.RSS(), totalSS(y, intercept))
}

func rSquared(rss, tss float64) float64 {
	if math.Abs(tss) < 1e-12 {
		return 0
	}
	return 1 - rss/tss
}

func totalSS(y mat.Vector, centred bool) float64 {
	ys := mat.Col(nil, 0, y)
	mean := 0.0
	if centred {
		mean = stat.Mean(ys, nil)
	}
	tss := 0.0
	for _, v := range ys {
		tss += (v - mean) * (v - mean)
	}
	return tss
}
