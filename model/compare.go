package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"formulareg/regerr"
)

// FTest is the outcome of comparing a restricted model with a larger one.
type FTest struct {
	// Columns of the full model missing from the restricted one
	Restrictions []string
	FStatistic   float64
	DF1          int // number of restrictions
	DF2          int // residual degrees of freedom of the full model
	PValue       float64
	Significant  bool // PValue < 0.05

	// Share of the restricted model's residual variation explained by the
	// restricted columns: (RSS_R - RSS_U) / RSS_R
	PartialRSquared float64
}

// CompareNested tests H0: the columns the restricted model drops all have
// zero coefficients in the full model. Both fits must use the same
// observations, and every kept column of restricted must be kept by full.
// The test uses the classical residual sums of squares whatever the
// covariance policies of the fits were.
func CompareNested(restricted, full *Result) (*FTest, error) {
	n, kFull := full.X.Dims()
	nR, kR := restricted.X.Dims()
	if nR != n {
		return nil, &regerr.DimensionMismatchError{What: "observations of nested models", Expected: n, Actual: nR}
	}

	inFull := make(map[string]bool, len(full.Names))
	for _, name := range full.Names {
		inFull[name] = true
	}
	inRestricted := make(map[string]bool, len(restricted.Names))
	for _, name := range restricted.Names {
		if !inFull[name] {
			return nil, fmt.Errorf("column %q of the restricted model is not in the full model", name)
		}
		inRestricted[name] = true
	}

	var dropped []string
	for _, name := range full.Names {
		if !inRestricted[name] {
			dropped = append(dropped, name)
		}
	}
	q := kFull - kR
	if q <= 0 {
		return nil, fmt.Errorf("full model has no columns beyond the restricted model")
	}

	dof := n - kFull
	if dof <= 0 {
		return nil, &regerr.InsufficientObservationsError{Observations: n, Parameters: kFull}
	}

	rssU := full.Fit.RSS()
	rssR := restricted.Fit.RSS()

	// In theory rssR >= rssU; rounding can leave a tiny negative difference
	num := rssR - rssU
	if num < 0 {
		num = 0
	}
	den := rssU / float64(dof)

	res := &FTest{Restrictions: dropped, DF1: q, DF2: dof, PValue: 1}
	if rssR > 0 {
		res.PartialRSquared = num / rssR
	}
	if den > 0 && num > 0 {
		res.FStatistic = (num / float64(q)) / den
		if !math.IsNaN(res.FStatistic) && !math.IsInf(res.FStatistic, 0) {
			fDist := distuv.F{D1: float64(q), D2: float64(dof)}
			res.PValue = math.Min(1, math.Max(0, fDist.Survival(res.FStatistic)))
		} else {
			res.FStatistic = 0
		}
	}
	res.Significant = res.PValue < 0.05
	return res, nil
}
