// Package model runs the whole ordinary least squares pipeline for a formula:
// design matrix construction, collinearity removal, the least squares solve,
// the selected covariance policy and the inference statistics.
//
// A fit either returns a complete Result or an error; there are no partial
// results.
package model

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"formulareg/collinear"
	"formulareg/covariance"
	"formulareg/design"
	"formulareg/diagnostics"
	"formulareg/estimate"
	"formulareg/formula"
)

type options struct {
	logger    *zap.Logger
	tolerance float64
}

// Option configures a fit.
type Option func(*options)

// WithLogger routes pipeline logs to l. The default discards them.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTolerance sets the relative collinearity threshold; values <= 0 keep
// collinear.DefaultTolerance.
func WithTolerance(tol float64) Option {
	return func(o *options) {
		if tol > 0 {
			o.tolerance = tol
		}
	}
}

// Result is a completed fit.
type Result struct {
	Formula *formula.Formula
	Policy  covariance.Policy

	// Kept design columns, parallel to the coefficient vector
	Names []string
	// Design columns dropped as exactly collinear
	Omitted      []string
	Collinearity *collinear.Report

	// Kept design matrix and response the fit was computed on
	X *mat.Dense
	Y *mat.VecDense

	Fit        *estimate.Fit
	Covariance *mat.SymDense
	Stats      *estimate.Inference
}

// Coefficient is one row of the coefficient table.
type Coefficient struct {
	Name     string
	Estimate float64
	StdErr   float64
	T        float64
	P        float64
	CILower  float64
	CIUpper  float64
}

// FromFormula compiles src and fits it.
func FromFormula(src string, data design.ColumnAccessor, policy covariance.Policy, opts ...Option) (*Result, error) {
	f, err := formula.Compile(src)
	if err != nil {
		return nil, err
	}
	return Fit(f, data, policy, opts...)
}

// Fit estimates f on data with the covariance policy.
func Fit(f *formula.Formula, data design.ColumnAccessor, policy covariance.Policy, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop(), tolerance: collinear.DefaultTolerance}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger.With(zap.String("formula", f.String()))

	if policy == nil {
		policy = covariance.NonRobust{}
	}

	// 1. Design matrix
	dm, err := design.Build(f, data)
	if err != nil {
		return nil, fmt.Errorf("build design for %q: %w", f.Source, err)
	}
	n, k := dm.Dims()
	log.Debug("design matrix built", zap.Int("n", n), zap.Int("k", k), zap.Strings("columns", dm.Names))

	// 2. Drop exactly collinear columns
	X, report, err := collinear.Remove(dm.X, dm.Names, o.tolerance)
	if err != nil {
		return nil, err
	}
	if len(report.Omitted) > 0 {
		log.Warn("omitted collinear columns",
			zap.Strings("omitted", report.OmittedNames),
			zap.Int("rank", report.Rank),
		)
	}

	// 3. Least squares
	fit, err := estimate.FitLeastSquares(X, dm.Response)
	if err != nil {
		return nil, err
	}

	// 4. Covariance and inference
	cov, err := covariance.Compute(X, fit.Residuals, policy)
	if err != nil {
		return nil, fmt.Errorf("%s covariance: %w", policy, err)
	}
	stats, err := estimate.Infer(fit, dm.Response, cov, f.Intercept && hasIntercept(report.KeptNames))
	if err != nil {
		return nil, err
	}

	log.Info("model fitted",
		zap.Int("n", n),
		zap.Int("k", report.Rank),
		zap.Stringer("covariance", policy),
		zap.Float64("r2", stats.RSquared),
	)

	return &Result{
		Formula:      f,
		Policy:       policy,
		Names:        report.KeptNames,
		Omitted:      report.OmittedNames,
		Collinearity: report,
		X:            X,
		Y:            dm.Response,
		Fit:          fit,
		Covariance:   cov,
		Stats:        stats,
	}, nil
}

func hasIntercept(names []string) bool {
	return len(names) > 0 && names[0] == design.InterceptName
}

// Coefficients returns the coefficient table in design column order.
func (r *Result) Coefficients() []Coefficient {
	out := make([]Coefficient, len(r.Names))
	for j, name := range r.Names {
		out[j] = Coefficient{
			Name:     name,
			Estimate: r.Fit.Coefficients.AtVec(j),
			StdErr:   r.Stats.StdErrors[j],
			T:        r.Stats.TValues[j],
			P:        r.Stats.PValues[j],
			CILower:  r.Stats.CILower[j],
			CIUpper:  r.Stats.CIUpper[j],
		}
	}
	return out
}

// Coefficient looks up one kept column by name.
func (r *Result) Coefficient(name string) (Coefficient, bool) {
	for j, n := range r.Names {
		if n == name {
			return r.Coefficients()[j], true
		}
	}
	return Coefficient{}, false
}

// Diagnostics computes the whole-model diagnostics of the fit.
func (r *Result) Diagnostics() (*diagnostics.Summary, error) {
	return diagnostics.Summarize(r.X, r.Fit.Residuals)
}

// VIF returns the variance inflation factor of each kept column.
func (r *Result) VIF() ([]float64, error) {
	return diagnostics.VIF(r.X)
}
