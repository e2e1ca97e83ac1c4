// Package regerr holds the error taxonomy shared by the formula compiler and
// the estimation engine.
//
// Every error type matches its sentinel with errors.Is, so callers can test
// the category without caring about the concrete fields:
//
//	if errors.Is(err, regerr.ErrVariableNotFound) { ... }
//
// and use errors.As when they need the context (variable name, expected vs.
// actual dimension, degrees-of-freedom shortfall).
package regerr

import (
	"errors"
	"fmt"
)

// Sentinels, one per category.
var (
	ErrParse                    = errors.New("formula parse error")
	ErrVariableNotFound         = errors.New("variable not found")
	ErrDimensionMismatch        = errors.New("dimension mismatch")
	ErrSingular                 = errors.New("singular system")
	ErrInsufficientObservations = errors.New("insufficient observations")
	ErrInvalidCluster           = errors.New("invalid cluster specification")
	ErrInvalidLag               = errors.New("invalid lag specification")
	ErrMissingValue             = errors.New("missing value")
)

// ParseError reports a malformed formula string.
type ParseError struct {
	Source string // the formula as given
	Pos    int    // byte offset of the problem, -1 when not tied to a position
	Msg    string
}

func (e *ParseError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("formula %q: %s", e.Source, e.Msg)
	}
	return fmt.Sprintf("formula %q: at offset %d: %s", e.Source, e.Pos, e.Msg)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// VariableNotFoundError reports a formula variable missing from the data source.
type VariableNotFoundError struct {
	Name string
}

func (e *VariableNotFoundError) Error() string {
	return fmt.Sprintf("variable not found in data: %q", e.Name)
}

func (e *VariableNotFoundError) Is(target error) bool { return target == ErrVariableNotFound }

// MissingValueError reports a NaN where a category level or cluster id is
// needed.
type MissingValueError struct {
	Name string
	Row  int
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("missing value: %q is NaN at row %d", e.Name, e.Row)
}

func (e *MissingValueError) Is(target error) bool { return target == ErrMissingValue }

// DimensionMismatchError reports a length or shape disagreement.
type DimensionMismatchError struct {
	What     string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: %s: expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// SingularSystemError reports a system that cannot be solved or inverted.
type SingularSystemError struct {
	Detail string
}

func (e *SingularSystemError) Error() string {
	if e.Detail == "" {
		return "singular system"
	}
	return "singular system: " + e.Detail
}

func (e *SingularSystemError) Is(target error) bool { return target == ErrSingular }

// InsufficientObservationsError reports too few rows for the parameter count.
type InsufficientObservationsError struct {
	Observations int
	Parameters   int
}

func (e *InsufficientObservationsError) Error() string {
	return fmt.Sprintf("insufficient observations: n = %d, k = %d (residual degrees of freedom %d)",
		e.Observations, e.Parameters, e.Observations-e.Parameters)
}

func (e *InsufficientObservationsError) Is(target error) bool {
	return target == ErrInsufficientObservations
}

// InvalidClusterSpecificationError reports an unusable cluster id vector.
type InvalidClusterSpecificationError struct {
	Observations int
	IDs          int // length of the id vector
	Clusters     int // distinct ids, 0 when the length was already wrong
}

func (e *InvalidClusterSpecificationError) Error() string {
	if e.IDs != e.Observations {
		return fmt.Sprintf("invalid cluster specification: %d cluster ids for %d observations", e.IDs, e.Observations)
	}
	return fmt.Sprintf("invalid cluster specification: need at least 2 clusters, got %d", e.Clusters)
}

func (e *InvalidClusterSpecificationError) Is(target error) bool { return target == ErrInvalidCluster }

// InvalidLagSpecificationError reports a Newey-West lag outside [0, n).
type InvalidLagSpecificationError struct {
	Lags         int
	Observations int
}

func (e *InvalidLagSpecificationError) Error() string {
	return fmt.Sprintf("invalid lag specification: lags = %d must be in [0, %d)", e.Lags, e.Observations)
}

func (e *InvalidLagSpecificationError) Is(target error) bool { return target == ErrInvalidLag }
