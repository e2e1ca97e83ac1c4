// Package design expands compiled formulas into numeric design matrices.
//
// Data is read through the narrow ColumnAccessor interface; the package never
// writes to it. DataFrame is the in-memory accessor used by the command and
// the tests, and LoadCSV fills one from a numeric CSV file.
package design

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"formulareg/regerr"
)

// InterceptName is the column name given to the leading column of ones.
const InterceptName = "Intercept"

// ColumnAccessor is the view of a tabular store the builder consumes.
// Implementations must not be mutated while a fit is running.
type ColumnAccessor interface {
	// Column returns the values of a variable; callers must treat the slice
	// as read-only. Fails with *regerr.VariableNotFoundError.
	Column(name string) ([]float64, error)
	// Has reports whether the variable exists.
	Has(name string) bool
	// RowCount is the number of observations.
	RowCount() int
}

// Matrix is a materialised design: response, raw design matrix and the
// column names, parallel to the matrix columns.
type Matrix struct {
	Response *mat.VecDense
	X        *mat.Dense
	Names    []string
}

// Dims returns the number of observations and design columns.
func (m *Matrix) Dims() (n, k int) {
	return m.X.Dims()
}

// DataFrame is a column-oriented in-memory table with equal-length columns.
type DataFrame struct {
	names   []string
	columns map[string][]float64
	rows    int
}

// NewDataFrame builds a frame from parallel name and column slices.
func NewDataFrame(names []string, columns [][]float64) (*DataFrame, error) {
	if len(names) != len(columns) {
		return nil, &regerr.DimensionMismatchError{What: "column names vs columns", Expected: len(names), Actual: len(columns)}
	}

	df := &DataFrame{columns: make(map[string][]float64, len(names))}
	for i, name := range names {
		if _, dup := df.columns[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		if i == 0 {
			df.rows = len(columns[i])
		} else if len(columns[i]) != df.rows {
			return nil, &regerr.DimensionMismatchError{What: fmt.Sprintf("length of column %q", name), Expected: df.rows, Actual: len(columns[i])}
		}
		df.names = append(df.names, name)
		df.columns[name] = columns[i]
	}
	return df, nil
}

// FromMap builds a frame from a name -> values map; columns are ordered by name.
func FromMap(data map[string][]float64) (*DataFrame, error) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := make([][]float64, len(names))
	for i, name := range names {
		columns[i] = data[name]
	}
	return NewDataFrame(names, columns)
}

func (df *DataFrame) Column(name string) ([]float64, error) {
	col, ok := df.columns[name]
	if !ok {
		return nil, &regerr.VariableNotFoundError{Name: name}
	}
	return col, nil
}

func (df *DataFrame) Has(name string) bool {
	_, ok := df.columns[name]
	return ok
}

func (df *DataFrame) RowCount() int { return df.rows }

// Names lists the columns in insertion order.
func (df *DataFrame) Names() []string {
	out := make([]string, len(df.names))
	copy(out, df.names)
	return out
}
