// Command formulareg fits an ordinary least squares model described by an
// R-style formula to a numeric CSV file and reports coefficients with the
// selected robust covariance.
//
// Usage:
//
//	formulareg --data data.csv --formula "y ~ x1 + C(region)" --covariance hc3
//	formulareg --model model.yaml --data data.csv --output coef.csv
package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"formulareg/cmd/formulareg/config"
	"formulareg/covariance"
	"formulareg/design"
	"formulareg/internal/logging"
	"formulareg/model"
	"formulareg/regerr"
)

func main() {
	fs := flag.NewFlagSet("formulareg", flag.ContinueOnError)
	config.BindFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("fit failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// run loads the data, fits the model and writes the reports.
func run(cfg *config.Config, logger *zap.Logger) error {
	// 1. Load CSV into a DataFrame
	df, err := design.LoadCSV(cfg.DataPath)
	if err != nil {
		return err
	}
	logger.Info("loaded data",
		zap.String("path", cfg.DataPath),
		zap.Int("rows", df.RowCount()),
		zap.Strings("columns", df.Names()),
	)

	// 2. Resolve the covariance policy
	policy, err := buildPolicy(cfg.Covariance, df)
	if err != nil {
		return err
	}

	// 3. Fit
	res, err := model.FromFormula(cfg.Formula, df, policy,
		model.WithLogger(logger),
		model.WithTolerance(cfg.Tolerance),
	)
	if err != nil {
		return err
	}

	// 4. Print summary; diagnostics are informative only
	diag, err := res.Diagnostics()
	if err != nil {
		logger.Warn("diagnostics unavailable", zap.Error(err))
	}
	PrintSummary(os.Stdout, res, diag)
	PrintCovariance(os.Stdout, res)

	// 5. Output coefficients and omitted columns to CSV
	if cfg.OutputPath == "" {
		return nil
	}
	if err := OutputCoefficientsToCSV(cfg.OutputPath, res); err != nil {
		return fmt.Errorf("write coefficients: %w", err)
	}
	logger.Info("coefficients written", zap.String("path", cfg.OutputPath))

	if len(res.Omitted) > 0 {
		path := omittedPath(cfg.OutputPath)
		if err := OutputOmittedToCSV(path, res.Omitted); err != nil {
			return fmt.Errorf("write omitted columns: %w", err)
		}
		logger.Info("omitted columns written", zap.String("path", path))
	}
	return nil
}

// buildPolicy turns the configured covariance into a policy, reading
// cluster ids from the named data columns.
func buildPolicy(spec config.CovarianceSpec, data design.ColumnAccessor) (covariance.Policy, error) {
	var ids1, ids2 []int
	var err error
	if spec.Cluster != "" {
		if ids1, err = clusterIDs(data, spec.Cluster); err != nil {
			return nil, err
		}
	}
	if spec.Cluster2 != "" {
		if ids2, err = clusterIDs(data, spec.Cluster2); err != nil {
			return nil, err
		}
	}
	return covariance.FromName(spec.Type, spec.Lags, ids1, ids2)
}

// clusterIDs codes the distinct values of a column as 0, 1, ... in order of
// first appearance. NaN ids are rejected.
func clusterIDs(data design.ColumnAccessor, name string) ([]int, error) {
	col, err := data.Column(name)
	if err != nil {
		return nil, fmt.Errorf("cluster column: %w", err)
	}
	codes := make(map[float64]int)
	ids := make([]int, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("cluster column: %w", &regerr.MissingValueError{Name: name, Row: i})
		}
		id, ok := codes[v]
		if !ok {
			id = len(codes)
			codes[v] = id
		}
		ids[i] = id
	}
	return ids, nil
}
