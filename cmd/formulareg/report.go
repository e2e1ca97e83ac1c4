package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"formulareg/diagnostics"
	"formulareg/model"
)

// PrintSummary writes the regression table and fit statistics of res.
// diag may be nil when the diagnostics could not be computed.
func PrintSummary(w io.Writer, res *model.Result, diag *diagnostics.Summary) {
	s := res.Stats

	fmt.Fprintln(w, "                OLS Regression Results")
	fmt.Fprintln(w, strings.Repeat("=", 78))
	fmt.Fprintf(w, "%-18s %-22s %-18s %10.4f\n", "Dep. Variable:", res.Formula.Response, "R-squared:", s.RSquared)
	fmt.Fprintf(w, "%-18s %-22s %-18s %10.4f\n", "Covariance Type:", res.Policy, "Adj. R-squared:", s.AdjRSquared)
	fmt.Fprintf(w, "%-18s %-22d %-18s %10.4f\n", "No. Observations:", s.Observations, "F-statistic:", s.FStatistic)
	fmt.Fprintf(w, "%-18s %-22d %-18s %10.4g\n", "Df Model:", s.DFModel, "Prob (F):", s.FPValue)
	fmt.Fprintf(w, "%-18s %-22d %-18s %10.4f\n", "Df Residuals:", s.DFResid, "Log-Likelihood:", s.LogLikelihood)
	fmt.Fprintf(w, "%-18s %-22.4f %-18s %10.4f\n", "AIC:", s.AIC, "BIC:", s.BIC)
	fmt.Fprintln(w, strings.Repeat("-", 78))

	// Coefficient table
	fmt.Fprintf(w, "%-20s %10s %10s %8s %8s %10s %10s\n", "Variable", "coef", "std err", "t", "P>|t|", "[0.025", "0.975]")
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, c := range res.Coefficients() {
		fmt.Fprintf(w, "%-20s %10.4f %10.4f %8.3f %8.3f %10.4f %10.4f\n",
			c.Name, c.Estimate, c.StdErr, c.T, c.P, c.CILower, c.CIUpper)
	}
	fmt.Fprintln(w, strings.Repeat("=", 78))

	if len(res.Omitted) > 0 {
		fmt.Fprintf(w, "Omitted (collinear): %s\n", strings.Join(res.Omitted, ", "))
	}

	if diag != nil {
		fmt.Fprintf(w, "%-18s %10.4f   %-18s %10.4g\n", "Durbin-Watson:", diag.DurbinWatson, "Cond. No.:", diag.ConditionNumber)
		fmt.Fprintf(w, "%-18s %10.4f   %-18s %10.4g\n", "Jarque-Bera:", diag.JarqueBera.Statistic, "Prob(JB):", diag.JarqueBera.PValue)
		fmt.Fprintf(w, "%-18s %10.4f   %-18s %10.4g\n", "Breusch-Pagan:", diag.BreuschPagan.Statistic, "Prob(BP):", diag.BreuschPagan.PValue)
	}
}

// PrintCovariance writes the coefficient covariance matrix.
func PrintCovariance(w io.Writer, res *model.Result) {
	fmt.Fprintf(w, "\n=== Covariance (%s) ===\n", res.Policy)
	fmt.Fprintf(w, "%v\n", mat.Formatted(res.Covariance, mat.Prefix(" ")))
}

// OutputCoefficientsToCSV writes one row per kept column.
// Columns: Variable, Coef, StdErr, T, P, CILower, CIUpper
func OutputCoefficientsToCSV(path string, res *model.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := writeCoefficients(file, res); err != nil {
		return err
	}
	return file.Close()
}

func writeCoefficients(w io.Writer, res *model.Result) error {
	writer := csv.NewWriter(w)

	// Write header
	if err := writer.Write([]string{"Variable", "Coef", "StdErr", "T", "P", "CILower", "CIUpper"}); err != nil {
		return err
	}

	// Write data rows
	for _, c := range res.Coefficients() {
		record := []string{
			c.Name,
			formatFloat(c.Estimate),
			formatFloat(c.StdErr),
			formatFloat(c.T),
			formatFloat(c.P),
			formatFloat(c.CILower),
			formatFloat(c.CIUpper),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// OutputOmittedToCSV writes the omitted column names, one per row.
func OutputOmittedToCSV(path string, omitted []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Omitted"}); err != nil {
		return err
	}
	for _, name := range omitted {
		if err := writer.Write([]string{name}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}

// omittedPath derives the omitted-columns file from the coefficients path.
func omittedPath(coefPath string) string {
	return strings.TrimSuffix(coefPath, ".csv") + "_omitted.csv"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
