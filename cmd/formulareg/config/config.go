// Package config resolves the formulareg command settings.
//
// Precedence: flags > FORMULAREG_* environment > model file > defaults.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"formulareg/covariance"
)

// EnvPrefix prefixes every environment override, e.g. FORMULAREG_DATA.
const EnvPrefix = "FORMULAREG"

// flagBindings maps viper keys to pflag names.
var flagBindings = map[string]string{
	"MODEL":      "model",
	"DATA":       "data",
	"OUTPUT":     "output",
	"FORMULA":    "formula",
	"COVARIANCE": "covariance",
	"LAGS":       "lags",
	"CLUSTER":    "cluster",
	"CLUSTER2":   "cluster2",
	"LOG_LEVEL":  "log-level",
	"DEV":        "dev",
	"TOLERANCE":  "tolerance",
}

// ModelFile is the YAML model description.
//
//	formula: y ~ x1 + C(region)
//	covariance:
//	  type: cluster
//	  cluster: region
type ModelFile struct {
	Formula    string         `yaml:"formula"`
	Covariance CovarianceSpec `yaml:"covariance"`
}

// CovarianceSpec names a covariance policy. Cluster columns are data
// variables holding the cluster ids.
type CovarianceSpec struct {
	Type     string `yaml:"type"`
	Lags     int    `yaml:"lags"`
	Cluster  string `yaml:"cluster"`
	Cluster2 string `yaml:"cluster2"`
}

// Config is the resolved command configuration.
type Config struct {
	ModelPath  string
	DataPath   string
	OutputPath string

	Formula    string
	Covariance CovarianceSpec

	LogLevel    string
	Development bool
	Tolerance   float64
}

// BindFlags registers the command flags on fs.
func BindFlags(fs *flag.FlagSet) {
	fs.String("model", "", "YAML model file (formula and covariance)")
	fs.String("data", "", "numeric CSV data file with a header row")
	fs.String("output", "", "coefficients CSV to write; empty prints only")
	fs.String("formula", "", "model formula, overrides the model file")
	fs.String("covariance", "", "covariance type: "+strings.Join(covariance.Kinds, ", "))
	fs.Int("lags", -1, "Newey-West lags, overrides the model file")
	fs.String("cluster", "", "cluster id column")
	fs.String("cluster2", "", "second cluster id column for two-way clustering")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("dev", false, "human-readable development logging")
	fs.Float64("tolerance", 0, "relative collinearity tolerance, 0 for the default")
}

// Load resolves and validates the configuration. flagSet may be nil.
func Load(flagSet *flag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("MODEL", "")
	v.SetDefault("DATA", "")
	v.SetDefault("OUTPUT", "")
	v.SetDefault("FORMULA", "")
	v.SetDefault("COVARIANCE", "")
	v.SetDefault("LAGS", -1)
	v.SetDefault("CLUSTER", "")
	v.SetDefault("CLUSTER2", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DEV", false)
	v.SetDefault("TOLERANCE", 0.0)

	// Bind environment variables (precedence above defaults, below flags)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Bind pflag flags
	if flagSet != nil {
		for key, name := range flagBindings {
			if f := flagSet.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		ModelPath:   v.GetString("MODEL"),
		DataPath:    v.GetString("DATA"),
		OutputPath:  v.GetString("OUTPUT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Development: v.GetBool("DEV"),
		Tolerance:   v.GetFloat64("TOLERANCE"),
	}

	// The model file sits below flags and environment
	if cfg.ModelPath != "" {
		mf, err := ReadModelFile(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		cfg.Formula = mf.Formula
		cfg.Covariance = mf.Covariance
	}
	if s := v.GetString("FORMULA"); s != "" {
		cfg.Formula = s
	}
	if s := v.GetString("COVARIANCE"); s != "" {
		cfg.Covariance.Type = s
	}
	if lags := v.GetInt("LAGS"); lags >= 0 {
		cfg.Covariance.Lags = lags
	}
	if s := v.GetString("CLUSTER"); s != "" {
		cfg.Covariance.Cluster = s
	}
	if s := v.GetString("CLUSTER2"); s != "" {
		cfg.Covariance.Cluster2 = s
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ReadModelFile parses a YAML model file; unknown keys are rejected.
func ReadModelFile(path string) (*ModelFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}
	return ParseModelFile(raw)
}

// ParseModelFile parses YAML model file contents.
func ParseModelFile(raw []byte) (*ModelFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var mf ModelFile
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	mf.Formula = strings.TrimSpace(mf.Formula)
	return &mf, nil
}

// Validate fails fast on settings the command cannot run with.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Formula) == "" {
		return fmt.Errorf("no formula: set --formula, %s_FORMULA or formula in the model file", EnvPrefix)
	}
	if cfg.DataPath == "" {
		return fmt.Errorf("no data file: set --data or %s_DATA", EnvPrefix)
	}
	if cfg.Tolerance < 0 {
		return fmt.Errorf("tolerance must be >= 0, got %g", cfg.Tolerance)
	}

	cov := cfg.Covariance
	if cov.Type != "" && !covariance.KnownKind(cov.Type) {
		return fmt.Errorf("unknown covariance type %q (want one of %s)", cov.Type, strings.Join(covariance.Kinds, ", "))
	}
	switch strings.ToLower(strings.TrimSpace(cov.Type)) {
	case "neweywest":
		if cov.Lags < 0 {
			return fmt.Errorf("neweywest needs lags >= 0, got %d", cov.Lags)
		}
	case "cluster":
		if cov.Cluster == "" {
			return fmt.Errorf("cluster covariance needs a cluster column")
		}
	case "twoway":
		if cov.Cluster == "" || cov.Cluster2 == "" {
			return fmt.Errorf("twoway covariance needs cluster and cluster2 columns")
		}
	}
	return nil
}
