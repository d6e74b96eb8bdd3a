// Package config loads, defaults and validates the pipeline
// configuration. Every field carries a default, so running without a
// config file analyzes the built-in index set over the built-in crisis
// windows.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full pipeline configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Data     DataConfig     `yaml:"data"`
	Features FeaturesConfig `yaml:"features"`
	Regimes  RegimesConfig  `yaml:"regimes"`
	Stats    StatsConfig    `yaml:"stats"`
	Report   ReportConfig   `yaml:"report"`
	Fetch    FetchConfig    `yaml:"fetch"`
}

// LogConfig controls the zerolog output.
type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// DataConfig locates the input CSV files.
type DataConfig struct {
	Dir        string       `yaml:"dir" default:"data/raw"`
	DateLayout string       `yaml:"date_layout" default:"2006-01-02"`
	Series     []SeriesSpec `yaml:"series" validate:"min=1,dive"`
}

// SeriesSpec names one index, its data file and its per-provider
// download symbols.
type SeriesSpec struct {
	Name    string            `yaml:"name" validate:"required"`
	File    string            `yaml:"file"`
	Symbols map[string]string `yaml:"symbols"`
}

// FileOrDefault returns the configured file name, or <Name>.csv.
func (s SeriesSpec) FileOrDefault() string {
	if s.File != "" {
		return s.File
	}
	return s.Name + ".csv"
}

// FeaturesConfig controls feature derivation.
type FeaturesConfig struct {
	VolWindow int `yaml:"vol_window" default:"30" validate:"gte=2"`
}

// RegimesConfig defines the crisis windows. When WindowsFile is set it
// overrides the inline crises; when both are empty the built-in
// historical windows apply. The month fields are pointers so an
// explicit zero survives defaulting.
type RegimesConfig struct {
	WindowsFile      string       `yaml:"windows_file"`
	PreWindowMonths  *int         `yaml:"pre_window_months" default:"6" validate:"omitempty,gte=0"`
	PostWindowMonths *int         `yaml:"post_window_months" default:"6" validate:"omitempty,gte=0"`
	OverlapPolicy    string       `yaml:"overlap_policy" default:"last_wins" validate:"oneof=last_wins error"`
	Crises           []CrisisSpec `yaml:"crises" validate:"dive"`
}

// PreMonths returns the pre-crisis extension length in months.
func (r RegimesConfig) PreMonths() int { return *r.PreWindowMonths }

// PostMonths returns the post-crisis extension length in months.
func (r RegimesConfig) PostMonths() int { return *r.PostWindowMonths }

// CrisisSpec is one crisis window in config form. End is exclusive.
type CrisisSpec struct {
	Name  string `yaml:"name" validate:"required"`
	Start string `yaml:"start" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" validate:"required,datetime=2006-01-02"`
}

// StatsConfig selects estimators, columns and metrics. Empty columns
// or metrics mean the engine defaults.
type StatsConfig struct {
	Sample  bool     `yaml:"sample"`
	Columns []string `yaml:"columns"`
	Metrics []string `yaml:"metrics"`
}

// ReportConfig controls the artifact output.
type ReportConfig struct {
	OutDir  string   `yaml:"out_dir" default:"results"`
	Formats []string `yaml:"formats" default:"[\"csv\",\"markdown\",\"json\"]" validate:"omitempty,dive,oneof=csv markdown json"`
}

// FetchConfig controls the optional data download subcommand.
type FetchConfig struct {
	Provider       string  `yaml:"provider" default:"stooq" validate:"oneof=stooq yahoo"`
	Fallback       bool    `yaml:"fallback"`
	Start          string  `yaml:"start" default:"1985-01-01" validate:"datetime=2006-01-02"`
	End            string  `yaml:"end" default:"2025-01-01" validate:"datetime=2006-01-02"`
	TimeoutSeconds int     `yaml:"timeout_seconds" default:"20" validate:"gte=1"`
	RatePerSecond  float64 `yaml:"rate_per_second" default:"2" validate:"gt=0"`
	Burst          int     `yaml:"burst" default:"1" validate:"gte=1"`
}

// Load reads the YAML file at path, fills defaults, applies
// REGIMELAB_* environment overrides and validates the result. A
// missing file is not an error: the built-in defaults apply.
func Load(path string) (*Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	return finish(&c)
}

// Default returns the built-in configuration.
func Default() *Config {
	c, err := finish(&Config{})
	if err != nil {
		panic(err)
	}
	return c
}

// Fingerprint returns a short hash of the effective configuration for
// the run manifest.
func (c *Config) Fingerprint() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:12]
}

func finish(c *Config) (*Config, error) {
	if err := defaults.Set(c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if len(c.Data.Series) == 0 {
		c.Data.Series = defaultSeries()
	}
	applyEnv(c)

	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("REGIMELAB_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REGIMELAB_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("REGIMELAB_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("REGIMELAB_OUT_DIR"); v != "" {
		c.Report.OutDir = v
	}
}

// defaultSeries is the built-in index set.
func defaultSeries() []SeriesSpec {
	return []SeriesSpec{
		{Name: "SP500", Symbols: map[string]string{"yahoo": "^GSPC", "stooq": "^spx"}},
		{Name: "NASDAQ", Symbols: map[string]string{"yahoo": "^IXIC", "stooq": "^ndq"}},
		{Name: "STOXX50", Symbols: map[string]string{"yahoo": "^STOXX50E", "stooq": "^sx5e"}},
		{Name: "FTSE100", Symbols: map[string]string{"yahoo": "^FTSE", "stooq": "^ukx"}},
	}
}
