package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/grdload/internal/billing"
	"github.com/gyeh/grdload/internal/logging"
	"github.com/gyeh/grdload/internal/normalize"
	"github.com/gyeh/grdload/internal/norms"
)

// DefaultSheet is the name of the norm sheet in the published spreadsheet.
const DefaultSheet = "Norma"

// Config holds all runtime configuration for a grdload run.
type Config struct {
	DSN        string
	FilePath   string
	LogFormat  string // "text" or "json"
	LogLevel   string
	ConfigFile string
	DryRun     bool
	ReportPath string

	Norm    NormConfig
	Rates   RatesConfig
	Columns normalize.Columns
}

// NormConfig says where the IR-GRD norm is read from. Exactly one of URL,
// SpreadsheetID or File is expected; File wins when several are set.
type NormConfig struct {
	URL           string        `yaml:"url"`
	SpreadsheetID string        `yaml:"spreadsheet_id"`
	Sheet         string        `yaml:"sheet"`
	File          string        `yaml:"file"`
	RefreshHours  float64       `yaml:"refresh_hours"`
	BasePrice     float64       `yaml:"base_price"`
	Columns       norms.Columns `yaml:"columns"`
}

// RatesConfig holds the premium factors as plain numbers.
type RatesConfig struct {
	OutlierFactor float64 `yaml:"outlier_factor"`
	DemoraFactor  float64 `yaml:"demora_factor"`
}

// yamlConfig is the on-disk YAML structure. Column maps are merged over the
// defaults so a file only lists the headers that differ.
type yamlConfig struct {
	Norm    NormConfig        `yaml:"norm"`
	Rates   RatesConfig       `yaml:"rates"`
	Columns normalize.Columns `yaml:"columns"`
}

// Defaults returns a Config with every column map, sheet name and factor set.
func Defaults() Config {
	return Config{
		LogFormat: "text",
		LogLevel:  "info",
		Norm: NormConfig{
			Sheet:        DefaultSheet,
			RefreshHours: norms.DefaultRefreshInterval.Hours(),
			Columns:      norms.DefaultColumns(),
		},
		Rates:   RatesConfig{OutlierFactor: 1, DemoraFactor: 1},
		Columns: normalize.DefaultColumns(),
	}
}

// LoadFromFile reads a YAML config file and merges its values into Config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	mergeString(&c.Norm.URL, yc.Norm.URL)
	mergeString(&c.Norm.SpreadsheetID, yc.Norm.SpreadsheetID)
	mergeString(&c.Norm.Sheet, yc.Norm.Sheet)
	mergeString(&c.Norm.File, yc.Norm.File)
	if yc.Norm.RefreshHours != 0 {
		c.Norm.RefreshHours = yc.Norm.RefreshHours
	}
	if yc.Norm.BasePrice != 0 {
		c.Norm.BasePrice = yc.Norm.BasePrice
	}
	if yc.Rates.OutlierFactor != 0 {
		c.Rates.OutlierFactor = yc.Rates.OutlierFactor
	}
	if yc.Rates.DemoraFactor != 0 {
		c.Rates.DemoraFactor = yc.Rates.DemoraFactor
	}
	mergeColumns(&c.Columns, yc.Columns)
	mergeNormColumns(&c.Norm.Columns, yc.Norm.Columns)

	return c.validateSettings()
}

func (c *Config) validateSettings() error {
	if c.Norm.RefreshHours < 0 {
		return fmt.Errorf("norm refresh_hours must not be negative, got %v", c.Norm.RefreshHours)
	}
	if c.Norm.BasePrice < 0 {
		return fmt.Errorf("norm base_price must not be negative, got %v", c.Norm.BasePrice)
	}
	if c.Rates.OutlierFactor < 0 || c.Rates.DemoraFactor < 0 {
		return fmt.Errorf("rate factors must not be negative")
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	return c.validateSettings()
}

// ValidateWithDSN checks both file and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.RequireDSN()
}

// RequireDSN checks only the DSN, for commands that take no file.
func (c *Config) RequireDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}

// RefreshInterval converts RefreshHours, falling back to the default.
func (c *Config) RefreshInterval() time.Duration {
	if c.Norm.RefreshHours <= 0 {
		return norms.DefaultRefreshInterval
	}
	return time.Duration(c.Norm.RefreshHours * float64(time.Hour))
}

// BillingRates converts the configured factors.
func (c *Config) BillingRates() billing.Rates {
	return billing.Rates{
		OutlierFactor: decimal.NewFromFloat(c.Rates.OutlierFactor),
		DemoraFactor:  decimal.NewFromFloat(c.Rates.DemoraFactor),
	}
}

// LoadOptions returns the norm load options.
func (c *Config) LoadOptions() norms.LoadOptions {
	return norms.LoadOptions{
		Columns:   c.Norm.Columns,
		BasePrice: decimal.NewFromFloat(c.Norm.BasePrice),
	}
}

// NormSource builds the configured norm source.
func (c *Config) NormSource() (norms.Source, error) {
	switch {
	case c.Norm.File != "":
		if strings.HasSuffix(strings.ToLower(c.Norm.File), ".parquet") {
			return norms.ParquetFileSource{Path: c.Norm.File, Columns: c.Norm.Columns}, nil
		}
		return norms.CSVFileSource{Path: c.Norm.File}, nil
	case c.Norm.URL != "":
		return norms.NewHTTPSource(c.Norm.URL), nil
	case c.Norm.SpreadsheetID != "":
		sheet := c.Norm.Sheet
		if sheet == "" {
			sheet = DefaultSheet
		}
		return norms.NewHTTPSource(norms.SheetURL(c.Norm.SpreadsheetID, sheet)), nil
	}
	return nil, fmt.Errorf("no norm source configured (set norm.file, norm.url or norm.spreadsheet_id)")
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeColumns(dst *normalize.Columns, src normalize.Columns) {
	mergeString(&dst.ExternalID, src.ExternalID)
	mergeString(&dst.Facility, src.Facility)
	mergeString(&dst.NationalID, src.NationalID)
	mergeString(&dst.Name, src.Name)
	mergeString(&dst.Age, src.Age)
	mergeString(&dst.Sex, src.Sex)
	mergeString(&dst.Code, src.Code)
	mergeString(&dst.Weight, src.Weight)
	mergeString(&dst.Admission, src.Admission)
	mergeString(&dst.Discharge, src.Discharge)
	mergeString(&dst.LengthOfStay, src.LengthOfStay)
	mergeString(&dst.Technology, src.Technology)
	mergeString(&dst.TechnologyDetail, src.TechnologyDetail)
	mergeString(&dst.TechnologyAmount, src.TechnologyAmount)
	mergeString(&dst.NewbornStatus, src.NewbornStatus)
	mergeString(&dst.NewbornAmount, src.NewbornAmount)
	mergeString(&dst.RescueDelayDays, src.RescueDelayDays)
	mergeString(&dst.DemoraRescate, src.DemoraRescate)
	mergeString(&dst.OutlierSuperior, src.OutlierSuperior)
	mergeString(&dst.Diagnosis, src.Diagnosis)
	mergeString(&dst.Insurer, src.Insurer)
	mergeString(&dst.Service, src.Service)
}

func mergeNormColumns(dst *norms.Columns, src norms.Columns) {
	mergeString(&dst.Code, src.Code)
	mergeString(&dst.Weight, src.Weight)
	mergeString(&dst.Lower, src.Lower)
	mergeString(&dst.Upper, src.Upper)
	mergeString(&dst.Tariff, src.Tariff)
	mergeString(&dst.P25, src.P25)
	mergeString(&dst.P50, src.P50)
	mergeString(&dst.P75, src.P75)
}
