package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gyeh/grdload/internal/config"
)

var (
	cfg = config.Defaults()
	env = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "grdload",
	Short: "IR-GRD discharge episode loader",
	Long: "Reads hospital discharge exports, classifies each episode against the IR-GRD norm, " +
		"computes its billable amount and stores it in Postgres.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", "", "Postgres connection string (or set DATABASE_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&cfg.ConfigFile, "config", "", "YAML file with column maps, norm source and rates")
	pf.StringVar(&cfg.Norm.File, "norm-file", "", "Read the norm from a local CSV or Parquet file")

	env.SetEnvPrefix("GRDLOAD")
	env.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	env.AutomaticEnv()
	_ = env.BindEnv("dsn", "GRDLOAD_DSN", "DATABASE_URL")
	_ = env.BindEnv("norm_refresh_hours", "GRDLOAD_NORM_REFRESH_HOURS", "NORM_REFRESH_HOURS")
	_ = env.BindEnv("norm_spreadsheet_id")
	_ = env.BindEnv("norm_url")
	_ = env.BindEnv("norm_file")
	_ = env.BindEnv("config")
	_ = env.BindEnv("log_format")
	_ = env.BindEnv("log_level")
}

// loadConfig layers the YAML file, then environment variables, then flags
// over the defaults.
func loadConfig(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	file := cfg.ConfigFile
	if !flags.Changed("config") {
		file = env.GetString("config")
	}
	if file != "" {
		if err := cfg.LoadFromFile(file); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.ConfigFile = file
	}

	override := func(flag, key string, dst *string) {
		if flags.Changed(flag) {
			return
		}
		if v := env.GetString(key); v != "" {
			*dst = v
		}
	}
	override("dsn", "dsn", &cfg.DSN)
	override("log-format", "log_format", &cfg.LogFormat)
	override("log-level", "log_level", &cfg.LogLevel)
	override("norm-file", "norm_file", &cfg.Norm.File)
	override("", "norm_url", &cfg.Norm.URL)
	override("", "norm_spreadsheet_id", &cfg.Norm.SpreadsheetID)

	if env.IsSet("norm_refresh_hours") {
		h, err := parseHours(env.GetString("norm_refresh_hours"))
		if err != nil {
			return err
		}
		cfg.Norm.RefreshHours = h
	}
	return nil
}

func parseHours(s string) (float64, error) {
	h, err := cast.ToFloat64E(strings.TrimSpace(s))
	if err != nil || h <= 0 {
		return 0, fmt.Errorf("NORM_REFRESH_HOURS must be a positive number of hours, got %q", s)
	}
	return h, nil
}
