package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/gyeh/grdload/internal/exitcode"
	"github.com/gyeh/grdload/internal/logging"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/normalize"
	"github.com/gyeh/grdload/internal/norms"
)

var (
	forceRefresh bool
	watchTimeout time.Duration
)

var normsCmd = &cobra.Command{
	Use:   "norms",
	Short: "Load and inspect the IR-GRD norm",
}

var normsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Load the norm from its source and store it",
	RunE:  runNormsRefresh,
}

var normsShowCmd = &cobra.Command{
	Use:   "show <code>",
	Short: "Print the norm entry of one classification code",
	Args:  cobra.ExactArgs(1),
	RunE:  runNormsShow,
}

var normsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the norm periodically until interrupted",
	RunE:  runNormsWatch,
}

func init() {
	normsRefreshCmd.Flags().BoolVar(&forceRefresh, "force", false, "Reload even if the cached table is fresh")
	normsWatchCmd.Flags().DurationVar(&watchTimeout, "timeout", 2*time.Minute, "Upper bound for one scheduled refresh")
	normsCmd.AddCommand(normsRefreshCmd, normsShowCmd, normsWatchCmd)
	rootCmd.AddCommand(normsCmd)
}

// normsCache builds a cache persisted to Postgres when a DSN is configured.
// The returned func releases the connection.
func normsCache(ctx context.Context, log zerolog.Logger) (*norms.Cache, func()) {
	var (
		persister norms.Persister
		closeFn   = func() {}
	)
	if cfg.DSN != "" {
		store, pool := openStore(ctx, log)
		persister = store
		closeFn = pool.Close
	}
	cache := newNormCache(persister, log)
	if cache == nil {
		closeFn()
		os.Exit(exitcode.UsageError)
	}
	return cache, closeFn
}

func runNormsRefresh(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	cache, closeFn := normsCache(ctx, log)
	defer closeFn()

	if _, err := cache.Refresh(ctx, forceRefresh); err != nil {
		log.Error().Err(err).Msg("norm refresh failed")
		os.Exit(exitcode.NormLoadError)
	}
	fmt.Println(cache.Describe())
	return nil
}

func runNormsShow(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	cache, closeFn := normsCache(ctx, log)
	defer closeFn()

	table, err := cache.Current(ctx)
	if table == nil {
		log.Error().Err(err).Msg("no norm table available")
		os.Exit(exitcode.NormLoadError)
	}

	raw := args[0]
	code := normalize.NormalizeCode(&raw)
	if code == nil {
		log.Error().Str("code", raw).Msg("empty classification code")
		os.Exit(exitcode.UsageError)
	}
	entry, ok := table.Lookup(*code)
	if !ok {
		fmt.Printf("%s: not in norm (%s)\n", *code, cache.Describe())
		os.Exit(exitcode.ValidationError)
	}
	printEntry(entry)
	return nil
}

func printEntry(e model.NormEntry) {
	fmt.Printf("Code:        %s\n", e.Code)
	fmt.Printf("Weight:      %s\n", e.Weight)
	fmt.Printf("Inlier band: %d..%d days\n", e.LowerCutoff, e.UpperCutoff)
	fmt.Printf("Tariff:      %s\n", e.BaseTariff.StringFixed(2))
	parts := []string{
		"P25 " + optAmount(e.P25),
		"P50 " + optAmount(e.P50),
		"P75 " + optAmount(e.P75),
	}
	fmt.Printf("Percentiles: %s\n", strings.Join(parts, ", "))
}

func optAmount(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(2)
}

func runNormsWatch(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, closeFn := normsCache(ctx, log)
	defer closeFn()

	if _, err := cache.Refresh(ctx, true); err != nil {
		log.Warn().Err(err).Msg("initial norm refresh failed, will retry on schedule")
	}

	sched, err := norms.NewScheduler(cache, cache.Interval(), watchTimeout, log)
	if err != nil {
		log.Error().Err(err).Msg("scheduler setup failed")
		os.Exit(exitcode.UsageError)
	}
	sched.Start()
	log.Info().Str("interval", cache.Interval().String()).Str("norm", cache.Describe()).Msg("watching norm")

	<-ctx.Done()
	log.Info().Msg("stopping norm watch")
	<-sched.Stop().Done()
	return nil
}
