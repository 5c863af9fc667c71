package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "macrorisk"
	version = "v0.3.0"
)

var (
	flagConfig string
	flagMode   string
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Macro risk regime scoring engine",
		Version: version,
		Long: `macrorisk compresses public macro and market time series (Fed balance
sheet, Treasury cash balance, yield curves, credit spreads, FX, funding
spreads, volatility, leading growth) into a single 0-100 macro risk regime
score, with per-component sub-scores and a regime vs forward-return panel.

It is a heuristic regime indicator, not a trading system.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config (optional)")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", "", "Scaling mode override (full|robust)")

	scoreCmd := &cobra.Command{
		Use:   "score",
		Short: "Compute the macro risk score table",
		Long:  "Load the processed datasets, score all seven components, and print the latest composite. Use --out to export the full table as CSV.",
		RunE:  runScore,
	}
	scoreCmd.Flags().String("out", "", "Write the full score table to this CSV path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only dashboard API",
		Long:  "Expose /api/v1/score, /api/v1/regime, and /api/v1/backtest over HTTP for the dashboard consumers.",
		RunE:  runServe,
	}

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run the regime vs forward-return panel",
		Long:  "Classify the scored history into risk-on / mixed / risk-off and summarize forward returns, win rates, and drawdowns per regime, asset, and horizon.",
		RunE:  runBacktest,
	}
	backtestCmd.Flags().StringSlice("assets", nil, "Asset tickers to evaluate (default from config)")
	backtestCmd.Flags().IntSlice("horizons", nil, "Lookahead horizons in trading days (default from config)")

	rootCmd.AddCommand(scoreCmd, serveCmd, backtestCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
