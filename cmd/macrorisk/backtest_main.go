package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macroflow/macrorisk/internal/backtest"
	"github.com/macroflow/macrorisk/internal/config"
)

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, env, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	assets, _ := cmd.Flags().GetStringSlice("assets")
	if len(assets) == 0 {
		assets = cfg.Backtest.Assets
	}
	horizons, _ := cmd.Flags().GetIntSlice("horizons")
	if len(horizons) == 0 {
		horizons = cfg.Backtest.Horizons
	}

	_, engine, mode, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	table, err := engine.Compute(mode)
	if err != nil {
		return fmt.Errorf("failed to compute macro score: %w", err)
	}

	classified := buildClassifier(cfg).Classify(table.Dates, table.Macro)
	runner := backtest.NewRunner(buildPriceClient(cfg, env))

	result, err := runner.Run(context.Background(), classified, assets, horizons)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	fmt.Printf("%-10s %-8s %8s %8s %10s %9s %10s\n",
		"regime", "asset", "horizon", "windows", "mean_ret", "win_rate", "mean_dd")
	for _, row := range result.Rows {
		fmt.Printf("%-10s %-8s %8d %8d %9.2f%% %8.1f%% %9.2f%%\n",
			row.Regime, row.Asset, row.HorizonDays, row.Windows,
			row.MeanReturn*100, row.WinRate*100, row.MeanMaxDrawdown*100)
	}
	for _, warn := range result.Warnings {
		fmt.Printf("warning: %s\n", warn)
	}

	return nil
}
