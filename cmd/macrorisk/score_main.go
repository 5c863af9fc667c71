package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/macroflow/macrorisk/internal/config"
	"github.com/macroflow/macrorisk/internal/dataset"
	"github.com/macroflow/macrorisk/internal/regime"
	"github.com/macroflow/macrorisk/internal/score"
)

// buildEngine assembles the loader and engine from config, applying the
// --mode override when given.
func buildEngine(cfg config.Config) (*dataset.Loader, *score.Engine, score.ScalingMode, error) {
	modeStr := cfg.Scoring.Mode
	if flagMode != "" {
		modeStr = flagMode
	}
	mode, err := score.ParseScalingMode(modeStr)
	if err != nil {
		return nil, nil, "", err
	}

	loader := dataset.NewLoader(cfg.DataDir)
	engine := score.NewEngine(loader, score.EngineOptions{
		Weights:     cfg.Scoring.Weights,
		ForwardFill: cfg.Scoring.ForwardFill,
		FillLimit:   cfg.Scoring.FillLimit,
		Affine:      cfg.Scoring.AffinePolicy(),
	})
	return loader, engine, mode, nil
}

func buildClassifier(cfg config.Config) *regime.Classifier {
	return regime.NewClassifier(regime.Config{
		SmoothingWindow: cfg.Regime.SmoothingWindow,
		Policy:          regime.ThresholdPolicy(cfg.Regime.ThresholdPolicy),
		RiskOnMin:       cfg.Regime.RiskOnMin,
		RiskOffMax:      cfg.Regime.RiskOffMax,
		UpperQuantile:   cfg.Regime.UpperQuantile,
		LowerQuantile:   cfg.Regime.LowerQuantile,
	})
}

func runScore(cmd *cobra.Command, _ []string) error {
	cfg, _, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	_, engine, mode, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	table, err := engine.Compute(mode)
	if err != nil {
		return fmt.Errorf("failed to compute macro score: %w", err)
	}

	date, comps, macro, ok := table.Latest()
	if !ok {
		return score.ErrNoComponents
	}

	classified := buildClassifier(cfg).Classify(table.Dates, table.Macro)
	latest := classified[len(classified)-1]

	fmt.Printf("Macro risk score (%s scaling) as of %s\n\n", mode, date.Format("2006-01-02"))
	for _, key := range score.ComponentKeys {
		fmt.Printf("  %-12s %s\n", key, formatScore(comps[key]))
	}
	fmt.Printf("\n  %-12s %s\n", "macro", formatScore(macro))
	fmt.Printf("  %-12s %s (smoothed %s)\n", "regime", latest.Regime, formatScore(latest.Smoothed))

	outPath, _ := cmd.Flags().GetString("out")
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", outPath, err)
		}
		defer f.Close()
		if err := table.WriteCSV(f); err != nil {
			return fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		log.Info().Str("path", outPath).Int("rows", len(table.Dates)).Msg("score table written")
	}

	return nil
}

func formatScore(v float64) string {
	if v != v { // NaN
		return "n/a"
	}
	return fmt.Sprintf("%5.1f", v)
}
