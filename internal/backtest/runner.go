package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/macroflow/macrorisk/internal/prices"
	"github.com/macroflow/macrorisk/internal/regime"
)

// PriceSource provides daily close history for an asset. The prices.Client
// satisfies this; tests substitute a fixture.
type PriceSource interface {
	History(ctx context.Context, ticker string, from, to time.Time) (*prices.History, error)
}

// Runner computes the regime vs forward-return panel. It is a pure
// statistical summary over the classified history: nothing here places
// trades or sizes positions.
type Runner struct {
	prices PriceSource
}

// NewRunner creates a runner over a price source.
func NewRunner(src PriceSource) *Runner {
	return &Runner{prices: src}
}

// window accumulates forward-return observations for one panel cell.
type window struct {
	returns   []float64
	drawdowns []float64
}

// Run evaluates each (regime, asset, horizon) cell. For every classified
// date with a known regime and a price bar, it looks ahead horizon trading
// bars: the forward return is close[t+h]/close[t]-1 and the drawdown is the
// worst decline from the running peak inside that window. Assets whose
// history cannot be fetched are reported as warnings and skipped, never
// failing the whole panel.
func (r *Runner) Run(ctx context.Context, classified []regime.Classification, assets []string, horizons []int) (*Result, error) {
	if len(classified) == 0 {
		return nil, fmt.Errorf("no classified history to backtest")
	}
	if len(assets) == 0 || len(horizons) == 0 {
		return nil, fmt.Errorf("backtest needs at least one asset and one horizon")
	}

	from := classified[0].Date
	to := classified[len(classified)-1].Date

	result := &Result{GeneratedAt: time.Now().UTC()}

	for _, asset := range assets {
		history, err := r.prices.History(ctx, asset, from, to)
		if err != nil {
			log.Warn().Str("asset", asset).Err(err).Msg("price history unavailable, asset skipped")
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", asset, err))
			continue
		}

		cells := make(map[string]map[int]*window)
		index := history.Index()

		for _, cls := range classified {
			if cls.Label == regime.Unknown {
				continue
			}
			pos, ok := index[cls.Date.Unix()]
			if !ok {
				continue // non-trading day for this asset
			}

			for _, h := range horizons {
				end := pos + h
				if end >= len(history.Closes) {
					continue // window extends past available history
				}

				entry := history.Closes[pos]
				fwd := history.Closes[end]/entry - 1

				peak := entry
				maxDD := 0.0
				for i := pos + 1; i <= end; i++ {
					if history.Closes[i] > peak {
						peak = history.Closes[i]
					}
					dd := (peak - history.Closes[i]) / peak
					if dd > maxDD {
						maxDD = dd
					}
				}

				byHorizon, ok := cells[cls.Regime]
				if !ok {
					byHorizon = make(map[int]*window)
					cells[cls.Regime] = byHorizon
				}
				w, ok := byHorizon[h]
				if !ok {
					w = &window{}
					byHorizon[h] = w
				}
				w.returns = append(w.returns, fwd)
				w.drawdowns = append(w.drawdowns, maxDD)
			}
		}

		result.Rows = append(result.Rows, summarize(asset, horizons, cells)...)
	}

	if len(result.Rows) == 0 {
		return nil, fmt.Errorf("backtest produced no rows (all assets unavailable?)")
	}
	return result, nil
}

// summarize emits panel rows in stable regime/horizon order.
func summarize(asset string, horizons []int, cells map[string]map[int]*window) []PanelRow {
	var rows []PanelRow
	for _, label := range []regime.Label{regime.RiskOn, regime.Mixed, regime.RiskOff} {
		byHorizon, ok := cells[label.String()]
		if !ok {
			continue
		}
		for _, h := range horizons {
			w, ok := byHorizon[h]
			if !ok || len(w.returns) == 0 {
				continue
			}

			sumRet, wins, sumDD := 0.0, 0, 0.0
			for i, ret := range w.returns {
				sumRet += ret
				if ret > 0 {
					wins++
				}
				sumDD += w.drawdowns[i]
			}
			n := float64(len(w.returns))

			rows = append(rows, PanelRow{
				Regime:          label.String(),
				Asset:           asset,
				HorizonDays:     h,
				Windows:         len(w.returns),
				MeanReturn:      sumRet / n,
				WinRate:         float64(wins) / n,
				MeanMaxDrawdown: sumDD / n,
			})
		}
	}
	return rows
}
