package backtest

import "time"

// PanelRow is one (regime, asset, horizon) cell of the regime vs
// forward-return panel: the mean realized forward return, the fraction of
// windows with a positive return, and the mean of each window's worst
// peak-to-trough decline, across every historical date in that regime.
type PanelRow struct {
	Regime          string  `json:"regime"`
	Asset           string  `json:"asset"`
	HorizonDays     int     `json:"horizon_days"`
	Windows         int     `json:"windows"`
	MeanReturn      float64 `json:"mean_return"`
	WinRate         float64 `json:"win_rate"`
	MeanMaxDrawdown float64 `json:"mean_max_drawdown"`
}

// Result is the full backtest panel. Warnings carry per-asset fetch
// failures; a failed asset drops out of the panel without failing the run.
type Result struct {
	Rows        []PanelRow `json:"rows"`
	Warnings    []string   `json:"warnings,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
}
