package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/macroflow/macrorisk/internal/backtest"
	"github.com/macroflow/macrorisk/internal/config"
	"github.com/macroflow/macrorisk/internal/dataset"
	"github.com/macroflow/macrorisk/internal/regime"
	"github.com/macroflow/macrorisk/internal/score"
)

// Handlers bundles the engine and its collaborators behind the HTTP
// surface. All endpoints are read-only.
type Handlers struct {
	engine     *score.Engine
	loader     *dataset.Loader
	classifier *regime.Classifier
	runner     *backtest.Runner
	cfg        config.Config
	breaker    func() string

	fundingMu   sync.Mutex
	fundingDone bool
	fundingMemo map[string]any
}

// NewHandlers creates the handler set. breakerState may be nil when no
// price client is wired.
func NewHandlers(engine *score.Engine, loader *dataset.Loader, classifier *regime.Classifier,
	runner *backtest.Runner, cfg config.Config, breakerState func() string) *Handlers {
	return &Handlers{
		engine:     engine,
		loader:     loader,
		classifier: classifier,
		runner:     runner,
		cfg:        cfg,
		breaker:    breakerState,
	}
}

// jsonValue renders NaN as null so the score tables marshal cleanly.
func jsonValue(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func jsonColumn(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i, x := range xs {
		out[i] = jsonValue(x)
	}
	return out
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeUnavailable surfaces a degraded section as an informational message
// instead of a process failure.
func (h *Handlers) writeUnavailable(w http.ResponseWriter, msg string, err error) {
	log.Warn().Err(err).Msg(msg)
	h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":  "unavailable",
		"message": msg + ": " + err.Error(),
	})
}

func (h *Handlers) scalingMode(r *http.Request) (score.ScalingMode, error) {
	raw := r.URL.Query().Get("mode")
	if raw == "" {
		raw = h.cfg.Scoring.Mode
	}
	return score.ParseScalingMode(raw)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	}
	if h.breaker != nil {
		payload["price_breaker"] = h.breaker()
	}
	h.writeJSON(w, http.StatusOK, payload)
}

// ScoreSeries handles GET /api/v1/score: the full date-indexed table of
// component scores and the composite, for time-series charts.
func (h *Handlers) ScoreSeries(w http.ResponseWriter, r *http.Request) {
	mode, err := h.scalingMode(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	recomputesTotal.WithLabelValues(string(mode)).Inc()

	table, err := h.engine.Compute(mode)
	if err != nil {
		h.writeUnavailable(w, "macro score could not be computed", err)
		return
	}

	components := make(map[string][]*float64, len(table.Components))
	for key, col := range table.Components {
		components[key] = jsonColumn(col)
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"mode":        string(table.Mode),
		"computed_at": table.ComputedAt,
		"dates":       formatDates(table.Dates),
		"components":  components,
		"macro_score": jsonColumn(table.Macro),
	})
}

// ScoreCSV handles GET /api/v1/score.csv: the same table in the flat shape
// the source pipelines emit.
func (h *Handlers) ScoreCSV(w http.ResponseWriter, r *http.Request) {
	mode, err := h.scalingMode(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	table, err := h.engine.Compute(mode)
	if err != nil {
		h.writeUnavailable(w, "macro score could not be computed", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=macro_scores.csv")
	if err := table.WriteCSV(w); err != nil {
		log.Error().Err(err).Msg("failed to stream score CSV")
	}
}

// ScoreLatest handles GET /api/v1/score/latest: the gauge/summary view.
// When the composite cannot be computed at all the payload carries a
// documented neutral placeholder, flagged so consumers never mistake it for
// a computed 50.
func (h *Handlers) ScoreLatest(w http.ResponseWriter, r *http.Request) {
	mode, err := h.scalingMode(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	table, err := h.engine.Compute(mode)
	if err != nil && errors.Is(err, score.ErrNoComponents) {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"mode":        string(mode),
			"macro_score": 50.0,
			"neutral":     true,
			"message":     "no component has data; showing neutral placeholder, not a computed score",
		})
		return
	}
	if err != nil {
		h.writeUnavailable(w, "macro score could not be computed", err)
		return
	}

	date, comps, macro, ok := table.Latest()
	if !ok {
		h.writeUnavailable(w, "macro score could not be computed", score.ErrNoComponents)
		return
	}

	classified := h.classifier.Classify(table.Dates, table.Macro)
	latestRegime := classified[len(classified)-1]

	components := make(map[string]*float64, len(comps))
	for key, v := range comps {
		components[key] = jsonValue(v)
	}

	payload := map[string]any{
		"mode":        string(table.Mode),
		"date":        date.Format("2006-01-02"),
		"macro_score": jsonValue(macro),
		"components":  components,
		"regime":      latestRegime.Regime,
		"smoothed":    jsonValue(latestRegime.Smoothed),
		"narrative":   narrative(latestRegime.Label),
	}
	if funding := h.fundingConditions(); funding != nil {
		payload["funding_conditions"] = funding
	}

	h.writeJSON(w, http.StatusOK, payload)
}

// Regime handles GET /api/v1/regime: the smoothed score and its regime
// label over the full history, plus the active thresholds.
func (h *Handlers) Regime(w http.ResponseWriter, r *http.Request) {
	mode, err := h.scalingMode(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	table, err := h.engine.Compute(mode)
	if err != nil {
		h.writeUnavailable(w, "regime history could not be computed", err)
		return
	}

	classified := h.classifier.Classify(table.Dates, table.Macro)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"mode":   string(table.Mode),
		"policy": h.cfg.Regime.ThresholdPolicy,
		"series": classified,
	})
}

// Backtest handles GET /api/v1/backtest: the regime vs forward-return
// panel. Assets and horizons default to the configured set and can be
// overridden with comma-separated query parameters.
func (h *Handlers) Backtest(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		h.writeJSON(w, http.StatusNotImplemented, map[string]string{
			"error": "backtest panel is not enabled",
		})
		return
	}

	mode, err := h.scalingMode(r)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	assets := h.cfg.Backtest.Assets
	if raw := r.URL.Query().Get("assets"); raw != "" {
		assets = strings.Split(raw, ",")
	}
	horizons := h.cfg.Backtest.Horizons
	if raw := r.URL.Query().Get("horizons"); raw != "" {
		horizons = nil
		for _, part := range strings.Split(raw, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || v < 1 {
				h.writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": "horizons must be positive integers",
				})
				return
			}
			horizons = append(horizons, v)
		}
	}

	table, err := h.engine.Compute(mode)
	if err != nil {
		h.writeUnavailable(w, "backtest input could not be computed", err)
		return
	}

	classified := h.classifier.Classify(table.Dates, table.Macro)
	result, err := h.runner.Run(r.Context(), classified, assets, horizons)
	if err != nil {
		h.writeUnavailable(w, "backtest panel unavailable", err)
		return
	}

	backtestsTotal.Inc()
	h.writeJSON(w, http.StatusOK, result)
}

// fundingConditions reads the latest raw funding spreads and buckets them
// into the dashboard's normal / elevated / high stress bands. Returns nil
// when the dataset or its columns are missing; the summary simply omits the
// section. The result is memoized for the process lifetime, like the score
// table itself: the gauge re-renders far more often than the datasets
// change, and re-parsing the CSV per refresh buys nothing.
func (h *Handlers) fundingConditions() map[string]any {
	h.fundingMu.Lock()
	defer h.fundingMu.Unlock()
	if h.fundingDone {
		return h.fundingMemo
	}
	h.fundingDone = true
	h.fundingMemo = h.readFundingConditions()
	return h.fundingMemo
}

func (h *Handlers) readFundingConditions() map[string]any {
	tbl, err := h.loader.Load("funding_stress")
	if err != nil {
		return nil
	}

	latestSpread := func(col string) (float64, bool) {
		vals, ok := tbl.Column(col)
		if !ok {
			return 0, false
		}
		for i := len(vals) - 1; i >= 0; i-- {
			if !math.IsNaN(vals[i]) {
				return vals[i], true
			}
		}
		return 0, false
	}

	effrSofr, okSofr := latestSpread("EFFR_minus_SOFR")
	effrObfr, okObfr := latestSpread("EFFR_minus_OBFR")
	if !okSofr && !okObfr {
		return nil
	}

	// Short spikes happen around month end; sustained widening is what
	// matters. Bands follow the dashboard convention: >0.10 elevated,
	// >0.25 high.
	band := "normal"
	if effrSofr > 0.10 || effrObfr > 0.10 {
		band = "elevated"
	}
	if effrSofr > 0.25 || effrObfr > 0.25 {
		band = "high"
	}

	out := map[string]any{"band": band}
	if okSofr {
		out["effr_minus_sofr"] = effrSofr
	}
	if okObfr {
		out["effr_minus_obfr"] = effrObfr
	}
	return out
}

func narrative(label regime.Label) string {
	switch label {
	case regime.RiskOn:
		return "Liquidity and macro conditions are broadly supportive."
	case regime.RiskOff:
		return "Liquidity and/or credit conditions are deteriorating."
	case regime.Mixed:
		return "Signals are mixed across liquidity, curve, credit, and FX."
	default:
		return "Insufficient data to classify the current regime."
	}
}

func formatDates(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}
