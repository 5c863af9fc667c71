package score

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/macroflow/macrorisk/internal/dataset"
)

// Component keys, in canonical order. Also the key space of the weight
// table and the <key>_score output columns.
const (
	ComponentLiquidity  = "liquidity"
	ComponentCurve      = "curve"
	ComponentCredit     = "credit"
	ComponentFX         = "fx"
	ComponentFunding    = "funding"
	ComponentVolatility = "volatility"
	ComponentGrowth     = "growth"
)

// ComponentKeys lists the seven components in output order.
var ComponentKeys = []string{
	ComponentLiquidity,
	ComponentCurve,
	ComponentCredit,
	ComponentFX,
	ComponentFunding,
	ComponentVolatility,
	ComponentGrowth,
}

// transform selects how a raw column becomes a sub-indicator.
type transform int

const (
	// transformLevel uses the raw column as-is.
	transformLevel transform = iota
	// transformTrend20 uses the 20-period percent change, so slow-moving
	// stock variables (balance sheet, TGA, RRP) score their direction of
	// travel rather than their absolute level.
	transformTrend20
)

// columnSpec declares one raw column's contribution to a component.
// Direction is a fixed design decision: +1 means higher raw value leans
// risk-on, -1 means higher raw value leans risk-off.
type columnSpec struct {
	Column    string
	Direction float64
	Transform transform
}

// ComponentSpec declares one thematic component: which dataset it reads and
// which directional columns feed its indicator.
type ComponentSpec struct {
	Key     string
	Dataset string
	Columns []columnSpec
}

// ComponentSpecs is the directional contract for all seven components.
// Expanding balance sheet, steepening curve, strong EM FX, and rising
// orders-vs-inventories lean risk-on; draining TGA/RRP, widening credit and
// funding spreads, strong USD, rising vol, and rising claims lean risk-off.
func ComponentSpecs() []ComponentSpec {
	return []ComponentSpec{
		{
			Key:     ComponentLiquidity,
			Dataset: "fed_liquidity",
			Columns: []columnSpec{
				{Column: "Fed_Balance_Sheet", Direction: +1, Transform: transformTrend20},
				{Column: "TGA_Balance", Direction: -1, Transform: transformTrend20},
				{Column: "RRP_Usage", Direction: -1, Transform: transformTrend20},
			},
		},
		{
			Key:     ComponentCurve,
			Dataset: "yield_curve",
			Columns: []columnSpec{
				{Column: "Spread_2s10s", Direction: +1},
				{Column: "Spread_3m10y", Direction: +1},
			},
		},
		{
			Key:     ComponentCredit,
			Dataset: "credit_spreads",
			Columns: []columnSpec{
				{Column: "IG_OAS", Direction: -1},
				{Column: "HY_OAS", Direction: -1},
			},
		},
		{
			Key:     ComponentFX,
			Dataset: "fx_liquidity",
			Columns: []columnSpec{
				{Column: "DXY", Direction: -1},
				{Column: "EM_FX_Basket", Direction: +1},
			},
		},
		{
			Key:     ComponentFunding,
			Dataset: "funding_stress",
			Columns: []columnSpec{
				{Column: "EFFR_minus_SOFR", Direction: -1},
				{Column: "EFFR_minus_OBFR", Direction: -1},
			},
		},
		{
			Key:     ComponentVolatility,
			Dataset: "volatility_regimes",
			Columns: []columnSpec{
				{Column: "VIX_Short", Direction: -1},
				{Column: "VIX_Term_Ratio", Direction: -1},
				{Column: "MOVE", Direction: -1},
			},
		},
		{
			Key:     ComponentGrowth,
			Dataset: "growth_leading",
			Columns: []columnSpec{
				{Column: "ISM_Spread", Direction: +1},
				{Column: "Initial_Claims", Direction: -1},
			},
		},
	}
}

// Series is a dated value series produced by component scoring. Values are
// in [0,100] or NaN.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// ScoreComponent builds one component score from its dataset. Each declared
// column that is present contributes a directional z-scored sub-indicator;
// the indicator is the unweighted mean of the sub-indicators, rescaled to
// [0,100] under the given mode. When none of the declared columns are
// present the whole series is NaN over the dataset's date range, so the
// caller degrades gracefully instead of failing the pipeline.
func ScoreComponent(tbl *dataset.Table, spec ComponentSpec, mode ScalingMode) Series {
	dates := tbl.Dates()

	subs := make([][]float64, 0, len(spec.Columns))
	for _, cs := range spec.Columns {
		raw, ok := tbl.Column(cs.Column)
		if !ok {
			continue
		}

		indicator := raw
		if cs.Transform == transformTrend20 {
			indicator = pctChange(raw, 20)
		}

		directional := make([]float64, len(indicator))
		for i, v := range indicator {
			directional[i] = cs.Direction * v
		}
		subs = append(subs, zscore(directional))
	}

	if len(subs) == 0 {
		log.Warn().Str("component", spec.Key).Str("dataset", spec.Dataset).
			Msg("no expected columns present, component disabled")
		return allMissing(dates)
	}

	return Series{Dates: dates, Values: Rescale(rowMean(subs...), mode)}
}

func allMissing(dates []time.Time) Series {
	values := make([]float64, len(dates))
	for i := range values {
		values[i] = math.NaN()
	}
	return Series{Dates: dates, Values: values}
}
