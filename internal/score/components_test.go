package score

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroflow/macrorisk/internal/dataset"
)

func dateRange(n int) []time.Time {
	dates := make([]time.Time, n)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

func specFor(t *testing.T, key string) ComponentSpec {
	t.Helper()
	for _, spec := range ComponentSpecs() {
		if spec.Key == key {
			return spec
		}
	}
	t.Fatalf("no spec for component %s", key)
	return ComponentSpec{}
}

// Balance sheet growing at an accelerating rate, TGA and RRP flat: the
// liquidity trend indicator rises monotonically while the flat columns
// contribute all-zero z-scores, so the component score climbs from 0 to 100
// over the valid range under full-history scaling.
func TestScoreComponent_LiquidityScenario(t *testing.T) {
	n := 100
	tbl := dataset.NewTable("fed_liquidity", dateRange(n))

	balance := make([]float64, n)
	flat := make([]float64, n)
	for i := 0; i < n; i++ {
		balance[i] = math.Exp(0.0005 * float64(i) * float64(i))
		flat[i] = 500
	}
	tbl.AddColumn("Fed_Balance_Sheet", balance)
	tbl.AddColumn("TGA_Balance", flat)
	tbl.AddColumn("RRP_Usage", flat)

	out := ScoreComponent(tbl, specFor(t, ComponentLiquidity), ScalingFull)
	require.Len(t, out.Values, n)

	// The 20-day trend needs 20 rows of history.
	for i := 0; i < 20; i++ {
		assert.True(t, math.IsNaN(out.Values[i]), "row %d should be missing", i)
	}

	valid := out.Values[20:]
	assert.Equal(t, 0.0, valid[0], "first valid point maps to 0")
	assert.Equal(t, 100.0, valid[len(valid)-1], "last point maps to 100")
	for i := 1; i < len(valid); i++ {
		assert.Greater(t, valid[i], valid[i-1], "score must be strictly increasing at row %d", i)
	}
}

// Flat TGA/RRP columns must not move the score: with only the balance sheet
// present the component score is identical, since a constant series z-scores
// to zero and the sub-indicator mean shifts by a constant.
func TestScoreComponent_FlatColumnsContributeZero(t *testing.T) {
	n := 60
	dates := dateRange(n)

	balance := make([]float64, n)
	flat := make([]float64, n)
	for i := 0; i < n; i++ {
		balance[i] = math.Exp(0.001 * float64(i) * float64(i))
		flat[i] = 123
	}

	full := dataset.NewTable("fed_liquidity", dates)
	full.AddColumn("Fed_Balance_Sheet", balance)
	full.AddColumn("TGA_Balance", flat)
	full.AddColumn("RRP_Usage", flat)

	only := dataset.NewTable("fed_liquidity", dates)
	only.AddColumn("Fed_Balance_Sheet", balance)

	spec := specFor(t, ComponentLiquidity)
	a := ScoreComponent(full, spec, ScalingFull)
	b := ScoreComponent(only, spec, ScalingFull)

	for i := range a.Values {
		if math.IsNaN(a.Values[i]) {
			assert.True(t, math.IsNaN(b.Values[i]))
			continue
		}
		assert.InDelta(t, b.Values[i], a.Values[i], 1e-9, "row %d", i)
	}
}

// IG and HY spreads both rising: both are negative contributors, so the
// credit score falls monotonically from 100 to 0.
func TestScoreComponent_CreditScenario(t *testing.T) {
	n := 50
	tbl := dataset.NewTable("credit_spreads", dateRange(n))

	ig := make([]float64, n)
	hy := make([]float64, n)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		ig[i] = 80 + frac*(150-80)
		hy[i] = 300 + frac*(600-300)
	}
	tbl.AddColumn("IG_OAS", ig)
	tbl.AddColumn("HY_OAS", hy)

	out := ScoreComponent(tbl, specFor(t, ComponentCredit), ScalingFull)

	assert.Equal(t, 100.0, out.Values[0])
	assert.Equal(t, 0.0, out.Values[n-1])
	for i := 1; i < n; i++ {
		assert.Less(t, out.Values[i], out.Values[i-1], "score must be strictly decreasing at row %d", i)
	}
}

func TestScoreComponent_NoExpectedColumns(t *testing.T) {
	tbl := dataset.NewTable("credit_spreads", dateRange(10))
	tbl.AddColumn("Unrelated", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	out := ScoreComponent(tbl, specFor(t, ComponentCredit), ScalingFull)
	require.Len(t, out.Values, 10)
	for _, v := range out.Values {
		assert.True(t, math.IsNaN(v), "missing expected columns must degrade to an all-missing series")
	}
}

func TestScoreComponent_OutputAlwaysInBand(t *testing.T) {
	n := 200
	tbl := dataset.NewTable("fx_liquidity", dateRange(n))

	dxy := make([]float64, n)
	em := make([]float64, n)
	for i := 0; i < n; i++ {
		dxy[i] = 100 + 10*math.Sin(float64(i)/7)
		em[i] = 50 + 5*math.Cos(float64(i)/11)
	}
	// Inject an outlier and some gaps.
	dxy[17] = 10000
	em[40] = math.NaN()
	tbl.AddColumn("DXY", dxy)
	tbl.AddColumn("EM_FX_Basket", em)

	for _, mode := range []ScalingMode{ScalingFull, ScalingRobust} {
		out := ScoreComponent(tbl, specFor(t, ComponentFX), mode)
		for i, v := range out.Values {
			if math.IsNaN(v) {
				continue
			}
			assert.GreaterOrEqual(t, v, 0.0, "mode %s row %d", mode, i)
			assert.LessOrEqual(t, v, 100.0, "mode %s row %d", mode, i)
		}
	}
}

func TestComponentSpecs_CoverAllComponents(t *testing.T) {
	specs := ComponentSpecs()
	require.Len(t, specs, len(ComponentKeys))

	seen := make(map[string]bool)
	for _, spec := range specs {
		seen[spec.Key] = true
		assert.NotEmpty(t, spec.Dataset)
		assert.NotEmpty(t, spec.Columns)
		for _, col := range spec.Columns {
			assert.Contains(t, []float64{-1, 1}, col.Direction, "%s/%s", spec.Key, col.Column)
		}
	}
	for _, key := range ComponentKeys {
		assert.True(t, seen[key], "missing spec for %s", key)
	}
}
