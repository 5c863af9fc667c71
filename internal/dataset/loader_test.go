package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader(t.TempDir())

	_, err := loader.Load("fed_liquidity")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetUnavailable), "missing file must map to ErrDatasetUnavailable")
}

func TestLoader_DateColumnRecognition(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"record_date", "record_date,value\n2024-01-02,1.5\n2024-01-03,2.5\n"},
		{"capital_date", "Date,value\n2024-01-02,1.5\n2024-01-03,2.5\n"},
		{"lower_date", "date,value\n2024-01-02,1.5\n2024-01-03,2.5\n"},
		{"fallback_first_column", "when,value\n2024-01-02,1.5\n2024-01-03,2.5\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCSV(t, dir, "yield_curve.csv", tc.content)

			tbl, err := NewLoader(dir).Load("yield_curve")
			require.NoError(t, err)

			require.Equal(t, 2, tbl.Len())
			assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), tbl.Dates()[0])

			vals, ok := tbl.Column("value")
			require.True(t, ok)
			assert.Equal(t, []float64{1.5, 2.5}, vals)
		})
	}
}

func TestLoader_SortsAndDedupesLastWins(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "credit_spreads.csv",
		"Date,IG_OAS\n"+
			"2024-01-05,110\n"+
			"2024-01-03,95\n"+
			"2024-01-03,100\n"+ // revision of the same date, must win
			"2024-01-01,90\n")

	tbl, err := NewLoader(dir).Load("credit_spreads")
	require.NoError(t, err)

	require.Equal(t, 3, tbl.Len())
	dates := tbl.Dates()
	assert.True(t, dates[0].Before(dates[1]) && dates[1].Before(dates[2]), "dates must be ascending")

	vals, ok := tbl.Column("IG_OAS")
	require.True(t, ok)
	assert.Equal(t, []float64{90, 100, 110}, vals)
}

func TestLoader_AliasResolution(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "fed_liquidity.csv",
		"Date,Fed_Balance_Sheet,closing_balance\n"+
			"2024-01-02,7500,680\n"+
			"2024-01-03,7510,675\n")

	tbl, err := NewLoader(dir).Load("fed_liquidity")
	require.NoError(t, err)

	tga, ok := tbl.Column("TGA_Balance")
	require.True(t, ok, "closing_balance must be renamed to TGA_Balance at load time")
	assert.Equal(t, []float64{680, 675}, tga)

	_, ok = tbl.Column("closing_balance")
	assert.False(t, ok)
}

func TestLoader_AliasNeverClobbersCanonical(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "fed_liquidity.csv",
		"Date,TGA_Balance,closing_balance\n"+
			"2024-01-02,700,680\n")

	tbl, err := NewLoader(dir).Load("fed_liquidity")
	require.NoError(t, err)

	tga, ok := tbl.Column("TGA_Balance")
	require.True(t, ok)
	assert.Equal(t, []float64{700}, tga)
}

func TestLoader_NonNumericCellsBecomeNaN(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "fx_liquidity.csv",
		"Date,DXY,EM_FX_Basket\n"+
			"2024-01-02,104.2,\n"+
			"2024-01-03,not-a-number,55.1\n")

	tbl, err := NewLoader(dir).Load("fx_liquidity")
	require.NoError(t, err)

	dxy, _ := tbl.Column("DXY")
	em, _ := tbl.Column("EM_FX_Basket")
	assert.Equal(t, 104.2, dxy[0])
	assert.True(t, math.IsNaN(dxy[1]))
	assert.True(t, math.IsNaN(em[0]))
	assert.Equal(t, 55.1, em[1])
}

func TestLoader_MalformedCSVIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	// Unclosed quote: the CSV reader rejects the whole file.
	writeCSV(t, dir, "credit_spreads.csv",
		"Date,IG_OAS\n2024-01-02,\"90\n2024-01-03,95\n")

	_, err := NewLoader(dir).Load("credit_spreads")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDatasetUnavailable),
		"a broken file must disable its section, not abort the pipeline")
}

func TestLoader_HeaderOnlyFileIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "growth_leading.csv", "Date,ISM_Spread\n")

	_, err := NewLoader(dir).Load("growth_leading")
	assert.True(t, errors.Is(err, ErrDatasetUnavailable))
}
