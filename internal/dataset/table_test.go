package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDates(n int) []time.Time {
	dates := make([]time.Time, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

func TestTable_AddColumnPadsShortValues(t *testing.T) {
	tbl := NewTable("test", testDates(3))
	tbl.AddColumn("x", []float64{1, 2})

	vals, ok := tbl.Column("x")
	require.True(t, ok)
	assert.Equal(t, 1.0, vals[0])
	assert.Equal(t, 2.0, vals[1])
	assert.True(t, math.IsNaN(vals[2]))
}

func TestTable_Resolve(t *testing.T) {
	tbl := NewTable("test", testDates(2))
	tbl.AddColumn("closing_balance", []float64{10, 20})

	vals, ok := tbl.Resolve("TGA_Balance", "closing_balance")
	require.True(t, ok)
	assert.Equal(t, []float64{10, 20}, vals)

	_, ok = tbl.Resolve("RRP_Usage", "nope")
	assert.False(t, ok)
}

func TestTable_RenameKeepsOrder(t *testing.T) {
	tbl := NewTable("test", testDates(1))
	tbl.AddColumn("a", []float64{1})
	tbl.AddColumn("b", []float64{2})
	tbl.Rename("a", "z")

	assert.Equal(t, []string{"z", "b"}, tbl.Columns())
	_, ok := tbl.Column("a")
	assert.False(t, ok)
}
