package dataset

import (
	"math"
	"time"
)

// Table is a date-indexed table of numeric columns. Dates are strictly
// increasing and unique; missing values are NaN. Tables are produced by the
// Loader and treated as read-only by everything downstream.
type Table struct {
	Name  string
	dates []time.Time
	cols  map[string][]float64
	order []string
}

// NewTable creates an empty table over the given date index. Dates must
// already be sorted ascending and deduplicated (the Loader guarantees this).
func NewTable(name string, dates []time.Time) *Table {
	return &Table{
		Name:  name,
		dates: dates,
		cols:  make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.dates)
}

// Dates returns the date index.
func (t *Table) Dates() []time.Time {
	return t.dates
}

// Columns returns column names in insertion order.
func (t *Table) Columns() []string {
	return t.order
}

// AddColumn attaches a column to the table. Values shorter than the index
// are padded with NaN, longer ones are truncated.
func (t *Table) AddColumn(name string, values []float64) {
	padded := make([]float64, len(t.dates))
	for i := range padded {
		if i < len(values) {
			padded[i] = values[i]
		} else {
			padded[i] = math.NaN()
		}
	}
	if _, exists := t.cols[name]; !exists {
		t.order = append(t.order, name)
	}
	t.cols[name] = padded
}

// Column returns the values for a column, or false when absent.
func (t *Table) Column(name string) ([]float64, bool) {
	vals, ok := t.cols[name]
	return vals, ok
}

// Resolve returns the column stored under the canonical name or, failing
// that, under the first matching alias. The canonical-to-alias mapping is a
// fixed design decision declared per dataset (see DefaultAliases).
func (t *Table) Resolve(canonical string, aliases ...string) ([]float64, bool) {
	if vals, ok := t.cols[canonical]; ok {
		return vals, ok
	}
	for _, alias := range aliases {
		if vals, ok := t.cols[alias]; ok {
			return vals, ok
		}
	}
	return nil, false
}

// Rename moves a column to a new name. Used by the Loader to apply alias
// resolution once at load time instead of per scoring function.
func (t *Table) Rename(from, to string) {
	vals, ok := t.cols[from]
	if !ok {
		return
	}
	delete(t.cols, from)
	t.cols[to] = vals
	for i, name := range t.order {
		if name == from {
			t.order[i] = to
		}
	}
}
