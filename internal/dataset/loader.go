package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrDatasetUnavailable signals that the backing file for a dataset does not
// exist. Callers treat this as "section disabled" and keep going with the
// remaining datasets.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// dateColumns are the recognized date field names, tried in order. When none
// match, the first column is assumed to be the date.
var dateColumns = []string{"record_date", "Date", "date"}

// dateLayouts are the accepted date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
}

// DefaultAliases maps dataset name -> canonical column -> accepted aliases.
// Alias resolution happens once at load time so scoring functions only ever
// see canonical names.
func DefaultAliases() map[string]map[string][]string {
	return map[string]map[string][]string{
		"fed_liquidity": {
			"Fed_Balance_Sheet": {"WALCL"},
			"TGA_Balance":       {"closing_balance"},
			"RRP_Usage":         {"RRPONTSYD"},
		},
		"volatility_regimes": {
			"VIX_Short": {"VIX"},
			"MOVE":      {"Move_Index", "MOVE_Index"},
		},
		"growth_leading": {
			"Initial_Claims": {"ICSA"},
		},
	}
}

// Loader reads dataset CSVs from a single directory. It is stateless beyond
// its configuration; create one per process and reuse it for all reads.
type Loader struct {
	dir     string
	aliases map[string]map[string][]string
}

// NewLoader creates a loader rooted at dir with the default alias table.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, aliases: DefaultAliases()}
}

// NewLoaderWithAliases creates a loader with a custom alias table.
func NewLoaderWithAliases(dir string, aliases map[string]map[string][]string) *Loader {
	return &Loader{dir: dir, aliases: aliases}
}

// Load reads the dataset <dir>/<name>.csv and returns it as a date-indexed
// table. Rows are sorted ascending by date and deduplicated last-wins (the
// source pipelines are append-only, so the last row for a date is the most
// recent revision). Returns ErrDatasetUnavailable when the file is missing
// or cannot be parsed, so a broken file disables its section only.
func (l *Loader) Load(name string) (*Table, error) {
	path := filepath.Join(l.dir, name+".csv")

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("dataset %s at %s: %w", name, path, ErrDatasetUnavailable)
		}
		return nil, fmt.Errorf("failed to open dataset %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		log.Warn().Str("dataset", name).Err(err).Msg("dataset CSV is malformed")
		return nil, fmt.Errorf("dataset %s has malformed CSV (%v): %w", name, err, ErrDatasetUnavailable)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset %s has no data rows: %w", name, ErrDatasetUnavailable)
	}

	header := records[0]
	dateIdx := locateDateColumn(header)

	type row struct {
		date time.Time
		vals []float64
	}

	rows := make([]row, 0, len(records)-1)
	skipped := 0
	for _, rec := range records[1:] {
		if dateIdx >= len(rec) {
			skipped++
			continue
		}
		date, ok := parseDate(rec[dateIdx])
		if !ok {
			skipped++
			continue
		}

		vals := make([]float64, 0, len(header)-1)
		for i := range header {
			if i == dateIdx {
				continue
			}
			if i >= len(rec) {
				vals = append(vals, math.NaN())
				continue
			}
			vals = append(vals, parseValue(rec[i]))
		}
		rows = append(rows, row{date: date, vals: vals})
	}

	if skipped > 0 {
		log.Warn().Str("dataset", name).Int("skipped", skipped).
			Msg("dropped rows with unparseable dates")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("dataset %s has no parseable rows: %w", name, ErrDatasetUnavailable)
	}

	// Stable sort keeps file order for equal dates so last-wins dedupe below
	// picks the row closest to the end of the file.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })

	deduped := rows[:0]
	for _, r := range rows {
		if n := len(deduped); n > 0 && deduped[n-1].date.Equal(r.date) {
			deduped[n-1] = r
			continue
		}
		deduped = append(deduped, r)
	}

	dates := make([]time.Time, len(deduped))
	for i, r := range deduped {
		dates[i] = r.date
	}

	table := NewTable(name, dates)
	col := 0
	for i, colName := range header {
		if i == dateIdx {
			continue
		}
		vals := make([]float64, len(deduped))
		for j, r := range deduped {
			vals[j] = r.vals[col]
		}
		table.AddColumn(colName, vals)
		col++
	}

	l.applyAliases(table)

	log.Debug().Str("dataset", name).Int("rows", table.Len()).
		Strs("columns", table.Columns()).Msg("dataset loaded")

	return table, nil
}

// applyAliases renames known alias columns to their canonical names, first
// hit wins, and never clobbers a canonical column that is already present.
func (l *Loader) applyAliases(t *Table) {
	aliases, ok := l.aliases[t.Name]
	if !ok {
		return
	}
	for canonical, names := range aliases {
		if _, exists := t.Column(canonical); exists {
			continue
		}
		for _, alias := range names {
			if _, exists := t.Column(alias); exists {
				t.Rename(alias, canonical)
				break
			}
		}
	}
}

func locateDateColumn(header []string) int {
	for _, want := range dateColumns {
		for i, name := range header {
			if strings.TrimSpace(name) == want {
				return i
			}
		}
	}
	return 0
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
