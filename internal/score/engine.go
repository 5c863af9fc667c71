package score

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/macroflow/macrorisk/internal/dataset"
)

// ErrNoComponents is returned when every dataset is unavailable and there
// is nothing to aggregate.
var ErrNoComponents = errors.New("no component has any data")

// ScoreTable is the engine's output: a date-indexed table with one
// <component>_score column per component plus macro_score, values in
// [0,100] or NaN.
type ScoreTable struct {
	Dates      []time.Time
	Components map[string][]float64
	Macro      []float64
	Mode       ScalingMode
	ComputedAt time.Time
}

// Latest returns the last row of the table.
func (st *ScoreTable) Latest() (time.Time, map[string]float64, float64, bool) {
	if len(st.Dates) == 0 {
		return time.Time{}, nil, math.NaN(), false
	}
	i := len(st.Dates) - 1
	comps := make(map[string]float64, len(st.Components))
	for key, col := range st.Components {
		comps[key] = col[i]
	}
	return st.Dates[i], comps, st.Macro[i], true
}

// WriteCSV renders the table in the same flat shape the source pipelines
// emit: a date column followed by the seven component scores and
// macro_score. NaN cells are left empty.
func (st *ScoreTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"date"}
	for _, key := range ComponentKeys {
		header = append(header, key+"_score")
	}
	header = append(header, "macro_score")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, d := range st.Dates {
		row := []string{d.Format("2006-01-02")}
		for _, key := range ComponentKeys {
			row = append(row, formatCell(st.Components[key][i]))
		}
		row = append(row, formatCell(st.Macro[i]))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// EngineOptions configures a scoring engine.
type EngineOptions struct {
	Weights     map[string]float64
	ForwardFill bool
	FillLimit   int
	Affine      *AffinePolicy
}

// Engine computes the macro risk score table from the raw datasets. Every
// computation is a full recompute over the immutable input tables; the only
// state the engine keeps is a memo of completed results keyed by scaling
// mode, so repeated dashboard refreshes do not reread every file.
type Engine struct {
	loader *dataset.Loader
	specs  []ComponentSpec
	opts   EngineOptions

	mu   sync.Mutex
	memo map[ScalingMode]*ScoreTable
}

// NewEngine creates an engine over the given loader. The loader is created
// once per process and reused for all reads.
func NewEngine(loader *dataset.Loader, opts EngineOptions) *Engine {
	return &Engine{
		loader: loader,
		specs:  ComponentSpecs(),
		opts:   opts,
		memo:   make(map[ScalingMode]*ScoreTable),
	}
}

// Compute returns the score table for the given scaling mode. A missing or
// unreadable dataset disables only its component: the remaining components
// carry the composite with renormalized weights. Only when every component
// is empty does Compute fail, with ErrNoComponents.
func (e *Engine) Compute(mode ScalingMode) (*ScoreTable, error) {
	e.mu.Lock()
	if cached, ok := e.memo[mode]; ok {
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	components := make(map[string]Series, len(e.specs))
	available := 0
	for _, spec := range e.specs {
		tbl, err := e.loader.Load(spec.Dataset)
		if err != nil {
			if errors.Is(err, dataset.ErrDatasetUnavailable) {
				log.Warn().Str("component", spec.Key).Err(err).
					Msg("dataset unavailable, component disabled")
				continue
			}
			return nil, fmt.Errorf("failed to load dataset for %s: %w", spec.Key, err)
		}

		s := ScoreComponent(tbl, spec, mode)
		components[spec.Key] = s
		if hasValue(s.Values) {
			available++
		}
	}

	if available == 0 {
		return nil, ErrNoComponents
	}

	macro, aligned, err := Aggregate(components, AggregateOptions{
		Weights:     e.opts.Weights,
		ForwardFill: e.opts.ForwardFill,
		FillLimit:   e.opts.FillLimit,
		Affine:      e.opts.Affine,
	})
	if err != nil {
		return nil, err
	}

	// Components whose dataset never loaded still get an all-NaN column so
	// the output shape is stable for consumers.
	for _, key := range ComponentKeys {
		if _, ok := aligned[key]; !ok {
			col := make([]float64, len(macro.Dates))
			for i := range col {
				col[i] = math.NaN()
			}
			aligned[key] = col
		}
	}

	table := &ScoreTable{
		Dates:      macro.Dates,
		Components: aligned,
		Macro:      macro.Values,
		Mode:       mode,
		ComputedAt: time.Now().UTC(),
	}

	log.Info().Str("mode", string(mode)).Int("rows", len(table.Dates)).
		Int("components", available).Msg("macro score recomputed")

	e.mu.Lock()
	e.memo[mode] = table
	e.mu.Unlock()

	return table, nil
}

// Invalidate drops memoized results, forcing the next Compute to reread the
// datasets. Called after the fetch pipelines rewrite the CSVs.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.memo = make(map[ScalingMode]*ScoreTable)
	e.mu.Unlock()
}

func hasValue(xs []float64) bool {
	for _, x := range xs {
		if !math.IsNaN(x) {
			return true
		}
	}
	return false
}
