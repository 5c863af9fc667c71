package prices

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/macroflow/macrorisk/internal/infra/breakers"
)

// History is a daily close series for one ticker, sorted ascending by date.
type History struct {
	Ticker string      `json:"ticker"`
	Dates  []time.Time `json:"dates"`
	Closes []float64   `json:"closes"`
}

// Index returns a date->position lookup for the series.
func (h *History) Index() map[int64]int {
	idx := make(map[int64]int, len(h.Dates))
	for i, d := range h.Dates {
		idx[d.Unix()] = i
	}
	return idx
}

// ClientOptions configures the price client.
type ClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec float64
	CacheTTL   time.Duration
	Cache      Cache
}

// Client fetches daily price history from the Stooq CSV endpoint. Calls are
// rate limited, run under a circuit breaker, and memoized per (ticker,
// date-range) key. The client is stateless beyond its cache and is created
// once per process.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	breaker    *breakers.Breaker
	cache      Cache
	cacheTTL   time.Duration
}

// NewClient creates a price client. A nil Cache falls back to the
// in-process memory cache.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://stooq.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 2
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache()
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		breaker:    breakers.New("stooq"),
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
	}
}

// History returns daily closes for a ticker over [from, to], serving from
// the cache when the same (ticker, range) was fetched recently.
func (c *Client) History(ctx context.Context, ticker string, from, to time.Time) (*History, error) {
	key := fmt.Sprintf("%s|%s|%s", ticker, from.Format("20060102"), to.Format("20060102"))

	if data, ok := c.cache.Get(ctx, key); ok {
		var h History
		if err := json.Unmarshal(data, &h); err == nil {
			return &h, nil
		}
		// Corrupt entry: fall through to refetch.
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, ticker, from, to)
	})
	if err != nil {
		return nil, fmt.Errorf("price history fetch for %s failed: %w", ticker, err)
	}
	h := result.(*History)

	if data, err := json.Marshal(h); err == nil {
		c.cache.Set(ctx, key, data, c.cacheTTL)
	}

	log.Debug().Str("ticker", ticker).Int("rows", len(h.Dates)).Msg("price history fetched")
	return h, nil
}

// BreakerState reports the circuit breaker state for health endpoints.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) fetch(ctx context.Context, ticker string, from, to time.Time) (*History, error) {
	q := url.Values{}
	q.Set("s", ticker)
	q.Set("d1", from.Format("20060102"))
	q.Set("d2", to.Format("20060102"))
	q.Set("i", "d")
	endpoint := fmt.Sprintf("%s/q/d/l/?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return parseHistoryCSV(ticker, resp.Body)
}

// parseHistoryCSV reads the Stooq daily CSV layout: Date,Open,High,Low,
// Close,Volume. Rows with unparseable dates or closes are dropped.
func parseHistoryCSV(ticker string, r io.Reader) (*History, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("no price rows returned")
	}

	header := records[0]
	dateIdx, closeIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Date":
			dateIdx = i
		case "Close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		return nil, fmt.Errorf("missing Date/Close columns in %v", header)
	}

	h := &History{Ticker: ticker}
	for _, rec := range records[1:] {
		if dateIdx >= len(rec) || closeIdx >= len(rec) {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			continue
		}
		closeVal, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil || math.IsNaN(closeVal) || closeVal <= 0 {
			continue
		}
		h.Dates = append(h.Dates, date)
		h.Closes = append(h.Closes, closeVal)
	}

	if len(h.Dates) == 0 {
		return nil, fmt.Errorf("no usable price rows for %s", ticker)
	}
	return h, nil
}
