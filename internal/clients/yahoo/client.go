// Package yahoo fetches historical daily prices from the Yahoo Finance
// chart API and adapts them to the analytics pipeline's price tables.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
	"github.com/sidnei-almeida/groq-finance-inference/pkg/formulas"
)

// userAgent identifies us to Yahoo; requests without one get rejected.
const userAgent = "Mozilla/5.0 (compatible; portfolio-analytics/1.0)"

// PriceCache is the optional persistent cache in front of the API. A miss is
// (nil, false); storage failures are the cache's problem, not the client's.
type PriceCache interface {
	GetTable(symbols []string, period string) (*quant.PriceTable, bool)
	StoreTable(symbols []string, period string, table *quant.PriceTable)
	GetSeries(symbol, period string) (*quant.ReturnSeries, bool)
	StoreSeries(symbol, period string, series *quant.ReturnSeries)
}

// Client for the Yahoo Finance v8 chart API.
type Client struct {
	baseURL         string
	benchmarkSymbol string
	client          *http.Client
	throttle        time.Duration
	cache           PriceCache
	log             zerolog.Logger
}

// NewClient creates a Yahoo Finance client. benchmarkSymbol is the index
// proxy used for beta (typically SPY).
func NewClient(benchmarkSymbol string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:         "https://query1.finance.yahoo.com",
		benchmarkSymbol: benchmarkSymbol,
		client:          &http.Client{Timeout: 15 * time.Second},
		throttle:        200 * time.Millisecond,
		log:             log.With().Str("client", "yahoo").Logger(),
	}
}

// SetCache attaches an optional persistent cache. Without one every fetch
// hits the API.
func (c *Client) SetCache(cache PriceCache) {
	c.cache = cache
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// chartResponse mirrors the subset of the chart payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// series is one symbol's date-keyed close prices.
type series map[time.Time]float64

// FetchPrices retrieves daily closes for every symbol and aligns them on the
// union of trading dates. Dates a symbol did not trade hold NaN; the
// pipeline's cleaner fills or drops those.
func (c *Client) FetchPrices(ctx context.Context, symbols []string, period string) (*quant.PriceTable, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols requested")
	}

	if c.cache != nil {
		if table, ok := c.cache.GetTable(symbols, period); ok {
			c.log.Debug().Strs("symbols", symbols).Str("period", period).Msg("Price cache hit")
			return table, nil
		}
	}

	perSymbol := make([]series, len(symbols))
	for i, symbol := range symbols {
		if i > 0 {
			if err := c.wait(ctx); err != nil {
				return nil, err
			}
		}
		s, err := c.fetchSymbol(ctx, symbol, period)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", symbol, err)
		}
		perSymbol[i] = s
	}

	table := alignSeries(symbols, perSymbol)
	if table.NumRows() == 0 {
		return nil, quant.ErrDataUnavailable
	}

	if c.cache != nil {
		c.cache.StoreTable(symbols, period, table)
	}

	c.log.Info().
		Strs("symbols", symbols).
		Str("period", period).
		Int("rows", table.NumRows()).
		Msg("Fetched price data")

	return table, nil
}

// FetchBenchmark retrieves the benchmark symbol's daily return series.
func (c *Client) FetchBenchmark(ctx context.Context, period string) (*quant.ReturnSeries, error) {
	if c.cache != nil {
		if s, ok := c.cache.GetSeries(c.benchmarkSymbol, period); ok {
			c.log.Debug().Str("symbol", c.benchmarkSymbol).Msg("Benchmark cache hit")
			return s, nil
		}
	}

	prices, err := c.fetchSymbol(ctx, c.benchmarkSymbol, period)
	if err != nil {
		return nil, fmt.Errorf("fetching benchmark %s: %w", c.benchmarkSymbol, err)
	}

	dates := make([]time.Time, 0, len(prices))
	for d := range prices {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	closes := make([]float64, len(dates))
	for i, d := range dates {
		closes[i] = prices[d]
	}
	values := formulas.CalculateReturns(closes)
	if len(values) == 0 {
		return nil, quant.ErrDataUnavailable
	}
	result := &quant.ReturnSeries{Dates: dates[1:], Values: values}

	if c.cache != nil {
		c.cache.StoreSeries(c.benchmarkSymbol, period, result)
	}

	return result, nil
}

// fetchSymbol retrieves one symbol's daily closes, preferring adjusted
// closes when the API provides them.
func (c *Client) fetchSymbol(ctx context.Context, symbol, period string) (series, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(period))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("API error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty result for %s", symbol)
	}

	result := payload.Chart.Result[0]
	closes := pickCloses(result.Indicators.AdjClose, result.Indicators.Quote)
	if closes == nil {
		return nil, fmt.Errorf("no close prices for %s", symbol)
	}

	s := make(series, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		s[day] = *closes[i]
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("no usable observations for %s", symbol)
	}
	return s, nil
}

func pickCloses(
	adj []struct {
		AdjClose []*float64 `json:"adjclose"`
	},
	quote []struct {
		Close []*float64 `json:"close"`
	},
) []*float64 {
	if len(adj) > 0 && len(adj[0].AdjClose) > 0 {
		return adj[0].AdjClose
	}
	if len(quote) > 0 && len(quote[0].Close) > 0 {
		return quote[0].Close
	}
	return nil
}

// alignSeries merges per-symbol series on the union of their dates. A date a
// symbol has no price for is marked NaN.
func alignSeries(symbols []string, perSymbol []series) *quant.PriceTable {
	dateSet := make(map[time.Time]bool)
	for _, s := range perSymbol {
		for d := range s {
			dateSet[d] = true
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	rows := make([][]float64, len(dates))
	for r, d := range dates {
		row := make([]float64, len(symbols))
		for i, s := range perSymbol {
			if v, ok := s[d]; ok {
				row[i] = v
			} else {
				row[i] = math.NaN()
			}
		}
		rows[r] = row
	}

	return &quant.PriceTable{Symbols: symbols, Dates: dates, Rows: rows}
}

// wait sleeps the throttle interval, aborting early on context cancellation.
func (c *Client) wait(ctx context.Context) error {
	if c.throttle <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.throttle):
		return nil
	}
}
