package marketdata

import (
	"fmt"
	"time"

	"binance-signal-monitor/internal/binance"
)

// Candle is one OHLCV bar. Immutable once stored in a series.
type Candle struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	OpenTime    time.Time `json:"open_time"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	QuoteVolume float64   `json:"quote_volume,omitempty"`
	TradeCount  int       `json:"trade_count,omitempty"`
}

// Valid checks the OHLC invariants for a single bar
func (c Candle) Valid() bool {
	if c.Low > c.Open || c.Low > c.Close || c.Low > c.High {
		return false
	}
	if c.High < c.Open || c.High < c.Close {
		return false
	}
	return c.Volume >= 0
}

// CandleSeries is an ordered run of candles for one (symbol, interval)
type CandleSeries struct {
	Symbol      string    `json:"symbol"`
	Interval    string    `json:"interval"`
	Candles     []Candle  `json:"candles"`
	LastUpdated time.Time `json:"last_updated"`
	Source      string    `json:"source"` // "api" or "cache"
}

// Len returns the number of candles in the series
func (s *CandleSeries) Len() int { return len(s.Candles) }

// Last returns the final candle, or false when the series is empty
func (s *CandleSeries) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Closes returns the close column
func (s *CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Highs returns the high column
func (s *CandleSeries) Highs() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the low column
func (s *CandleSeries) Lows() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Low
	}
	return out
}

// estimatedBytes approximates the resident size of a series for the
// cache's byte budget
func (s *CandleSeries) estimatedBytes() int64 {
	const perCandle = 120 // struct fields plus slice/string overhead
	return int64(len(s.Candles))*perCandle + 256
}

// DataRequest describes "the last N candles of (symbol, interval)"
type DataRequest struct {
	Symbol       string
	Interval     string
	Limit        int
	UseCache     bool
	CacheTimeout time.Duration // staleness budget; 0 means entry TTL only
	ForceRefresh bool
}

// NewDataRequest builds a cache-friendly request with sane defaults
func NewDataRequest(symbol, interval string, limit int) DataRequest {
	return DataRequest{
		Symbol:   symbol,
		Interval: interval,
		Limit:    limit,
		UseCache: true,
	}
}

// CacheKey is deterministic per (symbol, interval, limit)
func (r DataRequest) CacheKey() string {
	return fmt.Sprintf("%s|%s|%d", r.Symbol, r.Interval, r.Limit)
}

// QualityReport summarises validation of a fetched series
type QualityReport struct {
	Total        int     `json:"total"`
	Invalid      int     `json:"invalid"`
	Duplicates   int     `json:"duplicates"`
	Gaps         int     `json:"gaps"`
	Completeness float64 `json:"completeness"`
}

// Ok reports whether the series is usable for indicator computation
func (q QualityReport) Ok() bool { return q.Completeness >= 0.7 }

// CheckQuality validates OHLC invariants, duplicate timestamps and
// oversized gaps between consecutive bars
func CheckQuality(series *CandleSeries) QualityReport {
	report := QualityReport{Total: series.Len(), Completeness: 1}
	if series.Len() == 0 {
		report.Completeness = 0
		return report
	}

	barWidth, _ := binance.IntervalDuration(series.Interval)

	var prev *Candle
	for i := range series.Candles {
		c := &series.Candles[i]
		if !c.Valid() {
			report.Invalid++
		}
		if prev != nil {
			switch {
			case !c.OpenTime.After(prev.OpenTime):
				report.Duplicates++
			case barWidth > 0 && c.OpenTime.Sub(prev.OpenTime) > 2*barWidth:
				report.Gaps++
			}
		}
		prev = c
	}

	bad := report.Invalid + report.Duplicates + report.Gaps
	report.Completeness = float64(report.Total-bad) / float64(report.Total)
	return report
}

// FromKlines converts exchange klines into a CandleSeries
func FromKlines(symbol, interval string, klines []binance.Kline) *CandleSeries {
	candles := make([]Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, Candle{
			Symbol:      symbol,
			Interval:    interval,
			OpenTime:    time.UnixMilli(k.OpenTime).UTC(),
			Open:        k.Open,
			High:        k.High,
			Low:         k.Low,
			Close:       k.Close,
			Volume:      k.Volume,
			QuoteVolume: k.QuoteAssetVolume,
			TradeCount:  k.NumberOfTrades,
		})
	}
	return &CandleSeries{
		Symbol:      symbol,
		Interval:    interval,
		Candles:     candles,
		LastUpdated: time.Now().UTC(),
		Source:      "api",
	}
}
