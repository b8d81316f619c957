package marketdata

import (
	"context"
	"fmt"

	"binance-signal-monitor/internal/binance"
	"binance-signal-monitor/internal/logging"
)

// KlineFetcher is the slice of the exchange client the provider needs
type KlineFetcher interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
}

// Provider serves candle series through the cache, falling back to the
// exchange client on a miss
type Provider struct {
	fetcher KlineFetcher
	cache   *Cache
	log     *logging.Logger
}

// NewProvider wires a fetcher and a cache together
func NewProvider(fetcher KlineFetcher, cache *Cache) *Provider {
	return &Provider{
		fetcher: fetcher,
		cache:   cache,
		log:     logging.WithComponent("marketdata"),
	}
}

// ErrLowQuality marks a series whose completeness ratio fell below the
// usable threshold
type ErrLowQuality struct {
	Symbol string
	Report QualityReport
}

func (e *ErrLowQuality) Error() string {
	return fmt.Sprintf("low quality series for %s: completeness %.2f (invalid %d, dup %d, gaps %d)",
		e.Symbol, e.Report.Completeness, e.Report.Invalid, e.Report.Duplicates, e.Report.Gaps)
}

// GetCandles resolves a request through cache then exchange. Fresh
// fetches are quality-checked and cached before return.
func (p *Provider) GetCandles(ctx context.Context, req DataRequest) (*CandleSeries, error) {
	normalized, err := binance.NormalizeInterval(req.Interval)
	if err != nil {
		return nil, err
	}
	req.Interval = normalized

	if req.UseCache && !req.ForceRefresh {
		if series := p.cache.Get(req); series != nil {
			return series, nil
		}
	}

	klines, err := p.fetcher.GetKlines(ctx, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		return nil, err
	}

	series := FromKlines(req.Symbol, req.Interval, klines)

	report := CheckQuality(series)
	if !report.Ok() {
		return nil, &ErrLowQuality{Symbol: req.Symbol, Report: report}
	}
	if report.Invalid > 0 || report.Duplicates > 0 || report.Gaps > 0 {
		p.log.Warn("degraded candle series",
			"symbol", req.Symbol, "interval", req.Interval,
			"invalid", report.Invalid, "duplicates", report.Duplicates,
			"gaps", report.Gaps, "completeness", report.Completeness)
	}

	if req.UseCache {
		p.cache.Put(req, series, 0)
	}

	return series, nil
}

// Invalidate drops cached entries for a symbol
func (p *Provider) Invalidate(symbol, interval string) int {
	return p.cache.Invalidate(symbol, interval)
}

// CacheStats exposes the underlying cache counters
func (p *Provider) CacheStats() CacheStats {
	return p.cache.Stats()
}
