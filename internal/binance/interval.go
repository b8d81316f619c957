package binance

import (
	"fmt"
	"strconv"
	"time"
)

// intervalDurations enumerates the candle intervals Binance accepts
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// NormalizeInterval validates an interval string. Bare integers are treated
// as minutes ("30" becomes "30m").
func NormalizeInterval(interval string) (string, error) {
	if _, ok := intervalDurations[interval]; ok {
		return interval, nil
	}

	if n, err := strconv.Atoi(interval); err == nil {
		candidate := fmt.Sprintf("%dm", n)
		if _, ok := intervalDurations[candidate]; ok {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("unsupported interval %q", interval)
}

// IntervalDuration returns the bar width for a normalised interval
func IntervalDuration(interval string) (time.Duration, error) {
	d, ok := intervalDurations[interval]
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return d, nil
}

// ValidIntervals returns the accepted interval strings
func ValidIntervals() []string {
	out := make([]string, 0, len(intervalDurations))
	for k := range intervalDurations {
		out = append(out, k)
	}
	return out
}
