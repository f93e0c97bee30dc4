package tickstore

import (
	"fmt"
	"strconv"
	"time"

	"tradecore/internal/common"
)

// parseInterval parses a decimal-prefixed unit string ("30s", "5m", "1h",
// "1d") into a time.Duration.
func parseInterval(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("tickstore: invalid interval %q", interval)
	}
	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("tickstore: invalid interval %q", interval)
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("tickstore: unsupported interval unit %q", string(unit))
	}
}

// QueryOHLCV aggregates trade ticks for symbol within [start, end] into
// bars of the given interval. Bar edges are computed by flooring
// timestamps to interval boundaries. VWAP is the true size-weighted mean
// trade price within the bar.
func (s *Store) QueryOHLCV(symbol string, start, end time.Time, interval string) ([]OHLCVBar, error) {
	step, err := parseInterval(interval)
	if err != nil {
		return nil, err
	}
	stepUs := step.Microseconds()
	if stepUs <= 0 {
		return nil, fmt.Errorf("tickstore: interval %q too small for microsecond ticks", interval)
	}

	ticks, err := s.QueryTicks(symbol, start, end)
	if err != nil {
		return nil, err
	}

	var bars []OHLCVBar
	var cur *OHLCVBar
	var curNotional float64

	for _, t := range ticks {
		if t.DataType != common.TickTrade {
			continue
		}
		barStart := (t.TimestampUs / stepUs) * stepUs

		if cur == nil || cur.BarStartUs != barStart {
			if cur != nil {
				finalizeBar(cur, curNotional)
				bars = append(bars, *cur)
			}
			cur = &OHLCVBar{BarStartUs: barStart, Open: t.TradePrice, High: t.TradePrice, Low: t.TradePrice}
			curNotional = 0
		}

		cur.Close = t.TradePrice
		if t.TradePrice > cur.High {
			cur.High = t.TradePrice
		}
		if t.TradePrice < cur.Low {
			cur.Low = t.TradePrice
		}
		cur.Volume += t.TradeSize
		cur.TradeCount++
		curNotional += t.TradePrice * t.TradeSize
	}
	if cur != nil {
		finalizeBar(cur, curNotional)
		bars = append(bars, *cur)
	}

	return bars, nil
}

func finalizeBar(bar *OHLCVBar, notional float64) {
	if bar.Volume > 0 {
		bar.VWAP = notional / bar.Volume
	} else {
		bar.VWAP = bar.Close
	}
}
