package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// CandleRecord is one standardized OHLCV observation. Records are produced
// by the standardization pipeline and persisted keyed by
// (symbol, source, timestamp, frequency).
type CandleRecord struct {
	Symbol       string          `json:"symbol"`
	Source       string          `json:"source"`
	Timestamp    time.Time       `json:"timestamp"`
	Frequency    Frequency       `json:"frequency"`
	Open         decimal.Decimal `json:"open"`
	High         decimal.Decimal `json:"high"`
	Low          decimal.Decimal `json:"low"`
	Close        decimal.Decimal `json:"close"`
	Volume       float64         `json:"volume"`
	Amount       float64         `json:"amount"`
	QualityScore float64         `json:"quality_score"`
	Extra        map[string]any  `json:"extra,omitempty"`
}

// OHLCValid reports whether low <= min(open, close) and
// high >= max(open, close).
func (c CandleRecord) OHLCValid() bool {
	lo := decimal.Min(c.Open, c.Close)
	hi := decimal.Max(c.Open, c.Close)
	return c.Low.LessThanOrEqual(lo) && c.High.GreaterThanOrEqual(hi)
}

// Key returns the composite uniqueness key of the record.
func (c CandleRecord) Key() string {
	return c.Symbol + "|" + c.Source + "|" + c.Timestamp.UTC().Format(time.RFC3339) + "|" + string(c.Frequency)
}
