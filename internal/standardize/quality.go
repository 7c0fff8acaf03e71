package standardize

import (
	"time"

	"candleflow/internal/market"
)

// Quality score weights. Completeness covers the five core OHLCV fields,
// validity covers the OHLC relationship, recency rewards fresh bars.
const (
	weightCompleteness = 0.4
	weightValidity     = 0.4
	weightRecency      = 0.2

	recencyFullWindow = 30 * 24 * time.Hour
	recencyFloor      = 0.6
	recencyHorizon    = 10 * 365 * 24 * time.Hour
)

func (p *Pipeline) score(rec market.CandleRecord, volumePresent bool) float64 {
	present := 0
	if !rec.Open.IsZero() {
		present++
	}
	if !rec.High.IsZero() {
		present++
	}
	if !rec.Low.IsZero() {
		present++
	}
	if !rec.Close.IsZero() {
		present++
	}
	if volumePresent {
		present++
	}
	completeness := float64(present) / 5.0

	validity := 0.0
	if rec.OHLCValid() {
		validity = 1.0
	}

	recency := recencyScore(p.now().UTC().Sub(rec.Timestamp))

	s := weightCompleteness*completeness + weightValidity*validity + weightRecency*recency
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func recencyScore(age time.Duration) float64 {
	if age <= recencyFullWindow {
		return 1.0
	}
	if age >= recencyHorizon {
		return recencyFloor
	}
	frac := float64(age-recencyFullWindow) / float64(recencyHorizon-recencyFullWindow)
	return 1.0 - frac*(1.0-recencyFloor)
}
