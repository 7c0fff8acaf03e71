// Package standardize maps arbitrary provider record shapes onto the
// canonical candle schema: alias remapping, type coercion, OHLC
// validation, quality scoring and provenance stamping. The pipeline is a
// pure function of its inputs plus the static alias tables.
package standardize

import (
	"fmt"
	"time"

	"candleflow/internal/market"
	"candleflow/internal/pkg/convert"
	"candleflow/internal/provider"
)

// ValidationError reports why a row was dropped.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Pipeline holds the per-source alias tables. Construct once, share freely;
// Transform never mutates pipeline state.
type Pipeline struct {
	defaultIdx aliasIndex
	sourceIdx  map[string]aliasIndex
	now        func() time.Time
}

// Option customizes a Pipeline at construction.
type Option func(*Pipeline)

// WithSourceAliases installs extra aliases for a specific source id,
// layered over the defaults.
func WithSourceAliases(sourceID string, table AliasTable) Option {
	return func(p *Pipeline) {
		p.sourceIdx[sourceID] = buildIndex(defaultAliases, table)
	}
}

func withClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		defaultIdx: buildIndex(defaultAliases),
		sourceIdx:  make(map[string]aliasIndex),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) index(sourceID string) aliasIndex {
	if idx, ok := p.sourceIdx[sourceID]; ok {
		return idx
	}
	return p.defaultIdx
}

// Transform standardizes one raw row. A returned error is always a
// *ValidationError and means the row must be dropped; rows that merely
// violate the OHLC relationship are kept with a reduced quality score.
func (p *Pipeline) Transform(raw provider.RawRecord, sourceID string, freq market.Frequency) (market.CandleRecord, error) {
	fields, extra := p.index(sourceID).resolve(raw)

	symbol := convert.ToString(fields[fieldSymbol])
	if symbol == "" {
		return market.CandleRecord{}, &ValidationError{Field: fieldSymbol, Reason: "missing or empty"}
	}

	ts, tsPresent := time.Time{}, false
	if v, ok := fields[fieldTimestamp]; ok {
		ts, tsPresent = convert.ToTime(v)
		if !tsPresent {
			return market.CandleRecord{}, &ValidationError{Field: fieldTimestamp, Reason: fmt.Sprintf("unparseable value %v", v)}
		}
	} else {
		// rows with no timestamp field at all are stamped with the
		// current bar boundary rather than dropped
		ts = p.now().UTC().Truncate(freq.Duration())
	}

	open, okO := convert.ToDecimal(fields[fieldOpen])
	high, okH := convert.ToDecimal(fields[fieldHigh])
	low, okL := convert.ToDecimal(fields[fieldLow])
	cls, okC := convert.ToDecimal(fields[fieldClose])
	if !okO || !okH || !okL || !okC {
		return market.CandleRecord{}, &ValidationError{Field: "ohlc", Reason: "non-numeric price field"}
	}

	volume := convert.ToFloat64(fields[fieldVolume])
	volumePresent := fields[fieldVolume] != nil
	if volume < 0 {
		volume = 0
		volumePresent = false
	}
	amount := convert.ToFloat64(fields[fieldAmount])

	rec := market.CandleRecord{
		Symbol:    symbol,
		Source:    sourceID,
		Timestamp: ts,
		Frequency: freq,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    volume,
		Amount:    amount,
		Extra:     extra,
	}
	rec.QualityScore = p.score(rec, volumePresent)
	return rec, nil
}

// BatchSummary aggregates the outcome of a batch transform.
type BatchSummary struct {
	Accepted int
	Dropped  int
	Flagged  int
	Errors   []RowError
}

// RowError ties a validation failure to its row index in the batch.
type RowError struct {
	Index int
	Err   *ValidationError
}

// TransformBatch applies Transform independently per row. A bad row never
// fails the batch; it is counted and reported in the summary.
func (p *Pipeline) TransformBatch(raws []provider.RawRecord, sourceID string, freq market.Frequency) ([]market.CandleRecord, BatchSummary) {
	out := make([]market.CandleRecord, 0, len(raws))
	var sum BatchSummary
	for i, raw := range raws {
		rec, err := p.Transform(raw, sourceID, freq)
		if err != nil {
			sum.Dropped++
			var verr *ValidationError
			if ve, ok := err.(*ValidationError); ok {
				verr = ve
			} else {
				verr = &ValidationError{Field: "row", Reason: err.Error()}
			}
			sum.Errors = append(sum.Errors, RowError{Index: i, Err: verr})
			continue
		}
		if !rec.OHLCValid() {
			sum.Flagged++
		}
		sum.Accepted++
		out = append(out, rec)
	}
	return out, sum
}
