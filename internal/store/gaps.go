package store

import (
	"context"
	"time"

	"candleflow/internal/market"
)

// MissingGaps detects contiguous missing spans of at least thresholdDays
// within the requested range, based on what is already persisted.
func (s *ShardedStore) MissingGaps(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency, r market.DateRange, thresholdDays int) ([]market.DateRange, error) {
	persisted, err := s.PersistedTimestamps(ctx, class, symbol, freq, r)
	if err != nil {
		return nil, err
	}
	return ComputeGaps(persisted, r, freq, thresholdDays), nil
}

// ComputeGaps is the pure gap computation, exported for the orchestrator's
// smart-fill strategies. A gap is a run of missing bar slots whose length
// is at least thresholdDays expressed in frequency steps.
func ComputeGaps(persisted []time.Time, r market.DateRange, freq market.Frequency, thresholdDays int) []market.DateRange {
	if thresholdDays < 1 {
		thresholdDays = 1
	}
	step := freq.Duration()
	threshold := time.Duration(thresholdDays) * 24 * time.Hour
	if threshold < step {
		threshold = step
	}

	if len(persisted) == 0 {
		return []market.DateRange{r}
	}

	var gaps []market.DateRange
	// leading gap before the first persisted bar
	if missing := persisted[0].Sub(r.Start); missing >= threshold {
		gaps = append(gaps, market.DateRange{Start: r.Start, End: persisted[0].Add(-step)})
	}
	// interior gaps between consecutive persisted bars
	for i := 1; i < len(persisted); i++ {
		prev, next := persisted[i-1], persisted[i]
		if missing := next.Sub(prev) - step; missing >= threshold {
			gaps = append(gaps, market.DateRange{Start: prev.Add(step), End: next.Add(-step)})
		}
	}
	// trailing gap after the last persisted bar
	last := persisted[len(persisted)-1]
	if missing := r.End.Sub(last); missing >= threshold {
		gaps = append(gaps, market.DateRange{Start: last.Add(step), End: r.End})
	}
	return gaps
}
