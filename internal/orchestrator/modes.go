package orchestrator

import (
	"context"
	"time"

	"candleflow/internal/market"
	"candleflow/internal/store"
)

// FillStrategy picks which missing windows a smart_fill run should fetch.
// The exact selection policy is deliberately pluggable.
type FillStrategy interface {
	Name() string
	Select(persisted []time.Time, r market.DateRange, freq market.Frequency) []market.DateRange
}

// RecentWindowStrategy fills only what is missing within the most recent
// N days of the requested range.
type RecentWindowStrategy struct {
	Days int
}

func (s RecentWindowStrategy) Name() string { return "recent_window" }

func (s RecentWindowStrategy) Select(persisted []time.Time, r market.DateRange, freq market.Frequency) []market.DateRange {
	days := s.Days
	if days <= 0 {
		days = 30
	}
	cutoff := r.End.AddDate(0, 0, -(days - 1))
	if cutoff.Before(r.Start) {
		cutoff = r.Start
	}
	clamped := market.DateRange{Start: cutoff, End: r.End}
	var inWindow []time.Time
	for _, ts := range persisted {
		if clamped.Contains(ts) {
			inWindow = append(inWindow, ts)
		}
	}
	return store.ComputeGaps(inWindow, clamped, freq, 1)
}

// ThresholdGapStrategy delegates to gap detection over the whole range.
type ThresholdGapStrategy struct {
	ThresholdDays int
}

func (s ThresholdGapStrategy) Name() string { return "gap_threshold" }

func (s ThresholdGapStrategy) Select(persisted []time.Time, r market.DateRange, freq market.Frequency) []market.DateRange {
	threshold := s.ThresholdDays
	if threshold <= 0 {
		threshold = 1
	}
	return store.ComputeGaps(persisted, r, freq, threshold)
}

// resolveWindows determines the effective fetch windows for one symbol
// according to the task mode. An empty result means nothing to fetch.
func (o *Orchestrator) resolveWindows(ctx context.Context, task *ImportTask, symbol string, class market.AssetClass) ([]market.DateRange, error) {
	switch task.Mode {
	case ModeFull:
		return []market.DateRange{task.Range}, nil

	case ModeIncremental:
		latest, ok, err := o.store.LatestTimestamp(ctx, class, symbol, task.Frequency)
		if err != nil {
			return nil, err
		}
		start := task.Range.Start
		if ok {
			// fetch strictly after the newest persisted bar
			start = latest.Add(task.Frequency.Duration())
		} else if lookback := task.Range.End.AddDate(0, 0, -o.opts.LookbackDays); lookback.After(start) {
			start = lookback
		}
		if start.After(task.Range.End) {
			return nil, nil
		}
		return []market.DateRange{{Start: start, End: task.Range.End}}, nil

	case ModeSmartFill:
		persisted, err := o.store.PersistedTimestamps(ctx, class, symbol, task.Frequency, task.Range)
		if err != nil {
			return nil, err
		}
		return o.opts.Fill.Select(persisted, task.Range, task.Frequency), nil

	case ModeGapFill:
		return o.store.MissingGaps(ctx, class, symbol, task.Frequency, task.Range, o.opts.GapThresholdDays)

	default:
		return []market.DateRange{task.Range}, nil
	}
}
