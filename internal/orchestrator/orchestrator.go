// Package orchestrator runs import tasks: one work item per symbol under a
// bounded worker pool, with mode-specific window resolution, retry with
// backoff on transient failures, and progress events per symbol.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"candleflow/internal/bus"
	"candleflow/internal/logger"
	"candleflow/internal/market"
	"candleflow/internal/router"
	"candleflow/internal/standardize"
	"candleflow/internal/store"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
)

// HardCapWorkers bounds the pool regardless of configuration.
const HardCapWorkers = 64

// Options is the validated orchestration configuration.
type Options struct {
	MaxWorkers       int
	RetryCount       int
	RetryBackoff     time.Duration
	FlushThreshold   int
	GapThresholdDays int
	LookbackDays     int
	FetchTimeout     time.Duration
	Fill             FillStrategy
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = 8
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.FlushThreshold <= 0 {
		o.FlushThreshold = 2000
	}
	if o.GapThresholdDays <= 0 {
		o.GapThresholdDays = 1
	}
	if o.LookbackDays <= 0 {
		o.LookbackDays = 365
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.Fill == nil {
		o.Fill = RecentWindowStrategy{Days: 30}
	}
	return o
}

// Orchestrator executes ImportTasks against an explicit context of
// collaborators; it holds no process-wide state.
type Orchestrator struct {
	opts     Options
	router   *router.Router
	pipeline *standardize.Pipeline
	store    store.CandleStore
	bus      bus.Bus
}

func New(opts Options, rt *router.Router, pipeline *standardize.Pipeline, st store.CandleStore, eventBus bus.Bus) (*Orchestrator, error) {
	if rt == nil || pipeline == nil || st == nil {
		return nil, fmt.Errorf("orchestrator requires router, pipeline and store")
	}
	if eventBus == nil {
		eventBus = bus.NopBus{}
	}
	return &Orchestrator{
		opts:     opts.withDefaults(),
		router:   rt,
		pipeline: pipeline,
		store:    st,
		bus:      eventBus,
	}, nil
}

// Run executes the task to completion. The returned error is non-nil only
// when the task could not start at all (invalid task, store provisioning);
// per-symbol failures are reported in the TaskResult instead.
func (o *Orchestrator) Run(ctx context.Context, task *ImportTask) (*TaskResult, error) {
	if err := task.validate(); err != nil {
		return nil, err
	}
	task.Status = StatusRunning
	started := time.Now()

	// Provision every destination shard up front: without a store there
	// is nowhere to write, so this failure is fatal for the whole task.
	classes := make(map[market.AssetClass]bool)
	for _, sym := range task.Symbols {
		classes[market.ClassifySymbol(sym)] = true
	}
	for class := range classes {
		if err := o.store.Provision(ctx, class); err != nil {
			task.Status = StatusFailed
			res := buildResult(task, nil, 0, time.Since(started))
			res.Error = err.Error()
			return res, err
		}
	}

	total := len(task.Symbols)
	o.bus.Publish(bus.Started{TaskID: task.ID, Total: total})

	workers := o.opts.MaxWorkers
	if task.MaxConcurrency > 0 && task.MaxConcurrency < workers {
		workers = task.MaxConcurrency
	}
	if total < workers {
		workers = total
	}
	if workers > HardCapWorkers {
		workers = HardCapWorkers
	}

	var (
		sem     = semaphore.NewWeighted(int64(workers))
		wg      sync.WaitGroup
		results = make([]SymbolResult, total)
		done    atomic.Int64
		records atomic.Int64
	)

	for i, symbol := range task.Symbols {
		// cancellation is observed between symbols, never mid-fetch
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = SymbolResult{Symbol: symbol, Status: SymbolFailed, ErrorKind: KindCanceled, Error: err.Error()}
			done.Add(1)
			continue
		}
		wg.Add(1)
		go func(idx int, sym string) {
			defer wg.Done()
			defer sem.Release(1)

			res := o.runSymbol(ctx, task, sym)
			results[idx] = res
			records.Add(res.Records)
			n := done.Add(1)

			if res.Status == SymbolFailed {
				o.bus.Publish(bus.Error{TaskID: task.ID, Symbol: sym, Kind: res.ErrorKind, Message: res.Error})
			}
			rate := 0.0
			if secs := time.Since(started).Seconds(); secs > 0 {
				rate = float64(records.Load()) / secs
			}
			o.bus.Publish(bus.Progress{TaskID: task.ID, Symbol: sym, Done: int(n), Total: total, Rate: rate})
		}(i, symbol)
	}
	wg.Wait()

	// a task that started always completes; per-symbol errors live in the report
	task.Status = StatusCompleted
	result := buildResult(task, results, records.Load(), time.Since(started))
	o.bus.Publish(bus.Completed{
		TaskID:      task.ID,
		Succeeded:   result.Succeeded,
		Failed:      result.Failed,
		DroppedRows: result.DroppedRows,
		Records:     result.Records,
	})
	return result, nil
}

func (o *Orchestrator) runSymbol(ctx context.Context, task *ImportTask, symbol string) SymbolResult {
	res := SymbolResult{Symbol: symbol, Status: SymbolSucceeded}
	class := market.ClassifySymbol(symbol)

	windows, err := o.resolveWindows(ctx, task, symbol, class)
	if err != nil {
		return SymbolResult{Symbol: symbol, Status: SymbolFailed, ErrorKind: classify(err), Error: err.Error()}
	}
	if len(windows) == 0 {
		logger.Debugf("symbol %s: nothing to fetch for mode %s", symbol, task.Mode)
		return res
	}

	var sourceID string
	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			res.Status = SymbolFailed
			res.ErrorKind = KindCanceled
			res.Error = err.Error()
			return res
		}
		n, dropped, flagged, src, err := o.runWindow(ctx, task, symbol, class, window)
		res.Records += n
		res.Dropped += dropped
		res.Flagged += flagged
		if src != "" {
			sourceID = src
		}
		if err != nil {
			res.Status = SymbolFailed
			res.ErrorKind = classify(err)
			res.Error = err.Error()
			return res
		}
	}

	if sourceID != "" {
		meta := market.AssetMetadata{
			Symbol:       symbol,
			AssetClass:   class,
			Sources:      []string{sourceID},
			LastVerified: time.Now().UTC(),
		}
		if err := o.store.UpsertMetadata(ctx, meta); err != nil {
			logger.Warnf("metadata upsert failed for %s: %v", symbol, err)
		}
	}
	return res
}

// runWindow performs fetch -> transform -> persist for one window, retried
// with exponential backoff on transient failures only. Counts are attempt
// local so a retry never double-counts.
func (o *Orchestrator) runWindow(ctx context.Context, task *ImportTask, symbol string, class market.AssetClass, window market.DateRange) (records int64, dropped, flagged int, sourceID string, err error) {
	op := func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
		raws, src, ferr := o.router.FetchBars(fetchCtx, symbol, window, task.Frequency)
		cancel()
		if ferr != nil {
			if !retryable(ferr) {
				return backoff.Permanent(ferr)
			}
			return ferr
		}

		recs, sum := o.pipeline.TransformBatch(raws, src, task.Frequency)
		var persisted int64
		for start := 0; start < len(recs); start += o.opts.FlushThreshold {
			end := start + o.opts.FlushThreshold
			if end > len(recs) {
				end = len(recs)
			}
			n, serr := o.store.Upsert(ctx, class, recs[start:end])
			if serr != nil {
				if !retryable(serr) {
					return backoff.Permanent(serr)
				}
				return serr
			}
			persisted += n
		}

		records = persisted
		dropped = sum.Dropped
		flagged = sum.Flagged
		sourceID = src
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = o.opts.RetryBackoff
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(o.opts.RetryCount)), ctx)

	if rerr := backoff.Retry(op, policy); rerr != nil {
		return records, dropped, flagged, sourceID, rerr
	}
	return records, dropped, flagged, sourceID, nil
}
