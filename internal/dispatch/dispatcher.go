package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"candleflow/internal/logger"
	"candleflow/internal/orchestrator"

	"golang.org/x/sync/errgroup"
)

// Dispatcher partitions a task's symbols across healthy worker nodes and
// merges their results. Any partition whose node is unhealthy, incompatible
// or times out runs through the local orchestrator instead, so dispatch
// always completes the full symbol set.
type Dispatcher struct {
	registry   *Registry
	client     *Client
	local      *orchestrator.Orchestrator
	rpcTimeout time.Duration
}

func NewDispatcher(registry *Registry, client *Client, local *orchestrator.Orchestrator, rpcTimeout time.Duration) (*Dispatcher, error) {
	if registry == nil || client == nil || local == nil {
		return nil, fmt.Errorf("dispatcher requires registry, client and local orchestrator")
	}
	if rpcTimeout <= 0 {
		rpcTimeout = 120 * time.Second
	}
	return &Dispatcher{registry: registry, client: client, local: local, rpcTimeout: rpcTimeout}, nil
}

// Dispatch executes the task across the cluster. The caller cannot tell a
// partially-local run from a fully-remote one: results are merged into one
// TaskResult with per-symbol status.
func (d *Dispatcher) Dispatch(ctx context.Context, task *orchestrator.ImportTask) (*orchestrator.TaskResult, error) {
	healthy := d.registry.Healthy()
	if len(healthy) == 0 {
		logger.Warnf("no healthy nodes, running task %s locally", task.ID)
		return d.local.Run(ctx, task)
	}

	partitions := partition(task.Symbols, len(healthy))
	started := time.Now()

	var (
		mu      sync.Mutex
		merged  []orchestrator.SymbolResult
		records int64
		dropped int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := range partitions {
		if len(partitions[i]) == 0 {
			continue
		}
		address := healthy[i]
		symbols := partitions[i]
		g.Go(func() error {
			results, n, dr := d.runPartition(gctx, task, address, symbols)
			mu.Lock()
			merged = append(merged, results...)
			records += n
			dropped += dr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	task.Status = orchestrator.StatusCompleted
	out := &orchestrator.TaskResult{
		TaskID:   task.ID,
		Status:   orchestrator.StatusCompleted,
		Symbols:  merged,
		Records:  records,
		Duration: time.Since(started),
	}
	for _, r := range merged {
		switch r.Status {
		case orchestrator.SymbolSucceeded:
			out.Succeeded++
		case orchestrator.SymbolFailed:
			out.Failed++
		}
		out.DroppedRows += r.Dropped
	}
	if secs := out.Duration.Seconds(); secs > 0 {
		out.Rate = float64(records) / secs
	}
	return out, nil
}

// runPartition tries the remote node first and falls back to local
// execution on any failure. The fallback is silent to the caller beyond a
// logged warning.
func (d *Dispatcher) runPartition(ctx context.Context, task *orchestrator.ImportTask, address string, symbols []string) ([]orchestrator.SymbolResult, int64, int) {
	rpcCtx, cancel := context.WithTimeout(ctx, d.rpcTimeout)
	resp, err := d.client.Execute(rpcCtx, address, ExecuteRequest{
		TaskID:         task.ID,
		Symbols:        symbols,
		Mode:           string(task.Mode),
		Frequency:      string(task.Frequency),
		Start:          task.Range.Start,
		End:            task.Range.End,
		MaxConcurrency: task.MaxConcurrency,
	})
	cancel()
	if err == nil {
		d.registry.recordSuccess(address)
		return resp.Results, resp.Records, resp.DroppedRows
	}

	d.registry.recordFailure(address)
	logger.Warnf("node %s failed for task %s (%d symbols), falling back to local: %v",
		address, task.ID, len(symbols), err)
	return d.runLocal(ctx, task, symbols)
}

func (d *Dispatcher) runLocal(ctx context.Context, task *orchestrator.ImportTask, symbols []string) ([]orchestrator.SymbolResult, int64, int) {
	sub := orchestrator.NewTask(symbols, task.Mode, task.Frequency, task.Range)
	sub.MaxConcurrency = task.MaxConcurrency
	res, err := d.local.Run(ctx, sub)
	if err != nil {
		kind := "local_fallback"
		out := make([]orchestrator.SymbolResult, len(symbols))
		for i, sym := range symbols {
			out[i] = orchestrator.SymbolResult{
				Symbol:    sym,
				Status:    orchestrator.SymbolFailed,
				ErrorKind: kind,
				Error:     err.Error(),
			}
		}
		return out, 0, 0
	}
	return res.Symbols, res.Records, res.DroppedRows
}

// partition deals symbols round-robin across n buckets.
func partition(symbols []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	out := make([][]string, n)
	for i, sym := range symbols {
		out[i%n] = append(out[i%n], sym)
	}
	return out
}
