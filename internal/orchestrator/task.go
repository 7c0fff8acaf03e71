package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"candleflow/internal/market"

	"github.com/google/uuid"
)

// Mode selects how the effective fetch window is resolved per symbol.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
	ModeSmartFill   Mode = "smart_fill"
	ModeGapFill     Mode = "gap_fill"
)

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModeFull, ModeIncremental, ModeSmartFill, ModeGapFill:
		return m, nil
	}
	return "", fmt.Errorf("unknown import mode: %q", s)
}

// TaskStatus transitions monotonically pending -> running -> terminal.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// ImportTask is one import request. It is owned exclusively by the
// orchestrator that runs it and is immutable once terminal.
type ImportTask struct {
	ID             string           `json:"task_id"`
	Symbols        []string         `json:"symbols"`
	Mode           Mode             `json:"mode"`
	Frequency      market.Frequency `json:"frequency"`
	Range          market.DateRange `json:"date_range"`
	MaxConcurrency int              `json:"max_concurrency"`
	Status         TaskStatus       `json:"status"`
}

func NewTask(symbols []string, mode Mode, freq market.Frequency, r market.DateRange) *ImportTask {
	return &ImportTask{
		ID:        uuid.NewString(),
		Symbols:   symbols,
		Mode:      mode,
		Frequency: freq,
		Range:     r,
		Status:    StatusPending,
	}
}

func (t *ImportTask) validate() error {
	if t == nil {
		return fmt.Errorf("nil task")
	}
	if len(t.Symbols) == 0 {
		return fmt.Errorf("task %s has no symbols", t.ID)
	}
	if _, err := ParseMode(string(t.Mode)); err != nil {
		return err
	}
	if !t.Frequency.Valid() {
		return fmt.Errorf("task %s has invalid frequency %q", t.ID, t.Frequency)
	}
	if t.Range.IsZero() || t.Range.End.Before(t.Range.Start) {
		return fmt.Errorf("task %s has invalid date range", t.ID)
	}
	if t.Status != StatusPending {
		return fmt.Errorf("task %s is not pending (status=%s)", t.ID, t.Status)
	}
	return nil
}

// SymbolStatus is the per-work-item outcome.
type SymbolStatus string

const (
	SymbolSucceeded SymbolStatus = "succeeded"
	SymbolFailed    SymbolStatus = "failed"
)

// SymbolResult records what happened to one symbol's work item.
// Failure is data here, not control flow.
type SymbolResult struct {
	Symbol    string       `json:"symbol"`
	Status    SymbolStatus `json:"status"`
	Records   int64        `json:"records"`
	Dropped   int          `json:"dropped"`
	Flagged   int          `json:"flagged"`
	ErrorKind string       `json:"error_kind,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// TaskResult is the aggregated report for a finished task.
type TaskResult struct {
	TaskID      string         `json:"task_id"`
	Status      TaskStatus     `json:"status"`
	Symbols     []SymbolResult `json:"symbols"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	DroppedRows int            `json:"dropped_rows"`
	Records     int64          `json:"records"`
	Duration    time.Duration  `json:"duration"`
	Rate        float64        `json:"rate"` // records/sec
	Error       string         `json:"error,omitempty"`
}

func buildResult(task *ImportTask, results []SymbolResult, records int64, elapsed time.Duration) *TaskResult {
	out := &TaskResult{
		TaskID:   task.ID,
		Status:   task.Status,
		Symbols:  results,
		Records:  records,
		Duration: elapsed,
	}
	for _, r := range results {
		switch r.Status {
		case SymbolSucceeded:
			out.Succeeded++
		case SymbolFailed:
			out.Failed++
		}
		out.DroppedRows += r.Dropped
	}
	if secs := elapsed.Seconds(); secs > 0 {
		out.Rate = float64(records) / secs
	}
	return out
}
