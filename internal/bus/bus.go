// Package bus defines the publish-only progress event contract. The core
// never blocks on Publish and makes no assumption about subscribers.
package bus

import "candleflow/internal/logger"

// Event is the tagged union of lifecycle notifications. Exactly one of
// the concrete types below is published per emission.
type Event interface {
	isEvent()
}

// Started signals that a task began running.
type Started struct {
	TaskID string
	Total  int
}

// Progress is emitted after each symbol completes, success or failure.
type Progress struct {
	TaskID string
	Symbol string
	Done   int
	Total  int
	Rate   float64 // records/sec since the task started
}

// Completed carries the final task summary.
type Completed struct {
	TaskID      string
	Succeeded   int
	Failed      int
	DroppedRows int
	Records     int64
}

// Error reports one per-symbol failure.
type Error struct {
	TaskID  string
	Symbol  string
	Kind    string
	Message string
}

func (Started) isEvent()   {}
func (Progress) isEvent()  {}
func (Completed) isEvent() {}
func (Error) isEvent()     {}

// Bus is the collaborator boundary consumed by external observers.
type Bus interface {
	Publish(event Event)
}

// NopBus discards every event.
type NopBus struct{}

func (NopBus) Publish(Event) {}

// LogBus writes events to the process log.
type LogBus struct{}

func (LogBus) Publish(event Event) {
	switch e := event.(type) {
	case Started:
		logger.Infof("task %s started (%d symbols)", e.TaskID, e.Total)
	case Progress:
		logger.Infof("task %s progress %d/%d (%.1f records/s)", e.TaskID, e.Done, e.Total, e.Rate)
	case Completed:
		logger.Infof("task %s completed: %d ok, %d failed, %d rows dropped, %d records",
			e.TaskID, e.Succeeded, e.Failed, e.DroppedRows, e.Records)
	case Error:
		logger.Warnf("task %s symbol %s failed (%s): %s", e.TaskID, e.Symbol, e.Kind, e.Message)
	}
}

// ChanBus buffers events on a channel, dropping when the buffer is full
// so publishers never block. Useful for tests and UIs.
type ChanBus struct {
	ch chan Event
}

func NewChanBus(buffer int) *ChanBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChanBus{ch: make(chan Event, buffer)}
}

func (b *ChanBus) Publish(event Event) {
	select {
	case b.ch <- event:
	default:
	}
}

// Events exposes the receive side.
func (b *ChanBus) Events() <-chan Event { return b.ch }
