package router

import (
	"sync"
	"time"
)

const (
	healthRecovery = 0.5 // fraction of remaining headroom regained per success
	healthPenalty  = 0.3 // multiplier applied on failure
	degradedBelow  = 0.5
)

type healthEntry struct {
	score       float64
	lastFailure time.Time
	failures    int64
	successes   int64
}

// healthRegistry tracks a score in [0,1] per provider. Reads dominate, so
// it is guarded by an RWMutex. Scores decay exponentially toward healthy on
// success and drop sharply on failure.
type healthRegistry struct {
	mu      sync.RWMutex
	entries map[string]*healthEntry
}

func newHealthRegistry() *healthRegistry {
	return &healthRegistry{entries: make(map[string]*healthEntry)}
}

func (h *healthRegistry) ensure(name string) {
	h.mu.Lock()
	if _, ok := h.entries[name]; !ok {
		h.entries[name] = &healthEntry{score: 1.0}
	}
	h.mu.Unlock()
}

func (h *healthRegistry) recordSuccess(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entries[name]
	if e == nil {
		e = &healthEntry{score: 1.0}
		h.entries[name] = e
	}
	e.score += (1.0 - e.score) * healthRecovery
	e.successes++
}

func (h *healthRegistry) recordFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := h.entries[name]
	if e == nil {
		e = &healthEntry{score: 1.0}
		h.entries[name] = e
	}
	e.score *= healthPenalty
	e.failures++
	e.lastFailure = time.Now()
}

func (h *healthRegistry) snapshot(name string) (score float64, lastFailure time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e := h.entries[name]
	if e == nil {
		return 1.0, time.Time{}
	}
	return e.score, e.lastFailure
}

// ProviderHealth is a read-only view used for ranking and reporting.
type ProviderHealth struct {
	Name        string
	Score       float64
	Degraded    bool
	LastFailure time.Time
	Failures    int64
	Successes   int64
}

func (h *healthRegistry) report() []ProviderHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ProviderHealth, 0, len(h.entries))
	for name, e := range h.entries {
		out = append(out, ProviderHealth{
			Name:        name,
			Score:       e.score,
			Degraded:    e.score < degradedBelow,
			LastFailure: e.lastFailure,
			Failures:    e.failures,
			Successes:   e.successes,
		})
	}
	return out
}
