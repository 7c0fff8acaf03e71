// Package router selects among registered providers by priority and
// observed health, failing over to the next candidate on error.
package router

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"candleflow/internal/logger"
	"candleflow/internal/market"
	"candleflow/internal/provider"
)

// ErrNoProviderAvailable is returned once every candidate has failed.
var ErrNoProviderAvailable = errors.New("no provider available")

type entry struct {
	p        provider.Provider
	priority int
}

// Router holds the provider registry and the shared health state.
// Registration happens at startup; Execute is safe for concurrent use.
type Router struct {
	mu      sync.RWMutex
	entries []entry
	health  *healthRegistry
}

func New() *Router {
	return &Router{health: newHealthRegistry()}
}

// Register adds a provider with the given priority (lower ranks first).
// The capability contract is verified here rather than at call time.
func (r *Router) Register(p provider.Provider, priority int) error {
	if p == nil {
		return fmt.Errorf("cannot register nil provider")
	}
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.p.Name() == name {
			return fmt.Errorf("provider %q already registered", name)
		}
	}
	r.entries = append(r.entries, entry{p: p, priority: priority})
	r.health.ensure(name)
	return nil
}

// Route returns the registered providers ranked by (priority, health score,
// recency of last failure). The slice is a snapshot; callers own it.
func (r *Router) Route() []provider.Provider {
	r.mu.RLock()
	ranked := make([]entry, len(r.entries))
	copy(ranked, r.entries)
	r.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].priority != ranked[j].priority {
			return ranked[i].priority < ranked[j].priority
		}
		si, fi := r.health.snapshot(ranked[i].p.Name())
		sj, fj := r.health.snapshot(ranked[j].p.Name())
		if si != sj {
			return si > sj
		}
		return fi.Before(fj)
	})
	out := make([]provider.Provider, len(ranked))
	for i, e := range ranked {
		out[i] = e.p
	}
	return out
}

// FetchBars tries each ranked candidate until one succeeds, recording
// health on every attempt. The name of the provider that produced the
// data is returned for provenance stamping.
func (r *Router) FetchBars(ctx context.Context, symbol string, dr market.DateRange, freq market.Frequency) ([]provider.RawRecord, string, error) {
	candidates := r.Route()
	if len(candidates) == 0 {
		return nil, "", ErrNoProviderAvailable
	}
	var lastErr error
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		records, err := p.FetchBars(ctx, symbol, dr, freq)
		if err != nil {
			r.health.recordFailure(p.Name())
			logger.Warnf("provider %s failed for %s: %v", p.Name(), symbol, err)
			lastErr = err
			continue
		}
		r.health.recordSuccess(p.Name())
		return records, p.Name(), nil
	}
	return nil, "", fmt.Errorf("%w: %d candidates exhausted for %s: %v",
		ErrNoProviderAvailable, len(candidates), symbol, lastErr)
}

// FetchAssetList mirrors FetchBars for asset discovery.
func (r *Router) FetchAssetList(ctx context.Context, class market.AssetClass) ([]provider.RawAssetInfo, string, error) {
	candidates := r.Route()
	if len(candidates) == 0 {
		return nil, "", ErrNoProviderAvailable
	}
	var lastErr error
	for _, p := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		assets, err := p.FetchAssetList(ctx, class)
		if err != nil {
			r.health.recordFailure(p.Name())
			lastErr = err
			continue
		}
		r.health.recordSuccess(p.Name())
		if len(assets) == 0 {
			continue
		}
		return assets, p.Name(), nil
	}
	if lastErr == nil {
		return nil, "", nil
	}
	return nil, "", fmt.Errorf("%w: %v", ErrNoProviderAvailable, lastErr)
}

// Health reports the current per-provider health view.
func (r *Router) Health() []ProviderHealth {
	return r.health.report()
}
