// Package app wires the import stack together. ImportContext replaces any
// notion of process-wide singletons: every collaborator is constructed once
// here and passed down explicitly.
package app

import (
	"context"
	"fmt"
	"time"

	"candleflow/internal/bus"
	"candleflow/internal/config"
	"candleflow/internal/dispatch"
	"candleflow/internal/logger"
	"candleflow/internal/market"
	"candleflow/internal/orchestrator"
	"candleflow/internal/router"
	"candleflow/internal/standardize"
	"candleflow/internal/store"
	nodehttp "candleflow/internal/transport/http/node"
)

// ImportContext carries the constructed collaborators for one process.
type ImportContext struct {
	Cfg          *config.Config
	Router       *router.Router
	Pipeline     *standardize.Pipeline
	Store        store.CandleStore
	Bus          bus.Bus
	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *dispatch.Dispatcher
	Registry     *dispatch.Registry
}

// Build constructs the full stack from config.
func Build(cfg *config.Config) (*ImportContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	rt := router.New()
	if err := registerProviders(rt, cfg); err != nil {
		return nil, err
	}

	st, err := store.NewShardedStore(cfg.Store.Root)
	if err != nil {
		return nil, err
	}

	pipeline := standardize.New()
	eventBus := bus.Bus(bus.LogBus{})

	fill, err := fillStrategy(cfg.Import)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(orchestrator.Options{
		MaxWorkers:       cfg.Import.MaxConcurrency,
		RetryCount:       cfg.Import.RetryCount,
		RetryBackoff:     time.Duration(cfg.Import.RetryBackoffMS) * time.Millisecond,
		FlushThreshold:   cfg.Import.FlushThreshold,
		GapThresholdDays: cfg.Import.GapThresholdDays,
		LookbackDays:     cfg.Import.LookbackDays,
		FetchTimeout:     time.Duration(cfg.Import.FetchTimeoutSeconds) * time.Second,
		Fill:             fill,
	}, rt, pipeline, st, eventBus)
	if err != nil {
		return nil, err
	}

	ic := &ImportContext{
		Cfg:          cfg,
		Router:       rt,
		Pipeline:     pipeline,
		Store:        st,
		Bus:          eventBus,
		Orchestrator: orch,
	}

	if cfg.Dispatch.Enabled {
		registry := dispatch.NewRegistry(cfg.Dispatch.Nodes...)
		client := dispatch.NewClient(time.Duration(cfg.Dispatch.RPCTimeoutSeconds) * time.Second)
		dispatcher, err := dispatch.NewDispatcher(registry, client, orch,
			time.Duration(cfg.Dispatch.RPCTimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		ic.Registry = registry
		ic.Dispatcher = dispatcher
	}
	return ic, nil
}

func fillStrategy(cfg config.ImportConfig) (orchestrator.FillStrategy, error) {
	switch cfg.SmartFillStrategy {
	case "", "recent_window":
		return orchestrator.RecentWindowStrategy{Days: cfg.SmartFillDays}, nil
	case "gap_threshold":
		return orchestrator.ThresholdGapStrategy{ThresholdDays: cfg.GapThresholdDays}, nil
	default:
		return nil, fmt.Errorf("unknown smart fill strategy: %q", cfg.SmartFillStrategy)
	}
}

// RunImport executes a task, through the dispatcher when one is configured.
func (ic *ImportContext) RunImport(ctx context.Context, task *orchestrator.ImportTask) (*orchestrator.TaskResult, error) {
	if ic.Dispatcher != nil {
		if ic.Registry != nil {
			hbCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			client := dispatch.NewClient(time.Duration(ic.Cfg.Dispatch.RPCTimeoutSeconds) * time.Second)
			ic.Registry.StartHeartbeat(hbCtx, client, time.Duration(ic.Cfg.Dispatch.HeartbeatSeconds)*time.Second)
		}
		return ic.Dispatcher.Dispatch(ctx, task)
	}
	return ic.Orchestrator.Run(ctx, task)
}

// DiscoverAssets refreshes the symbol universe for one asset class and
// merges it into the metadata registry.
func (ic *ImportContext) DiscoverAssets(ctx context.Context, class market.AssetClass) (int, error) {
	assets, sourceID, err := ic.Router.FetchAssetList(ctx, class)
	if err != nil {
		return 0, err
	}
	count := 0
	now := time.Now().UTC()
	for _, a := range assets {
		cls := a.Class
		if cls == "" {
			cls = market.ClassifySymbol(a.Symbol)
		}
		meta := market.AssetMetadata{
			Symbol:       a.Symbol,
			Name:         a.Name,
			AssetClass:   cls,
			Market:       a.Market,
			Sources:      []string{sourceID},
			LastVerified: now,
		}
		if err := ic.Store.UpsertMetadata(ctx, meta); err != nil {
			logger.Warnf("metadata upsert failed for %s: %v", a.Symbol, err)
			continue
		}
		count++
	}
	return count, nil
}

// ServeNode runs this process as a worker node until ctx ends.
func (ic *ImportContext) ServeNode(ctx context.Context) error {
	server, err := nodehttp.NewServer(ic.Cfg.Node.ListenAddr, ic.Orchestrator)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

// Close releases held resources.
func (ic *ImportContext) Close() error {
	if ic.Store != nil {
		return ic.Store.Close()
	}
	return nil
}
