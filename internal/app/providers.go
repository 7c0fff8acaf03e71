package app

import (
	"fmt"
	"strings"
	"time"

	"candleflow/internal/config"
	"candleflow/internal/logger"
	"candleflow/internal/provider/binance"
	"candleflow/internal/router"
)

// registerProviders builds the configured provider adapters and registers
// them on the router with their priorities.
func registerProviders(rt *router.Router, cfg *config.Config) error {
	registered := 0
	for _, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		kind := strings.ToLower(strings.TrimSpace(pc.Kind))
		if kind == "" {
			kind = strings.ToLower(pc.Name)
		}
		switch kind {
		case "binance", "binance-futures":
			src, err := binance.New(binance.Config{
				Name:        pc.Name,
				RESTBaseURL: pc.RESTBaseURL,
				HTTPTimeout: time.Duration(pc.TimeoutSec) * time.Second,
			})
			if err != nil {
				return fmt.Errorf("building provider %s: %w", pc.Name, err)
			}
			if err := rt.Register(src, pc.Priority); err != nil {
				return err
			}
			registered++
		default:
			return fmt.Errorf("unsupported provider kind: %q", pc.Kind)
		}
	}
	if registered == 0 {
		logger.Warnf("no providers registered; fetches will fail until one is added")
	}
	return nil
}
