package config

import (
	"fmt"
	"strings"

	"candleflow/internal/market"
)

var validModes = map[string]bool{
	"full":        true,
	"incremental": true,
	"smart_fill":  true,
	"gap_fill":    true,
}

func validate(c *Config) error {
	if err := c.Import.validate(); err != nil {
		return err
	}
	if err := c.Dispatch.validate(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("providers entry without name")
		}
		if seen[name] {
			return fmt.Errorf("duplicate provider name: %s", name)
		}
		seen[name] = true
	}
	return nil
}

func (i *ImportConfig) validate() error {
	if !validModes[i.Mode] {
		return fmt.Errorf("import.mode must be one of full/incremental/smart_fill/gap_fill, got %q", i.Mode)
	}
	if _, err := market.ParseFrequency(i.Frequency); err != nil {
		return fmt.Errorf("import.frequency: %w", err)
	}
	if i.MaxConcurrency < 1 {
		return fmt.Errorf("import.max_concurrency must be >= 1")
	}
	if i.RetryCount < 0 {
		return fmt.Errorf("import.retry_count must be >= 0")
	}
	if i.GapThresholdDays < 1 {
		return fmt.Errorf("import.gap_threshold_days must be >= 1")
	}
	switch i.SmartFillStrategy {
	case "recent_window", "gap_threshold":
	default:
		return fmt.Errorf("import.smart_fill_strategy must be recent_window or gap_threshold, got %q", i.SmartFillStrategy)
	}
	return nil
}

func (d *DispatchConfig) validate() error {
	if !d.Enabled {
		return nil
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("dispatch.enabled requires at least one node address")
	}
	for _, addr := range d.Nodes {
		if strings.TrimSpace(addr) == "" {
			return fmt.Errorf("dispatch.nodes contains empty address")
		}
	}
	return nil
}
