// Package provider defines the capability interface every upstream
// market-data provider must satisfy. Providers are otherwise opaque;
// wire protocols, auth and rate limiting live behind this boundary.
package provider

import (
	"context"

	"candleflow/internal/market"
)

// RawRecord is one bar as a provider hands it back, before any
// standardization. Field names and types are provider-specific.
type RawRecord map[string]any

// RawAssetInfo is one symbol as discovered from a provider's asset list.
type RawAssetInfo struct {
	Symbol string
	Name   string
	Market string
	Class  market.AssetClass
}

// Provider is the three-call capability contract. Implementations are
// checked at registration time, not per call.
type Provider interface {
	// Name identifies the provider; it is stamped on every record as
	// provenance and must be unique within a router.
	Name() string

	// FetchBars returns raw bars for the symbol over [r.Start, r.End].
	FetchBars(ctx context.Context, symbol string, r market.DateRange, freq market.Frequency) ([]RawRecord, error)

	// FetchAssetList returns the provider's symbol universe, optionally
	// narrowed to one asset class ("" means all).
	FetchAssetList(ctx context.Context, class market.AssetClass) ([]RawAssetInfo, error)

	// Health reports whether the provider is currently usable.
	Health(ctx context.Context) bool
}
