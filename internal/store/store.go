// Package store persists canonical candles into one physical sqlite store
// per asset class, provisioned lazily on first use.
package store

import (
	"context"
	"errors"
	"time"

	"candleflow/internal/market"
)

// ErrProvision marks a fatal schema/provisioning failure: without a
// destination store the whole task must abort.
var ErrProvision = errors.New("store provisioning failed")

// CandleStore is the storage contract consumed by the orchestrator.
type CandleStore interface {
	// Provision opens (creating if absent) the class-specific store and
	// its schema. Idempotent.
	Provision(ctx context.Context, class market.AssetClass) error

	// Upsert inserts or field-updates records keyed by
	// (symbol, source, timestamp, frequency) and returns rows affected.
	// Individual malformed rows are skipped, not fatal.
	Upsert(ctx context.Context, class market.AssetClass, records []market.CandleRecord) (int64, error)

	// UpsertMetadata merges the symbol row; sources are append-only.
	UpsertMetadata(ctx context.Context, meta market.AssetMetadata) error

	// LatestTimestamp returns the newest persisted bar time for the
	// series, with ok=false when none exists.
	LatestTimestamp(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency) (time.Time, bool, error)

	// PersistedTimestamps lists bar times within the range, ascending.
	PersistedTimestamps(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency, r market.DateRange) ([]time.Time, error)

	// MissingGaps returns contiguous missing spans of at least
	// thresholdDays within the range.
	MissingGaps(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency, r market.DateRange, thresholdDays int) ([]market.DateRange, error)

	Close() error
}
