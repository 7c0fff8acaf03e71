package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CandleModel is one persisted OHLCV bar. The composite unique index on
// (symbol, source, timestamp, frequency) backs the upsert semantics.
type CandleModel struct {
	ID           int64           `gorm:"column:id;primaryKey"`
	Symbol       string          `gorm:"column:symbol;uniqueIndex:idx_candle_key,priority:1;index:idx_candle_series,priority:1"`
	Source       string          `gorm:"column:source;uniqueIndex:idx_candle_key,priority:2"`
	Timestamp    int64           `gorm:"column:timestamp;uniqueIndex:idx_candle_key,priority:3;index:idx_candle_series,priority:3"` // unix millis, UTC
	Frequency    string          `gorm:"column:frequency;uniqueIndex:idx_candle_key,priority:4;index:idx_candle_series,priority:2"`
	Open         decimal.Decimal `gorm:"column:open;type:decimal(32,12)"`
	High         decimal.Decimal `gorm:"column:high;type:decimal(32,12)"`
	Low          decimal.Decimal `gorm:"column:low;type:decimal(32,12)"`
	Close        decimal.Decimal `gorm:"column:close;type:decimal(32,12)"`
	Volume       float64         `gorm:"column:volume"`
	Amount       float64         `gorm:"column:amount"`
	QualityScore float64         `gorm:"column:quality_score"`
	Extra        datatypes.JSON  `gorm:"column:extra;type:TEXT"`
	CreatedAt    int64           `gorm:"column:created_at"`
	UpdatedAt    int64           `gorm:"column:updated_at"`
}

func (CandleModel) TableName() string { return "candles" }

// candleUpdateColumns are the fields refreshed on conflict. created_at is
// deliberately absent so the original insert time survives re-imports.
var CandleUpdateColumns = []string{
	"open", "high", "low", "close", "volume", "amount",
	"quality_score", "extra", "updated_at",
}

// AssetMetadataModel is the per-symbol registry row.
type AssetMetadataModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	Symbol        string         `gorm:"column:symbol;uniqueIndex"`
	Name          string         `gorm:"column:name"`
	AssetClass    string         `gorm:"column:asset_class"`
	Market        string         `gorm:"column:market"`
	Sources       datatypes.JSON `gorm:"column:sources;type:TEXT"`
	PrimarySource string         `gorm:"column:primary_source"`
	LastVerified  int64          `gorm:"column:last_verified"`
	CreatedAt     int64          `gorm:"column:created_at"`
	UpdatedAt     int64          `gorm:"column:updated_at"`
}

func (AssetMetadataModel) TableName() string { return "asset_metadata" }
