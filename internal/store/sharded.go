package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"candleflow/internal/logger"
	"candleflow/internal/market"
	"candleflow/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/clause"
)

const upsertBatchSize = 500

// ShardedStore routes each asset class to its own sqlite file under root,
// opening and migrating shards lazily on first use.
type ShardedStore struct {
	root string

	mu  sync.Mutex
	dbs map[market.AssetClass]*gorm.DB
}

func NewShardedStore(root string) (*ShardedStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("store root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvision, err)
	}
	return &ShardedStore{root: root, dbs: make(map[market.AssetClass]*gorm.DB)}, nil
}

// shard returns the open DB for the class, provisioning it if absent.
func (s *ShardedStore) shard(class market.AssetClass) (*gorm.DB, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: unknown asset class %q", ErrProvision, class)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[class]; ok {
		return db, nil
	}
	path := filepath.Join(s.root, string(class)+".db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrProvision, path, err)
	}
	if err := db.AutoMigrate(&model.CandleModel{}, &model.AssetMetadataModel{}); err != nil {
		return nil, fmt.Errorf("%w: migrate %s: %v", ErrProvision, path, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: a little parallelism for concurrent workers
		// while keeping lock contention low.
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(4)
	}
	s.dbs[class] = db
	return db, nil
}

func (s *ShardedStore) Provision(ctx context.Context, class market.AssetClass) error {
	_, err := s.shard(class)
	return err
}

func (s *ShardedStore) Upsert(ctx context.Context, class market.AssetClass, records []market.CandleRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	db, err := s.shard(class)
	if err != nil {
		return 0, err
	}
	models := make([]model.CandleModel, 0, len(records))
	now := time.Now().UnixMilli()
	for _, rec := range records {
		m, err := toCandleModel(rec, now)
		if err != nil {
			logger.Warnf("skipping malformed record %s: %v", rec.Key(), err)
			continue
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return 0, nil
	}
	tx := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "symbol"}, {Name: "source"}, {Name: "timestamp"}, {Name: "frequency"},
		},
		DoUpdates: clause.AssignmentColumns(model.CandleUpdateColumns),
	}).CreateInBatches(models, upsertBatchSize)
	if tx.Error == nil {
		return tx.RowsAffected, nil
	}

	// The batch failed as a whole (e.g. one row violating a constraint).
	// Retry row by row so a single offender cannot sink its neighbors.
	logger.Warnf("batch upsert failed for %s, retrying row-by-row: %v", class, tx.Error)
	var affected int64
	for i := range models {
		rowTx := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "symbol"}, {Name: "source"}, {Name: "timestamp"}, {Name: "frequency"},
			},
			DoUpdates: clause.AssignmentColumns(model.CandleUpdateColumns),
		}).Create(&models[i])
		if rowTx.Error != nil {
			logger.Warnf("skipping row %s/%s@%d: %v", models[i].Symbol, models[i].Source, models[i].Timestamp, rowTx.Error)
			continue
		}
		affected += rowTx.RowsAffected
	}
	return affected, nil
}

func toCandleModel(rec market.CandleRecord, nowMilli int64) (model.CandleModel, error) {
	if rec.Symbol == "" || rec.Source == "" {
		return model.CandleModel{}, fmt.Errorf("missing symbol or source")
	}
	if rec.Timestamp.IsZero() {
		return model.CandleModel{}, fmt.Errorf("zero timestamp")
	}
	var extra datatypes.JSON
	if len(rec.Extra) > 0 {
		raw, err := json.Marshal(rec.Extra)
		if err != nil {
			return model.CandleModel{}, fmt.Errorf("marshal extra: %w", err)
		}
		extra = datatypes.JSON(raw)
	}
	return model.CandleModel{
		Symbol:       rec.Symbol,
		Source:       rec.Source,
		Timestamp:    rec.Timestamp.UTC().UnixMilli(),
		Frequency:    string(rec.Frequency),
		Open:         rec.Open,
		High:         rec.High,
		Low:          rec.Low,
		Close:        rec.Close,
		Volume:       rec.Volume,
		Amount:       rec.Amount,
		QualityScore: rec.QualityScore,
		Extra:        extra,
		CreatedAt:    nowMilli,
		UpdatedAt:    nowMilli,
	}, nil
}

func (s *ShardedStore) UpsertMetadata(ctx context.Context, meta market.AssetMetadata) error {
	if strings.TrimSpace(meta.Symbol) == "" {
		return fmt.Errorf("metadata symbol cannot be empty")
	}
	class := meta.AssetClass
	if class == "" {
		class = market.ClassifySymbol(meta.Symbol)
	}
	db, err := s.shard(class)
	if err != nil {
		return err
	}

	merged := meta
	var existing model.AssetMetadataModel
	found := db.WithContext(ctx).Where("symbol = ?", meta.Symbol).First(&existing).Error == nil
	if found {
		var prior []string
		if len(existing.Sources) > 0 {
			_ = json.Unmarshal(existing.Sources, &prior)
		}
		merged.Sources = prior
		merged.MergeSources(meta.Sources...)
		if existing.PrimarySource != "" {
			merged.PrimarySource = existing.PrimarySource
		}
	} else {
		merged.Sources = nil
		merged.MergeSources(meta.Sources...)
	}
	if merged.PrimarySource == "" && len(merged.Sources) > 0 {
		merged.PrimarySource = merged.Sources[0]
	}

	sources, err := json.Marshal(merged.Sources)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	row := model.AssetMetadataModel{
		Symbol:        merged.Symbol,
		Name:          merged.Name,
		AssetClass:    string(class),
		Market:        merged.Market,
		Sources:       datatypes.JSON(sources),
		PrimarySource: merged.PrimarySource,
		LastVerified:  merged.LastVerified.UTC().UnixMilli(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "market", "sources", "primary_source", "last_verified", "updated_at",
		}),
	}).Create(&row).Error
}

func (s *ShardedStore) LatestTimestamp(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency) (time.Time, bool, error) {
	db, err := s.shard(class)
	if err != nil {
		return time.Time{}, false, err
	}
	var latest sql.NullInt64
	row := db.WithContext(ctx).Model(&model.CandleModel{}).
		Where("symbol = ? AND frequency = ?", symbol, string(freq)).
		Select("MAX(timestamp)").Row()
	if err := row.Scan(&latest); err != nil {
		return time.Time{}, false, err
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(latest.Int64).UTC(), true, nil
}

func (s *ShardedStore) PersistedTimestamps(ctx context.Context, class market.AssetClass, symbol string, freq market.Frequency, r market.DateRange) ([]time.Time, error) {
	db, err := s.shard(class)
	if err != nil {
		return nil, err
	}
	var millis []int64
	err = db.WithContext(ctx).Model(&model.CandleModel{}).
		Where("symbol = ? AND frequency = ? AND timestamp BETWEEN ? AND ?",
			symbol, string(freq), r.Start.UnixMilli(), r.End.UnixMilli()).
		Order("timestamp ASC").
		Distinct().
		Pluck("timestamp", &millis).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(millis))
	for i, ms := range millis {
		out[i] = time.UnixMilli(ms).UTC()
	}
	return out, nil
}

func (s *ShardedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for class, db := range s.dbs {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, class)
	}
	return firstErr
}
