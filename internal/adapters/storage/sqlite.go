// Package storage persists the on-chain state layout (reporters, tracked
// devices, reading history, commitments, nullifiers) in SQLite via GORM.
package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/crypto"
)

// SQLiteAdapter implements ports.Storage.
type SQLiteAdapter struct {
	db *gorm.DB
}

// ReporterModel is the GORM model for reporters.
type ReporterModel struct {
	ID        uint32 `gorm:"primaryKey;autoIncrement:false"`
	Account   uint64
	PositionX int32
	PositionY int32
	PositionZ int32
	Active    bool
}

// TrackedDeviceModel is the GORM model for tracked devices.
type TrackedDeviceModel struct {
	MacHash        string `gorm:"primaryKey;size:66"`
	SignalType     uint8
	FirstSeenBlock uint64
	LastSeenBlock  uint64
	ReadingCount   uint32
	Confidence     uint8
	State          uint8
}

// SignalReadingModel stores the bounded per-device reading history.
type SignalReadingModel struct {
	ID           uint   `gorm:"primaryKey"`
	MacHash      string `gorm:"index;size:66"`
	ReporterID   uint32
	RSSI         int8
	FrequencyMHz uint16
	BlockNumber  uint64
}

// CommitmentModel stores one commitment per (reporter, block).
type CommitmentModel struct {
	ReporterID  uint32 `gorm:"primaryKey;autoIncrement:false"`
	BlockNumber uint64 `gorm:"primaryKey;autoIncrement:false"`
	Commitment  string `gorm:"size:66"`
	DeviceCount uint8
	Revealed    bool
}

// NullifierModel is the append-only nullifier set.
type NullifierModel struct {
	Hash string `gorm:"primaryKey;size:66"`
}

// NewSQLiteAdapter opens (or creates) the database and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}

	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("enable otel tracing: %w", err)
	}

	if err := db.AutoMigrate(
		&ReporterModel{},
		&TrackedDeviceModel{},
		&SignalReadingModel{},
		&CommitmentModel{},
		&NullifierModel{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteAdapter{db: db}, nil
}

var _ ports.Storage = (*SQLiteAdapter)(nil)

func (a *SQLiteAdapter) SaveReporter(ctx context.Context, r domain.Reporter) error {
	model := ReporterModel{
		ID:        uint32(r.ID),
		Account:   uint64(r.Account),
		PositionX: r.Position.X,
		PositionY: r.Position.Y,
		PositionZ: r.Position.Z,
		Active:    r.Active,
	}
	// Reporter 0 is legitimate; an upsert keyed on the id avoids GORM's
	// zero-PK create heuristic.
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
}

func (a *SQLiteAdapter) ListReporters(ctx context.Context) ([]domain.Reporter, error) {
	var models []ReporterModel
	if err := a.db.WithContext(ctx).Order("id asc").Find(&models).Error; err != nil {
		return nil, err
	}
	reporters := make([]domain.Reporter, 0, len(models))
	for _, m := range models {
		reporters = append(reporters, domain.Reporter{
			ID:       domain.ReporterID(m.ID),
			Account:  domain.AccountID(m.Account),
			Position: domain.Position{X: m.PositionX, Y: m.PositionY, Z: m.PositionZ},
			Active:   m.Active,
		})
	}
	return reporters, nil
}

func (a *SQLiteAdapter) SaveTrackedDevice(ctx context.Context, d domain.TrackedDevice) error {
	model := TrackedDeviceModel{
		MacHash:        d.MacHash.Hex(),
		SignalType:     uint8(d.SignalType),
		FirstSeenBlock: d.FirstSeenBlock,
		LastSeenBlock:  d.LastSeenBlock,
		ReadingCount:   d.ReadingCount,
		Confidence:     d.Confidence,
		State:          uint8(d.State),
	}
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
}

func (a *SQLiteAdapter) ListTrackedDevices(ctx context.Context) ([]domain.TrackedDevice, error) {
	var models []TrackedDeviceModel
	if err := a.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	devices := make([]domain.TrackedDevice, 0, len(models))
	for _, m := range models {
		macHash, err := parseHexHash(m.MacHash)
		if err != nil {
			return nil, err
		}
		devices = append(devices, domain.TrackedDevice{
			MacHash:        macHash,
			SignalType:     domain.SignalType(m.SignalType),
			FirstSeenBlock: m.FirstSeenBlock,
			LastSeenBlock:  m.LastSeenBlock,
			ReadingCount:   m.ReadingCount,
			Confidence:     m.Confidence,
			State:          domain.DeviceState(m.State),
		})
	}
	return devices, nil
}

func (a *SQLiteAdapter) AppendReading(ctx context.Context, macHash crypto.H256, reading domain.SignalReading) error {
	model := SignalReadingModel{
		MacHash:      macHash.Hex(),
		ReporterID:   uint32(reading.ReporterID),
		RSSI:         reading.RSSI,
		FrequencyMHz: reading.FrequencyMHz,
		BlockNumber:  reading.BlockNumber,
	}
	return a.db.WithContext(ctx).Create(&model).Error
}

func (a *SQLiteAdapter) DeviceHistory(ctx context.Context, macHash crypto.H256, limit int) ([]domain.SignalReading, error) {
	var models []SignalReadingModel
	query := a.db.WithContext(ctx).
		Where("mac_hash = ?", macHash.Hex()).
		Order("block_number desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	readings := make([]domain.SignalReading, 0, len(models))
	for _, m := range models {
		readings = append(readings, domain.SignalReading{
			ReporterID:   domain.ReporterID(m.ReporterID),
			RSSI:         m.RSSI,
			FrequencyMHz: m.FrequencyMHz,
			BlockNumber:  m.BlockNumber,
		})
	}
	return readings, nil
}

func (a *SQLiteAdapter) SaveCommitment(ctx context.Context, reporter domain.ReporterID, block uint64, commitment crypto.H256, deviceCount uint8) error {
	model := CommitmentModel{
		ReporterID:  uint32(reporter),
		BlockNumber: block,
		Commitment:  commitment.Hex(),
		DeviceCount: deviceCount,
	}
	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model).Error
}

func (a *SQLiteAdapter) DeleteCommitment(ctx context.Context, reporter domain.ReporterID, block uint64) error {
	return a.db.WithContext(ctx).
		Where("reporter_id = ? AND block_number = ?", uint32(reporter), block).
		Delete(&CommitmentModel{}).Error
}

func (a *SQLiteAdapter) ListCommitments(ctx context.Context, limit int) ([]ports.StoredCommitment, error) {
	var models []CommitmentModel
	query := a.db.WithContext(ctx).Order("block_number desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ports.StoredCommitment, 0, len(models))
	for _, m := range models {
		commitment, err := parseHexHash(m.Commitment)
		if err != nil {
			return nil, err
		}
		out = append(out, ports.StoredCommitment{
			Reporter:    domain.ReporterID(m.ReporterID),
			BlockNumber: m.BlockNumber,
			Commitment:  commitment,
			DeviceCount: m.DeviceCount,
			Revealed:    m.Revealed,
		})
	}
	return out, nil
}

// InsertNullifier performs an atomic check-then-insert inside a
// transaction. A second insertion of the same hash fails with
// ErrDuplicatePresence.
func (a *SQLiteAdapter) InsertNullifier(ctx context.Context, n crypto.H256) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing NullifierModel
		err := tx.Where("hash = ?", n.Hex()).First(&existing).Error
		if err == nil {
			return domain.ErrDuplicatePresence
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&NullifierModel{Hash: n.Hex()}).Error
	})
}

// Close releases the underlying connection pool.
func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
