// Package ports defines the boundary interfaces between the core services
// and their adapters.
package ports

import (
	"context"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

// DeviceScanner produces batches of device observations from a radio.
type DeviceScanner interface {
	// Scan performs one acquisition pass. Blocking; respects context
	// cancellation and carries its own subprocess timeout.
	Scan(ctx context.Context) ([]domain.ScannedDevice, error)
}

// ScanSnapshotter exposes the latest scan batch as a whole-structure
// snapshot. Readers never observe partial updates.
type ScanSnapshotter interface {
	Snapshot() domain.ScanResults
}

// ScanPublisher is the writer side of the scan buffer. Exactly one writer.
type ScanPublisher interface {
	Publish(results domain.ScanResults)
}

// Ctx carries the ambient chain context explicitly so ledger logic stays
// pure: block number, block hash and epoch are inputs, not globals.
type Ctx struct {
	BlockNumber uint64
	BlockHash   crypto.H256
	EpochID     uint64
}

// Storage persists the on-chain state layout between runs.
type Storage interface {
	SaveReporter(ctx context.Context, r domain.Reporter) error
	ListReporters(ctx context.Context) ([]domain.Reporter, error)

	SaveTrackedDevice(ctx context.Context, d domain.TrackedDevice) error
	ListTrackedDevices(ctx context.Context) ([]domain.TrackedDevice, error)
	AppendReading(ctx context.Context, macHash crypto.H256, reading domain.SignalReading) error
	DeviceHistory(ctx context.Context, macHash crypto.H256, limit int) ([]domain.SignalReading, error)

	SaveCommitment(ctx context.Context, reporter domain.ReporterID, block uint64, commitment crypto.H256, deviceCount uint8) error
	DeleteCommitment(ctx context.Context, reporter domain.ReporterID, block uint64) error
	ListCommitments(ctx context.Context, limit int) ([]StoredCommitment, error)

	// InsertNullifier fails with domain.ErrDuplicatePresence when the
	// nullifier is already present. Check and insert are atomic.
	InsertNullifier(ctx context.Context, n crypto.H256) error

	Close() error
}

// StoredCommitment is the persisted commitment row.
type StoredCommitment struct {
	Reporter    domain.ReporterID
	BlockNumber uint64
	Commitment  crypto.H256
	DeviceCount uint8
	Revealed    bool
}

// EventSink receives protocol events for broadcast (websocket, logs).
type EventSink interface {
	TrackUpdated(macHash crypto.H256, state domain.DeviceState)
	ScanRevealed(reporter domain.ReporterID, block uint64, merkleRoot crypto.H256)
}
