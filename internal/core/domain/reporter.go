package domain

import "github.com/7aylabs/popchain/internal/crypto"

// AccountID identifies the chain account controlling a reporter.
type AccountID uint64

// ReporterID is a sequential reporter handle. Ids are never reused.
type ReporterID uint32

// Reporter is an off-chain agent registered on-chain with a position,
// authorized to submit signal observations.
type Reporter struct {
	ID       ReporterID `json:"id"`
	Account  AccountID  `json:"account"`
	Position Position   `json:"position"`
	Active   bool       `json:"active"`
}

// SignalReading is one RSSI observation of a device by a reporter.
type SignalReading struct {
	ReporterID   ReporterID `json:"reporter_id"`
	RSSI         int8       `json:"rssi"`
	FrequencyMHz uint16     `json:"frequency_mhz"`
	BlockNumber  uint64     `json:"block_number"`
}

// DeviceState is the lifecycle state of a tracked device.
type DeviceState uint8

const (
	// DeviceActive devices have a recent corroborated reading.
	DeviceActive DeviceState = iota
	// DeviceInactive devices have gone quiet past the inactive timeout.
	DeviceInactive
	// DeviceLost devices have gone quiet past the lost timeout.
	DeviceLost
	// DeviceGhost devices were observed without any live attestation;
	// tracked but not trusted.
	DeviceGhost
)

func (s DeviceState) String() string {
	switch s {
	case DeviceActive:
		return "active"
	case DeviceInactive:
		return "inactive"
	case DeviceLost:
		return "lost"
	case DeviceGhost:
		return "ghost"
	default:
		return "unknown"
	}
}

// TrackedDevice is the ledger view of a device accumulated from readings.
type TrackedDevice struct {
	MacHash        crypto.H256 `json:"mac_hash"`
	SignalType     SignalType  `json:"signal_type"`
	FirstSeenBlock uint64      `json:"first_seen_block"`
	LastSeenBlock  uint64      `json:"last_seen_block"`
	ReadingCount   uint32      `json:"reading_count"`
	Confidence     uint8       `json:"confidence"` // 0..100
	State          DeviceState `json:"state"`
}
