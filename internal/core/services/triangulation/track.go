package triangulation

import (
	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

// maxTrackPositions bounds the per-device position history.
const maxTrackPositions = 10

// Velocity holds the displacement between the two most recent track
// positions in cm components, plus a scalar speed computed as
// distance_cm * 100 / elapsed seconds.
type Velocity struct {
	DX            int32  `json:"dx"`
	DY            int32  `json:"dy"`
	DZ            int32  `json:"dz"`
	SpeedCmPerSec uint32 `json:"speed_cm_per_sec"`
}

// DeviceTrack is the hot-cache view of a device's recent positions.
type DeviceTrack struct {
	DeviceHash crypto.H256            `json:"device_hash"`
	Positions  []TriangulatedPosition `json:"positions"`
	LastSeen   uint64                 `json:"last_seen"`
	Velocity   *Velocity              `json:"velocity,omitempty"`
}

// NewDeviceTrack starts a track at an initial position.
func NewDeviceTrack(deviceHash crypto.H256, initial TriangulatedPosition, timestamp uint64) *DeviceTrack {
	return &DeviceTrack{
		DeviceHash: deviceHash,
		Positions:  []TriangulatedPosition{initial},
		LastSeen:   timestamp,
	}
}

// Update appends a position, derives velocity from the displacement since
// the previous point, and evicts the oldest entry past the history bound.
func (t *DeviceTrack) Update(newPosition TriangulatedPosition, timestamp uint64) {
	if len(t.Positions) > 0 && timestamp > t.LastSeen {
		last := t.Positions[len(t.Positions)-1]
		timeDiff := timestamp - t.LastSeen

		dx := newPosition.Position.X - last.Position.X
		dy := newPosition.Position.Y - last.Position.Y
		dz := newPosition.Position.Z - last.Position.Z

		distSq := uint64(int64(dx)*int64(dx) + int64(dy)*int64(dy) + int64(dz)*int64(dz))
		distance := integerSqrt(distSq)
		speed := distance * 100 / timeDiff

		t.Velocity = &Velocity{
			DX:            dx,
			DY:            dy,
			DZ:            dz,
			SpeedCmPerSec: uint32(speed),
		}
	}

	t.Positions = append(t.Positions, newPosition)
	t.LastSeen = timestamp

	if len(t.Positions) > maxTrackPositions {
		t.Positions = t.Positions[len(t.Positions)-maxTrackPositions:]
	}
}

// PredictPosition extrapolates linearly from the current velocity. Returns
// nil without a velocity estimate or an empty track.
func (t *DeviceTrack) PredictPosition(futureSeconds uint32) *domain.Position {
	if len(t.Positions) == 0 || t.Velocity == nil {
		return nil
	}
	current := t.Positions[len(t.Positions)-1]
	return &domain.Position{
		X: current.Position.X + (t.Velocity.DX*int32(futureSeconds))/100,
		Y: current.Position.Y + (t.Velocity.DY*int32(futureSeconds))/100,
		Z: current.Position.Z + (t.Velocity.DZ*int32(futureSeconds))/100,
	}
}
