package triangulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

func positionAt(x, y, z int32) TriangulatedPosition {
	return TriangulatedPosition{
		Position:        domain.Position{X: x, Y: y, Z: z},
		Confidence:      80,
		SignalCount:     3,
		AverageDistance: 500,
		Variance:        100,
	}
}

func TestTrackVelocityInference(t *testing.T) {
	track := NewDeviceTrack(crypto.ZeroH256, positionAt(0, 0, 0), 1000)

	track.Update(positionAt(100, 0, 0), 1010)

	require.NotNil(t, track.Velocity)
	assert.Equal(t, int32(100), track.Velocity.DX)
	assert.Equal(t, int32(0), track.Velocity.DY)
	// 100 cm over 10 s, scaled by 100.
	assert.Equal(t, uint32(1000), track.Velocity.SpeedCmPerSec)
}

func TestTrackHistoryBounded(t *testing.T) {
	track := NewDeviceTrack(crypto.ZeroH256, positionAt(0, 0, 0), 1000)

	for i := int32(1); i <= 30; i++ {
		track.Update(positionAt(i*10, 0, 0), 1000+uint64(i))
	}

	assert.Len(t, track.Positions, 10)
	// Oldest entries were evicted; the newest survives at the tail.
	assert.Equal(t, int32(300), track.Positions[len(track.Positions)-1].Position.X)
}

func TestTrackPredictPosition(t *testing.T) {
	track := NewDeviceTrack(crypto.ZeroH256, positionAt(0, 0, 0), 1000)
	track.Update(positionAt(100, 50, 0), 1010)

	predicted := track.PredictPosition(100)
	require.NotNil(t, predicted)
	assert.Equal(t, int32(200), predicted.X)
	assert.Equal(t, int32(100), predicted.Y)
}

func TestTrackPredictWithoutVelocity(t *testing.T) {
	track := NewDeviceTrack(crypto.ZeroH256, positionAt(0, 0, 0), 1000)
	assert.Nil(t, track.PredictPosition(10))
}

func TestTrackZeroTimeDeltaKeepsVelocity(t *testing.T) {
	track := NewDeviceTrack(crypto.ZeroH256, positionAt(0, 0, 0), 1000)
	track.Update(positionAt(100, 0, 0), 1000)

	// Same-second update cannot produce a velocity estimate.
	assert.Nil(t, track.Velocity)
	assert.Len(t, track.Positions, 2)
}
