package triangulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/core/domain"
)

func obsAt(x, y, z int32, rssi int8) SignalObservation {
	freq := uint16(2412)
	return SignalObservation{
		ObserverPosition: domain.Position{X: x, Y: y, Z: z},
		RSSI:             rssi,
		FrequencyMHz:     &freq,
		Timestamp:        1000,
	}
}

func TestRssiToDistanceMonotonic(t *testing.T) {
	cfg := DefaultConfig()

	strong := RssiToDistanceCm(-40, cfg.TxPower, cfg.PathLossExponentX100)
	weak := RssiToDistanceCm(-80, cfg.TxPower, cfg.PathLossExponentX100)

	assert.Greater(t, weak, strong)
}

func TestRssiToDistanceDegenerate(t *testing.T) {
	cfg := DefaultConfig()

	// Readings at or above tx power clamp to the minimum distance.
	assert.Equal(t, uint32(10), RssiToDistanceCm(-59, cfg.TxPower, cfg.PathLossExponentX100))
	assert.Equal(t, uint32(10), RssiToDistanceCm(-30, cfg.TxPower, cfg.PathLossExponentX100))
	assert.Equal(t, uint32(10), RssiToDistanceCm(0, cfg.TxPower, cfg.PathLossExponentX100))
}

func TestRssiToDistanceClamped(t *testing.T) {
	// A pathological path loss exponent cannot push past the clamp.
	d := RssiToDistanceCm(-100, -59, 1)
	assert.LessOrEqual(t, d, uint32(100_000_00))
	assert.GreaterOrEqual(t, d, uint32(10))
}

func TestWeightedCentroidEquilateral(t *testing.T) {
	cfg := DefaultConfig()

	observations := []SignalObservation{
		obsAt(0, 0, 0, -50),
		obsAt(100, 0, 0, -50),
		obsAt(50, 100, 0, -50),
	}

	result := WeightedCentroid(observations, cfg)
	require.NotNil(t, result)

	// Equal signal strengths pull the estimate toward the true centroid.
	assert.GreaterOrEqual(t, result.Position.X, int32(40))
	assert.LessOrEqual(t, result.Position.X, int32(60))
	assert.GreaterOrEqual(t, result.Position.Y, int32(0))
	assert.LessOrEqual(t, result.Position.Y, int32(100))
	assert.Greater(t, result.Confidence, uint8(0))
	assert.Equal(t, uint8(3), result.SignalCount)
}

func TestWeightedCentroidNeedsMinSignals(t *testing.T) {
	cfg := DefaultConfig()
	observations := []SignalObservation{
		obsAt(0, 0, 0, -50),
		obsAt(100, 0, 0, -50),
	}
	assert.Nil(t, WeightedCentroid(observations, cfg))
}

func TestMultilaterationCollinearFallsBack(t *testing.T) {
	cfg := DefaultConfig()

	// Three observers on a line make the pairwise system singular.
	observations := []SignalObservation{
		obsAt(0, 0, 0, -50),
		obsAt(50, 0, 0, -50),
		obsAt(100, 0, 0, -50),
	}

	result := Multilaterate(observations, cfg)
	require.NotNil(t, result)
	// Fallback is the centroid, which never reports the fixed 70%.
	assert.NotEqual(t, uint8(70), result.Confidence)
}

func TestMultilaterationInheritsZ(t *testing.T) {
	cfg := DefaultConfig()

	observations := []SignalObservation{
		obsAt(0, 0, 25, -50),
		obsAt(100, 0, 0, -50),
		obsAt(50, 100, 0, -50),
	}

	result := Multilaterate(observations, cfg)
	require.NotNil(t, result)
	assert.Equal(t, int32(25), result.Position.Z)
	assert.Equal(t, uint8(70), result.Confidence)
}

func TestIntegerSqrt(t *testing.T) {
	assert.Equal(t, uint64(0), integerSqrt(0))
	assert.Equal(t, uint64(1), integerSqrt(1))
	assert.Equal(t, uint64(2), integerSqrt(4))
	assert.Equal(t, uint64(3), integerSqrt(9))
	assert.Equal(t, uint64(10), integerSqrt(100))
	assert.Equal(t, uint64(100), integerSqrt(10000))

	// Exact on perfect squares, floor otherwise.
	for _, n := range []uint64{7, 15, 99, 12345, 999_999_999} {
		r := integerSqrt(n)
		assert.LessOrEqual(t, r*r, n)
		assert.Greater(t, (r+1)*(r+1), n)
	}
	assert.Equal(t, uint64(1_000_000_000), integerSqrt(1_000_000_000*1_000_000_000))
}
