// Package triangulation fuses multi-reporter RSSI observations into device
// position estimates and maintains per-device tracks with velocity
// inference and lifecycle states.
package triangulation

import "github.com/7aylabs/popchain/internal/core/domain"

// Distance clamps in centimetres.
const (
	minDistanceCm = 10
	maxDistanceCm = 100_000_00
)

// Config tunes the estimators. PathLossExponentX100 is the log-distance
// path loss exponent scaled by 100 (270 ~ 2.7 indoor).
type Config struct {
	TxPower             int8   `json:"tx_power"`
	PathLossExponentX100 uint16 `json:"path_loss_exponent_x100"`
	MinSignals          uint8  `json:"min_signals"`
	MaxDistanceMeters   uint32 `json:"max_distance_meters"`
	ConfidenceThreshold uint8  `json:"confidence_threshold"`
}

// DefaultConfig matches the protocol defaults.
func DefaultConfig() Config {
	return Config{
		TxPower:              -59,
		PathLossExponentX100: 270,
		MinSignals:           3,
		MaxDistanceMeters:    100,
		ConfidenceThreshold:  50,
	}
}

// SignalObservation is one reporter's view of a device at a point in time.
type SignalObservation struct {
	ObserverPosition domain.Position `json:"observer_position"`
	RSSI             int8            `json:"rssi"`
	FrequencyMHz     *uint16         `json:"frequency_mhz,omitempty"`
	Timestamp        uint64          `json:"timestamp"`
}

// TriangulatedPosition is a fused position estimate with confidence.
type TriangulatedPosition struct {
	Position        domain.Position `json:"position"`
	Confidence      uint8           `json:"confidence"` // percent 0..100
	SignalCount     uint8           `json:"signal_count"`
	AverageDistance uint32          `json:"average_distance"`
	Variance        uint32          `json:"variance"`
}

// RssiToDistanceCm converts an RSSI reading to a distance estimate using the
// log-distance path loss model in integer arithmetic:
//
//	d_cm = 100 * 10^((tx_power - rssi) / (10 * n))
//
// The exponent is computed by integer division, so its fraction is dropped.
// That integer exponent shifts the 100 cm base by powers of ten (capped at
// 20), then distance grows by (exponent % 10) tenths of itself. Degenerate inputs
// (rssi >= tx_power) return the minimum distance.
func RssiToDistanceCm(rssi, txPower int8, pathLossX100 uint16) uint32 {
	rssiDiff := int32(txPower) - int32(rssi)
	if rssiDiff <= 0 {
		return minDistanceCm
	}

	pathLoss := int32(pathLossX100)
	if pathLoss < 1 {
		pathLoss = 1
	}
	exponentScaled := (rssiDiff * 100) / (pathLoss * 10)

	distanceCm := uint64(100)
	steps := exponentScaled
	if steps > 20 {
		steps = 20
	}
	for i := int32(0); i < steps; i++ {
		distanceCm *= 10
		if distanceCm > maxDistanceCm {
			distanceCm = maxDistanceCm
			break
		}
	}

	remainder := uint64(exponentScaled % 10)
	distanceCm += distanceCm * remainder / 10

	if distanceCm < minDistanceCm {
		return minDistanceCm
	}
	if distanceCm > maxDistanceCm {
		return maxDistanceCm
	}
	return uint32(distanceCm)
}

// WeightedCentroid estimates position as the distance-weighted centroid of
// the observers, with weight 1e6 / d^2. Used as the fallback estimator.
// Returns nil when fewer than MinSignals observations are available or all
// weights collapse to zero.
func WeightedCentroid(observations []SignalObservation, cfg Config) *TriangulatedPosition {
	if len(observations) < int(cfg.MinSignals) {
		return nil
	}

	weights := make([]uint64, len(observations))
	distances := make([]uint32, len(observations))
	var totalWeight uint64
	for i, obs := range observations {
		dist := RssiToDistanceCm(obs.RSSI, cfg.TxPower, cfg.PathLossExponentX100)
		distances[i] = dist
		sq := uint64(dist) * uint64(dist)
		if sq == 0 {
			sq = 1
		}
		w := uint64(1_000_000) / sq
		if dist == 0 {
			w = 1
		}
		weights[i] = w
		totalWeight += w
	}
	if totalWeight == 0 {
		return nil
	}

	var wx, wy, wz int64
	for i, obs := range observations {
		w := int64(weights[i])
		wx += int64(obs.ObserverPosition.X) * w
		wy += int64(obs.ObserverPosition.Y) * w
		wz += int64(obs.ObserverPosition.Z) * w
	}

	position := domain.Position{
		X: int32(wx / int64(totalWeight)),
		Y: int32(wy / int64(totalWeight)),
		Z: int32(wz / int64(totalWeight)),
	}

	var sum uint64
	for _, d := range distances {
		sum += uint64(d)
	}
	avgDistance := uint32(sum / uint64(len(distances)))

	var variance uint32
	if len(distances) > 1 {
		mean := int64(avgDistance)
		var sumSq int64
		for _, d := range distances {
			diff := int64(d) - mean
			sumSq += diff * diff
		}
		variance = uint32(sumSq / int64(len(distances)))
	}

	signalFactor := uint32(len(observations)) * 20
	if signalFactor > 60 {
		signalFactor = 60
	}
	variancePenalty := variance / 100
	if variancePenalty > 40 {
		variancePenalty = 40
	}
	confidence := uint32(0)
	if signalFactor > variancePenalty {
		confidence = signalFactor - variancePenalty
	}
	if confidence > 100 {
		confidence = 100
	}

	return &TriangulatedPosition{
		Position:        position,
		Confidence:      uint8(confidence),
		SignalCount:     uint8(len(observations)),
		AverageDistance: avgDistance,
		Variance:        variance,
	}
}

// Multilaterate solves for position from the first three observers by
// subtracting squared-range equations pairwise. Collinear observers make
// the system singular, in which case the weighted centroid takes over.
// Z is inherited from the first observer; confidence is fixed at 70%.
func Multilaterate(observations []SignalObservation, cfg Config) *TriangulatedPosition {
	if len(observations) < 3 {
		return WeightedCentroid(observations, cfg)
	}

	type ranged struct {
		pos  domain.Position
		dist uint32
	}
	ranges := make([]ranged, 3)
	for i := 0; i < 3; i++ {
		ranges[i] = ranged{
			pos:  observations[i].ObserverPosition,
			dist: RssiToDistanceCm(observations[i].RSSI, cfg.TxPower, cfg.PathLossExponentX100),
		}
	}

	x1, y1 := int64(ranges[0].pos.X), int64(ranges[0].pos.Y)
	x2, y2 := int64(ranges[1].pos.X), int64(ranges[1].pos.Y)
	x3, y3 := int64(ranges[2].pos.X), int64(ranges[2].pos.Y)

	// Ranges in metres keep the squared terms inside int64.
	r1 := int64(ranges[0].dist / 100)
	r2 := int64(ranges[1].dist / 100)
	r3 := int64(ranges[2].dist / 100)

	a := 2 * (x2 - x1)
	b := 2 * (y2 - y1)
	c := r1*r1 - r2*r2 - x1*x1 + x2*x2 - y1*y1 + y2*y2
	d := 2 * (x3 - x2)
	e := 2 * (y3 - y2)
	f := r2*r2 - r3*r3 - x2*x2 + x3*x3 - y2*y2 + y3*y3

	denom := a*e - b*d
	if denom == 0 {
		return WeightedCentroid(observations, cfg)
	}

	x := (c*e - f*b) / denom
	y := (a*f - c*d) / denom

	avgDistance := (ranges[0].dist + ranges[1].dist + ranges[2].dist) / 3

	return &TriangulatedPosition{
		Position:        domain.Position{X: int32(x), Y: int32(y), Z: ranges[0].pos.Z},
		Confidence:      70,
		SignalCount:     uint8(len(observations)),
		AverageDistance: avgDistance,
		Variance:        0,
	}
}

// integerSqrt computes floor(sqrt(n)) by Newton iteration.
func integerSqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
