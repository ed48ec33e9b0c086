package scanner

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	randv2 "math/rand/v2"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

// MockConfig shapes the synthetic device population.
type MockConfig struct {
	DeviceCount uint32
	DeviceTypes []domain.DeviceType
	Position    domain.Position
	RSSIRange   [2]int8 // [min, max)
	Seed        uint64
}

// DefaultMockConfig mirrors a busy indoor environment.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		DeviceCount: 15,
		DeviceTypes: []domain.DeviceType{
			domain.DeviceIPhone,
			domain.DeviceAndroid,
			domain.DeviceMacBook,
			domain.DeviceWindowsPC,
			domain.DeviceIPad,
			domain.DeviceIoT,
		},
		Position:  domain.Position{},
		RSSIRange: [2]int8{-80, -30},
		Seed:      42,
	}
}

type mockDevice struct {
	macHash               crypto.H256
	deviceType            domain.DeviceType
	baseRSSI              int8
	visibilityProbability float32
	movementOffset        [2]int32
}

type mockCommitment struct {
	commitment  crypto.H256
	nonce       [32]byte
	blockNumber uint64
}

// MockScanner is a deterministic scan source seeded by a ChaCha8 stream.
// Besides scan batches it can produce end-to-end commit/reveal pairs for
// testing the ledger without a radio. The mutex serializes the RNG between
// the scanner loop and the commit/reveal harness.
type MockScanner struct {
	mu         sync.Mutex
	rng        *randv2.Rand
	devicePool []mockDevice
	config     MockConfig

	// Bounded commit history, oldest first.
	commitmentHistory []mockCommitment
}

// NewMockScanner pre-generates the device pool from the seed.
func NewMockScanner(config MockConfig) *MockScanner {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:8], config.Seed)
	rng := randv2.New(randv2.NewChaCha8(seed))

	s := &MockScanner{rng: rng, config: config}
	s.devicePool = s.generateDevicePool()
	return s
}

func (s *MockScanner) generateDevicePool() []mockDevice {
	count := s.config.DeviceCount
	if count < 5 {
		count = 5
	}
	if count > 100 {
		count = 100
	}

	pool := make([]mockDevice, 0, count)
	for i := uint32(0); i < count; i++ {
		var macBytes [32]byte
		for j := 0; j < 32; j += 8 {
			binary.LittleEndian.PutUint64(macBytes[j:], s.rng.Uint64())
		}

		rssiSpan := int32(s.config.RSSIRange[1]) - int32(s.config.RSSIRange[0])
		pool = append(pool, mockDevice{
			macHash:               crypto.Blake2b256(macBytes[:]),
			deviceType:            s.config.DeviceTypes[int(i)%len(s.config.DeviceTypes)],
			baseRSSI:              int8(int32(s.config.RSSIRange[0]) + s.rng.Int32N(rssiSpan)),
			visibilityProbability: 0.3 + s.rng.Float32()*0.7,
			movementOffset:        [2]int32{s.rng.Int32N(100) - 50, s.rng.Int32N(100) - 50},
		})
	}
	return pool
}

// Scan samples a visible subset of the pool, jitters each RSSI by up to
// ±10 dB, rolls the signal type (70% wifi, 15% bluetooth, 15% BLE) and
// returns the batch sorted by descending RSSI.
func (s *MockScanner) Scan(ctx context.Context) ([]domain.ScannedDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := uint64(time.Now().Unix())
	limit := int(s.config.DeviceCount)
	if limit > 20 {
		limit = 20
	}
	visibleCount := 5
	if limit > 5 {
		visibleCount = 5 + s.rng.IntN(limit-5)
	}

	devices := make([]domain.ScannedDevice, 0, visibleCount)
	for i := range s.devicePool {
		if len(devices) >= visibleCount {
			break
		}
		mock := &s.devicePool[i]
		if s.rng.Float32() >= mock.visibilityProbability {
			continue
		}

		rssi := mock.baseRSSI + int8(s.rng.Int32N(20)-10)
		if rssi > domain.MaxRSSI {
			rssi = domain.MaxRSSI
		}
		if rssi < domain.MinRSSI {
			rssi = domain.MinRSSI
		}

		signalRoll := s.rng.Float32()
		signalType := domain.SignalWifi
		switch {
		case signalRoll > 0.3:
			signalType = domain.SignalWifi
		case signalRoll > 0.15:
			signalType = domain.SignalBluetooth
		default:
			signalType = domain.SignalBle
		}

		var frequency *uint16
		if signalType == domain.SignalWifi {
			f := uint16(2412 + s.rng.Int32N(13)*5)
			frequency = &f
		}

		devices = append(devices, domain.ScannedDevice{
			MacHash:      mock.macHash,
			RSSI:         rssi,
			SignalType:   signalType,
			DeviceType:   mock.deviceType,
			FrequencyMHz: frequency,
			DetectedAt:   timestamp,
		})
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].RSSI > devices[j].RSSI
	})
	return devices, nil
}

// GenerateCommitment commits to the current device pool for blockNumber and
// remembers the nonce in a bounded history for a later reveal.
func (s *MockScanner) GenerateCommitment(blockNumber uint64) (crypto.H256, uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes := s.currentDeviceHashes()
	var nonce [32]byte
	for j := 0; j < 32; j += 8 {
		binary.LittleEndian.PutUint64(nonce[j:], s.rng.Uint64())
	}

	merkleRoot := computeMockMerkleRoot(hashes)
	commitment := crypto.CommitDeviceScan(merkleRoot, nonce, blockNumber)

	s.commitmentHistory = append(s.commitmentHistory, mockCommitment{
		commitment:  commitment,
		nonce:       nonce,
		blockNumber: blockNumber,
	})
	if len(s.commitmentHistory) > 10 {
		s.commitmentHistory = s.commitmentHistory[1:]
	}

	return commitment, uint8(len(hashes))
}

// MockReveal is the opening of a prior mock commitment.
type MockReveal struct {
	CommitmentBlock    uint64
	Nonce              [32]byte
	DeviceMerkleRoot   crypto.H256
	RSSIValues         []int8
	OriginalCommitment crypto.H256
}

// Verify checks the reveal against a commitment in constant time.
func (r *MockReveal) Verify(commitment crypto.H256) bool {
	return r.OriginalCommitment.Equal(commitment)
}

// GenerateReveal opens the commitment made for targetBlock, consuming its
// history entry. Returns nil when no commitment exists for that block.
func (s *MockScanner) GenerateReveal(targetBlock uint64) *MockReveal {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, entry := range s.commitmentHistory {
		if entry.blockNumber == targetBlock {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	entry := s.commitmentHistory[idx]
	s.commitmentHistory = append(s.commitmentHistory[:idx], s.commitmentHistory[idx+1:]...)

	hashes := s.currentDeviceHashes()
	rssiValues := make([]int8, len(hashes))
	for i := range rssiValues {
		rssiValues[i] = int8(-80 + s.rng.Int32N(50))
	}

	return &MockReveal{
		CommitmentBlock:    entry.blockNumber,
		Nonce:              entry.nonce,
		DeviceMerkleRoot:   computeMockMerkleRoot(hashes),
		RSSIValues:         rssiValues,
		OriginalCommitment: entry.commitment,
	}
}

// Position returns the mock reporter's configured position.
func (s *MockScanner) Position() domain.Position {
	return s.config.Position
}

func (s *MockScanner) currentDeviceHashes() []crypto.H256 {
	hashes := make([]crypto.H256, len(s.devicePool))
	for i, d := range s.devicePool {
		hashes[i] = d.macHash
	}
	return hashes
}

// computeMockMerkleRoot sorts the leaves for order independence and folds
// pairwise, duplicating the left element on odd layers.
func computeMockMerkleRoot(hashes []crypto.H256) crypto.H256 {
	if len(hashes) == 0 {
		return crypto.ZeroH256
	}

	layer := make([]crypto.H256, len(hashes))
	copy(layer, hashes)
	sort.Slice(layer, func(i, j int) bool {
		for k := 0; k < 32; k++ {
			if layer[i][k] != layer[j][k] {
				return layer[i][k] < layer[j][k]
			}
		}
		return false
	})

	for len(layer) > 1 {
		next := make([]crypto.H256, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, crypto.HashPair(left, right))
		}
		layer = next
	}
	return layer[0]
}
