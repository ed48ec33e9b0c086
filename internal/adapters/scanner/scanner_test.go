package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

func TestBufferSnapshotIsolated(t *testing.T) {
	b := NewBuffer()

	empty := b.Snapshot()
	assert.Empty(t, empty.Devices)

	b.Publish(domain.ScanResults{
		Devices:  []domain.ScannedDevice{{MacHash: crypto.RepeatByte(1), RSSI: -40}},
		LastScan: time.Now(),
	})

	snap := b.Snapshot()
	require.Len(t, snap.Devices, 1)

	// Mutating the snapshot must not leak into the buffer.
	snap.Devices[0].RSSI = 0
	again := b.Snapshot()
	assert.Equal(t, int8(-40), again.Devices[0].RSSI)
}

func TestBufferWholeSnapshotSwap(t *testing.T) {
	b := NewBuffer()

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Concurrent readers must only ever see complete batches of one size.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := b.Snapshot()
			if n := len(snap.Devices); n != 0 && n != 3 && n != 7 {
				t.Errorf("observed partial batch of %d devices", n)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		size := 3
		if i%2 == 1 {
			size = 7
		}
		devices := make([]domain.ScannedDevice, size)
		for j := range devices {
			devices[j] = domain.ScannedDevice{MacHash: crypto.RepeatByte(byte(j)), RSSI: -50}
		}
		b.Publish(domain.ScanResults{Devices: devices, LastScan: time.Now()})
	}
	close(stop)
	wg.Wait()
}

func TestRunnerPublishesMockBatches(t *testing.T) {
	buffer := NewBuffer()
	cfg := DefaultConfig()
	cfg.ScanIntervalSecs = 1
	runner := NewMockRunner(cfg, buffer, NewMockScanner(DefaultMockConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(done)
	}()

	// The first pass runs immediately; wait for it to land.
	require.Eventually(t, func() bool {
		return len(buffer.Snapshot().Devices) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not honour cancellation")
	}
}

func TestRunnerTruncatesToMaxDevices(t *testing.T) {
	buffer := NewBuffer()
	cfg := DefaultConfig()
	cfg.MaxDevicesPerBlock = 3

	mockCfg := DefaultMockConfig()
	mockCfg.DeviceCount = 30
	runner := NewMockRunner(cfg, buffer, NewMockScanner(mockCfg))

	runner.scanOnce(context.Background())

	snap := buffer.Snapshot()
	assert.LessOrEqual(t, len(snap.Devices), 3)
	// Truncation preserves the descending-RSSI ordering.
	for i := 1; i < len(snap.Devices); i++ {
		assert.LessOrEqual(t, snap.Devices[i].RSSI, snap.Devices[i-1].RSSI)
	}
}

func TestChannelToFrequency(t *testing.T) {
	assert.Equal(t, uint16(2412), channelToFrequency(1))
	assert.Equal(t, uint16(2437), channelToFrequency(6))
	assert.Equal(t, uint16(2484), channelToFrequency(14))
	assert.Equal(t, uint16(5180), channelToFrequency(36))
	assert.Equal(t, uint16(5825), channelToFrequency(165))
	assert.Equal(t, uint16(0), channelToFrequency(99))
}

func TestParseBSSID(t *testing.T) {
	mac, ok := parseBSSID("00:17:f2:aa:bb:cc")
	require.True(t, ok)
	assert.Equal(t, [6]byte{0x00, 0x17, 0xF2, 0xAA, 0xBB, 0xCC}, mac)

	_, ok = parseBSSID("not-a-mac")
	assert.False(t, ok)
	_, ok = parseBSSID("00:17:f2:aa:bb")
	assert.False(t, ok)
	_, ok = parseBSSID("zz:17:f2:aa:bb:cc")
	assert.False(t, ok)
}

func TestOUIInference(t *testing.T) {
	vendor, ok := lookupVendor([3]byte{0x00, 0x17, 0xF2})
	require.True(t, ok)
	assert.Equal(t, "Apple", vendor)

	_, ok = lookupVendor([3]byte{0xDE, 0xAD, 0xBE})
	assert.False(t, ok)

	assert.Equal(t, domain.DeviceNetwork, lookupDeviceType([3]byte{0x50, 0xC7, 0xBF}))
	assert.Equal(t, domain.DeviceUnknown, lookupDeviceType([3]byte{0xDE, 0xAD, 0xBE}))

	assert.Equal(t, domain.DeviceIPhone, inferDeviceTypeFromName("Dave's iPhone"))
	assert.Equal(t, domain.DeviceSmartTV, inferDeviceTypeFromName("Samsung-TV-Living"))
	assert.Equal(t, domain.DeviceUnknown, inferDeviceTypeFromName("HomeNetwork"))
}
