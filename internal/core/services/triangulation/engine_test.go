package triangulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/crypto"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultParams(), DefaultConfig())
}

func engineCtx(block uint64) ports.Ctx {
	return ports.Ctx{BlockNumber: block, EpochID: 1}
}

func TestRegisterReporter(t *testing.T) {
	e := newTestEngine()
	position := domain.Position{X: 100, Y: 200, Z: 0}

	id, err := e.RegisterReporter(engineCtx(1), 1, position)
	require.NoError(t, err)
	assert.Equal(t, domain.ReporterID(0), id)

	reporter, ok := e.Reporter(id)
	require.True(t, ok)
	assert.Equal(t, position, reporter.Position)
	assert.True(t, reporter.Active)
	assert.Equal(t, uint32(1), e.ReporterCount())
}

func TestReporterIDsNeverReused(t *testing.T) {
	e := newTestEngine()

	id0, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)
	require.NoError(t, e.DeregisterReporter(engineCtx(2), 1, id0))

	id1, err := e.RegisterReporter(engineCtx(3), 1, domain.Position{X: 5})
	require.NoError(t, err)
	assert.Greater(t, id1, id0)

	// Every assigned id stays below the count.
	assert.Equal(t, uint32(2), e.ReporterCount())
	for _, r := range e.Reporters() {
		assert.Less(t, uint32(r.ID), e.ReporterCount())
	}
}

func TestDeregisteredReporterCannotReport(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)

	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{X: 100, Y: 200})
	require.NoError(t, err)
	require.NoError(t, e.DeregisterReporter(engineCtx(2), 1, id))

	err = e.ReportSignal(engineCtx(3), 1, id, macHash, -50, domain.SignalWifi, 2412)
	assert.ErrorIs(t, err, domain.ErrReporterNotActive)
}

func TestDeregisterRequiresOwner(t *testing.T) {
	e := newTestEngine()
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)

	assert.ErrorIs(t, e.DeregisterReporter(engineCtx(2), 2, id), domain.ErrNotPermitted)
	assert.ErrorIs(t, e.UpdateReporterPosition(engineCtx(2), 2, id, domain.Position{X: 1}), domain.ErrNotPermitted)
}

func TestUpdateReporterPosition(t *testing.T) {
	e := newTestEngine()
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{X: 100, Y: 200})
	require.NoError(t, err)

	next := domain.Position{X: 300, Y: 400, Z: 10}
	require.NoError(t, e.UpdateReporterPosition(engineCtx(2), 1, id, next))

	reporter, ok := e.Reporter(id)
	require.True(t, ok)
	assert.Equal(t, next, reporter.Position)
}

func TestReportSignalCreatesActiveDevice(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)

	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{X: 100, Y: 200})
	require.NoError(t, err)
	require.NoError(t, e.ReportSignal(engineCtx(1), 1, id, macHash, -50, domain.SignalWifi, 2412))

	device, ok := e.TrackedDevice(macHash)
	require.True(t, ok)
	assert.Equal(t, domain.SignalWifi, device.SignalType)
	assert.Equal(t, domain.DeviceActive, device.State)
	assert.Equal(t, uint32(1), e.DeviceCount())
	assert.Equal(t, uint32(1), e.ActiveDeviceCount())
	assert.Len(t, e.DeviceHistory(macHash), 1)
}

func TestInvalidRssiRejected(t *testing.T) {
	e := newTestEngine()
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)

	err = e.ReportSignal(engineCtx(1), 1, id, crypto.RepeatByte(0x01), 10, domain.SignalWifi, 2412)
	assert.ErrorIs(t, err, domain.ErrInvalidRssi)
	assert.Equal(t, uint32(0), e.DeviceCount())
}

func TestConfidenceMonotoneAndBounded(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)

	prev := uint8(0)
	for i := 0; i < 12; i++ {
		require.NoError(t, e.ReportSignal(engineCtx(uint64(1+i)), 1, id, macHash, -50, domain.SignalWifi, 2412))
		device, ok := e.TrackedDevice(macHash)
		require.True(t, ok)
		assert.GreaterOrEqual(t, device.Confidence, prev)
		assert.LessOrEqual(t, device.Confidence, uint8(100))
		prev = device.Confidence
	}

	device, _ := e.TrackedDevice(macHash)
	assert.Equal(t, uint32(12), device.ReadingCount)
	assert.Greater(t, device.Confidence, uint8(30))
}

func TestConfidenceAfterFiveReadings(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, e.ReportSignal(engineCtx(1), 1, id, macHash, -50, domain.SignalWifi, 2412))
	}

	device, ok := e.TrackedDevice(macHash)
	require.True(t, ok)
	assert.Equal(t, uint32(5), device.ReadingCount)
	assert.Greater(t, device.Confidence, uint8(30))
}

func TestAllSignalTypes(t *testing.T) {
	e := newTestEngine()
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)

	signalTypes := []domain.SignalType{
		domain.SignalWifi, domain.SignalBluetooth, domain.SignalBle,
		domain.SignalZigbee, domain.SignalUnknown,
	}
	for i, st := range signalTypes {
		macHash := crypto.RepeatByte(byte(i))
		require.NoError(t, e.ReportSignal(engineCtx(1), 1, id, macHash, -50, st, 2400))
		device, ok := e.TrackedDevice(macHash)
		require.True(t, ok)
		assert.Equal(t, st, device.SignalType)
	}
	assert.Equal(t, uint32(5), e.DeviceCount())
}

func TestReadingHistoryBounded(t *testing.T) {
	params := DefaultParams()
	params.MaxReadingsPerDevice = 5
	e := NewEngine(params, DefaultConfig())
	macHash := crypto.RepeatByte(0x01)
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, e.ReportSignal(engineCtx(uint64(1+i)), 1, id, macHash, -50, domain.SignalWifi, 2412))
	}

	history := e.DeviceHistory(macHash)
	assert.Len(t, history, 5)
	// Oldest dropped, newest retained.
	assert.Equal(t, uint64(20), history[len(history)-1].BlockNumber)
}

func TestDeviceLifecycleTimeouts(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)
	require.NoError(t, e.ReportSignal(engineCtx(1), 1, id, macHash, -50, domain.SignalWifi, 2412))

	// Inside the inactive timeout nothing changes.
	e.OnBlock(engineCtx(11))
	device, _ := e.TrackedDevice(macHash)
	assert.Equal(t, domain.DeviceActive, device.State)

	// Past InactiveTimeoutBlocks the device goes Inactive.
	e.OnBlock(engineCtx(12))
	device, _ = e.TrackedDevice(macHash)
	assert.Equal(t, domain.DeviceInactive, device.State)
	assert.Equal(t, uint32(0), e.ActiveDeviceCount())

	// Past LostTimeoutBlocks it goes Lost.
	e.OnBlock(engineCtx(102))
	device, _ = e.TrackedDevice(macHash)
	assert.Equal(t, domain.DeviceLost, device.State)

	// A fresh reading reactivates it.
	require.NoError(t, e.ReportSignal(engineCtx(103), 1, id, macHash, -55, domain.SignalWifi, 2412))
	device, _ = e.TrackedDevice(macHash)
	assert.Equal(t, domain.DeviceActive, device.State)
	assert.Equal(t, uint32(1), e.ActiveDeviceCount())
}

func TestGhostFlagAndRecovery(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)
	require.NoError(t, e.ReportSignal(engineCtx(1), 1, id, macHash, -50, domain.SignalWifi, 2412))

	require.NoError(t, e.FlagGhost(engineCtx(2), macHash))
	device, _ := e.TrackedDevice(macHash)
	assert.Equal(t, domain.DeviceGhost, device.State)
	assert.Equal(t, uint32(1), e.GhostCount())
	assert.Equal(t, uint32(0), e.ActiveDeviceCount())

	// Ghosts stay untrusted until MinReadingsForActive corroborations.
	require.NoError(t, e.ReportSignal(engineCtx(3), 1, id, macHash, -50, domain.SignalWifi, 2412))
	device, _ = e.TrackedDevice(macHash)
	assert.Equal(t, domain.DeviceGhost, device.State)

	require.NoError(t, e.ReportSignal(engineCtx(4), 1, id, macHash, -50, domain.SignalWifi, 2412))
	require.NoError(t, e.ReportSignal(engineCtx(5), 1, id, macHash, -50, domain.SignalWifi, 2412))
	device, _ = e.TrackedDevice(macHash)
	assert.Equal(t, domain.DeviceActive, device.State)
	assert.Equal(t, uint32(0), e.GhostCount())
}

func TestMultiReporterTriangulation(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)

	positions := []domain.Position{
		{X: 0, Y: 0, Z: 0},
		{X: 100, Y: 0, Z: 0},
		{X: 50, Y: 100, Z: 0},
	}
	for i, pos := range positions {
		id, err := e.RegisterReporter(engineCtx(1), domain.AccountID(i+1), pos)
		require.NoError(t, err)
		require.NoError(t, e.ReportSignal(engineCtx(1), domain.AccountID(i+1), id, macHash, -50, domain.SignalWifi, 2412))
	}

	track, ok := e.Track(macHash)
	require.True(t, ok, "three distinct reporters should produce a track")
	require.NotEmpty(t, track.Positions)
	estimate := track.Positions[len(track.Positions)-1]
	assert.Greater(t, estimate.Confidence, uint8(0))
	assert.Equal(t, uint8(3), estimate.SignalCount)
}

func TestSingleReporterProducesNoTrack(t *testing.T) {
	e := newTestEngine()
	macHash := crypto.RepeatByte(0x01)
	id, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, e.ReportSignal(engineCtx(uint64(1+i)), 1, id, macHash, -50, domain.SignalWifi, 2412))
	}

	_, ok := e.Track(macHash)
	assert.False(t, ok)
}

func TestMaxReportersEnforced(t *testing.T) {
	params := DefaultParams()
	params.MaxReporters = 2
	e := NewEngine(params, DefaultConfig())

	_, err := e.RegisterReporter(engineCtx(1), 1, domain.Position{})
	require.NoError(t, err)
	_, err = e.RegisterReporter(engineCtx(1), 2, domain.Position{})
	require.NoError(t, err)

	_, err = e.RegisterReporter(engineCtx(1), 3, domain.Position{})
	assert.ErrorIs(t, err, domain.ErrMaxReportersReached)
}
