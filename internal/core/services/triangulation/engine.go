package triangulation

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/crypto"
	"github.com/7aylabs/popchain/internal/telemetry"
)

// Params bound the engine's storage and drive the device state machine.
// Timeouts are measured in block numbers.
type Params struct {
	MaxReporters          uint32
	MaxReadingsPerDevice  int
	MaxHistoryEntries     int
	InactiveTimeoutBlocks uint64
	LostTimeoutBlocks     uint64
	MinReadingsForActive  uint32
	SignalRetentionBlocks uint64
}

// DefaultParams matches the protocol defaults.
func DefaultParams() Params {
	return Params{
		MaxReporters:          100,
		MaxReadingsPerDevice:  50,
		MaxHistoryEntries:     1000,
		InactiveTimeoutBlocks: 10,
		LostTimeoutBlocks:     100,
		MinReadingsForActive:  3,
		SignalRetentionBlocks: 1000,
	}
}

// Engine owns the reporter registry, tracked devices, their reading
// history and position tracks. Devices are keyed by mac hash, reporters by
// sequential id; neither holds a reference into the other.
type Engine struct {
	mu sync.RWMutex

	params Params
	config Config

	reporters     map[domain.ReporterID]domain.Reporter
	reporterCount uint32

	devices map[crypto.H256]*domain.TrackedDevice
	history map[crypto.H256][]domain.SignalReading
	tracks  map[crypto.H256]*DeviceTrack

	activeCount uint32
	ghostCount  uint32

	sink ports.EventSink
}

// NewEngine creates an empty engine.
func NewEngine(params Params, config Config) *Engine {
	return &Engine{
		params:    params,
		config:    config,
		reporters: make(map[domain.ReporterID]domain.Reporter),
		devices:   make(map[crypto.H256]*domain.TrackedDevice),
		history:   make(map[crypto.H256][]domain.SignalReading),
		tracks:    make(map[crypto.H256]*DeviceTrack),
	}
}

// SetEventSink attaches a sink for track update broadcasts.
func (e *Engine) SetEventSink(sink ports.EventSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// RegisterReporter assigns the next sequential id to the account's new
// reporter. Ids are never reused.
func (e *Engine) RegisterReporter(ctx ports.Ctx, origin domain.AccountID, position domain.Position) (domain.ReporterID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reporterCount >= e.params.MaxReporters {
		return 0, domain.ErrMaxReportersReached
	}

	id := domain.ReporterID(e.reporterCount)
	e.reporters[id] = domain.Reporter{
		ID:       id,
		Account:  origin,
		Position: position,
		Active:   true,
	}
	e.reporterCount++

	slog.Info("reporter registered", "reporter", id, "account", origin)
	return id, nil
}

// DeregisterReporter flips active=false but retains the record. Only the
// registering account may deregister.
func (e *Engine) DeregisterReporter(ctx ports.Ctx, origin domain.AccountID, id domain.ReporterID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reporter, ok := e.reporters[id]
	if !ok {
		return domain.ErrNotFound
	}
	if reporter.Account != origin {
		return domain.ErrNotPermitted
	}
	reporter.Active = false
	e.reporters[id] = reporter
	return nil
}

// UpdateReporterPosition replaces the reporter's position record. Same
// account authority as deregistration.
func (e *Engine) UpdateReporterPosition(ctx ports.Ctx, origin domain.AccountID, id domain.ReporterID, position domain.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reporter, ok := e.reporters[id]
	if !ok {
		return domain.ErrNotFound
	}
	if reporter.Account != origin {
		return domain.ErrNotPermitted
	}
	reporter.Position = position
	e.reporters[id] = reporter
	return nil
}

// ReportSignal ingests one observation: authorize the caller, validate the
// reading, append it to the bounded device history, upsert the tracked
// device, and re-triangulate when enough distinct reporters have recent
// readings.
func (e *Engine) ReportSignal(ctx ports.Ctx, origin domain.AccountID, id domain.ReporterID, macHash crypto.H256, rssi int8, signalType domain.SignalType, frequencyMHz uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	reporter, ok := e.reporters[id]
	if !ok {
		return domain.ErrNotFound
	}
	if reporter.Account != origin {
		return domain.ErrNotPermitted
	}
	if !reporter.Active {
		return domain.ErrReporterNotActive
	}
	if !domain.ValidRSSI(rssi) {
		return domain.ErrInvalidRssi
	}

	reading := domain.SignalReading{
		ReporterID:   id,
		RSSI:         rssi,
		FrequencyMHz: frequencyMHz,
		BlockNumber:  ctx.BlockNumber,
	}

	// Bounded FIFO: drop the oldest reading rather than reject.
	readings := append(e.history[macHash], reading)
	if len(readings) > e.params.MaxReadingsPerDevice {
		readings = readings[len(readings)-e.params.MaxReadingsPerDevice:]
	}
	e.history[macHash] = readings

	e.upsertDeviceLocked(ctx, macHash, signalType)
	e.triangulateLocked(ctx, macHash)

	telemetry.SignalsReported.Inc()
	return nil
}

// upsertDeviceLocked applies one accepted reading to the tracked device.
func (e *Engine) upsertDeviceLocked(ctx ports.Ctx, macHash crypto.H256, signalType domain.SignalType) {
	device, ok := e.devices[macHash]
	if !ok {
		device = &domain.TrackedDevice{
			MacHash:        macHash,
			SignalType:     signalType,
			FirstSeenBlock: ctx.BlockNumber,
			State:          domain.DeviceActive,
		}
		e.devices[macHash] = device
		e.activeCount++
	}

	device.LastSeenBlock = ctx.BlockNumber
	device.ReadingCount++
	device.Confidence = confidenceFor(device.ReadingCount)

	switch device.State {
	case domain.DeviceInactive, domain.DeviceLost:
		device.State = domain.DeviceActive
		e.activeCount++
	case domain.DeviceGhost:
		// Ghosts need corroboration before they are trusted again.
		if device.ReadingCount >= e.params.MinReadingsForActive {
			device.State = domain.DeviceActive
			e.ghostCount--
			e.activeCount++
		}
	}

	e.publishGauges()
}

// confidenceFor maps accepted readings onto a monotone bounded curve that
// saturates at 100.
func confidenceFor(readingCount uint32) uint8 {
	if readingCount == 0 {
		return 0
	}
	confidence := 20 + 16*uint64(readingCount)
	if confidence > 100 {
		confidence = 100
	}
	return uint8(confidence)
}

// triangulateLocked fuses the freshest reading per distinct reporter into a
// position estimate and folds it into the device track.
func (e *Engine) triangulateLocked(ctx ports.Ctx, macHash crypto.H256) {
	readings := e.history[macHash]

	// Latest reading per reporter within the retention horizon.
	latest := make(map[domain.ReporterID]domain.SignalReading)
	for _, r := range readings {
		if ctx.BlockNumber-r.BlockNumber > e.params.SignalRetentionBlocks {
			continue
		}
		latest[r.ReporterID] = r
	}

	observations := make([]SignalObservation, 0, len(latest))
	for reporterID, r := range latest {
		reporter, ok := e.reporters[reporterID]
		if !ok || !reporter.Active {
			continue
		}
		freq := r.FrequencyMHz
		observations = append(observations, SignalObservation{
			ObserverPosition: reporter.Position,
			RSSI:             r.RSSI,
			FrequencyMHz:     &freq,
			Timestamp:        r.BlockNumber,
		})
	}

	if len(observations) < int(e.config.MinSignals) {
		return
	}

	estimate := Multilaterate(observations, e.config)
	if estimate == nil {
		return
	}

	track, ok := e.tracks[macHash]
	if !ok {
		e.tracks[macHash] = NewDeviceTrack(macHash, *estimate, ctx.BlockNumber)
	} else {
		track.Update(*estimate, ctx.BlockNumber)
	}

	if e.sink != nil {
		if device, ok := e.devices[macHash]; ok {
			e.sink.TrackUpdated(macHash, device.State)
		}
	}
}

// OnBlock advances the device state machine: Active devices past the
// inactive timeout go Inactive, Inactive devices past the lost timeout go
// Lost. Called once per imported block.
func (e *Engine) OnBlock(ctx ports.Ctx) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, device := range e.devices {
		silent := ctx.BlockNumber - device.LastSeenBlock
		switch device.State {
		case domain.DeviceActive:
			if silent > e.params.InactiveTimeoutBlocks {
				device.State = domain.DeviceInactive
				e.activeCount--
			}
		case domain.DeviceInactive:
			if silent > e.params.LostTimeoutBlocks {
				device.State = domain.DeviceLost
			}
		}
	}

	e.pruneHistoryLocked(ctx)
	e.publishGauges()
}

// pruneHistoryLocked drops readings past the retention horizon and evicts
// the stalest Lost devices once the tracked-device map outgrows its bound.
func (e *Engine) pruneHistoryLocked(ctx ports.Ctx) {
	for macHash, readings := range e.history {
		kept := readings[:0]
		for _, r := range readings {
			if ctx.BlockNumber-r.BlockNumber <= e.params.SignalRetentionBlocks {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(e.history, macHash)
		} else {
			e.history[macHash] = kept
		}
	}

	if len(e.devices) <= e.params.MaxHistoryEntries {
		return
	}
	var lost []crypto.H256
	for macHash, device := range e.devices {
		if device.State == domain.DeviceLost {
			lost = append(lost, macHash)
		}
	}
	sort.Slice(lost, func(i, j int) bool {
		return e.devices[lost[i]].LastSeenBlock < e.devices[lost[j]].LastSeenBlock
	})
	for _, macHash := range lost {
		if len(e.devices) <= e.params.MaxHistoryEntries {
			break
		}
		delete(e.devices, macHash)
		delete(e.history, macHash)
		delete(e.tracks, macHash)
	}
}

// FlagGhost marks a device as observed-but-uncorroborated. Policy-gated:
// the detection heuristic lives outside the engine.
func (e *Engine) FlagGhost(ctx ports.Ctx, macHash crypto.H256) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	device, ok := e.devices[macHash]
	if !ok {
		return domain.ErrNotFound
	}
	if device.State == domain.DeviceGhost {
		return nil
	}
	if device.State == domain.DeviceActive {
		e.activeCount--
	}
	device.State = domain.DeviceGhost
	device.ReadingCount = 0
	e.ghostCount++
	e.publishGauges()
	return nil
}

// Reporter returns the reporter record for id.
func (e *Engine) Reporter(id domain.ReporterID) (domain.Reporter, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.reporters[id]
	return r, ok
}

// Reporters lists all reporter records in id order.
func (e *Engine) Reporters() []domain.Reporter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Reporter, 0, len(e.reporters))
	for id := domain.ReporterID(0); uint32(id) < e.reporterCount; id++ {
		if r, ok := e.reporters[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// ReporterCount returns the number of ids ever assigned.
func (e *Engine) ReporterCount() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reporterCount
}

// TrackedDevice returns a copy of the tracked device for macHash.
func (e *Engine) TrackedDevice(macHash crypto.H256) (domain.TrackedDevice, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	device, ok := e.devices[macHash]
	if !ok {
		return domain.TrackedDevice{}, false
	}
	return *device, true
}

// TrackedDevices lists copies of all tracked devices.
func (e *Engine) TrackedDevices() []domain.TrackedDevice {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.TrackedDevice, 0, len(e.devices))
	for _, d := range e.devices {
		out = append(out, *d)
	}
	return out
}

// DeviceHistory returns the bounded reading history for macHash.
func (e *Engine) DeviceHistory(macHash crypto.H256) []domain.SignalReading {
	e.mu.RLock()
	defer e.mu.RUnlock()
	readings := e.history[macHash]
	out := make([]domain.SignalReading, len(readings))
	copy(out, readings)
	return out
}

// Track returns a deep copy of the device's position track.
func (e *Engine) Track(macHash crypto.H256) (*DeviceTrack, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	track, ok := e.tracks[macHash]
	if !ok {
		return nil, false
	}
	cp := &DeviceTrack{
		DeviceHash: track.DeviceHash,
		Positions:  make([]TriangulatedPosition, len(track.Positions)),
		LastSeen:   track.LastSeen,
	}
	copy(cp.Positions, track.Positions)
	if track.Velocity != nil {
		v := *track.Velocity
		cp.Velocity = &v
	}
	return cp, true
}

// DeviceCount returns the number of tracked devices.
func (e *Engine) DeviceCount() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return uint32(len(e.devices))
}

// ActiveDeviceCount returns the number of devices in the Active state.
func (e *Engine) ActiveDeviceCount() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeCount
}

// GhostCount returns the number of devices in the Ghost state.
func (e *Engine) GhostCount() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ghostCount
}

// publishGauges pushes per-state device counts to the metrics registry.
// Caller holds the lock.
func (e *Engine) publishGauges() {
	counts := map[domain.DeviceState]float64{}
	for _, d := range e.devices {
		counts[d.State]++
	}
	for _, state := range []domain.DeviceState{domain.DeviceActive, domain.DeviceInactive, domain.DeviceLost, domain.DeviceGhost} {
		telemetry.TrackedDevices.WithLabelValues(state.String()).Set(counts[state])
	}
}
