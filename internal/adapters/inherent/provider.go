// Package inherent assembles the device-scan inherent from the shared scan
// buffer at block-authoring time.
package inherent

import (
	"time"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
)

// Provider reads the current scan buffer and produces the bounded,
// SCALE-encoded payload included under the devscan0 identifier.
type Provider struct {
	snapshotter      ports.ScanSnapshotter
	reporterPosition domain.Position
	maxDevices       uint32
}

// NewProvider wires the provider over a snapshot source.
func NewProvider(snapshotter ports.ScanSnapshotter, reporterPosition domain.Position, maxDevices uint32) *Provider {
	return &Provider{
		snapshotter:      snapshotter,
		reporterPosition: reporterPosition,
		maxDevices:       maxDevices,
	}
}

// Provide returns the inherent for the next block, or nil when the buffer
// is empty (the inherent is optional). The batch is truncated to
// maxDevices preserving the descending-RSSI order, and stamped with a
// fresh wall-clock timestamp.
func (p *Provider) Provide() *domain.DeviceScanInherentData {
	results := p.snapshotter.Snapshot()
	if len(results.Devices) == 0 {
		return nil
	}

	devices := results.Devices
	if uint32(len(devices)) > p.maxDevices {
		devices = devices[:p.maxDevices]
	}

	return &domain.DeviceScanInherentData{
		Devices:          devices,
		ReporterPosition: p.reporterPosition,
		ScanTimestamp:    uint64(time.Now().Unix()),
	}
}

// ProvideEncoded returns the identifier and SCALE payload ready for block
// inclusion. A nil payload means nothing to include.
func (p *Provider) ProvideEncoded() ([8]byte, []byte, error) {
	data := p.Provide()
	if data == nil {
		return domain.InherentIdentifier, nil, nil
	}
	raw, err := domain.EncodeInherent(data)
	if err != nil {
		return domain.InherentIdentifier, nil, err
	}
	return domain.InherentIdentifier, raw, nil
}

// Extract decodes an inherent payload from a block body. Unknown
// identifiers are ignored and decode failures are dropped without
// panicking; both return nil.
func Extract(identifier [8]byte, raw []byte) *domain.DeviceScanInherentData {
	if identifier != domain.InherentIdentifier || len(raw) == 0 {
		return nil
	}
	data, err := domain.DecodeInherent(raw)
	if err != nil {
		return nil
	}
	return data
}
