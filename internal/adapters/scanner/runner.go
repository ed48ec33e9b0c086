package scanner

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/telemetry"
)

// Config tunes the scanner loop.
type Config struct {
	ScanIntervalSecs   uint64
	WifiEnabled        bool
	BluetoothEnabled   bool
	MaxDevicesPerBlock uint32
	ReporterPosition   domain.Position
	BtScanDurationSecs uint64
	WifiInterface      string
}

// DefaultConfig matches the protocol defaults. Bluetooth stays off by
// default: discovery needs a controller in a sane state, which headless
// validators rarely have.
func DefaultConfig() Config {
	return Config{
		ScanIntervalSecs:   6,
		WifiEnabled:        true,
		BluetoothEnabled:   false,
		MaxDevicesPerBlock: 100,
		BtScanDurationSecs: 3,
	}
}

// Runner owns the scanner loop: it drives the radio scanners on the scan
// interval and publishes each batch to the shared buffer. Scan errors are
// logged and swallowed; the buffer keeps its last good snapshot.
type Runner struct {
	config    Config
	buffer    *Buffer
	wifi      ports.DeviceScanner
	bluetooth ports.DeviceScanner
	sessionID string
}

// NewRunner builds a runner over real radio scanners per the config.
func NewRunner(config Config, buffer *Buffer) *Runner {
	r := &Runner{
		config:    config,
		buffer:    buffer,
		sessionID: uuid.New().String(),
	}

	scanTimeout := time.Duration(config.ScanIntervalSecs) * time.Second
	if config.WifiEnabled {
		r.wifi = NewWifiScanner(config.WifiInterface, scanTimeout)
	}
	if config.BluetoothEnabled {
		btWindow := time.Duration(config.BtScanDurationSecs) * time.Second
		if btWindow > scanTimeout {
			btWindow = scanTimeout
		}
		r.bluetooth = NewBluetoothScanner(btWindow)
	}
	return r
}

// NewMockRunner builds a runner over a deterministic mock source.
func NewMockRunner(config Config, buffer *Buffer, mock *MockScanner) *Runner {
	return &Runner{
		config:    config,
		buffer:    buffer,
		wifi:      mock,
		sessionID: uuid.New().String(),
	}
}

// Run loops until the context is cancelled. Cancellation is honoured at
// the interval sleep and inside each scanner's subprocess wait; a batch in
// flight at cancel time is discarded.
func (r *Runner) Run(ctx context.Context) {
	interval := time.Duration(r.config.ScanIntervalSecs) * time.Second

	slog.Info("device scanner started",
		"session", r.sessionID,
		"wifi", r.wifi != nil,
		"bluetooth", r.bluetooth != nil,
		"interval_secs", r.config.ScanIntervalSecs,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.scanOnce(ctx)

		select {
		case <-ctx.Done():
			slog.Info("device scanner stopped", "session", r.sessionID)
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) scanOnce(ctx context.Context) {
	var devices []domain.ScannedDevice
	succeeded := false

	if r.wifi != nil {
		batch, err := r.wifi.Scan(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			telemetry.ScanErrors.WithLabelValues("wifi").Inc()
			slog.Warn("wifi scan failed", "error", err)
		default:
			telemetry.ScansTotal.WithLabelValues("wifi").Inc()
			devices = append(devices, batch...)
			succeeded = true
		}
	}

	if r.bluetooth != nil {
		batch, err := r.bluetooth.Scan(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			telemetry.ScanErrors.WithLabelValues("bluetooth").Inc()
			slog.Warn("bluetooth scan failed", "error", err)
		default:
			telemetry.ScansTotal.WithLabelValues("bluetooth").Inc()
			devices = append(devices, batch...)
			succeeded = true
		}
	}

	if ctx.Err() != nil {
		// Cancelled mid-batch: discard, keep the previous snapshot.
		return
	}
	if !succeeded {
		// Every radio failed this pass. Keep the last good snapshot.
		return
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].RSSI > devices[j].RSSI
	})
	if uint32(len(devices)) > r.config.MaxDevicesPerBlock {
		devices = devices[:r.config.MaxDevicesPerBlock]
	}

	telemetry.DevicesScanned.Add(float64(len(devices)))
	r.buffer.Publish(domain.ScanResults{
		Devices:  devices,
		LastScan: time.Now(),
	})

	if len(devices) > 0 {
		slog.Debug("scan complete", "devices", len(devices))
	}
}
