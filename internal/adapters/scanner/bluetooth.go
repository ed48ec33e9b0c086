package scanner

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

// BluetoothScanner shells out to the platform's bluetooth tooling:
// bluetoothctl on Linux, system_profiler on macOS. Everything else is
// unsupported.
type BluetoothScanner struct {
	scanDuration time.Duration
}

// NewBluetoothScanner creates a scanner with the given inner scan window.
func NewBluetoothScanner(scanDuration time.Duration) *BluetoothScanner {
	return &BluetoothScanner{scanDuration: scanDuration}
}

// Scan discovers nearby bluetooth devices for the configured window.
func (s *BluetoothScanner) Scan(ctx context.Context) ([]domain.ScannedDevice, error) {
	switch runtime.GOOS {
	case "linux":
		return s.scanLinux(ctx)
	case "darwin":
		return s.scanDarwin(ctx)
	default:
		return nil, domain.ErrUnsupportedPlatform
	}
}

func (s *BluetoothScanner) scanLinux(ctx context.Context) ([]domain.ScannedDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.scanDuration+2*time.Second)
	defer cancel()

	// A bounded discovery pass populates the controller cache, then
	// `devices` dumps what was seen.
	scan := exec.CommandContext(ctx, "bluetoothctl", "--timeout",
		fmt.Sprintf("%d", int(s.scanDuration.Seconds())), "scan", "on")
	if err := scan.Run(); err != nil {
		return nil, fmt.Errorf("%w: bluetoothctl scan: %v", domain.ErrScanFailed, err)
	}

	output, err := exec.CommandContext(ctx, "bluetoothctl", "devices").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: bluetoothctl devices: %v", domain.ErrScanFailed, err)
	}
	return s.parseBluetoothctl(string(output)), nil
}

// parseBluetoothctl parses "Device AA:BB:CC:DD:EE:FF Name..." lines.
func (s *BluetoothScanner) parseBluetoothctl(output string) []domain.ScannedDevice {
	now := uint64(time.Now().Unix())
	var devices []domain.ScannedDevice

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != "Device" {
			continue
		}
		macBytes, ok := parseBSSID(fields[1])
		if !ok {
			continue
		}
		name := strings.Join(fields[2:], " ")

		oui := [3]byte{macBytes[0], macBytes[1], macBytes[2]}
		var vendor *[32]byte
		if vendorName, found := lookupVendor(oui); found {
			vendor = domain.PadVendor(vendorName)
		}
		deviceType := lookupDeviceType(oui)
		if deviceType == domain.DeviceUnknown {
			deviceType = inferDeviceTypeFromName(name)
		}

		var deviceName *[64]byte
		if name != "" {
			deviceName = domain.PadDeviceName(name)
		}

		// bluetoothctl does not expose RSSI on the devices listing;
		// every device is reported with a fixed placeholder of -70 dBm.
		devices = append(devices, domain.ScannedDevice{
			MacHash:    crypto.Blake2b256(macBytes[:]),
			RSSI:       -70,
			SignalType: domain.SignalBluetooth,
			DeviceType: deviceType,
			Vendor:     vendor,
			DeviceName: deviceName,
			DetectedAt: now,
		})
	}
	return devices
}

func (s *BluetoothScanner) scanDarwin(ctx context.Context) ([]domain.ScannedDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.scanDuration+2*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "/usr/sbin/system_profiler", "SPBluetoothDataType").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: system_profiler bluetooth: %v", domain.ErrScanFailed, err)
	}

	now := uint64(time.Now().Unix())
	var devices []domain.ScannedDevice
	var currentName string

	for _, line := range strings.Split(string(output), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed, "Address") {
			currentName = strings.TrimSuffix(trimmed, ":")
			continue
		}
		if !strings.HasPrefix(trimmed, "Address:") {
			continue
		}
		addr := strings.TrimSpace(strings.TrimPrefix(trimmed, "Address:"))
		macBytes, ok := parseBSSID(addr)
		if !ok {
			continue
		}

		deviceType := inferDeviceTypeFromName(currentName)
		var deviceName *[64]byte
		if currentName != "" {
			deviceName = domain.PadDeviceName(currentName)
		}

		devices = append(devices, domain.ScannedDevice{
			MacHash:    crypto.Blake2b256(macBytes[:]),
			RSSI:       -70,
			SignalType: domain.SignalBluetooth,
			DeviceType: deviceType,
			DeviceName: deviceName,
			DetectedAt: now,
		})
	}
	return devices, nil
}
