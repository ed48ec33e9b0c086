//go:build darwin

package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

// airportPath is the legacy scan utility removed on newer macOS versions.
const airportPath = "/System/Library/PrivateFrameworks/Apple80211.framework/Versions/Current/Resources/airport"

// WifiScanner shells out to macOS WiFi tooling and parses the output into
// canonical records.
type WifiScanner struct {
	interfaceName string
	timeout       time.Duration
}

// NewWifiScanner creates a scanner with the given subprocess timeout. The
// timeout must stay at or below the scan interval to avoid starving the
// scanner loop. The interface name is unused on macOS, where the system
// tools pick the active radio.
func NewWifiScanner(iface string, timeout time.Duration) *WifiScanner {
	return &WifiScanner{interfaceName: iface, timeout: timeout}
}

// Scan runs one WiFi acquisition pass, trying airport first and falling
// back to system_profiler.
func (s *WifiScanner) Scan(ctx context.Context) ([]domain.ScannedDevice, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := os.Stat(airportPath); err == nil {
		output, err := exec.CommandContext(ctx, airportPath, "-s").Output()
		if err == nil {
			return s.parseAirportOutput(string(output)), nil
		}
		slog.Debug("airport scan failed, falling back to system_profiler", "error", err)
	}

	output, err := exec.CommandContext(ctx, "/usr/sbin/system_profiler", "SPAirPortDataType", "-json").Output()
	if err != nil {
		if os.IsPermission(err) {
			return nil, domain.ErrPermissionDenied
		}
		return nil, fmt.Errorf("%w: system_profiler: %v", domain.ErrScanFailed, err)
	}
	return s.parseSystemProfilerOutput(output), nil
}

type spAirportReport struct {
	SPAirPortDataType []struct {
		Interfaces []struct {
			Networks []spNetwork `json:"spairport_airport_other_local_wireless_networks"`
		} `json:"spairport_airport_interfaces"`
	} `json:"SPAirPortDataType"`
}

type spNetwork struct {
	Name        string `json:"_name"`
	BSSID       string `json:"spairport_network_bssid"`
	SignalNoise string `json:"spairport_signal_noise"`
	Channel     string `json:"spairport_network_channel"`
}

func (s *WifiScanner) parseSystemProfilerOutput(output []byte) []domain.ScannedDevice {
	var report spAirportReport
	if err := json.Unmarshal(output, &report); err != nil {
		slog.Debug("system_profiler output unparsable", "error", err)
		return nil
	}

	now := uint64(time.Now().Unix())
	var devices []domain.ScannedDevice
	totalNetworks, redacted := 0, 0

	for _, data := range report.SPAirPortDataType {
		for _, iface := range data.Interfaces {
			totalNetworks += len(iface.Networks)
			for _, network := range iface.Networks {
				if network.Name == "<redacted>" {
					redacted++
					continue
				}
				if device := s.parseNetworkEntry(network, now); device != nil {
					devices = append(devices, *device)
				}
			}
		}
	}

	if redacted > 0 && len(devices) == 0 {
		slog.Debug("all networks redacted by macOS privacy; grant Location Services or run privileged",
			"total", totalNetworks, "redacted", redacted)
	}
	return devices
}

func (s *WifiScanner) parseNetworkEntry(network spNetwork, timestamp uint64) *domain.ScannedDevice {
	ssid := network.Name
	if ssid == "" || ssid == "<redacted>" {
		return nil
	}

	rssi := int8(-100)
	if parts := strings.Split(network.SignalNoise, "/"); len(parts) > 0 {
		raw := strings.TrimSpace(strings.ReplaceAll(parts[0], " dBm", ""))
		if v, err := strconv.ParseInt(raw, 10, 8); err == nil {
			rssi = int8(v)
		}
	}

	var channel uint16
	if fields := strings.Fields(network.Channel); len(fields) > 0 {
		if v, err := strconv.ParseUint(fields[0], 10, 16); err == nil {
			channel = uint16(v)
		}
	}
	frequency := channelToFrequency(channel)

	// Hash the BSSID when available; newer macOS withholds it, in which
	// case the SSID hash stands in.
	var macHash crypto.H256
	var vendor *[32]byte
	deviceType := domain.DeviceUnknown
	if macBytes, ok := parseBSSID(network.BSSID); ok {
		macHash = crypto.Blake2b256(macBytes[:])
		oui := [3]byte{macBytes[0], macBytes[1], macBytes[2]}
		if name, found := lookupVendor(oui); found {
			vendor = domain.PadVendor(name)
		}
		deviceType = lookupDeviceType(oui)
	} else {
		macHash = crypto.Blake2b256([]byte(ssid))
	}
	if deviceType == domain.DeviceUnknown {
		deviceType = inferDeviceTypeFromName(ssid)
	}

	return &domain.ScannedDevice{
		MacHash:      macHash,
		RSSI:         rssi,
		SignalType:   domain.SignalWifi,
		DeviceType:   deviceType,
		Vendor:       vendor,
		DeviceName:   domain.PadDeviceName(ssid),
		FrequencyMHz: &frequency,
		DetectedAt:   timestamp,
	}
}

func (s *WifiScanner) parseAirportOutput(output string) []domain.ScannedDevice {
	now := uint64(time.Now().Unix())
	var devices []domain.ScannedDevice

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 7 {
			continue
		}

		ssid := parts[0]
		macBytes, ok := parseBSSID(parts[1])
		if !ok {
			continue
		}

		rssi := int8(-100)
		if v, err := strconv.ParseInt(parts[2], 10, 8); err == nil {
			rssi = int8(v)
		}
		var channel uint16
		if v, err := strconv.ParseUint(parts[3], 10, 16); err == nil {
			channel = uint16(v)
		}
		frequency := channelToFrequency(channel)

		oui := [3]byte{macBytes[0], macBytes[1], macBytes[2]}
		var vendor *[32]byte
		if name, found := lookupVendor(oui); found {
			vendor = domain.PadVendor(name)
		}
		deviceType := lookupDeviceType(oui)
		if deviceType == domain.DeviceUnknown {
			deviceType = inferDeviceTypeFromName(ssid)
		}

		devices = append(devices, domain.ScannedDevice{
			MacHash:      crypto.Blake2b256(macBytes[:]),
			RSSI:         rssi,
			SignalType:   domain.SignalWifi,
			DeviceType:   deviceType,
			Vendor:       vendor,
			DeviceName:   domain.PadDeviceName(ssid),
			FrequencyMHz: &frequency,
			DetectedAt:   now,
		})
	}
	return devices
}
