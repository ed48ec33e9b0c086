//go:build linux

package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

// WifiScanner captures 802.11 management frames from a monitor-mode
// interface and folds them into canonical records. One Scan call drains
// frames for the configured timeout window.
type WifiScanner struct {
	interfaceName string
	timeout       time.Duration
}

// NewWifiScanner captures on iface for at most timeout per pass. The
// timeout must stay at or below the scan interval.
func NewWifiScanner(iface string, timeout time.Duration) *WifiScanner {
	return &WifiScanner{interfaceName: iface, timeout: timeout}
}

// Scan opens a short-lived pcap handle and aggregates beacon and probe
// frames by transmitter address. The raw MAC is hashed immediately and
// never retained.
func (s *WifiScanner) Scan(ctx context.Context) ([]domain.ScannedDevice, error) {
	if s.interfaceName == "" {
		return nil, domain.ErrInterfaceNotFound
	}

	handle, err := pcap.OpenLive(s.interfaceName, 1024, true, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrScanFailed, s.interfaceName, err)
	}
	defer handle.Close()

	deadline := time.After(s.timeout)
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	now := uint64(time.Now().Unix())

	seen := make(map[crypto.H256]domain.ScannedDevice)
	for {
		select {
		case <-ctx.Done():
			return collect(seen), ctx.Err()
		case <-deadline:
			return collect(seen), nil
		case packet, ok := <-source.Packets():
			if !ok {
				return collect(seen), nil
			}
			if device := s.parseFrame(packet, now); device != nil {
				// Keep the strongest observation per device.
				if prev, exists := seen[device.MacHash]; !exists || device.RSSI > prev.RSSI {
					seen[device.MacHash] = *device
				}
			}
		}
	}
}

func (s *WifiScanner) parseFrame(packet gopacket.Packet, timestamp uint64) *domain.ScannedDevice {
	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return nil
	}
	dot11, ok := dot11Layer.(*layers.Dot11)
	if !ok {
		return nil
	}
	if dot11.Type != layers.Dot11TypeMgmtBeacon && dot11.Type != layers.Dot11TypeMgmtProbeReq {
		return nil
	}

	mac := dot11.Address2
	if len(mac) != 6 {
		return nil
	}

	rssi := int8(-100)
	var frequency uint16
	if radiotapLayer := packet.Layer(layers.LayerTypeRadioTap); radiotapLayer != nil {
		if radiotap, ok := radiotapLayer.(*layers.RadioTap); ok {
			rssi = radiotap.DBMAntennaSignal
			frequency = uint16(radiotap.ChannelFrequency)
		}
	}
	if !domain.ValidRSSI(rssi) {
		rssi = domain.MinRSSI
	}

	ssid := extractSSID(packet)

	oui := [3]byte{mac[0], mac[1], mac[2]}
	var vendor *[32]byte
	if name, found := lookupVendor(oui); found {
		vendor = domain.PadVendor(name)
	}
	deviceType := lookupDeviceType(oui)
	if deviceType == domain.DeviceUnknown && ssid != "" {
		deviceType = inferDeviceTypeFromName(ssid)
	}

	var deviceName *[64]byte
	if ssid != "" {
		deviceName = domain.PadDeviceName(ssid)
	}

	device := &domain.ScannedDevice{
		MacHash:    crypto.Blake2b256(mac),
		RSSI:       rssi,
		SignalType: domain.SignalWifi,
		DeviceType: deviceType,
		Vendor:     vendor,
		DeviceName: deviceName,
		DetectedAt: timestamp,
	}
	if frequency != 0 {
		device.FrequencyMHz = &frequency
	}
	return device
}

// extractSSID pulls the SSID information element from a management frame.
func extractSSID(packet gopacket.Packet) string {
	for _, layer := range packet.Layers() {
		if element, ok := layer.(*layers.Dot11InformationElement); ok {
			if element.ID == layers.Dot11InformationElementIDSSID {
				return string(element.Info)
			}
		}
	}
	return ""
}

func collect(seen map[crypto.H256]domain.ScannedDevice) []domain.ScannedDevice {
	devices := make([]domain.ScannedDevice, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	return devices
}
