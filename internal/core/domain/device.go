// Package domain holds the core types of the proof-of-presence pipeline:
// scanned devices, reporters, tracked devices, the block inherent payload
// and the protocol error taxonomy.
package domain

import (
	"time"

	"github.com/7aylabs/popchain/internal/crypto"
)

// SignalType classifies the radio a device was observed on.
type SignalType uint8

const (
	SignalWifi SignalType = iota
	SignalBluetooth
	SignalBle
	SignalZigbee
	SignalUnknown
)

func (s SignalType) String() string {
	switch s {
	case SignalWifi:
		return "wifi"
	case SignalBluetooth:
		return "bluetooth"
	case SignalBle:
		return "ble"
	case SignalZigbee:
		return "zigbee"
	default:
		return "unknown"
	}
}

// DeviceType is the inferred hardware category of an observed device.
type DeviceType uint8

const (
	DeviceUnknown DeviceType = iota
	DeviceIPhone
	DeviceAndroid
	DeviceMacBook
	DeviceWindowsPC
	DeviceLinuxPC
	DeviceIPad
	DeviceAppleWatch
	DeviceAirPods
	DeviceSmartTV
	DeviceIoT
	DeviceNetwork
	DevicePrinter
	DeviceGameConsole
)

func (d DeviceType) String() string {
	switch d {
	case DeviceIPhone:
		return "iphone"
	case DeviceAndroid:
		return "android"
	case DeviceMacBook:
		return "macbook"
	case DeviceWindowsPC:
		return "windows_pc"
	case DeviceLinuxPC:
		return "linux_pc"
	case DeviceIPad:
		return "ipad"
	case DeviceAppleWatch:
		return "apple_watch"
	case DeviceAirPods:
		return "airpods"
	case DeviceSmartTV:
		return "smart_tv"
	case DeviceIoT:
		return "iot"
	case DeviceNetwork:
		return "network"
	case DevicePrinter:
		return "printer"
	case DeviceGameConsole:
		return "game_console"
	default:
		return "unknown"
	}
}

// Position is a cartesian coordinate in centimetres. Records are immutable;
// a reporter updating its position produces a new record.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// RSSI bounds in dBm. Stronger is closer to zero.
const (
	MinRSSI int8 = -100
	MaxRSSI int8 = 0
)

// ValidRSSI reports whether rssi is inside the accepted dBm range.
func ValidRSSI(rssi int8) bool {
	return rssi >= MinRSSI && rssi <= MaxRSSI
}

// ScannedDevice is a single radio observation. The raw MAC is never stored;
// only its blake2b-256 digest.
type ScannedDevice struct {
	MacHash      crypto.H256 `json:"mac_hash"`
	RSSI         int8        `json:"rssi"`
	SignalType   SignalType  `json:"signal_type"`
	DeviceType   DeviceType  `json:"device_type"`
	Vendor       *[32]byte   `json:"-"`
	DeviceName   *[64]byte   `json:"-"`
	FrequencyMHz *uint16     `json:"frequency_mhz,omitempty"`
	DetectedAt   uint64      `json:"detected_at"`
}

// VendorString decodes the padded vendor name, if present.
func (d *ScannedDevice) VendorString() string {
	if d.Vendor == nil {
		return ""
	}
	return trimPadded(d.Vendor[:])
}

// DeviceNameString decodes the padded device name, if present.
func (d *ScannedDevice) DeviceNameString() string {
	if d.DeviceName == nil {
		return ""
	}
	return trimPadded(d.DeviceName[:])
}

func trimPadded(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// ScanResults is the latest scan snapshot, ordered by descending RSSI.
// Mutated only by the scanner writer; read-only to everyone else.
type ScanResults struct {
	Devices  []ScannedDevice `json:"devices"`
	LastScan time.Time       `json:"last_scan"`
}

// PadVendor encodes a vendor name into the fixed 32-byte wire form.
func PadVendor(name string) *[32]byte {
	var out [32]byte
	copy(out[:], name)
	return &out
}

// PadDeviceName encodes a device name into the fixed 64-byte wire form.
func PadDeviceName(name string) *[64]byte {
	var out [64]byte
	copy(out[:], name)
	return &out
}
