package scanner

import (
	"strings"

	"github.com/7aylabs/popchain/internal/core/domain"
)

// ouiEntry couples a vendor name with the device category its OUI usually
// indicates.
type ouiEntry struct {
	vendor     string
	deviceType domain.DeviceType
}

// ouiTable is a static fallback of well-known OUI prefixes. A full IEEE
// registry import would live in an external database; the static table
// covers the vendors that dominate real scans.
var ouiTable = map[[3]byte]ouiEntry{
	{0x00, 0x17, 0xF2}: {"Apple", domain.DeviceIPhone},
	{0xF0, 0x18, 0x98}: {"Apple", domain.DeviceMacBook},
	{0xAC, 0xBC, 0x32}: {"Apple", domain.DeviceIPhone},
	{0x00, 0x12, 0xFB}: {"Samsung", domain.DeviceAndroid},
	{0x8C, 0x77, 0x12}: {"Samsung", domain.DeviceAndroid},
	{0x00, 0x1E, 0xBD}: {"Cisco", domain.DeviceNetwork},
	{0x50, 0xC7, 0xBF}: {"TP-Link", domain.DeviceNetwork},
	{0xA0, 0x63, 0x91}: {"Netgear", domain.DeviceNetwork},
	{0x00, 0x14, 0xBF}: {"Linksys", domain.DeviceNetwork},
	{0xF4, 0xF5, 0xD8}: {"Google", domain.DeviceAndroid},
	{0xFC, 0xA6, 0x67}: {"Amazon", domain.DeviceIoT},
	{0x34, 0xCE, 0x00}: {"Xiaomi", domain.DeviceAndroid},
	{0x00, 0xE0, 0xFC}: {"Huawei", domain.DeviceAndroid},
	{0x00, 0x13, 0x02}: {"Intel", domain.DeviceWindowsPC},
	{0x00, 0x1F, 0xC6}: {"Asus", domain.DeviceNetwork},
	{0x00, 0x17, 0x9A}: {"D-Link", domain.DeviceNetwork},
	{0x00, 0x11, 0x50}: {"Belkin", domain.DeviceNetwork},
	{0x00, 0x13, 0xA9}: {"Sony", domain.DeviceGameConsole},
	{0x00, 0x04, 0x56}: {"Motorola", domain.DeviceAndroid},
	{0x00, 0x1C, 0x62}: {"LG", domain.DeviceSmartTV},
}

// lookupVendor resolves an OUI prefix to a vendor name.
func lookupVendor(oui [3]byte) (string, bool) {
	entry, ok := ouiTable[oui]
	if !ok {
		return "", false
	}
	return entry.vendor, true
}

// lookupDeviceType resolves an OUI prefix to a device category.
func lookupDeviceType(oui [3]byte) domain.DeviceType {
	if entry, ok := ouiTable[oui]; ok {
		return entry.deviceType
	}
	return domain.DeviceUnknown
}

// inferDeviceTypeFromName guesses the category from an SSID or advertised
// name. Used to overlay the OUI result when that came back Unknown.
func inferDeviceTypeFromName(name string) domain.DeviceType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "iphone"):
		return domain.DeviceIPhone
	case strings.Contains(lower, "ipad"):
		return domain.DeviceIPad
	case strings.Contains(lower, "macbook"):
		return domain.DeviceMacBook
	case strings.Contains(lower, "watch"):
		return domain.DeviceAppleWatch
	case strings.Contains(lower, "airpods"):
		return domain.DeviceAirPods
	case strings.Contains(lower, "android"), strings.Contains(lower, "galaxy"), strings.Contains(lower, "pixel"):
		return domain.DeviceAndroid
	case strings.Contains(lower, "printer"), strings.Contains(lower, "print"):
		return domain.DevicePrinter
	case strings.Contains(lower, "tv"), strings.Contains(lower, "roku"), strings.Contains(lower, "chromecast"):
		return domain.DeviceSmartTV
	case strings.Contains(lower, "playstation"), strings.Contains(lower, "xbox"), strings.Contains(lower, "nintendo"):
		return domain.DeviceGameConsole
	case strings.Contains(lower, "echo"), strings.Contains(lower, "nest"), strings.Contains(lower, "ring"):
		return domain.DeviceIoT
	default:
		return domain.DeviceUnknown
	}
}
