package scanner

import (
	"strconv"
	"strings"
)

// parseBSSID parses a colon-separated MAC address into raw bytes.
func parseBSSID(bssid string) ([6]byte, bool) {
	var out [6]byte
	parts := strings.Split(bssid, ":")
	if len(parts) != 6 {
		return out, false
	}
	for i, part := range parts {
		v, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return out, false
		}
		out[i] = byte(v)
	}
	return out, true
}
