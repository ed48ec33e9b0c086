package storage

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/7aylabs/popchain/internal/crypto"
)

// parseHexHash decodes a 0x-prefixed 32-byte hex digest.
func parseHexHash(s string) (crypto.H256, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return crypto.ZeroH256, fmt.Errorf("malformed hash %q: %w", s, err)
	}
	if len(raw) != 32 {
		return crypto.ZeroH256, fmt.Errorf("malformed hash %q: %d bytes", s, len(raw))
	}
	return crypto.NewH256(raw), nil
}
