//go:build !darwin && !linux

package scanner

import (
	"context"
	"time"

	"github.com/7aylabs/popchain/internal/core/domain"
)

// WifiScanner has no real backend on this platform.
type WifiScanner struct{}

func NewWifiScanner(iface string, timeout time.Duration) *WifiScanner {
	return &WifiScanner{}
}

func (s *WifiScanner) Scan(ctx context.Context) ([]domain.ScannedDevice, error) {
	return nil, domain.ErrUnsupportedPlatform
}
