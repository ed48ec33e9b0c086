// Package scanner acquires device observations from the local radios (or a
// deterministic mock), hashes identifiers, and maintains the shared scan
// buffer the inherent provider reads from.
package scanner

import (
	"sync"

	"github.com/7aylabs/popchain/internal/core/domain"
)

// Buffer is the single-writer multi-reader holder of the latest scan
// results. Writes replace the whole snapshot; readers never observe a
// partial update.
type Buffer struct {
	mu      sync.RWMutex
	results domain.ScanResults
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Publish atomically replaces the buffered snapshot. Only the scanner task
// calls this.
func (b *Buffer) Publish(results domain.ScanResults) {
	b.mu.Lock()
	b.results = results
	b.mu.Unlock()
}

// Snapshot returns the current snapshot. The device slice is copied so
// callers can hold it across buffer writes.
func (b *Buffer) Snapshot() domain.ScanResults {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := domain.ScanResults{LastScan: b.results.LastScan}
	if len(b.results.Devices) > 0 {
		out.Devices = make([]domain.ScannedDevice, len(b.results.Devices))
		copy(out.Devices, b.results.Devices)
	}
	return out
}
