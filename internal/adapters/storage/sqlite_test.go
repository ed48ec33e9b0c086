package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/crypto"
)

func newTestStore(t *testing.T) *SQLiteAdapter {
	t.Helper()
	store, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "popchain.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReporterRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	reporter := domain.Reporter{
		ID:       0,
		Account:  1,
		Position: domain.Position{X: 100, Y: 200, Z: 0},
		Active:   true,
	}
	require.NoError(t, store.SaveReporter(ctx, reporter))

	// Saving again with active=false updates in place.
	reporter.Active = false
	require.NoError(t, store.SaveReporter(ctx, reporter))

	reporters, err := store.ListReporters(ctx)
	require.NoError(t, err)
	require.Len(t, reporters, 1)
	assert.Equal(t, reporter, reporters[0])
}

func TestTrackedDeviceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	device := domain.TrackedDevice{
		MacHash:        crypto.RepeatByte(0x01),
		SignalType:     domain.SignalWifi,
		FirstSeenBlock: 10,
		LastSeenBlock:  42,
		ReadingCount:   5,
		Confidence:     84,
		State:          domain.DeviceActive,
	}
	require.NoError(t, store.SaveTrackedDevice(ctx, device))

	devices, err := store.ListTrackedDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, device, devices[0])
}

func TestDeviceHistoryOrderedAndLimited(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	macHash := crypto.RepeatByte(0x01)

	for block := uint64(1); block <= 5; block++ {
		require.NoError(t, store.AppendReading(ctx, macHash, domain.SignalReading{
			ReporterID:  0,
			RSSI:        -50,
			BlockNumber: block,
		}))
	}

	history, err := store.DeviceHistory(ctx, macHash, 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Newest first.
	assert.Equal(t, uint64(5), history[0].BlockNumber)

	// Other devices have no history.
	other, err := store.DeviceHistory(ctx, crypto.RepeatByte(0x02), 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCommitmentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	commitment := crypto.RepeatByte(0xaa)

	require.NoError(t, store.SaveCommitment(ctx, 0, 100, commitment, 7))

	stored, err := store.ListCommitments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, commitment, stored[0].Commitment)
	assert.Equal(t, uint8(7), stored[0].DeviceCount)

	require.NoError(t, store.DeleteCommitment(ctx, 0, 100))
	stored, err = store.ListCommitments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestNullifierInsertOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	n := crypto.RepeatByte(0x42)

	require.NoError(t, store.InsertNullifier(ctx, n))

	err := store.InsertNullifier(ctx, n)
	assert.ErrorIs(t, err, domain.ErrDuplicatePresence)

	// A distinct nullifier still inserts.
	assert.NoError(t, store.InsertNullifier(ctx, crypto.RepeatByte(0x43)))
}

func TestParseHexHash(t *testing.T) {
	h := crypto.RepeatByte(0x5a)
	parsed, err := parseHexHash(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = parseHexHash("0xzz")
	assert.Error(t, err)
	_, err = parseHexHash("0x0102")
	assert.Error(t, err)
}
