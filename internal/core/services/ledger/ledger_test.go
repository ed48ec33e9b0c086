package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/crypto"
)

func ctxAt(block uint64) ports.Ctx {
	return ports.Ctx{BlockNumber: block, EpochID: 1}
}

func TestCommitRevealRoundTrip(t *testing.T) {
	l := New()
	root := crypto.RepeatByte(0xaa)
	nonce := [32]byte(crypto.RepeatByte(0xbb))
	commitment := crypto.CommitScan(root, nonce, 100)

	require.NoError(t, l.Commit(ctxAt(100), 0, commitment, 5))
	assert.Equal(t, 1, l.PendingCount())

	record, err := l.Reveal(ctxAt(105), 0, 100, nonce, root, []int8{-50, -60})
	require.NoError(t, err)
	assert.Equal(t, root, record.MerkleRoot)
	assert.Equal(t, uint8(5), record.DeviceCount)
	assert.Equal(t, 0, l.PendingCount())
}

func TestCommitDuplicateRejected(t *testing.T) {
	l := New()
	commitment := crypto.RepeatByte(0x01)

	require.NoError(t, l.Commit(ctxAt(100), 0, commitment, 1))
	err := l.Commit(ctxAt(100), 0, commitment, 1)
	assert.ErrorIs(t, err, domain.ErrDuplicatePresence)

	// A different reporter at the same block is fine.
	assert.NoError(t, l.Commit(ctxAt(100), 1, commitment, 1))
}

func TestRevealMismatchIsImmutable(t *testing.T) {
	l := New()
	root := crypto.RepeatByte(0xaa)
	nonce := [32]byte(crypto.RepeatByte(0xbb))
	commitment := crypto.CommitScan(root, nonce, 100)
	require.NoError(t, l.Commit(ctxAt(100), 0, commitment, 3))

	// Wrong merkle root.
	_, err := l.Reveal(ctxAt(101), 0, 100, nonce, crypto.RepeatByte(0xab), nil)
	assert.ErrorIs(t, err, domain.ErrPresenceImmutable)

	// Wrong nonce.
	_, err = l.Reveal(ctxAt(101), 0, 100, [32]byte(crypto.RepeatByte(0xbc)), root, nil)
	assert.ErrorIs(t, err, domain.ErrPresenceImmutable)

	// The pending entry survives failed reveals.
	_, _, ok := l.PendingCommitment(0, 100)
	assert.True(t, ok)

	// Correct inputs still reveal.
	_, err = l.Reveal(ctxAt(101), 0, 100, nonce, root, nil)
	assert.NoError(t, err)
}

func TestRevealOutsideWindowExpires(t *testing.T) {
	l := New()
	root := crypto.RepeatByte(0xaa)
	nonce := [32]byte(crypto.RepeatByte(0xbb))
	require.NoError(t, l.Commit(ctxAt(100), 0, crypto.CommitScan(root, nonce, 100), 1))

	_, err := l.Reveal(ctxAt(100+DefaultRevealWindow+1), 0, 100, nonce, root, nil)
	assert.ErrorIs(t, err, domain.ErrEpochExpired)

	// Expired is terminal: a later in-window-looking reveal cannot reopen it.
	_, err = l.Reveal(ctxAt(105), 0, 100, nonce, root, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRevealedIsTerminal(t *testing.T) {
	l := New()
	root := crypto.RepeatByte(0xaa)
	nonce := [32]byte(crypto.RepeatByte(0xbb))
	require.NoError(t, l.Commit(ctxAt(100), 0, crypto.CommitScan(root, nonce, 100), 1))

	_, err := l.Reveal(ctxAt(101), 0, 100, nonce, root, nil)
	require.NoError(t, err)

	// Second reveal of the same commitment is a duplicate.
	_, err = l.Reveal(ctxAt(102), 0, 100, nonce, root, nil)
	assert.ErrorIs(t, err, domain.ErrDuplicatePresence)

	// Re-committing a revealed (reporter, block) is immutable.
	err = l.Commit(ctxAt(100), 0, crypto.RepeatByte(0x02), 1)
	assert.ErrorIs(t, err, domain.ErrPresenceImmutable)
}

func TestRevealRejectsInvalidRssi(t *testing.T) {
	l := New()
	root := crypto.RepeatByte(0xaa)
	nonce := [32]byte(crypto.RepeatByte(0xbb))
	require.NoError(t, l.Commit(ctxAt(100), 0, crypto.CommitScan(root, nonce, 100), 1))

	_, err := l.Reveal(ctxAt(101), 0, 100, nonce, root, []int8{10})
	assert.ErrorIs(t, err, domain.ErrInvalidRssi)
}

func TestSlashedTerminalOverridesTransitions(t *testing.T) {
	l := New()
	l.Slash(0)

	err := l.Commit(ctxAt(100), 0, crypto.RepeatByte(0x01), 1)
	assert.ErrorIs(t, err, domain.ErrSlashedTerminal)

	_, err = l.Reveal(ctxAt(101), 0, 100, [32]byte{}, crypto.ZeroH256, nil)
	assert.ErrorIs(t, err, domain.ErrSlashedTerminal)
}

func TestNullifierAppendOnly(t *testing.T) {
	l := New()
	secret := [32]byte(crypto.RepeatByte(42))
	n := crypto.DeriveNullifier(secret, 1, 0)

	require.NoError(t, l.ConsumeNullifier(n))
	assert.True(t, l.HasNullifier(n))

	// Second appearance is a hard error.
	err := l.ConsumeNullifier(n)
	assert.ErrorIs(t, err, domain.ErrDuplicatePresence)

	// A different (epoch, nonce) derivation is distinct.
	assert.NoError(t, l.ConsumeNullifier(crypto.DeriveNullifier(secret, 1, 1)))
}

func TestExpireStaleMovesPendingToExpired(t *testing.T) {
	l := New()
	root := crypto.RepeatByte(0xaa)
	nonce := [32]byte(crypto.RepeatByte(0xbb))
	require.NoError(t, l.Commit(ctxAt(100), 0, crypto.CommitScan(root, nonce, 100), 1))
	require.NoError(t, l.Commit(ctxAt(108), 1, crypto.CommitScan(root, nonce, 108), 1))

	expired := l.ExpireStale(ctxAt(115))
	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, l.PendingCount())

	// The survivor is the fresher commitment.
	_, _, ok := l.PendingCommitment(1, 108)
	assert.True(t, ok)
}

func TestPendingHistoryBounded(t *testing.T) {
	l := New()
	for i := uint64(0); i < 25; i++ {
		require.NoError(t, l.Commit(ctxAt(100+i), 0, crypto.RepeatByte(byte(i)), 1))
	}
	assert.LessOrEqual(t, l.PendingCount(), DefaultRevealWindow)
}

func TestFutureTargetBlockRejected(t *testing.T) {
	l := New()
	_, err := l.Reveal(ctxAt(100), 0, 200, [32]byte{}, crypto.ZeroH256, nil)
	assert.ErrorIs(t, err, domain.ErrBlockRefOutOfBounds)
}
