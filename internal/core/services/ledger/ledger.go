// Package ledger implements the commit–reveal state machine: per-block
// commitments to scan merkle roots, delayed reveals verified against prior
// commitments, and nullifier-based replay prevention.
package ledger

import (
	"log/slog"
	"sync"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/crypto"
	"github.com/7aylabs/popchain/internal/telemetry"
)

// DefaultRevealWindow mirrors the commitment history cap: a reveal must
// land within this many blocks of its commit.
const DefaultRevealWindow = 10

// commitKey identifies one pending commitment.
type commitKey struct {
	reporter domain.ReporterID
	block    uint64
}

// pendingCommitment is the Pending state of the commit–reveal machine.
type pendingCommitment struct {
	commitment  crypto.H256
	deviceCount uint8
}

// RevealRecord is emitted on a successful reveal.
type RevealRecord struct {
	Reporter    domain.ReporterID `json:"reporter"`
	BlockNumber uint64            `json:"block_number"`
	MerkleRoot  crypto.H256       `json:"merkle_root"`
	DeviceCount uint8             `json:"device_count"`
}

// Ledger holds the commit–reveal state for all reporters. All state
// transitions are serialized by block execution on the host chain; the
// mutex only guards against the operator API reading concurrently.
type Ledger struct {
	mu sync.RWMutex

	pending    map[commitKey]pendingCommitment
	pendingSeq []commitKey // commit order, for history pruning
	revealed   map[commitKey]bool
	expired    map[commitKey]bool
	nullifiers map[crypto.H256]struct{}
	slashed    map[domain.ReporterID]bool

	reveals []RevealRecord

	revealWindow uint64
	historyCap   int

	sink ports.EventSink
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRevealWindow overrides the reveal window (blocks).
func WithRevealWindow(window uint64) Option {
	return func(l *Ledger) { l.revealWindow = window }
}

// WithEventSink attaches an event sink for reveal broadcasts.
func WithEventSink(sink ports.EventSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		pending:      make(map[commitKey]pendingCommitment),
		revealed:     make(map[commitKey]bool),
		expired:      make(map[commitKey]bool),
		nullifiers:   make(map[crypto.H256]struct{}),
		slashed:      make(map[domain.ReporterID]bool),
		revealWindow: DefaultRevealWindow,
		historyCap:   DefaultRevealWindow,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Commit records a reporter's commitment for the given block. The
// commitment hash is computed reporter-side as
// H(domain || merkle_root || nonce || block_LE); the nonce stays private
// until reveal. Fails with ErrDuplicatePresence when a commitment already
// exists for (reporter, block), and with ErrSlashedTerminal for slashed
// reporters.
func (l *Ledger) Commit(ctx ports.Ctx, reporter domain.ReporterID, commitment crypto.H256, deviceCount uint8) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slashed[reporter] {
		return domain.ErrSlashedTerminal
	}

	key := commitKey{reporter: reporter, block: ctx.BlockNumber}
	if _, ok := l.pending[key]; ok {
		return domain.ErrDuplicatePresence
	}
	if l.revealed[key] || l.expired[key] {
		// Terminal states are never re-opened.
		return domain.ErrPresenceImmutable
	}

	l.pending[key] = pendingCommitment{commitment: commitment, deviceCount: deviceCount}
	l.pendingSeq = append(l.pendingSeq, key)
	l.pruneLocked()

	telemetry.CommitsTotal.Inc()
	slog.Debug("scan committed",
		"reporter", reporter,
		"block", ctx.BlockNumber,
		"devices", deviceCount,
	)
	return nil
}

// Reveal opens the commitment for (reporter, targetBlock). The candidate
// commitment is recomputed from (merkleRoot, nonce, targetBlock) and
// compared in constant time; a mismatch is PresenceImmutable, a reveal
// outside the window is EpochExpired. On success the pending entry is
// dropped, the terminal Revealed state is recorded, and a reveal record is
// emitted.
func (l *Ledger) Reveal(ctx ports.Ctx, reporter domain.ReporterID, targetBlock uint64, nonce [32]byte, merkleRoot crypto.H256, rssiValues []int8) (*RevealRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slashed[reporter] {
		return nil, domain.ErrSlashedTerminal
	}
	if targetBlock > ctx.BlockNumber {
		return nil, domain.ErrBlockRefOutOfBounds
	}

	key := commitKey{reporter: reporter, block: targetBlock}
	entry, ok := l.pending[key]
	if !ok {
		if l.revealed[key] {
			return nil, domain.ErrDuplicatePresence
		}
		return nil, domain.ErrNotFound
	}

	if ctx.BlockNumber-targetBlock > l.revealWindow {
		delete(l.pending, key)
		l.expired[key] = true
		return nil, domain.ErrEpochExpired
	}

	for _, rssi := range rssiValues {
		if !domain.ValidRSSI(rssi) {
			return nil, domain.ErrInvalidRssi
		}
	}

	candidate := crypto.CommitScan(merkleRoot, nonce, targetBlock)
	if !candidate.Equal(entry.commitment) {
		return nil, domain.ErrPresenceImmutable
	}

	delete(l.pending, key)
	l.revealed[key] = true

	record := RevealRecord{
		Reporter:    reporter,
		BlockNumber: targetBlock,
		MerkleRoot:  merkleRoot,
		DeviceCount: entry.deviceCount,
	}
	l.reveals = append(l.reveals, record)
	if len(l.reveals) > l.historyCap {
		l.reveals = l.reveals[len(l.reveals)-l.historyCap:]
	}

	telemetry.RevealsTotal.Inc()
	if l.sink != nil {
		l.sink.ScanRevealed(reporter, targetBlock, merkleRoot)
	}
	slog.Info("scan revealed",
		"reporter", reporter,
		"block", targetBlock,
		"merkle_root", merkleRoot.Hex(),
	)
	return &record, nil
}

// ConsumeNullifier inserts a nullifier, failing with ErrDuplicatePresence
// on any second appearance. Check and insert happen under one lock so
// double insertion within a block is still caught.
func (l *Ledger) ConsumeNullifier(n crypto.Nullifier) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash := n.Hash()
	if _, ok := l.nullifiers[hash]; ok {
		telemetry.NullifierRejections.Inc()
		return domain.ErrDuplicatePresence
	}
	l.nullifiers[hash] = struct{}{}
	return nil
}

// HasNullifier reports membership without consuming.
func (l *Ledger) HasNullifier(n crypto.Nullifier) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.nullifiers[n.Hash()]
	return ok
}

// Slash marks a reporter terminally slashed. SlashedTerminal overrides any
// further transition attempt.
func (l *Ledger) Slash(reporter domain.ReporterID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slashed[reporter] = true
}

// ExpireStale moves pending commitments past the reveal window into the
// terminal Expired state. Called once per block.
func (l *Ledger) ExpireStale(ctx ports.Ctx) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	expired := 0
	for key := range l.pending {
		if ctx.BlockNumber > key.block && ctx.BlockNumber-key.block > l.revealWindow {
			delete(l.pending, key)
			l.expired[key] = true
			expired++
		}
	}
	return expired
}

// PendingCount returns the number of open commitments.
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// PendingCommitment looks up the stored commitment for (reporter, block).
func (l *Ledger) PendingCommitment(reporter domain.ReporterID, block uint64) (crypto.H256, uint8, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.pending[commitKey{reporter: reporter, block: block}]
	return entry.commitment, entry.deviceCount, ok
}

// Reveals returns the bounded reveal history, newest last.
func (l *Ledger) Reveals() []RevealRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]RevealRecord, len(l.reveals))
	copy(out, l.reveals)
	return out
}

// pruneLocked keeps the pending set within the bounded history window by
// expiring the oldest entries. Caller holds the write lock.
func (l *Ledger) pruneLocked() {
	for len(l.pendingSeq) > 0 && len(l.pending) > l.historyCap {
		oldest := l.pendingSeq[0]
		l.pendingSeq = l.pendingSeq[1:]
		if _, ok := l.pending[oldest]; ok {
			delete(l.pending, oldest)
			l.expired[oldest] = true
		}
	}
	// Drop sequence entries that already left the pending set.
	for len(l.pendingSeq) > 0 {
		if _, ok := l.pending[l.pendingSeq[0]]; ok {
			break
		}
		l.pendingSeq = l.pendingSeq[1:]
	}
}
