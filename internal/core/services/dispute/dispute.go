// Package dispute tracks violation disputes against validators and the
// evidence submitted to support them.
package dispute

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/7aylabs/popchain/internal/core/domain"
	"github.com/7aylabs/popchain/internal/core/ports"
	"github.com/7aylabs/popchain/internal/crypto"
)

// ViolationType grades the severity of the alleged offence.
type ViolationType uint8

const (
	ViolationMinor ViolationType = iota
	ViolationModerate
	ViolationSevere
	ViolationCritical
)

// SlashPct maps the violation to its slashing percentage.
func (v ViolationType) SlashPct() uint8 {
	switch v {
	case ViolationModerate:
		return domain.SlashModeratePct
	case ViolationSevere:
		return domain.SlashSeverePct
	case ViolationCritical:
		return domain.SlashCriticalPct
	default:
		return domain.SlashMinorPct
	}
}

// Status is the dispute lifecycle state.
type Status uint8

const (
	StatusOpen Status = iota
	StatusUnderReview
	StatusResolved
	StatusRejected
)

// Params bound dispute storage.
type Params struct {
	MaxEvidencePerDispute int
	MinEvidenceRequired   int
	MaxOpenDisputes       int
}

// DefaultParams matches the protocol defaults.
func DefaultParams() Params {
	return Params{
		MaxEvidencePerDispute: 10,
		MinEvidenceRequired:   2,
		MaxOpenDisputes:       20,
	}
}

// Dispute is one open or settled case.
type Dispute struct {
	ID          uint32          `json:"id"`
	Ref         string          `json:"ref"` // external handle
	Reporter    domain.AccountID `json:"reporter"`
	Target      crypto.H256     `json:"target"`
	Violation   ViolationType   `json:"violation"`
	Status      Status          `json:"status"`
	Evidence    []crypto.H256   `json:"evidence"`
	OpenedBlock uint64          `json:"opened_block"`
}

// Service owns all disputes.
type Service struct {
	mu sync.RWMutex

	params   Params
	disputes map[uint32]*Dispute
	nextID   uint32
	open     int
}

// NewService creates an empty dispute service.
func NewService(params Params) *Service {
	return &Service{
		params:   params,
		disputes: make(map[uint32]*Dispute),
	}
}

// Open creates a new dispute against target.
func (s *Service) Open(ctx ports.Ctx, reporter domain.AccountID, target crypto.H256, violation ViolationType) (*Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open >= s.params.MaxOpenDisputes {
		return nil, domain.ErrNotPermitted
	}

	d := &Dispute{
		ID:          s.nextID,
		Ref:         uuid.New().String(),
		Reporter:    reporter,
		Target:      target,
		Violation:   violation,
		Status:      StatusOpen,
		OpenedBlock: ctx.BlockNumber,
	}
	s.disputes[d.ID] = d
	s.nextID++
	s.open++

	slog.Info("dispute opened", "dispute", d.ID, "target", target.Hex())
	return d, nil
}

// SubmitEvidence attaches a distinct evidence hash to an open dispute.
// The cap is hard: the submission after MaxEvidencePerDispute fails with
// ErrMaxEvidenceReached. Duplicate hashes are slashable as invalid
// evidence.
func (s *Service) SubmitEvidence(ctx ports.Ctx, disputeID uint32, evidenceHash crypto.H256) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disputes[disputeID]
	if !ok {
		return domain.ErrDisputeTargetNotFound
	}
	if d.Status == StatusResolved || d.Status == StatusRejected {
		return domain.ErrDisputeResolved
	}
	if len(d.Evidence) >= s.params.MaxEvidencePerDispute {
		return domain.ErrMaxEvidenceReached
	}
	for _, existing := range d.Evidence {
		if existing.Equal(evidenceHash) {
			return domain.ErrInvalidEvidence
		}
	}

	d.Evidence = append(d.Evidence, evidenceHash)
	if len(d.Evidence) >= s.params.MinEvidenceRequired {
		d.Status = StatusUnderReview
	}
	return nil
}

// Resolve settles a dispute and returns the slash amount and evidence
// reward for the given stake. Resolved disputes are immutable.
func (s *Service) Resolve(ctx ports.Ctx, disputeID uint32, upheld bool, stake uint64) (slash, reward uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disputes[disputeID]
	if !ok {
		return 0, 0, domain.ErrDisputeTargetNotFound
	}
	if d.Status == StatusResolved || d.Status == StatusRejected {
		return 0, 0, domain.ErrDisputeResolved
	}
	if len(d.Evidence) < s.params.MinEvidenceRequired {
		return 0, 0, domain.ErrInvalidEvidence
	}

	s.open--
	if !upheld {
		d.Status = StatusRejected
		return 0, 0, nil
	}

	d.Status = StatusResolved
	slash = domain.SlashAmount(stake, d.Violation.SlashPct())
	reward = domain.EvidenceReward(slash)
	slog.Info("dispute resolved", "dispute", d.ID, "slash", slash, "reward", reward)
	return slash, reward, nil
}

// Get returns a copy of the dispute.
func (s *Service) Get(disputeID uint32) (Dispute, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disputes[disputeID]
	if !ok {
		return Dispute{}, false
	}
	cp := *d
	cp.Evidence = make([]crypto.H256, len(d.Evidence))
	copy(cp.Evidence, d.Evidence)
	return cp, true
}

// Count returns the number of disputes ever opened.
func (s *Service) Count() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}
