package domain

// ProtocolError is the closed set of protocol failure kinds. Values are
// comparable, so callers use errors.Is against the Err* sentinels. The ledger
// surfaces these as transaction failures with no state mutation.
type ProtocolError uint8

const (
	// Input violations.
	ErrInvalidRssi ProtocolError = iota + 1
	ErrInvalidInput
	ErrBlockRefOutOfBounds

	// Authorization.
	ErrReporterNotActive
	ErrUnauthorizedDeclaration
	ErrNotPermitted

	// Temporal.
	ErrEpochExpired
	ErrCooldownActive
	ErrKeyDestructionTimeout

	// Duplication.
	ErrDuplicatePresence
	ErrDuplicateVote

	// Immutability.
	ErrPresenceImmutable
	ErrDisputeResolved
	ErrSlashedTerminal

	// Cryptographic.
	ErrSignatureInvalid
	ErrChainBindingInvalid
	ErrCryptoFailed

	// Saturation.
	ErrMaxEvidenceReached
	ErrTooManyReadings
	ErrMaxReportersReached

	// Slashable state faults.
	ErrStakeConcentration
	ErrInvalidEvidence
	ErrStateInconsistent

	// Lookup.
	ErrNotFound
	ErrDisputeTargetNotFound

	// Platform.
	ErrUnsupportedPlatform
	ErrPermissionDenied
	ErrInterfaceNotFound
	ErrScanFailed
)

func (e ProtocolError) Error() string {
	switch e {
	case ErrInvalidRssi:
		return "rssi out of range"
	case ErrInvalidInput:
		return "invalid input"
	case ErrBlockRefOutOfBounds:
		return "block reference out of bounds"
	case ErrReporterNotActive:
		return "reporter not active"
	case ErrUnauthorizedDeclaration:
		return "unauthorized declaration"
	case ErrNotPermitted:
		return "not permitted"
	case ErrEpochExpired:
		return "epoch expired"
	case ErrCooldownActive:
		return "cooldown active"
	case ErrKeyDestructionTimeout:
		return "key destruction timeout"
	case ErrDuplicatePresence:
		return "duplicate presence"
	case ErrDuplicateVote:
		return "duplicate vote"
	case ErrPresenceImmutable:
		return "presence record immutable"
	case ErrDisputeResolved:
		return "dispute already resolved"
	case ErrSlashedTerminal:
		return "slashed: terminal state"
	case ErrSignatureInvalid:
		return "signature invalid"
	case ErrChainBindingInvalid:
		return "chain binding invalid"
	case ErrCryptoFailed:
		return "cryptographic operation failed"
	case ErrMaxEvidenceReached:
		return "max evidence reached"
	case ErrTooManyReadings:
		return "too many readings"
	case ErrMaxReportersReached:
		return "max reporters reached"
	case ErrStakeConcentration:
		return "stake concentration"
	case ErrInvalidEvidence:
		return "invalid evidence"
	case ErrStateInconsistent:
		return "state inconsistent"
	case ErrNotFound:
		return "not found"
	case ErrDisputeTargetNotFound:
		return "dispute target not found"
	case ErrUnsupportedPlatform:
		return "unsupported platform"
	case ErrPermissionDenied:
		return "permission denied"
	case ErrInterfaceNotFound:
		return "interface not found"
	case ErrScanFailed:
		return "scan failed"
	default:
		return "internal protocol error"
	}
}

// IsSecurityViolation tags cryptographic and chain-binding failures for
// upstream handling.
func (e ProtocolError) IsSecurityViolation() bool {
	switch e {
	case ErrSignatureInvalid, ErrChainBindingInvalid, ErrBlockRefOutOfBounds, ErrCryptoFailed:
		return true
	}
	return false
}

// IsSlashable tags faults the host chain converts into slashing events.
func (e ProtocolError) IsSlashable() bool {
	switch e {
	case ErrStakeConcentration, ErrDuplicateVote, ErrInvalidEvidence, ErrStateInconsistent:
		return true
	}
	return false
}
