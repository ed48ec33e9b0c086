package crypto

import "encoding/binary"

// Nullifier is a one-time token whose first on-chain appearance is valid and
// all subsequent appearances are rejected.
type Nullifier struct {
	hash H256
}

// DeriveNullifier computes H(DomainNullifier || secret || epoch_LE || nonce_LE).
// For a fixed secret the derivation is injective in (epoch, nonce) under
// blake2b collision resistance.
func DeriveNullifier(secret [32]byte, epochID, nonce uint64) Nullifier {
	input := make([]byte, 0, len(DomainNullifier)+32+16)
	input = append(input, DomainNullifier...)
	input = append(input, secret[:]...)
	input = binary.LittleEndian.AppendUint64(input, epochID)
	input = binary.LittleEndian.AppendUint64(input, nonce)
	return Nullifier{hash: Blake2b256(input)}
}

// NullifierFromHash wraps a digest received over the wire.
func NullifierFromHash(h H256) Nullifier { return Nullifier{hash: h} }

// Hash returns the nullifier digest.
func (n Nullifier) Hash() H256 { return n.hash }

// Equal compares in constant time.
func (n Nullifier) Equal(other Nullifier) bool { return n.hash.Equal(other.hash) }
