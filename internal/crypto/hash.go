// Package crypto provides the hash substrate for presence verification:
// domain-separated blake2b-256 digests, Merkle proofs, commitments,
// nullifiers and constant-time comparison.
package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Domain separators. A domain must never be reused for two constructions.
var (
	DomainPresence   = []byte("7ay:presence:v1")
	DomainEpoch      = []byte("7ay:epoch:v1")
	DomainCommitment = []byte("7ay:commit:v1")
	DomainMerkle     = []byte("7ay:merkle:v1")
	DomainNullifier  = []byte("7ay:nullifier:v1")
	DomainDeviceScan = []byte("7ay:device:commit:v1")
)

// H256 is a 32-byte blake2b-256 digest.
type H256 [32]byte

// ZeroH256 is the all-zero digest, used as Merkle padding and as the
// canonical root of an empty leaf set.
var ZeroH256 H256

// NewH256 copies b into a digest. Inputs shorter than 32 bytes are
// zero-padded, longer inputs are truncated.
func NewH256(b []byte) H256 {
	var h H256
	copy(h[:], b)
	return h
}

// RepeatByte returns a digest with every byte set to v.
func RepeatByte(v byte) H256 {
	var h H256
	for i := range h {
		h[i] = v
	}
	return h
}

func (h H256) Bytes() []byte { return h[:] }

func (h H256) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// IsZero reports whether h is the all-zero digest.
func (h H256) IsZero() bool { return h == ZeroH256 }

// Equal compares two digests in constant time. Authenticated values must
// never be compared with ==, which short-circuits on the first mismatch.
func (h H256) Equal(other H256) bool {
	var acc byte
	for i := 0; i < len(h); i++ {
		acc |= h[i] ^ other[i]
	}
	return acc == 0
}

// ConstantTimeEq compares two 32-byte secrets with an XOR-OR accumulator.
func ConstantTimeEq(a, b [32]byte) bool {
	var acc byte
	for i := 0; i < 32; i++ {
		acc |= a[i] ^ b[i]
	}
	return acc == 0
}

// Blake2b256 hashes data with blake2b-256.
func Blake2b256(data []byte) H256 {
	return H256(blake2b.Sum256(data))
}

// HashWithDomain computes blake2b_256(domain || data).
func HashWithDomain(domain, data []byte) H256 {
	input := make([]byte, 0, len(domain)+len(data))
	input = append(input, domain...)
	input = append(input, data...)
	return Blake2b256(input)
}

// HashPair combines two digests for Merkle tree construction. Order is
// significant: HashPair(l, r) != HashPair(r, l).
func HashPair(left, right H256) H256 {
	var input [64]byte
	copy(input[:32], left[:])
	copy(input[32:], right[:])
	return Blake2b256(input[:])
}
