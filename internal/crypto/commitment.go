package crypto

import "encoding/binary"

// Commitment is a hash commitment C = H(domain || value || randomness).
// Hiding comes from the 32 bytes of randomness, binding from blake2b.
type Commitment struct {
	hash H256
}

// NewCommitment commits to value under DomainCommitment.
func NewCommitment(value []byte, randomness [32]byte) Commitment {
	input := make([]byte, 0, len(DomainCommitment)+len(value)+32)
	input = append(input, DomainCommitment...)
	input = append(input, value...)
	input = append(input, randomness[:]...)
	return Commitment{hash: Blake2b256(input)}
}

// CommitmentFromHash wraps an already-computed commitment digest, e.g. one
// received over the wire at commit time.
func CommitmentFromHash(h H256) Commitment {
	return Commitment{hash: h}
}

// Verify recomputes the commitment and compares in constant time.
func (c Commitment) Verify(value []byte, randomness [32]byte) bool {
	expected := NewCommitment(value, randomness)
	return c.hash.Equal(expected.hash)
}

// Hash returns the commitment digest.
func (c Commitment) Hash() H256 { return c.hash }

// CommitScan binds a scan merkle root to a block:
// H(DomainCommitment || merkle_root || nonce || block_LE).
// The nonce stays reporter-private until reveal.
func CommitScan(merkleRoot H256, nonce [32]byte, blockNumber uint64) H256 {
	input := make([]byte, 0, len(DomainCommitment)+32+32+8)
	input = append(input, DomainCommitment...)
	input = append(input, merkleRoot[:]...)
	input = append(input, nonce[:]...)
	input = binary.LittleEndian.AppendUint64(input, blockNumber)
	return Blake2b256(input)
}

// CommitDeviceScan is the mock scanner's end-to-end commitment, bound under
// its own domain so test commitments can never collide with ledger ones.
func CommitDeviceScan(merkleRoot H256, nonce [32]byte, blockNumber uint64) H256 {
	input := make([]byte, 0, len(DomainDeviceScan)+32+32+8)
	input = append(input, DomainDeviceScan...)
	input = append(input, merkleRoot[:]...)
	input = append(input, nonce[:]...)
	input = binary.LittleEndian.AppendUint64(input, blockNumber)
	return Blake2b256(input)
}
