package crypto

// MerkleProof carries the sibling path for an O(log n) membership proof.
type MerkleProof struct {
	LeafIndex uint64 `json:"leaf_index"`
	Siblings  []H256 `json:"siblings"`
}

// ComputeRoot folds the leaf with each sibling. At level k the side is
// dictated by bit k of the leaf index: bit clear means the running hash is
// the left operand.
func (p *MerkleProof) ComputeRoot(leaf H256) H256 {
	current := leaf
	index := p.LeafIndex
	for _, sibling := range p.Siblings {
		if index&1 == 0 {
			current = HashPair(current, sibling)
		} else {
			current = HashPair(sibling, current)
		}
		index >>= 1
	}
	return current
}

// Verify checks membership against a known root. Root equality is checked
// in constant time. An empty sibling list validates iff leaf == root.
func (p *MerkleProof) Verify(root, leaf H256) bool {
	return p.ComputeRoot(leaf).Equal(root)
}

// StateRootFromLeaves builds a Merkle root over the leaves, padding with the
// zero hash up to the next power of two. The empty leaf set yields the
// all-zero root. Deterministic for a given input ordering.
func StateRootFromLeaves(leaves []H256) H256 {
	if len(leaves) == 0 {
		return ZeroH256
	}

	layer := make([]H256, len(leaves))
	copy(layer, leaves)

	for len(layer) < nextPowerOfTwo(len(layer)) {
		layer = append(layer, ZeroH256)
	}

	for len(layer) > 1 {
		next := make([]H256, 0, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			next = append(next, HashPair(layer[i], layer[i+1]))
		}
		layer = next
	}
	return layer[0]
}

// MerkleProofForLeaf builds the sibling path for leaf index i over the padded
// tree, so reporters can prove individual device hashes from a reveal.
func MerkleProofForLeaf(leaves []H256, index uint64) *MerkleProof {
	if int(index) >= len(leaves) {
		return nil
	}

	layer := make([]H256, len(leaves))
	copy(layer, leaves)
	for len(layer) < nextPowerOfTwo(len(layer)) {
		layer = append(layer, ZeroH256)
	}

	proof := &MerkleProof{LeafIndex: index}
	idx := index
	for len(layer) > 1 {
		sibling := idx ^ 1
		proof.Siblings = append(proof.Siblings, layer[sibling])
		next := make([]H256, 0, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			next = append(next, HashPair(layer[i], layer[i+1]))
		}
		layer = next
		idx >>= 1
	}
	return proof
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
