// Package merkle builds the voter-eligibility commitment of an election.
//
// Each eligible wallet contributes one leaf,
//
//	leaf = keccak256(address[20] ‖ uint256(electionID)[32])
//
// which matches Solidity's keccak256(abi.encodePacked(address, uint256)).
// Leaves are combined level by level: adjacent nodes are paired, the pair is
// sorted byte-lexicographically and hashed as keccak256(low ‖ high). A node
// left without a sibling is carried to the next level unchanged. Because the
// pairs are sorted, a proof is just the list of sibling hashes and can be
// checked with OpenZeppelin's MerkleProof.verify.
//
// The leaf list keeps the input order. Building the same ordered list twice
// yields the same root, a permutation of the list may not.
package merkle

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// leafEncodingLen is the size of the tightly packed (address, uint256) pair.
const leafEncodingLen = common.AddressLength + 32

var (
	// ErrEmptyWallets is returned when a commitment is requested for zero
	// wallets. No election can have an empty eligibility set.
	ErrEmptyWallets = errors.New("no eligible voters: wallet list is empty")
	// ErrDuplicateWallet is returned when the same wallet appears twice.
	ErrDuplicateWallet = errors.New("duplicate wallet in eligibility list")
	// ErrNilElectionID is returned when the election id is missing.
	ErrNilElectionID = errors.New("nil election id")
	// ErrNotInTree is returned when a proof is requested for a wallet that
	// is not part of the commitment.
	ErrNotInTree = errors.New("wallet not in eligibility tree")
)

// LeafHash derives the eligibility leaf of a wallet for one election.
func LeafHash(wallet common.Address, electionID *uint256.Int) common.Hash {
	var packed [leafEncodingLen]byte
	copy(packed[:common.AddressLength], wallet.Bytes())
	id := electionID.Bytes32()
	copy(packed[common.AddressLength:], id[:])
	return crypto.Keccak256Hash(packed[:])
}

// hashPair hashes two sibling nodes in sorted order.
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a[:], b[:])
}

// Tree is an eligibility commitment. Layer 0 holds the leaves, the last
// layer holds the root.
type Tree struct {
	electionID *uint256.Int
	wallets    []common.Address
	index      map[common.Address]int
	layers     [][]common.Hash
}

// Build computes the eligibility tree of the given wallets for electionID.
// The wallet list must be non-empty and free of duplicates; the caller owns
// the uniqueness of the voter roster, Build only refuses to hide a duplicate.
func Build(wallets []common.Address, electionID *uint256.Int) (*Tree, error) {
	if len(wallets) == 0 {
		return nil, ErrEmptyWallets
	}
	if electionID == nil {
		return nil, ErrNilElectionID
	}
	t := &Tree{
		electionID: electionID.Clone(),
		wallets:    make([]common.Address, len(wallets)),
		index:      make(map[common.Address]int, len(wallets)),
	}
	copy(t.wallets, wallets)

	leaves := make([]common.Hash, len(wallets))
	for i, w := range wallets {
		if prev, ok := t.index[w]; ok {
			return nil, fmt.Errorf("%w: %s at positions %d and %d", ErrDuplicateWallet, w.Hex(), prev, i)
		}
		t.index[w] = i
		leaves[i] = LeafHash(w, electionID)
	}

	t.layers = [][]common.Hash{leaves}
	for level := leaves; len(level) > 1; {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		t.layers = append(t.layers, next)
		level = next
	}
	return t, nil
}

// Root returns the commitment root.
func (t *Tree) Root() common.Hash {
	return t.layers[len(t.layers)-1][0]
}

// RootHex returns the root as a 0x-prefixed, 32-byte hex string.
func (t *Tree) RootHex() string {
	return t.Root().Hex()
}

// ElectionID returns the election the leaves were derived for.
func (t *Tree) ElectionID() *uint256.Int {
	return t.electionID.Clone()
}

// Leaves returns a copy of the leaves in input order.
func (t *Tree) Leaves() []common.Hash {
	return append([]common.Hash(nil), t.layers[0]...)
}

// Wallets returns a copy of the wallets in input order.
func (t *Tree) Wallets() []common.Address {
	return append([]common.Address(nil), t.wallets...)
}

// Size returns the number of leaves.
func (t *Tree) Size() int {
	return len(t.layers[0])
}

// Proof returns the leaf of wallet and the sibling hashes from the leaf up
// to the root. Levels where the node was carried up have no sibling and
// contribute nothing to the proof.
func (t *Tree) Proof(wallet common.Address) (common.Hash, []common.Hash, error) {
	idx, ok := t.index[wallet]
	if !ok {
		return common.Hash{}, nil, fmt.Errorf("%w: %s", ErrNotInTree, wallet.Hex())
	}
	var proof []common.Hash
	for _, level := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		idx /= 2
	}
	return t.layers[0][t.index[wallet]], proof, nil
}

// Verify reports whether leaf belongs to the tree committed by root, given
// the sibling hashes of its path.
func Verify(root, leaf common.Hash, proof []common.Hash) bool {
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	return computed == root
}

// VerifyWallet checks the membership of wallet for electionID.
func VerifyWallet(root common.Hash, wallet common.Address, electionID *uint256.Int, proof []common.Hash) bool {
	return Verify(root, LeafHash(wallet, electionID), proof)
}
