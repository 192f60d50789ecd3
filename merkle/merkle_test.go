package merkle

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
	"github.com/holiman/uint256"
)

func testWallets(n int) []common.Address {
	wallets := make([]common.Address, n)
	for i := range wallets {
		wallets[i] = common.BytesToAddress(crypto.Keccak256([]byte{byte(i), 0x42})[12:])
	}
	return wallets
}

func sortedHash(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(append(a.Bytes(), b.Bytes()...))
}

func TestLeafHash(t *testing.T) {
	c := qt.New(t)

	wallet := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	packed := append(wallet.Bytes(), common.LeftPadBytes([]byte{7}, 32)...)
	c.Assert(LeafHash(wallet, uint256.NewInt(7)), qt.Equals, crypto.Keccak256Hash(packed))

	// The election id is part of the leaf.
	c.Assert(LeafHash(wallet, uint256.NewInt(7)), qt.Not(qt.Equals), LeafHash(wallet, uint256.NewInt(8)))
}

func TestBuild(t *testing.T) {
	c := qt.New(t)
	id := uint256.NewInt(1)

	c.Run("single leaf is the root", func(c *qt.C) {
		w := testWallets(1)
		tree, err := Build(w, id)
		c.Assert(err, qt.IsNil)
		c.Assert(tree.Root(), qt.Equals, LeafHash(w[0], id))
		c.Assert(tree.Size(), qt.Equals, 1)
	})

	c.Run("odd node is carried up", func(c *qt.C) {
		w := testWallets(3)
		tree, err := Build(w, id)
		c.Assert(err, qt.IsNil)
		l := tree.Leaves()
		c.Assert(l, qt.HasLen, 3)
		c.Assert(tree.Root(), qt.Equals, sortedHash(sortedHash(l[0], l[1]), l[2]))
	})

	c.Run("four leaves", func(c *qt.C) {
		w := testWallets(4)
		tree, err := Build(w, id)
		c.Assert(err, qt.IsNil)
		l := tree.Leaves()
		c.Assert(tree.Root(), qt.Equals, sortedHash(sortedHash(l[0], l[1]), sortedHash(l[2], l[3])))
	})

	c.Run("deterministic", func(c *qt.C) {
		w := testWallets(5)
		t1, err := Build(w, id)
		c.Assert(err, qt.IsNil)
		t2, err := Build(w, uint256.NewInt(1))
		c.Assert(err, qt.IsNil)
		c.Assert(t1.RootHex(), qt.Equals, t2.RootHex())
		c.Assert(t1.RootHex(), qt.HasLen, 66)
	})

	c.Run("election id changes the root", func(c *qt.C) {
		w := testWallets(5)
		t1, err := Build(w, uint256.NewInt(1))
		c.Assert(err, qt.IsNil)
		t2, err := Build(w, uint256.NewInt(2))
		c.Assert(err, qt.IsNil)
		c.Assert(t1.Root(), qt.Not(qt.Equals), t2.Root())
	})

	c.Run("different sets differ", func(c *qt.C) {
		w := testWallets(4)
		t1, err := Build(w[:3], id)
		c.Assert(err, qt.IsNil)
		t2, err := Build([]common.Address{w[0], w[1], w[3]}, id)
		c.Assert(err, qt.IsNil)
		c.Assert(t1.Root(), qt.Not(qt.Equals), t2.Root())
	})

	c.Run("input is copied", func(c *qt.C) {
		w := testWallets(2)
		tree, err := Build(w, id)
		c.Assert(err, qt.IsNil)
		root := tree.Root()
		w[0] = common.Address{}
		c.Assert(tree.Wallets()[0], qt.Not(qt.Equals), common.Address{})
		c.Assert(tree.Root(), qt.Equals, root)
	})

	c.Run("empty", func(c *qt.C) {
		_, err := Build(nil, id)
		c.Assert(err, qt.ErrorIs, ErrEmptyWallets)
	})

	c.Run("duplicate", func(c *qt.C) {
		w := testWallets(3)
		w[2] = w[0]
		_, err := Build(w, id)
		c.Assert(err, qt.ErrorIs, ErrDuplicateWallet)
		c.Assert(err, qt.ErrorMatches, `.*positions 0 and 2`)
	})

	c.Run("nil election id", func(c *qt.C) {
		_, err := Build(testWallets(1), nil)
		c.Assert(err, qt.ErrorIs, ErrNilElectionID)
	})
}

func TestProof(t *testing.T) {
	c := qt.New(t)
	id := uint256.NewInt(42)

	for _, n := range []int{1, 2, 3, 5, 7, 8, 13} {
		w := testWallets(n)
		tree, err := Build(w, id)
		c.Assert(err, qt.IsNil)
		for _, wallet := range w {
			leaf, proof, err := tree.Proof(wallet)
			c.Assert(err, qt.IsNil)
			c.Assert(leaf, qt.Equals, LeafHash(wallet, id))
			c.Assert(Verify(tree.Root(), leaf, proof), qt.IsTrue, qt.Commentf("n=%d wallet=%s", n, wallet.Hex()))
			c.Assert(VerifyWallet(tree.Root(), wallet, id, proof), qt.IsTrue)
			// Same proof does not hold for another election.
			if n > 1 {
				c.Assert(VerifyWallet(tree.Root(), wallet, uint256.NewInt(43), proof), qt.IsFalse)
			}
		}
	}

	tree, err := Build(testWallets(3), id)
	c.Assert(err, qt.IsNil)
	_, _, err = tree.Proof(common.HexToAddress("0x01"))
	c.Assert(err, qt.ErrorIs, ErrNotInTree)
}

// TestKnownRoots checks Build against roots computed outside Go with
// merkletreejs semantics (keccak256, sortPairs, odd node carried up) over
// the first hardhat development accounts.
func TestKnownRoots(t *testing.T) {
	c := qt.New(t)
	wallets := []common.Address{
		common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"),
		common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"),
		common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"),
	}
	for _, tc := range []struct {
		electionID uint64
		leaf0      string
		root2      string
		root5      string
	}{
		{
			electionID: 1,
			leaf0:      "0x67c6a2e151d4352a55021b5d0028c18121cfc24c7d73b179d22b17daff069c6e",
			root2:      "0x1838245b08d1e921c5c0b6c7aede4f17dd9b159feaee59ffebba9fd6c4bccb03",
			root5:      "0x4c66d47170ab8c3149bdbd5ce31fab4867cdd3ffd057848758e8994ea5f7d408",
		},
		{
			electionID: 42,
			leaf0:      "0x9a570a94d70a6117ef24b56e6fb2b998133486162be606e34f4b19088e0c0d34",
			root2:      "0x39f40785dc09907a8d97fb5fa95a543c02a80125b7ab15236032be2a73648a73",
			root5:      "0xe293d15eca05c2f7bee5a428275b55ede1fdeea2b0a33843bad545f88b5606b8",
		},
	} {
		id := uint256.NewInt(tc.electionID)
		c.Assert(LeafHash(wallets[0], id).Hex(), qt.Equals, tc.leaf0)

		tree, err := Build(wallets[:2], id)
		c.Assert(err, qt.IsNil)
		c.Assert(tree.RootHex(), qt.Equals, tc.root2)

		tree, err = Build(wallets, id)
		c.Assert(err, qt.IsNil)
		c.Assert(tree.RootHex(), qt.Equals, tc.root5)
		for _, w := range wallets {
			leaf, proof, err := tree.Proof(w)
			c.Assert(err, qt.IsNil)
			c.Assert(Verify(common.HexToHash(tc.root5), leaf, proof), qt.IsTrue)
		}
	}
}
