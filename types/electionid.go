package types

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// ElectionID is the identifier the election contract assigns to an
// election, a uint256 rendered in decimal. Ids start at one.
type ElectionID struct {
	n uint256.Int
}

// NewElectionID returns the id v.
func NewElectionID(v uint64) ElectionID {
	var id ElectionID
	id.n.SetUint64(v)
	return id
}

// ElectionIDFromBig converts a contract value.
func ElectionIDFromBig(b *big.Int) (ElectionID, error) {
	if b == nil || b.Sign() < 0 {
		return ElectionID{}, fmt.Errorf("invalid election id %v", b)
	}
	n, overflow := uint256.FromBig(b)
	if overflow {
		return ElectionID{}, fmt.Errorf("election id %s overflows uint256", b)
	}
	return ElectionID{n: *n}, nil
}

// ParseElectionID parses a decimal id.
func ParseElectionID(s string) (ElectionID, error) {
	if s == "" {
		return ElectionID{}, fmt.Errorf("empty election id")
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return ElectionID{}, fmt.Errorf("invalid election id %q: %w", s, err)
	}
	return ElectionID{n: *n}, nil
}

// Uint256 returns a copy of the id.
func (e ElectionID) Uint256() *uint256.Int {
	return e.n.Clone()
}

// BigInt returns the id as passed to contract calls.
func (e ElectionID) BigInt() *big.Int {
	return e.n.ToBig()
}

// Next returns the id following e.
func (e ElectionID) Next() ElectionID {
	var next ElectionID
	next.n.AddUint64(&e.n, 1)
	return next
}

func (e ElectionID) IsZero() bool {
	return e.n.IsZero()
}

func (e ElectionID) Equal(o ElectionID) bool {
	return e.n.Eq(&o.n)
}

func (e ElectionID) String() string {
	return e.n.Dec()
}

// Key returns the 32-byte big-endian form. Keys sort in id order.
func (e ElectionID) Key() []byte {
	b := e.n.Bytes32()
	return b[:]
}

func (e ElectionID) MarshalBinary() ([]byte, error) {
	return e.Key(), nil
}

func (e *ElectionID) UnmarshalBinary(data []byte) error {
	if len(data) != 32 {
		return fmt.Errorf("invalid election id length %d", len(data))
	}
	e.n.SetBytes32(data)
	return nil
}

func (e ElectionID) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *ElectionID) UnmarshalText(text []byte) error {
	id, err := ParseElectionID(string(text))
	if err != nil {
		return err
	}
	*e = id
	return nil
}
