package types

import (
	"encoding/json"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestElectionID(t *testing.T) {
	c := qt.New(t)

	id := NewElectionID(41)
	c.Assert(id.String(), qt.Equals, "41")
	c.Assert(id.Next().String(), qt.Equals, "42")
	c.Assert(id.BigInt().Int64(), qt.Equals, int64(41))
	c.Assert(id.IsZero(), qt.IsFalse)
	c.Assert(ElectionID{}.IsZero(), qt.IsTrue)

	parsed, err := ParseElectionID("41")
	c.Assert(err, qt.IsNil)
	c.Assert(parsed.Equal(id), qt.IsTrue)
	_, err = ParseElectionID("-1")
	c.Assert(err, qt.IsNotNil)
	_, err = ParseElectionID("abc")
	c.Assert(err, qt.IsNotNil)

	fromBig, err := ElectionIDFromBig(big.NewInt(41))
	c.Assert(err, qt.IsNil)
	c.Assert(fromBig.Equal(id), qt.IsTrue)
	_, err = ElectionIDFromBig(big.NewInt(-1))
	c.Assert(err, qt.IsNotNil)
	_, err = ElectionIDFromBig(new(big.Int).Lsh(big.NewInt(1), 256))
	c.Assert(err, qt.ErrorMatches, ".*overflows uint256")

	// keys sort numerically
	c.Assert(string(NewElectionID(2).Key()) < string(NewElectionID(10).Key()), qt.IsTrue)

	data, err := json.Marshal(struct {
		ID ElectionID `json:"id"`
	}{id})
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `{"id":"41"}`)

	var out struct {
		ID ElectionID `json:"id"`
	}
	c.Assert(json.Unmarshal(data, &out), qt.IsNil)
	c.Assert(out.ID.Equal(id), qt.IsTrue)

	bin, err := id.MarshalBinary()
	c.Assert(err, qt.IsNil)
	c.Assert(bin, qt.HasLen, 32)
	var back ElectionID
	c.Assert(back.UnmarshalBinary(bin), qt.IsNil)
	c.Assert(back.Equal(id), qt.IsTrue)
	c.Assert(back.UnmarshalBinary(bin[:4]), qt.IsNotNil)
}
