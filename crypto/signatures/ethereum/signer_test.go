package ethereum

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	qt "github.com/frankban/quicktest"
)

func TestNewSignerFromHex(t *testing.T) {
	c := qt.New(t)

	privKey, err := ethcrypto.GenerateKey()
	c.Assert(err, qt.IsNil)
	hexKey := common.Bytes2Hex(ethcrypto.FromECDSA(privKey))

	signer, err := NewSignerFromHex(hexKey)
	c.Assert(err, qt.IsNil)
	c.Assert(signer.Address(), qt.Equals, ethcrypto.PubkeyToAddress(privKey.PublicKey))

	prefixed, err := NewSignerFromHex("0x" + hexKey)
	c.Assert(err, qt.IsNil)
	c.Assert(prefixed.Address(), qt.Equals, signer.Address())
	c.Assert(prefixed.HexPrivateKey().Hex(), qt.Equals, hexKey)

	_, err = NewSignerFromHex("invalid hex string")
	c.Assert(err, qt.ErrorMatches, "could not load key: .*")
	_, err = NewSignerFromHex("1234")
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestSignAndRecover(t *testing.T) {
	c := qt.New(t)

	signer, err := NewSigner()
	c.Assert(err, qt.IsNil)

	msg := []byte("election 1 provisioned")
	sig, err := signer.Sign(msg)
	c.Assert(err, qt.IsNil)
	c.Assert(sig, qt.HasLen, SignatureLength)
	c.Assert(sig[64] == 27 || sig[64] == 28, qt.IsTrue)

	addr, err := AddrFromSignature(msg, sig)
	c.Assert(err, qt.IsNil)
	c.Assert(addr, qt.Equals, signer.Address())

	other, err := AddrFromSignature([]byte("tampered"), sig)
	c.Assert(err, qt.IsNil)
	c.Assert(other, qt.Not(qt.Equals), signer.Address())

	_, err = AddrFromSignature(msg, sig[:10])
	c.Assert(err, qt.ErrorMatches, "invalid signature length 10")
}

func TestWipe(t *testing.T) {
	c := qt.New(t)

	signer, err := NewSigner()
	c.Assert(err, qt.IsNil)
	addr := signer.Address()
	c.Assert(signer.Wiped(), qt.IsFalse)

	signer.Wipe()
	c.Assert(signer.Wiped(), qt.IsTrue)
	c.Assert(signer.Address(), qt.Equals, addr)
	_, err = signer.Sign([]byte("msg"))
	c.Assert(err, qt.ErrorIs, ErrWiped)

	// wiping twice is fine
	signer.Wipe()
}
