// Package ethereum wraps secp256k1 keys used to sign Ethereum transactions
// and messages.
package ethereum

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Rdilshan/e-voting-web-sub000/types"
)

const (
	// SignatureLength is the size of an ECDSA signature in bytes, including
	// the recovery byte.
	SignatureLength = ethcrypto.SignatureLength
	// SigningPrefix is the prefix added when hashing Ethereum messages.
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
)

// ErrWiped is returned when a wiped signer is used.
var ErrWiped = errors.New("signer key has been wiped")

// Signer is an ECDSA private key. It is a plain conversion of the
// go-ethereum ecdsa.PrivateKey so it can be passed to bind transactors.
type Signer ecdsa.PrivateKey

// NewSigner generates a new random key.
func NewSigner() (*Signer, error) {
	s, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return (*Signer)(s), nil
}

// NewSignerFromHex loads a key from its hex encoding. The 0x prefix is
// optional.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	s, err := ethcrypto.HexToECDSA(types.TrimHex(hexKey))
	if err != nil {
		return nil, fmt.Errorf("could not load key: %w", err)
	}
	return (*Signer)(s), nil
}

// PrivateKey returns the underlying key.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return (*ecdsa.PrivateKey)(s)
}

// Address returns the Ethereum address of the key.
func (s *Signer) Address() common.Address {
	return ethcrypto.PubkeyToAddress(s.PublicKey)
}

// HexPrivateKey returns the raw key bytes. Handle with care.
func (s *Signer) HexPrivateKey() types.HexBytes {
	return types.HexBytes(ethcrypto.FromECDSA(s.PrivateKey()))
}

// Wiped reports whether Wipe has been called.
func (s *Signer) Wiped() bool {
	return s.D == nil || s.D.Sign() == 0
}

// Wipe zeroes the private scalar. The signer cannot sign afterwards, the
// address is kept.
func (s *Signer) Wipe() {
	if s.D == nil {
		return
	}
	words := s.D.Bits()
	for i := range words {
		words[i] = 0
	}
	s.D.SetInt64(0)
}

// Sign signs msg with the Ethereum message prefix. The recovery byte is 27
// or 28, as expected by ecrecover.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	if s.Wiped() {
		return nil, ErrWiped
	}
	sig, err := ethcrypto.Sign(HashMessage(msg), s.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// AddrFromSignature recovers the address that signed msg.
func AddrFromSignature(msg, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(signature))
	}
	sig := bytes.Clone(signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := ethcrypto.SigToPub(HashMessage(msg), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("could not recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// HashMessage hashes data with the Ethereum signed message prefix.
func HashMessage(data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%d%s", SigningPrefix, len(data), data)
	return ethcrypto.Keccak256(buf.Bytes())
}
