package registry

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Rdilshan/e-voting-web-sub000/crypto/signatures/ethereum"
)

// Wallet is a freshly minted voter wallet. The private key only lives for
// the duration of a provisioning run and is dropped with Wipe. Neither
// String nor MarshalJSON expose it.
type Wallet struct {
	signer *ethereum.Signer
}

// NewWallet generates a wallet from a fresh secp256k1 key.
func NewWallet() (*Wallet, error) {
	s, err := ethereum.NewSigner()
	if err != nil {
		return nil, fmt.Errorf("could not generate wallet: %w", err)
	}
	return &Wallet{signer: s}, nil
}

// Address returns the wallet address.
func (w *Wallet) Address() common.Address {
	return w.signer.Address()
}

// Signer returns the underlying signer or ethereum.ErrWiped once the key
// has been dropped.
func (w *Wallet) Signer() (*ethereum.Signer, error) {
	if w.signer.Wiped() {
		return nil, ethereum.ErrWiped
	}
	return w.signer, nil
}

// Wipe zeroes the private key. The address stays readable.
func (w *Wallet) Wipe() {
	w.signer.Wipe()
}

// Wiped reports whether Wipe has been called.
func (w *Wallet) Wiped() bool {
	return w.signer.Wiped()
}

func (w *Wallet) String() string {
	return w.Address().Hex()
}

// MarshalJSON encodes the address only.
func (w *Wallet) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Address().Hex())
}
