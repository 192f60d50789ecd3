// Package registry maps voter identifiers to the wallets bound to them in
// the on-chain voter registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/web3"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
)

// DefaultCacheSize is the number of positive resolutions kept in memory.
const DefaultCacheSize = 4096

var (
	// ErrAlreadyRegistered classifies a registration rejected because the
	// identifier is already bound. Register never returns it: the existing
	// binding is returned instead.
	ErrAlreadyRegistered = errors.New("identifier already registered")
	// ErrBindingMismatch means the binding read back from the registry is
	// not the one that was submitted.
	ErrBindingMismatch = errors.New("registry binding mismatch")
	// ErrUnconfirmed means the registration was broadcast but its outcome is
	// unknown: the binding may still land on-chain.
	ErrUnconfirmed = errors.New("registration sent but not confirmed")
)

// Contract is the subset of the registry contract used by the Resolver.
// *web3.Contracts implements it.
type Contract interface {
	WalletByIdentifier(ctx context.Context, identifier string) (common.Address, error)
	RegisterWallet(ctx context.Context, identifier string, wallet common.Address) (common.Hash, error)
	WaitTx(ctx context.Context, txHash common.Hash) error
}

// Resolution is the outcome of a registry lookup.
type Resolution struct {
	Identifier string         `json:"identifier"`
	Registered bool           `json:"registered"`
	Wallet     common.Address `json:"wallet"`
}

// Registration is the outcome of a successful registration. TxHash is empty
// when the identifier was already registered and no transaction was mined.
type Registration struct {
	Identifier        string         `json:"identifier"`
	TxHash            common.Hash    `json:"txHash"`
	Wallet            common.Address `json:"wallet"`
	AlreadyRegistered bool           `json:"alreadyRegistered"`
}

// Resolver resolves and registers identifiers. Every remote call goes
// through the retry policy. Bindings are immutable, so positive lookups are
// cached; concurrent lookups of the same identifier share one remote call.
type Resolver struct {
	contract Contract
	policy   rpc.RetryPolicy
	cache    *lru.Cache[string, common.Address]
	inflight singleflight.Group
}

// New returns a Resolver over the given contract. A cacheSize of zero or
// less selects DefaultCacheSize.
func New(contract Contract, policy rpc.RetryPolicy, cacheSize int) (*Resolver, error) {
	if contract == nil {
		return nil, fmt.Errorf("nil registry contract")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, common.Address](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create resolution cache: %w", err)
	}
	return &Resolver{
		contract: contract,
		policy:   policy,
		cache:    cache,
	}, nil
}

// Resolve returns the wallet bound to identifier. The zero address returned
// by the registry means the identifier is not registered.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*Resolution, error) {
	if wallet, ok := r.cache.Get(identifier); ok {
		return &Resolution{Identifier: identifier, Registered: true, Wallet: wallet}, nil
	}
	v, err, _ := r.inflight.Do(identifier, func() (any, error) {
		return r.readBinding(ctx, identifier)
	})
	if err != nil {
		return nil, err
	}
	wallet := v.(common.Address)
	return &Resolution{
		Identifier: identifier,
		Registered: wallet != (common.Address{}),
		Wallet:     wallet,
	}, nil
}

// Register binds wallet to identifier, waits for one confirmation and reads
// the binding back. An identifier that is already registered is not an
// error: the on-chain wallet is returned with AlreadyRegistered set, and it
// may differ from the submitted one.
func (r *Resolver) Register(ctx context.Context, identifier string, wallet common.Address) (*Registration, error) {
	txHash, err := rpc.Retry(ctx, r.policy, func(ctx context.Context) (common.Hash, error) {
		return r.contract.RegisterWallet(ctx, identifier, wallet)
	})
	if err != nil {
		if IsAlreadyRegistered(err) {
			return r.existingBinding(ctx, identifier, wallet)
		}
		return nil, fmt.Errorf("failed to register %s: %w", identifier, err)
	}
	log.Debugw("registration sent", "identifier", identifier, "wallet", wallet.Hex(), "txHash", txHash.Hex())

	if err := r.contract.WaitTx(ctx, txHash); err != nil {
		// a concurrent registration of the same identifier makes ours revert
		if errors.Is(err, web3.ErrTxReverted) {
			if reg, rerr := r.existingBinding(ctx, identifier, wallet); rerr == nil {
				return reg, nil
			}
		}
		if errors.Is(err, web3.ErrTxReverted) {
			return nil, fmt.Errorf("registration of %s not confirmed: %w", identifier, err)
		}
		return nil, fmt.Errorf("%w: %s (tx %s): %w", ErrUnconfirmed, identifier, txHash.Hex(), err)
	}

	onchain, err := r.readBinding(ctx, identifier)
	if err != nil {
		// the transaction succeeded, so the binding exists
		return nil, fmt.Errorf("%w: could not verify registration of %s: %w", ErrUnconfirmed, identifier, err)
	}
	if !sameAddress(onchain, wallet) {
		return nil, fmt.Errorf("%w: %s bound to %s, submitted %s",
			ErrBindingMismatch, identifier, onchain.Hex(), wallet.Hex())
	}
	log.Infow("wallet registered", "identifier", identifier, "wallet", wallet.Hex(), "txHash", txHash.Hex())
	return &Registration{
		Identifier: identifier,
		TxHash:     txHash,
		Wallet:     onchain,
	}, nil
}

// Forget drops a cached resolution.
func (r *Resolver) Forget(identifier string) {
	r.cache.Remove(identifier)
}

// existingBinding reads the binding of an identifier the registry reports
// as registered.
func (r *Resolver) existingBinding(ctx context.Context, identifier string, submitted common.Address) (*Registration, error) {
	onchain, err := r.readBinding(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("could not read existing binding of %s: %w", identifier, err)
	}
	if onchain == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s reported as registered but has no wallet", ErrBindingMismatch, identifier)
	}
	if !sameAddress(onchain, submitted) {
		log.Warnw("identifier already bound to another wallet",
			"identifier", identifier, "wallet", onchain.Hex(), "submitted", submitted.Hex())
	}
	return &Registration{
		Identifier:        identifier,
		Wallet:            onchain,
		AlreadyRegistered: true,
	}, nil
}

// readBinding queries the registry, bypassing the cache, and caches a
// positive answer.
func (r *Resolver) readBinding(ctx context.Context, identifier string) (common.Address, error) {
	wallet, err := rpc.Retry(ctx, r.policy, func(ctx context.Context) (common.Address, error) {
		return r.contract.WalletByIdentifier(ctx, identifier)
	})
	if err != nil {
		return common.Address{}, err
	}
	if wallet != (common.Address{}) {
		r.cache.Add(identifier, wallet)
	}
	return wallet, nil
}

// IsAlreadyRegistered reports whether err is the registry rejecting a
// second binding for the same identifier.
func IsAlreadyRegistered(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAlreadyRegistered) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already registered")
}

func sameAddress(a, b common.Address) bool {
	return strings.EqualFold(a.Hex(), b.Hex())
}
