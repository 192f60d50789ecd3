package web3

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// WalletByIdentifier returns the wallet bound to the voter identifier in the
// registry contract. The zero address means the identifier is not
// registered.
func (c *Contracts) WalletByIdentifier(ctx context.Context, identifier string) (common.Address, error) {
	if c.registry == nil {
		return common.Address{}, ErrContractsNotLoaded
	}
	var out []any
	if err := c.registry.Call(c.callOpts(ctx), &out, "getWalletByNIC", identifier); err != nil {
		return common.Address{}, fmt.Errorf("failed to get wallet by identifier: %w", err)
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("unexpected getWalletByNIC output length %d", len(out))
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// RegisterWallet submits the binding between identifier and wallet to the
// registry contract and returns the transaction hash without waiting for it.
func (c *Contracts) RegisterWallet(ctx context.Context, identifier string, wallet common.Address) (common.Hash, error) {
	return c.transact(ctx, c.registry, "registerWallet", identifier, wallet)
}
