// Package mirror defines the off-chain relational copy of provisioned
// elections. The chain is the source of truth: a mirror is a derived cache
// for listing and filtering, and writes to it are best effort.
package mirror

import (
	"context"

	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// Mirror stores elections and their voter wallets keyed by the on-chain
// election id. Both inserts are idempotent.
type Mirror interface {
	InsertElection(ctx context.Context, rec *types.ElectionRecord) error
	InsertVoterWallets(ctx context.Context, electionID types.ElectionID, voters []types.VoterWallet) error
	Close() error
}

// Nop is the Mirror used when no mirror is configured.
type Nop struct{}

var _ Mirror = Nop{}

func (Nop) InsertElection(context.Context, *types.ElectionRecord) error { return nil }

func (Nop) InsertVoterWallets(context.Context, types.ElectionID, []types.VoterWallet) error {
	return nil
}

func (Nop) Close() error { return nil }
