package provision

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Rdilshan/e-voting-web-sub000/registry"
	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// State is a step of the provisioning workflow.
type State string

const (
	StateValidating         State = "validating"
	StateResolving          State = "resolving"
	StateRegistering        State = "registering"
	StateBuildingCommitment State = "building_commitment"
	StateSubmitting         State = "submitting"
	StatePersisting         State = "persisting"
	StateDone               State = "done"
	StateAborted            State = "aborted"
)

// Result is the outcome of a provisioning request. Success results end in
// StateDone and carry the election id, transaction hash and root. Aborted
// results carry the state that failed, a message and, when registrations
// failed, one error string per identifier. Unconfirmed lists the wallets
// that may still be bound on-chain after their key was wiped.
type Result struct {
	RunID         string                   `json:"runId"`
	Success       bool                     `json:"success"`
	State         State                    `json:"state"`
	FailedState   State                    `json:"failedState,omitempty"`
	ElectionID    *types.ElectionID        `json:"electionId,omitempty"`
	TxHash        common.Hash              `json:"txHash"`
	Root          common.Hash              `json:"root"`
	Message       string                   `json:"message,omitempty"`
	Errors        []string                 `json:"errors,omitempty"`
	Registrations []*registry.Registration `json:"registrations,omitempty"`
	Unconfirmed   []types.VoterWallet      `json:"unconfirmed,omitempty"`

	err error
}

// Err returns the error that aborted the workflow, nil on success.
func (r *Result) Err() error {
	return r.err
}

func (r *Result) abort(state State, err error, errs ...string) *Result {
	r.Success = false
	r.FailedState = state
	r.State = StateAborted
	r.Message = err.Error()
	r.Errors = append(r.Errors, errs...)
	r.err = err
	return r
}

// Run returns the journal entry of the result.
func (r *Result) Run(title string, started, finished time.Time) *types.ProvisioningRun {
	return &types.ProvisioningRun{
		ID:          r.RunID,
		Title:       title,
		Success:     r.Success,
		State:       string(r.State),
		FailedState: string(r.FailedState),
		ElectionID:  r.ElectionID,
		TxHash:      r.TxHash,
		Root:        r.Root,
		Message:     r.Message,
		Errors:      r.Errors,
		Unconfirmed: r.Unconfirmed,
		StartedAt:   started,
		FinishedAt:  finished,
	}
}
