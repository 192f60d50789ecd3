package web3

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Rdilshan/e-voting-web-sub000/crypto/signatures/ethereum"
	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
)

const (
	// web3QueryTimeout bounds a single contract read.
	web3QueryTimeout = 10 * time.Second
	// DefaultTxTimeout is how long WaitTx waits for a receipt.
	DefaultTxTimeout = 2 * time.Minute
	// receiptPollInterval is the pause between receipt lookups.
	receiptPollInterval = time.Second
)

var (
	// ErrNoSigner is returned by write operations when no account key has
	// been configured.
	ErrNoSigner = errors.New("no private key set")
	// ErrContractsNotLoaded is returned when the contract addresses have not
	// been loaded yet.
	ErrContractsNotLoaded = errors.New("contracts not loaded")
	// ErrTxReverted is returned by WaitTx for a mined but failed transaction.
	ErrTxReverted = errors.New("transaction reverted")
)

// Backend is everything Contracts needs from a chain connection. It is
// satisfied by *rpc.Client.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Addresses contains the addresses of the deployed contracts.
type Addresses struct {
	VoterRegistry common.Address
	Elections     common.Address
}

// ContractABIs holds the parsed ABIs of the contracts.
type ContractABIs struct {
	VoterRegistry *abi.ABI
	Elections     *abi.ABI
}

// Contracts binds the voter registry and election contracts of one chain.
type Contracts struct {
	ChainID            uint64
	ContractsAddresses *Addresses
	ContractABIs       *ContractABIs
	TxTimeout          time.Duration

	web3pool *rpc.Web3Pool
	cli      Backend
	signer   *ethereum.Signer

	registry  *bind.BoundContract
	elections *bind.BoundContract

	// txMtx serializes transactions of the account so that two concurrent
	// sends do not pick the same pending nonce.
	txMtx sync.Mutex
}

// New creates a Contracts instance over the given web3 endpoints. All the
// endpoints must serve the same chain.
func New(ctx context.Context, web3rpcs []string) (*Contracts, error) {
	w3pool := rpc.NewWeb3Pool()
	var chainID *uint64
	for _, uri := range web3rpcs {
		cID, err := w3pool.AddEndpoint(ctx, uri)
		if err != nil {
			log.Warnw("skipping web3 endpoint", "rpc", uri, "error", err)
			continue
		}
		if chainID == nil {
			chainID = &cID
		}
		if *chainID != cID {
			w3pool.Close()
			return nil, fmt.Errorf("web3 endpoints have different chain IDs: %d and %d", *chainID, cID)
		}
	}
	if chainID == nil {
		return nil, fmt.Errorf("no web3 endpoints available")
	}
	cli, err := w3pool.Client(*chainID)
	if err != nil {
		w3pool.Close()
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	qctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	lastBlock, err := cli.BlockNumber(qctx)
	if err != nil {
		w3pool.Close()
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	log.Infow("web3 client initialized",
		"chainID", *chainID,
		"lastBlock", lastBlock,
		"numEndpoints", w3pool.NumberOfEndpoints(*chainID, false))

	c := NewWithBackend(*chainID, cli)
	c.web3pool = w3pool
	return c, nil
}

// NewWithBackend creates a Contracts instance over an existing backend.
func NewWithBackend(chainID uint64, backend Backend) *Contracts {
	return &Contracts{
		ChainID:   chainID,
		TxTimeout: DefaultTxTimeout,
		cli:       backend,
	}
}

// LoadContracts binds the contracts at the given addresses. It checks that
// code is deployed at both of them.
func (c *Contracts) LoadContracts(ctx context.Context, addresses *Addresses) error {
	if addresses == nil {
		return fmt.Errorf("nil contract addresses")
	}
	registryABI, err := abi.JSON(strings.NewReader(VoterRegistryABI))
	if err != nil {
		return fmt.Errorf("failed to parse voter registry ABI: %w", err)
	}
	electionsABI, err := abi.JSON(strings.NewReader(ElectionsABI))
	if err != nil {
		return fmt.Errorf("failed to parse elections ABI: %w", err)
	}

	qctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	for name, addr := range map[string]common.Address{
		"voter registry": addresses.VoterRegistry,
		"elections":      addresses.Elections,
	} {
		if addr == (common.Address{}) {
			return fmt.Errorf("missing %s contract address", name)
		}
		code, err := c.cli.CodeAt(qctx, addr, nil)
		if err != nil {
			return fmt.Errorf("failed to get %s contract code: %w", name, err)
		}
		if len(code) == 0 {
			return fmt.Errorf("no %s contract deployed at %s", name, addr.Hex())
		}
	}

	c.ContractsAddresses = addresses
	c.ContractABIs = &ContractABIs{
		VoterRegistry: &registryABI,
		Elections:     &electionsABI,
	}
	c.registry = bind.NewBoundContract(addresses.VoterRegistry, registryABI, c.cli, c.cli, c.cli)
	c.elections = bind.NewBoundContract(addresses.Elections, electionsABI, c.cli, c.cli, c.cli)
	log.Infow("contracts loaded",
		"voterRegistry", addresses.VoterRegistry.Hex(),
		"elections", addresses.Elections.Hex())
	return nil
}

// Close releases the connections of the web3 pool, if any.
func (c *Contracts) Close() {
	if c.web3pool != nil {
		c.web3pool.Close()
	}
}

// Web3Pool returns the endpoint pool, nil when built over a plain backend.
func (c *Contracts) Web3Pool() *rpc.Web3Pool {
	return c.web3pool
}

// SetAccountPrivateKey sets the key used to sign transactions.
func (c *Contracts) SetAccountPrivateKey(hexPrivKey string) error {
	signer, err := ethereum.NewSignerFromHex(hexPrivKey)
	if err != nil {
		return fmt.Errorf("failed to add private key: %w", err)
	}
	c.signer = signer
	return nil
}

// AccountAddress returns the address of the account used to sign
// transactions.
func (c *Contracts) AccountAddress() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// AccountBalance returns the balance of the signing account.
func (c *Contracts) AccountBalance(ctx context.Context) (*big.Int, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}
	return c.cli.BalanceAt(ctx, c.signer.Address(), nil)
}

// CurrentBlock returns the latest block number.
func (c *Contracts) CurrentBlock(ctx context.Context) (uint64, error) {
	return c.cli.BlockNumber(ctx)
}

// callOpts returns the options for a read.
func (c *Contracts) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

// transact signs and sends a transaction calling method on contract. The
// nonce and fees are filled in by the bound contract from the backend.
func (c *Contracts) transact(ctx context.Context, contract *bind.BoundContract, method string, params ...any) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, ErrNoSigner
	}
	if contract == nil {
		return common.Hash{}, ErrContractsNotLoaded
	}
	auth, err := bind.NewKeyedTransactorWithChainID(c.signer.PrivateKey(), new(big.Int).SetUint64(c.ChainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	c.txMtx.Lock()
	defer c.txMtx.Unlock()
	tx, err := contract.Transact(auth, method, params...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", method, err)
	}
	log.Debugw("transaction sent", "method", method, "hash", tx.Hash().Hex(), "nonce", tx.Nonce())
	return tx.Hash(), nil
}

// CheckTxStatus returns whether the transaction was mined successfully. It
// returns geth.NotFound while the transaction is pending.
func (c *Contracts) CheckTxStatus(ctx context.Context, txHash common.Hash) (bool, error) {
	receipt, err := c.cli.TransactionReceipt(ctx, txHash)
	if err != nil {
		return false, err
	}
	return receipt.Status == gethtypes.ReceiptStatusSuccessful, nil
}

// WaitTx blocks until the transaction has one confirmation. It fails with
// ErrTxReverted if the transaction was mined but failed, and gives up after
// TxTimeout.
func (c *Contracts) WaitTx(ctx context.Context, txHash common.Hash) error {
	timeout := c.TxTimeout
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		ok, err := c.CheckTxStatus(ctx, txHash)
		switch {
		case err == nil && ok:
			return nil
		case err == nil:
			return fmt.Errorf("%w: %s", ErrTxReverted, txHash.Hex())
		case !errors.Is(err, geth.NotFound):
			log.Debugw("failed to get transaction receipt", "hash", txHash.Hex(), "error", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for tx %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
