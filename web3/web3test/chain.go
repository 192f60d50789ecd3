// Package web3test provides an in-memory chain that executes the voter
// registry and elections contracts, for tests that need web3.Contracts
// without a node.
package web3test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Rdilshan/e-voting-web-sub000/web3"
)

// ChainID is the chain ID of every simulated chain.
const ChainID = 1337

var (
	// RegistryAddress is where the voter registry lives.
	RegistryAddress = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	// ElectionsAddress is where the elections contract lives.
	ElectionsAddress = common.HexToAddress("0x00000000000000000000000000000000000e1ec7")
	// AdminKey is a funded account allowed to send transactions.
	AdminKey = "8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbd1542c692be63"

	errNotSupported = errors.New("not supported by the simulated chain")
)

// SentTx is a transaction accepted by the chain.
type SentTx struct {
	Hash   common.Hash
	From   common.Address
	Method string
	Args   []any
}

// Chain is a web3.Backend executing the contracts in memory. Hooks allow
// tests to inject failures; they are called with the chain unlocked.
type Chain struct {
	// BeforeCall may fail a read of the given method.
	BeforeCall func(method string, args []any) error
	// BeforeSend may fail the broadcast of a transaction.
	BeforeSend func(method string, args []any) error
	// OnRegister may change the wallet actually stored by registerWallet.
	OnRegister func(identifier string, wallet common.Address) common.Address
	// HoldReceipt, when it returns true, executes the transaction but never
	// serves its receipt, as if it were mined after the caller gave up.
	HoldReceipt func(method string, args []any) bool

	mtx          sync.Mutex
	registryABI  abi.ABI
	electionsABI abi.ABI
	wallets      map[string]common.Address
	elections    []web3.ElectionsElection
	candidates   map[uint64][]web3.ElectionsCandidate
	receipts     map[common.Hash]*gethtypes.Receipt
	held         map[common.Hash]struct{}
	nonces       map[common.Address]uint64
	sent         []SentTx
	block        uint64
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{
		registryABI:  mustABI(web3.VoterRegistryABI),
		electionsABI: mustABI(web3.ElectionsABI),
		wallets:      make(map[string]common.Address),
		candidates:   make(map[uint64][]web3.ElectionsCandidate),
		receipts:     make(map[common.Hash]*gethtypes.Receipt),
		held:         make(map[common.Hash]struct{}),
		nonces:       make(map[common.Address]uint64),
		block:        1,
	}
}

// NewContracts returns web3.Contracts bound to a new chain and signing with
// AdminKey.
func NewContracts(ctx context.Context) (*web3.Contracts, *Chain, error) {
	chain := NewChain()
	contracts := web3.NewWithBackend(ChainID, chain)
	if err := contracts.LoadContracts(ctx, &web3.Addresses{
		VoterRegistry: RegistryAddress,
		Elections:     ElectionsAddress,
	}); err != nil {
		return nil, nil, err
	}
	if err := contracts.SetAccountPrivateKey(AdminKey); err != nil {
		return nil, nil, err
	}
	return contracts, chain, nil
}

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// SetWallet binds identifier to wallet directly, as if registered earlier.
func (c *Chain) SetWallet(identifier string, wallet common.Address) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.wallets[identifier] = wallet
}

// Wallet returns the wallet bound to identifier.
func (c *Chain) Wallet(identifier string) common.Address {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.wallets[identifier]
}

// Sent returns the accepted transactions, in order.
func (c *Chain) Sent() []SentTx {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append([]SentTx(nil), c.sent...)
}

// SentMethod returns the accepted transactions calling method.
func (c *Chain) SentMethod(method string) []SentTx {
	var out []SentTx
	for _, tx := range c.Sent() {
		if tx.Method == method {
			out = append(out, tx)
		}
	}
	return out
}

// ElectionCount returns the number of created elections.
func (c *Chain) ElectionCount() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.elections)
}

// CorruptElection overwrites the stored root of an election.
func (c *Chain) CorruptElection(id uint64, root common.Hash) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if id >= 1 && id <= uint64(len(c.elections)) {
		c.elections[id-1].MerkleRoot = root
	}
}

// decode finds the contract method called by data at address to.
func (c *Chain) decode(to *common.Address, data []byte) (*abi.Method, []any, error) {
	if to == nil || len(data) < 4 {
		return nil, nil, fmt.Errorf("invalid call")
	}
	var contract abi.ABI
	switch *to {
	case RegistryAddress:
		contract = c.registryABI
	case ElectionsAddress:
		contract = c.electionsABI
	default:
		return nil, nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}
	return method, args, nil
}

// check runs the contract requirements of a write, with the mutex held.
func (c *Chain) check(method string, args []any) error {
	switch method {
	case "registerWallet":
		nic := args[0].(string)
		wallet := args[1].(common.Address)
		if wallet == (common.Address{}) {
			return fmt.Errorf("execution reverted: invalid wallet")
		}
		if c.wallets[nic] != (common.Address{}) {
			return fmt.Errorf("execution reverted: NIC already registered")
		}
	case "createElection":
		start := args[2].(*big.Int)
		end := args[3].(*big.Int)
		if start.Cmp(end) >= 0 {
			return fmt.Errorf("execution reverted: invalid election period")
		}
	default:
		return fmt.Errorf("execution reverted: %s is not a write", method)
	}
	return nil
}

// CodeAt implements bind.ContractCaller.
func (c *Chain) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	if account == RegistryAddress || account == ElectionsAddress {
		return []byte{0x60, 0x80, 0x60, 0x40}, nil
	}
	return nil, nil
}

// CallContract implements bind.ContractCaller.
func (c *Chain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, args, err := c.decode(call.To, call.Data)
	if err != nil {
		return nil, err
	}
	if c.BeforeCall != nil {
		if err := c.BeforeCall(method.Name, args); err != nil {
			return nil, err
		}
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	switch method.Name {
	case "getWalletByNIC":
		return method.Outputs.Pack(c.wallets[args[0].(string)])
	case "electionCount":
		return method.Outputs.Pack(big.NewInt(int64(len(c.elections))))
	case "elections":
		e := c.election(args[0].(*big.Int))
		return method.Outputs.Pack(e.Id, e.Title, e.Description, e.StartTime, e.EndTime, e.MerkleRoot, e.Exists)
	case "getElectionData":
		id := args[0].(*big.Int)
		e := c.election(id)
		candidates := c.candidates[id.Uint64()]
		if candidates == nil {
			candidates = []web3.ElectionsCandidate{}
		}
		return method.Outputs.Pack(e, candidates)
	}
	return nil, fmt.Errorf("execution reverted: %s is not a view", method.Name)
}

// election returns the stored election or an empty record.
func (c *Chain) election(id *big.Int) web3.ElectionsElection {
	if id.Sign() > 0 && id.Cmp(big.NewInt(int64(len(c.elections)))) <= 0 {
		return c.elections[id.Uint64()-1]
	}
	return web3.ElectionsElection{
		Id:        new(big.Int),
		StartTime: new(big.Int),
		EndTime:   new(big.Int),
	}
}

// HeaderByNumber implements bind.ContractTransactor.
func (c *Chain) HeaderByNumber(_ context.Context, _ *big.Int) (*gethtypes.Header, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return &gethtypes.Header{
		Number:  new(big.Int).SetUint64(c.block),
		BaseFee: big.NewInt(1_000_000_000),
	}, nil
}

// PendingCodeAt implements bind.ContractTransactor.
func (c *Chain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return c.CodeAt(ctx, account, nil)
}

// PendingNonceAt implements bind.ContractTransactor.
func (c *Chain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.nonces[account], nil
}

// SuggestGasPrice implements bind.ContractTransactor.
func (c *Chain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

// SuggestGasTipCap implements bind.ContractTransactor.
func (c *Chain) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

// EstimateGas implements bind.ContractTransactor. It runs the contract
// requirements, so reverting calls fail here as on a real node.
func (c *Chain) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	method, args, err := c.decode(call.To, call.Data)
	if err != nil {
		return 0, err
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if err := c.check(method.Name, args); err != nil {
		return 0, err
	}
	return 250_000, nil
}

// SendTransaction implements bind.ContractTransactor.
func (c *Chain) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(big.NewInt(ChainID)), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	method, args, err := c.decode(tx.To(), tx.Data())
	if err != nil {
		return err
	}
	if c.BeforeSend != nil {
		if err := c.BeforeSend(method.Name, args); err != nil {
			return err
		}
	}
	onRegister := c.OnRegister
	hold := c.HoldReceipt != nil && c.HoldReceipt(method.Name, args)

	c.mtx.Lock()
	defer c.mtx.Unlock()
	if _, known := c.receipts[tx.Hash()]; known {
		return fmt.Errorf("already known")
	}
	if tx.Nonce() != c.nonces[from] {
		return fmt.Errorf("nonce too low")
	}
	c.nonces[from]++
	c.block++

	status := gethtypes.ReceiptStatusSuccessful
	if err := c.check(method.Name, args); err != nil {
		status = gethtypes.ReceiptStatusFailed
	} else {
		switch method.Name {
		case "registerWallet":
			nic := args[0].(string)
			wallet := args[1].(common.Address)
			if onRegister != nil {
				wallet = onRegister(nic, wallet)
			}
			c.wallets[nic] = wallet
		case "createElection":
			id := uint64(len(c.elections) + 1)
			c.elections = append(c.elections, web3.ElectionsElection{
				Id:          new(big.Int).SetUint64(id),
				Title:       args[0].(string),
				Description: args[1].(string),
				StartTime:   args[2].(*big.Int),
				EndTime:     args[3].(*big.Int),
				MerkleRoot:  args[5].([32]byte),
				Exists:      true,
			})
			c.candidates[id] = *abi.ConvertType(args[4], new([]web3.ElectionsCandidate)).(*[]web3.ElectionsCandidate)
		}
	}
	c.receipts[tx.Hash()] = &gethtypes.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(c.block),
	}
	if hold {
		c.held[tx.Hash()] = struct{}{}
	}
	c.sent = append(c.sent, SentTx{Hash: tx.Hash(), From: from, Method: method.Name, Args: args})
	return nil
}

// FilterLogs implements bind.ContractFilterer. No logs are emitted.
func (c *Chain) FilterLogs(context.Context, ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return nil, nil
}

// SubscribeFilterLogs implements bind.ContractFilterer.
func (c *Chain) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- gethtypes.Log) (ethereum.Subscription, error) {
	return nil, errNotSupported
}

// TransactionReceipt returns the receipt of an accepted transaction.
func (c *Chain) TransactionReceipt(_ context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	receipt, ok := c.receipts[txHash]
	if _, held := c.held[txHash]; !ok || held {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// BlockNumber returns the current block.
func (c *Chain) BlockNumber(context.Context) (uint64, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.block, nil
}

// BalanceAt returns one ether for any account.
func (c *Chain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil), nil
}

// AdminAddress returns the address of AdminKey.
func AdminAddress() common.Address {
	key, err := crypto.HexToECDSA(AdminKey)
	if err != nil {
		panic(err)
	}
	return crypto.PubkeyToAddress(key.PublicKey)
}
