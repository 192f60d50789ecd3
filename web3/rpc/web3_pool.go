package rpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/Rdilshan/e-voting-web-sub000/log"
)

// Web3Pool groups web3 endpoints by chain ID. Each chain has its own
// Web3Iterator so a failing endpoint can be disabled without affecting the
// rest of the chain's endpoints.
type Web3Pool struct {
	endpoints map[uint64]*Web3Iterator
	mtx       sync.RWMutex
}

// NewWeb3Pool creates an empty pool.
func NewWeb3Pool() *Web3Pool {
	return &Web3Pool{
		endpoints: make(map[uint64]*Web3Iterator),
	}
}

// AddEndpoint dials the given URI, asks it for its chain ID and registers it
// in the pool under that chain. It returns the chain ID of the endpoint.
func (w3p *Web3Pool) AddEndpoint(ctx context.Context, uri string) (uint64, error) {
	internalCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rpcClient, err := gethrpc.DialContext(internalCtx, uri)
	if err != nil {
		return 0, fmt.Errorf("error dialing web3 provider %s: %w", uri, err)
	}
	client := ethclient.NewClient(rpcClient)
	bChainID, err := client.ChainID(internalCtx)
	if err != nil {
		client.Close()
		return 0, fmt.Errorf("error getting chain ID from %s: %w", uri, err)
	}
	chainID := bChainID.Uint64()
	endpoint := &Web3Endpoint{
		ChainID: chainID,
		URI:     uri,
		client:  client,
	}

	w3p.mtx.Lock()
	defer w3p.mtx.Unlock()
	if iter, ok := w3p.endpoints[chainID]; ok {
		iter.Add(endpoint)
	} else {
		w3p.endpoints[chainID] = NewWeb3Iterator(endpoint)
	}
	log.Debugw("web3 endpoint added", "chainID", chainID, "uri", uri)
	return chainID, nil
}

// Endpoint returns the next endpoint for the chain in round-robin order.
func (w3p *Web3Pool) Endpoint(chainID uint64) (*Web3Endpoint, error) {
	w3p.mtx.RLock()
	iter, ok := w3p.endpoints[chainID]
	w3p.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no endpoints for chainID %d", chainID)
	}
	return iter.Next()
}

// DisableEndpoint takes the endpoint out of the rotation of its chain until
// its cooldown expires. Unknown chains or URIs are ignored.
func (w3p *Web3Pool) DisableEndpoint(chainID uint64, uri string) {
	w3p.mtx.RLock()
	iter, ok := w3p.endpoints[chainID]
	w3p.mtx.RUnlock()
	if !ok {
		return
	}
	iter.Disable(uri)
}

// NumberOfEndpoints returns the number of endpoints registered for the
// chain. If onlyAvailable is set, disabled endpoints are not counted.
func (w3p *Web3Pool) NumberOfEndpoints(chainID uint64, onlyAvailable bool) int {
	w3p.mtx.RLock()
	iter, ok := w3p.endpoints[chainID]
	w3p.mtx.RUnlock()
	if !ok {
		return 0
	}
	if onlyAvailable {
		return iter.Available()
	}
	return iter.Available() + iter.Disabled()
}

// Client returns a Client bound to the chain. It fails if the pool has no
// endpoint for it.
func (w3p *Web3Pool) Client(chainID uint64) (*Client, error) {
	w3p.mtx.RLock()
	_, ok := w3p.endpoints[chainID]
	w3p.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no endpoints for chainID %d", chainID)
	}
	return &Client{w3p: w3p, chainID: chainID}, nil
}

// Close closes every connection of the pool.
func (w3p *Web3Pool) Close() {
	w3p.mtx.Lock()
	defer w3p.mtx.Unlock()
	for _, iter := range w3p.endpoints {
		iter.each(func(e *Web3Endpoint) {
			if e.client != nil {
				e.client.Close()
			}
		})
	}
	w3p.endpoints = make(map[uint64]*Web3Iterator)
}
