package rpc

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// endpointCooldown is how long a disabled endpoint stays out of rotation.
const endpointCooldown = 5 * time.Minute

var errNoEndpoints = errors.New("no registered endpoints")

// Web3Endpoint is a single web3 provider of a chain.
type Web3Endpoint struct {
	ChainID    uint64 `json:"chainId"`
	URI        string `json:"uri"`
	client     *ethclient.Client
	disabledAt time.Time
}

// Web3Iterator hands out the endpoints of one chain in round-robin order.
// Endpoints that fail are moved aside for endpointCooldown; if every endpoint
// ends up disabled they are all put back, since a flaky provider is better
// than none.
type Web3Iterator struct {
	nextIndex int
	available []*Web3Endpoint
	disabled  []*Web3Endpoint
	mtx       sync.Mutex
}

// NewWeb3Iterator creates an iterator over the given endpoints.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{
		available: append([]*Web3Endpoint{}, endpoints...),
	}
}

// Available returns the number of endpoints in rotation.
func (it *Web3Iterator) Available() int {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	return len(it.available)
}

// Disabled returns the number of endpoints cooling down.
func (it *Web3Iterator) Disabled() int {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	return len(it.disabled)
}

// Add puts new endpoints in rotation.
func (it *Web3Iterator) Add(endpoints ...*Web3Endpoint) {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	it.available = append(it.available, endpoints...)
}

// Next returns the next endpoint in rotation, re-enabling first those whose
// cooldown has expired.
func (it *Web3Iterator) Next() (*Web3Endpoint, error) {
	if it == nil {
		return nil, errNoEndpoints
	}
	it.mtx.Lock()
	defer it.mtx.Unlock()

	it.reenableExpired(time.Now())
	if len(it.available) == 0 {
		return nil, errNoEndpoints
	}
	if it.nextIndex >= len(it.available) {
		it.nextIndex = 0
	}
	current := it.available[it.nextIndex]
	it.nextIndex = (it.nextIndex + 1) % len(it.available)
	return current, nil
}

// reenableExpired must be called with the mutex held.
func (it *Web3Iterator) reenableExpired(now time.Time) {
	if len(it.disabled) == 0 {
		return
	}
	cooling := it.disabled[:0]
	for _, e := range it.disabled {
		if now.Sub(e.disabledAt) >= endpointCooldown {
			e.disabledAt = time.Time{}
			it.available = append(it.available, e)
			continue
		}
		cooling = append(cooling, e)
	}
	it.disabled = cooling
}

// Disable moves the endpoint with the given URI out of rotation. Unknown or
// already disabled URIs are ignored.
func (it *Web3Iterator) Disable(uri string) {
	it.mtx.Lock()
	defer it.mtx.Unlock()

	index := slices.IndexFunc(it.available, func(e *Web3Endpoint) bool { return e.URI == uri })
	if index < 0 {
		return
	}
	e := it.available[index]
	e.disabledAt = time.Now()
	it.available = slices.Delete(it.available, index, index+1)
	it.disabled = append(it.disabled, e)

	// keep pointing at the same following endpoint
	if it.nextIndex > index {
		it.nextIndex--
	}

	if len(it.available) == 0 {
		for _, d := range it.disabled {
			d.disabledAt = time.Time{}
		}
		it.available, it.disabled = it.disabled, nil
		it.nextIndex = 0
		return
	}
	if it.nextIndex >= len(it.available) {
		it.nextIndex = 0
	}
}

// each calls fn for every endpoint, available or not.
func (it *Web3Iterator) each(fn func(*Web3Endpoint)) {
	it.mtx.Lock()
	defer it.mtx.Unlock()
	for _, e := range it.available {
		fn(e)
	}
	for _, e := range it.disabled {
		fn(e)
	}
}
