package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/Rdilshan/e-voting-web-sub000/log"
)

const (
	// endpointRetries is the number of attempts on one endpoint before the
	// client moves to the next one.
	endpointRetries = 2
	// endpointRetrySleep is the pause between attempts on the same endpoint.
	endpointRetrySleep = 200 * time.Millisecond
)

var defaultTimeout = 5 * time.Second

// permanentErrorPatterns are error fragments for which switching endpoints
// makes no sense: every provider will answer the same.
var permanentErrorPatterns = []string{
	"execution reverted",
	"already registered",
	"insufficient funds",
}

// IsPermanentError reports whether err is a contract-level rejection that
// no retry or endpoint switch can fix.
func IsPermanentError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range permanentErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Client implements bind.ContractBackend and bind.DeployBackend over the
// endpoints of one chain of a Web3Pool. Each call is tried on the current
// endpoint and then on the following ones until it succeeds, fails with a
// permanent error, or every endpoint has failed.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// ChainID returns the chain ID the client is bound to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// failover runs fn against the endpoints of the client's chain. It retries
// endpointRetries times on an endpoint, then disables it and moves on.
// Permanent errors and transient ones (rate limits) are returned straight
// away: the first cannot be fixed and the second is the caller's RetryPolicy
// business.
func failover[T any](ctx context.Context, c *Client, fn func(context.Context, *Web3Endpoint) (T, error)) (T, error) {
	var zero T
	total := c.w3p.NumberOfEndpoints(c.chainID, false)
	if total == 0 {
		return zero, fmt.Errorf("no endpoints available for chainID %d", c.chainID)
	}

	tried := make(map[string]struct{}, total)
	var lastErr error
	for switches := 0; switches < total; switches++ {
		endpoint, err := c.w3p.Endpoint(c.chainID)
		if err != nil {
			return zero, fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
		}
		if _, ok := tried[endpoint.URI]; ok {
			break
		}
		tried[endpoint.URI] = struct{}{}

		for attempt := range endpointRetries {
			res, err := fn(ctx, endpoint)
			if err == nil {
				if switches > 0 {
					log.Infow("rpc call succeeded after endpoint switch",
						"chainID", c.chainID,
						"uri", endpoint.URI,
						"switches", switches)
				}
				return res, nil
			}
			lastErr = err
			if IsPermanentError(err) || IsTransientError(err) || ctx.Err() != nil {
				return zero, err
			}
			if attempt < endpointRetries-1 {
				select {
				case <-ctx.Done():
					return zero, ctx.Err()
				case <-time.After(endpointRetrySleep):
				}
			}
		}

		log.Warnw("endpoint failed, switching to next",
			"chainID", c.chainID,
			"uri", endpoint.URI,
			"error", ErrorDetails(lastErr))
		c.w3p.DisableEndpoint(c.chainID, endpoint.URI)
	}
	return zero, fmt.Errorf("all endpoints failed for chainID %d: %w", c.chainID, lastErr)
}

// withTimeout bounds a single endpoint call.
func withTimeout[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	internalCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return call(internalCtx)
}

// CodeAt returns the code of the given account.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) ([]byte, error) {
		return withTimeout(ctx, func(ctx context.Context) ([]byte, error) {
			return e.client.CodeAt(ctx, account, blockNumber)
		})
	})
}

// CallContract executes a message call.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) ([]byte, error) {
		return withTimeout(ctx, func(ctx context.Context) ([]byte, error) {
			return e.client.CallContract(ctx, call, blockNumber)
		})
	})
}

// EstimateGas estimates the gas needed by msg.
func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (uint64, error) {
		return withTimeout(ctx, func(ctx context.Context) (uint64, error) {
			return e.client.EstimateGas(ctx, msg)
		})
	})
}

// FilterLogs runs a log filter query.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) ([]gethtypes.Log, error) {
		return withTimeout(ctx, func(ctx context.Context) ([]gethtypes.Log, error) {
			return e.client.FilterLogs(ctx, query)
		})
	})
}

// SubscribeFilterLogs subscribes to log events. The subscription is bound
// to a single endpoint.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery,
	ch chan<- gethtypes.Log,
) (ethereum.Subscription, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (ethereum.Subscription, error) {
		return e.client.SubscribeFilterLogs(ctx, query, ch)
	})
}

// HeaderByNumber returns a block header, the latest one if number is nil.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (*gethtypes.Header, error) {
		return withTimeout(ctx, func(ctx context.Context) (*gethtypes.Header, error) {
			return e.client.HeaderByNumber(ctx, number)
		})
	})
}

// PendingCodeAt returns the code of the account in the pending state.
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) ([]byte, error) {
		return withTimeout(ctx, func(ctx context.Context) ([]byte, error) {
			return e.client.PendingCodeAt(ctx, account)
		})
	})
}

// PendingNonceAt returns the next nonce of the account.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (uint64, error) {
		return withTimeout(ctx, func(ctx context.Context) (uint64, error) {
			return e.client.PendingNonceAt(ctx, account)
		})
	})
}

// SuggestGasPrice returns the suggested legacy gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (*big.Int, error) {
		return withTimeout(ctx, e.client.SuggestGasPrice)
	})
}

// SuggestGasTipCap returns the suggested priority fee.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (*big.Int, error) {
		return withTimeout(ctx, e.client.SuggestGasTipCap)
	})
}

// SendTransaction broadcasts a signed transaction. A provider that already
// knows the transaction counts as success.
func (c *Client) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	_, err := failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (struct{}, error) {
		return withTimeout(ctx, func(ctx context.Context) (struct{}, error) {
			err := e.client.SendTransaction(ctx, tx)
			if err != nil && strings.Contains(strings.ToLower(err.Error()), "already known") {
				return struct{}{}, nil
			}
			return struct{}{}, err
		})
	})
	return err
}

// TransactionReceipt returns the receipt of a mined transaction, or
// ethereum.NotFound if it is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	endpoint, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
	}
	// not found is the expected answer while pending, do not fail over on it
	return withTimeout(ctx, func(ctx context.Context) (*gethtypes.Receipt, error) {
		return endpoint.client.TransactionReceipt(ctx, txHash)
	})
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (uint64, error) {
		return withTimeout(ctx, e.client.BlockNumber)
	})
}

// BalanceAt returns the balance of the account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return failover(ctx, c, func(ctx context.Context, e *Web3Endpoint) (*big.Int, error) {
		return withTimeout(ctx, func(ctx context.Context) (*big.Int, error) {
			return e.client.BalanceAt(ctx, account, blockNumber)
		})
	})
}

// RPCError is an error returned by a JSON-RPC server.
type RPCError struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    hexutil.Bytes `json:"data"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code: %d, data: %s)", e.Message, e.Code, e.Data.String())
}

// ErrorCode implements gethrpc.Error.
func (e *RPCError) ErrorCode() int {
	return e.Code
}

// ErrorData implements gethrpc.DataError.
func (e *RPCError) ErrorData() any {
	return e.Data
}

// ParseError extracts the JSON-RPC code and data carried by err, if any.
func ParseError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var target *RPCError
	if errors.As(err, &target) {
		return target
	}

	out := &RPCError{Message: err.Error()}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		out.Code = rpcErr.ErrorCode()
	}
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		switch v := dataErr.ErrorData().(type) {
		case hexutil.Bytes:
			out.Data = v
		case []byte:
			out.Data = hexutil.Bytes(v)
		case string:
			if b, derr := hexutil.Decode(v); derr == nil {
				out.Data = hexutil.Bytes(b)
			}
		}
	}
	return out
}

// ErrorDetails renders err followed by its JSON-RPC code and data, when the
// error carries them.
func ErrorDetails(err error) string {
	e := ParseError(err)
	if e == nil {
		return ""
	}
	if e.Code == 0 && len(e.Data) == 0 {
		return err.Error()
	}
	return fmt.Sprintf("%v (code: %d, data: %s)", err, e.Code, e.Data.String())
}
