package rpc

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/Rdilshan/e-voting-web-sub000/log"
)

const (
	// DefaultMaxAttempts is the number of times an operation is invoked
	// before a transient error is surfaced.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the wait before the first retry. Each following
	// retry doubles it.
	DefaultBaseDelay = time.Second

	// rateLimitCode is the JSON-RPC error code used by most providers to
	// signal that the request rate has been exceeded.
	rateLimitCode = -32005
)

// ErrBadData signals that the remote endpoint returned an empty or malformed
// response. Wrap it to mark an error as transient.
var ErrBadData = errors.New("bad data returned by remote endpoint")

// transientErrorPatterns are lowercase fragments of error messages that
// identify a transient remote condition.
var transientErrorPatterns = []string{
	"too many requests",
	"rate limit",
	"limit exceeded",
	"request limit",
	"bad data",
	"attempting to unmarshal",
	"length insufficient",
}

// RetryPolicy describes how a remote call is retried. The zero value is
// usable: missing fields take the package defaults.
type RetryPolicy struct {
	// MaxAttempts is the total number of invocations, first call included.
	MaxAttempts int
	// BaseDelay is the wait before the first retry. Retry i (0-based) waits
	// BaseDelay * 2^i, without jitter.
	BaseDelay time.Duration
	// IsTransient classifies errors. Defaults to IsTransientError.
	IsTransient func(error) bool
	// OnRetry, when set, is called before every delayed retry with the
	// 1-based number of the attempt that failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultRetryPolicy returns the policy used for every privileged remote call.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		IsTransient: IsTransientError,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.IsTransient == nil {
		p.IsTransient = IsTransientError
	}
	return p
}

// Delay returns the wait applied after the given failed attempt (0-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	p = p.withDefaults()
	if retry >= 62 {
		return time.Duration(math.MaxInt64)
	}
	d := p.BaseDelay * time.Duration(uint64(1)<<uint(retry))
	if d < p.BaseDelay {
		return time.Duration(math.MaxInt64)
	}
	return d
}

// backOff builds the deterministic exponential schedule of the policy,
// bound to ctx and limited to MaxAttempts-1 retries.
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.BaseDelay),
		backoff.WithRandomizationFactor(0),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(time.Duration(math.MaxInt64)),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
}

// Retry invokes op until it succeeds, fails with a non-transient error or the
// attempt budget is spent. Non-transient errors are returned on their first
// occurrence. On exhaustion the last error is returned. If ctx is done while
// waiting, the context error is returned.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()
	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err == nil {
			return res, nil
		}
		if !policy.IsTransient(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}
	notify := func(err error, wait time.Duration) {
		log.Debugw("retrying transient rpc error",
			"attempt", attempt,
			"wait", wait.String(),
			"error", ErrorDetails(err))
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, wait)
		}
	}
	res, err := backoff.RetryNotifyWithData(operation, policy.backOff(ctx), notify)
	if err != nil {
		var zero T
		return zero, err
	}
	return res, nil
}

// RetryErr is Retry for operations that return only an error.
func RetryErr(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	_, err := Retry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// IsTransientError reports whether err signals a condition that may go away
// on its own: rate limiting or an empty/malformed response. Reverts and any
// other error are fatal.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsPermanentError(err) {
		return false
	}
	if errors.Is(err, ErrBadData) || errors.Is(err, bind.ErrNoCode) {
		return true
	}
	if ParseError(err).Code == rateLimitCode {
		return true
	}
	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
