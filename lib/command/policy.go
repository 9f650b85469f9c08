package command

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/go-i2p/wgadmin/lib/errors"
	"github.com/go-i2p/wgadmin/lib/resilience"
)

// Policy controls retrying and circuit breaking around a Runner.
type Policy struct {
	Retry resilience.RetryConfig
	// Breaker configures one breaker per tool name. A zero
	// FailureThreshold disables circuit breaking.
	Breaker resilience.BreakerConfig
}

// WithPolicy wraps next so that failed invocations are retried and tools
// that keep failing are short-circuited. Non-zero exits that survive all
// retries are returned as an unsuccessful Result, as from next itself.
func WithPolicy(next Runner, p Policy) Runner {
	return &policyRunner{
		next:     next,
		policy:   p,
		breakers: make(map[string]*resilience.Breaker),
	}
}

type policyRunner struct {
	next   Runner
	policy Policy

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

func (r *policyRunner) breaker(name string) *resilience.Breaker {
	if r.policy.Breaker.FailureThreshold <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = resilience.NewBreaker(name, r.policy.Breaker)
		r.breakers[name] = b
	}
	return b
}

func (r *policyRunner) Run(ctx context.Context, cmd Cmd) (Result, error) {
	var last Result
	attempt := func(ctx context.Context) error {
		res, err := r.next.Run(ctx, cmd)
		last = res
		if err != nil {
			return err
		}
		return Check(cmd, res)
	}

	guarded := attempt
	if b := r.breaker(cmd.Name); b != nil {
		guarded = func(ctx context.Context) error {
			return b.Execute(ctx, attempt)
		}
	}

	err := resilience.Retry(ctx, r.policy.Retry, retryable, guarded)
	if err == nil {
		return last, nil
	}
	if errors.Is(err, apperrors.ErrCommandFailed) {
		return last, nil
	}
	return last, err
}

// retryable reports whether a failure may succeed on a later attempt.
func retryable(err error) bool {
	return errors.Is(err, apperrors.ErrCommandFailed) || errors.Is(err, apperrors.ErrCommandUnavailable)
}
