// Package locks serializes critical sections per contention domain.
package locks

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Domain names a set of critical sections that must never overlap.
type Domain string

const (
	DomainQueue Domain = "queue"
	DomainAuth  Domain = "auth"
)

var ErrUnknownDomain = errors.New("unknown lock domain")

// Service holds one weight-1 semaphore per domain. Waiters are served in
// arrival order, so a bounded number of callers cannot starve.
type Service struct {
	domains map[Domain]*semaphore.Weighted
}

// NewService creates a service for the given domains, or for DomainQueue and
// DomainAuth when none are given.
func NewService(domains ...Domain) *Service {
	if len(domains) == 0 {
		domains = []Domain{DomainQueue, DomainAuth}
	}
	s := &Service{domains: make(map[Domain]*semaphore.Weighted, len(domains))}
	for _, d := range domains {
		s.domains[d] = semaphore.NewWeighted(1)
	}
	return s
}

// Do runs op with exclusive access to domain. The lock is released when op
// returns, fails or panics. A cancelled ctx aborts the wait, not a running op.
func (s *Service) Do(ctx context.Context, domain Domain, op func(ctx context.Context) error) error {
	sem, ok := s.domains[domain]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for %s lock: %w", domain, err)
	}
	defer sem.Release(1)

	return op(ctx)
}

// WithLock is Do for operations that produce a value.
func WithLock[T any](ctx context.Context, s *Service, domain Domain, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := s.Do(ctx, domain, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
