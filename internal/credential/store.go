// Package credential hashes and verifies passwords.
//
// bcrypt is deliberately slow, so every hash or compare runs under a weighted
// semaphore sized to the configured worker count. Request goroutines queue on
// the semaphore instead of saturating every CPU at once.
package credential

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"go-org-access/internal/model"
)

// dummyPassword feeds the hash used to keep unknown-account logins as slow as
// real ones.
const dummyPassword = "unknown-account-placeholder"

type Options struct {
	Cost      int
	MinLength int
	Workers   int
	// OnHash, when set, receives the duration of every bcrypt operation.
	OnHash func(time.Duration)
}

type Store struct {
	cost      int
	minLength int
	workers   *semaphore.Weighted
	onHash    func(time.Duration)

	dummyOnce sync.Once
	dummyHash []byte
}

func NewStore(opts Options) *Store {
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	return &Store{
		cost:      opts.Cost,
		minLength: opts.MinLength,
		workers:   semaphore.NewWeighted(int64(opts.Workers)),
		onHash:    opts.OnHash,
	}
}

func (s *Store) MinLength() int {
	return s.minLength
}

// Validate checks the password policy. It does not hash.
func (s *Store) Validate(plain string) error {
	if len(plain) < s.minLength {
		return fmt.Errorf("%w: password must be at least %d characters", model.ErrInvalidInput, s.minLength)
	}
	if len(plain) > 72 {
		return fmt.Errorf("%w: password must be at most 72 bytes", model.ErrInvalidInput)
	}
	return nil
}

// Hash derives a salted bcrypt hash of plain.
func (s *Store) Hash(ctx context.Context, plain string) (string, error) {
	var hash []byte
	err := s.run(ctx, func() error {
		var genErr error
		hash, genErr = bcrypt.GenerateFromPassword([]byte(plain), s.cost)
		return genErr
	})
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password must be at most 72 bytes", model.ErrInvalidInput)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plain matches storedHash. A malformed hash or a
// cancelled context counts as a mismatch.
func (s *Store) Verify(ctx context.Context, plain string, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	err := s.run(ctx, func() error {
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain))
	})
	return err == nil
}

// VerifyDummy spends the same work as Verify against a hash nobody owns.
// Login calls it when the email is unknown.
func (s *Store) VerifyDummy(ctx context.Context, plain string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(dummyPassword), s.cost)
	})
	_ = s.run(ctx, func() error {
		return bcrypt.CompareHashAndPassword(s.dummyHash, []byte(plain))
	})
}

func (s *Store) run(ctx context.Context, fn func() error) error {
	if err := s.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.workers.Release(1)

	started := time.Now()
	err := fn()
	if s.onHash != nil {
		s.onHash(time.Since(started))
	}
	return err
}
