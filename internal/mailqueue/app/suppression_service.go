package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openpress/mailout/internal/mailqueue/domain"
	"github.com/openpress/mailout/internal/platform/cache"
)

const suppressionCachePrefix = "optout:"

// SuppressionService answers and mutates the opt-out list. Both mutations
// key off a previously issued message hash rather than a raw address: the
// opt-out link embedded in a past mail is the proof of address ownership,
// so no re-authentication is needed.
type SuppressionService struct {
	suppressions domain.SuppressionRepository
	ledger       domain.LedgerRepository
	cache        cache.Cache // optional
	logger       *slog.Logger
}

func NewSuppressionService(
	suppressions domain.SuppressionRepository,
	ledger domain.LedgerRepository,
	c cache.Cache,
	logger *slog.Logger,
) *SuppressionService {
	return &SuppressionService{
		suppressions: suppressions,
		ledger:       ledger,
		cache:        c,
		logger:       logger.With("service", "suppression"),
	}
}

// IsSuppressed reports whether the address has opted out. Lookups are cached
// per address; mutations invalidate the entry write-through.
func (s *SuppressionService) IsSuppressed(ctx context.Context, address string) (bool, error) {
	key := suppressionCachePrefix + address
	if s.cache != nil {
		if val, ok, err := s.cache.GetBool(ctx, key); err == nil && ok {
			return val, nil
		} else if err != nil {
			s.logger.WarnContext(ctx, "Suppression cache read failed, falling through", "error", err)
		}
	}

	suppressed, err := s.suppressions.Contains(ctx, address)
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		if err := s.cache.SetBool(ctx, key, suppressed); err != nil {
			s.logger.WarnContext(ctx, "Suppression cache write failed", "error", err)
		}
	}
	return suppressed, nil
}

// Suppress resolves the hash to its original recipient via the ledger and
// adds that address to the opt-out list. added is false when the address was
// already suppressed; an unresolvable hash yields ("", false, nil), a silent
// no-op rather than an error.
func (s *SuppressionService) Suppress(ctx context.Context, messageHash string) (string, bool, error) {
	address, err := s.ledger.ResolveRecipient(ctx, messageHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	added, err := s.suppressions.Add(ctx, address, messageHash)
	if err != nil {
		return address, false, err
	}
	if err := s.invalidate(ctx, address); err != nil {
		return address, added, err
	}
	return address, added, nil
}

// Unsuppress resolves the hash via the ledger and removes the address from
// the opt-out list. removed is false when it was not present.
func (s *SuppressionService) Unsuppress(ctx context.Context, messageHash string) (string, bool, error) {
	address, err := s.ledger.ResolveRecipient(ctx, messageHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	removed, err := s.suppressions.Remove(ctx, address)
	if err != nil {
		return address, false, err
	}
	if err := s.invalidate(ctx, address); err != nil {
		return address, removed, err
	}
	return address, removed, nil
}

// invalidate drops the cached lookup synchronously with the mutation, before
// any reader can observe the stale value.
func (s *SuppressionService) invalidate(ctx context.Context, address string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, suppressionCachePrefix+address); err != nil {
		return fmt.Errorf("invalidating suppression cache: %w", err)
	}
	return nil
}
