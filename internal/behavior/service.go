// Package behavior maintains per-customer rolling aggregates.
package behavior

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Store is the persistence slice the service needs. Satisfied by
// domain.Repository.
type Store interface {
	GetBehaviorProfile(ctx context.Context, customerID string) (*domain.BehaviorProfile, error)
	SaveBehaviorProfile(ctx context.Context, profile *domain.BehaviorProfile) (*domain.BehaviorProfile, error)
	ComputeRecentAggregates(ctx context.Context, customerID string) (*domain.BehaviorStats, error)
}

// Service fronts profile reads with an optional cache and owns the
// refresh cycle. Aggregates are always recomputed from the transaction
// history; the in-memory profile is never incremented. That is what
// keeps concurrent refreshes for one customer convergent: every writer
// derives its numbers from the history at write time, and the save is
// a single-row upsert.
type Service struct {
	store Store
	cache domain.Cache
	ttl   time.Duration
}

// NewService creates a behavior service. cache may be nil.
func NewService(store Store, cache domain.Cache) *Service {
	return &Service{
		store: store,
		cache: cache,
		ttl:   5 * time.Minute,
	}
}

// Profile returns the customer's behavior profile, reading through the
// cache when one is configured. Returns domain.ErrNotFound when no
// profile exists yet.
func (s *Service) Profile(ctx context.Context, customerID string) (*domain.BehaviorProfile, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	if s.cache != nil {
		cached, err := s.cache.GetProfile(ctx, customerID)
		if err != nil {
			slog.Warn("profile cache read failed", "customer_id", customerID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := s.store.GetBehaviorProfile(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, profile, s.ttl); err != nil {
			slog.Warn("profile cache write failed", "customer_id", customerID, "error", err)
		}
	}

	return profile, nil
}

// Refresh recomputes the profile's aggregates from the authoritative
// transaction history and persists the result with upsert semantics.
// The scored transaction's country seeds usual_country for brand-new
// customers.
func (s *Service) Refresh(ctx context.Context, tx *domain.Transaction, profile *domain.BehaviorProfile) (*domain.BehaviorProfile, error) {
	stats, err := s.store.ComputeRecentAggregates(ctx, tx.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute aggregates: %w", err)
	}

	profile.Refresh(stats, tx.Country)

	saved, err := s.store.SaveBehaviorProfile(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to save behavior profile: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, saved, s.ttl); err != nil {
			slog.Warn("profile cache write failed", "customer_id", saved.CustomerID, "error", err)
		}
	}

	return saved, nil
}

// Invalidate drops a customer's cached profile.
func (s *Service) Invalidate(ctx context.Context, customerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, "profile:"+customerID); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("profile cache invalidation failed", "customer_id", customerID, "error", err)
	}
}
