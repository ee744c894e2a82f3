package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/clock"
	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

type PolicyRepository interface {
	GetPolicy(ctx context.Context, tenantID string) (domain.DepositPolicy, error)
	UpsertPolicy(ctx context.Context, p domain.DepositPolicy) error
}

// PolicyCache is a read-through cache in front of the policy store. All
// methods must tolerate an unavailable backend.
type PolicyCache interface {
	Get(ctx context.Context, tenantID string) (*domain.DepositPolicy, error)
	Set(ctx context.Context, p domain.DepositPolicy) error
	Invalidate(ctx context.Context, tenantID string) error
}

// PolicyService is the settings surface for deposit policies. Writes are
// validated before persistence; reads for the booking flow go through the
// cache and degrade to the store when the cache is unavailable.
type PolicyService struct {
	repo  PolicyRepository
	cache PolicyCache
	clock clock.Clock
}

func NewPolicyService(repo PolicyRepository, cache PolicyCache, clk clock.Clock) *PolicyService {
	return &PolicyService{
		repo:  repo,
		cache: cache,
		clock: clk,
	}
}

// PolicyForTenant resolves the effective policy for deposit evaluation.
func (s *PolicyService) PolicyForTenant(ctx context.Context, tenantID string) (domain.DepositPolicy, error) {
	if tenantID == "" {
		return domain.DepositPolicy{}, domain.ErrInvalidID
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, tenantID)
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("policy cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	p, err := s.repo.GetPolicy(ctx, tenantID)
	if err != nil {
		return domain.DepositPolicy{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("policy cache write failed")
		}
	}
	return p, nil
}

// Get reads the stored configuration, bypassing the cache.
func (s *PolicyService) Get(ctx context.Context, tenantID string) (domain.DepositPolicy, error) {
	if tenantID == "" {
		return domain.DepositPolicy{}, domain.ErrInvalidID
	}
	return s.repo.GetPolicy(ctx, tenantID)
}

// Upsert validates and persists a tenant's policy, then drops the cached copy.
func (s *PolicyService) Upsert(ctx context.Context, p domain.DepositPolicy) error {
	if p.TenantID == "" {
		return domain.ErrInvalidID
	}
	if err := p.Validate(); err != nil {
		return err
	}

	p.UpdatedAt = s.clock.Now()
	if err := s.repo.UpsertPolicy(ctx, p); err != nil {
		return fmt.Errorf("persist deposit policy: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, p.TenantID); err != nil {
			log.Warn().Err(err).Str("tenant_id", p.TenantID).Msg("policy cache invalidation failed")
		}
	}
	return nil
}
