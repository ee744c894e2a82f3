package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hubert-samek05/rezerwacja24-sub006/internal/domain"
)

const policyKeyPrefix = "deposit-policy:"

// PolicyCache keeps per-tenant deposit policies in Redis so booking-creation
// reads do not hit Postgres every time. A nil client disables caching.
type PolicyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPolicyCache(client *redis.Client, ttl time.Duration) *PolicyCache {
	return &PolicyCache{client: client, ttl: ttl}
}

// Get returns the cached policy, or nil on a miss.
func (c *PolicyCache) Get(ctx context.Context, tenantID string) (*domain.DepositPolicy, error) {
	if c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, policyKeyPrefix+tenantID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("policy cache get: %w", err)
	}

	var p domain.DepositPolicy
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("policy cache decode: %w", err)
	}
	return &p, nil
}

func (c *PolicyCache) Set(ctx context.Context, p domain.DepositPolicy) error {
	if c.client == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("policy cache encode: %w", err)
	}
	if err := c.client.Set(ctx, policyKeyPrefix+p.TenantID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("policy cache set: %w", err)
	}
	return nil
}

func (c *PolicyCache) Invalidate(ctx context.Context, tenantID string) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, policyKeyPrefix+tenantID).Err(); err != nil {
		return fmt.Errorf("policy cache invalidate: %w", err)
	}
	return nil
}
