package cache

import (
	"context"
	"time"

	"botica/backend/internal/domain"
)

type AdvisoryCache interface {
	Get(ctx context.Context, key string) (*domain.StockAdvisory, bool, error)
	Set(ctx context.Context, key string, value *domain.StockAdvisory, ttl time.Duration) error
}

type NoopAdvisoryCache struct{}

func (NoopAdvisoryCache) Get(_ context.Context, _ string) (*domain.StockAdvisory, bool, error) {
	return nil, false, nil
}

func (NoopAdvisoryCache) Set(_ context.Context, _ string, _ *domain.StockAdvisory, _ time.Duration) error {
	return nil
}
