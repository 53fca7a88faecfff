package advisor

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"botica/backend/internal/cache"
	"botica/backend/internal/domain"
)

// Engine turns the current product catalog into a ranked stock advisory:
// what is out of stock, what is running low, and what expires soon.
type Engine struct {
	cache    cache.AdvisoryCache
	cacheTTL time.Duration
}

func NewEngine(cacheStore cache.AdvisoryCache, cacheTTL time.Duration) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopAdvisoryCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	return &Engine{
		cache:    cacheStore,
		cacheTTL: cacheTTL,
	}
}

func (e *Engine) Advise(ctx context.Context, products []domain.Product, horizonDays int) domain.StockAdvisory {
	if horizonDays < 1 {
		horizonDays = domain.DefaultExpiryHorizonDays
	}

	now := time.Now().UTC()

	cacheKey := buildCacheKey(products, horizonDays)
	if cached, ok, err := e.cache.Get(ctx, cacheKey); err == nil && ok {
		return *cached
	}

	horizon := now.AddDate(0, 0, horizonDays)
	alerts := make([]domain.StockAlert, 0)

	for _, product := range products {
		reorder := product.ReorderLevel
		if reorder < 1 {
			reorder = domain.DefaultReorderLevel
		}

		switch {
		case product.Stock <= 0:
			alerts = append(alerts, domain.StockAlert{
				ProductID:    product.ID,
				Name:         product.Name,
				Code:         domain.AlertOutOfStock,
				Severity:     domain.SeverityCritical,
				Stock:        product.Stock,
				ReorderLevel: reorder,
			})
		case product.Stock <= reorder:
			severity := domain.SeverityWarning
			if product.Stock*2 <= reorder {
				severity = domain.SeverityCritical
			}
			alerts = append(alerts, domain.StockAlert{
				ProductID:    product.ID,
				Name:         product.Name,
				Code:         domain.AlertLowStock,
				Severity:     severity,
				Stock:        product.Stock,
				ReorderLevel: reorder,
			})
		}

		if product.ExpiryDate == nil {
			continue
		}
		expiry := product.ExpiryDate.UTC()
		daysLeft := int(expiry.Sub(now).Hours() / 24)

		switch {
		case expiry.Before(now):
			alerts = append(alerts, domain.StockAlert{
				ProductID:    product.ID,
				Name:         product.Name,
				Code:         domain.AlertExpired,
				Severity:     domain.SeverityCritical,
				Stock:        product.Stock,
				ReorderLevel: reorder,
				ExpiryDate:   expiry.Format("2006-01-02"),
				DaysToExpiry: daysLeft,
			})
		case !expiry.After(horizon):
			severity := domain.SeverityWarning
			if daysLeft <= 7 {
				severity = domain.SeverityCritical
			}
			alerts = append(alerts, domain.StockAlert{
				ProductID:    product.ID,
				Name:         product.Name,
				Code:         domain.AlertNearExpiry,
				Severity:     severity,
				Stock:        product.Stock,
				ReorderLevel: reorder,
				ExpiryDate:   expiry.Format("2006-01-02"),
				DaysToExpiry: daysLeft,
			})
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity != alerts[j].Severity {
			return alerts[i].Severity == domain.SeverityCritical
		}
		if alerts[i].Code != alerts[j].Code {
			return alertRank(alerts[i].Code) < alertRank(alerts[j].Code)
		}
		return alerts[i].Name < alerts[j].Name
	})

	advisory := domain.StockAdvisory{
		GeneratedAt: now.Format(time.RFC3339),
		HorizonDays: horizonDays,
		Alerts:      alerts,
	}

	_ = e.cache.Set(ctx, cacheKey, &advisory, e.cacheTTL)
	return advisory
}

func alertRank(code string) int {
	switch code {
	case domain.AlertExpired:
		return 0
	case domain.AlertOutOfStock:
		return 1
	case domain.AlertNearExpiry:
		return 2
	case domain.AlertLowStock:
		return 3
	}
	return 4
}

func buildCacheKey(products []domain.Product, horizonDays int) string {
	parts := make([]string, 0, len(products)+1)
	parts = append(parts, fmt.Sprintf("h:%d", horizonDays))
	for _, product := range products {
		expiry := ""
		if product.ExpiryDate != nil {
			expiry = product.ExpiryDate.UTC().Format("2006-01-02")
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d:%s", product.ID, product.Stock, product.ReorderLevel, expiry))
	}

	hash := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "botica:advisory:" + hex.EncodeToString(hash[:])
}
