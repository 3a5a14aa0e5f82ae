package repositories

import (
	"context"
	"errors"

	"github.com/aurumcraft/api/internal/domain"
)

// CatalogRepository reads the admin-managed metal and stone catalogs.
type CatalogRepository interface {
	GetMetalType(ctx context.Context, id string) (domain.MetalType, error)
	ListMetalTypes(ctx context.Context) ([]domain.MetalType, error)
	GetStoneType(ctx context.Context, id string) (domain.StoneType, error)
	ListStoneTypes(ctx context.Context) ([]domain.StoneType, error)
}

// MarketSnapshotRepository persists last-good market data entries so they
// survive restarts.
type MarketSnapshotRepository interface {
	Get(ctx context.Context, key string) (domain.MarketSnapshot, error)
	Put(ctx context.Context, snapshot domain.MarketSnapshot) error
}

// IsNotFound reports whether err represents a missing entity.
func IsNotFound(err error) bool {
	var notFound interface{ IsNotFound() bool }
	return errors.As(err, &notFound) && notFound.IsNotFound()
}

// IsUnavailable reports whether err represents a transient backend outage.
func IsUnavailable(err error) bool {
	var unavailable interface{ IsUnavailable() bool }
	return errors.As(err, &unavailable) && unavailable.IsUnavailable()
}
