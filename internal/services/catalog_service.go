package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aurumcraft/api/internal/domain"
	"github.com/aurumcraft/api/internal/repositories"
)

var (
	// ErrMetalTypeNotFound indicates the metal type id matched no active catalog row.
	ErrMetalTypeNotFound = errors.New("catalog: metal type not found")
	// ErrStoneTypeNotFound indicates the stone type id matched no active catalog row.
	ErrStoneTypeNotFound = errors.New("catalog: stone type not found")
	// ErrCatalogUnavailable indicates a transient catalog backend failure.
	ErrCatalogUnavailable = errors.New("catalog: temporarily unavailable")
)

// CatalogService resolves calculation inputs against the admin catalog.
type CatalogService interface {
	ResolveMetalType(ctx context.Context, id string) (domain.MetalType, error)
	ResolveStoneType(ctx context.Context, id string) (domain.StoneType, error)
	ListMetalTypes(ctx context.Context) ([]domain.MetalType, error)
	ListStoneTypes(ctx context.Context) ([]domain.StoneType, error)
}

// CatalogServiceDeps wires the catalog service collaborators.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
	Clock   func() time.Time
	Logger  func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	catalog repositories.CatalogRepository
	now     func() time.Time
	log     func(ctx context.Context, event string, fields map[string]any)

	// Listings change only through admin deploys; a short cache keeps the
	// hot calculate-price path off Firestore.
	cacheTTL time.Duration

	mu         sync.Mutex
	metalCache listCache[domain.MetalType]
	stoneCache listCache[domain.StoneType]
}

type listCache[T any] struct {
	items     []T
	fetchedAt time.Time
}

const catalogListTTL = 5 * time.Minute

// NewCatalogService constructs the catalog service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("services: catalog repository is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{
		catalog:  deps.Catalog,
		now:      deps.Clock,
		log:      deps.Logger,
		cacheTTL: catalogListTTL,
	}, nil
}

func (s *catalogService) ResolveMetalType(ctx context.Context, id string) (domain.MetalType, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.MetalType{}, ErrMetalTypeNotFound
	}

	metal, err := s.catalog.GetMetalType(ctx, trimmed)
	if err != nil {
		return domain.MetalType{}, s.mapCatalogError(ctx, err, ErrMetalTypeNotFound, trimmed)
	}
	if !metal.Active {
		return domain.MetalType{}, fmt.Errorf("%w: %s", ErrMetalTypeNotFound, trimmed)
	}
	return metal, nil
}

func (s *catalogService) ResolveStoneType(ctx context.Context, id string) (domain.StoneType, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return domain.StoneType{}, ErrStoneTypeNotFound
	}

	stone, err := s.catalog.GetStoneType(ctx, trimmed)
	if err != nil {
		return domain.StoneType{}, s.mapCatalogError(ctx, err, ErrStoneTypeNotFound, trimmed)
	}
	if !stone.Active {
		return domain.StoneType{}, fmt.Errorf("%w: %s", ErrStoneTypeNotFound, trimmed)
	}
	return stone, nil
}

func (s *catalogService) ListMetalTypes(ctx context.Context) ([]domain.MetalType, error) {
	s.mu.Lock()
	items, ok := cachedList(s.metalCache, s.now(), s.cacheTTL)
	s.mu.Unlock()
	if ok {
		return items, nil
	}

	metals, err := s.catalog.ListMetalTypes(ctx)
	if err != nil {
		return nil, s.mapCatalogError(ctx, err, ErrCatalogUnavailable, "")
	}

	s.mu.Lock()
	s.metalCache = listCache[domain.MetalType]{items: metals, fetchedAt: s.now()}
	s.mu.Unlock()
	return metals, nil
}

func (s *catalogService) ListStoneTypes(ctx context.Context) ([]domain.StoneType, error) {
	s.mu.Lock()
	items, ok := cachedList(s.stoneCache, s.now(), s.cacheTTL)
	s.mu.Unlock()
	if ok {
		return items, nil
	}

	stones, err := s.catalog.ListStoneTypes(ctx)
	if err != nil {
		return nil, s.mapCatalogError(ctx, err, ErrCatalogUnavailable, "")
	}

	s.mu.Lock()
	s.stoneCache = listCache[domain.StoneType]{items: stones, fetchedAt: s.now()}
	s.mu.Unlock()
	return stones, nil
}

func (s *catalogService) mapCatalogError(ctx context.Context, err error, notFound error, id string) error {
	switch {
	case repositories.IsNotFound(err):
		return fmt.Errorf("%w: %s", notFound, id)
	case repositories.IsUnavailable(err):
		s.log(ctx, "catalog_unavailable", map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	default:
		return err
	}
}

func cachedList[T any](cache listCache[T], now time.Time, ttl time.Duration) ([]T, bool) {
	if cache.items == nil || now.Sub(cache.fetchedAt) >= ttl {
		return nil, false
	}
	return cache.items, true
}
