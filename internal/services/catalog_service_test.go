package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aurumcraft/api/internal/domain"
)

type notFoundError struct{ msg string }

func (e *notFoundError) Error() string    { return e.msg }
func (e *notFoundError) IsNotFound() bool { return true }

type unavailableError struct{ msg string }

func (e *unavailableError) Error() string       { return e.msg }
func (e *unavailableError) IsUnavailable() bool { return true }

type fakeCatalogRepo struct {
	metals map[string]domain.MetalType
	stones map[string]domain.StoneType

	listMetalCalls int
	listStoneCalls int
	listErr        error
}

func (f *fakeCatalogRepo) GetMetalType(_ context.Context, id string) (domain.MetalType, error) {
	metal, ok := f.metals[id]
	if !ok {
		return domain.MetalType{}, &notFoundError{msg: "metal " + id}
	}
	return metal, nil
}

func (f *fakeCatalogRepo) ListMetalTypes(context.Context) ([]domain.MetalType, error) {
	f.listMetalCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.MetalType, 0, len(f.metals))
	for _, m := range f.metals {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeCatalogRepo) GetStoneType(_ context.Context, id string) (domain.StoneType, error) {
	stone, ok := f.stones[id]
	if !ok {
		return domain.StoneType{}, &notFoundError{msg: "stone " + id}
	}
	return stone, nil
}

func (f *fakeCatalogRepo) ListStoneTypes(context.Context) ([]domain.StoneType, error) {
	f.listStoneCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.StoneType, 0, len(f.stones))
	for _, s := range f.stones {
		out = append(out, s)
	}
	return out, nil
}

func newTestCatalogService(t *testing.T, repo *fakeCatalogRepo, clock func() time.Time) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Catalog: repo, Clock: clock})
	if err != nil {
		t.Fatalf("NewCatalogService error: %v", err)
	}
	return svc
}

func TestCatalogServiceResolvesActiveMetal(t *testing.T) {
	repo := &fakeCatalogRepo{metals: map[string]domain.MetalType{
		"gold-18k": {ID: "gold-18k", Name: "18K Gold", PurityFactor: 0.75, TypeMultiplier: 1, Active: true},
	}}
	svc := newTestCatalogService(t, repo, nil)

	metal, err := svc.ResolveMetalType(context.Background(), "gold-18k")
	if err != nil {
		t.Fatalf("ResolveMetalType error: %v", err)
	}
	if metal.Name != "18K Gold" {
		t.Fatalf("unexpected metal: %+v", metal)
	}
}

func TestCatalogServiceRejectsInactiveRows(t *testing.T) {
	repo := &fakeCatalogRepo{
		metals: map[string]domain.MetalType{
			"gold-9k": {ID: "gold-9k", Name: "9K Gold", PurityFactor: 0.375, TypeMultiplier: 1, Active: false},
		},
		stones: map[string]domain.StoneType{
			"cz": {ID: "cz", Name: "Cubic Zirconia", PricePerCarat: 500, Active: false},
		},
	}
	svc := newTestCatalogService(t, repo, nil)

	if _, err := svc.ResolveMetalType(context.Background(), "gold-9k"); !errors.Is(err, ErrMetalTypeNotFound) {
		t.Fatalf("expected inactive metal to resolve as not found, got %v", err)
	}
	if _, err := svc.ResolveStoneType(context.Background(), "cz"); !errors.Is(err, ErrStoneTypeNotFound) {
		t.Fatalf("expected inactive stone to resolve as not found, got %v", err)
	}
}

func TestCatalogServiceMapsMissingRowsToNotFound(t *testing.T) {
	svc := newTestCatalogService(t, &fakeCatalogRepo{}, nil)

	if _, err := svc.ResolveMetalType(context.Background(), "missing"); !errors.Is(err, ErrMetalTypeNotFound) {
		t.Fatalf("expected ErrMetalTypeNotFound, got %v", err)
	}
	if _, err := svc.ResolveStoneType(context.Background(), "missing"); !errors.Is(err, ErrStoneTypeNotFound) {
		t.Fatalf("expected ErrStoneTypeNotFound, got %v", err)
	}
	if _, err := svc.ResolveMetalType(context.Background(), "  "); !errors.Is(err, ErrMetalTypeNotFound) {
		t.Fatalf("expected blank id to resolve as not found, got %v", err)
	}
}

func TestCatalogServiceMapsOutagesToUnavailable(t *testing.T) {
	repo := &fakeCatalogRepo{listErr: &unavailableError{msg: "firestore down"}}
	svc := newTestCatalogService(t, repo, nil)

	if _, err := svc.ListMetalTypes(context.Background()); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestCatalogServiceCachesListings(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo := &fakeCatalogRepo{
		metals: map[string]domain.MetalType{
			"gold-18k": {ID: "gold-18k", Name: "18K Gold", Active: true},
		},
		stones: map[string]domain.StoneType{
			"diamond": {ID: "diamond", Name: "Diamond", Active: true},
		},
	}
	svc := newTestCatalogService(t, repo, clock)

	for i := 0; i < 3; i++ {
		if _, err := svc.ListMetalTypes(context.Background()); err != nil {
			t.Fatalf("ListMetalTypes error: %v", err)
		}
		if _, err := svc.ListStoneTypes(context.Background()); err != nil {
			t.Fatalf("ListStoneTypes error: %v", err)
		}
	}
	if repo.listMetalCalls != 1 || repo.listStoneCalls != 1 {
		t.Fatalf("expected one repository list each, got metals=%d stones=%d", repo.listMetalCalls, repo.listStoneCalls)
	}

	// Past the TTL the cache refills.
	now = now.Add(10 * time.Minute)
	if _, err := svc.ListMetalTypes(context.Background()); err != nil {
		t.Fatalf("ListMetalTypes error: %v", err)
	}
	if repo.listMetalCalls != 2 {
		t.Fatalf("expected cache refill after TTL, got %d calls", repo.listMetalCalls)
	}
}
