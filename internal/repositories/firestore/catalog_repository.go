package firestore

import (
	"context"
	"fmt"
	"strings"

	fs "cloud.google.com/go/firestore"

	"github.com/aurumcraft/api/internal/domain"
	platformfs "github.com/aurumcraft/api/internal/platform/firestore"
	"github.com/aurumcraft/api/internal/repositories"
)

const (
	metalTypesCollection = "metalTypes"
	stoneTypesCollection = "stoneTypes"
)

type metalTypeDoc struct {
	Name                 string  `firestore:"name"`
	PurityFactor         float64 `firestore:"purityFactor"`
	TypeMultiplier       float64 `firestore:"typeMultiplier"`
	PriceModifierPercent float64 `firestore:"priceModifierPercent"`
	Active               bool    `firestore:"active"`
}

type stoneTypeDoc struct {
	Name          string  `firestore:"name"`
	Category      string  `firestore:"category"`
	PricePerCarat float64 `firestore:"pricePerCarat"`
	Active        bool    `firestore:"active"`
}

// CatalogRepository reads metal and stone catalog rows from Firestore.
type CatalogRepository struct {
	metals *platformfs.BaseRepository[metalTypeDoc]
	stones *platformfs.BaseRepository[stoneTypeDoc]
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// NewCatalogRepository constructs the repository on the shared provider.
func NewCatalogRepository(provider *platformfs.Provider) *CatalogRepository {
	return &CatalogRepository{
		metals: platformfs.NewBaseRepository[metalTypeDoc](provider, metalTypesCollection),
		stones: platformfs.NewBaseRepository[stoneTypeDoc](provider, stoneTypesCollection),
	}
}

// GetMetalType fetches a single metal type by document ID.
func (r *CatalogRepository) GetMetalType(ctx context.Context, id string) (domain.MetalType, error) {
	doc, err := r.metals.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.MetalType{}, err
	}
	metal := metalFromDoc(doc.ID, doc.Data)
	if err := validateMetal(metal); err != nil {
		return domain.MetalType{}, err
	}
	return metal, nil
}

// ListMetalTypes returns all active metal types ordered by name.
func (r *CatalogRepository) ListMetalTypes(ctx context.Context) ([]domain.MetalType, error) {
	docs, err := r.metals.Query(ctx, func(q fs.Query) fs.Query {
		return q.Where("active", "==", true).OrderBy("name", fs.Asc)
	})
	if err != nil {
		return nil, err
	}
	metals := make([]domain.MetalType, 0, len(docs))
	for _, doc := range docs {
		metal := metalFromDoc(doc.ID, doc.Data)
		if err := validateMetal(metal); err != nil {
			return nil, err
		}
		metals = append(metals, metal)
	}
	return metals, nil
}

// GetStoneType fetches a single stone type by document ID.
func (r *CatalogRepository) GetStoneType(ctx context.Context, id string) (domain.StoneType, error) {
	doc, err := r.stones.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.StoneType{}, err
	}
	stone := stoneFromDoc(doc.ID, doc.Data)
	if err := validateStone(stone); err != nil {
		return domain.StoneType{}, err
	}
	return stone, nil
}

// ListStoneTypes returns all active stone types ordered by name.
func (r *CatalogRepository) ListStoneTypes(ctx context.Context) ([]domain.StoneType, error) {
	docs, err := r.stones.Query(ctx, func(q fs.Query) fs.Query {
		return q.Where("active", "==", true).OrderBy("name", fs.Asc)
	})
	if err != nil {
		return nil, err
	}
	stones := make([]domain.StoneType, 0, len(docs))
	for _, doc := range docs {
		stone := stoneFromDoc(doc.ID, doc.Data)
		if err := validateStone(stone); err != nil {
			return nil, err
		}
		stones = append(stones, stone)
	}
	return stones, nil
}

func metalFromDoc(id string, doc metalTypeDoc) domain.MetalType {
	return domain.MetalType{
		ID:                   id,
		Name:                 doc.Name,
		PurityFactor:         doc.PurityFactor,
		TypeMultiplier:       doc.TypeMultiplier,
		PriceModifierPercent: doc.PriceModifierPercent,
		Active:               doc.Active,
	}
}

func stoneFromDoc(id string, doc stoneTypeDoc) domain.StoneType {
	return domain.StoneType{
		ID:            id,
		Name:          doc.Name,
		Category:      doc.Category,
		PricePerCarat: doc.PricePerCarat,
		Active:        doc.Active,
	}
}

func validateMetal(metal domain.MetalType) error {
	if strings.TrimSpace(metal.Name) == "" {
		return fmt.Errorf("catalog: metal type %s has no name", metal.ID)
	}
	purity, multiplier := metal.Factors()
	if purity <= 0 || multiplier <= 0 {
		return fmt.Errorf("catalog: metal type %s has non-positive factors", metal.ID)
	}
	return nil
}

func validateStone(stone domain.StoneType) error {
	if strings.TrimSpace(stone.Name) == "" {
		return fmt.Errorf("catalog: stone type %s has no name", stone.ID)
	}
	if stone.PricePerCarat < 0 {
		return fmt.Errorf("catalog: stone type %s has negative price per carat", stone.ID)
	}
	return nil
}
