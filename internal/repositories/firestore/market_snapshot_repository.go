package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aurumcraft/api/internal/domain"
	platformfs "github.com/aurumcraft/api/internal/platform/firestore"
	"github.com/aurumcraft/api/internal/repositories"
)

const marketSnapshotsCollection = "marketSnapshots"

type marketSnapshotDoc struct {
	Value     float64   `firestore:"value"`
	Source    string    `firestore:"source"`
	FetchedAt time.Time `firestore:"fetchedAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// MarketSnapshotRepository persists last-good market entries keyed by
// provider name ("gold_price", "exchange_rate").
type MarketSnapshotRepository struct {
	snapshots *platformfs.BaseRepository[marketSnapshotDoc]
	now       func() time.Time
}

var _ repositories.MarketSnapshotRepository = (*MarketSnapshotRepository)(nil)

// NewMarketSnapshotRepository constructs the repository on the shared provider.
func NewMarketSnapshotRepository(provider *platformfs.Provider) *MarketSnapshotRepository {
	return &MarketSnapshotRepository{
		snapshots: platformfs.NewBaseRepository[marketSnapshotDoc](provider, marketSnapshotsCollection),
		now:       time.Now,
	}
}

// Get loads the persisted snapshot for the given key.
func (r *MarketSnapshotRepository) Get(ctx context.Context, key string) (domain.MarketSnapshot, error) {
	doc, err := r.snapshots.Get(ctx, strings.TrimSpace(key))
	if err != nil {
		return domain.MarketSnapshot{}, err
	}
	return domain.MarketSnapshot{
		Key:       doc.ID,
		Value:     doc.Data.Value,
		Source:    doc.Data.Source,
		FetchedAt: doc.Data.FetchedAt,
		UpdatedAt: doc.Data.UpdatedAt,
	}, nil
}

// Put upserts the snapshot under its key.
func (r *MarketSnapshotRepository) Put(ctx context.Context, snapshot domain.MarketSnapshot) error {
	key := strings.TrimSpace(snapshot.Key)
	if key == "" {
		return errors.New("marketsnapshots: key is required")
	}
	return r.snapshots.Set(ctx, key, marketSnapshotDoc{
		Value:     snapshot.Value,
		Source:    snapshot.Source,
		FetchedAt: snapshot.FetchedAt,
		UpdatedAt: r.now().UTC(),
	})
}
