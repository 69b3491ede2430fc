package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/repository/memory"
)

func TestTransactionRollbackRestoresState(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	item := &models.InventoryItem{Name: "Mash", Type: models.ItemFeed, Quantity: 10, Unit: "kg"}
	require.NoError(t, store.InsertInventoryItem(ctx, item))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		loaded, err := store.InventoryItemByID(ctx, item.ID)
		require.NoError(t, err)
		loaded.Quantity = 99
		require.NoError(t, store.UpdateInventoryItem(ctx, loaded))
		require.NoError(t, store.AppendLedger(ctx, &models.FinancialLedger{Amount: 5, Date: "2026-03-10"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	restored, err := store.InventoryItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, restored.Quantity)
	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTransactionCommitIsVisible(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		return store.InsertFlock(ctx, &models.Flock{Name: "Batch A", CurrentCount: 5, Status: models.FlockActive})
	})
	require.NoError(t, err)

	flock, err := store.FlockByName(ctx, "batch a")
	require.NoError(t, err)
	assert.Equal(t, 5, flock.CurrentCount)
}

func TestDuplicateNamesRejected(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.InsertInventoryItem(ctx, &models.InventoryItem{Name: "Mash"}))
	err := store.InsertInventoryItem(ctx, &models.InventoryItem{Name: "MASH"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, store.InsertDaily(ctx, &models.DailyAggregate{Date: "2026-03-10"}))
	err = store.InsertDaily(ctx, &models.DailyAggregate{Date: "2026-03-10"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestLatestDailyBefore(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	for _, date := range []string{"2026-03-01", "2026-03-05", "2026-03-09"} {
		require.NoError(t, store.InsertDaily(ctx, &models.DailyAggregate{Date: date, FlockTotal: len(date)}))
	}

	prior, err := store.LatestDailyBefore(ctx, "2026-03-08")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-05", prior.Date)

	prior, err = store.LatestDailyBefore(ctx, "2026-04-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", prior.Date)

	_, err = store.LatestDailyBefore(ctx, "2026-03-01")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInventoryFilter(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.InsertInventoryItem(ctx, &models.InventoryItem{Name: "Mash", Type: models.ItemFeed, Quantity: 10}))
	require.NoError(t, store.InsertInventoryItem(ctx, &models.InventoryItem{Name: "Empty Mash", Type: models.ItemFeed, Quantity: 0}))
	require.NoError(t, store.InsertInventoryItem(ctx, &models.InventoryItem{Name: "Vaccine", Type: models.ItemMedication, Quantity: 50}))

	feed, err := store.ListInventoryItems(ctx, repository.InventoryFilter{Type: models.ItemFeed, PositiveOnly: true})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "Mash", feed[0].Name)

	all, err := store.ListInventoryItems(ctx, repository.InventoryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListFlocksActiveOnly(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.InsertFlock(ctx, &models.Flock{Name: "Live", CurrentCount: 5, Status: models.FlockActive}))
	require.NoError(t, store.InsertFlock(ctx, &models.Flock{Name: "Sold", CurrentCount: 0, Status: models.FlockSold}))

	active, err := store.ListFlocks(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Live", active[0].Name)
}

func TestSettingsRoundTrip(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	_, err := store.GetSetting(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, store.PutSetting(ctx, "feed_bag_weight", "50"))
	value, err := store.GetSetting(ctx, "feed_bag_weight")
	require.NoError(t, err)
	assert.Equal(t, "50", value)
}
