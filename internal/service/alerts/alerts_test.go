package alerts_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository/memory"
	"github.com/avionyx/farmhand/internal/service/alerts"
	"github.com/avionyx/farmhand/pkg/clients/notify"
)

var testDay = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

type captureNotifier struct {
	sent []notify.Message
}

func (c *captureNotifier) Send(_ context.Context, msg notify.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

func newAlertsHarness() (*alerts.Service, *memory.Store, *captureNotifier) {
	store := memory.NewStore()
	notifier := &captureNotifier{}
	svc := alerts.NewService(store, notifier, nil).WithClock(func() time.Time { return testDay })
	return svc, store, notifier
}

func TestLowFeedAlert(t *testing.T) {
	svc, store, notifier := newAlertsHarness()
	ctx := context.Background()

	require.NoError(t, store.InsertInventoryItem(ctx, &models.InventoryItem{
		Name: "Growers Mash", Type: models.ItemFeed, Quantity: 12, Unit: "kg",
	}))
	require.NoError(t, store.InsertInventoryItem(ctx, &models.InventoryItem{
		Name: "Layers Mash", Type: models.ItemFeed, Quantity: 300, Unit: "kg",
	}))

	svc.Run(ctx)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Low feed stock", notifier.sent[0].Title)
	assert.Contains(t, notifier.sent[0].Body, "Growers Mash")
	assert.NotContains(t, notifier.sent[0].Body, "Layers Mash")
}

func TestEggDropAlert(t *testing.T) {
	svc, store, notifier := newAlertsHarness()
	ctx := context.Background()

	require.NoError(t, store.InsertDaily(ctx, &models.DailyAggregate{Date: "2026-03-09", EggsGood: 100}))
	require.NoError(t, store.InsertDaily(ctx, &models.DailyAggregate{Date: "2026-03-10", EggsGood: 70}))

	svc.Run(ctx)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "Egg production drop", notifier.sent[0].Title)
	assert.Contains(t, notifier.sent[0].Body, "30%")
}

func TestNoAlertsWhenHealthy(t *testing.T) {
	svc, store, notifier := newAlertsHarness()
	ctx := context.Background()

	require.NoError(t, store.InsertInventoryItem(ctx, &models.InventoryItem{
		Name: "Growers Mash", Type: models.ItemFeed, Quantity: 300, Unit: "kg",
	}))
	require.NoError(t, store.InsertDaily(ctx, &models.DailyAggregate{Date: "2026-03-09", EggsGood: 100}))
	require.NoError(t, store.InsertDaily(ctx, &models.DailyAggregate{Date: "2026-03-10", EggsGood: 95}))

	svc.Run(ctx)
	assert.Empty(t, notifier.sent)
}

func TestEggDropSkippedWithoutPriorDay(t *testing.T) {
	svc, store, notifier := newAlertsHarness()
	ctx := context.Background()

	require.NoError(t, store.InsertDaily(ctx, &models.DailyAggregate{Date: "2026-03-10", EggsGood: 5}))

	svc.Run(ctx)
	assert.Empty(t, notifier.sent)
}
