package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/repository/memory"
	"github.com/avionyx/farmhand/internal/service/ledger"
)

var testDay = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestEngine() (*ledger.Engine, *memory.Store, ledger.StorageContext) {
	store := memory.NewStore()
	engine := ledger.NewEngine(nil).WithClock(func() time.Time { return testDay })
	return engine, store, ledger.StorageContext{Store: store}
}

func seedFeedItem(t *testing.T, store *memory.Store, name string, qty, costPerUnit float64) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		Name:        name,
		Type:        models.ItemFeed,
		Quantity:    qty,
		Unit:        "kg",
		CostPerUnit: costPerUnit,
	}
	require.NoError(t, store.InsertInventoryItem(context.Background(), item))
	return item
}

func seedFlock(t *testing.T, store *memory.Store, name string, hens, roosters int) *models.Flock {
	t.Helper()
	flock := &models.Flock{
		Name:          name,
		HatchDate:     testDay.AddDate(0, -4, 0),
		InitialCount:  hens + roosters,
		CurrentCount:  hens + roosters,
		HensCount:     hens,
		RoostersCount: roosters,
		Status:        models.FlockActive,
	}
	require.NoError(t, store.InsertFlock(context.Background(), flock))
	return flock
}

func TestCommitPurchase_NewItem(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()

	result, err := engine.CommitPurchase(ctx, sctx, ledger.PurchaseFields{
		OperatorID: "op-1",
		Lines: []ledger.PurchaseLine{
			{ItemName: "Starter Mash", Bags: 4, BagWeight: 50, PricePerBag: 2000},
		},
		Payment: models.PayCash,
	})
	require.NoError(t, err)
	assert.Equal(t, 200.0, result.AddedKg)
	assert.Equal(t, 8000.0, result.TotalCost)

	item, err := store.InventoryItemByName(ctx, "Starter Mash")
	require.NoError(t, err)
	assert.Equal(t, 200.0, item.Quantity)
	assert.Equal(t, 40.0, item.CostPerUnit)

	// Exactly one ledger row, linked from the inventory log.
	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DirectionOut, rows[0].Direction)
	assert.Equal(t, 8000.0, rows[0].Amount)
	assert.Equal(t, "Feed Purchase", rows[0].Category)

	logs, err := store.ListInventoryLogs(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, rows[0].ID, logs[0].LedgerID)
	assert.Equal(t, 200.0, logs[0].QuantityChange)

	// The explicit bag weight is persisted as a per-item override.
	assert.Equal(t, 50.0, sctx.Settings().BagWeightFor(ctx, item.ID))
}

func TestCommitPurchase_LastPriceWins(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	item := seedFeedItem(t, store, "Layers Mash", 100, 30)

	_, err := engine.CommitPurchase(ctx, sctx, ledger.PurchaseFields{
		OperatorID: "op-1",
		Lines:      []ledger.PurchaseLine{{ItemID: item.ID, Bags: 2, PricePerBag: 3500}},
		Payment:    models.PayMpesa,
		Reference:  "QX12",
	})
	require.NoError(t, err)

	// 2 bags at the 70 kg default; cost per kg replaced wholesale.
	updated, err := store.InventoryItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 240.0, updated.Quantity)
	assert.InDelta(t, 7000.0/140.0, updated.CostPerUnit, 1e-9)
}

func TestCommitPurchase_MultiLineSingleLedgerRow(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	a := seedFeedItem(t, store, "Mash A", 0, 0)
	b := seedFeedItem(t, store, "Mash B", 0, 0)

	_, err := engine.CommitPurchase(ctx, sctx, ledger.PurchaseFields{
		OperatorID: "op-1",
		Lines: []ledger.PurchaseLine{
			{ItemID: a.ID, Bags: 1, PricePerBag: 1000},
			{ItemID: b.ID, Bags: 2, PricePerBag: 1500},
		},
		Payment: models.PayCash,
	})
	require.NoError(t, err)

	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4000.0, rows[0].Amount)

	logs, err := store.ListInventoryLogs(ctx, "")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, rows[0].ID, entry.LedgerID)
	}
}

func TestCommitDailyLog_AccumulatesWithinDay(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	item := seedFeedItem(t, store, "Growers Mash", 100, 40)

	first, err := engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:    "op-1",
		EggsCollected: 80,
		EggsBroken:    5,
		Feeds:         []ledger.FeedUsage{{ItemID: item.ID, Amount: 30, Unit: ledger.UnitKg}},
	})
	require.NoError(t, err)
	assert.Equal(t, 75, first.EggsGood)
	assert.Equal(t, 30.0, first.FeedUsedKg)
	assert.Equal(t, 1200.0, first.FeedCost)

	_, err = engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:    "op-1",
		EggsCollected: 20,
	})
	require.NoError(t, err)

	daily, err := store.DailyByDate(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 100, daily.EggsCollected)
	assert.Equal(t, 5, daily.EggsBroken)
	assert.Equal(t, 95, daily.EggsGood)
	assert.Equal(t, 30.0, daily.FeedUsedKg)

	updated, err := store.InventoryItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, updated.Quantity)

	eggs, err := store.InventoryItemByName(ctx, ledger.EggItemName)
	require.NoError(t, err)
	assert.Equal(t, models.ItemProduce, eggs.Type)
	assert.Equal(t, 95.0, eggs.Quantity)
}

func TestCommitDailyLog_InsufficientFeedRollsBackEverything(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	item := seedFeedItem(t, store, "Growers Mash", 70, 40)

	_, err := engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:    "op-1",
		EggsCollected: 50,
		Feeds:         []ledger.FeedUsage{{ItemID: item.ID, Amount: 200, Unit: ledger.UnitKg}},
	})
	require.Error(t, err)

	fe, ok := ledger.AsFeasibility(err)
	require.True(t, ok)
	assert.Equal(t, 70.0, fe.Current)
	assert.Equal(t, 200.0, fe.Requested)

	// The egg updates from the same commit must not survive the rollback.
	updated, err := store.InventoryItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, updated.Quantity)
	_, err = store.DailyByDate(ctx, "2026-03-10")
	assert.Error(t, err)
	logs, err := store.ListInventoryLogs(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCommitDailyLog_GenericFeedCostsWithoutDeduction(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()

	result, err := engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:  "op-1",
		EggsSkipped: true,
		Feeds:       []ledger.FeedUsage{{Amount: 2, Unit: ledger.UnitBags}},
	})
	require.NoError(t, err)

	// Two 70 kg bags at the default 2500 per bag.
	assert.Equal(t, 140.0, result.FeedUsedKg)
	assert.Equal(t, 5000.0, result.FeedCost)

	items, err := store.ListInventoryItems(ctx, repository.InventoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCommitDailyLog_MortalityClampsFlockTotal(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	require.NoError(t, store.PutSetting(ctx, "starting_flock_count", "3"))

	_, err := engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:      "op-1",
		EggsSkipped:     true,
		MortalityCount:  5,
		MortalityReason: "predator",
	})
	require.NoError(t, err)

	daily, err := store.DailyByDate(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 0, daily.FlockTotal)
	assert.Equal(t, 5, daily.MortalityCount)
	assert.Equal(t, "predator (5)", daily.MortalityReasons)
}

func TestDailyAggregate_SeededFromMostRecentPriorDay(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()

	_, err := engine.CommitFlockOnboarding(ctx, sctx, ledger.FlockOnboardingFields{
		OperatorID:    "op-1",
		Name:          "Batch A",
		Breed:         "Layers",
		HatchDate:     testDay,
		InitialCount:  50,
		HensCount:     30,
		RoostersCount: 20,
	})
	require.NoError(t, err)

	// Two days later the new day's row starts from the last settled total.
	later := testDay.AddDate(0, 0, 2)
	engine.WithClock(func() time.Time { return later })

	_, err = engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:    "op-1",
		EggsCollected: 10,
	})
	require.NoError(t, err)

	daily, err := store.DailyByDate(ctx, "2026-03-12")
	require.NoError(t, err)
	assert.Equal(t, 50, daily.FlockTotal)
	assert.Equal(t, 10, daily.EggsCollected)
	assert.Equal(t, 0, daily.MortalityCount)
}

func TestCommitSale_Birds(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	flock := seedFlock(t, store, "Batch A", 30, 20)

	result, err := engine.CommitSale(ctx, sctx, ledger.SaleFields{
		OperatorID:   "op-1",
		Product:      ledger.SaleBirds,
		Quantity:     10,
		FlockID:      flock.ID,
		HensSold:     6,
		RoostersSold: 4,
		PricePerBird: 200,
		Payment:      models.PayCash,
	})
	require.NoError(t, err)
	assert.Equal(t, 2000.0, result.Revenue)
	assert.Equal(t, 40, result.FlockAfter)

	updated, err := store.FlockByID(ctx, flock.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.CurrentCount)
	assert.Equal(t, 24, updated.HensCount)
	assert.Equal(t, 16, updated.RoostersCount)
	assert.Equal(t, updated.CurrentCount, updated.HensCount+updated.RoostersCount)

	daily, err := store.DailyByDate(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 10, daily.FlockRemoved)
	assert.Equal(t, 2000.0, daily.Income)

	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DirectionIn, rows[0].Direction)
}

func TestCommitSale_BirdsBeyondFlockRejected(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	flock := seedFlock(t, store, "Batch A", 3, 2)

	_, err := engine.CommitSale(ctx, sctx, ledger.SaleFields{
		OperatorID:   "op-1",
		Product:      ledger.SaleBirds,
		Quantity:     10,
		FlockID:      flock.ID,
		HensSold:     5,
		RoostersSold: 5,
		PricePerBird: 200,
		Payment:      models.PayCash,
	})
	require.Error(t, err)
	_, ok := ledger.AsFeasibility(err)
	assert.True(t, ok)

	untouched, err := store.FlockByID(ctx, flock.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, untouched.CurrentCount)
	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCommitSale_SellingOutMarksFlockSold(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	flock := seedFlock(t, store, "Batch A", 3, 2)

	_, err := engine.CommitSale(ctx, sctx, ledger.SaleFields{
		OperatorID:   "op-1",
		Product:      ledger.SaleBirds,
		Quantity:     5,
		FlockID:      flock.ID,
		HensSold:     3,
		RoostersSold: 2,
		PricePerBird: 150,
		Payment:      models.PayCash,
	})
	require.NoError(t, err)

	updated, err := store.FlockByID(ctx, flock.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FlockSold, updated.Status)
	assert.Equal(t, 0, updated.CurrentCount)
}

func TestCommitSale_EggsByCrate(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()

	// Bank enough egg stock first.
	_, err := engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:    "op-1",
		EggsCollected: 90,
	})
	require.NoError(t, err)

	result, err := engine.CommitSale(ctx, sctx, ledger.SaleFields{
		OperatorID: "op-1",
		Product:    ledger.SaleEggs,
		Mode:       ledger.ModeCrate,
		Quantity:   2,
		Payment:    models.PayMpesa,
		Reference:  "QA77",
	})
	require.NoError(t, err)
	assert.Equal(t, 900.0, result.Revenue)
	assert.Equal(t, 60, result.EggsDeducted)

	eggs, err := store.InventoryItemByName(ctx, ledger.EggItemName)
	require.NoError(t, err)
	assert.Equal(t, 30.0, eggs.Quantity)

	daily, err := store.DailyByDate(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 2, daily.CratesSold)
	assert.Equal(t, 900.0, daily.Income)
}

func TestCommitSale_EggsBeyondStockRejected(t *testing.T) {
	engine, _, sctx := newTestEngine()
	ctx := context.Background()

	_, err := engine.CommitDailyLog(ctx, sctx, ledger.DailyLogFields{
		OperatorID:    "op-1",
		EggsCollected: 10,
	})
	require.NoError(t, err)

	_, err = engine.CommitSale(ctx, sctx, ledger.SaleFields{
		OperatorID: "op-1",
		Product:    ledger.SaleEggs,
		Mode:       ledger.ModeEgg,
		Quantity:   11,
		Payment:    models.PayCash,
	})
	require.Error(t, err)
	_, ok := ledger.AsFeasibility(err)
	assert.True(t, ok)
}

func TestCommitAdjustment_AppliesSignedDelta(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	item := seedFeedItem(t, store, "Growers Mash", 50, 40)

	result, err := engine.CommitAdjustment(ctx, sctx, ledger.AdjustmentFields{
		OperatorID: "op-1",
		ItemID:     item.ID,
		Delta:      -12.5,
		Reason:     "spoilage",
	})
	require.NoError(t, err)
	assert.Equal(t, 37.5, result.Quantity)

	logs, err := store.ListInventoryLogs(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, -12.5, logs[0].QuantityChange)
	assert.Equal(t, "adjustment: spoilage", logs[0].Notes)
}

func TestCommitAdjustment_RejectsNegativeResult(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	item := seedFeedItem(t, store, "Growers Mash", 20, 40)

	_, err := engine.CommitAdjustment(ctx, sctx, ledger.AdjustmentFields{
		OperatorID: "op-1",
		ItemID:     item.ID,
		Delta:      -25,
		Reason:     "recount",
	})
	require.Error(t, err)
	_, ok := ledger.AsFeasibility(err)
	assert.True(t, ok)

	untouched, err := store.InventoryItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, untouched.Quantity)
}

func TestCommitAdjustment_ConcurrentDeltasBothLand(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	item := seedFeedItem(t, store, "Growers Mash", 20, 40)

	var wg sync.WaitGroup
	for _, delta := range []float64{50, 30} {
		wg.Add(1)
		go func(d float64) {
			defer wg.Done()
			_, err := engine.CommitAdjustment(ctx, sctx, ledger.AdjustmentFields{
				OperatorID: "op-1",
				ItemID:     item.ID,
				Delta:      d,
				Reason:     "recount",
			})
			assert.NoError(t, err)
		}(delta)
	}
	wg.Wait()

	updated, err := store.InventoryItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.Quantity)
}

func TestCommitPurchase_ConcurrentPurchasesBothLand(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	item := seedFeedItem(t, store, "Growers Mash", 20, 40)
	require.NoError(t, sctx.Settings().SetBagWeightFor(ctx, item.ID, 10))

	var wg sync.WaitGroup
	for _, bags := range []float64{5, 3} {
		wg.Add(1)
		go func(b float64) {
			defer wg.Done()
			_, err := engine.CommitPurchase(ctx, sctx, ledger.PurchaseFields{
				OperatorID: "op-1",
				Lines:      []ledger.PurchaseLine{{ItemID: item.ID, Bags: b, PricePerBag: 400}},
				Payment:    models.PayCash,
			})
			assert.NoError(t, err)
		}(bags)
	}
	wg.Wait()

	// +50 kg and +30 kg commit without a lost update.
	updated, err := store.InventoryItemByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated.Quantity)

	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCommitVaccination(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	flock := seedFlock(t, store, "Batch A", 30, 20)
	vaccine := &models.InventoryItem{
		Name:     "Newcastle Vaccine",
		Type:     models.ItemMedication,
		Quantity: 100,
		Unit:     "doses",
	}
	require.NoError(t, store.InsertInventoryItem(ctx, vaccine))

	result, err := engine.CommitVaccination(ctx, sctx, ledger.VaccinationFields{
		OperatorID:      "op-1",
		FlockID:         flock.ID,
		VaccineItemID:   vaccine.ID,
		BirdsVaccinated: 50,
		StockUsed:       50,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.StockAfter)

	records, err := store.ListVaccinations(ctx, flock.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Newcastle Vaccine", records[0].VaccineName)
	assert.Equal(t, "Self", records[0].Vaccinator)
	assert.Equal(t, "2026-03-10", records[0].Date)
}

func TestCommitFlockChange_MortalityKeepsSplitInvariant(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	flock := seedFlock(t, store, "Batch A", 30, 20)

	result, err := engine.CommitFlockChange(ctx, sctx, ledger.FlockChangeFields{
		OperatorID: "op-1",
		FlockID:    flock.ID,
		Action:     ledger.FlockMortality,
		Count:      4,
		Hens:       3,
		Roosters:   1,
		Reason:     "sickness",
	})
	require.NoError(t, err)
	assert.Equal(t, 46, result.CurrentCount)

	updated, err := store.FlockByID(ctx, flock.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.CurrentCount, updated.HensCount+updated.RoostersCount)

	daily, err := store.DailyByDate(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 4, daily.MortalityCount)
	assert.Equal(t, "sickness (4)", daily.MortalityReasons)
}

func TestCommitFlockChange_SplitMismatchRejected(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()
	flock := seedFlock(t, store, "Batch A", 30, 20)

	_, err := engine.CommitFlockChange(ctx, sctx, ledger.FlockChangeFields{
		OperatorID: "op-1",
		FlockID:    flock.ID,
		Action:     ledger.FlockRemove,
		Count:      5,
		Hens:       2,
		Roosters:   2,
	})
	require.Error(t, err)
}

func TestCommitFlockOnboarding_DuplicateNameRejected(t *testing.T) {
	engine, _, sctx := newTestEngine()
	ctx := context.Background()

	fields := ledger.FlockOnboardingFields{
		OperatorID:    "op-1",
		Name:          "Batch A",
		Breed:         "Layers",
		HatchDate:     testDay,
		InitialCount:  10,
		HensCount:     6,
		RoostersCount: 4,
	}
	_, err := engine.CommitFlockOnboarding(ctx, sctx, fields)
	require.NoError(t, err)

	_, err = engine.CommitFlockOnboarding(ctx, sctx, fields)
	require.Error(t, err)
	_, ok := ledger.AsFeasibility(err)
	assert.True(t, ok)
}

func TestCommitContact(t *testing.T) {
	engine, store, sctx := newTestEngine()
	ctx := context.Background()

	contact, err := engine.CommitContact(ctx, sctx, ledger.ContactFields{
		OperatorID: "op-1",
		Name:       "Mama Njeri",
		Role:       models.RoleCustomer,
		Phone:      "+254700111222",
	})
	require.NoError(t, err)
	require.NotEmpty(t, contact.ID)

	audits, err := store.ListAudits(ctx)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, "contact_created", audits[0].Action)
}
