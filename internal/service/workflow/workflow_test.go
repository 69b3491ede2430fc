package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/repository/memory"
	"github.com/avionyx/farmhand/internal/service/identity"
	"github.com/avionyx/farmhand/internal/service/ledger"
	"github.com/avionyx/farmhand/internal/service/workflow"
)

var testDay = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestHarness() (*workflow.Engine, *memory.Store, *workflow.SessionManager) {
	store := memory.NewStore()
	clock := func() time.Time { return testDay }
	ledgerEngine := ledger.NewEngine(nil).WithClock(clock)
	roles := identity.StaticProvider{
		"admin-1":   models.RoleAdmin,
		"manager-1": models.RoleManager,
		"staff-1":   models.RoleStaff,
	}
	sessions := workflow.NewSessionManager()
	engine := workflow.NewEngine(store, ledgerEngine, roles, sessions, nil).WithClock(clock)
	return engine, store, sessions
}

func seedFeed(t *testing.T, store *memory.Store, name string, qty float64) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		Name:        name,
		Type:        models.ItemFeed,
		Quantity:    qty,
		Unit:        "kg",
		CostPerUnit: 40,
	}
	require.NoError(t, store.InsertInventoryItem(context.Background(), item))
	return item
}

// optionIDs collects the ids of a prompt's options for membership checks.
func optionIDs(p workflow.Prompt) []string {
	ids := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestDailyLogWalk_CommitsOnConfirm(t *testing.T) {
	engine, store, _ := newTestHarness()
	ctx := context.Background()
	feed := seedFeed(t, store, "Growers Mash", 100)

	prompt, err := engine.Start(ctx, "staff-1", workflow.KindDailyLog)
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "eggs")

	steps := []workflow.Input{
		{Text: "80"},            // eggs collected
		{Text: "5"},             // eggs broken
		{Option: feed.ID},       // feed item
		{Text: "30"},            // feed amount
		{Option: "kg"},          // feed unit
		{Option: workflow.OptDone},
		{Option: "record"},      // mortality path
		{Text: "2"},             // deaths
		{Option: "sickness"},    // cause
	}
	for _, in := range steps {
		prompt, err = engine.HandleInput(ctx, "staff-1", in)
		require.NoError(t, err, "input %+v", in)
		require.False(t, prompt.Done)
	}
	assert.Contains(t, prompt.Text, "Save this record?")

	prompt, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: workflow.OptConfirm})
	require.NoError(t, err)
	assert.True(t, prompt.Done)

	daily, err := store.DailyByDate(ctx, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 80, daily.EggsCollected)
	assert.Equal(t, 5, daily.EggsBroken)
	assert.Equal(t, 30.0, daily.FeedUsedKg)
	assert.Equal(t, 2, daily.MortalityCount)

	updated, err := store.InventoryItemByID(ctx, feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 70.0, updated.Quantity)

	// The session is gone once the commit lands.
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "1"})
	assert.ErrorIs(t, err, workflow.ErrNoSession)
}

func TestCancelMidway_LeavesStoreUntouched(t *testing.T) {
	engine, store, sessions := newTestHarness()
	ctx := context.Background()
	seedFeed(t, store, "Growers Mash", 100)

	_, err := engine.Start(ctx, "staff-1", workflow.KindDailyLog)
	require.NoError(t, err)

	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "80"})
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "5"})
	require.NoError(t, err)

	prompt, err := engine.HandleInput(ctx, "staff-1", workflow.Input{Option: workflow.OptCancel})
	require.NoError(t, err)
	assert.True(t, prompt.Done)
	assert.Contains(t, prompt.Text, "No changes")
	assert.Equal(t, 0, sessions.Len())

	_, err = store.DailyByDate(ctx, "2026-03-10")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	logs, err := store.ListInventoryLogs(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, logs)
	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestValidationFailure_RepromptsSameStep(t *testing.T) {
	engine, _, _ := newTestHarness()
	ctx := context.Background()

	_, err := engine.Start(ctx, "staff-1", workflow.KindDailyLog)
	require.NoError(t, err)

	prompt, err := engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "not a number"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "whole number")

	// The step did not advance; a valid answer still lands on eggs.
	prompt, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "40"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "broken")
}

func TestBrokenEggsCannotExceedCollected(t *testing.T) {
	engine, _, _ := newTestHarness()
	ctx := context.Background()

	_, err := engine.Start(ctx, "staff-1", workflow.KindDailyLog)
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "10"})
	require.NoError(t, err)

	prompt, err := engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "11"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "cannot exceed")
}

func TestFeedFeasibility_ReturnsToAmountStep(t *testing.T) {
	engine, store, _ := newTestHarness()
	ctx := context.Background()
	feed := seedFeed(t, store, "Growers Mash", 50)

	_, err := engine.Start(ctx, "staff-1", workflow.KindDailyLog)
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: workflow.OptSkip})
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: feed.ID})
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "200"})
	require.NoError(t, err)

	prompt, err := engine.HandleInput(ctx, "staff-1", workflow.Input{Option: "kg"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "Not enough")
	assert.Contains(t, prompt.Text, "50.0")

	// A feasible retry continues normally.
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "30"})
	require.NoError(t, err)
	prompt, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: "kg"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "another feed")
}

func TestBack_ReturnsToPreviousStep(t *testing.T) {
	engine, _, _ := newTestHarness()
	ctx := context.Background()

	_, err := engine.Start(ctx, "staff-1", workflow.KindDailyLog)
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "10"})
	require.NoError(t, err)

	prompt, err := engine.HandleInput(ctx, "staff-1", workflow.Input{Option: workflow.OptBack})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "How many eggs were collected?")
}

func TestRolePolicy(t *testing.T) {
	engine, _, _ := newTestHarness()
	ctx := context.Background()

	_, err := engine.Start(ctx, "staff-1", workflow.KindPurchase)
	assert.ErrorIs(t, err, workflow.ErrNotPermitted)

	_, err = engine.Start(ctx, "manager-1", workflow.KindFlockOnboarding)
	assert.ErrorIs(t, err, workflow.ErrNotPermitted)

	_, err = engine.Start(ctx, "admin-1", workflow.KindFlockOnboarding)
	assert.NoError(t, err)

	_, err = engine.Start(ctx, "nobody", workflow.KindDailyLog)
	assert.ErrorIs(t, err, identity.ErrUnknownOperator)
}

func TestStartReplacesInflightSession(t *testing.T) {
	engine, store, _ := newTestHarness()
	ctx := context.Background()
	seedFeed(t, store, "Growers Mash", 100)

	_, err := engine.Start(ctx, "manager-1", workflow.KindDailyLog)
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "manager-1", workflow.Input{Text: "15"})
	require.NoError(t, err)

	// Starting a new workflow discards the eggs accumulator entirely.
	_, err = engine.Start(ctx, "manager-1", workflow.KindContact)
	require.NoError(t, err)

	prompt, err := engine.HandleInput(ctx, "manager-1", workflow.Input{Text: "Agrovet Duka"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "relationship")
}

func TestPurchaseWalk_NewItem(t *testing.T) {
	engine, store, _ := newTestHarness()
	ctx := context.Background()

	prompt, err := engine.Start(ctx, "manager-1", workflow.KindPurchase)
	require.NoError(t, err)
	assert.Contains(t, optionIDs(prompt), workflow.OptNew)

	steps := []workflow.Input{
		{Option: workflow.OptNew},
		{Text: "Starter Mash"},
		{Text: "4"},              // bags
		{Text: "50"},             // bag weight
		{Text: "2000"},           // price per bag
		{Option: workflow.OptDone},
		{Option: "mpesa"},
		{Text: "QX900P"},         // reference
		{Option: workflow.OptGeneric},
	}
	for _, in := range steps {
		prompt, err = engine.HandleInput(ctx, "manager-1", in)
		require.NoError(t, err, "input %+v", in)
	}
	assert.Contains(t, prompt.Text, "Save this purchase?")

	prompt, err = engine.HandleInput(ctx, "manager-1", workflow.Input{Option: workflow.OptConfirm})
	require.NoError(t, err)
	assert.True(t, prompt.Done)

	item, err := store.InventoryItemByName(ctx, "Starter Mash")
	require.NoError(t, err)
	assert.Equal(t, 200.0, item.Quantity)
	assert.Equal(t, 40.0, item.CostPerUnit)

	rows, err := store.ListLedger(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 8000.0, rows[0].Amount)
	assert.Equal(t, "QX900P", rows[0].Reference)
}

func TestSaleWalk_Birds(t *testing.T) {
	engine, store, _ := newTestHarness()
	ctx := context.Background()
	flock := &models.Flock{
		Name:          "Batch A",
		HatchDate:     testDay.AddDate(0, -5, 0),
		InitialCount:  50,
		CurrentCount:  50,
		HensCount:     30,
		RoostersCount: 20,
		Status:        models.FlockActive,
	}
	require.NoError(t, store.InsertFlock(ctx, flock))

	steps := []workflow.Input{
		{Option: "birds"},
		{Option: flock.ID},
		{Text: "10"},
		{Text: "6"},          // hens, roosters derived
		{Text: "200"},        // price per bird
		{Option: "cash"},
		{Option: workflow.OptGeneric},
	}
	prompt, err := engine.Start(ctx, "staff-1", workflow.KindSale)
	require.NoError(t, err)
	for _, in := range steps {
		prompt, err = engine.HandleInput(ctx, "staff-1", in)
		require.NoError(t, err, "input %+v", in)
	}
	assert.Contains(t, prompt.Text, "Save this sale?")

	prompt, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: workflow.OptConfirm})
	require.NoError(t, err)
	assert.True(t, prompt.Done)

	updated, err := store.FlockByID(ctx, flock.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.CurrentCount)
	assert.Equal(t, 24, updated.HensCount)
}

func TestVaccinationWalk_DoseUnitImpliesStockUsed(t *testing.T) {
	engine, store, _ := newTestHarness()
	ctx := context.Background()
	flock := &models.Flock{
		Name:          "Batch A",
		HatchDate:     testDay.AddDate(0, -2, 0),
		InitialCount:  60,
		CurrentCount:  60,
		HensCount:     40,
		RoostersCount: 20,
		Status:        models.FlockActive,
	}
	require.NoError(t, store.InsertFlock(ctx, flock))
	vaccine := &models.InventoryItem{
		Name:     "Gumboro Vaccine",
		Type:     models.ItemMedication,
		Quantity: 100,
		Unit:     "doses",
	}
	require.NoError(t, store.InsertInventoryItem(ctx, vaccine))

	_, err := engine.Start(ctx, "staff-1", workflow.KindVaccination)
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: flock.ID})
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: vaccine.ID})
	require.NoError(t, err)

	// One dose per bird: the usage question is skipped straight to next due,
	// which offers the quick ranges.
	prompt, err := engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "50"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "next dose")
	assert.Contains(t, optionIDs(prompt), "due_90")
	assert.Contains(t, optionIDs(prompt), "due_30")
	assert.Contains(t, optionIDs(prompt), "due_7")

	steps := []workflow.Input{
		{Option: "due_7"},
		{Option: workflow.OptSkip}, // vaccinator
		{Option: workflow.OptSkip}, // notes
		{Option: workflow.OptConfirm},
	}
	for _, in := range steps {
		prompt, err = engine.HandleInput(ctx, "staff-1", in)
		require.NoError(t, err, "input %+v", in)
	}
	assert.True(t, prompt.Done)

	records, err := store.ListVaccinations(ctx, flock.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 50.0, records[0].DosesUsed)
	require.NotNil(t, records[0].NextDueDate)
	assert.Equal(t, testDay.AddDate(0, 0, 7), *records[0].NextDueDate)

	updated, err := store.InventoryItemByID(ctx, vaccine.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, updated.Quantity)
}

func TestVaccinationWalk_ShortDoseStockStillAsksUsage(t *testing.T) {
	engine, store, _ := newTestHarness()
	ctx := context.Background()
	flock := &models.Flock{
		Name:          "Batch B",
		HatchDate:     testDay.AddDate(0, -2, 0),
		InitialCount:  60,
		CurrentCount:  60,
		HensCount:     40,
		RoostersCount: 20,
		Status:        models.FlockActive,
	}
	require.NoError(t, store.InsertFlock(ctx, flock))
	vaccine := &models.InventoryItem{
		Name:     "Gumboro Vaccine",
		Type:     models.ItemMedication,
		Quantity: 30,
		Unit:     "doses",
	}
	require.NoError(t, store.InsertInventoryItem(ctx, vaccine))

	_, err := engine.Start(ctx, "staff-1", workflow.KindVaccination)
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: flock.ID})
	require.NoError(t, err)
	_, err = engine.HandleInput(ctx, "staff-1", workflow.Input{Option: vaccine.ID})
	require.NoError(t, err)

	// 50 birds but only 30 doses: the implied one-per-bird amount cannot
	// cover the flock, so the usage question still comes up.
	prompt, err := engine.HandleInput(ctx, "staff-1", workflow.Input{Text: "50"})
	require.NoError(t, err)
	assert.Contains(t, prompt.Text, "was used")
}

func TestInputWithoutSession(t *testing.T) {
	engine, _, _ := newTestHarness()
	_, err := engine.HandleInput(context.Background(), "staff-1", workflow.Input{Text: "5"})
	assert.ErrorIs(t, err, workflow.ErrNoSession)
}

func TestCancelEndpointSemantics(t *testing.T) {
	engine, _, _ := newTestHarness()
	ctx := context.Background()

	assert.False(t, engine.Cancel("staff-1"))

	_, err := engine.Start(ctx, "staff-1", workflow.KindDailyLog)
	require.NoError(t, err)
	assert.True(t, engine.Cancel("staff-1"))
	assert.False(t, engine.Cancel("staff-1"))
}
