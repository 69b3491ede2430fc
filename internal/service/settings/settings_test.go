package settings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/farmhand/internal/repository/memory"
	"github.com/avionyx/farmhand/internal/service/settings"
)

func TestDefaultsApplyWhenKeysAbsent(t *testing.T) {
	svc := settings.NewService(memory.NewStore())
	ctx := context.Background()

	assert.Equal(t, settings.DefaultBagWeightKg, svc.Float(ctx, settings.KeyFeedBagWeight, settings.DefaultBagWeightKg))
	assert.Equal(t, settings.DefaultEggsPerCrate, svc.Int(ctx, settings.KeyEggsPerCrate, settings.DefaultEggsPerCrate))
	assert.Equal(t, settings.DefaultBagWeightKg, svc.BagWeightFor(ctx, "item-1"))
}

func TestStoredValuesOverrideDefaults(t *testing.T) {
	store := memory.NewStore()
	svc := settings.NewService(store)
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, settings.KeyFeedBagWeight, "90"))
	assert.Equal(t, 90.0, svc.Float(ctx, settings.KeyFeedBagWeight, settings.DefaultBagWeightKg))

	// A garbage value falls back rather than failing the caller.
	require.NoError(t, svc.Put(ctx, settings.KeyEggsPerCrate, "dozenish"))
	assert.Equal(t, settings.DefaultEggsPerCrate, svc.Int(ctx, settings.KeyEggsPerCrate, settings.DefaultEggsPerCrate))
}

func TestPerItemBagWeightOverride(t *testing.T) {
	store := memory.NewStore()
	svc := settings.NewService(store)
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, settings.KeyFeedBagWeight, "70"))
	require.NoError(t, svc.SetBagWeightFor(ctx, "item-1", 50))

	assert.Equal(t, 50.0, svc.BagWeightFor(ctx, "item-1"))
	assert.Equal(t, 70.0, svc.BagWeightFor(ctx, "item-2"))
	assert.Equal(t, 70.0, svc.BagWeightFor(ctx, ""))
}

func TestPutRejectsEmptyKey(t *testing.T) {
	svc := settings.NewService(memory.NewStore())
	assert.Error(t, svc.Put(context.Background(), "", "5"))
}
