// Package settings provides typed reads over the key/value settings store
// with caller-supplied defaults for absent keys.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/avionyx/farmhand/internal/repository"
)

// Well-known settings keys.
const (
	KeyPricePerEgg        = "price_per_egg"
	KeyPricePerCrate      = "price_per_crate"
	KeyEggsPerCrate       = "eggs_per_crate"
	KeyFeedBagWeight      = "feed_bag_weight"
	KeyFeedBagCost        = "feed_bag_cost"
	KeyStartingFlockCount = "starting_flock_count"
	KeyFeedLowThreshold   = "feed_low_threshold"
	KeyEggDropThreshold   = "egg_drop_threshold"
)

// Documented defaults applied when a key is absent.
const (
	DefaultPricePerEgg      = 15.0
	DefaultPricePerCrate    = 450.0
	DefaultEggsPerCrate     = 30
	DefaultBagWeightKg      = 70.0
	DefaultBagCost          = 2500.0
	DefaultFeedLowThreshold = 50.0
	DefaultEggDropThreshold = 20.0
)

// Service reads and writes settings through the aggregate store.
type Service struct {
	store repository.Store
}

// NewService constructs a settings reader over the given store.
func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// Float returns the value of key parsed as float64, or fallback when the key
// is absent or unparseable.
func (s *Service) Float(ctx context.Context, key string, fallback float64) float64 {
	raw, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

// Int returns the value of key parsed as int, or fallback.
func (s *Service) Int(ctx context.Context, key string, fallback int) int {
	raw, err := s.store.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// BagWeightFor resolves the bag weight for an inventory item: the per-item
// override if set, else the farm-wide default.
func (s *Service) BagWeightFor(ctx context.Context, itemID string) float64 {
	global := s.Float(ctx, KeyFeedBagWeight, DefaultBagWeightKg)
	if itemID == "" {
		return global
	}
	return s.Float(ctx, perItemWeightKey(itemID), global)
}

// SetBagWeightFor stores a per-item bag weight override.
func (s *Service) SetBagWeightFor(ctx context.Context, itemID string, weight float64) error {
	return s.Put(ctx, perItemWeightKey(itemID), strconv.FormatFloat(weight, 'f', -1, 64))
}

func perItemWeightKey(itemID string) string {
	return "weight_" + itemID
}

// Put validates and stores a raw setting value.
func (s *Service) Put(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("settings key must not be empty")
	}
	if err := s.store.PutSetting(ctx, key, value); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}
