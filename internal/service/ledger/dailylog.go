package ledger

import (
	"context"
	"fmt"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/service/settings"
)

// FeedUnit is the unit the operator entered feed usage in.
type FeedUnit string

const (
	UnitKg   FeedUnit = "kg"
	UnitBags FeedUnit = "bags"
)

// FeedUsage is one feed line of a daily log: which item (empty for generic,
// untracked feed), how much, in which unit.
type FeedUsage struct {
	ItemID string
	Amount float64
	Unit   FeedUnit
}

// DailyLogFields is the accumulated field set of a DailyLog workflow.
type DailyLogFields struct {
	OperatorID      string
	Date            string
	EggsSkipped     bool
	EggsCollected   int
	EggsBroken      int
	Feeds           []FeedUsage
	MortalityCount  int
	MortalityReason string
}

// DailyLogResult summarizes the committed record.
type DailyLogResult struct {
	Date       string
	EggsGood   int
	FeedUsedKg float64
	FeedCost   float64
	EggStock   float64
}

// EggItemName is the produce item that accumulates good eggs.
const EggItemName = "Eggs"

// CommitDailyLog applies one daily log atomically: egg production into the
// daily row and egg stock, feed usage out of feed stock with cost
// derivation, mortality into the farm-wide total.
func (e *Engine) CommitDailyLog(ctx context.Context, sctx StorageContext, f DailyLogFields) (DailyLogResult, error) {
	if f.Date == "" {
		f.Date = models.DateKey(e.now())
	}
	var result DailyLogResult

	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		store := sctx.Store
		cfg := sctx.Settings()

		daily, _, err := e.dailyFor(ctx, store, f.Date)
		if err != nil {
			return err
		}

		if !f.EggsSkipped {
			good := f.EggsCollected - f.EggsBroken
			daily.EggsCollected += f.EggsCollected
			daily.EggsBroken += f.EggsBroken
			daily.EggsGood = daily.EggsCollected - daily.EggsBroken

			eggItem, err := e.findOrCreateItem(ctx, store, EggItemName, models.ItemProduce, "eggs", 0)
			if err != nil {
				return err
			}
			if good > 0 {
				eggItem.Quantity += float64(good)
				eggItem.UpdatedAt = e.now()
				if err := store.UpdateInventoryItem(ctx, eggItem); err != nil {
					return fmt.Errorf("failed to update egg stock: %w", err)
				}
				if err := store.AppendInventoryLog(ctx, &models.InventoryLogEntry{
					ItemID:         eggItem.ID,
					ItemName:       eggItem.Name,
					QuantityChange: float64(good),
					Notes:          "daily collection",
					CreatedAt:      e.now(),
				}); err != nil {
					return fmt.Errorf("failed to log egg production: %w", err)
				}
			}
			result.EggsGood = good
			result.EggStock = eggItem.Quantity
		}

		for _, feed := range f.Feeds {
			kg, cost, err := e.applyFeedUsage(ctx, sctx, feed, cfg)
			if err != nil {
				return err
			}
			daily.FeedUsedKg += kg
			daily.FeedCost += cost
			result.FeedUsedKg += kg
			result.FeedCost += cost
		}

		if f.MortalityCount > 0 {
			daily.MortalityCount += f.MortalityCount
			daily.FlockTotal = max(0, daily.FlockTotal-f.MortalityCount)
			reason := f.MortalityReason
			if reason == "" {
				reason = "unknown"
			}
			daily.MortalityReasons = appendReason(daily.MortalityReasons, reason, f.MortalityCount)
		}

		if err := e.saveDaily(ctx, store, daily); err != nil {
			return err
		}

		details := fmt.Sprintf("eggs=%d broken=%d feedKg=%.2f mortality=%d flockTotal=%d",
			f.EggsCollected, f.EggsBroken, result.FeedUsedKg, f.MortalityCount, daily.FlockTotal)
		if err := e.appendAudit(ctx, store, f.OperatorID, "daily_log", details); err != nil {
			return err
		}

		result.Date = daily.Date
		e.reconcileFlockTotal(ctx, store, daily)
		return nil
	})
	if err != nil {
		return DailyLogResult{}, err
	}
	return result, nil
}

// applyFeedUsage converts one feed line to kilograms, derives its cost and
// deducts tracked stock. Generic usage (no item) only accrues cost from the
// global bag settings.
func (e *Engine) applyFeedUsage(ctx context.Context, sctx StorageContext, feed FeedUsage, cfg *settings.Service) (kg, cost float64, err error) {
	store := sctx.Store
	bagWeight := cfg.BagWeightFor(ctx, feed.ItemID)
	bagCost := cfg.Float(ctx, settings.KeyFeedBagCost, settings.DefaultBagCost)

	kg = feed.Amount
	if feed.Unit == UnitBags {
		kg = feed.Amount * bagWeight
	}

	if feed.ItemID == "" {
		cost = kg * (bagCost / bagWeight)
		return kg, cost, nil
	}

	item, err := store.InventoryItemByID(ctx, feed.ItemID)
	if err != nil {
		return 0, 0, fmt.Errorf("feed item %s: %w", feed.ItemID, err)
	}
	if item.CostPerUnit > 0 {
		cost = kg * item.CostPerUnit
	} else {
		cost = kg * (bagCost / bagWeight)
	}

	if err := deductStock(item, kg); err != nil {
		return 0, 0, err
	}
	item.UpdatedAt = e.now()
	if err := store.UpdateInventoryItem(ctx, item); err != nil {
		return 0, 0, fmt.Errorf("failed to deduct feed stock: %w", err)
	}
	if err := store.AppendInventoryLog(ctx, &models.InventoryLogEntry{
		ItemID:         item.ID,
		ItemName:       item.Name,
		QuantityChange: -kg,
		Notes:          "daily feeding",
		CreatedAt:      e.now(),
	}); err != nil {
		return 0, 0, fmt.Errorf("failed to log feed usage: %w", err)
	}
	return kg, cost, nil
}
