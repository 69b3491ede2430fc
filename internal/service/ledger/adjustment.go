package ledger

import (
	"context"
	"fmt"

	"github.com/avionyx/farmhand/internal/domain/models"
)

// AdjustmentFields is the accumulated field set of an InventoryAdjustment
// workflow: a signed correction to one item's stock level.
type AdjustmentFields struct {
	OperatorID string
	ItemID     string
	Delta      float64
	Reason     string
}

// AdjustmentResult reports the settled stock level.
type AdjustmentResult struct {
	ItemName string
	Quantity float64
}

// CommitAdjustment applies a signed stock correction. A delta that would
// drive the quantity negative rejects the commit wholesale.
func (e *Engine) CommitAdjustment(ctx context.Context, sctx StorageContext, f AdjustmentFields) (AdjustmentResult, error) {
	var result AdjustmentResult

	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		store := sctx.Store

		item, err := store.InventoryItemByID(ctx, f.ItemID)
		if err != nil {
			return fmt.Errorf("adjustment item %s: %w", f.ItemID, err)
		}
		if item.Quantity+f.Delta < 0 {
			return insufficient("adjustment would drive "+item.Name+" negative", item.Quantity, -f.Delta)
		}

		item.Quantity += f.Delta
		item.UpdatedAt = e.now()
		if err := store.UpdateInventoryItem(ctx, item); err != nil {
			return fmt.Errorf("failed to adjust %s: %w", item.Name, err)
		}
		if err := store.AppendInventoryLog(ctx, &models.InventoryLogEntry{
			ItemID:         item.ID,
			ItemName:       item.Name,
			QuantityChange: f.Delta,
			Notes:          "adjustment: " + f.Reason,
			CreatedAt:      e.now(),
		}); err != nil {
			return fmt.Errorf("failed to log adjustment: %w", err)
		}

		result.ItemName = item.Name
		result.Quantity = item.Quantity

		details := fmt.Sprintf("item=%s delta=%+.2f now=%.2f reason=%s", item.Name, f.Delta, item.Quantity, f.Reason)
		return e.appendAudit(ctx, store, f.OperatorID, "inventory_adjustment", details)
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	return result, nil
}
