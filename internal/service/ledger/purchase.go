package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/settings"
)

// PurchaseLine is one purchased item: an existing item by id, or a new item
// by name with its bag weight.
type PurchaseLine struct {
	ItemID      string
	ItemName    string
	Bags        float64
	BagWeight   float64
	PricePerBag float64
}

// PurchaseFields is the accumulated field set of a Purchase workflow.
type PurchaseFields struct {
	OperatorID string
	Date       string
	Lines      []PurchaseLine
	Payment    models.PaymentMethod
	Reference  string
	SupplierID string
}

// PurchaseResult summarizes the committed purchase.
type PurchaseResult struct {
	TotalCost float64
	AddedKg   float64
}

// CommitPurchase lands a single- or multi-item feed purchase: bag counts
// convert to kilograms via the per-item override or global default weight,
// cost per unit is recomputed as price over resulting kilograms on every
// purchase (last price wins), and exactly one OUT ledger row covers the
// whole visit, linked from each inventory log entry.
func (e *Engine) CommitPurchase(ctx context.Context, sctx StorageContext, f PurchaseFields) (PurchaseResult, error) {
	if len(f.Lines) == 0 {
		return PurchaseResult{}, fmt.Errorf("purchase requires at least one line")
	}
	if f.Date == "" {
		f.Date = models.DateKey(e.now())
	}
	var result PurchaseResult

	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		store := sctx.Store
		cfg := sctx.Settings()

		supplierID, err := resolveContact(ctx, store, f.SupplierID)
		if err != nil {
			return err
		}

		// The ledger id is minted up front so each inventory log entry can
		// link to the single OUT row appended at the end.
		ledgerID := uuid.NewString()

		var names []string
		for _, line := range f.Lines {
			item, weight, err := e.resolvePurchaseItem(ctx, sctx, line, cfg)
			if err != nil {
				return err
			}

			addedKg := line.Bags * weight
			totalPrice := line.Bags * line.PricePerBag
			item.Quantity += addedKg
			if addedKg > 0 {
				item.CostPerUnit = totalPrice / addedKg
			}
			item.UpdatedAt = e.now()
			if err := store.UpdateInventoryItem(ctx, item); err != nil {
				return fmt.Errorf("failed to update item %s: %w", item.Name, err)
			}
			if err := store.AppendInventoryLog(ctx, &models.InventoryLogEntry{
				ItemID:         item.ID,
				ItemName:       item.Name,
				QuantityChange: addedKg,
				LedgerID:       ledgerID,
				Notes:          fmt.Sprintf("purchase: %.1f bags @ %.2f", line.Bags, line.PricePerBag),
				CreatedAt:      e.now(),
			}); err != nil {
				return fmt.Errorf("failed to log purchase of %s: %w", item.Name, err)
			}

			result.AddedKg += addedKg
			result.TotalCost += totalPrice
			names = append(names, item.Name)
		}

		ledgerRow := &models.FinancialLedger{
			ID:            ledgerID,
			Amount:        result.TotalCost,
			Direction:     models.DirectionOut,
			PaymentMethod: f.Payment,
			Reference:     f.Reference,
			Category:      "Feed Purchase",
			Description:   "Purchased " + strings.Join(names, ", "),
			ContactID:     supplierID,
			Date:          f.Date,
			CreatedAt:     e.now(),
		}
		if err := store.AppendLedger(ctx, ledgerRow); err != nil {
			return fmt.Errorf("failed to append ledger row: %w", err)
		}

		details := fmt.Sprintf("items=%d totalCost=%.2f addedKg=%.2f payment=%s",
			len(f.Lines), result.TotalCost, result.AddedKg, f.Payment)
		return e.appendAudit(ctx, store, f.OperatorID, "purchase", details)
	})
	if err != nil {
		return PurchaseResult{}, err
	}
	return result, nil
}

// resolvePurchaseItem finds the existing item or creates the new one named in
// the line, and returns the bag weight governing its kilogram conversion.
func (e *Engine) resolvePurchaseItem(ctx context.Context, sctx StorageContext, line PurchaseLine, cfg *settings.Service) (*models.InventoryItem, float64, error) {
	store := sctx.Store

	if line.ItemID != "" {
		item, err := store.InventoryItemByID(ctx, line.ItemID)
		if err != nil {
			return nil, 0, fmt.Errorf("purchase item %s: %w", line.ItemID, err)
		}
		return item, cfg.BagWeightFor(ctx, item.ID), nil
	}

	// New item by name. A concurrent creation surfaces as a duplicate, which
	// the workflow reports as a name collision.
	if _, err := store.InventoryItemByName(ctx, line.ItemName); err == nil {
		return nil, 0, insufficient("item name already exists: "+line.ItemName, 0, 0)
	} else if err != repository.ErrNotFound {
		return nil, 0, fmt.Errorf("failed to check item name: %w", err)
	}

	weight := line.BagWeight
	if weight <= 0 {
		weight = cfg.Float(ctx, settings.KeyFeedBagWeight, settings.DefaultBagWeightKg)
	}
	now := e.now()
	item := &models.InventoryItem{
		Name:      line.ItemName,
		Type:      models.ItemFeed,
		Unit:      "kg",
		BagWeight: weight,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.InsertInventoryItem(ctx, item); err != nil {
		return nil, 0, fmt.Errorf("failed to create item %s: %w", line.ItemName, err)
	}
	if line.BagWeight > 0 {
		if err := cfg.SetBagWeightFor(ctx, item.ID, line.BagWeight); err != nil {
			return nil, 0, err
		}
	}
	return item, weight, nil
}
