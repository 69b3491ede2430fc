package ledger

import (
	"context"
	"fmt"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/service/settings"
)

// SaleProduct is what is being sold.
type SaleProduct string

const (
	SaleEggs  SaleProduct = "eggs"
	SaleBirds SaleProduct = "birds"
)

// EggSaleMode distinguishes per-egg from per-crate sales.
type EggSaleMode string

const (
	ModeEgg   EggSaleMode = "egg"
	ModeCrate EggSaleMode = "crate"
)

// SaleFields is the accumulated field set of a Sale workflow.
type SaleFields struct {
	OperatorID string
	Date       string
	Product    SaleProduct

	// Egg sale fields.
	Mode     EggSaleMode
	Quantity int

	// Bird sale fields.
	FlockID      string
	HensSold     int
	RoostersSold int
	PricePerBird float64

	Payment    models.PaymentMethod
	Reference  string
	CustomerID string
}

// SaleResult summarizes the committed sale.
type SaleResult struct {
	Revenue      float64
	EggsDeducted int
	FlockAfter   int
}

// CommitSale lands an egg or bird sale: stock and flock decrements with the
// non-negative invariant re-checked at the point of decrement, daily
// aggregate updates, and exactly one IN ledger row.
func (e *Engine) CommitSale(ctx context.Context, sctx StorageContext, f SaleFields) (SaleResult, error) {
	if f.Date == "" {
		f.Date = models.DateKey(e.now())
	}
	var result SaleResult

	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		store := sctx.Store

		customerID, err := resolveContact(ctx, store, f.CustomerID)
		if err != nil {
			return err
		}

		daily, _, err := e.dailyFor(ctx, store, f.Date)
		if err != nil {
			return err
		}

		var category, description string
		switch f.Product {
		case SaleEggs:
			category = "Egg Sale"
			description, err = e.applyEggSale(ctx, sctx, f, daily, &result)
		case SaleBirds:
			category = "Bird Sale"
			description, err = e.applyBirdSale(ctx, sctx, f, daily, &result)
		default:
			err = fmt.Errorf("unknown sale product %q", f.Product)
		}
		if err != nil {
			return err
		}

		daily.Income += result.Revenue
		if err := e.saveDaily(ctx, store, daily); err != nil {
			return err
		}

		if err := store.AppendLedger(ctx, &models.FinancialLedger{
			Amount:        result.Revenue,
			Direction:     models.DirectionIn,
			PaymentMethod: f.Payment,
			Reference:     f.Reference,
			Category:      category,
			Description:   description,
			ContactID:     customerID,
			Date:          f.Date,
			CreatedAt:     e.now(),
		}); err != nil {
			return fmt.Errorf("failed to append ledger row: %w", err)
		}

		details := fmt.Sprintf("%s revenue=%.2f flockTotal=%d", description, result.Revenue, daily.FlockTotal)
		if err := e.appendAudit(ctx, store, f.OperatorID, "sale", details); err != nil {
			return err
		}
		e.reconcileFlockTotal(ctx, store, daily)
		return nil
	})
	if err != nil {
		return SaleResult{}, err
	}
	return result, nil
}

func (e *Engine) applyEggSale(ctx context.Context, sctx StorageContext, f SaleFields, daily *models.DailyAggregate, result *SaleResult) (string, error) {
	store := sctx.Store
	cfg := sctx.Settings()

	eggsPerCrate := cfg.Int(ctx, settings.KeyEggsPerCrate, settings.DefaultEggsPerCrate)
	eggCount := f.Quantity
	var revenue float64
	if f.Mode == ModeCrate {
		eggCount = f.Quantity * eggsPerCrate
		revenue = float64(f.Quantity) * cfg.Float(ctx, settings.KeyPricePerCrate, settings.DefaultPricePerCrate)
		daily.CratesSold += f.Quantity
	} else {
		revenue = float64(f.Quantity) * cfg.Float(ctx, settings.KeyPricePerEgg, settings.DefaultPricePerEgg)
		daily.EggsSold += f.Quantity
	}

	eggItem, err := e.findOrCreateItem(ctx, store, EggItemName, models.ItemProduce, "eggs", 0)
	if err != nil {
		return "", err
	}
	if err := deductStock(eggItem, float64(eggCount)); err != nil {
		return "", err
	}
	eggItem.UpdatedAt = e.now()
	if err := store.UpdateInventoryItem(ctx, eggItem); err != nil {
		return "", fmt.Errorf("failed to deduct egg stock: %w", err)
	}
	if err := store.AppendInventoryLog(ctx, &models.InventoryLogEntry{
		ItemID:         eggItem.ID,
		ItemName:       eggItem.Name,
		QuantityChange: -float64(eggCount),
		Notes:          "egg sale",
		CreatedAt:      e.now(),
	}); err != nil {
		return "", fmt.Errorf("failed to log egg sale: %w", err)
	}

	result.Revenue = revenue
	result.EggsDeducted = eggCount
	unit := "eggs"
	if f.Mode == ModeCrate {
		unit = "crates"
	}
	return fmt.Sprintf("Sold %d %s", f.Quantity, unit), nil
}

func (e *Engine) applyBirdSale(ctx context.Context, sctx StorageContext, f SaleFields, daily *models.DailyAggregate, result *SaleResult) (string, error) {
	store := sctx.Store

	flock, err := store.FlockByID(ctx, f.FlockID)
	if err != nil {
		return "", fmt.Errorf("flock %s: %w", f.FlockID, err)
	}
	if f.HensSold+f.RoostersSold != f.Quantity {
		return "", fmt.Errorf("hens (%d) + roosters (%d) must equal quantity (%d)", f.HensSold, f.RoostersSold, f.Quantity)
	}
	if f.Quantity > flock.CurrentCount {
		return "", insufficient("insufficient birds in "+flock.Name, float64(flock.CurrentCount), float64(f.Quantity))
	}
	if f.HensSold > flock.HensCount {
		return "", insufficient("insufficient hens in "+flock.Name, float64(flock.HensCount), float64(f.HensSold))
	}
	if f.RoostersSold > flock.RoostersCount {
		return "", insufficient("insufficient roosters in "+flock.Name, float64(flock.RoostersCount), float64(f.RoostersSold))
	}

	flock.CurrentCount -= f.Quantity
	flock.HensCount -= f.HensSold
	flock.RoostersCount -= f.RoostersSold
	if flock.CurrentCount == 0 {
		flock.Status = models.FlockSold
	}
	flock.UpdatedAt = e.now()
	if err := store.UpdateFlock(ctx, flock); err != nil {
		return "", fmt.Errorf("failed to update flock: %w", err)
	}

	daily.FlockRemoved += f.Quantity
	daily.FlockTotal = max(0, daily.FlockTotal-f.Quantity)

	result.Revenue = float64(f.Quantity) * f.PricePerBird
	result.FlockAfter = flock.CurrentCount
	return fmt.Sprintf("Sold %d birds from %s", f.Quantity, flock.Name), nil
}
