package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/avionyx/farmhand/internal/domain/models"
)

// VaccinationFields is the accumulated field set of a Vaccination workflow.
type VaccinationFields struct {
	OperatorID      string
	FlockID         string
	VaccineItemID   string
	BirdsVaccinated int
	StockUsed       float64
	NextDueDate     *time.Time
	Vaccinator      string
	Notes           string
}

// VaccinationResult summarizes the committed record.
type VaccinationResult struct {
	FlockName   string
	VaccineName string
	StockAfter  float64
}

// CommitVaccination deducts vaccine stock and appends the vaccination record
// in one atomic unit.
func (e *Engine) CommitVaccination(ctx context.Context, sctx StorageContext, f VaccinationFields) (VaccinationResult, error) {
	var result VaccinationResult

	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		store := sctx.Store

		flock, err := store.FlockByID(ctx, f.FlockID)
		if err != nil {
			return fmt.Errorf("flock %s: %w", f.FlockID, err)
		}
		item, err := store.InventoryItemByID(ctx, f.VaccineItemID)
		if err != nil {
			return fmt.Errorf("vaccine %s: %w", f.VaccineItemID, err)
		}

		if err := deductStock(item, f.StockUsed); err != nil {
			return err
		}
		item.UpdatedAt = e.now()
		if err := store.UpdateInventoryItem(ctx, item); err != nil {
			return fmt.Errorf("failed to deduct vaccine stock: %w", err)
		}
		if err := store.AppendInventoryLog(ctx, &models.InventoryLogEntry{
			ItemID:         item.ID,
			ItemName:       item.Name,
			QuantityChange: -f.StockUsed,
			Notes:          "vaccination of " + flock.Name,
			CreatedAt:      e.now(),
		}); err != nil {
			return fmt.Errorf("failed to log vaccine usage: %w", err)
		}

		vaccinator := f.Vaccinator
		if vaccinator == "" {
			vaccinator = "Self"
		}
		if err := store.InsertVaccination(ctx, &models.VaccinationRecord{
			FlockID:         flock.ID,
			VaccineName:     item.Name,
			DosesUsed:       f.StockUsed,
			BirdsVaccinated: f.BirdsVaccinated,
			Date:            models.DateKey(e.now()),
			NextDueDate:     f.NextDueDate,
			Vaccinator:      vaccinator,
			Notes:           f.Notes,
			CreatedAt:       e.now(),
		}); err != nil {
			return fmt.Errorf("failed to insert vaccination record: %w", err)
		}

		result.FlockName = flock.Name
		result.VaccineName = item.Name
		result.StockAfter = item.Quantity

		details := fmt.Sprintf("flock=%s vaccine=%s birds=%d used=%.2f stockAfter=%.2f",
			flock.Name, item.Name, f.BirdsVaccinated, f.StockUsed, item.Quantity)
		return e.appendAudit(ctx, store, f.OperatorID, "vaccination", details)
	})
	if err != nil {
		return VaccinationResult{}, err
	}
	return result, nil
}
