package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
)

// FlockOnboardingFields is the accumulated field set of a FlockOnboarding
// workflow.
type FlockOnboardingFields struct {
	OperatorID    string
	Name          string
	Breed         string
	HatchDate     time.Time
	InitialCount  int
	HensCount     int
	RoostersCount int
	Purchased     bool
	Cost          float64
	SupplierID    string
	Payment       models.PaymentMethod
	Reference     string
}

// FlockOnboardingResult summarizes the committed flock.
type FlockOnboardingResult struct {
	FlockID    string
	FlockTotal int
}

// CommitFlockOnboarding creates a flock, raises the farm-wide total and, for
// purchased flocks, appends the OUT ledger row.
func (e *Engine) CommitFlockOnboarding(ctx context.Context, sctx StorageContext, f FlockOnboardingFields) (FlockOnboardingResult, error) {
	if f.HensCount+f.RoostersCount != f.InitialCount {
		return FlockOnboardingResult{}, fmt.Errorf("hens (%d) + roosters (%d) must equal initial count (%d)",
			f.HensCount, f.RoostersCount, f.InitialCount)
	}
	var result FlockOnboardingResult

	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		store := sctx.Store

		if _, err := store.FlockByName(ctx, f.Name); err == nil {
			return insufficient("flock name already exists: "+f.Name, 0, 0)
		} else if err != repository.ErrNotFound {
			return fmt.Errorf("failed to check flock name: %w", err)
		}

		now := e.now()
		flock := &models.Flock{
			Name:          f.Name,
			Breed:         f.Breed,
			HatchDate:     f.HatchDate,
			InitialCount:  f.InitialCount,
			CurrentCount:  f.InitialCount,
			HensCount:     f.HensCount,
			RoostersCount: f.RoostersCount,
			Status:        models.FlockActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := store.InsertFlock(ctx, flock); err != nil {
			if err == repository.ErrDuplicate {
				return insufficient("flock name already exists: "+f.Name, 0, 0)
			}
			return fmt.Errorf("failed to insert flock: %w", err)
		}

		daily, _, err := e.dailyFor(ctx, store, models.DateKey(now))
		if err != nil {
			return err
		}
		daily.FlockAdded += f.InitialCount
		daily.FlockTotal += f.InitialCount
		if err := e.saveDaily(ctx, store, daily); err != nil {
			return err
		}

		if f.Purchased && f.Cost > 0 {
			supplierID, err := resolveContact(ctx, store, f.SupplierID)
			if err != nil {
				return err
			}
			if err := store.AppendLedger(ctx, &models.FinancialLedger{
				Amount:        f.Cost,
				Direction:     models.DirectionOut,
				PaymentMethod: f.Payment,
				Reference:     f.Reference,
				Category:      "Birds Purchase",
				Description:   fmt.Sprintf("Purchased %d birds (%s)", f.InitialCount, f.Name),
				ContactID:     supplierID,
				Date:          daily.Date,
				CreatedAt:     now,
			}); err != nil {
				return fmt.Errorf("failed to append ledger row: %w", err)
			}
		}

		result.FlockID = flock.ID
		result.FlockTotal = daily.FlockTotal

		details := fmt.Sprintf("flock=%s breed=%s count=%d hens=%d roosters=%d flockTotal=%d",
			f.Name, f.Breed, f.InitialCount, f.HensCount, f.RoostersCount, daily.FlockTotal)
		if err := e.appendAudit(ctx, store, f.OperatorID, "flock_onboarding", details); err != nil {
			return err
		}
		e.reconcileFlockTotal(ctx, store, daily)
		return nil
	})
	if err != nil {
		return FlockOnboardingResult{}, err
	}
	return result, nil
}

// FlockAction enumerates headcount changes on an existing flock.
type FlockAction string

const (
	FlockAdd       FlockAction = "add"
	FlockRemove    FlockAction = "remove"
	FlockMortality FlockAction = "mortality"
)

// FlockChangeFields is the accumulated field set of a FlockUpdate workflow.
type FlockChangeFields struct {
	OperatorID string
	FlockID    string
	Action     FlockAction
	Count      int
	Hens       int
	Roosters   int
	Reason     string
	Purchased  bool
	Cost       float64
	SupplierID string
	Payment    models.PaymentMethod
	Reference  string
}

// FlockChangeResult summarizes the settled counts.
type FlockChangeResult struct {
	FlockName    string
	CurrentCount int
	FlockTotal   int
}

// CommitFlockChange applies an add, removal or mortality to one flock,
// keeping hens + roosters == current at all times and mirroring the change
// into the daily aggregate's farm-wide bookkeeping.
func (e *Engine) CommitFlockChange(ctx context.Context, sctx StorageContext, f FlockChangeFields) (FlockChangeResult, error) {
	if f.Hens+f.Roosters != f.Count {
		return FlockChangeResult{}, fmt.Errorf("hens (%d) + roosters (%d) must equal count (%d)", f.Hens, f.Roosters, f.Count)
	}
	var result FlockChangeResult

	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		store := sctx.Store

		flock, err := store.FlockByID(ctx, f.FlockID)
		if err != nil {
			return fmt.Errorf("flock %s: %w", f.FlockID, err)
		}

		switch f.Action {
		case FlockAdd:
			flock.CurrentCount += f.Count
			flock.HensCount += f.Hens
			flock.RoostersCount += f.Roosters
		case FlockRemove, FlockMortality:
			if f.Count > flock.CurrentCount {
				return insufficient("insufficient birds in "+flock.Name, float64(flock.CurrentCount), float64(f.Count))
			}
			if f.Hens > flock.HensCount {
				return insufficient("insufficient hens in "+flock.Name, float64(flock.HensCount), float64(f.Hens))
			}
			if f.Roosters > flock.RoostersCount {
				return insufficient("insufficient roosters in "+flock.Name, float64(flock.RoostersCount), float64(f.Roosters))
			}
			flock.CurrentCount -= f.Count
			flock.HensCount -= f.Hens
			flock.RoostersCount -= f.Roosters
			if flock.CurrentCount == 0 {
				flock.Status = models.FlockArchived
			}
		default:
			return fmt.Errorf("unknown flock action %q", f.Action)
		}
		flock.UpdatedAt = e.now()
		if err := store.UpdateFlock(ctx, flock); err != nil {
			return fmt.Errorf("failed to update flock: %w", err)
		}

		daily, _, err := e.dailyFor(ctx, store, models.DateKey(e.now()))
		if err != nil {
			return err
		}
		switch f.Action {
		case FlockAdd:
			daily.FlockAdded += f.Count
			daily.FlockTotal += f.Count
		case FlockRemove:
			daily.FlockRemoved += f.Count
			daily.FlockTotal = max(0, daily.FlockTotal-f.Count)
		case FlockMortality:
			daily.MortalityCount += f.Count
			daily.FlockTotal = max(0, daily.FlockTotal-f.Count)
			reason := f.Reason
			if reason == "" {
				reason = "unknown"
			}
			daily.MortalityReasons = appendReason(daily.MortalityReasons, reason, f.Count)
		}
		if err := e.saveDaily(ctx, store, daily); err != nil {
			return err
		}

		if f.Action == FlockAdd && f.Purchased && f.Cost > 0 {
			supplierID, err := resolveContact(ctx, store, f.SupplierID)
			if err != nil {
				return err
			}
			if err := store.AppendLedger(ctx, &models.FinancialLedger{
				Amount:        f.Cost,
				Direction:     models.DirectionOut,
				PaymentMethod: f.Payment,
				Reference:     f.Reference,
				Category:      "Birds Purchase",
				Description:   fmt.Sprintf("Purchased %d birds (%s)", f.Count, flock.Name),
				ContactID:     supplierID,
				Date:          daily.Date,
				CreatedAt:     e.now(),
			}); err != nil {
				return fmt.Errorf("failed to append ledger row: %w", err)
			}
		}

		result.FlockName = flock.Name
		result.CurrentCount = flock.CurrentCount
		result.FlockTotal = daily.FlockTotal

		details := fmt.Sprintf("flock=%s action=%s count=%d reason=%s current=%d flockTotal=%d",
			flock.Name, f.Action, f.Count, f.Reason, flock.CurrentCount, daily.FlockTotal)
		if err := e.appendAudit(ctx, store, f.OperatorID, "flock_"+string(f.Action), details); err != nil {
			return err
		}
		e.reconcileFlockTotal(ctx, store, daily)
		return nil
	})
	if err != nil {
		return FlockChangeResult{}, err
	}
	return result, nil
}

// ContactFields is the accumulated field set of a ContactCreation workflow.
type ContactFields struct {
	OperatorID string
	Name       string
	Role       models.ContactRole
	Phone      string
}

// CommitContact inserts a contact and its audit row atomically.
func (e *Engine) CommitContact(ctx context.Context, sctx StorageContext, f ContactFields) (*models.Contact, error) {
	contact := &models.Contact{
		Name:      f.Name,
		Role:      f.Role,
		Phone:     f.Phone,
		CreatedAt: e.now(),
	}
	err := sctx.Store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := sctx.Store.InsertContact(ctx, contact); err != nil {
			return fmt.Errorf("failed to insert contact: %w", err)
		}
		details := fmt.Sprintf("name=%s role=%s", f.Name, f.Role)
		return e.appendAudit(ctx, sctx.Store, f.OperatorID, "contact_created", details)
	})
	if err != nil {
		return nil, err
	}
	return contact, nil
}
