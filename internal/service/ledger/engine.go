// Package ledger implements the consistency engine that turns a fully
// accumulated workflow field set into one atomic multi-aggregate commit.
// Deltas apply in fixed order (inventory, flock, daily aggregate, append-only
// rows) and the whole unit of work runs inside the store's transaction
// boundary, so an aborted commit leaves the aggregate store untouched.
package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/settings"
)

// StorageContext selects the backend a commit runs against. Passing it per
// call keeps backend selection an explicit parameter instead of process-wide
// mutable state.
type StorageContext struct {
	Store repository.Store
}

// Settings returns a typed settings reader bound to this context's store.
func (sc StorageContext) Settings() *settings.Service {
	return settings.NewService(sc.Store)
}

// Engine executes atomic commits. It is stateless apart from its clock and
// logger; all persistence flows through the per-call StorageContext.
type Engine struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine constructs a ledger consistency engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, now: time.Now}
}

// WithClock overrides the engine clock; used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// dailyFor loads the aggregate row for date, creating it lazily with the
// prior date's flock total and zero-valued numerics.
func (e *Engine) dailyFor(ctx context.Context, store repository.Store, date string) (*models.DailyAggregate, bool, error) {
	row, err := store.DailyByDate(ctx, date)
	if err == nil {
		return row, false, nil
	}
	if err != repository.ErrNotFound {
		return nil, false, fmt.Errorf("failed to load daily aggregate: %w", err)
	}

	priorTotal := 0
	prior, err := store.LatestDailyBefore(ctx, date)
	switch err {
	case nil:
		priorTotal = prior.FlockTotal
	case repository.ErrNotFound:
		priorTotal = StorageContext{Store: store}.Settings().Int(ctx, settings.KeyStartingFlockCount, 0)
	default:
		return nil, false, fmt.Errorf("failed to seed daily aggregate: %w", err)
	}

	row = models.NewDailyAggregate(date, priorTotal, e.now())
	if err := store.InsertDaily(ctx, row); err != nil {
		return nil, false, fmt.Errorf("failed to create daily aggregate: %w", err)
	}
	return row, true, nil
}

func (e *Engine) saveDaily(ctx context.Context, store repository.Store, row *models.DailyAggregate) error {
	row.UpdatedAt = e.now()
	if err := store.UpdateDaily(ctx, row); err != nil {
		return fmt.Errorf("failed to update daily aggregate: %w", err)
	}
	return nil
}

func (e *Engine) appendAudit(ctx context.Context, store repository.Store, operatorID, action, details string) error {
	entry := &models.AuditLogEntry{
		Timestamp:  e.now(),
		OperatorID: operatorID,
		Action:     action,
		Details:    details,
	}
	if err := store.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// reconcileFlockTotal compares the farm-wide running total against the live
// sum over active flocks. The two counters are deliberately independent
// (whole-farm vs per-cohort bookkeeping); a divergence is surfaced, not
// silently corrected.
func (e *Engine) reconcileFlockTotal(ctx context.Context, store repository.Store, daily *models.DailyAggregate) {
	flocks, err := store.ListFlocks(ctx, false)
	if err != nil {
		e.logger.Warn("flock reconciliation query failed", zap.Error(err))
		return
	}
	liveTotal := 0
	for _, f := range flocks {
		if f.Status == models.FlockActive {
			liveTotal += f.CurrentCount
		}
	}
	if liveTotal != daily.FlockTotal {
		e.logger.Warn("flock total diverges from live flock sum",
			zap.String("date", daily.Date),
			zap.Int("flockTotal", daily.FlockTotal),
			zap.Int("liveSum", liveTotal),
		)
	}
}

// deductStock re-checks the non-negative invariant immediately before the
// decrement and applies it. The caller is inside a transaction, so a
// returned error rolls the whole commit back.
func deductStock(item *models.InventoryItem, amount float64) error {
	if item.Quantity < amount {
		return insufficient("insufficient stock of "+item.Name, item.Quantity, amount)
	}
	item.Quantity -= amount
	return nil
}

// findOrCreateItem resolves an inventory item by name, creating it on first
// reference. Items are never deleted.
func (e *Engine) findOrCreateItem(ctx context.Context, store repository.Store, name string, itemType models.ItemType, unit string, costPerUnit float64) (*models.InventoryItem, error) {
	item, err := store.InventoryItemByName(ctx, name)
	if err == nil {
		return item, nil
	}
	if err != repository.ErrNotFound {
		return nil, fmt.Errorf("failed to look up item %s: %w", name, err)
	}
	now := e.now()
	item = &models.InventoryItem{
		Name:        name,
		Type:        itemType,
		Quantity:    0,
		Unit:        unit,
		CostPerUnit: costPerUnit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.InsertInventoryItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item %s: %w", name, err)
	}
	return item, nil
}

func appendReason(existing, reason string, count int) string {
	tagged := fmt.Sprintf("%s (%d)", reason, count)
	if existing == "" {
		return tagged
	}
	return existing + ", " + tagged
}

// resolveContact validates an optional contact reference. An empty id is the
// "generic" sentinel and resolves to no contact.
func resolveContact(ctx context.Context, store repository.Store, contactID string) (string, error) {
	if contactID == "" {
		return "", nil
	}
	contact, err := store.ContactByID(ctx, contactID)
	if err != nil {
		return "", fmt.Errorf("contact %s: %w", contactID, err)
	}
	return contact.ID, nil
}
