package repository

import (
	"context"
	"errors"

	"github.com/avionyx/farmhand/internal/domain/models"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

// ErrDuplicate indicates a uniqueness constraint (item or flock name,
// daily-aggregate date, settings key) was violated on insert.
var ErrDuplicate = errors.New("entity already exists")

// InventoryFilter narrows inventory listings.
type InventoryFilter struct {
	Type         models.ItemType
	PositiveOnly bool
}

// Store is the aggregate and settings persistence boundary. Implementations
// must make WithTransaction atomic: either every mutation performed through
// the transaction context is visible afterwards, or none is. Concurrent
// transactions touching the same rows must serialize their read-modify-write.
type Store interface {
	// WithTransaction runs fn inside a transaction. Mutations made with the
	// context passed to fn commit together when fn returns nil and are all
	// discarded when it returns an error.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	InventoryItemByID(ctx context.Context, id string) (*models.InventoryItem, error)
	InventoryItemByName(ctx context.Context, name string) (*models.InventoryItem, error)
	ListInventoryItems(ctx context.Context, filter InventoryFilter) ([]models.InventoryItem, error)
	InsertInventoryItem(ctx context.Context, item *models.InventoryItem) error
	UpdateInventoryItem(ctx context.Context, item *models.InventoryItem) error
	AppendInventoryLog(ctx context.Context, entry *models.InventoryLogEntry) error
	ListInventoryLogs(ctx context.Context, itemID string) ([]models.InventoryLogEntry, error)

	AppendLedger(ctx context.Context, row *models.FinancialLedger) error
	ListLedger(ctx context.Context, fromDate, toDate string) ([]models.FinancialLedger, error)

	FlockByID(ctx context.Context, id string) (*models.Flock, error)
	FlockByName(ctx context.Context, name string) (*models.Flock, error)
	ListFlocks(ctx context.Context, activeOnly bool) ([]models.Flock, error)
	InsertFlock(ctx context.Context, flock *models.Flock) error
	UpdateFlock(ctx context.Context, flock *models.Flock) error

	DailyByDate(ctx context.Context, date string) (*models.DailyAggregate, error)
	LatestDailyBefore(ctx context.Context, date string) (*models.DailyAggregate, error)
	ListDailyRange(ctx context.Context, fromDate, toDate string) ([]models.DailyAggregate, error)
	InsertDaily(ctx context.Context, row *models.DailyAggregate) error
	UpdateDaily(ctx context.Context, row *models.DailyAggregate) error

	ContactByID(ctx context.Context, id string) (*models.Contact, error)
	ListContacts(ctx context.Context, role models.ContactRole) ([]models.Contact, error)
	InsertContact(ctx context.Context, contact *models.Contact) error

	InsertVaccination(ctx context.Context, rec *models.VaccinationRecord) error
	ListVaccinations(ctx context.Context, flockID string) ([]models.VaccinationRecord, error)

	AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error

	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error

	OperatorByID(ctx context.Context, id string) (*models.Operator, error)
	UpsertOperator(ctx context.Context, op *models.Operator) error
}
