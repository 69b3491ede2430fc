// Package memory provides an in-memory transactional Store used by tests and
// sandbox storage contexts. A single mutex serializes transactions; rollback
// restores a pre-transaction snapshot of the whole state.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
)

type state struct {
	items        map[string]models.InventoryItem
	invLogs      []models.InventoryLogEntry
	ledger       []models.FinancialLedger
	flocks       map[string]models.Flock
	daily        map[string]models.DailyAggregate
	contacts     map[string]models.Contact
	vaccinations []models.VaccinationRecord
	audits       []models.AuditLogEntry
	settings     map[string]string
	operators    map[string]models.Operator
}

func newState() state {
	return state{
		items:     map[string]models.InventoryItem{},
		flocks:    map[string]models.Flock{},
		daily:     map[string]models.DailyAggregate{},
		contacts:  map[string]models.Contact{},
		settings:  map[string]string{},
		operators: map[string]models.Operator{},
	}
}

func (s state) clone() state {
	c := state{
		items:        make(map[string]models.InventoryItem, len(s.items)),
		invLogs:      append([]models.InventoryLogEntry(nil), s.invLogs...),
		ledger:       append([]models.FinancialLedger(nil), s.ledger...),
		flocks:       make(map[string]models.Flock, len(s.flocks)),
		daily:        make(map[string]models.DailyAggregate, len(s.daily)),
		contacts:     make(map[string]models.Contact, len(s.contacts)),
		vaccinations: append([]models.VaccinationRecord(nil), s.vaccinations...),
		audits:       append([]models.AuditLogEntry(nil), s.audits...),
		settings:     make(map[string]string, len(s.settings)),
		operators:    make(map[string]models.Operator, len(s.operators)),
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.flocks {
		c.flocks[k] = v
	}
	for k, v := range s.daily {
		c.daily[k] = v
	}
	for k, v := range s.contacts {
		c.contacts[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.operators {
		c.operators[k] = v
	}
	return c
}

// Store is the in-memory repository.Store implementation.
type Store struct {
	mu    sync.Mutex
	state state
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newState()}
}

type txMarker struct{}

func inTransaction(ctx context.Context) bool {
	return ctx.Value(txMarker{}) != nil
}

// lock acquires the store mutex unless the context already runs inside a
// transaction, which holds it for its whole extent.
func (s *Store) lock(ctx context.Context) func() {
	if inTransaction(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTransaction serializes against all other access, snapshots the state
// and restores it wholesale when fn fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(context.WithValue(ctx, txMarker{}, struct{}{})); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func newID() string { return uuid.NewString() }

func (s *Store) InventoryItemByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	defer s.lock(ctx)()
	item, ok := s.state.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

func (s *Store) InventoryItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	defer s.lock(ctx)()
	for _, item := range s.state.items {
		if strings.EqualFold(item.Name, name) {
			found := item
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListInventoryItems(ctx context.Context, filter repository.InventoryFilter) ([]models.InventoryItem, error) {
	defer s.lock(ctx)()
	var out []models.InventoryItem
	for _, item := range s.state.items {
		if filter.Type != "" && item.Type != filter.Type {
			continue
		}
		if filter.PositiveOnly && item.Quantity <= 0 {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	defer s.lock(ctx)()
	for _, existing := range s.state.items {
		if strings.EqualFold(existing.Name, item.Name) {
			return repository.ErrDuplicate
		}
	}
	if item.ID == "" {
		item.ID = newID()
	}
	s.state.items[item.ID] = *item
	return nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	defer s.lock(ctx)()
	if _, ok := s.state.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	s.state.items[item.ID] = *item
	return nil
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry *models.InventoryLogEntry) error {
	defer s.lock(ctx)()
	if entry.ID == "" {
		entry.ID = newID()
	}
	s.state.invLogs = append(s.state.invLogs, *entry)
	return nil
}

func (s *Store) ListInventoryLogs(ctx context.Context, itemID string) ([]models.InventoryLogEntry, error) {
	defer s.lock(ctx)()
	var out []models.InventoryLogEntry
	for _, e := range s.state.invLogs {
		if itemID == "" || e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) AppendLedger(ctx context.Context, row *models.FinancialLedger) error {
	defer s.lock(ctx)()
	if row.ID == "" {
		row.ID = newID()
	}
	s.state.ledger = append(s.state.ledger, *row)
	return nil
}

func (s *Store) ListLedger(ctx context.Context, fromDate, toDate string) ([]models.FinancialLedger, error) {
	defer s.lock(ctx)()
	var out []models.FinancialLedger
	for _, row := range s.state.ledger {
		if fromDate != "" && row.Date < fromDate {
			continue
		}
		if toDate != "" && row.Date > toDate {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) FlockByID(ctx context.Context, id string) (*models.Flock, error) {
	defer s.lock(ctx)()
	flock, ok := s.state.flocks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &flock, nil
}

func (s *Store) FlockByName(ctx context.Context, name string) (*models.Flock, error) {
	defer s.lock(ctx)()
	for _, flock := range s.state.flocks {
		if strings.EqualFold(flock.Name, name) {
			found := flock
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListFlocks(ctx context.Context, activeOnly bool) ([]models.Flock, error) {
	defer s.lock(ctx)()
	var out []models.Flock
	for _, flock := range s.state.flocks {
		if activeOnly && (flock.Status != models.FlockActive || flock.CurrentCount <= 0) {
			continue
		}
		out = append(out, flock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertFlock(ctx context.Context, flock *models.Flock) error {
	defer s.lock(ctx)()
	for _, existing := range s.state.flocks {
		if strings.EqualFold(existing.Name, flock.Name) {
			return repository.ErrDuplicate
		}
	}
	if flock.ID == "" {
		flock.ID = newID()
	}
	s.state.flocks[flock.ID] = *flock
	return nil
}

func (s *Store) UpdateFlock(ctx context.Context, flock *models.Flock) error {
	defer s.lock(ctx)()
	if _, ok := s.state.flocks[flock.ID]; !ok {
		return repository.ErrNotFound
	}
	s.state.flocks[flock.ID] = *flock
	return nil
}

func (s *Store) DailyByDate(ctx context.Context, date string) (*models.DailyAggregate, error) {
	defer s.lock(ctx)()
	row, ok := s.state.daily[date]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (s *Store) LatestDailyBefore(ctx context.Context, date string) (*models.DailyAggregate, error) {
	defer s.lock(ctx)()
	var best *models.DailyAggregate
	for key, row := range s.state.daily {
		if key >= date {
			continue
		}
		if best == nil || key > best.Date {
			r := row
			best = &r
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (s *Store) ListDailyRange(ctx context.Context, fromDate, toDate string) ([]models.DailyAggregate, error) {
	defer s.lock(ctx)()
	var out []models.DailyAggregate
	for key, row := range s.state.daily {
		if fromDate != "" && key < fromDate {
			continue
		}
		if toDate != "" && key > toDate {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) InsertDaily(ctx context.Context, row *models.DailyAggregate) error {
	defer s.lock(ctx)()
	if _, ok := s.state.daily[row.Date]; ok {
		return repository.ErrDuplicate
	}
	if row.ID == "" {
		row.ID = newID()
	}
	s.state.daily[row.Date] = *row
	return nil
}

func (s *Store) UpdateDaily(ctx context.Context, row *models.DailyAggregate) error {
	defer s.lock(ctx)()
	if _, ok := s.state.daily[row.Date]; !ok {
		return repository.ErrNotFound
	}
	s.state.daily[row.Date] = *row
	return nil
}

func (s *Store) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	defer s.lock(ctx)()
	contact, ok := s.state.contacts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &contact, nil
}

func (s *Store) ListContacts(ctx context.Context, role models.ContactRole) ([]models.Contact, error) {
	defer s.lock(ctx)()
	var out []models.Contact
	for _, contact := range s.state.contacts {
		if role != "" && contact.Role != role {
			continue
		}
		out = append(out, contact)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) InsertContact(ctx context.Context, contact *models.Contact) error {
	defer s.lock(ctx)()
	if contact.ID == "" {
		contact.ID = newID()
	}
	s.state.contacts[contact.ID] = *contact
	return nil
}

func (s *Store) InsertVaccination(ctx context.Context, rec *models.VaccinationRecord) error {
	defer s.lock(ctx)()
	if rec.ID == "" {
		rec.ID = newID()
	}
	s.state.vaccinations = append(s.state.vaccinations, *rec)
	return nil
}

func (s *Store) ListVaccinations(ctx context.Context, flockID string) ([]models.VaccinationRecord, error) {
	defer s.lock(ctx)()
	var out []models.VaccinationRecord
	for _, rec := range s.state.vaccinations {
		if flockID == "" || rec.FlockID == flockID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error {
	defer s.lock(ctx)()
	if entry.ID == "" {
		entry.ID = newID()
	}
	s.state.audits = append(s.state.audits, *entry)
	return nil
}

// ListAudits returns every audit row; test helper.
func (s *Store) ListAudits(ctx context.Context) ([]models.AuditLogEntry, error) {
	defer s.lock(ctx)()
	return append([]models.AuditLogEntry(nil), s.state.audits...), nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	defer s.lock(ctx)()
	value, ok := s.state.settings[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return value, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	defer s.lock(ctx)()
	s.state.settings[key] = value
	return nil
}

func (s *Store) OperatorByID(ctx context.Context, id string) (*models.Operator, error) {
	defer s.lock(ctx)()
	op, ok := s.state.operators[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &op, nil
}

func (s *Store) UpsertOperator(ctx context.Context, op *models.Operator) error {
	defer s.lock(ctx)()
	if op.ID == "" {
		op.ID = newID()
	}
	s.state.operators[op.ID] = *op
	return nil
}
