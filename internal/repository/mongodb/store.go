// Package mongodb implements the repository.Store boundary on MongoDB.
// Multi-aggregate commits run inside a session transaction so the Ledger
// Consistency Engine gets its all-or-nothing boundary from the database.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
)

const (
	collInventory     = "inventory_items"
	collInventoryLogs = "inventory_logs"
	collLedger        = "financial_ledger"
	collFlocks        = "flocks"
	collDaily         = "daily_aggregates"
	collContacts      = "contacts"
	collVaccinations  = "vaccination_records"
	collAudits        = "audit_logs"
	collSettings      = "settings"
	collOperators     = "operators"
)

// Store is the MongoDB-backed repository.Store implementation.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ repository.Store = (*Store)(nil)

// NewStore connects to MongoDB, verifies the connection and ensures indexes.
func NewStore(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	s.ensureIndexes(ctx)
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) {
	unique := options.Index().SetUnique(true)
	_, _ = s.db.Collection(collInventory).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}}, Options: unique,
	})
	_, _ = s.db.Collection(collFlocks).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}}, Options: unique,
	})
	_, _ = s.db.Collection(collDaily).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}}, Options: unique,
	})
	_, _ = s.db.Collection(collSettings).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "key", Value: 1}}, Options: unique,
	})
	_, _ = s.db.Collection(collInventoryLogs).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "itemId", Value: 1}},
	})
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// WithTransaction runs fn inside a MongoDB session transaction. The driver
// retries transient transaction errors, which also serializes conflicting
// read-modify-write commits on the same documents.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

func newID() string { return uuid.NewString() }

func mapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// exactNameFilter builds a case-insensitive exact-match filter on name.
// Names are operator-entered free text, so regex metacharacters must be
// escaped before anchoring.
func exactNameFilter(name string) bson.M {
	return bson.M{"name": bson.M{"$regex": "^" + regexp.QuoteMeta(name) + "$", "$options": "i"}}
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	var out []T
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("cursor decode failed: %w", err)
	}
	return out, nil
}

func (s *Store) InventoryItemByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	return findOne[models.InventoryItem](ctx, s.db.Collection(collInventory), bson.M{"_id": id})
}

func (s *Store) InventoryItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	return findOne[models.InventoryItem](ctx, s.db.Collection(collInventory), exactNameFilter(name))
}

func (s *Store) ListInventoryItems(ctx context.Context, filter repository.InventoryFilter) ([]models.InventoryItem, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.PositiveOnly {
		query["quantity"] = bson.M{"$gt": 0}
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.InventoryItem](ctx, s.db.Collection(collInventory), query, opts)
}

func (s *Store) InsertInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	if item.ID == "" {
		item.ID = newID()
	}
	_, err := s.db.Collection(collInventory).InsertOne(ctx, item)
	return mapErr(err)
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	res, err := s.db.Collection(collInventory).ReplaceOne(ctx, bson.M{"_id": item.ID}, item)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry *models.InventoryLogEntry) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	_, err := s.db.Collection(collInventoryLogs).InsertOne(ctx, entry)
	return mapErr(err)
}

func (s *Store) ListInventoryLogs(ctx context.Context, itemID string) ([]models.InventoryLogEntry, error) {
	query := bson.M{}
	if itemID != "" {
		query["itemId"] = itemID
	}
	return findAll[models.InventoryLogEntry](ctx, s.db.Collection(collInventoryLogs), query)
}

func (s *Store) AppendLedger(ctx context.Context, row *models.FinancialLedger) error {
	if row.ID == "" {
		row.ID = newID()
	}
	_, err := s.db.Collection(collLedger).InsertOne(ctx, row)
	return mapErr(err)
}

func (s *Store) ListLedger(ctx context.Context, fromDate, toDate string) ([]models.FinancialLedger, error) {
	query := dateRangeQuery(fromDate, toDate)
	return findAll[models.FinancialLedger](ctx, s.db.Collection(collLedger), query)
}

func dateRangeQuery(fromDate, toDate string) bson.M {
	bounds := bson.M{}
	if fromDate != "" {
		bounds["$gte"] = fromDate
	}
	if toDate != "" {
		bounds["$lte"] = toDate
	}
	if len(bounds) == 0 {
		return bson.M{}
	}
	return bson.M{"date": bounds}
}

func (s *Store) FlockByID(ctx context.Context, id string) (*models.Flock, error) {
	return findOne[models.Flock](ctx, s.db.Collection(collFlocks), bson.M{"_id": id})
}

func (s *Store) FlockByName(ctx context.Context, name string) (*models.Flock, error) {
	return findOne[models.Flock](ctx, s.db.Collection(collFlocks), exactNameFilter(name))
}

func (s *Store) ListFlocks(ctx context.Context, activeOnly bool) ([]models.Flock, error) {
	query := bson.M{}
	if activeOnly {
		query["status"] = models.FlockActive
		query["currentCount"] = bson.M{"$gt": 0}
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.Flock](ctx, s.db.Collection(collFlocks), query, opts)
}

func (s *Store) InsertFlock(ctx context.Context, flock *models.Flock) error {
	if flock.ID == "" {
		flock.ID = newID()
	}
	_, err := s.db.Collection(collFlocks).InsertOne(ctx, flock)
	return mapErr(err)
}

func (s *Store) UpdateFlock(ctx context.Context, flock *models.Flock) error {
	res, err := s.db.Collection(collFlocks).ReplaceOne(ctx, bson.M{"_id": flock.ID}, flock)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) DailyByDate(ctx context.Context, date string) (*models.DailyAggregate, error) {
	return findOne[models.DailyAggregate](ctx, s.db.Collection(collDaily), bson.M{"date": date})
}

// LatestDailyBefore finds the most recent aggregate strictly before date.
// Date keys sort lexicographically in chronological order.
func (s *Store) LatestDailyBefore(ctx context.Context, date string) (*models.DailyAggregate, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "date", Value: -1}})
	var out models.DailyAggregate
	err := s.db.Collection(collDaily).FindOne(ctx, bson.M{"date": bson.M{"$lt": date}}, opts).Decode(&out)
	if err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (s *Store) ListDailyRange(ctx context.Context, fromDate, toDate string) ([]models.DailyAggregate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	return findAll[models.DailyAggregate](ctx, s.db.Collection(collDaily), dateRangeQuery(fromDate, toDate), opts)
}

func (s *Store) InsertDaily(ctx context.Context, row *models.DailyAggregate) error {
	if row.ID == "" {
		row.ID = newID()
	}
	_, err := s.db.Collection(collDaily).InsertOne(ctx, row)
	return mapErr(err)
}

func (s *Store) UpdateDaily(ctx context.Context, row *models.DailyAggregate) error {
	res, err := s.db.Collection(collDaily).ReplaceOne(ctx, bson.M{"date": row.Date}, row)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) ContactByID(ctx context.Context, id string) (*models.Contact, error) {
	return findOne[models.Contact](ctx, s.db.Collection(collContacts), bson.M{"_id": id})
}

func (s *Store) ListContacts(ctx context.Context, role models.ContactRole) ([]models.Contact, error) {
	query := bson.M{}
	if role != "" {
		query["role"] = role
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[models.Contact](ctx, s.db.Collection(collContacts), query, opts)
}

func (s *Store) InsertContact(ctx context.Context, contact *models.Contact) error {
	if contact.ID == "" {
		contact.ID = newID()
	}
	_, err := s.db.Collection(collContacts).InsertOne(ctx, contact)
	return mapErr(err)
}

func (s *Store) InsertVaccination(ctx context.Context, rec *models.VaccinationRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	_, err := s.db.Collection(collVaccinations).InsertOne(ctx, rec)
	return mapErr(err)
}

func (s *Store) ListVaccinations(ctx context.Context, flockID string) ([]models.VaccinationRecord, error) {
	query := bson.M{}
	if flockID != "" {
		query["flockId"] = flockID
	}
	return findAll[models.VaccinationRecord](ctx, s.db.Collection(collVaccinations), query)
}

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = newID()
	}
	_, err := s.db.Collection(collAudits).InsertOne(ctx, entry)
	return mapErr(err)
}

type settingDoc struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	doc, err := findOne[settingDoc](ctx, s.db.Collection(collSettings), bson.M{"key": key})
	if err != nil {
		return "", err
	}
	return doc.Value, nil
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.db.Collection(collSettings).UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"value": value}},
		opts,
	)
	return mapErr(err)
}

func (s *Store) OperatorByID(ctx context.Context, id string) (*models.Operator, error) {
	return findOne[models.Operator](ctx, s.db.Collection(collOperators), bson.M{"_id": id})
}

func (s *Store) UpsertOperator(ctx context.Context, op *models.Operator) error {
	if op.ID == "" {
		op.ID = newID()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collOperators).ReplaceOne(ctx, bson.M{"_id": op.ID}, op, opts)
	return mapErr(err)
}
