// Package mongo is the MongoDB backend. Multi-document transactions need a
// replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/healthdesk/admin-api/internal/config"
	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
)

const (
	colDoctors     = "doctors"
	colSuspensions = "suspensions"
	colBlacklist   = "blacklist"
	colActivity    = "activity_logs"
	colOutbox      = "outbox_events"
)

var activeStatuses = bson.A{string(model.SuspensionStatusActive), string(model.SuspensionStatusUnderReview)}

type Store struct {
	client      *mongo.Client
	doctors     *mongo.Collection
	suspensions *mongo.Collection
	blacklist   *mongo.Collection
	activity    *mongo.Collection
	outbox      *mongo.Collection
}

var _ repository.Store = (*Store)(nil)

// Connect dials the cluster, verifies it with a ping and ensures indexes.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := NewStore(client, cfg.Database)
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:      client,
		doctors:     db.Collection(colDoctors),
		suspensions: db.Collection(colSuspensions),
		blacklist:   db.Collection(colBlacklist),
		activity:    db.Collection(colActivity),
		outbox:      db.Collection(colOutbox),
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.doctors: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		s.suspensions: {
			{Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "suspensionPeriod.endDate", Value: 1}}},
		},
		s.blacklist: {
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		s.activity: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "actorId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		s.outbox: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// WithDoctorLock runs fn inside a session transaction. Bumping lockVersion
// first makes concurrent transactions on the same doctor conflict, and the
// driver retries the loser from the start.
func (s *Store) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(tx repository.DoctorTx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.doctors.UpdateOne(sc, bson.M{"_id": doctorID}, bson.M{"$inc": bson.M{"lockVersion": 1}}); err != nil {
			return nil, fmt.Errorf("failed to lock doctor: %w", err)
		}
		return nil, fn(&doctorTx{store: s, sc: sc})
	})
	return err
}

func (s *Store) Doctors() repository.DoctorRepository         { return doctorRepo{s} }
func (s *Store) Suspensions() repository.SuspensionRepository { return suspensionRepo{s} }
func (s *Store) Blacklist() repository.BlacklistRepository    { return blacklistRepo{s} }
func (s *Store) Activity() repository.ActivityRepository      { return activityRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository          { return outboxRepo{s} }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, mapError(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]*T, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []*T{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func pageOptions(p *model.Pagination, sort bson.D) *options.FindOptions {
	offset := p.Normalize()
	return options.Find().
		SetSort(sort).
		SetSkip(int64(offset)).
		SetLimit(int64(p.PageSize))
}

func countSuspensions(ctx context.Context, coll *mongo.Collection, doctorID uuid.UUID, activeOnly bool) (int, error) {
	filter := bson.M{"doctorId": doctorID}
	if activeOnly {
		filter["status"] = bson.M{"$in": activeStatuses}
	}
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count suspensions: %w", err)
	}
	return int(n), nil
}

// doctorTx routes every call through the transaction's session context.
type doctorTx struct {
	store *Store
	sc    mongo.SessionContext
}

func (t *doctorTx) FindDoctor(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	return findOne[model.Doctor](t.sc, t.store.doctors, bson.M{"_id": id})
}

func (t *doctorTx) UpdateDoctorStatus(_ context.Context, id uuid.UUID, status model.DoctorStatus) (*model.Doctor, error) {
	var doctor model.Doctor
	err := t.store.doctors.FindOneAndUpdate(t.sc,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doctor)
	if err != nil {
		return nil, mapError(err)
	}
	return &doctor, nil
}

func (t *doctorTx) DeleteDoctor(_ context.Context, id uuid.UUID) error {
	res, err := t.store.doctors.DeleteOne(t.sc, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *doctorTx) CountSuspensions(_ context.Context, doctorID uuid.UUID) (int, error) {
	return countSuspensions(t.sc, t.store.suspensions, doctorID, false)
}

func (t *doctorTx) CountActiveSuspensions(_ context.Context, doctorID uuid.UUID) (int, error) {
	return countSuspensions(t.sc, t.store.suspensions, doctorID, true)
}

func (t *doctorTx) GetSuspension(_ context.Context, id uuid.UUID) (*model.Suspension, error) {
	return findOne[model.Suspension](t.sc, t.store.suspensions, bson.M{"_id": id})
}

func (t *doctorTx) CreateSuspension(_ context.Context, rec *model.Suspension) error {
	if _, err := t.store.suspensions.InsertOne(t.sc, rec); err != nil {
		return fmt.Errorf("failed to create suspension: %w", mapError(err))
	}
	return nil
}

func (t *doctorTx) UpdateSuspension(_ context.Context, rec *model.Suspension) error {
	res, err := t.store.suspensions.ReplaceOne(t.sc, bson.M{"_id": rec.ID}, rec)
	if err != nil {
		return fmt.Errorf("failed to update suspension: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *doctorTx) DeleteSuspensions(_ context.Context, doctorID uuid.UUID) (int64, error) {
	res, err := t.store.suspensions.DeleteMany(t.sc, bson.M{"doctorId": doctorID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete suspensions: %w", err)
	}
	return res.DeletedCount, nil
}

func (t *doctorTx) CreateBlacklistEntry(_ context.Context, entry *model.BlacklistEntry) error {
	if _, err := t.store.blacklist.InsertOne(t.sc, entry); err != nil {
		return fmt.Errorf("failed to create blacklist entry: %w", err)
	}
	return nil
}

func (t *doctorTx) EnqueueEvent(_ context.Context, event *model.OutboxEvent) error {
	if _, err := t.store.outbox.InsertOne(t.sc, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

type doctorRepo struct{ s *Store }

func (r doctorRepo) Create(ctx context.Context, doctor *model.Doctor) error {
	if _, err := r.s.doctors.InsertOne(ctx, doctor); err != nil {
		return fmt.Errorf("failed to create doctor: %w", mapError(err))
	}
	return nil
}

func (r doctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return findOne[model.Doctor](ctx, r.s.doctors, bson.M{"_id": id})
}

func (r doctorRepo) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	return findOne[model.Doctor](ctx, r.s.doctors, bson.M{"email": strings.ToLower(email)})
}

func (r doctorRepo) List(ctx context.Context, filter *model.DoctorFilter) ([]*model.Doctor, int64, error) {
	if filter == nil {
		filter = &model.DoctorFilter{}
	}
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = filter.Status
	}
	if filter.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		q["$or"] = bson.A{bson.M{"name": re}, bson.M{"email": re}}
	}

	total, err := r.s.doctors.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count doctors: %w", err)
	}
	doctors, err := findAll[model.Doctor](ctx, r.s.doctors, q, pageOptions(&filter.Pagination, bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, total, nil
}

type suspensionRepo struct{ s *Store }

func (r suspensionRepo) Get(ctx context.Context, id uuid.UUID) (*model.Suspension, error) {
	return findOne[model.Suspension](ctx, r.s.suspensions, bson.M{"_id": id})
}

func (r suspensionRepo) Count(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return countSuspensions(ctx, r.s.suspensions, doctorID, false)
}

func (r suspensionRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Suspension, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	recs, err := findAll[model.Suspension](ctx, r.s.suspensions, bson.M{"doctorId": doctorID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list suspensions: %w", err)
	}
	return recs, nil
}

func (r suspensionRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*model.Suspension, error) {
	filter := bson.M{
		"status":                   bson.M{"$in": activeStatuses},
		"suspensionPeriod.endDate": bson.M{"$ne": nil, "$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "suspensionPeriod.endDate", Value: 1}}).SetLimit(int64(limit))
	recs, err := findAll[model.Suspension](ctx, r.s.suspensions, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired suspensions: %w", err)
	}
	return recs, nil
}

type blacklistRepo struct{ s *Store }

func (r blacklistRepo) IsBlacklisted(ctx context.Context, email string) (bool, error) {
	n, err := r.s.blacklist.CountDocuments(ctx, bson.M{"email": strings.ToLower(email)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return n > 0, nil
}

func (r blacklistRepo) List(ctx context.Context, page model.Pagination) ([]*model.BlacklistEntry, int64, error) {
	total, err := r.s.blacklist.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count blacklist: %w", err)
	}
	entries, err := findAll[model.BlacklistEntry](ctx, r.s.blacklist, bson.M{}, pageOptions(&page, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list blacklist: %w", err)
	}
	return entries, total, nil
}

type activityRepo struct{ s *Store }

func (r activityRepo) Create(ctx context.Context, log *model.ActivityLog) error {
	if _, err := r.s.activity.InsertOne(ctx, log); err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

func (r activityRepo) List(ctx context.Context, filter *model.ActivityFilter) ([]*model.ActivityLog, int64, error) {
	if filter == nil {
		filter = &model.ActivityFilter{}
	}
	q := bson.M{}
	if filter.ActorID != nil {
		q["actorId"] = *filter.ActorID
	}
	if filter.Action != "" {
		q["action"] = filter.Action
	}
	if filter.EntityID != nil {
		q["entityId"] = *filter.EntityID
	}
	if filter.Since != nil {
		q["createdAt"] = bson.M{"$gte": *filter.Since}
	}

	total, err := r.s.activity.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count activity logs: %w", err)
	}
	logs, err := findAll[model.ActivityLog](ctx, r.s.activity, q, pageOptions(&filter.Pagination, bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, total, nil
}

func (r activityRepo) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.s.activity.DeleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup activity logs: %w", err)
	}
	return res.DeletedCount, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	filter := bson.M{
		"status": bson.M{"$in": bson.A{string(model.OutboxStatusPending), string(model.OutboxStatusRetry)}},
		"$or": bson.A{
			bson.M{"retryAt": nil},
			bson.M{"retryAt": bson.M{"$lte": time.Now().UTC()}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	events, err := findAll[model.OutboxEvent](ctx, r.s.outbox, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r outboxRepo) update(ctx context.Context, id uuid.UUID, update bson.M) error {
	res, err := r.s.outbox.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update outbox event: %w", err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.update(ctx, id, bson.M{
		"$set":   bson.M{"status": model.OutboxStatusProcessed, "processedAt": now, "updatedAt": now},
		"$unset": bson.M{"errorMessage": ""},
	})
}

func (r outboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"status": model.OutboxStatusRetry, "errorMessage": errMsg, "retryAt": retryAt, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"retryCount": 1},
	})
}

func (r outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"status": model.OutboxStatusFailed, "errorMessage": errMsg, "updatedAt": time.Now().UTC()},
	})
}

func (r outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.s.outbox.DeleteMany(ctx, bson.M{
		"status":      model.OutboxStatusProcessed,
		"processedAt": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return res.DeletedCount, nil
}
