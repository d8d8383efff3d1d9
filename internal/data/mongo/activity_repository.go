package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bloodbank-ledger/internal/domain/activity"
)

const (
	// ActivityCollectionName is the name of the activity log collection in MongoDB
	ActivityCollectionName = "activity_log"
)

// ActivityIndexes are the indexes the activity log relies on. The unique
// event_id index makes projection idempotent.
func ActivityIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_event_id"),
		},
		{
			Keys:    bson.D{{Key: "aggregate_type", Value: 1}, {Key: "aggregate_id", Value: 1}, {Key: "occurred_at", Value: -1}},
			Options: options.Index().SetName("aggregate_occurred_at"),
		},
	}
}

// ActivityRepository implements the activity.Repository interface for MongoDB
type ActivityRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

var _ activity.Repository = (*ActivityRepository)(nil)

func NewActivityRepository(logger *slog.Logger, db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a projected event. A second projection of the same event
// fails with ErrDuplicateEntry.
func (r *ActivityRepository) Create(ctx context.Context, entry *activity.Entry) error {
	collection := r.db.Collection(ActivityCollectionName)

	if _, err := collection.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return activity.ErrDuplicateEntry{EventID: entry.EventID}
		}
		r.logger.Error("Failed to create activity entry",
			"event_id", entry.EventID.String(),
			"error", err)
		return fmt.Errorf("failed to create activity entry: %w", err)
	}

	return nil
}

func (r *ActivityRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*activity.Entry, error) {
	collection := r.db.Collection(ActivityCollectionName)

	var entry activity.Entry
	err := collection.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, activity.ErrEntryNotFound{EventID: eventID}
		}
		r.logger.Error("Failed to get activity entry",
			"event_id", eventID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get activity entry: %w", err)
	}

	return &entry, nil
}

// List returns entries newest first
func (r *ActivityRepository) List(ctx context.Context, filter activity.Filter, limit, offset int) ([]*activity.Entry, error) {
	collection := r.db.Collection(ActivityCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, activityQuery(filter), opts)
	if err != nil {
		r.logger.Error("Failed to list activity entries",
			"aggregate_type", string(filter.AggregateType),
			"aggregate_id", filter.AggregateID,
			"error", err)
		return nil, fmt.Errorf("failed to list activity entries: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []*activity.Entry{}
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode activity entries", "error", err)
		return nil, fmt.Errorf("failed to decode activity entries: %w", err)
	}

	return entries, nil
}

func (r *ActivityRepository) Count(ctx context.Context, filter activity.Filter) (int64, error) {
	collection := r.db.Collection(ActivityCollectionName)

	count, err := collection.CountDocuments(ctx, activityQuery(filter))
	if err != nil {
		r.logger.Error("Failed to count activity entries", "error", err)
		return 0, fmt.Errorf("failed to count activity entries: %w", err)
	}

	return count, nil
}

func activityQuery(filter activity.Filter) bson.M {
	query := bson.M{}
	if filter.AggregateType != "" {
		query["aggregate_type"] = filter.AggregateType
	}
	if filter.AggregateID != "" {
		query["aggregate_id"] = filter.AggregateID
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	return query
}
