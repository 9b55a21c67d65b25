package mongo

import (
	"context"
	"errors"
	"log"
	"time"

	"ivakdev/gymquest/internal/domain"
	"ivakdev/gymquest/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const powerDayCollectionName = "power_day_usages"

// mongoPowerDayRepository implements repository.PowerDayRepository using
// MongoDB. All writes are single filtered update operations so the weekly
// cap holds even under concurrent submissions, independently of any
// serialization the caller does.
type mongoPowerDayRepository struct {
	collection *mongo.Collection
}

// NewMongoPowerDayRepository creates a new instance of mongoPowerDayRepository.
func NewMongoPowerDayRepository(db *mongo.Database) repository.PowerDayRepository {
	return &mongoPowerDayRepository{
		collection: db.Collection(powerDayCollectionName),
	}
}

// Get retrieves the usage row for (user, year, week).
func (r *mongoPowerDayRepository) Get(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek int) (*domain.PowerDayUsage, error) {
	var usage domain.PowerDayUsage
	filter := bson.M{"userId": userID, "isoYear": isoYear, "isoWeek": isoWeek}

	err := r.collection.FindOne(ctx, filter).Decode(&usage)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &usage, nil
}

// IncrementIfBelow atomically increments usageCount for (user, year, week)
// only while it is still below limit, creating the row on first use.
// Returns false when the cap was already reached by the time the increment
// would apply. This is a compare-and-swap, never a read-then-write.
func (r *mongoPowerDayRepository) IncrementIfBelow(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek, limit int) (bool, error) {
	now := time.Now().UTC()

	// First try to bump an existing row that still has headroom.
	filter := bson.M{
		"userId":     userID,
		"isoYear":    isoYear,
		"isoWeek":    isoWeek,
		"usageCount": bson.M{"$lt": limit},
	}
	update := bson.M{
		"$inc": bson.M{"usageCount": 1},
		"$set": bson.M{"updatedAt": now},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if result.ModifiedCount > 0 {
		return true, nil
	}

	// No row matched: either the cap is reached, or no row exists yet.
	// Try to create the first-use row; the unique index makes a concurrent
	// double-create lose with a duplicate key error.
	usage := domain.PowerDayUsage{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		ISOYear:    isoYear,
		ISOWeek:    isoWeek,
		UsageCount: 1,
		UpdatedAt:  now,
	}
	_, err = r.collection.InsertOne(ctx, usage)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Row appeared concurrently; retry the guarded increment once.
			result, err = r.collection.UpdateOne(ctx, filter, update)
			if err != nil {
				return false, err
			}
			return result.ModifiedCount > 0, nil
		}
		return false, err
	}
	return true, nil
}

// Decrement compensates a recorded usage after the surrounding submission
// failed. Guarded so the count never drops below zero.
func (r *mongoPowerDayRepository) Decrement(ctx context.Context, userID primitive.ObjectID, isoYear, isoWeek int) error {
	filter := bson.M{
		"userId":     userID,
		"isoYear":    isoYear,
		"isoWeek":    isoWeek,
		"usageCount": bson.M{"$gt": 0},
	}
	update := bson.M{
		"$inc": bson.M{"usageCount": -1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsurePowerDayIndexes creates necessary indexes for the power_day_usages
// collection. Call this once during application startup.
func EnsurePowerDayIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "isoYear", Value: 1},
				{Key: "isoWeek", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// The guarded increment relies on this unique index to close the
		// concurrent-insert race; a missing index weakens the weekly limit.
		log.Printf("ERROR: Failed to create power_day_usages indexes: %v", err)
	}
}
