package mongo

import (
	"context"
	"log"

	"ivakdev/gymquest/internal/domain"
	"ivakdev/gymquest/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const unlockEventCollectionName = "unlock_events"

// mongoUnlockEventRepository implements repository.UnlockEventRepository
// using MongoDB. The collection is append-only.
type mongoUnlockEventRepository struct {
	collection *mongo.Collection
}

// NewMongoUnlockEventRepository creates a new instance of mongoUnlockEventRepository.
func NewMongoUnlockEventRepository(db *mongo.Database) repository.UnlockEventRepository {
	return &mongoUnlockEventRepository{
		collection: db.Collection(unlockEventCollectionName),
	}
}

// Append inserts unlock events. Event IDs are caller-generated UUIDs, so a
// retried submission inserting the same events is a no-op rather than a
// duplicate notification.
func (r *mongoUnlockEventRepository) Append(ctx context.Context, events []domain.UnlockEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, e := range events {
		docs[i] = e
	}

	// Unordered so one duplicate does not block the rest of the batch.
	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	}
	return nil
}

// ListByUser returns a user's unlock events, oldest first.
func (r *mongoUnlockEventRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.UnlockEvent, error) {
	filter := bson.M{"userId": userID}
	opts := options.Find().SetSort(bson.D{{Key: "unlockedAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []domain.UnlockEvent
	if err = cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// EnsureUnlockEventIndexes creates necessary indexes for the unlock_events
// collection. Call this once during application startup.
func EnsureUnlockEventIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "unlockedAt", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "achievementId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Append depends on the unique (userId, achievementId) index for
		// its idempotency guarantee on retried writes.
		log.Printf("ERROR: Failed to create unlock_events indexes: %v", err)
	}
}
