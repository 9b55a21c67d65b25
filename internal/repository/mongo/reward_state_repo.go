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

const rewardStateCollectionName = "reward_states"

// mongoRewardStateRepository implements repository.RewardStateRepository
// using MongoDB.
type mongoRewardStateRepository struct {
	collection *mongo.Collection
}

// NewMongoRewardStateRepository creates a new instance of mongoRewardStateRepository.
func NewMongoRewardStateRepository(db *mongo.Database) repository.RewardStateRepository {
	return &mongoRewardStateRepository{
		collection: db.Collection(rewardStateCollectionName),
	}
}

// GetByUserID retrieves the reward state for a user.
func (r *mongoRewardStateRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UserRewardState, error) {
	var state domain.UserRewardState
	filter := bson.M{"userId": userID}

	err := r.collection.FindOne(ctx, filter).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Create inserts a freshly initialized reward state. The unique index on
// userId turns a racing double-create into a conflict the caller retries.
func (r *mongoRewardStateRepository) Create(ctx context.Context, state *domain.UserRewardState) error {
	if state.UserID == primitive.NilObjectID {
		return errors.New("user ID is required")
	}

	state.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	state.CreatedAt = now
	state.UpdatedAt = now
	state.Version = 1

	_, err := r.collection.InsertOne(ctx, state)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrConflict
		}
		return err
	}
	return nil
}

// Update replaces the stored state iff the document still carries the
// version this copy was loaded with, then bumps the version. A filter miss
// means another writer got there first and surfaces as ErrConflict.
func (r *mongoRewardStateRepository) Update(ctx context.Context, state *domain.UserRewardState) error {
	loadedVersion := state.Version
	state.Version = loadedVersion + 1
	state.UpdatedAt = time.Now().UTC()

	filter := bson.M{"userId": state.UserID, "version": loadedVersion}
	result, err := r.collection.ReplaceOne(ctx, filter, state)
	if err != nil {
		state.Version = loadedVersion
		return err
	}
	if result.MatchedCount == 0 {
		state.Version = loadedVersion
		return repository.ErrConflict
	}
	return nil
}

// EnsureRewardStateIndexes creates necessary indexes for the reward_states
// collection. Call this once during application startup.
func EnsureRewardStateIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Create maps duplicate-key errors from this unique index to
		// ErrConflict; without it concurrent first submissions can double
		// up a user's state.
		log.Printf("ERROR: Failed to create reward_states indexes: %v", err)
	}
}
