package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/bookhive/backend/internal/models"
)

// ActivityRepository defines the interface for feed entry operations
type ActivityRepository interface {
	EnsureIndexes(ctx context.Context) error
	// InsertIdempotent appends the activity unless one already exists
	// for the same (user_id, review_id, type) key. Returns whether a
	// new document was created.
	InsertIdempotent(ctx context.Context, activity *models.Activity) (bool, error)
	GetFeedByAuthors(ctx context.Context, authorIDs []uint, before time.Time, limit int64) ([]models.Activity, error)
}

// MongoActivityRepository implements ActivityRepository for MongoDB
type MongoActivityRepository struct {
	collection *mongo.Collection
}

func NewMongoActivityRepository(db *mongo.Database) *MongoActivityRepository {
	return &MongoActivityRepository{collection: db.Collection("activities")}
}

// EnsureIndexes creates the idempotency and feed-read indexes
func (r *MongoActivityRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "review_id", Value: 1}, {Key: "type", Value: 1}, {Key: "book_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "occurred_at", Value: -1}},
		},
	})
	return err
}

func (r *MongoActivityRepository) InsertIdempotent(ctx context.Context, activity *models.Activity) (bool, error) {
	if activity.OccurredAt.IsZero() {
		activity.OccurredAt = time.Now()
	}

	filter := bson.M{
		"user_id":   activity.UserID,
		"review_id": activity.ReviewID,
		"type":      activity.Type,
		"book_id":   activity.BookID,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":     activity.UserID,
			"review_id":   activity.ReviewID,
			"type":        activity.Type,
			"book_id":     activity.BookID,
			"occurred_at": activity.OccurredAt,
		},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *MongoActivityRepository) GetFeedByAuthors(ctx context.Context, authorIDs []uint, before time.Time, limit int64) ([]models.Activity, error) {
	var activities []models.Activity
	if len(authorIDs) == 0 {
		return activities, nil
	}

	filter := bson.M{"user_id": bson.M{"$in": authorIDs}}
	if !before.IsZero() {
		filter["occurred_at"] = bson.M{"$lt": before}
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "occurred_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}
