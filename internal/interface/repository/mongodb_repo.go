package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/domain/repository"
)

// MongoRunLogRepository implements the RunLogRepository interface
type MongoRunLogRepository struct {
	collection *mongo.Collection
}

// NewMongoRunLogRepository creates a new MongoDB run log repository
func NewMongoRunLogRepository(ctx context.Context, db *mongo.Database) (repository.RunLogRepository, error) {
	collection := db.Collection("runLogs")

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// Recent entries of a job
		{Keys: bson.D{{Key: "jobName", Value: 1}, {Key: "startedAt", Value: -1}}},
		{Keys: bson.D{{Key: "accountId", Value: 1}, {Key: "startedAt", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run log indexes: %w", err)
	}

	return &MongoRunLogRepository{
		collection: collection,
	}, nil
}

// Append inserts an entry. Entries are never updated.
func (r *MongoRunLogRepository) Append(ctx context.Context, entry *entity.RunLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := r.collection.InsertOne(ctx, entry)
	return err
}

// Recent returns the latest entries of a job, newest first
func (r *MongoRunLogRepository) Recent(ctx context.Context, jobName string, limit int) ([]*entity.RunLogEntry, error) {
	filter := bson.M{}
	if jobName != "" {
		filter["jobName"] = jobName
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*entity.RunLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// MongoMessageLogRepository implements the MessageLogRepository interface
type MongoMessageLogRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageLogRepository creates a new MongoDB scanned message repository
func NewMongoMessageLogRepository(ctx context.Context, db *mongo.Database) (repository.MessageLogRepository, error) {
	collection := db.Collection("scannedMessages")

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "accountId", Value: 1}, {Key: "messageId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.M{"receivedAt": -1}},
		{Keys: bson.M{"outcome": 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scanned message indexes: %w", err)
	}

	return &MongoMessageLogRepository{
		collection: collection,
	}, nil
}

// Record stores the outcome of a message. Recording the same message twice keeps the first outcome.
func (r *MongoMessageLogRepository) Record(ctx context.Context, msg *entity.ScannedMessage) error {
	if msg.ScannedAt.IsZero() {
		msg.ScannedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, msg)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

// FindScanned finds which of the message IDs were already recorded for the account (batch operation)
func (r *MongoMessageLogRepository) FindScanned(ctx context.Context, accountID uint, messageIDs []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(messageIDs) == 0 {
		return result, nil
	}

	filter := bson.M{"accountId": accountID, "messageId": bson.M{"$in": messageIDs}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetProjection(bson.M{"messageId": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			MessageID string `bson:"messageId"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		result[doc.MessageID] = true
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
