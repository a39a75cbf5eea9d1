package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/infrastructure/persistence"
)

// openTestMongo connects to TEST_MONGO_URI with a throwaway database
func openTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}

	client, db, err := persistence.NewMongoDatabase(context.Background(), persistence.MongoOptions{
		URI:      uri,
		Database: "travelsync_test_" + uuid.NewString()[:8],
		AppName:  "travelsync-tests",
		Timeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestMongoRunLogRepository_Recent(t *testing.T) {
	db := openTestMongo(t)
	ctx := context.Background()
	repo, err := NewMongoRunLogRepository(ctx, db)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		started := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Append(ctx, entity.NewRunLogEntry("email_scan", nil, started, started.Add(time.Second), entity.JobSummary{Processed: i}, nil)))
	}
	require.NoError(t, repo.Append(ctx, entity.NewRunLogEntry("share_cleanup", nil, base, base, entity.JobSummary{}, nil)))

	entries, err := repo.Recent(ctx, "email_scan", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].ItemsProcessed)
	assert.Equal(t, 1, entries[1].ItemsProcessed)
}

func TestMongoMessageLogRepository_UniquePerAccount(t *testing.T) {
	db := openTestMongo(t)
	ctx := context.Background()
	repo, err := NewMongoMessageLogRepository(ctx, db)
	require.NoError(t, err)

	require.NoError(t, repo.Record(ctx, &entity.ScannedMessage{AccountID: 1, MessageID: "m1", Outcome: entity.OutcomeCreated}))
	require.NoError(t, repo.Record(ctx, &entity.ScannedMessage{AccountID: 1, MessageID: "m1", Outcome: entity.OutcomeFailed}))
	require.NoError(t, repo.Record(ctx, &entity.ScannedMessage{AccountID: 2, MessageID: "m1", Outcome: entity.OutcomeSkipped}))

	scanned, err := repo.FindScanned(ctx, 1, []string{"m1", "m2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true}, scanned)

	count, err := db.Collection("scannedMessages").CountDocuments(ctx, map[string]interface{}{"messageId": "m1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
