// Package store implements MongoDB persistence for automation logs.
package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

const collectionLogs = "automation_logs"

const defaultLogLimit = 100

// MongoDBStore implements automation log storage using MongoDB.
type MongoDBStore struct {
	db *mongo.Database
}

// NewMongoDBStore creates a new MongoDB automation log store
func NewMongoDBStore(db *mongo.Database) interfaces.AutomationLogStore {
	return &MongoDBStore{db: db}
}

func (s *MongoDBStore) InsertLog(ctx context.Context, entry *types.AutomationLog) error {
	if _, err := s.db.Collection(collectionLogs).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert automation log: %w", err)
	}
	return nil
}

// ListLogs returns a conversation's most recent automation logs.
func (s *MongoDBStore) ListLogs(ctx context.Context, conversationID string, limit int) ([]*types.AutomationLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	cursor, err := s.db.Collection(collectionLogs).Find(ctx,
		bson.M{"conversationId": conversationID},
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to list automation logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []*types.AutomationLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode automation logs: %w", err)
	}
	return logs, nil
}
