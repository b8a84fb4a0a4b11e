// Package store implements MongoDB persistence for messages and their
// encrypted counterparts.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

const (
	collectionMessages      = "messages"
	collectionEncrypted     = "encrypted_messages"
	collectionConversations = "conversations"
)

// MongoDBStore implements interfaces.MessageRepository on MongoDB. The
// write methods participate in a session transaction when called with the
// context WithTransaction hands to fn, so a message and its ciphertext are
// committed or rolled back together.
type MongoDBStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDBStore creates a new MongoDB message repository
func NewMongoDBStore(client *mongo.Client, db *mongo.Database) interfaces.MessageRepository {
	return &MongoDBStore{client: client, db: db}
}

// WithTransaction runs fn inside one Mongo session transaction.
func (s *MongoDBStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx context.Context) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

func (s *MongoDBStore) CreateMessage(ctx context.Context, msg *types.Message) error {
	if _, err := s.db.Collection(collectionMessages).InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (s *MongoDBStore) CreateEncryptedMessage(ctx context.Context, enc *types.EncryptedMessage) error {
	if _, err := s.db.Collection(collectionEncrypted).InsertOne(ctx, enc); err != nil {
		return fmt.Errorf("failed to insert encrypted message: %w", err)
	}
	return nil
}

// TouchConversation moves the conversation's last-message pointer.
func (s *MongoDBStore) TouchConversation(ctx context.Context, conversationID, lastMessageID string, at time.Time) error {
	_, err := s.db.Collection(collectionConversations).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$set":         bson.M{"lastMessageId": lastMessageID, "lastMessageAt": at},
			"$setOnInsert": bson.M{"createdAt": at},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update conversation pointer: %w", err)
	}
	return nil
}

// ArchiveMessagesBefore marks messages older than cutoff as archived.
// The records stay queryable; nothing is deleted here.
func (s *MongoDBStore) ArchiveMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.Collection(collectionMessages).UpdateMany(ctx,
		bson.M{"createdAt": bson.M{"$lt": cutoff}, "archived": false},
		bson.M{"$set": bson.M{"archived": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to archive messages: %w", err)
	}
	return result.ModifiedCount, nil
}
