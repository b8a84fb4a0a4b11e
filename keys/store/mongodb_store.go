// Package store implements MongoDB persistence for conversation keys.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/keys"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

const collectionKeys = "conversation_keys"

// MongoDBStore implements conversation key storage using MongoDB. One
// document per conversation, keyed by conversation id, with every wrapped
// version in a versions array. The _id uniqueness gives racing first-sends
// their single-winner semantics, and rotation is a single-document update,
// so there is never a window with zero or two active versions.
type MongoDBStore struct {
	db *mongo.Database
}

// NewMongoDBStore creates a new MongoDB conversation key store
func NewMongoDBStore(db *mongo.Database) interfaces.KeyStore {
	return &MongoDBStore{db: db}
}

// Get retrieves the key document for a conversation; (nil, nil) when absent.
func (s *MongoDBStore) Get(ctx context.Context, conversationID string) (*types.ConversationKey, error) {
	var doc types.ConversationKey
	err := s.db.Collection(collectionKeys).
		FindOne(ctx, bson.M{"_id": conversationID}).
		Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation key: %w", err)
	}
	return &doc, nil
}

// Create inserts a brand-new key document. A duplicate insert from a racing
// caller surfaces as keys.ErrKeyExists so the caller re-reads the winner
// instead of producing two live keys.
func (s *MongoDBStore) Create(ctx context.Context, key *types.ConversationKey) error {
	key.UpdatedAt = time.Now().UTC()
	if key.CreatedAt.IsZero() {
		key.CreatedAt = key.UpdatedAt
	}

	_, err := s.db.Collection(collectionKeys).InsertOne(ctx, key)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Debug().
				Str("conversationId", key.ConversationID).
				Msg("Duplicate conversation key insert, concurrent creation")
			return keys.ErrKeyExists
		}
		return fmt.Errorf("failed to insert conversation key: %w", err)
	}

	log.Debug().
		Str("conversationId", key.ConversationID).
		Int("version", key.Version).
		Msg("Conversation key stored")
	return nil
}

// Rotate deactivates fromVersion and appends next as the active version.
// The rewritten versions array is computed from the fetched document and
// written with a single $set; filtering the update on the current version
// makes the read-modify-write a compare-and-swap, so a concurrent rotation
// leaves the filter unmatched and the caller gets keys.ErrKeyConflict.
// Mixing $push on versions with $set on versions.$[old] in one update is
// rejected by the server as conflicting paths, so the whole array is
// replaced instead.
func (s *MongoDBStore) Rotate(ctx context.Context, conversationID string, fromVersion int, next types.ConversationKeyVersion) error {
	current, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if current == nil {
		return keys.ErrKeyNotFound
	}
	if current.Version != fromVersion {
		return keys.ErrKeyConflict
	}

	res, err := s.db.Collection(collectionKeys).UpdateOne(
		ctx,
		bson.M{"_id": conversationID, "version": fromVersion},
		rotationUpdate(current, fromVersion, next, time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("failed to rotate conversation key: %w", err)
	}
	if res.MatchedCount == 0 {
		return keys.ErrKeyConflict
	}

	log.Debug().
		Str("conversationId", conversationID).
		Int("fromVersion", fromVersion).
		Int("toVersion", next.Version).
		Msg("Conversation key rotated")
	return nil
}

// rotationUpdate builds the conflict-free rotation update: one $set that
// replaces the versions array wholesale with fromVersion deactivated and
// next appended, and moves the active-version pointer.
func rotationUpdate(current *types.ConversationKey, fromVersion int, next types.ConversationKeyVersion, now time.Time) bson.M {
	versions := make([]types.ConversationKeyVersion, 0, len(current.Versions)+1)
	for _, v := range current.Versions {
		if v.Version == fromVersion {
			v.Active = false
			rotated := now
			v.RotatedAt = &rotated
		}
		versions = append(versions, v)
	}
	versions = append(versions, next)

	return bson.M{
		"$set": bson.M{
			"version":   next.Version,
			"active":    true,
			"updatedAt": now,
			"versions":  versions,
		},
	}
}
