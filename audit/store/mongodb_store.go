// Package store implements MongoDB persistence for audit events and alerts.
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
	collectionEvents = "audit_events"
	collectionAlerts = "security_alerts"
)

const maxReportEvents = 1000

// MongoDBStore implements audit persistence using MongoDB. Events are
// insert-only; the sole delete path is retention.
type MongoDBStore struct {
	db *mongo.Database
}

// NewMongoDBStore creates a new MongoDB audit store
func NewMongoDBStore(db *mongo.Database) interfaces.AuditStore {
	return &MongoDBStore{db: db}
}

func (s *MongoDBStore) InsertEvent(ctx context.Context, event *types.AuditEvent) error {
	if _, err := s.db.Collection(collectionEvents).InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// CountEvents counts a user's events for one action since the window start.
func (s *MongoDBStore) CountEvents(ctx context.Context, userID, action string, since time.Time) (int64, error) {
	count, err := s.db.Collection(collectionEvents).CountDocuments(ctx, bson.M{
		"userId":    userID,
		"action":    action,
		"timestamp": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

func (s *MongoDBStore) QueryEvents(ctx context.Context, query types.AuditQuery) ([]*types.AuditEvent, error) {
	cursor, err := s.db.Collection(collectionEvents).Find(ctx, eventFilter(query),
		options.Find().
			SetSort(bson.D{{Key: "timestamp", Value: -1}}).
			SetLimit(maxReportEvents))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*types.AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode audit events: %w", err)
	}
	return events, nil
}

// AggregateStats computes event counts grouped by type, risk level and user
// in a single aggregation pipeline.
func (s *MongoDBStore) AggregateStats(ctx context.Context, query types.AuditQuery) (*types.AuditStats, error) {
	pipeline := []bson.M{
		{"$match": eventFilter(query)},
		{"$facet": bson.M{
			"total": []bson.M{{"$count": "count"}},
			"byEventType": []bson.M{
				{"$group": bson.M{"_id": "$eventType", "count": bson.M{"$sum": 1}}},
			},
			"byRiskLevel": []bson.M{
				{"$group": bson.M{"_id": "$riskLevel", "count": bson.M{"$sum": 1}}},
			},
			"byUser": []bson.M{
				{"$match": bson.M{"userId": bson.M{"$ne": ""}}},
				{"$group": bson.M{"_id": "$userId", "count": bson.M{"$sum": 1}}},
			},
		}},
	}

	cursor, err := s.db.Collection(collectionEvents).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit stats: %w", err)
	}
	defer cursor.Close(ctx)

	var raw []struct {
		Total []struct {
			Count int64 `bson:"count"`
		} `bson:"total"`
		ByEventType []bucket `bson:"byEventType"`
		ByRiskLevel []bucket `bson:"byRiskLevel"`
		ByUser      []bucket `bson:"byUser"`
	}
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode audit stats: %w", err)
	}

	stats := &types.AuditStats{
		ByEventType: map[string]int64{},
		ByRiskLevel: map[string]int64{},
		ByUser:      map[string]int64{},
	}
	if len(raw) == 0 {
		return stats, nil
	}
	if len(raw[0].Total) > 0 {
		stats.Total = raw[0].Total[0].Count
	}
	for _, b := range raw[0].ByEventType {
		stats.ByEventType[b.ID] = b.Count
	}
	for _, b := range raw[0].ByRiskLevel {
		stats.ByRiskLevel[b.ID] = b.Count
	}
	for _, b := range raw[0].ByUser {
		stats.ByUser[b.ID] = b.Count
	}
	return stats, nil
}

type bucket struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (s *MongoDBStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.Collection(collectionEvents).DeleteMany(ctx, bson.M{
		"timestamp": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired audit events: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *MongoDBStore) InsertAlert(ctx context.Context, alert *types.SecurityAlert) error {
	if _, err := s.db.Collection(collectionAlerts).InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("failed to insert security alert: %w", err)
	}
	return nil
}

func (s *MongoDBStore) ActiveAlerts(ctx context.Context) ([]*types.SecurityAlert, error) {
	cursor, err := s.db.Collection(collectionAlerts).Find(ctx,
		bson.M{"status": types.AlertActive},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []*types.SecurityAlert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode active alerts: %w", err)
	}
	return alerts, nil
}

// HasActiveAlert reports whether the user already has an unresolved alert
// of alertType raised since the window start.
func (s *MongoDBStore) HasActiveAlert(ctx context.Context, userID, alertType string, since time.Time) (bool, error) {
	count, err := s.db.Collection(collectionAlerts).CountDocuments(ctx, bson.M{
		"userId":    userID,
		"alertType": alertType,
		"status":    types.AlertActive,
		"createdAt": bson.M{"$gte": since},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check active alerts: %w", err)
	}
	return count > 0, nil
}

func (s *MongoDBStore) ResolveAlert(ctx context.Context, alertID, resolvedBy, resolution string) error {
	now := time.Now().UTC()
	result, err := s.db.Collection(collectionAlerts).UpdateOne(ctx,
		bson.M{"_id": alertID, "status": types.AlertActive},
		bson.M{"$set": bson.M{
			"status":     types.AlertResolved,
			"resolvedBy": resolvedBy,
			"resolution": resolution,
			"resolvedAt": now,
		}})
	if err != nil {
		return fmt.Errorf("failed to resolve alert: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("alert %s not found or already resolved", alertID)
	}
	return nil
}

// eventFilter translates an AuditQuery into a Mongo filter.
func eventFilter(query types.AuditQuery) bson.M {
	filter := bson.M{}
	ts := bson.M{}
	if !query.Start.IsZero() {
		ts["$gte"] = query.Start
	}
	if !query.End.IsZero() {
		ts["$lte"] = query.End
	}
	if len(ts) > 0 {
		filter["timestamp"] = ts
	}
	if query.UserID != "" {
		filter["userId"] = query.UserID
	}
	if query.EventType != "" {
		filter["eventType"] = query.EventType
	}
	if query.RiskLevel != "" {
		filter["riskLevel"] = query.RiskLevel
	}
	return filter
}
