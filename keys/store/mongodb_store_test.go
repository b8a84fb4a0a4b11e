package store

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

func TestRotationUpdateReplacesVersionsArray(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	current := &types.ConversationKey{
		ConversationID: "conv-1",
		Version:        1,
		Active:         true,
		Versions: []types.ConversationKeyVersion{
			{Version: 1, Active: true},
		},
	}
	next := types.ConversationKeyVersion{Version: 2, Active: true}

	update := rotationUpdate(current, 1, next, now)

	// a single $set keeps the update free of conflicting operator paths;
	// $push on versions alongside $set on versions.$[old] is rejected by
	// the server
	if len(update) != 1 {
		t.Fatalf("update has %d operators, want 1 ($set only): %v", len(update), update)
	}
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("update is missing $set: %v", update)
	}
	for path := range set {
		if path != "version" && path != "active" && path != "updatedAt" && path != "versions" {
			t.Fatalf("unexpected update path %q", path)
		}
	}

	if set["version"] != 2 {
		t.Errorf("active version pointer = %v, want 2", set["version"])
	}
	versions, ok := set["versions"].([]types.ConversationKeyVersion)
	if !ok {
		t.Fatalf("versions is not a full-array replacement: %T", set["versions"])
	}
	if len(versions) != 2 {
		t.Fatalf("versions length = %d, want 2", len(versions))
	}
	if versions[0].Active {
		t.Error("rotated-from version must be deactivated")
	}
	if versions[0].RotatedAt == nil || !versions[0].RotatedAt.Equal(now) {
		t.Errorf("rotated-from version rotatedAt = %v, want %v", versions[0].RotatedAt, now)
	}
	if !versions[1].Active || versions[1].Version != 2 {
		t.Errorf("appended version = %+v, want active version 2", versions[1])
	}
}

func TestRotationUpdatePreservesHistoricalVersions(t *testing.T) {
	now := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)
	current := &types.ConversationKey{
		ConversationID: "conv-1",
		Version:        2,
		Active:         true,
		Versions: []types.ConversationKeyVersion{
			{Version: 1, Active: false, RotatedAt: &earlier},
			{Version: 2, Active: true},
		},
	}

	update := rotationUpdate(current, 2, types.ConversationKeyVersion{Version: 3, Active: true}, now)

	versions := update["$set"].(bson.M)["versions"].([]types.ConversationKeyVersion)
	if len(versions) != 3 {
		t.Fatalf("versions length = %d, want 3", len(versions))
	}
	if versions[0].Version != 1 || versions[0].Active || !versions[0].RotatedAt.Equal(earlier) {
		t.Errorf("version 1 entry changed: %+v", versions[0])
	}

	var active int
	for _, v := range versions {
		if v.Active {
			active++
		}
	}
	if active != 1 {
		t.Errorf("active versions = %d, want exactly 1", active)
	}
}
