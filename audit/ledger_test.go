package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// memAuditStore is an in-memory AuditStore with the same counting and
// damping semantics as the MongoDB implementation.
type memAuditStore struct {
	mu     sync.Mutex
	events []*types.AuditEvent
	alerts []*types.SecurityAlert
}

func (m *memAuditStore) InsertEvent(_ context.Context, event *types.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *memAuditStore) CountEvents(_ context.Context, userID, action string, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.events {
		if e.UserID == userID && e.Action == action && !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memAuditStore) QueryEvents(_ context.Context, query types.AuditQuery) ([]*types.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.AuditEvent
	for _, e := range m.events {
		if query.UserID != "" && e.UserID != query.UserID {
			continue
		}
		if query.EventType != "" && e.EventType != query.EventType {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memAuditStore) AggregateStats(_ context.Context, query types.AuditQuery) (*types.AuditStats, error) {
	events, _ := m.QueryEvents(context.Background(), query)
	stats := &types.AuditStats{
		ByEventType: map[string]int64{},
		ByRiskLevel: map[string]int64{},
		ByUser:      map[string]int64{},
	}
	for _, e := range events {
		stats.Total++
		stats.ByEventType[e.EventType]++
		stats.ByRiskLevel[string(e.RiskLevel)]++
		if e.UserID != "" {
			stats.ByUser[e.UserID]++
		}
	}
	return stats, nil
}

func (m *memAuditStore) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*types.AuditEvent
	var deleted int64
	for _, e := range m.events {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

func (m *memAuditStore) InsertAlert(_ context.Context, alert *types.SecurityAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *alert
	m.alerts = append(m.alerts, &copied)
	return nil
}

func (m *memAuditStore) ActiveAlerts(_ context.Context) ([]*types.SecurityAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.SecurityAlert
	for _, a := range m.alerts {
		if a.Status == types.AlertActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAuditStore) HasActiveAlert(_ context.Context, userID, alertType string, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.UserID == userID && a.AlertType == alertType &&
			a.Status == types.AlertActive && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAuditStore) ResolveAlert(_ context.Context, alertID, resolvedBy, resolution string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == alertID && a.Status == types.AlertActive {
			now := time.Now().UTC()
			a.Status = types.AlertResolved
			a.ResolvedBy = resolvedBy
			a.Resolution = resolution
			a.ResolvedAt = &now
			return nil
		}
	}
	return errors.New("alert not found or already resolved")
}

type memArchiver struct {
	archived int64
}

func (m *memArchiver) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (m *memArchiver) CreateMessage(context.Context, *types.Message) error { return nil }
func (m *memArchiver) CreateEncryptedMessage(context.Context, *types.EncryptedMessage) error {
	return nil
}
func (m *memArchiver) TouchConversation(context.Context, string, string, time.Time) error {
	return nil
}
func (m *memArchiver) ArchiveMessagesBefore(_ context.Context, _ time.Time) (int64, error) {
	m.archived = 42
	return m.archived, nil
}

func newTestLedger(store *memAuditStore, archiver *memArchiver) *Ledger {
	if archiver == nil {
		return NewLedger(store, nil, types.DefaultAuditRuleConfig(), types.DefaultRetentionConfig(), zerolog.Nop())
	}
	return NewLedger(store, archiver, types.DefaultAuditRuleConfig(), types.DefaultRetentionConfig(), zerolog.Nop())
}

func loginFailure(user string) *types.AuditEvent {
	return &types.AuditEvent{
		UserID:       user,
		EventType:    EventTypeAuth,
		ResourceType: "session",
		Action:       ActionLoginFailed,
		RiskLevel:    types.RiskMedium,
	}
}

func TestRecordFillsIdentityAndTimestamp(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)

	event, err := ledger.Record(context.Background(), &types.AuditEvent{
		UserID:       "user-1",
		EventType:    EventTypeMessage,
		ResourceType: "message",
		Action:       ActionMessageSent,
		Success:      true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, types.RiskLow, event.RiskLevel)
	assert.Len(t, store.events, 1)
}

func TestRecordRejectsIncompleteEvents(t *testing.T) {
	ledger := newTestLedger(&memAuditStore{}, nil)

	_, err := ledger.Record(context.Background(), nil)
	assert.Error(t, err)

	_, err = ledger.Record(context.Background(), &types.AuditEvent{EventType: EventTypeAuth})
	assert.Error(t, err)
}

func TestBruteForceFiresOnFifthFailure(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := ledger.Record(ctx, loginFailure("user-1"))
		require.NoError(t, err)
	}
	alerts, err := ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts, "four failures must not trigger")

	_, err = ledger.Record(ctx, loginFailure("user-1"))
	require.NoError(t, err)

	alerts, err = ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertBruteForce, alerts[0].AlertType)
	assert.Equal(t, types.RiskCritical, alerts[0].Severity)
	assert.Equal(t, "user-1", alerts[0].UserID)
}

func TestAlertIsItselfAudited(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := ledger.Record(ctx, loginFailure("user-1"))
		require.NoError(t, err)
	}

	var violations int
	for _, e := range store.events {
		if e.EventType == EventTypeCompliance {
			violations++
			assert.Equal(t, AlertBruteForce, e.Action)
		}
	}
	assert.Equal(t, 1, violations)
}

func TestActiveAlertDampsRepeatFiring(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		_, err := ledger.Record(ctx, loginFailure("user-1"))
		require.NoError(t, err)
	}

	alerts, err := ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "continued failures inside the window reuse the open alert")
}

func TestExportThresholdIsStrictlyAbove(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)
	ctx := context.Background()

	export := func() *types.AuditEvent {
		return &types.AuditEvent{
			UserID:       "user-2",
			EventType:    EventTypeDataAccess,
			ResourceType: "export",
			Action:       ActionDataExport,
			Success:      true,
		}
	}

	for i := 0; i < 5; i++ {
		_, err := ledger.Record(ctx, export())
		require.NoError(t, err)
	}
	alerts, err := ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts, "five exports in the window is still allowed")

	_, err = ledger.Record(ctx, export())
	require.NoError(t, err)

	alerts, err = ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExcessiveExport, alerts[0].AlertType)
	assert.Equal(t, types.RiskHigh, alerts[0].Severity)
}

func TestRulesScopedPerUser(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.Record(ctx, loginFailure("user-a"))
		require.NoError(t, err)
		_, err = ledger.Record(ctx, loginFailure("user-b"))
		require.NoError(t, err)
	}

	alerts, err := ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts, "three failures each is under the threshold for both users")
}

func TestResolveAlertIsTerminal(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := ledger.Record(ctx, loginFailure("user-1"))
		require.NoError(t, err)
	}
	alerts, err := ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	require.NoError(t, ledger.ResolveAlert(ctx, alerts[0].ID, "admin-1", "password reset enforced"))

	alerts, err = ledger.ActiveAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	assert.Error(t, ledger.ResolveAlert(ctx, "missing", "admin-1", "n/a"))
}

func TestReportAggregates(t *testing.T) {
	store := &memAuditStore{}
	ledger := newTestLedger(store, nil)
	ctx := context.Background()

	_, err := ledger.Record(ctx, loginFailure("user-1"))
	require.NoError(t, err)
	_, err = ledger.Record(ctx, &types.AuditEvent{
		UserID:       "user-1",
		EventType:    EventTypeMessage,
		ResourceType: "message",
		Action:       ActionMessageSent,
		Success:      true,
	})
	require.NoError(t, err)

	report, err := ledger.Report(ctx, types.AuditQuery{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Stats.Total)
	assert.Equal(t, int64(1), report.Stats.ByEventType[EventTypeAuth])
	assert.Equal(t, int64(1), report.Stats.ByEventType[EventTypeMessage])
	assert.Len(t, report.Events, 2)
}

func TestEnforceRetention(t *testing.T) {
	store := &memAuditStore{}
	archiver := &memArchiver{}
	ledger := newTestLedger(store, archiver)
	ctx := context.Background()

	old := &types.AuditEvent{
		ID:           "old-1",
		EventType:    EventTypeMessage,
		ResourceType: "message",
		Action:       ActionMessageSent,
		Timestamp:    time.Now().UTC().Add(-7 * 365 * 24 * time.Hour),
	}
	require.NoError(t, store.InsertEvent(ctx, old))
	_, err := ledger.Record(ctx, loginFailure("user-1"))
	require.NoError(t, err)

	require.NoError(t, ledger.EnforceRetention(ctx))

	assert.Len(t, store.events, 1, "only the expired event is purged")
	assert.Equal(t, int64(42), archiver.archived)
}
