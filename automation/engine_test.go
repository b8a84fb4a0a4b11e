package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

var (
	businessTime = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC) // Wednesday
	sundayTime   = time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
)

type fakeReplier struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (f *fakeReplier) Reply(_ context.Context, _ string, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, content)
	return nil
}

type fakeLeads struct {
	leads []types.Lead
	err   error
}

func (f *fakeLeads) CreateLead(_ context.Context, lead types.Lead) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.leads = append(f.leads, lead)
	return "lead-1", nil
}

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) Notify(_ context.Context, userID, _, _ string) error {
	f.notified = append(f.notified, userID)
	return nil
}

type fakeDirectory struct {
	admins []string
	sales  []string
}

func (f *fakeDirectory) Administrators(context.Context) ([]string, error) { return f.admins, nil }
func (f *fakeDirectory) SalesTeam(context.Context) ([]string, error)      { return f.sales, nil }

type enqueued struct {
	task  types.Task
	delay time.Duration
}

type fakeTasks struct {
	tasks []enqueued
}

func (f *fakeTasks) Enqueue(_ context.Context, task types.Task, delay time.Duration) (string, error) {
	f.tasks = append(f.tasks, enqueued{task: task, delay: delay})
	return "task-1", nil
}
func (f *fakeTasks) Close() error { return nil }

type memLogStore struct {
	mu      sync.Mutex
	entries []*types.AutomationLog
}

func (m *memLogStore) InsertLog(_ context.Context, entry *types.AutomationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *memLogStore) ListLogs(_ context.Context, conversationID string, _ int) ([]*types.AutomationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.AutomationLog
	for _, e := range m.entries {
		if e.ConversationID == conversationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLogStore) byAction(action string) []*types.AutomationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.AutomationLog
	for _, e := range m.entries {
		if e.ActionType == action {
			out = append(out, e)
		}
	}
	return out
}

type engineFixture struct {
	engine   *Engine
	replier  *fakeReplier
	leads    *fakeLeads
	notifier *fakeNotifier
	tasks    *fakeTasks
	logs     *memLogStore
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		replier:  &fakeReplier{},
		leads:    &fakeLeads{},
		notifier: &fakeNotifier{},
		tasks:    &fakeTasks{},
		logs:     &memLogStore{},
	}
	f.engine = NewEngine(Deps{
		Replier:  f.replier,
		Leads:    f.leads,
		Notifier: f.notifier,
		Users:    &fakeDirectory{admins: []string{"admin-1", "admin-2"}, sales: []string{"sales-1"}},
		Tasks:    f.tasks,
		Logs:     f.logs,
	}, types.DefaultBusinessHours(), time.Hour, zerolog.Nop())
	return f
}

func input(content string, at time.Time) types.AutomationInput {
	return types.AutomationInput{
		ConversationID: "conv-1",
		SenderID:       "user-1",
		Content:        content,
		ReceivedAt:     at,
	}
}

func TestFirstMatchWinsSingleAutoReply(t *testing.T) {
	f := newEngineFixture(t)

	actions, err := f.engine.Process(context.Background(),
		input("Hello! How much does the premium plan cost?", businessTime))
	require.NoError(t, err)

	require.Len(t, actions, 1)
	assert.Equal(t, ActionAutoReply, actions[0].Type)
	assert.Equal(t, CategoryGreeting, actions[0].Category)

	replies := f.logs.byAction(ActionAutoReply)
	require.Len(t, replies, 1, "matching two categories must still fire one reply")
	assert.Equal(t, CategoryGreeting, replies[0].Category)
	assert.Contains(t, replies[0].MatchedKeywords, "hello")
	assert.True(t, replies[0].Success)

	assert.Len(t, f.replier.replies, 1)
}

func TestLeadQualification(t *testing.T) {
	f := newEngineFixture(t)

	actions, err := f.engine.Process(context.Background(),
		input("We are interested in a demo of the platform", businessTime))
	require.NoError(t, err)

	var actionTypes []string
	for _, a := range actions {
		actionTypes = append(actionTypes, a.Type)
	}
	assert.ElementsMatch(t, []string{ActionAutoReply, ActionLead, ActionFollowUp}, actionTypes)

	require.Len(t, f.leads.leads, 1)
	assert.Equal(t, "conv-1", f.leads.leads[0].ConversationID)
	assert.Equal(t, "user-1", f.leads.leads[0].UserID)

	assert.Equal(t, []string{"sales-1"}, f.notifier.notified, "sales team is told about the new lead")
	salesLogs := f.logs.byAction(ActionLeadNotify)
	require.Len(t, salesLogs, 1)
	assert.Equal(t, "sales-1", salesLogs[0].Recipient)
	assert.True(t, salesLogs[0].Success)

	require.Len(t, f.tasks.tasks, 1)
	assert.Equal(t, types.TaskTypeFollowUp, f.tasks.tasks[0].task.Type)
	assert.Equal(t, time.Hour, f.tasks.tasks[0].delay)

	var follow types.FollowUpTask
	require.NoError(t, json.Unmarshal(f.tasks.tasks[0].task.Payload, &follow))
	assert.Equal(t, "conv-1", follow.ConversationID)
}

func TestNegativeSentimentEscalates(t *testing.T) {
	f := newEngineFixture(t)

	actions, err := f.engine.Process(context.Background(),
		input("This is unacceptable, I want a refund", businessTime))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"admin-1", "admin-2"}, f.notifier.notified)

	escalations := f.logs.byAction(ActionEscalation)
	assert.Len(t, escalations, 2, "one log entry per notified administrator")

	var foundEmpathy bool
	for _, a := range actions {
		if a.Type == ActionAutoReply && a.Category == "empathy" {
			foundEmpathy = true
		}
	}
	assert.True(t, foundEmpathy, "escalation includes an empathetic reply")
	assert.Contains(t, f.replier.replies, EmpathyTemplate)
}

func TestOutOfOfficeAppendedRegardless(t *testing.T) {
	f := newEngineFixture(t)

	actions, err := f.engine.Process(context.Background(),
		input("Hello there", sundayTime))
	require.NoError(t, err)

	var actionTypes []string
	for _, a := range actions {
		actionTypes = append(actionTypes, a.Type)
	}
	assert.Contains(t, actionTypes, ActionAutoReply)
	assert.Contains(t, actionTypes, ActionOutOfOffice)

	assert.Len(t, f.replier.replies, 2)
	assert.Contains(t, f.replier.replies, OutOfOfficeTemplate)
}

func TestNoTriggersInsideHours(t *testing.T) {
	f := newEngineFixture(t)

	actions, err := f.engine.Process(context.Background(),
		input("attached the signed contract from yesterday", businessTime))
	require.NoError(t, err)
	assert.Empty(t, actions)
	assert.Empty(t, f.replier.replies)
	assert.Empty(t, f.logs.entries)
}

func TestReplyFailureIsLoggedAndReturned(t *testing.T) {
	f := newEngineFixture(t)
	f.replier.err = errors.New("messaging layer down")

	actions, err := f.engine.Process(context.Background(),
		input("Hello there", businessTime))
	require.Error(t, err)
	assert.Empty(t, actions)

	replies := f.logs.byAction(ActionAutoReply)
	require.Len(t, replies, 1)
	assert.False(t, replies[0].Success)
	assert.Contains(t, replies[0].Error, "messaging layer down")
}

func TestFollowUpHandler(t *testing.T) {
	replier := &fakeReplier{}
	logs := &memLogStore{}
	handler := NewFollowUpHandler(replier, logs, zerolog.Nop())

	payload, err := json.Marshal(types.FollowUpTask{
		ConversationID: "conv-9",
		UserID:         "user-9",
		ScheduledFor:   businessTime,
	})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), types.Task{Type: types.TaskTypeFollowUp, Payload: payload}))
	assert.Equal(t, []string{FollowUpTemplate}, replier.replies)

	entries, err := logs.ListLogs(context.Background(), "conv-9", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionFollowUp, entries[0].ActionType)
	assert.True(t, entries[0].Success)
}
