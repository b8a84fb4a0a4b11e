package types

import (
	"time"
)

// AutomationRule is one static trigger rule: a keyword set mapped to a
// response category with its reply templates.
type AutomationRule struct {
	Category          string   `json:"category" bson:"category"`
	TriggerKeywords   []string `json:"triggerKeywords" bson:"triggerKeywords"`
	ResponseTemplates []string `json:"responseTemplates" bson:"responseTemplates"`
}

// AutomationLog records one attempted automation action, success or failure,
// with enough context to reconstruct why it fired.
type AutomationLog struct {
	ID              string    `json:"id" bson:"_id"`
	ConversationID  string    `json:"conversationId" bson:"conversationId"`
	UserID          string    `json:"userId" bson:"userId"`
	ActionType      string    `json:"actionType" bson:"actionType"`
	Category        string    `json:"category,omitempty" bson:"category,omitempty"`
	Content         string    `json:"content,omitempty" bson:"content,omitempty"`
	MatchedKeywords []string  `json:"matchedKeywords,omitempty" bson:"matchedKeywords,omitempty"`
	Recipient       string    `json:"recipient,omitempty" bson:"recipient,omitempty"`
	Success         bool      `json:"success" bson:"success"`
	Error           string    `json:"error,omitempty" bson:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp" bson:"timestamp"`
}

// AutomationAction is one action the engine took for a message.
type AutomationAction struct {
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Content  string `json:"content,omitempty"`
}

// AutomationInput is the sanitized message handed to the engine after
// persistence and audit logging.
type AutomationInput struct {
	ConversationID string
	SenderID       string
	Content        string
	ReceivedAt     time.Time
}

// Lead is a sales lead created from a qualifying message.
type Lead struct {
	ConversationID string    `json:"conversationId" bson:"conversationId"`
	UserID         string    `json:"userId" bson:"userId"`
	Source         string    `json:"source" bson:"source"`
	Notes          string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

// BusinessHours is the weekly window inside which the business replies
// itself; outside it the engine appends an out-of-office auto-reply.
type BusinessHours struct {
	Timezone  string         `json:"timezone"`
	Days      []time.Weekday `json:"days"`
	OpenHour  int            `json:"openHour"`
	CloseHour int            `json:"closeHour"`
}

// DefaultBusinessHours returns Mon-Fri 09:00-18:00 UTC.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{
		Timezone:  "UTC",
		Days:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		OpenHour:  9,
		CloseHour: 18,
	}
}

// Contains reports whether t falls inside the window.
func (h BusinessHours) Contains(t time.Time) bool {
	loc, err := time.LoadLocation(h.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := t.In(loc)
	dayOK := false
	for _, d := range h.Days {
		if local.Weekday() == d {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}
	return local.Hour() >= h.OpenHour && local.Hour() < h.CloseHour
}

// Task is a background job handed to the queue port.
type Task struct {
	Type    string
	Payload []byte
}

// FollowUpTask is the payload of a scheduled lead follow-up.
type FollowUpTask struct {
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	ScheduledFor   time.Time `json:"scheduledFor"`
}

// TaskTypeFollowUp identifies lead follow-up tasks on the queue.
const TaskTypeFollowUp = "automation:followup"
