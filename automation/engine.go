// Package automation matches sanitized message content against trigger
// rules and executes the resulting side effects. Everything here is
// best-effort: the engine reports errors but the caller treats them as
// non-fatal.
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// Action types recorded in AutomationLog.
const (
	ActionAutoReply   = "auto_reply"
	ActionLead        = "lead_created"
	ActionLeadNotify  = "sales_notified"
	ActionFollowUp    = "follow_up_scheduled"
	ActionEscalation  = "escalation"
	ActionOutOfOffice = "out_of_office"
)

// DefaultFollowUpDelay is how long after a qualifying message the lead
// follow-up fires.
const DefaultFollowUpDelay = 24 * time.Hour

// Engine implements interfaces.AutomationEngine over a static rule catalog.
type Engine struct {
	rules     []types.AutomationRule
	sentiment []string
	hours     types.BusinessHours
	delay     time.Duration

	replier  interfaces.Replier
	leads    interfaces.LeadService
	notifier interfaces.Notifier
	users    interfaces.Directory
	tasks    interfaces.TaskClient
	logs     interfaces.AutomationLogStore

	logger zerolog.Logger
	now    func() time.Time
}

var _ interfaces.AutomationEngine = (*Engine)(nil)

// Deps bundles the engine's external collaborators.
type Deps struct {
	Replier  interfaces.Replier
	Leads    interfaces.LeadService
	Notifier interfaces.Notifier
	Users    interfaces.Directory
	Tasks    interfaces.TaskClient
	Logs     interfaces.AutomationLogStore
}

// NewEngine creates an automation engine with the default rule catalog.
func NewEngine(deps Deps, hours types.BusinessHours, followUpDelay time.Duration, logger zerolog.Logger) *Engine {
	if followUpDelay <= 0 {
		followUpDelay = DefaultFollowUpDelay
	}
	return &Engine{
		rules:     DefaultCatalog(),
		sentiment: NegativeSentimentKeywords(),
		hours:     hours,
		delay:     followUpDelay,
		replier:   deps.Replier,
		leads:     deps.Leads,
		notifier:  deps.Notifier,
		users:     deps.Users,
		tasks:     deps.Tasks,
		logs:      deps.Logs,
		logger:    logger.With().Str("component", "automation-engine").Logger(),
		now:       time.Now,
	}
}

// Process runs every independent trigger check against the sanitized
// content. Checks never short-circuit each other; every attempted action
// is logged, and all failures come back joined for the caller to record.
func (e *Engine) Process(ctx context.Context, in types.AutomationInput) ([]types.AutomationAction, error) {
	content := strings.ToLower(in.Content)

	var actions []types.AutomationAction
	var errs []error

	category, keywords, reply := e.matchRule(content)
	if category != "" {
		if err := e.autoReply(ctx, in, category, keywords, reply); err != nil {
			errs = append(errs, err)
		} else {
			actions = append(actions, types.AutomationAction{Type: ActionAutoReply, Category: category, Content: reply})
		}
	}

	if category == CategoryLead {
		leadActions, err := e.qualifyLead(ctx, in, keywords)
		actions = append(actions, leadActions...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if matched := matchKeywords(content, e.sentiment); len(matched) > 0 {
		escActions, err := e.escalate(ctx, in, matched)
		actions = append(actions, escActions...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !e.hours.Contains(in.ReceivedAt) {
		if err := e.outOfOffice(ctx, in); err != nil {
			errs = append(errs, err)
		} else {
			actions = append(actions, types.AutomationAction{Type: ActionOutOfOffice, Content: OutOfOfficeTemplate})
		}
	}

	return actions, errors.Join(errs...)
}

// matchRule returns the first catalog category whose keywords appear in
// content, with the keywords that matched and the chosen reply template.
func (e *Engine) matchRule(content string) (category string, matched []string, reply string) {
	for _, rule := range e.rules {
		matched = matchKeywords(content, rule.TriggerKeywords)
		if len(matched) == 0 {
			continue
		}
		reply = rule.ResponseTemplates[len(content)%len(rule.ResponseTemplates)]
		return rule.Category, matched, reply
	}
	return "", nil, ""
}

func matchKeywords(content string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

func (e *Engine) autoReply(ctx context.Context, in types.AutomationInput, category string, keywords []string, reply string) error {
	err := e.replier.Reply(ctx, in.ConversationID, reply)
	e.record(ctx, in, types.AutomationLog{
		ActionType:      ActionAutoReply,
		Category:        category,
		Content:         reply,
		MatchedKeywords: keywords,
	}, err)
	if err != nil {
		return fmt.Errorf("auto-reply failed: %w", err)
	}
	return nil
}

func (e *Engine) qualifyLead(ctx context.Context, in types.AutomationInput, keywords []string) ([]types.AutomationAction, error) {
	var actions []types.AutomationAction
	var errs []error

	leadID, err := e.leads.CreateLead(ctx, types.Lead{
		ConversationID: in.ConversationID,
		UserID:         in.SenderID,
		Source:         "conversation",
		Notes:          fmt.Sprintf("qualified on keywords: %s", strings.Join(keywords, ", ")),
		CreatedAt:      e.now().UTC(),
	})
	e.record(ctx, in, types.AutomationLog{
		ActionType:      ActionLead,
		Category:        CategoryLead,
		MatchedKeywords: keywords,
		Recipient:       leadID,
	}, err)
	if err != nil {
		errs = append(errs, fmt.Errorf("lead creation failed: %w", err))
	} else {
		actions = append(actions, types.AutomationAction{Type: ActionLead, Category: CategoryLead})
	}

	sales, err := e.users.SalesTeam(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("sales team lookup failed: %w", err))
	}
	for _, member := range sales {
		notifyErr := e.notifier.Notify(ctx, member,
			"New qualified lead",
			fmt.Sprintf("Conversation %s qualified as a lead (keywords: %s)", in.ConversationID, strings.Join(keywords, ", ")))
		e.record(ctx, in, types.AutomationLog{
			ActionType:      ActionLeadNotify,
			Category:        CategoryLead,
			MatchedKeywords: keywords,
			Recipient:       member,
		}, notifyErr)
		if notifyErr != nil {
			errs = append(errs, fmt.Errorf("sales notify failed: %w", notifyErr))
		}
	}

	payload, err := json.Marshal(types.FollowUpTask{
		ConversationID: in.ConversationID,
		UserID:         in.SenderID,
		ScheduledFor:   e.now().UTC().Add(e.delay),
	})
	if err == nil {
		_, err = e.tasks.Enqueue(ctx, types.Task{Type: types.TaskTypeFollowUp, Payload: payload}, e.delay)
	}
	e.record(ctx, in, types.AutomationLog{
		ActionType: ActionFollowUp,
		Category:   CategoryLead,
	}, err)
	if err != nil {
		errs = append(errs, fmt.Errorf("follow-up scheduling failed: %w", err))
	} else {
		actions = append(actions, types.AutomationAction{Type: ActionFollowUp, Category: CategoryLead})
	}

	return actions, errors.Join(errs...)
}

func (e *Engine) escalate(ctx context.Context, in types.AutomationInput, keywords []string) ([]types.AutomationAction, error) {
	var actions []types.AutomationAction
	var errs []error

	admins, err := e.users.Administrators(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("administrator lookup failed: %w", err))
	}
	for _, admin := range admins {
		notifyErr := e.notifier.Notify(ctx, admin,
			"Escalation: negative sentiment detected",
			fmt.Sprintf("Conversation %s needs attention (keywords: %s)", in.ConversationID, strings.Join(keywords, ", ")))
		e.record(ctx, in, types.AutomationLog{
			ActionType:      ActionEscalation,
			MatchedKeywords: keywords,
			Recipient:       admin,
		}, notifyErr)
		if notifyErr != nil {
			errs = append(errs, fmt.Errorf("escalation notify failed: %w", notifyErr))
		}
	}
	if err == nil && len(admins) > 0 {
		actions = append(actions, types.AutomationAction{Type: ActionEscalation})
	}

	replyErr := e.replier.Reply(ctx, in.ConversationID, EmpathyTemplate)
	e.record(ctx, in, types.AutomationLog{
		ActionType:      ActionAutoReply,
		Category:        "empathy",
		Content:         EmpathyTemplate,
		MatchedKeywords: keywords,
	}, replyErr)
	if replyErr != nil {
		errs = append(errs, fmt.Errorf("empathy reply failed: %w", replyErr))
	} else {
		actions = append(actions, types.AutomationAction{Type: ActionAutoReply, Category: "empathy", Content: EmpathyTemplate})
	}

	return actions, errors.Join(errs...)
}

func (e *Engine) outOfOffice(ctx context.Context, in types.AutomationInput) error {
	err := e.replier.Reply(ctx, in.ConversationID, OutOfOfficeTemplate)
	e.record(ctx, in, types.AutomationLog{
		ActionType: ActionOutOfOffice,
		Content:    OutOfOfficeTemplate,
	}, err)
	if err != nil {
		return fmt.Errorf("out-of-office reply failed: %w", err)
	}
	return nil
}

// record writes one AutomationLog entry, success or failure. Log-store
// failures are logged locally only.
func (e *Engine) record(ctx context.Context, in types.AutomationInput, entry types.AutomationLog, actionErr error) {
	entry.ID = uuid.New().String()
	entry.ConversationID = in.ConversationID
	entry.UserID = in.SenderID
	entry.Timestamp = e.now().UTC()
	entry.Success = actionErr == nil
	if actionErr != nil {
		entry.Error = actionErr.Error()
	}
	if err := e.logs.InsertLog(ctx, &entry); err != nil {
		e.logger.Error().Err(err).
			Str("conversationId", in.ConversationID).
			Str("actionType", entry.ActionType).
			Msg("Failed to write automation log")
	}
}

// NewFollowUpHandler returns the worker-side handler for scheduled lead
// follow-ups. Idempotent: re-delivery just posts the reminder again.
func NewFollowUpHandler(replier interfaces.Replier, logs interfaces.AutomationLogStore, logger zerolog.Logger) interfaces.TaskHandler {
	followLog := logger.With().Str("component", "follow-up-handler").Logger()
	return func(ctx context.Context, task types.Task) error {
		var follow types.FollowUpTask
		if err := json.Unmarshal(task.Payload, &follow); err != nil {
			return fmt.Errorf("failed to decode follow-up task: %w", err)
		}

		err := replier.Reply(ctx, follow.ConversationID, FollowUpTemplate)
		entry := &types.AutomationLog{
			ID:             uuid.New().String(),
			ConversationID: follow.ConversationID,
			UserID:         follow.UserID,
			ActionType:     ActionFollowUp,
			Category:       CategoryLead,
			Content:        FollowUpTemplate,
			Success:        err == nil,
			Timestamp:      time.Now().UTC(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if logErr := logs.InsertLog(ctx, entry); logErr != nil {
			followLog.Error().Err(logErr).
				Str("conversationId", follow.ConversationID).
				Msg("Failed to write follow-up log")
		}
		if err != nil {
			return fmt.Errorf("follow-up reply failed: %w", err)
		}
		return nil
	}
}
