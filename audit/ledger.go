// Package audit provides the append-only security audit ledger and the
// rate rules that raise alerts over its history.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

const (
	// Event types
	EventTypeMessage    = "message"
	EventTypeAuth       = "authentication"
	EventTypeDataAccess = "data_access"
	EventTypeKey        = "key_management"
	EventTypeCompliance = "compliance_violation"

	// Actions
	ActionMessageSent     = "message_sent"
	ActionMessageRead     = "message_read"
	ActionMessageBlocked  = "message_blocked"
	ActionLoginFailed     = "login_failed"
	ActionDataExport      = "data_export"
	ActionFileDownload    = "file_download"
	ActionKeyRotated      = "key_rotated"
	ActionAutomationError = "automation_error"

	// Alert types
	AlertExcessiveExport = "GDPR_EXCESSIVE_DATA_EXPORT"
	AlertBruteForce      = "BRUTE_FORCE_ATTEMPT"
	AlertFileAccess      = "SUSPICIOUS_FILE_ACCESS"
)

// rateRule is one windowed aggregate check over a user's recent events.
// When inclusive is set the rule fires at count >= threshold, otherwise
// only strictly above it.
type rateRule struct {
	action    string
	alertType string
	severity  types.RiskLevel
	inclusive bool
	threshold func(types.AuditRuleConfig) int
	window    func(types.AuditRuleConfig) time.Duration
}

var rateRules = []rateRule{
	{
		action:    ActionDataExport,
		alertType: AlertExcessiveExport,
		severity:  types.RiskHigh,
		threshold: func(c types.AuditRuleConfig) int { return c.ExportThreshold },
		window:    func(c types.AuditRuleConfig) time.Duration { return c.ExportWindow },
	},
	{
		action:    ActionLoginFailed,
		alertType: AlertBruteForce,
		severity:  types.RiskCritical,
		inclusive: true,
		threshold: func(c types.AuditRuleConfig) int { return c.LoginFailThreshold },
		window:    func(c types.AuditRuleConfig) time.Duration { return c.LoginFailWindow },
	},
	{
		action:    ActionFileDownload,
		alertType: AlertFileAccess,
		severity:  types.RiskHigh,
		threshold: func(c types.AuditRuleConfig) int { return c.DownloadThreshold },
		window:    func(c types.AuditRuleConfig) time.Duration { return c.DownloadWindow },
	},
}

// Ledger implements interfaces.AuditLedger on an AuditStore. Events are
// append-only; only retention deletes them.
type Ledger struct {
	store     interfaces.AuditStore
	archiver  interfaces.MessageRepository
	rules     types.AuditRuleConfig
	retention types.RetentionConfig
	logger    zerolog.Logger
	now       func() time.Time
}

var _ interfaces.AuditLedger = (*Ledger)(nil)

// NewLedger creates the audit ledger. archiver may be nil when message
// archival is handled elsewhere.
func NewLedger(store interfaces.AuditStore, archiver interfaces.MessageRepository, rules types.AuditRuleConfig, retention types.RetentionConfig, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:     store,
		archiver:  archiver,
		rules:     rules,
		retention: retention,
		logger:    logger.With().Str("component", "audit-ledger").Logger(),
		now:       time.Now,
	}
}

// Record appends an event and evaluates rate rules over the user's recent
// history. Rule-evaluation failures are logged, never returned; the event
// itself is already durable at that point.
func (l *Ledger) Record(ctx context.Context, event *types.AuditEvent) (*types.AuditEvent, error) {
	if event == nil {
		return nil, fmt.Errorf("event cannot be nil")
	}
	if event.EventType == "" || event.Action == "" {
		return nil, fmt.Errorf("event type and action are required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if event.RiskLevel == "" {
		event.RiskLevel = types.RiskLow
	}

	if err := l.store.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record audit event: %w", err)
	}

	if event.UserID != "" {
		if err := l.evaluateRules(ctx, event); err != nil {
			l.logger.Error().Err(err).
				Str("auditId", event.ID).
				Str("userId", event.UserID).
				Msg("Rate-rule evaluation failed")
		}
	}
	return event, nil
}

// evaluateRules counts the user's recent events per matching rule. The
// event just recorded is included in the count. A still-active alert of
// the same type damps repeat firing inside the window. Concurrent
// evaluations for the same user can still double-fire at the exact
// boundary count; alerts are advisory, so that stays a known relaxation.
func (l *Ledger) evaluateRules(ctx context.Context, event *types.AuditEvent) error {
	for _, rule := range rateRules {
		if rule.action != event.Action {
			continue
		}

		since := l.now().UTC().Add(-rule.window(l.rules))
		count, err := l.store.CountEvents(ctx, event.UserID, rule.action, since)
		if err != nil {
			return fmt.Errorf("failed to count %s events: %w", rule.action, err)
		}

		threshold := int64(rule.threshold(l.rules))
		fired := count > threshold
		if rule.inclusive {
			fired = count >= threshold
		}
		if !fired {
			continue
		}

		exists, err := l.store.HasActiveAlert(ctx, event.UserID, rule.alertType, since)
		if err != nil {
			return fmt.Errorf("failed to check active alerts: %w", err)
		}
		if exists {
			continue
		}

		if err := l.raiseAlert(ctx, event.UserID, rule, count); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) raiseAlert(ctx context.Context, userID string, rule rateRule, count int64) error {
	now := l.now().UTC()
	alert := &types.SecurityAlert{
		ID:        uuid.New().String(),
		AlertType: rule.alertType,
		Severity:  rule.severity,
		Description: fmt.Sprintf("%d %s events within %s for user %s",
			count, rule.action, rule.window(l.rules), userID),
		UserID:    userID,
		Status:    types.AlertActive,
		CreatedAt: now,
	}
	if err := l.store.InsertAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to raise %s alert: %w", rule.alertType, err)
	}

	// recorded directly so the violation event cannot re-trigger rules
	violation := &types.AuditEvent{
		ID:           uuid.New().String(),
		UserID:       userID,
		EventType:    EventTypeCompliance,
		ResourceType: "security_alert",
		ResourceID:   alert.ID,
		Action:       rule.alertType,
		RiskLevel:    rule.severity,
		Metadata:     map[string]interface{}{"count": count, "window": rule.window(l.rules).String()},
		Success:      true,
		Timestamp:    now,
	}
	if err := l.store.InsertEvent(ctx, violation); err != nil {
		return fmt.Errorf("failed to record compliance violation: %w", err)
	}

	l.logger.Warn().
		Str("alertType", rule.alertType).
		Str("userId", userID).
		Int64("count", count).
		Msg("Security alert raised")
	return nil
}

// Report returns matching events plus aggregate stats.
func (l *Ledger) Report(ctx context.Context, query types.AuditQuery) (*types.AuditReport, error) {
	events, err := l.store.QueryEvents(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	stats, err := l.store.AggregateStats(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate audit stats: %w", err)
	}
	return &types.AuditReport{Events: events, Stats: *stats}, nil
}

// ActiveAlerts lists unresolved security alerts.
func (l *Ledger) ActiveAlerts(ctx context.Context) ([]*types.SecurityAlert, error) {
	return l.store.ActiveAlerts(ctx)
}

// ResolveAlert transitions an alert to resolved. Resolution is terminal.
func (l *Ledger) ResolveAlert(ctx context.Context, alertID, resolvedBy, resolution string) error {
	if err := l.store.ResolveAlert(ctx, alertID, resolvedBy, resolution); err != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", alertID, err)
	}
	l.logger.Info().
		Str("alertId", alertID).
		Str("resolvedBy", resolvedBy).
		Msg("Security alert resolved")
	return nil
}

// EnforceRetention deletes audit events past the compliance horizon and
// archives old messages. Runs on the maintenance path only.
func (l *Ledger) EnforceRetention(ctx context.Context) error {
	now := l.now().UTC()

	deleted, err := l.store.DeleteEventsBefore(ctx, now.Add(-l.retention.AuditRetention))
	if err != nil {
		return fmt.Errorf("failed to purge expired audit events: %w", err)
	}

	var archived int64
	if l.archiver != nil {
		archived, err = l.archiver.ArchiveMessagesBefore(ctx, now.Add(-l.retention.MessageArchiveAfter))
		if err != nil {
			return fmt.Errorf("failed to archive old messages: %w", err)
		}
	}

	l.logger.Info().
		Int64("eventsDeleted", deleted).
		Int64("messagesArchived", archived).
		Msg("Retention enforced")
	return nil
}
