// Package pipeline orchestrates the send path: scan, encrypt, persist,
// audit, automate. It is the single write entry point consumed by the
// messaging CRUD layer.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/audit"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/envelope"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// SendStatus is the terminal state of one send attempt.
type SendStatus string

const (
	StatusSent     SendStatus = "sent"
	StatusRejected SendStatus = "rejected"
	StatusFailed   SendStatus = "failed"
)

// SendInput is one message send request.
type SendInput struct {
	ConversationID string
	SenderID       string
	RecipientID    string
	Content        string
	Type           types.MessageType
	FileRef        *types.FileRef
	IPAddress      string
	UserAgent      string
}

// SendResult reports the terminal state, the stored message and every DLP
// finding, including the medium and low severity ones on an allowed send.
type SendResult struct {
	Status    SendStatus
	Message   *types.Message
	Encrypted *types.EncryptedMessage
	Findings  []types.Violation
}

// Service wires the stages together. All collaborators are injected; the
// service holds no mutable state of its own.
type Service struct {
	scanner    interfaces.ContentScanner
	keyManager interfaces.KeyManager
	cipher     *envelope.Engine
	repo       interfaces.MessageRepository
	ledger     interfaces.AuditLedger
	automation interfaces.AutomationEngine
	metrics    *Metrics

	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates the message pipeline. metrics may be nil.
func NewService(
	scanner interfaces.ContentScanner,
	keyManager interfaces.KeyManager,
	cipher *envelope.Engine,
	repo interfaces.MessageRepository,
	ledger interfaces.AuditLedger,
	automationEngine interfaces.AutomationEngine,
	metrics *Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		scanner:    scanner,
		keyManager: keyManager,
		cipher:     cipher,
		repo:       repo,
		ledger:     ledger,
		automation: automationEngine,
		metrics:    metrics,
		logger:     logger.With().Str("component", "message-pipeline").Logger(),
		now:        time.Now,
	}
}

// SendMessage runs the send state machine. Terminal states: Sent (all
// stages through persistence succeeded), Rejected (blocked by policy,
// nothing persisted) or Failed (key, encrypt or persist failed, nothing
// committed). Audit and automation failures never change the outcome.
func (s *Service) SendMessage(ctx context.Context, in SendInput) (*SendResult, error) {
	if in.ConversationID == "" || in.SenderID == "" {
		return nil, fmt.Errorf("conversation id and sender id are required")
	}
	if in.Type == "" {
		in.Type = types.MessageTypeText
	}

	result := &SendResult{Status: StatusFailed}

	// Stage 1: scan. Attachments are validated before the content scan.
	fileRef := in.FileRef
	if in.Type == types.MessageTypeFile {
		if fileRef == nil {
			return nil, fmt.Errorf("file messages require a file reference")
		}
		upload := s.scanner.ValidateUpload(fileRef.Name, fileRef.Size)
		result.Findings = append(result.Findings, upload.Violations...)
		if !upload.Allowed {
			return s.reject(ctx, in, result)
		}
		sanitized := *fileRef
		sanitized.Name = upload.SanitizedFilename
		fileRef = &sanitized
	}

	scan := s.scanner.Scan(in.Content)
	result.Findings = append(result.Findings, scan.Violations...)
	for _, v := range scan.Violations {
		s.metrics.observeViolation(string(v.Severity))
	}
	if !scan.Allowed {
		return s.reject(ctx, in, result)
	}

	// Stage 2: key.
	key, err := s.keyManager.GetOrCreateKey(ctx, in.ConversationID)
	if err != nil {
		return s.fail(ctx, in, result, "key", err)
	}

	// Stage 3: encrypt.
	payload, err := s.cipher.Encrypt([]byte(scan.SanitizedText), key.Key)
	if err != nil {
		return s.fail(ctx, in, result, "encrypt", err)
	}

	now := s.now().UTC()
	message := &types.Message{
		ID:             uuid.New().String(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		RecipientID:    in.RecipientID,
		Content:        scan.SanitizedText,
		Type:           in.Type,
		FileRef:        fileRef,
		CreatedAt:      now,
	}
	encrypted := &types.EncryptedMessage{
		MessageID:  message.ID,
		Ciphertext: payload.Ciphertext,
		IV:         payload.IV,
		Tag:        payload.Tag,
		AAD:        payload.AAD,
		Fingerprint: envelope.Fingerprint(types.MessageDigest{
			SenderID: in.SenderID,
			SentAt:   now,
			Content:  scan.SanitizedText,
		}),
		KeyVersion: key.Version,
		CreatedAt:  now,
	}

	// Stage 4: persist, atomically.
	err = s.repo.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateMessage(txCtx, message); err != nil {
			return err
		}
		if err := s.repo.CreateEncryptedMessage(txCtx, encrypted); err != nil {
			return err
		}
		return s.repo.TouchConversation(txCtx, in.ConversationID, message.ID, now)
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("conversationId", in.ConversationID).
			Str("messageId", message.ID).
			Msg("Persistence failed")
		s.metrics.observeSend(StatusFailed)
		return result, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	result.Status = StatusSent
	result.Message = message
	result.Encrypted = encrypted

	// Stage 5: audit, non-fatal.
	s.recordAudit(ctx, &types.AuditEvent{
		UserID:       in.SenderID,
		EventType:    audit.EventTypeMessage,
		ResourceType: "message",
		ResourceID:   message.ID,
		Action:       audit.ActionMessageSent,
		RiskLevel:    types.RiskLow,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
		Metadata: map[string]interface{}{
			"conversationId": in.ConversationID,
			"keyVersion":     key.Version,
			"findings":       len(result.Findings),
		},
		Success: true,
	})

	// Stage 6: automate, isolated.
	s.automate(ctx, in, scan.SanitizedText, now)

	s.metrics.observeSend(StatusSent)
	return result, nil
}

// reject finishes a send blocked by policy. Nothing was persisted.
func (s *Service) reject(ctx context.Context, in SendInput, result *SendResult) (*SendResult, error) {
	result.Status = StatusRejected

	categories := make([]interface{}, 0, len(result.Findings))
	for _, v := range result.Findings {
		if v.Severity == types.SeverityHigh {
			categories = append(categories, v.Category)
		}
	}
	s.recordAudit(ctx, &types.AuditEvent{
		UserID:       in.SenderID,
		EventType:    audit.EventTypeMessage,
		ResourceType: "message",
		Action:       audit.ActionMessageBlocked,
		RiskLevel:    types.RiskHigh,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
		Metadata: map[string]interface{}{
			"conversationId": in.ConversationID,
			"categories":     categories,
		},
		Success: false,
	})

	s.metrics.observeSend(StatusRejected)
	return result, &PolicyViolationError{Violations: result.Findings}
}

// fail finishes a fatal key or encrypt stage. The logged error keeps the
// detail; the returned one stays generic.
func (s *Service) fail(ctx context.Context, in SendInput, result *SendResult, stage string, err error) (*SendResult, error) {
	s.logger.Error().Err(err).
		Str("conversationId", in.ConversationID).
		Str("stage", stage).
		Msg("Send failed")

	s.recordAudit(ctx, &types.AuditEvent{
		UserID:       in.SenderID,
		EventType:    audit.EventTypeMessage,
		ResourceType: "message",
		Action:       audit.ActionMessageSent,
		RiskLevel:    types.RiskMedium,
		Metadata:     map[string]interface{}{"conversationId": in.ConversationID, "stage": stage},
		Success:      false,
	})

	s.metrics.observeSend(StatusFailed)
	return result, ErrSendFailed
}

func (s *Service) recordAudit(ctx context.Context, event *types.AuditEvent) {
	if _, err := s.ledger.Record(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("action", event.Action).
			Msg("Audit write failed")
	}
}

func (s *Service) automate(ctx context.Context, in SendInput, sanitized string, at time.Time) {
	actions, err := s.automation.Process(ctx, types.AutomationInput{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        sanitized,
		ReceivedAt:     at,
	})
	for _, action := range actions {
		s.metrics.observeAutomation(action.Type)
	}
	if err != nil {
		s.logger.Warn().Err(err).
			Str("conversationId", in.ConversationID).
			Msg("Automation error")
		s.recordAudit(ctx, &types.AuditEvent{
			UserID:       in.SenderID,
			EventType:    audit.EventTypeMessage,
			ResourceType: "automation",
			Action:       audit.ActionAutomationError,
			RiskLevel:    types.RiskLow,
			Metadata:     map[string]interface{}{"conversationId": in.ConversationID, "error": err.Error()},
			Success:      false,
		})
	}
}

// RotateKey is the administrative rotation entry point.
func (s *Service) RotateKey(ctx context.Context, conversationID, initiatedBy string) error {
	material, err := s.keyManager.RotateKey(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("failed to rotate conversation key: %w", err)
	}

	s.recordAudit(ctx, &types.AuditEvent{
		UserID:       initiatedBy,
		EventType:    audit.EventTypeKey,
		ResourceType: "conversation_key",
		ResourceID:   conversationID,
		Action:       audit.ActionKeyRotated,
		RiskLevel:    types.RiskMedium,
		Metadata:     map[string]interface{}{"newVersion": material.Version},
		Success:      true,
	})
	return nil
}

// SecurityReport is the read-only reporting surface for admin tooling.
func (s *Service) SecurityReport(ctx context.Context, query types.AuditQuery) (*types.AuditReport, error) {
	return s.ledger.Report(ctx, query)
}

// ActiveAlerts lists unresolved security alerts.
func (s *Service) ActiveAlerts(ctx context.Context) ([]*types.SecurityAlert, error) {
	return s.ledger.ActiveAlerts(ctx)
}

// ResolveAlert closes a security alert.
func (s *Service) ResolveAlert(ctx context.Context, alertID, resolvedBy, resolution string) error {
	return s.ledger.ResolveAlert(ctx, alertID, resolvedBy, resolution)
}
