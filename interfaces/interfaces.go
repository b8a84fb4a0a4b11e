// Package interfaces defines all service interfaces for the module.
// IMPORTANT: This is the single source of truth for service interfaces.
// Do not define interfaces in other files.
package interfaces

import (
	"context"
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// KMS Interfaces

// KMSProvider wraps and unwraps conversation keys under the master key.
type KMSProvider interface {
	// GetWrapper returns the underlying KMS wrapper
	GetWrapper() wrapping.Wrapper

	// Test performs a test encryption/decryption
	Test(ctx context.Context) error

	// HealthCheck performs a comprehensive health check
	HealthCheck(ctx context.Context) error

	// GetLastHealthCheckError returns the last health check error
	GetLastHealthCheckError() error
}

// Key Interfaces

// KeyManager owns the per-conversation symmetric key lifecycle. Unwrapped
// key material never leaves its process boundary in stored form.
type KeyManager interface {
	// GetOrCreateKey returns the active key for a conversation, creating
	// version 1 if none exists. Safe under concurrent first-sends.
	GetOrCreateKey(ctx context.Context, conversationID string) (*types.KeyMaterial, error)

	// RotateKey atomically deactivates the current version and activates
	// version lastVersion+1. Old ciphertext stays decryptable.
	RotateKey(ctx context.Context, conversationID string) (*types.KeyMaterial, error)

	// Unwrap returns key material for a historical version, active or not.
	Unwrap(ctx context.Context, conversationID string, version int) ([]byte, error)

	// Status reports the key state of a conversation for admin tooling.
	Status(ctx context.Context, conversationID string) (*types.KeyStatus, error)
}

// KeyStore persists wrapped conversation keys.
type KeyStore interface {
	// Get retrieves the key document for a conversation; (nil, nil) when absent.
	Get(ctx context.Context, conversationID string) (*types.ConversationKey, error)

	// Create inserts a brand-new key document. A concurrent duplicate
	// create fails with keys.ErrKeyExists so the caller re-reads the winner.
	Create(ctx context.Context, key *types.ConversationKey) error

	// Rotate deactivates fromVersion and appends next as the active version
	// in one atomic update. Fails with keys.ErrKeyConflict when the active
	// version moved underneath the caller.
	Rotate(ctx context.Context, conversationID string, fromVersion int, next types.ConversationKeyVersion) error
}

// DLP Interfaces

// ContentScanner detects sensitive-data patterns in outbound content.
type ContentScanner interface {
	// Scan evaluates every policy pattern against text.
	Scan(text string) *types.ScanResult

	// ValidateUpload checks file size, extension and filename content.
	ValidateUpload(filename string, size int64) *types.UploadResult
}

// Audit Interfaces

// AuditLedger is the append-only record of security-relevant actions.
type AuditLedger interface {
	// Record appends an event and evaluates rate rules over recent
	// history. Failures must not abort the caller's primary operation.
	Record(ctx context.Context, event *types.AuditEvent) (*types.AuditEvent, error)

	// Report returns matching events plus aggregate stats.
	Report(ctx context.Context, query types.AuditQuery) (*types.AuditReport, error)

	// ActiveAlerts lists unresolved security alerts.
	ActiveAlerts(ctx context.Context) ([]*types.SecurityAlert, error)

	// ResolveAlert transitions an alert to its terminal state.
	ResolveAlert(ctx context.Context, alertID, resolvedBy, resolution string) error

	// EnforceRetention purges expired audit events and archives old
	// messages. Maintenance path, not request path.
	EnforceRetention(ctx context.Context) error
}

// AuditStore persists audit events and security alerts.
type AuditStore interface {
	InsertEvent(ctx context.Context, event *types.AuditEvent) error
	CountEvents(ctx context.Context, userID, action string, since time.Time) (int64, error)
	QueryEvents(ctx context.Context, query types.AuditQuery) ([]*types.AuditEvent, error)
	AggregateStats(ctx context.Context, query types.AuditQuery) (*types.AuditStats, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	InsertAlert(ctx context.Context, alert *types.SecurityAlert) error
	ActiveAlerts(ctx context.Context) ([]*types.SecurityAlert, error)
	HasActiveAlert(ctx context.Context, userID, alertType string, since time.Time) (bool, error)
	ResolveAlert(ctx context.Context, alertID, resolvedBy, resolution string) error
}

// Automation Interfaces

// AutomationEngine matches sanitized content against trigger rules and
// executes side-effecting actions. Best-effort; never blocks a send.
type AutomationEngine interface {
	Process(ctx context.Context, in types.AutomationInput) ([]types.AutomationAction, error)
}

// AutomationLogStore records every attempted automation action.
type AutomationLogStore interface {
	InsertLog(ctx context.Context, entry *types.AutomationLog) error
	ListLogs(ctx context.Context, conversationID string, limit int) ([]*types.AutomationLog, error)
}

// External collaborators consumed by the automation engine. These are
// implemented by the messaging, CRM and user-management layers.

// Replier posts an automated reply into a conversation.
type Replier interface {
	Reply(ctx context.Context, conversationID, content string) error
}

// LeadService creates lead records.
type LeadService interface {
	CreateLead(ctx context.Context, lead types.Lead) (string, error)
}

// Notifier dispatches fire-and-forget email/SMS notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, subject, body string) error
}

// Directory resolves role membership from the user-management subsystem.
type Directory interface {
	Administrators(ctx context.Context) ([]string, error)
	SalesTeam(ctx context.Context) ([]string, error)
}

// Queue Interfaces

// TaskClient enqueues background tasks, optionally delayed.
type TaskClient interface {
	Enqueue(ctx context.Context, task types.Task, delay time.Duration) (id string, err error)
	Close() error
}

// TaskHandler processes one task. Handlers must be idempotent.
type TaskHandler func(ctx context.Context, task types.Task) error

// TaskServer runs background workers that handle tasks.
type TaskServer interface {
	Register(taskType string, h TaskHandler)
	Run(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Persistence Interfaces

// MessageRepository persists messages and their encrypted counterparts.
// WithTransaction runs fn inside one storage transaction; the write methods
// participate when called with the context fn receives.
type MessageRepository interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	CreateMessage(ctx context.Context, msg *types.Message) error
	CreateEncryptedMessage(ctx context.Context, enc *types.EncryptedMessage) error
	TouchConversation(ctx context.Context, conversationID, lastMessageID string, at time.Time) error

	// ArchiveMessagesBefore marks messages older than cutoff as archived.
	ArchiveMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
