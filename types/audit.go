package types

import (
	"time"
)

// RiskLevel classifies the severity of an audit event or alert.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// AuditEvent is one append-only record of a security-relevant action.
// Events are never updated or deleted except by retention archival.
type AuditEvent struct {
	ID           string                 `json:"id" bson:"_id"`
	UserID       string                 `json:"userId,omitempty" bson:"userId,omitempty"`
	EventType    string                 `json:"eventType" bson:"eventType"`
	ResourceType string                 `json:"resourceType" bson:"resourceType"`
	ResourceID   string                 `json:"resourceId,omitempty" bson:"resourceId,omitempty"`
	Action       string                 `json:"action" bson:"action"`
	RiskLevel    RiskLevel              `json:"riskLevel" bson:"riskLevel"`
	IPAddress    string                 `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	UserAgent    string                 `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Success      bool                   `json:"success" bson:"success"`
	Timestamp    time.Time              `json:"timestamp" bson:"timestamp"`
}

// AlertStatus is the lifecycle state of a SecurityAlert.
type AlertStatus string

const (
	AlertActive   AlertStatus = "active"
	AlertResolved AlertStatus = "resolved"
)

// SecurityAlert is raised by rate-rule evaluation over audit history.
// Lifecycle: active -> resolved (terminal).
type SecurityAlert struct {
	ID          string      `json:"id" bson:"_id"`
	AlertType   string      `json:"alertType" bson:"alertType"`
	Severity    RiskLevel   `json:"severity" bson:"severity"`
	Description string      `json:"description" bson:"description"`
	UserID      string      `json:"userId,omitempty" bson:"userId,omitempty"`
	Status      AlertStatus `json:"status" bson:"status"`
	ResolvedBy  string      `json:"resolvedBy,omitempty" bson:"resolvedBy,omitempty"`
	Resolution  string      `json:"resolution,omitempty" bson:"resolution,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" bson:"createdAt"`
	ResolvedAt  *time.Time  `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty"`
}

// AuditRuleConfig holds the windowed rate-rule thresholds. The numbers are
// policy values, not invariants; embedders may tune them.
type AuditRuleConfig struct {
	ExportThreshold    int           `json:"exportThreshold"`
	ExportWindow       time.Duration `json:"exportWindow"`
	LoginFailThreshold int           `json:"loginFailThreshold"`
	LoginFailWindow    time.Duration `json:"loginFailWindow"`
	DownloadThreshold  int           `json:"downloadThreshold"`
	DownloadWindow     time.Duration `json:"downloadWindow"`
}

// DefaultAuditRuleConfig returns the stock thresholds.
func DefaultAuditRuleConfig() AuditRuleConfig {
	return AuditRuleConfig{
		ExportThreshold:    5,
		ExportWindow:       24 * time.Hour,
		LoginFailThreshold: 5,
		LoginFailWindow:    time.Hour,
		DownloadThreshold:  20,
		DownloadWindow:     time.Hour,
	}
}

// AuditQuery filters the reporting surface.
type AuditQuery struct {
	Start     time.Time
	End       time.Time
	UserID    string
	EventType string
	RiskLevel RiskLevel
}

// AuditStats are the aggregate counts returned alongside a report.
type AuditStats struct {
	Total       int64            `json:"total"`
	ByEventType map[string]int64 `json:"byEventType"`
	ByRiskLevel map[string]int64 `json:"byRiskLevel"`
	ByUser      map[string]int64 `json:"byUser"`
}

// AuditReport bundles matching events with their aggregate stats.
type AuditReport struct {
	Events []*AuditEvent `json:"events"`
	Stats  AuditStats    `json:"stats"`
}

// RetentionConfig drives the maintenance-path retention run.
type RetentionConfig struct {
	// AuditRetention is the compliance horizon after which audit events
	// are deleted. Years-scale.
	AuditRetention time.Duration `json:"auditRetention"`

	// MessageArchiveAfter marks (not deletes) messages older than this.
	MessageArchiveAfter time.Duration `json:"messageArchiveAfter"`

	// Schedule is a cron expression for the retention runner.
	Schedule string `json:"schedule"`
}

// DefaultRetentionConfig returns the stock horizons: six years for audit
// events, one year for message archival, nightly run.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		AuditRetention:      6 * 365 * 24 * time.Hour,
		MessageArchiveAfter: 365 * 24 * time.Hour,
		Schedule:            "0 3 * * *",
	}
}
