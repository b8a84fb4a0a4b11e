package types

// Severity classifies a DLP pattern. Only high-severity findings block a
// send; medium and low are logged and the sanitized variant is used.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// PatternSpec is one named detection rule in a policy document.
type PatternSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Category string   `json:"category" yaml:"category"`
	Regex    string   `json:"regex" yaml:"regex"`
	Severity Severity `json:"severity" yaml:"severity"`

	// Luhn additionally validates digit runs with the Luhn checksum
	// before counting a match (payment cards).
	Luhn bool `json:"luhn,omitempty" yaml:"luhn,omitempty"`
}

// PolicyDocument is the serialized form of a scanner policy. Policies are
// immutable once loaded; updating means loading a new version.
type PolicyDocument struct {
	Version  string        `json:"version" yaml:"version"`
	Patterns []PatternSpec `json:"patterns" yaml:"patterns"`
}

// Violation is one matched category with redacted evidence for audit.
type Violation struct {
	Pattern  string   `json:"pattern"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Matches  int      `json:"matches"`
	Samples  []string `json:"samples"` // redacted, at most 3
}

// ScanResult is the outcome of scanning one piece of outbound content.
type ScanResult struct {
	Allowed       bool        `json:"allowed"`
	Violations    []Violation `json:"violations"`
	SanitizedText string      `json:"sanitizedText"`
}

// UploadPolicy bounds file uploads before they reach storage.
type UploadPolicy struct {
	MaxSize           int64    `json:"maxSize"`
	BlockedExtensions []string `json:"blockedExtensions"`
}

// DefaultUploadPolicy returns the stock upload limits.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxSize: 50 << 20,
		BlockedExtensions: []string{
			".exe", ".dll", ".bat", ".cmd", ".com", ".scr", ".pif",
			".msi", ".jar", ".sh", ".ps1", ".vbs", ".js",
		},
	}
}

// UploadResult is the outcome of validating one file upload.
type UploadResult struct {
	Allowed           bool        `json:"allowed"`
	Violations        []Violation `json:"violations"`
	SanitizedFilename string      `json:"sanitizedFilename"`
}
