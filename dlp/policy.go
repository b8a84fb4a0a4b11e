package dlp

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

// compiledPattern pairs a policy rule with its compiled expression.
type compiledPattern struct {
	spec types.PatternSpec
	re   *regexp.Regexp
}

// Policy is an immutable, compiled set of detection rules. To change rules
// at runtime, build a new Policy and swap the scanner.
type Policy struct {
	version  string
	patterns []compiledPattern
}

// Version returns the policy document version string.
func (p *Policy) Version() string {
	return p.version
}

// CompilePolicy validates and compiles a policy document. Every regex must
// compile and every severity must be one of low, medium or high.
func CompilePolicy(doc types.PolicyDocument) (*Policy, error) {
	if len(doc.Patterns) == 0 {
		return nil, fmt.Errorf("policy %q has no patterns", doc.Version)
	}

	p := &Policy{version: doc.Version}
	for _, spec := range doc.Patterns {
		switch spec.Severity {
		case types.SeverityLow, types.SeverityMedium, types.SeverityHigh:
		default:
			return nil, fmt.Errorf("pattern %q: invalid severity %q", spec.Name, spec.Severity)
		}
		re, err := regexp.Compile(spec.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", spec.Name, err)
		}
		p.patterns = append(p.patterns, compiledPattern{spec: spec, re: re})
	}
	return p, nil
}

// LoadPolicy reads and compiles a YAML policy document from disk.
func LoadPolicy(path string) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var doc types.PolicyDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	return CompilePolicy(doc)
}

// DefaultPolicy returns the built-in detection rules. Payment cards, bank
// accounts, national IDs and credentials block a send; the rest are
// reported only.
func DefaultPolicy() *Policy {
	p, err := CompilePolicy(types.PolicyDocument{
		Version: "builtin-1",
		Patterns: []types.PatternSpec{
			{
				Name:     "payment_card",
				Category: "Credit Card",
				Regex:    `\b(?:\d[ -]?){12,18}\d\b`,
				Severity: types.SeverityHigh,
				Luhn:     true,
			},
			{
				Name:     "iban",
				Category: "Bank Account",
				Regex:    `\b[A-Z]{2}\d{2}[ ]?(?:[A-Z0-9]{4}[ ]?){2,7}[A-Z0-9]{1,4}\b`,
				Severity: types.SeverityHigh,
			},
			{
				Name:     "us_ssn",
				Category: "National ID",
				Regex:    `\b\d{3}-\d{2}-\d{4}\b`,
				Severity: types.SeverityHigh,
			},
			{
				Name:     "api_key",
				Category: "Credential",
				Regex:    `\b(?:sk|pk|rk|ak)_(?:live|test|prod)_[A-Za-z0-9]{16,}\b`,
				Severity: types.SeverityHigh,
			},
			{
				Name:     "private_key_block",
				Category: "Credential",
				Regex:    `-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`,
				Severity: types.SeverityHigh,
			},
			{
				Name:     "passport",
				Category: "Passport",
				Regex:    `\b[A-Z]{1,2}\d{7,8}\b`,
				Severity: types.SeverityMedium,
			},
			{
				Name:     "email_address",
				Category: "Email",
				Regex:    `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
				Severity: types.SeverityMedium,
			},
			{
				Name:     "phone_number",
				Category: "Phone",
				Regex:    `\b(?:\+?\d{1,3}[ .-]?)?(?:\(\d{2,4}\)[ .-]?)?\d{3}[ .-]\d{4}\b`,
				Severity: types.SeverityMedium,
			},
			{
				Name:     "confidential_marker",
				Category: "Confidentiality",
				Regex:    `(?i)\b(?:confidential|internal only|do not (?:share|forward)|trade secret)\b`,
				Severity: types.SeverityMedium,
			},
			{
				Name:     "ip_address",
				Category: "Network",
				Regex:    `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
				Severity: types.SeverityLow,
			},
		},
	})
	if err != nil {
		// the builtin table is covered by tests, a compile failure here
		// is a programming error
		panic(err)
	}
	return p
}

// luhnValid reports whether the digits in s satisfy the Luhn checksum.
// Separator characters are ignored; anything else fails.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, int(r-'0'))
		case r == ' ' || r == '-':
		default:
			return false
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
