package dlp

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

const maxSamples = 3

// Scanner evaluates outbound content against a compiled policy. A scanner
// is safe for concurrent use; its policy never changes after construction.
type Scanner struct {
	policy  *Policy
	uploads types.UploadPolicy
	logger  zerolog.Logger
}

var _ interfaces.ContentScanner = (*Scanner)(nil)

// NewScanner creates a content scanner over the given policy.
func NewScanner(policy *Policy, uploads types.UploadPolicy, logger zerolog.Logger) *Scanner {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Scanner{
		policy:  policy,
		uploads: uploads,
		logger:  logger.With().Str("component", "dlp-scanner").Logger(),
	}
}

// Scan evaluates every policy pattern against text. High-severity findings
// block the send; all findings of any severity are reported. The sanitized
// text has every high-severity match masked down to its last 4 characters.
func (s *Scanner) Scan(text string) *types.ScanResult {
	result := &types.ScanResult{Allowed: true, SanitizedText: text}

	// one violation per category: patterns sharing a category (for example
	// the credential rules) merge their matches and samples
	byCategory := map[string]*types.Violation{}
	var order []string
	var highSpans [][2]int

	for _, cp := range s.policy.patterns {
		spans := cp.re.FindAllStringIndex(text, -1)
		if cp.spec.Luhn {
			spans = filterLuhn(text, spans)
		}
		if len(spans) == 0 {
			continue
		}

		v := byCategory[cp.spec.Category]
		if v == nil {
			v = &types.Violation{
				Pattern:  cp.spec.Name,
				Category: cp.spec.Category,
				Severity: cp.spec.Severity,
			}
			byCategory[cp.spec.Category] = v
			order = append(order, cp.spec.Category)
		} else {
			v.Pattern += "," + cp.spec.Name
			if severityRank(cp.spec.Severity) > severityRank(v.Severity) {
				v.Severity = cp.spec.Severity
			}
		}

		v.Matches += len(spans)
		for _, span := range spans {
			if len(v.Samples) < maxSamples {
				v.Samples = append(v.Samples, mask(text[span[0]:span[1]]))
			}
			if cp.spec.Severity == types.SeverityHigh {
				highSpans = append(highSpans, [2]int{span[0], span[1]})
			}
		}

		if cp.spec.Severity == types.SeverityHigh {
			result.Allowed = false
		}
	}

	for _, category := range order {
		result.Violations = append(result.Violations, *byCategory[category])
	}

	if len(highSpans) > 0 {
		result.SanitizedText = maskSpans(text, highSpans)
		s.logger.Warn().
			Int("violations", len(result.Violations)).
			Msg("Blocked content with high-severity findings")
	}
	return result
}

// ValidateUpload checks a file upload against size and extension limits and
// scans the filename itself for sensitive data.
func (s *Scanner) ValidateUpload(filename string, size int64) *types.UploadResult {
	result := &types.UploadResult{Allowed: true, SanitizedFilename: filename}

	if size > s.uploads.MaxSize {
		result.Allowed = false
		result.Violations = append(result.Violations, types.Violation{
			Pattern:  "max_file_size",
			Category: "Upload",
			Severity: types.SeverityHigh,
			Matches:  1,
		})
	}

	lower := strings.ToLower(filename)
	for _, ext := range s.uploads.BlockedExtensions {
		if strings.HasSuffix(lower, ext) {
			result.Allowed = false
			result.Violations = append(result.Violations, types.Violation{
				Pattern:  "blocked_extension",
				Category: "Upload",
				Severity: types.SeverityHigh,
				Matches:  1,
				Samples:  []string{ext},
			})
			break
		}
	}

	nameScan := s.Scan(filename)
	result.Violations = append(result.Violations, nameScan.Violations...)
	result.SanitizedFilename = nameScan.SanitizedText
	if !nameScan.Allowed {
		result.Allowed = false
	}
	return result
}

func severityRank(s types.Severity) int {
	switch s {
	case types.SeverityHigh:
		return 2
	case types.SeverityMedium:
		return 1
	default:
		return 0
	}
}

// filterLuhn drops match spans whose digits fail the Luhn checksum.
func filterLuhn(text string, spans [][]int) [][]int {
	var kept [][]int
	for _, span := range spans {
		if luhnValid(text[span[0]:span[1]]) {
			kept = append(kept, span)
		}
	}
	return kept
}

// mask replaces everything but the last 4 characters with asterisks.
func mask(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

// maskSpans rebuilds text with every span masked. Overlapping spans are
// merged so a character is never masked twice.
func maskSpans(text string, spans [][2]int) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	var merged [][2]int
	for _, span := range spans {
		if n := len(merged); n > 0 && span[0] <= merged[n-1][1] {
			if span[1] > merged[n-1][1] {
				merged[n-1][1] = span[1]
			}
			continue
		}
		merged = append(merged, span)
	}

	var b strings.Builder
	prev := 0
	for _, span := range merged {
		b.WriteString(text[prev:span[0]])
		b.WriteString(mask(text[span[0]:span[1]]))
		prev = span[1]
	}
	b.WriteString(text[prev:])
	return b.String()
}
