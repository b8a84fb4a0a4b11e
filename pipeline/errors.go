package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

var (
	// ErrPolicyViolation is returned when the scanner blocks a send.
	// User-correctable; nothing is persisted.
	ErrPolicyViolation = errors.New("content blocked by data-loss-prevention policy")

	// ErrPersistence is returned when the storage transaction fails.
	// The message is not considered sent.
	ErrPersistence = errors.New("failed to persist message")

	// ErrSendFailed is the generic fatal send error. Cryptographic detail
	// stays in the logs, never in the client-facing error.
	ErrSendFailed = errors.New("message send failed")
)

// PolicyViolationError reports which categories blocked a send. It carries
// no raw matched values.
type PolicyViolationError struct {
	Violations []types.Violation
}

func (e *PolicyViolationError) Error() string {
	categories := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Severity == types.SeverityHigh {
			categories = append(categories, v.Category)
		}
	}
	return fmt.Sprintf("%s: %s", ErrPolicyViolation, strings.Join(categories, ", "))
}

func (e *PolicyViolationError) Unwrap() error {
	return ErrPolicyViolation
}
