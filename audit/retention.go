package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
)

// RetentionRunner triggers EnforceRetention on a cron schedule. It sleeps
// until each computed tick instead of polling.
type RetentionRunner struct {
	ledger   interfaces.AuditLedger
	schedule string
	logger   zerolog.Logger
}

// NewRetentionRunner validates the cron expression and returns a runner.
func NewRetentionRunner(ledger interfaces.AuditLedger, schedule string, logger zerolog.Logger) (*RetentionRunner, error) {
	if !gronx.IsValid(schedule) {
		return nil, fmt.Errorf("invalid retention cron expression: %s", schedule)
	}
	return &RetentionRunner{
		ledger:   ledger,
		schedule: schedule,
		logger:   logger.With().Str("component", "retention-runner").Logger(),
	}, nil
}

// Run blocks until ctx is cancelled, firing a retention pass at every tick
// of the schedule. A failed pass is logged and retried at the next tick.
func (r *RetentionRunner) Run(ctx context.Context) error {
	r.logger.Info().Str("cron", r.schedule).Msg("Retention scheduler started")

	for {
		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(r.schedule, now, false)
		if err != nil {
			r.logger.Error().Err(err).Str("cron", r.schedule).Msg("Failed to compute next retention tick")
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		select {
		case <-time.After(time.Until(next)):
			if err := r.ledger.EnforceRetention(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Retention pass failed")
			}
		case <-ctx.Done():
			r.logger.Info().Msg("Retention scheduler stopping")
			return ctx.Err()
		}
	}
}
