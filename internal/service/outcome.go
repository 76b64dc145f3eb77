package service

import (
	"context"

	"storefront/internal/divergence"
	"storefront/internal/domain"

	"go.uber.org/zap"
)

// Outcome is the result of the secondary half of a write. The primary half
// either succeeded or the whole operation already returned an error.
type Outcome string

const (
	OutcomePrimaryOnly      Outcome = "primary_only"
	OutcomeBothSucceeded    Outcome = "both_succeeded"
	OutcomeSecondaryFailed  Outcome = "secondary_failed"
	OutcomeSecondarySkipped Outcome = "secondary_skipped"
	OutcomeLinkFailed       Outcome = "link_failed"
)

// Diverged reports whether the stores may now disagree.
func (o Outcome) Diverged() bool {
	switch o {
	case OutcomeSecondaryFailed, OutcomeSecondarySkipped, OutcomeLinkFailed:
		return true
	}
	return false
}

// secondaryWrite runs a best-effort write against the secondary store. A
// context that is already done skips the write.
func secondaryWrite(ctx context.Context, write func(context.Context) error) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeSecondarySkipped, err
	}
	if err := write(ctx); err != nil {
		return OutcomeSecondaryFailed, err
	}
	return OutcomeBothSucceeded, nil
}

type syncResult struct {
	outcome      Outcome
	relationalID string
	documentID   string
	err          error
}

// reporter is where secondary outcomes end up: the log and, for divergent
// ones, the journal. It never returns an error to the caller.
type reporter struct {
	entity  domain.EntityType
	logger  *zap.Logger
	journal divergence.Journal
}

func newReporter(entity domain.EntityType, logger *zap.Logger, journal divergence.Journal) reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = divergence.Nop{}
	}
	return reporter{entity: entity, logger: logger, journal: journal}
}

func (r reporter) report(ctx context.Context, operation string, res syncResult) {
	if !res.outcome.Diverged() {
		r.logger.Debug("Secondary write completed",
			zap.String("operation", operation),
			zap.String("outcome", string(res.outcome)),
			zap.String("relational_id", res.relationalID),
			zap.String("document_id", res.documentID),
		)
		return
	}

	r.logger.Warn("Stores diverged after primary write",
		zap.String("entity", string(r.entity)),
		zap.String("operation", operation),
		zap.String("outcome", string(res.outcome)),
		zap.String("relational_id", res.relationalID),
		zap.String("document_id", res.documentID),
		zap.Error(res.err),
	)

	entry := divergence.Entry{
		Entity:       r.entity,
		Operation:    operation,
		RelationalID: res.relationalID,
		DocumentID:   res.documentID,
		Outcome:      string(res.outcome),
	}
	if res.err != nil {
		entry.Error = res.err.Error()
	}

	// The caller's context may be the reason the write was skipped.
	if err := r.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.Error("Failed to record divergence", zap.String("operation", operation), zap.Error(err))
	}
}
