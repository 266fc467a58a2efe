package service

import (
	"context"
	stdErrors "errors"

	"github.com/pesio-ai/be-hr-change-reports/internal/errors"
	"github.com/pesio-ai/be-hr-change-reports/internal/logger"
	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
)

// CompensationStore applies a report's change to the employee's active
// compensation set. ApplyReport must be atomic with its applied-marker check
// (single transaction or a unique constraint on the report id).
type CompensationStore interface {
	ApplyReport(ctx context.Context, report *repository.ChangeReport) error
	GetItems(ctx context.Context, employeeID string) ([]*repository.CompensationItem, error)
}

// EffectApplier applies a fully-approved change report to the employee's
// compensation record, at most once per report id. A duplicate invocation
// (e.g. a retried Completed transition) is a no-op that still succeeds.
type EffectApplier struct {
	comp CompensationStore
	log  *logger.Logger
}

// NewEffectApplier creates a new EffectApplier.
func NewEffectApplier(comp CompensationStore, log *logger.Logger) *EffectApplier {
	return &EffectApplier{comp: comp, log: log}
}

// Apply idempotently applies the report's compensation effect.
// ErrAlreadyApplied from the store is success: the effect is durably in
// place and nothing happened twice.
func (a *EffectApplier) Apply(ctx context.Context, report *repository.ChangeReport) error {
	err := a.comp.ApplyReport(ctx, report)
	if stdErrors.Is(err, repository.ErrAlreadyApplied) {
		a.log.Debug().
			Str("report_id", report.ID).
			Msg("compensation effect already applied; skipping")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeOf(err), "failed to apply compensation effect")
	}

	a.log.Info().
		Str("report_id", report.ID).
		Str("employee_id", report.EmployeeID).
		Str("change_kind", string(report.ChangeKind)).
		Str("field", report.FieldChanged).
		Msg("Compensation effect applied")
	return nil
}
