package service

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/pesio-ai/be-hr-change-reports/internal/errors"
	"github.com/pesio-ai/be-hr-change-reports/internal/logger"
	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
)

// Workflow precondition failures. Matched by callers with errors.Is; the
// HTTP layer maps their codes to status codes.
var (
	ErrAlreadyTerminal   = errors.New(errors.ErrCodeConflict, "change report is already in a terminal state")
	ErrAlreadyApproved   = errors.New(errors.ErrCodeConflict, "gate has already been approved")
	ErrGateNotApplicable = errors.New(errors.ErrCodeConflict, "change report does not require this gate")
	ErrGateOutOfOrder    = errors.New(errors.ErrCodeConflict, "audit approval attempted before required accounting approval")
	ErrMissingReason     = errors.InvalidInput("reason", "rejection reason is required")
)

// maxConflictRetries bounds how many times a mutation is retried from a
// fresh read after a version conflict before the conflict is surfaced.
const maxConflictRetries = 3

// ChangeReportStore is the persistence contract for change reports. The
// compare-and-update primitive is the only way the engine persists a
// transition.
type ChangeReportStore interface {
	Create(ctx context.Context, report *repository.ChangeReport) error
	Get(ctx context.Context, id string) (*repository.ChangeReport, error)
	List(ctx context.Context, filter repository.ReportFilter) ([]*repository.ChangeReport, int64, error)
	CompareAndUpdate(ctx context.Context, id string, expectedVersion int64, mutate func(report *repository.ChangeReport) error) (*repository.ChangeReport, error)
	Delete(ctx context.Context, id string) error
}

// AuditLog records immutable workflow history.
type AuditLog interface {
	Append(ctx context.Context, entry *repository.AuditEntry) error
	GetByReportID(ctx context.Context, reportID string) ([]*repository.AuditEntry, error)
}

// Notifier publishes workflow events for downstream consumers. Implementations
// must be non-fatal: a failed publish never affects the operation.
type Notifier interface {
	PublishReportEvent(ctx context.Context, eventType string, report *repository.ChangeReport, actorID string, payload map[string]interface{})
}

// WorkflowService is the change-report state machine: submit, approve at a
// gate, reject at a gate. States are Pending, AwaitingAudit, Completed and
// Rejected; Completed and Rejected are terminal. Every mutation goes through
// the store's compare-and-update path.
type WorkflowService struct {
	store    ChangeReportStore
	gates    *GateEvaluator
	applier  *EffectApplier
	audit    AuditLog
	notifier Notifier
	log      *logger.Logger
}

// NewWorkflowService creates a new WorkflowService. notifier may be nil.
func NewWorkflowService(
	store ChangeReportStore,
	gates *GateEvaluator,
	applier *EffectApplier,
	audit AuditLog,
	notifier Notifier,
	log *logger.Logger,
) *WorkflowService {
	return &WorkflowService{
		store:    store,
		gates:    gates,
		applier:  applier,
		audit:    audit,
		notifier: notifier,
		log:      log,
	}
}

// SubmitRequest is the payload for a new change report.
type SubmitRequest struct {
	EmployeeID   string
	ChangeKind   repository.ChangeKind
	FieldChanged string
	Amount       *int64
	Percentage   *float64
	CreatedBy    string
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit validates the payload, computes the required gates exactly once and
// creates the report. A report that requires no gates completes immediately
// and has its effect applied before Submit returns.
func (s *WorkflowService) Submit(ctx context.Context, req *SubmitRequest) (*repository.ChangeReport, error) {
	if req.EmployeeID == "" {
		return nil, errors.InvalidInput("employeeId", "employee id is required")
	}
	if !req.ChangeKind.Valid() {
		return nil, errors.InvalidInput("changeKind", "must be entitlement_change or deduction_change")
	}
	if req.FieldChanged == "" {
		return nil, errors.InvalidInput("fieldChanged", "changed field is required")
	}
	if (req.Amount == nil) == (req.Percentage == nil) {
		return nil, errors.InvalidInput("amount", "exactly one of amount and percentage must be set")
	}
	if req.CreatedBy == "" {
		return nil, errors.InvalidInput("createdBy", "submitter is required")
	}

	requiresAccounting, requiresAudit := s.gates.Evaluate(req.ChangeKind, req.Amount, req.Percentage)

	report := &repository.ChangeReport{
		EmployeeID:                 req.EmployeeID,
		ChangeKind:                 req.ChangeKind,
		FieldChanged:               req.FieldChanged,
		Amount:                     req.Amount,
		Percentage:                 req.Percentage,
		RequiresAccountingApproval: requiresAccounting,
		RequiresAuditApproval:      requiresAudit,
		CreatedBy:                  req.CreatedBy,
	}

	if err := s.store.Create(ctx, report); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("report_id", report.ID).
		Str("employee_id", report.EmployeeID).
		Bool("requires_accounting", requiresAccounting).
		Bool("requires_audit", requiresAudit).
		Str("status", string(report.Status())).
		Msg("Change report submitted")

	s.appendAudit(ctx, report, "submitted", req.CreatedBy, nil, map[string]interface{}{
		"change_kind":   string(report.ChangeKind),
		"field_changed": report.FieldChanged,
	})
	s.publish(ctx, "report_submitted", report, req.CreatedBy, nil)

	// All-gates-false reports are Completed from the start.
	if report.Status() == repository.StatusCompleted {
		if err := s.applyEffect(ctx, report, req.CreatedBy); err != nil {
			return report, err
		}
	}

	return report, nil
}

// ── Approvals ─────────────────────────────────────────────────────────────────

// ApproveAccounting records Accounting approval on a report. When the report
// does not also require Audit approval it transitions to Completed and the
// compensation effect is applied.
func (s *WorkflowService) ApproveAccounting(ctx context.Context, reportID, approverID string) (*repository.ChangeReport, error) {
	report, err := s.transition(ctx, reportID, func(r *repository.ChangeReport) error {
		if r.Status().Terminal() {
			return ErrAlreadyTerminal
		}
		if !r.RequiresAccountingApproval {
			return ErrGateNotApplicable
		}
		if r.AccountingApproved {
			return ErrAlreadyApproved
		}
		now := time.Now()
		r.AccountingApproved = true
		r.AccountingApprovedBy = &approverID
		r.AccountingApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("report_id", report.ID).
		Str("approver_id", approverID).
		Str("status", string(report.Status())).
		Msg("Accounting approval recorded")

	s.appendAudit(ctx, report, "accounting_approved", approverID, statusPtr(repository.StatusPending), nil)
	s.publish(ctx, "report_accounting_approved", report, approverID, nil)

	if report.Status() == repository.StatusCompleted {
		if err := s.applyEffect(ctx, report, approverID); err != nil {
			return report, err
		}
	}
	return report, nil
}

// ApproveAudit records Audit approval on a report and transitions it to
// Completed. The Accounting gate must already be approved whenever it is
// required (sequential gates).
func (s *WorkflowService) ApproveAudit(ctx context.Context, reportID, approverID string) (*repository.ChangeReport, error) {
	report, err := s.transition(ctx, reportID, func(r *repository.ChangeReport) error {
		if r.Status().Terminal() {
			return ErrAlreadyTerminal
		}
		if !r.RequiresAuditApproval {
			return ErrGateNotApplicable
		}
		if r.AuditApproved {
			return ErrAlreadyApproved
		}
		if r.RequiresAccountingApproval && !r.AccountingApproved {
			return ErrGateOutOfOrder
		}
		now := time.Now()
		r.AuditApproved = true
		r.AuditApprovedBy = &approverID
		r.AuditApprovedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("report_id", report.ID).
		Str("approver_id", approverID).
		Msg("Audit approval recorded")

	s.appendAudit(ctx, report, "audit_approved", approverID, statusPtr(repository.StatusAwaitingAudit), nil)
	s.publish(ctx, "report_audit_approved", report, approverID, nil)

	if err := s.applyEffect(ctx, report, approverID); err != nil {
		return report, err
	}
	return report, nil
}

// ── Reject ────────────────────────────────────────────────────────────────────

// Reject moves a non-terminal report to Rejected with the given reason.
// Callable from either gate; no compensation effect is ever applied.
func (s *WorkflowService) Reject(ctx context.Context, reportID, approverID, reason string, gate repository.Queue) (*repository.ChangeReport, error) {
	if reason == "" {
		return nil, ErrMissingReason
	}

	var statusBefore repository.Status
	report, err := s.transition(ctx, reportID, func(r *repository.ChangeReport) error {
		if r.Status().Terminal() {
			return ErrAlreadyTerminal
		}
		statusBefore = r.Status()
		now := time.Now()
		r.Rejected = true
		r.RejectionReason = &reason
		r.RejectedBy = &approverID
		r.RejectedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("report_id", report.ID).
		Str("rejected_by", approverID).
		Str("gate", string(gate)).
		Msg("Change report rejected")

	s.appendAudit(ctx, report, "rejected", approverID, &statusBefore, map[string]interface{}{
		"reason": reason,
		"gate":   string(gate),
	})
	s.publish(ctx, "report_rejected", report, approverID, map[string]interface{}{
		"reason": reason,
	})
	return report, nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// Get returns a single report.
func (s *WorkflowService) Get(ctx context.Context, reportID string) (*repository.ChangeReport, error) {
	return s.store.Get(ctx, reportID)
}

// List returns reports matching the filter plus the total match count.
func (s *WorkflowService) List(ctx context.Context, filter repository.ReportFilter) ([]*repository.ChangeReport, int64, error) {
	return s.store.List(ctx, filter)
}

// GetAuditTrail returns the report's audit history, oldest first. The trail
// outlives the report itself: after an administrative delete the entries,
// including the deletion record, stay readable. Unknown ids yield an empty
// trail.
func (s *WorkflowService) GetAuditTrail(ctx context.Context, reportID string) ([]*repository.AuditEntry, error) {
	return s.audit.GetByReportID(ctx, reportID)
}

// ── Delete ────────────────────────────────────────────────────────────────────

// Delete is the administrative override: it removes the report outright,
// outside the state machine. Terminal reports are deletable too; the audit
// log keeps the record of the deletion.
func (s *WorkflowService) Delete(ctx context.Context, reportID, actorID string) error {
	report, err := s.store.Get(ctx, reportID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, reportID); err != nil {
		return err
	}

	s.log.Warn().
		Str("report_id", reportID).
		Str("deleted_by", actorID).
		Msg("Change report deleted (administrative override)")

	before := report.Status()
	s.appendAudit(ctx, report, "deleted", actorID, &before, nil)
	return nil
}

// ── internals ─────────────────────────────────────────────────────────────────

// transition runs mutate against a fresh read of the report via
// compare-and-update, retrying a bounded number of times on version
// conflicts. Precondition errors from mutate abort immediately; they are
// evaluated against current state, so a retry would not change the outcome
// without a fresh read, which the loop provides.
func (s *WorkflowService) transition(
	ctx context.Context,
	reportID string,
	mutate func(report *repository.ChangeReport) error,
) (*repository.ChangeReport, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		report, err := s.store.Get(ctx, reportID)
		if err != nil {
			return nil, err
		}

		// The store returns the report as written by this call, so the
		// result never reflects a later writer's transition.
		updated, err := s.store.CompareAndUpdate(ctx, reportID, report.Version, mutate)
		if stdErrors.Is(err, repository.ErrVersionConflict) {
			s.log.Debug().
				Str("report_id", reportID).
				Int("attempt", attempt+1).
				Msg("version conflict; retrying from fresh read")
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, repository.ErrVersionConflict
}

// applyEffect invokes the idempotent effect applier for a Completed report
// and records the completion. The Completed status is durably stored before
// this runs, so a failure here is retriable with the same contract.
func (s *WorkflowService) applyEffect(ctx context.Context, report *repository.ChangeReport, actorID string) error {
	if err := s.applier.Apply(ctx, report); err != nil {
		s.log.Error().Err(err).
			Str("report_id", report.ID).
			Msg("Effect application failed for completed report")
		return err
	}

	s.appendAudit(ctx, report, "completed", actorID, nil, nil)
	s.publish(ctx, "report_completed", report, actorID, nil)
	return nil
}

// appendAudit writes an audit entry and logs a warning on failure; audit
// writes never fail the operation that produced them.
func (s *WorkflowService) appendAudit(
	ctx context.Context,
	report *repository.ChangeReport,
	action, performedBy string,
	statusBefore *repository.Status,
	metadata map[string]interface{},
) {
	after := report.Status()
	entry := &repository.AuditEntry{
		ReportID:     report.ID,
		EmployeeID:   report.EmployeeID,
		Action:       action,
		PerformedBy:  performedBy,
		StatusBefore: statusBefore,
		StatusAfter:  &after,
		Metadata:     metadata,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).
			Str("report_id", report.ID).
			Str("action", action).
			Msg("Failed to write audit log entry")
	}
}

func (s *WorkflowService) publish(ctx context.Context, eventType string, report *repository.ChangeReport, actorID string, payload map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishReportEvent(ctx, eventType, report, actorID, payload)
}

func statusPtr(s repository.Status) *repository.Status {
	return &s
}
