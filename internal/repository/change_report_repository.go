package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-change-reports/internal/database"
	"github.com/pesio-ai/be-hr-change-reports/internal/errors"
)

// ErrVersionConflict is returned by CompareAndUpdate when another writer has
// updated the record since it was read.
var ErrVersionConflict = errors.New(errors.ErrCodeConcurrency, "change report was modified concurrently")

// ChangeReportRepository is the Postgres change-report store. All writes go
// through Create and CompareAndUpdate; there is no field-level update.
type ChangeReportRepository struct {
	db *database.DB
}

// NewChangeReportRepository creates a new ChangeReportRepository.
func NewChangeReportRepository(db *database.DB) *ChangeReportRepository {
	return &ChangeReportRepository{db: db}
}

const reportColumns = `
	r.id, r.employee_id, r.change_kind, r.field_changed, r.amount, r.percentage,
	r.requires_accounting_approval, r.requires_audit_approval,
	r.accounting_approved, r.accounting_approved_by, r.accounting_approved_at,
	r.audit_approved, r.audit_approved_by, r.audit_approved_at,
	r.rejected, r.rejection_reason, r.rejected_by, r.rejected_at,
	r.created_by, r.created_at, r.updated_at, r.version,
	COALESCE(e.full_name, '')`

// Create inserts a new report and fills in its id, timestamps and version.
func (r *ChangeReportRepository) Create(ctx context.Context, report *ChangeReport) error {
	query := `
		INSERT INTO change_reports
		    (employee_id, change_kind, field_changed, amount, percentage,
		     requires_accounting_approval, requires_audit_approval,
		     accounting_approved, accounting_approved_by, accounting_approved_at,
		     audit_approved, audit_approved_by, audit_approved_at,
		     created_by)
		VALUES ($1, $2::change_kind, $3, $4, $5,
		        $6, $7,
		        $8, $9, $10,
		        $11, $12, $13,
		        $14)
		RETURNING id, created_at, updated_at, version
	`

	err := r.db.QueryRow(ctx, query,
		report.EmployeeID,
		report.ChangeKind,
		report.FieldChanged,
		report.Amount,
		report.Percentage,
		report.RequiresAccountingApproval,
		report.RequiresAuditApproval,
		report.AccountingApproved,
		report.AccountingApprovedBy,
		report.AccountingApprovedAt,
		report.AuditApproved,
		report.AuditApprovedBy,
		report.AuditApprovedAt,
		report.CreatedBy,
	).Scan(&report.ID, &report.CreatedAt, &report.UpdatedAt, &report.Version)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create change report")
	}
	return nil
}

// Get retrieves a report by id.
func (r *ChangeReportRepository) Get(ctx context.Context, id string) (*ChangeReport, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM change_reports r
		LEFT JOIN employees e ON e.id = r.employee_id
		WHERE r.id = $1
	`

	report, err := r.scanReport(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("change_report", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get change report")
	}
	return report, nil
}

// List retrieves reports matching the filter, newest first, with the total
// count of matches for pagination.
func (r *ChangeReportRepository) List(ctx context.Context, filter ReportFilter) ([]*ChangeReport, int64, error) {
	where := "TRUE"
	args := []interface{}{}
	argCount := 1

	if filter.EmployeeID != nil {
		where += fmt.Sprintf(" AND r.employee_id = $%d", argCount)
		args = append(args, *filter.EmployeeID)
		argCount++
	}
	if filter.Status != nil {
		cond, err := statusCondition(*filter.Status)
		if err != nil {
			return nil, 0, err
		}
		where += " AND " + cond
	}
	if filter.Queue != nil {
		cond, err := queueCondition(*filter.Queue)
		if err != nil {
			return nil, 0, err
		}
		where += " AND " + cond
	}

	countQuery := `SELECT COUNT(*) FROM change_reports r WHERE ` + where
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count change reports")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	query := `
		SELECT ` + reportColumns + `
		FROM change_reports r
		LEFT JOIN employees e ON e.id = r.employee_id
		WHERE ` + where + `
		ORDER BY r.created_at DESC, r.id DESC
	` + fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)

	rows, err := r.db.Query(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list change reports")
	}
	defer rows.Close()

	reports, err := r.scanRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// CompareAndUpdate applies mutate to the report at expectedVersion and
// persists the result only if no concurrent writer got there first.
// Returns the report as written by this call, ErrVersionConflict otherwise.
func (r *ChangeReportRepository) CompareAndUpdate(
	ctx context.Context,
	id string,
	expectedVersion int64,
	mutate func(report *ChangeReport) error,
) (*ChangeReport, error) {
	report, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	if err := mutate(report); err != nil {
		return nil, err
	}

	query := `
		UPDATE change_reports
		SET accounting_approved     = $3,
		    accounting_approved_by  = $4,
		    accounting_approved_at  = $5,
		    audit_approved          = $6,
		    audit_approved_by       = $7,
		    audit_approved_at       = $8,
		    rejected                = $9,
		    rejection_reason        = $10,
		    rejected_by             = $11,
		    rejected_at             = $12,
		    version                 = version + 1,
		    updated_at              = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		id,
		expectedVersion,
		report.AccountingApproved,
		report.AccountingApprovedBy,
		report.AccountingApprovedAt,
		report.AuditApproved,
		report.AuditApprovedBy,
		report.AuditApprovedAt,
		report.Rejected,
		report.RejectionReason,
		report.RejectedBy,
		report.RejectedAt,
	).Scan(&report.Version, &report.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrVersionConflict
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to update change report")
	}
	return report, nil
}

// Delete removes a report. Administrative override only; it bypasses the
// state machine and is never called by the workflow engine.
func (r *ChangeReportRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM change_reports WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete change report")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("change_report", id)
	}
	return nil
}

// ── status / queue SQL conditions ─────────────────────────────────────────────
//
// These mirror DeriveStatus exactly; the flags are the source of truth and no
// status column exists to drift from them.

func statusCondition(status Status) (string, error) {
	switch status {
	case StatusPending:
		return `(NOT r.rejected AND r.requires_accounting_approval AND NOT r.accounting_approved)`, nil
	case StatusAwaitingAudit:
		return `(NOT r.rejected AND r.requires_audit_approval AND NOT r.audit_approved
		         AND (NOT r.requires_accounting_approval OR r.accounting_approved))`, nil
	case StatusCompleted:
		return `(NOT r.rejected
		         AND (NOT r.requires_accounting_approval OR r.accounting_approved)
		         AND (NOT r.requires_audit_approval OR r.audit_approved))`, nil
	case StatusRejected:
		return `r.rejected`, nil
	}
	return "", errors.InvalidInput("status", fmt.Sprintf("unknown status %q", status))
}

func queueCondition(queue Queue) (string, error) {
	switch queue {
	case QueueAccounting:
		// Accounting queue = status Pending with the accounting gate required.
		return statusCondition(StatusPending)
	case QueueAudit:
		return statusCondition(StatusAwaitingAudit)
	}
	return "", errors.InvalidInput("queue", fmt.Sprintf("unknown queue %q", queue))
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type reportScanner interface {
	Scan(dest ...any) error
}

func (r *ChangeReportRepository) scanReport(row reportScanner) (*ChangeReport, error) {
	report := &ChangeReport{}
	err := row.Scan(
		&report.ID,
		&report.EmployeeID,
		&report.ChangeKind,
		&report.FieldChanged,
		&report.Amount,
		&report.Percentage,
		&report.RequiresAccountingApproval,
		&report.RequiresAuditApproval,
		&report.AccountingApproved,
		&report.AccountingApprovedBy,
		&report.AccountingApprovedAt,
		&report.AuditApproved,
		&report.AuditApprovedBy,
		&report.AuditApprovedAt,
		&report.Rejected,
		&report.RejectionReason,
		&report.RejectedBy,
		&report.RejectedAt,
		&report.CreatedBy,
		&report.CreatedAt,
		&report.UpdatedAt,
		&report.Version,
		&report.EmployeeFullName,
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (r *ChangeReportRepository) scanRows(rows pgx.Rows) ([]*ChangeReport, error) {
	var reports []*ChangeReport
	for rows.Next() {
		report, err := r.scanReport(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan change report")
		}
		reports = append(reports, report)
	}
	return reports, nil
}
