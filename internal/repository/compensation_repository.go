package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-change-reports/internal/database"
	"github.com/pesio-ai/be-hr-change-reports/internal/errors"
)

// ErrAlreadyApplied is returned when a report's compensation effect has
// already been recorded. Callers treat it as success.
var ErrAlreadyApplied = errors.New(errors.ErrCodeConflict, "change report effect already applied")

// CompensationRepository mutates employee compensation records and owns the
// applied-effect marker table. The marker insert and the compensation upsert
// happen in one transaction, so a retried Completed transition can never
// apply the same effect twice.
type CompensationRepository struct {
	db *database.DB
}

// NewCompensationRepository creates a new CompensationRepository.
func NewCompensationRepository(db *database.DB) *CompensationRepository {
	return &CompensationRepository{db: db}
}

// ApplyReport applies a completed report's change to the employee's active
// compensation set, exactly once per report id.
//
// Errors: NotFound when the employee does not exist, ErrAlreadyApplied when
// the marker row already exists.
func (r *CompensationRepository) ApplyReport(ctx context.Context, report *ChangeReport) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		// Employee must exist before anything is written.
		var employeeID string
		err := tx.QueryRow(ctx,
			`SELECT id FROM employees WHERE id = $1`,
			report.EmployeeID,
		).Scan(&employeeID)
		if err == pgx.ErrNoRows {
			return errors.NotFound("employee", report.EmployeeID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to look up employee")
		}

		// Idempotence marker: the unique constraint on report_id makes the
		// check-and-set atomic with the compensation write below.
		tag, err := tx.Exec(ctx, `
			INSERT INTO change_report_effects (report_id)
			VALUES ($1)
			ON CONFLICT (report_id) DO NOTHING
		`, report.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to record effect marker")
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyApplied
		}

		query := `
			INSERT INTO employee_compensation_items
			    (employee_id, kind, field, amount, percentage, source_report_id)
			VALUES ($1, $2::change_kind, $3, $4, $5, $6)
			ON CONFLICT (employee_id, kind, field)
			DO UPDATE SET amount           = EXCLUDED.amount,
			              percentage       = EXCLUDED.percentage,
			              source_report_id = EXCLUDED.source_report_id,
			              updated_at       = NOW()
		`
		_, err = tx.Exec(ctx, query,
			report.EmployeeID,
			report.ChangeKind,
			report.FieldChanged,
			report.Amount,
			report.Percentage,
			report.ID,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to apply compensation change")
		}
		return nil
	})
}

// GetItems returns the employee's active compensation items ordered by field.
func (r *CompensationRepository) GetItems(ctx context.Context, employeeID string) ([]*CompensationItem, error) {
	query := `
		SELECT id, employee_id, kind, field, amount, percentage, source_report_id, updated_at
		FROM employee_compensation_items
		WHERE employee_id = $1
		ORDER BY kind, field
	`

	rows, err := r.db.Query(ctx, query, employeeID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get compensation items")
	}
	defer rows.Close()

	var items []*CompensationItem
	for rows.Next() {
		item := &CompensationItem{}
		err := rows.Scan(
			&item.ID,
			&item.EmployeeID,
			&item.Kind,
			&item.Field,
			&item.Amount,
			&item.Percentage,
			&item.SourceReportID,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan compensation item")
		}
		items = append(items, item)
	}
	return items, nil
}
