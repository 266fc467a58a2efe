package repository

import "time"

// ── Domain types for the change-report approval workflow ─────────────────────

// ChangeKind distinguishes additive from subtractive compensation changes.
type ChangeKind string

const (
	EntitlementChange ChangeKind = "entitlement_change"
	DeductionChange   ChangeKind = "deduction_change"
)

// Valid reports whether k is one of the two known kinds.
func (k ChangeKind) Valid() bool {
	return k == EntitlementChange || k == DeductionChange
}

// Status is the lifecycle state of a change report. It is always derived
// from the approval flags (see DeriveStatus), never stored independently.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAwaitingAudit Status = "awaiting_audit"
	StatusCompleted     Status = "completed"
	StatusRejected      Status = "rejected"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// Queue is a department work queue a report can appear in.
type Queue string

const (
	QueueAccounting Queue = "accounting"
	QueueAudit      Queue = "audit"
)

// ChangeReport is a proposed change to an employee's entitlements or
// deductions. The required-gate flags are fixed at submission; the approval
// and rejection fields are the only mutable state, guarded by Version.
type ChangeReport struct {
	ID         string
	EmployeeID string

	ChangeKind   ChangeKind
	FieldChanged string
	Amount       *int64   // minor units; exactly one of Amount/Percentage is set
	Percentage   *float64

	RequiresAccountingApproval bool
	RequiresAuditApproval      bool

	AccountingApproved   bool
	AccountingApprovedBy *string
	AccountingApprovedAt *time.Time

	AuditApproved   bool
	AuditApprovedBy *string
	AuditApprovedAt *time.Time

	Rejected        bool
	RejectionReason *string
	RejectedBy      *string
	RejectedAt      *time.Time

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Version increments on every successful CompareAndUpdate.
	Version int64

	// EmployeeFullName is populated on reads that join the employees table.
	EmployeeFullName string
}

// DeriveStatus computes the report status from the approval flags. This is
// the single source of truth for status; no code path stores a status that
// could disagree with it.
func DeriveStatus(requiresAccounting, accountingApproved, requiresAudit, auditApproved, rejected bool) Status {
	if rejected {
		return StatusRejected
	}
	if requiresAudit && !auditApproved {
		if !requiresAccounting || accountingApproved {
			return StatusAwaitingAudit
		}
		return StatusPending
	}
	if requiresAccounting && !accountingApproved {
		return StatusPending
	}
	return StatusCompleted
}

// Status derives the report's current status from its flags.
func (r *ChangeReport) Status() Status {
	return DeriveStatus(
		r.RequiresAccountingApproval, r.AccountingApproved,
		r.RequiresAuditApproval, r.AuditApproved,
		r.Rejected,
	)
}

// ReportFilter narrows List results. Nil fields match everything.
type ReportFilter struct {
	Status     *Status
	Queue      *Queue
	EmployeeID *string
	Page       int
	PageSize   int
}

// AuditEntry is one immutable record in the change-report audit log.
type AuditEntry struct {
	ID           string
	ReportID     string
	EmployeeID   string
	Action       string // submitted | accounting_approved | audit_approved | completed | rejected | deleted
	PerformedBy  string
	PerformedAt  time.Time
	StatusBefore *Status
	StatusAfter  *Status
	Metadata     map[string]interface{}
}

// CompensationItem is one active entitlement or deduction on an employee's
// compensation record, keyed by (employee, kind, field).
type CompensationItem struct {
	ID             string
	EmployeeID     string
	Kind           ChangeKind
	Field          string
	Amount         *int64
	Percentage     *float64
	SourceReportID string
	UpdatedAt      time.Time
}
