package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-hr-change-reports/internal/errors"
)

// MemoryStore is an in-memory implementation of the change-report store, the
// compensation store and the audit log, with the same concurrency contract
// as the Postgres repositories. Used by tests and local development.
type MemoryStore struct {
	mu        sync.Mutex
	reports   map[string]*ChangeReport
	employees map[string]string // id -> full name
	applied   map[string]struct{}
	items     map[string]*CompensationItem // employee|kind|field
	audit     []*AuditEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:   make(map[string]*ChangeReport),
		employees: make(map[string]string),
		applied:   make(map[string]struct{}),
		items:     make(map[string]*CompensationItem),
	}
}

// AddEmployee registers an employee so reports against them can complete.
func (s *MemoryStore) AddEmployee(id, fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[id] = fullName
}

// ── ChangeReportStore ─────────────────────────────────────────────────────────

// Create assigns an id and version and stores the report.
func (s *MemoryStore) Create(ctx context.Context, report *ChangeReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	report.ID = uuid.NewString()
	report.CreatedAt = now
	report.UpdatedAt = now
	report.Version = 1
	report.EmployeeFullName = s.employees[report.EmployeeID]

	s.reports[report.ID] = cloneReport(report)
	return nil
}

// Get returns a copy of the report with the given id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*ChangeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[id]
	if !ok {
		return nil, errors.NotFound("change_report", id)
	}
	return cloneReport(report), nil
}

// List returns reports matching the filter, newest first.
func (s *MemoryStore) List(ctx context.Context, filter ReportFilter) ([]*ChangeReport, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*ChangeReport
	for _, report := range s.reports {
		if filter.EmployeeID != nil && report.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && report.Status() != *filter.Status {
			continue
		}
		if filter.Queue != nil && !inQueue(report, *filter.Queue) {
			continue
		}
		matched = append(matched, cloneReport(report))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := int64(len(matched))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// CompareAndUpdate applies mutate to the stored report only when its version
// still equals expectedVersion. Returns a copy of the report as written by
// this call.
func (s *MemoryStore) CompareAndUpdate(
	ctx context.Context,
	id string,
	expectedVersion int64,
	mutate func(report *ChangeReport) error,
) (*ChangeReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.reports[id]
	if !ok {
		return nil, errors.NotFound("change_report", id)
	}
	if stored.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	next := cloneReport(stored)
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now()
	s.reports[id] = next
	return cloneReport(next), nil
}

// Delete removes a report.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[id]; !ok {
		return errors.NotFound("change_report", id)
	}
	delete(s.reports, id)
	return nil
}

// ── CompensationStore ─────────────────────────────────────────────────────────

// ApplyReport mirrors CompensationRepository.ApplyReport: employee check,
// atomic applied marker, then upsert of the compensation item.
func (s *MemoryStore) ApplyReport(ctx context.Context, report *ChangeReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[report.EmployeeID]; !ok {
		return errors.NotFound("employee", report.EmployeeID)
	}
	if _, ok := s.applied[report.ID]; ok {
		return ErrAlreadyApplied
	}
	s.applied[report.ID] = struct{}{}

	key := report.EmployeeID + "|" + string(report.ChangeKind) + "|" + report.FieldChanged
	s.items[key] = &CompensationItem{
		ID:             uuid.NewString(),
		EmployeeID:     report.EmployeeID,
		Kind:           report.ChangeKind,
		Field:          report.FieldChanged,
		Amount:         cloneInt64(report.Amount),
		Percentage:     cloneFloat64(report.Percentage),
		SourceReportID: report.ID,
		UpdatedAt:      time.Now(),
	}
	return nil
}

// GetItems returns the employee's compensation items ordered by kind, field.
func (s *MemoryStore) GetItems(ctx context.Context, employeeID string) ([]*CompensationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*CompensationItem
	for _, item := range s.items {
		if item.EmployeeID == employeeID {
			cp := *item
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Field < items[j].Field
	})
	return items, nil
}

// ── AuditLog ──────────────────────────────────────────────────────────────────

// Append stores one audit entry.
func (s *MemoryStore) Append(ctx context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.PerformedAt = time.Now()
	cp := *entry
	s.audit = append(s.audit, &cp)
	return nil
}

// GetByReportID returns audit entries for a report, oldest first.
func (s *MemoryStore) GetByReportID(ctx context.Context, reportID string) ([]*AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*AuditEntry
	for _, entry := range s.audit {
		if entry.ReportID == reportID {
			cp := *entry
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func inQueue(report *ChangeReport, queue Queue) bool {
	switch queue {
	case QueueAccounting:
		return report.Status() == StatusPending && report.RequiresAccountingApproval
	case QueueAudit:
		return report.Status() == StatusAwaitingAudit
	}
	return false
}

func cloneReport(r *ChangeReport) *ChangeReport {
	cp := *r
	cp.Amount = cloneInt64(r.Amount)
	cp.Percentage = cloneFloat64(r.Percentage)
	cp.AccountingApprovedBy = cloneString(r.AccountingApprovedBy)
	cp.AccountingApprovedAt = cloneTime(r.AccountingApprovedAt)
	cp.AuditApprovedBy = cloneString(r.AuditApprovedBy)
	cp.AuditApprovedAt = cloneTime(r.AuditApprovedAt)
	cp.RejectionReason = cloneString(r.RejectionReason)
	cp.RejectedBy = cloneString(r.RejectedBy)
	cp.RejectedAt = cloneTime(r.RejectedAt)
	return &cp
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat64(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
