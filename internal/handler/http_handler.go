package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pesio-ai/be-hr-change-reports/internal/errors"
	"github.com/pesio-ai/be-hr-change-reports/internal/logger"
	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
	"github.com/pesio-ai/be-hr-change-reports/internal/service"
)

// HTTPHandler exposes the change-report workflow over HTTP.
type HTTPHandler struct {
	workflow *service.WorkflowService
	log      *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(workflow *service.WorkflowService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{workflow: workflow, log: log}
}

// Routes registers all change-report routes. auth guards everything except
// the read-only list/get endpoints, which department views poll without a
// user action.
func (h *HTTPHandler) Routes(r chi.Router, auth *Authenticator) {
	r.Route("/ChangeReports", func(r chi.Router) {
		r.Get("/", h.ListReports)
		r.Get("/{id}", h.GetReport)
		r.Get("/{id}/audit", h.GetAuditTrail)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Post("/", h.SubmitReport)
			r.Post("/ApproveAccounting/{id}", h.ApproveAccounting)
			r.Post("/ApproveAudit/{id}", h.ApproveAudit)
			r.Post("/RejectAccounting/{id}", h.rejectAt(repository.QueueAccounting))
			r.Post("/RejectAudit/{id}", h.rejectAt(repository.QueueAudit))
			r.Delete("/{id}", h.DeleteReport)
		})
	})
}

// ── wire types ────────────────────────────────────────────────────────────────

// Legacy numeric status enum kept for existing consumers:
// 1=Pending, 2=AwaitingAudit, 4=Completed, 5=Rejected. Value 3 of the old
// enum is never produced; status is derived from the approval flags.
const (
	wireStatusPending       = 1
	wireStatusAwaitingAudit = 2
	wireStatusCompleted     = 4
	wireStatusRejected      = 5
)

func wireStatus(s repository.Status) int {
	switch s {
	case repository.StatusAwaitingAudit:
		return wireStatusAwaitingAudit
	case repository.StatusCompleted:
		return wireStatusCompleted
	case repository.StatusRejected:
		return wireStatusRejected
	default:
		return wireStatusPending
	}
}

type changeReportDTO struct {
	ChangeReportID   string `json:"changeReportID"`
	EmployeeID       string `json:"employeeId"`
	EmployeeFullName string `json:"employeeFullName"`

	EntitlementTypeName   *string  `json:"entitlementTypeName,omitempty"`
	EntitlementAmount     *int64   `json:"entitlementAmount,omitempty"`
	EntitlementPercentage *float64 `json:"entitlementPercentage,omitempty"`
	DeductionTypeName     *string  `json:"deductionTypeName,omitempty"`
	DeductionAmount       *int64   `json:"deductionAmount,omitempty"`
	DeductionPercentage   *float64 `json:"deductionPercentage,omitempty"`

	RequiresAccountingApproval   bool    `json:"requiresAccountingApproval"`
	AccountingApproved           bool    `json:"accountingApproved"`
	AccountingApprovedByUserName *string `json:"accountingApprovedByUserName,omitempty"`
	RequiresAuditApproval        bool    `json:"requiresAuditApproval"`
	AuditApproved                bool    `json:"auditApproved"`
	AuditApprovedByUserName      *string `json:"auditApprovedByUserName,omitempty"`

	ChangeStatus    int     `json:"changeStatus"`
	RejectionReason *string `json:"rejectionReason,omitempty"`
	RejectedBy      *string `json:"rejectedBy,omitempty"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	Version   int64     `json:"version"`
}

func toDTO(r *repository.ChangeReport) *changeReportDTO {
	dto := &changeReportDTO{
		ChangeReportID:               r.ID,
		EmployeeID:                   r.EmployeeID,
		EmployeeFullName:             r.EmployeeFullName,
		RequiresAccountingApproval:   r.RequiresAccountingApproval,
		AccountingApproved:           r.AccountingApproved,
		AccountingApprovedByUserName: r.AccountingApprovedBy,
		RequiresAuditApproval:        r.RequiresAuditApproval,
		AuditApproved:                r.AuditApproved,
		AuditApprovedByUserName:      r.AuditApprovedBy,
		ChangeStatus:                 wireStatus(r.Status()),
		RejectionReason:              r.RejectionReason,
		RejectedBy:                   r.RejectedBy,
		CreatedBy:                    r.CreatedBy,
		CreatedAt:                    r.CreatedAt,
		Version:                      r.Version,
	}

	field := r.FieldChanged
	switch r.ChangeKind {
	case repository.DeductionChange:
		dto.DeductionTypeName = &field
		dto.DeductionAmount = r.Amount
		dto.DeductionPercentage = r.Percentage
	default:
		dto.EntitlementTypeName = &field
		dto.EntitlementAmount = r.Amount
		dto.EntitlementPercentage = r.Percentage
	}
	return dto
}

type auditEntryDTO struct {
	ID           string                 `json:"id"`
	Action       string                 `json:"action"`
	PerformedBy  string                 `json:"performedBy"`
	PerformedAt  time.Time              `json:"performedAt"`
	StatusBefore *repository.Status     `json:"statusBefore,omitempty"`
	StatusAfter  *repository.Status     `json:"statusAfter,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// ── handlers ──────────────────────────────────────────────────────────────────

type submitRequest struct {
	EmployeeID   string   `json:"employeeId"`
	ChangeKind   string   `json:"changeKind"`
	FieldChanged string   `json:"fieldChanged"`
	Amount       *int64   `json:"amount"`
	Percentage   *float64 `json:"percentage"`
}

// SubmitReport handles POST /ChangeReports.
func (h *HTTPHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.InvalidInput("body", "invalid request body"))
		return
	}

	report, err := h.workflow.Submit(r.Context(), &service.SubmitRequest{
		EmployeeID:   req.EmployeeID,
		ChangeKind:   repository.ChangeKind(req.ChangeKind),
		FieldChanged: req.FieldChanged,
		Amount:       req.Amount,
		Percentage:   req.Percentage,
		CreatedBy:    ActorFrom(r.Context()),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toDTO(report))
}

// ListReports handles GET /ChangeReports with status/queue/employee filters
// and PageSize/Page pagination.
func (h *HTTPHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	filter := repository.ReportFilter{
		Page:     queryInt(r, "Page", "page"),
		PageSize: queryInt(r, "PageSize", "pageSize"),
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := repository.Status(raw)
		switch status {
		case repository.StatusPending, repository.StatusAwaitingAudit,
			repository.StatusCompleted, repository.StatusRejected:
			filter.Status = &status
		default:
			h.writeError(w, errors.InvalidInput("status", "unknown status"))
			return
		}
	}
	if raw := r.URL.Query().Get("queue"); raw != "" {
		queue := repository.Queue(raw)
		if queue != repository.QueueAccounting && queue != repository.QueueAudit {
			h.writeError(w, errors.InvalidInput("queue", "unknown queue"))
			return
		}
		filter.Queue = &queue
	}
	if raw := r.URL.Query().Get("employeeId"); raw != "" {
		filter.EmployeeID = &raw
	}

	reports, total, err := h.workflow.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]*changeReportDTO, 0, len(reports))
	for _, report := range reports {
		items = append(items, toDTO(report))
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	})
}

// GetReport handles GET /ChangeReports/{id}.
func (h *HTTPHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.workflow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDTO(report))
}

// GetAuditTrail handles GET /ChangeReports/{id}/audit.
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.workflow.GetAuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	items := make([]*auditEntryDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, &auditEntryDTO{
			ID:           e.ID,
			Action:       e.Action,
			PerformedBy:  e.PerformedBy,
			PerformedAt:  e.PerformedAt,
			StatusBefore: e.StatusBefore,
			StatusAfter:  e.StatusAfter,
			Metadata:     e.Metadata,
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// ApproveAccounting handles POST /ChangeReports/ApproveAccounting/{id}.
func (h *HTTPHandler) ApproveAccounting(w http.ResponseWriter, r *http.Request) {
	report, err := h.workflow.ApproveAccounting(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDTO(report))
}

// ApproveAudit handles POST /ChangeReports/ApproveAudit/{id}.
func (h *HTTPHandler) ApproveAudit(w http.ResponseWriter, r *http.Request) {
	report, err := h.workflow.ApproveAudit(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toDTO(report))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// rejectAt builds the handler for POST /ChangeReports/Reject{Gate}/{id}.
func (h *HTTPHandler) rejectAt(gate repository.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rejectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, errors.InvalidInput("body", "invalid request body"))
			return
		}

		report, err := h.workflow.Reject(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context()), req.Reason, gate)
		if err != nil {
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, toDTO(report))
	}
}

// DeleteReport handles DELETE /ChangeReports/{id} — administrative override,
// outside the state machine.
func (h *HTTPHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Delete(r.Context(), chi.URLParam(r, "id"), ActorFrom(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── response helpers ──────────────────────────────────────────────────────────

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response body")
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	status := httpStatusFor(code)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{
		Code:    string(code),
		Message: err.Error(),
	}})
}

func httpStatusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeConcurrency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{
		Code:    string(errors.ErrCodeUnauthorized),
		Message: message,
	}})
}

func queryInt(r *http.Request, names ...string) int {
	for _, name := range names {
		if raw := r.URL.Query().Get(name); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				return v
			}
		}
	}
	return 0
}
