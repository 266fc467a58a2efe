package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-change-reports/internal/logger"
	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
	"github.com/pesio-ai/be-hr-change-reports/internal/service"
)

const (
	hrToken    = "hr-token"
	acctToken  = "acct-token"
	auditToken = "audit-token"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	store.AddEmployee("emp-1", "Grace Hopper")

	log := &logger.Logger{Logger: zerolog.Nop()}
	gates := service.NewGateEvaluator(service.GatePolicy{
		NegligibleAmountCents: 10_000,
		NegligiblePercent:     1.0,
	})
	workflow := service.NewWorkflowService(
		store, gates, service.NewEffectApplier(store, log), store, nil, log,
	)

	auth := NewAuthenticator(map[string]string{
		hrToken:    "hr-user",
		acctToken:  "acct-user",
		auditToken: "audit-user",
	})

	r := chi.NewRouter()
	NewHTTPHandler(workflow, log).Routes(r, auth)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func doRequest(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type reportBody struct {
	ChangeReportID       string  `json:"changeReportID"`
	EmployeeFullName     string  `json:"employeeFullName"`
	EntitlementTypeName  *string `json:"entitlementTypeName"`
	EntitlementAmount    *int64  `json:"entitlementAmount"`
	DeductionTypeName    *string `json:"deductionTypeName"`
	DeductionAmount      *int64  `json:"deductionAmount"`
	RequiresAccounting   bool    `json:"requiresAccountingApproval"`
	AccountingApproved   bool    `json:"accountingApproved"`
	AccountingApprovedBy *string `json:"accountingApprovedByUserName"`
	RequiresAudit        bool    `json:"requiresAuditApproval"`
	AuditApproved        bool    `json:"auditApproved"`
	AuditApprovedByName  *string `json:"auditApprovedByUserName"`
	ChangeStatus         int     `json:"changeStatus"`
	RejectionReason      *string `json:"rejectionReason"`
}

func submitReport(t *testing.T, srv *httptest.Server, amount int64) reportBody {
	t.Helper()
	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports", hrToken, map[string]interface{}{
		"employeeId":   "emp-1",
		"changeKind":   "entitlement_change",
		"fieldChanged": "housing_allowance",
		"amount":       amount,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body reportBody
	decodeBody(t, resp, &body)
	return body
}

func TestMutatingRoutesRequireBearerToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports", "", map[string]interface{}{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var errResp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "UNAUTHORIZED", errResp.Error.Code)

	resp = doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/ApproveAccounting/some-id", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestSubmitApproveFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	report := submitReport(t, srv, 50_000)
	assert.Equal(t, 1, report.ChangeStatus, "pending")
	assert.Equal(t, "Grace Hopper", report.EmployeeFullName)
	require.NotNil(t, report.EntitlementTypeName)
	assert.Equal(t, "housing_allowance", *report.EntitlementTypeName)
	assert.Nil(t, report.DeductionTypeName)

	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/ApproveAccounting/"+report.ChangeReportID, acctToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var approved reportBody
	decodeBody(t, resp, &approved)
	assert.Equal(t, 2, approved.ChangeStatus, "awaiting audit")
	require.NotNil(t, approved.AccountingApprovedBy)
	assert.Equal(t, "acct-user", *approved.AccountingApprovedBy)

	resp = doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/ApproveAudit/"+report.ChangeReportID, auditToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed reportBody
	decodeBody(t, resp, &completed)
	assert.Equal(t, 4, completed.ChangeStatus, "completed")

	// Terminal reports refuse further transitions.
	resp = doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/ApproveAccounting/"+report.ChangeReportID, acctToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRejectOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	report := submitReport(t, srv, 50_000)

	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/RejectAccounting/"+report.ChangeReportID, acctToken,
		map[string]string{"reason": "missing documentation"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rejected reportBody
	decodeBody(t, resp, &rejected)
	assert.Equal(t, 5, rejected.ChangeStatus, "rejected")
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "missing documentation", *rejected.RejectionReason)
}

func TestRejectWithoutReasonIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	report := submitReport(t, srv, 50_000)

	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/RejectAudit/"+report.ChangeReportID, auditToken,
		map[string]string{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAuditBeforeAccountingIsConflict(t *testing.T) {
	srv, _ := newTestServer(t)
	report := submitReport(t, srv, 50_000)

	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/ApproveAudit/"+report.ChangeReportID, auditToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestDeductionFieldNaming(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports", hrToken, map[string]interface{}{
		"employeeId":   "emp-1",
		"changeKind":   "deduction_change",
		"fieldChanged": "union_dues",
		"amount":       int64(25_000),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body reportBody
	decodeBody(t, resp, &body)
	require.NotNil(t, body.DeductionTypeName)
	assert.Equal(t, "union_dues", *body.DeductionTypeName)
	require.NotNil(t, body.DeductionAmount)
	assert.Equal(t, int64(25_000), *body.DeductionAmount)
	assert.Nil(t, body.EntitlementTypeName)
}

func TestListAndGet(t *testing.T) {
	srv, _ := newTestServer(t)
	report := submitReport(t, srv, 50_000)

	resp := doRequest(t, http.MethodGet, srv.URL+"/ChangeReports?queue=accounting&PageSize=10", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Items []reportBody `json:"items"`
		Total int64        `json:"total"`
	}
	decodeBody(t, resp, &list)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, report.ChangeReportID, list.Items[0].ChangeReportID)

	resp = doRequest(t, http.MethodGet, srv.URL+"/ChangeReports/"+report.ChangeReportID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got reportBody
	decodeBody(t, resp, &got)
	assert.Equal(t, report.ChangeReportID, got.ChangeReportID)

	resp = doRequest(t, http.MethodGet, srv.URL+"/ChangeReports/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, srv.URL+"/ChangeReports?status=sideways", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAdministrativeDeleteOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	report := submitReport(t, srv, 50_000)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/ChangeReports/"+report.ChangeReportID, hrToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, srv.URL+"/ChangeReports/"+report.ChangeReportID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// The deletion record stays readable after the report is gone.
	resp = doRequest(t, http.MethodGet, srv.URL+"/ChangeReports/"+report.ChangeReportID+"/audit", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var trail struct {
		Items []struct {
			Action string `json:"action"`
		} `json:"items"`
	}
	decodeBody(t, resp, &trail)
	require.NotEmpty(t, trail.Items)
	assert.Equal(t, "deleted", trail.Items[len(trail.Items)-1].Action)
}

func TestAuditTrailOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	report := submitReport(t, srv, 50_000)

	resp := doRequest(t, http.MethodPost, srv.URL+"/ChangeReports/ApproveAccounting/"+report.ChangeReportID, acctToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, srv.URL+"/ChangeReports/"+report.ChangeReportID+"/audit", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var trail struct {
		Items []struct {
			Action      string `json:"action"`
			PerformedBy string `json:"performedBy"`
		} `json:"items"`
	}
	decodeBody(t, resp, &trail)
	require.Len(t, trail.Items, 2)
	assert.Equal(t, "submitted", trail.Items[0].Action)
	assert.Equal(t, "hr-user", trail.Items[0].PerformedBy)
	assert.Equal(t, "accounting_approved", trail.Items[1].Action)
	assert.Equal(t, "acct-user", trail.Items[1].PerformedBy)
}
