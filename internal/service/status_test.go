package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
)

func TestDeriveStatusTable(t *testing.T) {
	cases := []struct {
		name                                   string
		reqAcc, accApproved, reqAudit, auditOK bool
		rejected                               bool
		want                                   repository.Status
	}{
		{"rejected wins", true, true, true, true, true, repository.StatusRejected},
		{"both gates, nothing approved", true, false, true, false, false, repository.StatusPending},
		{"both gates, accounting approved", true, true, true, false, false, repository.StatusAwaitingAudit},
		{"both gates, both approved", true, true, true, true, false, repository.StatusCompleted},
		{"accounting only, pending", true, false, false, false, false, repository.StatusPending},
		{"accounting only, approved", true, true, false, false, false, repository.StatusCompleted},
		{"audit only, pending", false, false, true, false, false, repository.StatusAwaitingAudit},
		{"audit only, approved", false, false, true, true, false, repository.StatusCompleted},
		{"no gates", false, false, false, false, false, repository.StatusCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := repository.DeriveStatus(tc.reqAcc, tc.accApproved, tc.reqAudit, tc.auditOK, tc.rejected)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQueuesFor(t *testing.T) {
	pending := &repository.ChangeReport{
		RequiresAccountingApproval: true,
		RequiresAuditApproval:      true,
	}
	assert.Equal(t, []repository.Queue{repository.QueueAccounting}, QueuesFor(pending))

	awaitingAudit := &repository.ChangeReport{
		RequiresAccountingApproval: true,
		AccountingApproved:         true,
		RequiresAuditApproval:      true,
	}
	assert.Equal(t, []repository.Queue{repository.QueueAudit}, QueuesFor(awaitingAudit))

	completed := &repository.ChangeReport{
		RequiresAccountingApproval: true,
		AccountingApproved:         true,
	}
	assert.Nil(t, QueuesFor(completed), "terminal reports sit in no queue")

	rejected := &repository.ChangeReport{
		RequiresAccountingApproval: true,
		Rejected:                   true,
	}
	assert.Nil(t, QueuesFor(rejected))
}
