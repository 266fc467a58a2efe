package service

import "github.com/pesio-ai/be-hr-change-reports/internal/repository"

// QueuesFor maps a report to the department work queues it currently belongs
// to. Pure read-side projection: a report sits in the Accounting queue while
// Pending with the accounting gate required, in the Audit queue while
// AwaitingAudit, and in no queue once terminal.
func QueuesFor(report *repository.ChangeReport) []repository.Queue {
	switch report.Status() {
	case repository.StatusPending:
		if report.RequiresAccountingApproval {
			return []repository.Queue{repository.QueueAccounting}
		}
	case repository.StatusAwaitingAudit:
		return []repository.Queue{repository.QueueAudit}
	}
	return nil
}
