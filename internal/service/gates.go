package service

import "github.com/pesio-ai/be-hr-change-reports/internal/repository"

// GatePolicy holds the fixed business thresholds behind gate evaluation.
// Loaded from config at startup; not user-configurable at runtime.
type GatePolicy struct {
	// Changes at or below these magnitudes skip the Audit gate.
	NegligibleAmountCents int64
	NegligiblePercent     float64
	// Change kinds exempted from Audit by policy.
	AuditExemptKinds map[repository.ChangeKind]bool
}

// GateEvaluator computes which approval gates a change requires.
// Pure and deterministic; called exactly once, at submission. The resulting
// flags are immutable for the lifetime of the report.
type GateEvaluator struct {
	policy GatePolicy
}

// NewGateEvaluator creates a GateEvaluator with the given policy.
func NewGateEvaluator(policy GatePolicy) *GateEvaluator {
	return &GateEvaluator{policy: policy}
}

// Evaluate returns (requiresAccountingApproval, requiresAuditApproval) for a
// proposed change. Every entitlement/deduction change requires Accounting
// approval; Audit approval is additionally required unless the change is
// below the negligible threshold or its kind is policy-exempt.
func (e *GateEvaluator) Evaluate(kind repository.ChangeKind, amount *int64, percentage *float64) (requiresAccounting, requiresAudit bool) {
	requiresAccounting = true

	if e.policy.AuditExemptKinds[kind] {
		return requiresAccounting, false
	}
	if amount != nil && abs64(*amount) <= e.policy.NegligibleAmountCents {
		return requiresAccounting, false
	}
	if percentage != nil && absFloat(*percentage) <= e.policy.NegligiblePercent {
		return requiresAccounting, false
	}
	return requiresAccounting, true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
