package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
)

func testPolicy() GatePolicy {
	return GatePolicy{
		NegligibleAmountCents: 10_000,
		NegligiblePercent:     1.0,
	}
}

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestEvaluateAlwaysRequiresAccounting(t *testing.T) {
	eval := NewGateEvaluator(testPolicy())

	acc, _ := eval.Evaluate(repository.EntitlementChange, int64Ptr(1), nil)
	assert.True(t, acc)

	acc, _ = eval.Evaluate(repository.DeductionChange, nil, floatPtr(50))
	assert.True(t, acc)
}

func TestEvaluateAuditRequiredForLargeChanges(t *testing.T) {
	eval := NewGateEvaluator(testPolicy())

	_, audit := eval.Evaluate(repository.EntitlementChange, int64Ptr(10_001), nil)
	assert.True(t, audit)

	_, audit = eval.Evaluate(repository.DeductionChange, nil, floatPtr(5.0))
	assert.True(t, audit)
}

func TestEvaluateNegligibleChangesSkipAudit(t *testing.T) {
	eval := NewGateEvaluator(testPolicy())

	_, audit := eval.Evaluate(repository.EntitlementChange, int64Ptr(10_000), nil)
	assert.False(t, audit, "amount at threshold is negligible")

	_, audit = eval.Evaluate(repository.DeductionChange, nil, floatPtr(0.5))
	assert.False(t, audit, "percentage below threshold is negligible")

	// Magnitude is what matters, not sign.
	_, audit = eval.Evaluate(repository.DeductionChange, int64Ptr(-500), nil)
	assert.False(t, audit)
}

func TestEvaluateExemptKindSkipsAudit(t *testing.T) {
	policy := testPolicy()
	policy.AuditExemptKinds = map[repository.ChangeKind]bool{
		repository.DeductionChange: true,
	}
	eval := NewGateEvaluator(policy)

	_, audit := eval.Evaluate(repository.DeductionChange, int64Ptr(1_000_000), nil)
	assert.False(t, audit)

	_, audit = eval.Evaluate(repository.EntitlementChange, int64Ptr(1_000_000), nil)
	assert.True(t, audit, "exemption applies per kind")
}

func TestEvaluateIsDeterministic(t *testing.T) {
	eval := NewGateEvaluator(testPolicy())
	for i := 0; i < 5; i++ {
		acc, audit := eval.Evaluate(repository.EntitlementChange, int64Ptr(25_000), nil)
		assert.True(t, acc)
		assert.True(t, audit)
	}
}
