package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-change-reports/internal/errors"
	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
)

func TestApplyIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddEmployee(testEmployee, "Ada Lovelace")
	applier := NewEffectApplier(store, testLogger())
	ctx := context.Background()

	report := &repository.ChangeReport{
		ID:           "report-1",
		EmployeeID:   testEmployee,
		ChangeKind:   repository.EntitlementChange,
		FieldChanged: "transport_allowance",
		Amount:       int64Ptr(30_000),
	}

	require.NoError(t, applier.Apply(ctx, report))
	require.NoError(t, applier.Apply(ctx, report), "duplicate invocation is a successful no-op")

	items, err := store.GetItems(ctx, testEmployee)
	require.NoError(t, err)
	require.Len(t, items, 1, "compensation changed exactly once")
	require.NotNil(t, items[0].Amount)
	assert.Equal(t, int64(30_000), *items[0].Amount)
}

func TestApplyUnknownEmployee(t *testing.T) {
	store := repository.NewMemoryStore()
	applier := NewEffectApplier(store, testLogger())

	report := &repository.ChangeReport{
		ID:           "report-2",
		EmployeeID:   "ghost",
		ChangeKind:   repository.DeductionChange,
		FieldChanged: "union_dues",
		Amount:       int64Ptr(1_500),
	}

	err := applier.Apply(context.Background(), report)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	items, getErr := store.GetItems(context.Background(), "ghost")
	require.NoError(t, getErr)
	assert.Empty(t, items)
}

func TestApplyOverwritesSameField(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddEmployee(testEmployee, "Ada Lovelace")
	applier := NewEffectApplier(store, testLogger())
	ctx := context.Background()

	first := &repository.ChangeReport{
		ID:           "report-3",
		EmployeeID:   testEmployee,
		ChangeKind:   repository.EntitlementChange,
		FieldChanged: "housing_allowance",
		Amount:       int64Ptr(10_000),
	}
	second := &repository.ChangeReport{
		ID:           "report-4",
		EmployeeID:   testEmployee,
		ChangeKind:   repository.EntitlementChange,
		FieldChanged: "housing_allowance",
		Amount:       int64Ptr(20_000),
	}

	require.NoError(t, applier.Apply(ctx, first))
	require.NoError(t, applier.Apply(ctx, second))

	items, err := store.GetItems(ctx, testEmployee)
	require.NoError(t, err)
	require.Len(t, items, 1, "same field holds one active item")
	require.NotNil(t, items[0].Amount)
	assert.Equal(t, int64(20_000), *items[0].Amount)
	assert.Equal(t, "report-4", items[0].SourceReportID)
}
