package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setStatus(ctx context.Context, f *fixture, a usecase.Actor, s entity.OrderStatus) (*entity.Order, error) {
	return f.coord.UpdateStatus(ctx, usecase.UpdateStatusRequest{Actor: a, OrderID: "o1", Status: s})
}

func evidence(ctx context.Context, f *fixture, n int) (*entity.Order, error) {
	return f.coord.UploadEvidence(ctx, usecase.UploadEvidenceRequest{Actor: embroiderer1, OrderID: "o1", Slot: n, Image: photo})
}

func TestProductionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.readyToEmbroider(t)

	o, err := setStatus(ctx, f, embroiderer1, entity.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, o.Status)

	_, err = f.coord.ReportIssue(ctx, usecase.ReportIssueRequest{Actor: embroiderer1, OrderID: "o1", Issue: " "})
	assert.ErrorIs(t, err, usecase.ErrValidation)

	o, err = f.coord.ReportIssue(ctx, usecase.ReportIssueRequest{Actor: embroiderer1, OrderID: "o1", Issue: "thread snapped"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOnHold, o.Status)
	assert.Equal(t, "thread snapped", o.ProductionIssue)

	o, err = f.coord.ResolveIssue(ctx, usecase.ResolveIssueRequest{Actor: designer1, OrderID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, o.Status)
	assert.Empty(t, o.ProductionIssue)

	_, err = evidence(ctx, f, 1)
	assert.ErrorIs(t, err, usecase.ErrValidation, "evidence before ready for dispatch")

	_, err = setStatus(ctx, f, embroiderer1, entity.StatusReadyForDispatch)
	require.NoError(t, err)

	_, err = setStatus(ctx, f, embroiderer1, entity.StatusDispatched)
	assert.ErrorIs(t, err, usecase.ErrValidation)
	assert.Equal(t, entity.StatusReadyForDispatch, f.get(t, "o1").Status)

	_, err = evidence(ctx, f, 1)
	require.NoError(t, err)
	_, err = setStatus(ctx, f, embroiderer1, entity.StatusDispatched)
	assert.ErrorIs(t, err, usecase.ErrValidation, "one evidence photo is not enough")

	_, err = evidence(ctx, f, 2)
	require.NoError(t, err)
	o, err = setStatus(ctx, f, embroiderer1, entity.StatusDispatched)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDispatched, o.Status)
	assert.Equal(t, string(entity.StatusDispatched), f.events.last().To)
}

func TestUpdateStatusRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.readyToEmbroider(t)

	_, err := setStatus(ctx, f, customer, entity.StatusInProgress)
	assert.ErrorIs(t, err, usecase.ErrForbidden)

	_, err = setStatus(ctx, f, embroiderer1, entity.StatusDispatched)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = setStatus(ctx, f, embroiderer1, entity.StatusDesignReview)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	_, err = f.coord.ReportIssue(ctx, usecase.ReportIssueRequest{Actor: embroiderer1, OrderID: "o1", Issue: "x"})
	assert.ErrorIs(t, err, usecase.ErrValidation, "issues only while in progress")

	_, err = f.coord.UploadEvidence(ctx, usecase.UploadEvidenceRequest{Actor: embroiderer1, OrderID: "o1", Slot: 3, Image: photo})
	assert.ErrorIs(t, err, usecase.ErrValidation)

	other := usecase.Actor{Subject: "embroiderer-9", Role: entity.RoleEmbroiderer}
	_, err = setStatus(ctx, f, other, entity.StatusInProgress)
	assert.ErrorIs(t, err, usecase.ErrForbidden)

	assert.Equal(t, entity.StatusReadyToEmbroider, f.get(t, "o1").Status)
}

func readyUnassigned(t *testing.T, f *fixture) {
	t.Helper()
	o := packOrder("o9", "zed@example.com")
	o.Status = entity.StatusReadyToEmbroider
	o.DesignerID = "designer-1"
	require.NoError(t, f.store.CreateOrder(context.Background(), o))
}

func TestStartWorkSelfAssigns(t *testing.T) {
	f := newFixture(t)
	readyUnassigned(t, f)

	o, err := f.coord.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		Actor: embroiderer1, OrderID: "o9", Status: entity.StatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, o.Status)
	assert.Equal(t, "embroiderer-1", o.EmbroidererID)
}

func TestStatusAndAssignmentWriteTogether(t *testing.T) {
	f := newFixture(t)
	readyUnassigned(t, f)
	f.store.InjectFault(func(op, id string) error {
		if op == "UpdateOrder" && id == "o9" {
			return errors.New("deadlock")
		}
		return nil
	})
	before := len(f.events.msgs)

	_, err := f.coord.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		Actor: admin, OrderID: "o9", Status: entity.StatusInProgress,
	})
	assert.ErrorIs(t, err, usecase.ErrExternal)

	o := f.get(t, "o9")
	assert.Equal(t, entity.StatusReadyToEmbroider, o.Status)
	assert.Empty(t, o.EmbroidererID)
	assert.Len(t, f.events.msgs, before)

	f.store.InjectFault(nil)
	o, err = f.coord.UpdateStatus(context.Background(), usecase.UpdateStatusRequest{
		Actor: admin, OrderID: "o9", Status: entity.StatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, "embroiderer-1", o.EmbroidererID)
}
