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

func ids(orders []entity.Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestQueryScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := packOrder("o2", "bo@example.com")
	other.DesignerID = "designer-2"
	other.Status = entity.StatusWaitingForDesign
	require.NoError(t, f.store.CreateOrder(ctx, other))
	q := usecase.NewOrderQuery(f.store, nil)

	cases := []struct {
		actor usecase.Actor
		want  []string
	}{
		{customer, []string{"o1"}},
		{usecase.Actor{Subject: "cust-9", Email: "BO@example.com", Role: entity.RoleCustomer}, []string{"o2"}},
		{designer2, []string{"o2"}},
		{designer1, []string{}},
		{embroiderer1, []string{}},
		{admin, []string{"o1", "o2"}},
	}
	for _, tc := range cases {
		list, err := q.List(ctx, tc.actor)
		require.NoError(t, err)
		assert.ElementsMatch(t, tc.want, ids(list), "%s %s", tc.actor.Role, tc.actor.Subject)
	}

	_, err := q.Get(ctx, customer, "o2")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
	o, err := q.Get(ctx, designer2, "o2")
	require.NoError(t, err)
	assert.Equal(t, "o2", o.ID)
}

func TestQueryReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := usecase.NewOrderQuery(f.store, f.cache)

	first, err := q.List(ctx, customer)
	require.NoError(t, err)
	require.Len(t, first, 1)

	f.store.InjectFault(func(op, _ string) error {
		if op == "ListOrders" {
			return errors.New("db down")
		}
		return nil
	})
	cached, err := q.List(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(cached))

	// a mutation invalidates, so the next read goes to the store again
	f.store.InjectFault(nil)
	_, err = f.coord.UpdateSlot(ctx, usecase.UpdateSlotRequest{
		Actor: customer, OrderID: "o1", SlotID: "o1-i3-0", PetName: ptr("Rex"),
	})
	require.NoError(t, err)
	f.store.InjectFault(func(op, _ string) error {
		if op == "ListOrders" {
			return errors.New("db down")
		}
		return nil
	})
	_, err = q.List(ctx, customer)
	assert.ErrorIs(t, err, usecase.ErrExternal)
}
