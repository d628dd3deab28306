package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aq2208/stitch-order-api/internal/adapter/repo"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func designers(ids ...string) []entity.StaffMember {
	out := make([]entity.StaffMember, len(ids))
	for i, id := range ids {
		out[i] = entity.StaffMember{ID: id, Role: entity.RoleDesigner}
	}
	return out
}

func assigned(designer string, status entity.OrderStatus, n int) []entity.Order {
	out := make([]entity.Order, n)
	for i := range out {
		out[i] = entity.Order{DesignerID: designer, Status: status}
	}
	return out
}

func TestPickAssigneeLeastLoaded(t *testing.T) {
	var orders []entity.Order
	orders = append(orders, assigned("a", entity.StatusWaitingForDesign, 3)...)
	orders = append(orders, assigned("b", entity.StatusDesignReview, 1)...)
	orders = append(orders, assigned("c", entity.StatusInProgress, 2)...)

	id, ok := usecase.PickAssignee(entity.RoleDesigner, designers("a", "b", "c"), orders)
	require.True(t, ok)
	assert.Equal(t, "b", id)
}

func TestPickAssigneeTiesGoToFirst(t *testing.T) {
	id, ok := usecase.PickAssignee(entity.RoleDesigner, designers("x", "y"), nil)
	require.True(t, ok)
	assert.Equal(t, "x", id)
}

func TestPickAssigneeIgnoresClosedOrders(t *testing.T) {
	var orders []entity.Order
	orders = append(orders, assigned("a", entity.StatusDispatched, 5)...)
	orders = append(orders, assigned("a", entity.StatusDesignRejected, 5)...)
	orders = append(orders, assigned("b", entity.StatusWaitingForDesign, 1)...)

	id, ok := usecase.PickAssignee(entity.RoleDesigner, designers("a", "b"), orders)
	require.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestPickAssigneeEmptyPool(t *testing.T) {
	_, ok := usecase.PickAssignee(entity.RoleDesigner, nil, assigned("a", entity.StatusWaitingForDesign, 1))
	assert.False(t, ok)

	wrongRole := []entity.StaffMember{{ID: "e", Role: entity.RoleEmbroiderer}}
	_, ok = usecase.PickAssignee(entity.RoleDesigner, wrongRole, nil)
	assert.False(t, ok)
}

func TestOpenLoadCountsByRole(t *testing.T) {
	orders := []entity.Order{
		{DesignerID: "s", EmbroidererID: "e", Status: entity.StatusInProgress},
		{DesignerID: "s", Status: entity.StatusDispatched},
		{EmbroidererID: "e", Status: entity.StatusOnHold},
	}
	assert.Equal(t, 1, usecase.OpenLoad(entity.RoleDesigner, "s", orders))
	assert.Equal(t, 2, usecase.OpenLoad(entity.RoleEmbroiderer, "e", orders))
	assert.Equal(t, 0, usecase.OpenLoad(entity.RoleEmbroiderer, "s", orders))
}

func TestBalancerLookupFailureLeavesUnassigned(t *testing.T) {
	store := repo.NewMemoryStore()
	store.AddStaff(entity.StaffMember{ID: "d", Role: entity.RoleDesigner})
	b := usecase.NewBalancer(store, store)

	id, ok := b.Assign(context.Background(), entity.RoleDesigner)
	require.True(t, ok)
	assert.Equal(t, "d", id)

	store.InjectFault(func(op, _ string) error {
		if op == "ListOrderHeads" {
			return errors.New("db down")
		}
		return nil
	})
	_, ok = b.Assign(context.Background(), entity.RoleDesigner)
	assert.False(t, ok)
}
