package usecase

import (
	"context"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// OpenLoad counts the orders assigned to staffID under role that are still
// open. Dispatched and design-rejected orders do not count.
func OpenLoad(role entity.Role, staffID string, orders []entity.Order) int {
	n := 0
	for _, o := range orders {
		if !o.Status.OpenLoad() {
			continue
		}
		switch role {
		case entity.RoleDesigner:
			if o.DesignerID == staffID {
				n++
			}
		case entity.RoleEmbroiderer:
			if o.EmbroidererID == staffID {
				n++
			}
		}
	}
	return n
}

// PickAssignee returns the least-loaded candidate holding role. Ties go to the
// first candidate in input order. ok is false when nobody is eligible.
func PickAssignee(role entity.Role, candidates []entity.StaffMember, orders []entity.Order) (string, bool) {
	best, bestLoad := "", -1
	for _, c := range candidates {
		if c.Role != role || c.ID == "" {
			continue
		}
		load := OpenLoad(role, c.ID, orders)
		if bestLoad < 0 || load < bestLoad {
			best, bestLoad = c.ID, load
		}
	}
	return best, bestLoad >= 0
}

// Balancer loads candidates and open orders and picks an assignee.
type Balancer struct {
	staff  StaffDirectory
	orders OrderStore
}

func NewBalancer(staff StaffDirectory, orders OrderStore) *Balancer {
	return &Balancer{staff: staff, orders: orders}
}

// Assign never fails the caller's transition: lookup errors leave the order
// unassigned and the next qualifying transition retries.
func (b *Balancer) Assign(ctx context.Context, role entity.Role) (string, bool) {
	log := logging.FromCtx(ctx).With("op", "assign", "role", role)
	candidates, err := b.staff.ListStaff(ctx, role)
	if err != nil {
		log.Warn("list staff failed, leaving unassigned", "err", err)
		return "", false
	}
	heads, err := b.orders.ListOrderHeads(ctx)
	if err != nil {
		log.Warn("list orders failed, leaving unassigned", "err", err)
		return "", false
	}
	id, ok := PickAssignee(role, candidates, heads)
	if !ok {
		log.Info("no eligible staff")
	}
	return id, ok
}
