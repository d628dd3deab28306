package usecase

import (
	"context"
	"errors"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// OrderQuery serves scoped order reads through an explicitly invalidated
// read-through cache keyed by subject.
type OrderQuery struct {
	store OrderStore
	cache OrderCache
}

func NewOrderQuery(store OrderStore, cache OrderCache) *OrderQuery {
	return &OrderQuery{store: store, cache: cache}
}

// Visible reports whether the actor may read the order.
func Visible(a Actor, o *entity.Order) bool {
	switch a.Role {
	case entity.RoleAdmin:
		return true
	case entity.RoleDesigner:
		return a.Subject != "" && o.DesignerID == a.Subject
	case entity.RoleEmbroiderer:
		return a.Subject != "" && o.EmbroidererID == a.Subject
	case entity.RoleCustomer:
		return o.OwnedBy(a.Email)
	}
	return false
}

func (q *OrderQuery) List(ctx context.Context, a Actor) ([]entity.Order, error) {
	const op = "list orders"
	log := logging.FromCtx(ctx)
	key := string(a.Role) + ":" + a.Subject
	if q.cache != nil {
		orders, ok, err := q.cache.GetOrders(ctx, key)
		if err != nil {
			log.Warn("order cache read failed", "err", err)
		} else if ok {
			return orders, nil
		}
	}
	orders, err := q.store.ListOrders(ctx, a.Scope())
	if err != nil {
		return nil, external(op, "could not load orders", err)
	}
	if q.cache != nil {
		if err := q.cache.SetOrders(ctx, key, orders); err != nil {
			log.Warn("order cache write failed", "err", err)
		}
	}
	return orders, nil
}

// Get hides orders outside the actor's scope as not found.
func (q *OrderQuery) Get(ctx context.Context, a Actor, id string) (*entity.Order, error) {
	const op = "get order"
	o, err := q.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(op, "order "+id+" does not exist")
		}
		return nil, external(op, "could not load order", err)
	}
	if !Visible(a, o) {
		return nil, notFound(op, "order "+id+" does not exist")
	}
	return o, nil
}
