package usecase

import (
	"context"
	"fmt"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// UpdateSleeve assigns or removes an item's sleeve configuration. Adding a
// configuration consumes one purchased sleeve credit.
func (c *Coordinator) UpdateSleeve(ctx context.Context, req UpdateSleeveRequest) (*entity.Order, error) {
	const op = "update sleeve"
	if req.Config != nil {
		if err := req.Config.Validate(); err != nil {
			return nil, invalid(op, err.Error())
		}
	}
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleCustomer, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if o.IsLocked() {
		return nil, invalid(op, fmt.Sprintf("order is locked for editing (status %s)", o.Status))
	}
	item, ok := o.Item(req.ItemID)
	if !ok {
		return nil, notFound(op, "item "+req.ItemID+" does not exist on this order")
	}
	if item.IsSleeveAddon() {
		return nil, invalid(op, "a sleeve add-on cannot carry a sleeve configuration")
	}
	if req.Config != nil && item.Sleeve == nil && o.SleeveCredits().Remaining == 0 {
		return nil, invalid(op, "no sleeve credits remaining")
	}

	patch := entity.ItemPatch{SetSleeve: true, Sleeve: req.Config}
	if err := c.store.UpdateItem(ctx, item.ID, patch); err != nil {
		logging.FromCtx(ctx).Error("sleeve write failed", "order_id", o.ID, "item_id", item.ID, "err", err)
		return nil, storeErr(op, "could not save sleeve configuration", err)
	}
	*item = patch.Apply(*item)
	c.invalidate(ctx)
	logging.FromCtx(ctx).Info("sleeve updated", "order_id", o.ID, "item_id", item.ID, "removed", req.Config == nil)
	return o, nil
}
