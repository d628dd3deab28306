package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// FinalizeOrder is the customer's manual hand-off to design.
func (c *Coordinator) FinalizeOrder(ctx context.Context, req FinalizeOrderRequest) (*entity.Order, error) {
	const op = "finalize order"
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleCustomer, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if req.PendingChanges {
		return nil, invalid(op, "save or discard your pending changes first")
	}
	if o.Status == entity.StatusWaitingForDesign {
		return o, nil
	}
	if !entity.CanTransition(o.Status, entity.StatusWaitingForDesign) {
		return nil, invalid(op, fmt.Sprintf("order can no longer be finalized (status %s)", o.Status))
	}
	if !entity.ReadyToFinalize(o.Items) {
		return nil, invalid(op, "every photo slot needs a photo before finalizing")
	}

	var patch entity.OrderPatch
	if o.DesignerID == "" {
		if id, ok := c.balancer.Assign(ctx, entity.RoleDesigner); ok {
			patch.DesignerID = &id
		}
	}
	if err := c.transition(ctx, op, o, entity.StatusWaitingForDesign, patch); err != nil {
		return nil, err
	}
	return o, nil
}

// SubmitDesign attaches the design image, machine file and technical sheet to
// an item and sends the order to client review.
func (c *Coordinator) SubmitDesign(ctx context.Context, req SubmitDesignRequest) (*entity.Order, error) {
	const op = "submit design"
	for what, u := range map[string]Upload{
		"design image":    req.Image,
		"machine file":    req.MachineFile,
		"technical sheet": req.TechSheet,
	} {
		if err := validateUpload(op, what, u); err != nil {
			return nil, invalid(op, "design image, machine file and technical sheet are all required")
		}
	}
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleDesigner, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if req.Actor.Role == entity.RoleDesigner && o.DesignerID != "" && o.DesignerID != req.Actor.Subject {
		return nil, forbidden(op, "order is assigned to another designer")
	}
	if !entity.CanTransition(o.Status, entity.StatusDesignReview) {
		return nil, invalid(op, fmt.Sprintf("order is not awaiting a design (status %s)", o.Status))
	}
	item, ok := o.Item(req.ItemID)
	if !ok {
		return nil, notFound(op, "item "+req.ItemID+" does not exist on this order")
	}
	if item.IsSleeveAddon() {
		return nil, invalid(op, "a sleeve add-on does not take a design")
	}

	// every file must be stored before any reference is persisted
	prefix := fmt.Sprintf("orders/%s/items/%s/design", o.ID, item.ID)
	imageURL, err := c.files.Put(ctx, prefix+"/image", req.Image)
	if err != nil {
		return nil, external(op, "could not store design image", err)
	}
	machineURL, err := c.files.Put(ctx, prefix+"/machine", req.MachineFile)
	if err != nil {
		return nil, external(op, "could not store machine file", err)
	}
	sheetURL, err := c.files.Put(ctx, prefix+"/sheet", req.TechSheet)
	if err != nil {
		return nil, external(op, "could not store technical sheet", err)
	}

	itemPatch := entity.ItemPatch{
		DesignImageURL: &imageURL,
		MachineFileURL: &machineURL,
		TechSheetURL:   &sheetURL,
		DesignStatus:   entity.Ptr(entity.DesignPending),
		DesignFeedback: entity.Ptr(""),
	}
	if err := c.store.UpdateItem(ctx, item.ID, itemPatch); err != nil {
		return nil, storeErr(op, "could not save design files", err)
	}
	*item = itemPatch.Apply(*item)

	patch := entity.OrderPatch{
		DesignImageURL: &imageURL,
		MachineFileURL: &machineURL,
		TechSheetURL:   &sheetURL,
		ClientFeedback: entity.Ptr(""),
	}
	if o.DesignerID == "" && req.Actor.Role == entity.RoleDesigner {
		patch.DesignerID = &req.Actor.Subject
	}
	if err := c.transition(ctx, op, o, entity.StatusDesignReview, patch); err != nil {
		return nil, err
	}
	return o, nil
}

// ReviewDesign records the client's verdict on one item's design, or on
// every submitted design when no item is named.
func (c *Coordinator) ReviewDesign(ctx context.Context, req ReviewDesignRequest) (*entity.Order, error) {
	const op = "review design"
	feedback := strings.TrimSpace(req.Feedback)
	if !req.Approved && feedback == "" {
		return nil, invalid(op, "feedback is required when rejecting a design")
	}
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleCustomer, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if o.Status != entity.StatusDesignReview {
		return nil, invalid(op, "there is no design waiting for review")
	}

	var targets []*entity.OrderItem
	if req.ItemID != "" {
		item, ok := o.Item(req.ItemID)
		if !ok {
			return nil, notFound(op, "item "+req.ItemID+" does not exist on this order")
		}
		if item.DesignImageURL == "" {
			return nil, invalid(op, "this item has no submitted design")
		}
		targets = append(targets, item)
	} else {
		for _, it := range o.PhotoItems() {
			if it.DesignImageURL != "" {
				targets = append(targets, it)
			}
		}
		if len(targets) == 0 {
			return nil, invalid(op, "no design has been submitted yet")
		}
	}

	itemPatch := entity.ItemPatch{DesignStatus: entity.Ptr(entity.DesignApproved), DesignFeedback: entity.Ptr("")}
	if !req.Approved {
		itemPatch = entity.ItemPatch{DesignStatus: entity.Ptr(entity.DesignRejected), DesignFeedback: &feedback}
	}
	for _, it := range targets {
		if err := c.store.UpdateItem(ctx, it.ID, itemPatch); err != nil {
			return nil, storeErr(op, "could not save review for item "+it.ID, err)
		}
		*it = itemPatch.Apply(*it)
	}
	c.invalidate(ctx)

	switch designOutcome(o) {
	case entity.StatusDesignRejected:
		patch := entity.OrderPatch{ClientFeedback: &feedback}
		if err := c.transition(ctx, op, o, entity.StatusDesignRejected, patch); err != nil {
			return nil, err
		}
	case entity.StatusReadyToEmbroider:
		var patch entity.OrderPatch
		if o.EmbroidererID == "" {
			if id, ok := c.balancer.Assign(ctx, entity.RoleEmbroiderer); ok {
				patch.EmbroidererID = &id
			}
		}
		if err := c.transition(ctx, op, o, entity.StatusReadyToEmbroider, patch); err != nil {
			return nil, err
		}
	default:
		logging.FromCtx(ctx).Info("design review recorded", "order_id", o.ID, "items", len(targets))
	}
	return o, nil
}

// designOutcome folds per-item design approval into the order status.
func designOutcome(o *entity.Order) entity.OrderStatus {
	approved := true
	for _, it := range o.PhotoItems() {
		switch it.DesignStatus {
		case entity.DesignRejected:
			return entity.StatusDesignRejected
		case entity.DesignApproved:
		default:
			approved = false
		}
	}
	if approved {
		return entity.StatusReadyToEmbroider
	}
	return entity.StatusDesignReview
}
