package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/aq2208/stitch-order-api/internal/packsync"
)

// MaxUploadBytes caps any single file accepted by the coordinator.
const MaxUploadBytes = 15 << 20

// Deps wires the coordinator's collaborators. Events and Cache are optional.
type Deps struct {
	Store           OrderStore
	Staff           StaffDirectory
	Files           FileStorage
	Assessor        QualityAssessor
	Editor          ImageEditor
	Events          EventPublisher
	Cache           OrderCache
	SyncConcurrency int
	Now             func() time.Time
}

// Coordinator runs every role-facing mutation: it validates preconditions,
// persists, and drives status recompute, pack sync and staff assignment.
type Coordinator struct {
	store    OrderStore
	files    FileStorage
	assessor QualityAssessor
	editor   ImageEditor
	events   EventPublisher
	cache    OrderCache
	balancer *Balancer
	packs    *packsync.Engine
	now      func() time.Time
}

func NewCoordinator(d Deps) *Coordinator {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:    d.Store,
		files:    d.Files,
		assessor: d.Assessor,
		editor:   d.Editor,
		events:   d.Events,
		cache:    d.Cache,
		balancer: NewBalancer(d.Staff, d.Store),
		packs:    packsync.New(d.SyncConcurrency),
		now:      now,
	}
}

func (c *Coordinator) load(ctx context.Context, op, orderID string) (*entity.Order, error) {
	if orderID == "" {
		return nil, invalid(op, "order id is required")
	}
	o, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(op, "order "+orderID+" does not exist")
		}
		return nil, external(op, "could not load order", err)
	}
	return o, nil
}

// authorize checks the actor holds one of roles; customers must own the order.
func authorize(op string, a Actor, o *entity.Order, roles ...entity.Role) error {
	for _, r := range roles {
		if a.Role != r {
			continue
		}
		if r == entity.RoleCustomer && !o.OwnedBy(a.Email) {
			return forbidden(op, "order belongs to another customer")
		}
		return nil
	}
	return forbidden(op, fmt.Sprintf("role %s may not perform this action", a.Role))
}

// commitOrder writes patch as one order-row write and applies it to o on
// success. A failed write leaves o and the stored status untouched.
func (c *Coordinator) commitOrder(ctx context.Context, op string, o *entity.Order, patch entity.OrderPatch) error {
	log := logging.FromCtx(ctx).With("op", op, "order_id", o.ID)
	if err := c.store.UpdateOrder(ctx, o.ID, patch); err != nil {
		log.Error("order write failed", "err", err)
		return storeErr(op, "could not save order", err)
	}
	from := o.Status
	*o = patch.Apply(*o)
	c.invalidate(ctx)
	if o.Status != from {
		log.Info("status changed", "from", from, "to", o.Status,
			"designer_id", o.DesignerID, "embroiderer_id", o.EmbroidererID)
		c.publish(ctx, from, o)
	}
	return nil
}

// transition performs an explicit role-driven status change.
func (c *Coordinator) transition(ctx context.Context, op string, o *entity.Order, to entity.OrderStatus, patch entity.OrderPatch) error {
	if !entity.CanTransition(o.Status, to) {
		return invalid(op, fmt.Sprintf("order cannot move from %s to %s", o.Status, to))
	}
	patch.Status = &to
	return c.commitOrder(ctx, op, o, patch)
}

// recompute re-derives the intake status after a slot mutation. Leaving
// WAITING_FOR_DESIGN without a designer retries assignment in the same write.
func (c *Coordinator) recompute(ctx context.Context, op, orderID string) (*entity.Order, error) {
	o, err := c.load(ctx, op, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.AutoRecompute() {
		return o, nil
	}
	next := entity.RecomputeStatus(o.Items)
	var patch entity.OrderPatch
	if next != o.Status {
		patch.Status = &next
	}
	if next == entity.StatusWaitingForDesign && o.DesignerID == "" {
		if id, ok := c.balancer.Assign(ctx, entity.RoleDesigner); ok {
			patch.DesignerID = &id
		}
	}
	if patch.Empty() {
		return o, nil
	}
	if err := c.commitOrder(ctx, op, o, patch); err != nil {
		return nil, err
	}
	return o, nil
}

type storeTarget struct{ store OrderStore }

func (t storeTarget) ApplySlot(ctx context.Context, _ *entity.OrderItem, slot *entity.EmbroiderySlot, change entity.SlotPatch) error {
	if err := t.store.UpdateSlot(ctx, slot.ID, change); err != nil {
		return err
	}
	*slot = change.Apply(*slot)
	return nil
}

// writeSlot persists a slot change and mirrors it onto pack siblings.
func (c *Coordinator) writeSlot(ctx context.Context, op string, o *entity.Order, item *entity.OrderItem, idx int, p entity.SlotPatch) error {
	slot := &item.Slots[idx]
	if err := c.store.UpdateSlot(ctx, slot.ID, p); err != nil {
		return storeErr(op, "could not save slot", err)
	}
	*slot = p.Apply(*slot)
	c.invalidate(ctx)

	res, err := c.packs.Synchronize(ctx, o, item.ID, idx, p, storeTarget{c.store})
	if len(res.Skipped) > 0 {
		logging.FromCtx(ctx).Warn("pack sibling missing slot", "op", op, "order_id", o.ID,
			"slot_index", idx, "items", res.Skipped)
	}
	if err != nil {
		return external(op, "some pack items were not updated", err)
	}
	return nil
}

func isSyncErr(err error) bool {
	var se *packsync.SyncError
	return errors.As(err, &se)
}

func (c *Coordinator) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx); err != nil {
		logging.FromCtx(ctx).Warn("order cache invalidate failed", "err", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, from entity.OrderStatus, o *entity.Order) {
	if c.events == nil {
		return
	}
	msg := StatusChangedMsg{
		OrderID:       o.ID,
		From:          string(from),
		To:            string(o.Status),
		DesignerID:    o.DesignerID,
		EmbroidererID: o.EmbroidererID,
		At:            c.now().UTC(),
	}
	// best-effort: the status is already durable
	if err := c.events.PublishStatusChanged(ctx, msg); err != nil {
		logging.FromCtx(ctx).Warn("publish status change failed", "order_id", o.ID, "err", err)
	}
}

func validateUpload(op, what string, u Upload) error {
	if len(u.Data) == 0 {
		return invalid(op, what+" is required")
	}
	if len(u.Data) > MaxUploadBytes {
		return invalid(op, what+" is too large")
	}
	return nil
}

func validateImage(op, what string, u Upload) error {
	if err := validateUpload(op, what, u); err != nil {
		return err
	}
	if u.ContentType != "" && !hasPrefixFold(u.ContentType, "image/") {
		return invalid(op, what+" must be an image")
	}
	return nil
}
