package usecase

import (
	"context"
	"errors"

	"github.com/aq2208/stitch-order-api/internal/draft"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// DraftView is the order as the editing user sees it.
type DraftView struct {
	Order             entity.Order                  `json:"order"`
	PendingSlots      map[string]entity.SlotPatch   `json:"pendingSlots"`
	PendingSleeves    map[string]draft.SleeveChange `json:"pendingSleeves"`
	HasPendingChanges bool                          `json:"hasPendingChanges"`
	SleeveCredits     entity.SleeveCredits          `json:"sleeveCredits"`
	Readiness         map[string]entity.Readiness   `json:"readiness"`
}

// Drafts exposes each user's edit buffer and commits it through the
// coordinator, one entry per command.
type Drafts struct {
	coord    *Coordinator
	registry *draft.Registry
}

func NewDrafts(coord *Coordinator, registry *draft.Registry) *Drafts {
	return &Drafts{coord: coord, registry: registry}
}

// HasPendingChanges reports whether the actor has uncommitted edits.
func (d *Drafts) HasPendingChanges(a Actor, orderID string) bool {
	return d.registry.HasPendingChanges(a.Subject, orderID)
}

func (d *Drafts) open(ctx context.Context, op string, a Actor, orderID string) (*entity.Order, *draft.Buffer, error) {
	o, err := d.coord.load(ctx, op, orderID)
	if err != nil {
		return nil, nil, err
	}
	if err := authorize(op, a, o, entity.RoleCustomer, entity.RoleAdmin); err != nil {
		return nil, nil, err
	}
	if o.IsLocked() {
		d.Settle(ctx, o)
		return o, draft.NewBuffer(orderID), nil
	}
	return o, d.registry.Get(a.Subject, orderID), nil
}

// Settle drops every buffer for an order that has left the editable phase;
// their entries can no longer be committed.
func (d *Drafts) Settle(ctx context.Context, o *entity.Order) {
	if !o.IsLocked() {
		return
	}
	if n := d.registry.EvictOrder(o.ID); n > 0 {
		logging.FromCtx(ctx).Info("dropped drafts of locked order", "order_id", o.ID, "status", o.Status, "buffers", n)
	}
}

func view(o *entity.Order, b *draft.Buffer) DraftView {
	merged := b.View(*o)
	slots, sleeves := b.Pending()
	return DraftView{
		Order:             merged,
		PendingSlots:      slots,
		PendingSleeves:    sleeves,
		HasPendingChanges: len(slots) > 0 || len(sleeves) > 0,
		SleeveCredits:     merged.SleeveCredits(),
		Readiness:         merged.ItemsReadiness(),
	}
}

func (d *Drafts) View(ctx context.Context, a Actor, orderID string) (DraftView, error) {
	o, b, err := d.open(ctx, "view draft", a, orderID)
	if err != nil {
		return DraftView{}, err
	}
	return view(o, b), nil
}

func (d *Drafts) StageSlot(ctx context.Context, req UpdateSlotRequest) (DraftView, error) {
	const op = "stage slot change"
	o, b, err := d.open(ctx, op, req.Actor, req.OrderID)
	if err != nil {
		return DraftView{}, err
	}
	if err := b.StageSlot(ctx, o, req.SlotID, req.patch()); err != nil {
		return DraftView{}, draftErr(op, err)
	}
	return view(o, b), nil
}

// StageSleeve stages req.Config, or a removal when it is nil.
func (d *Drafts) StageSleeve(ctx context.Context, req UpdateSleeveRequest) (DraftView, error) {
	const op = "stage sleeve change"
	o, b, err := d.open(ctx, op, req.Actor, req.OrderID)
	if err != nil {
		return DraftView{}, err
	}
	change := draft.SleeveChange{Remove: req.Config == nil, Config: req.Config}
	if err := b.StageSleeve(o, req.ItemID, change); err != nil {
		return DraftView{}, draftErr(op, err)
	}
	return view(o, b), nil
}

// Commit saves every pending entry. On partial failure the view still
// reflects what was saved and the failed entries remain pending.
func (d *Drafts) Commit(ctx context.Context, a Actor, orderID string) (DraftView, error) {
	const op = "save changes"
	_, b, err := d.open(ctx, op, a, orderID)
	if err != nil {
		return DraftView{}, err
	}
	cerr := b.Commit(ctx, draftCommitter{coord: d.coord, actor: a, orderID: orderID})
	if cerr != nil {
		logging.FromCtx(ctx).Warn("draft commit incomplete", "order_id", orderID, "err", cerr)
	}
	o, err := d.coord.load(ctx, op, orderID)
	if err != nil {
		return DraftView{}, err
	}
	v := view(o, b)
	d.registry.Release(a.Subject, orderID)
	if cerr != nil {
		return v, draftErr(op, cerr)
	}
	return v, nil
}

func (d *Drafts) Discard(ctx context.Context, a Actor, orderID string, confirmed bool) (DraftView, error) {
	const op = "discard changes"
	o, b, err := d.open(ctx, op, a, orderID)
	if err != nil {
		return DraftView{}, err
	}
	if err := b.Discard(confirmed); err != nil {
		return DraftView{}, draftErr(op, err)
	}
	d.registry.Release(a.Subject, orderID)
	return view(o, b), nil
}

type draftCommitter struct {
	coord   *Coordinator
	actor   Actor
	orderID string
}

func (c draftCommitter) CommitSlot(ctx context.Context, slotID string, p entity.SlotPatch) error {
	_, err := c.coord.UpdateSlot(ctx, UpdateSlotRequest{
		Actor:    c.actor,
		OrderID:  c.orderID,
		SlotID:   slotID,
		PetName:  p.PetName,
		Position: p.Position,
		Halo:     p.Halo,
	})
	return err
}

func (c draftCommitter) CommitSleeve(ctx context.Context, itemID string, cfg *entity.SleeveConfig) error {
	_, err := c.coord.UpdateSleeve(ctx, UpdateSleeveRequest{
		Actor:   c.actor,
		OrderID: c.orderID,
		ItemID:  itemID,
		Config:  cfg,
	})
	return err
}

func draftErr(op string, err error) error {
	var ce *draft.CommitError
	switch {
	case errors.As(err, &ce):
		return &OpError{Op: op, Kind: ErrExternal, Msg: ce.Error(), Err: err}
	case errors.Is(err, draft.ErrUnknownSlot), errors.Is(err, draft.ErrUnknownItem):
		return &OpError{Op: op, Kind: ErrNotFound, Msg: err.Error(), Err: err}
	}
	return &OpError{Op: op, Kind: ErrValidation, Msg: err.Error(), Err: err}
}
