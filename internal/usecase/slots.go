package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
)

// AssessmentUnavailableReason is stored when the quality check could not run.
const AssessmentUnavailableReason = "We could not check this photo right now. Please upload it again."

const defaultRejectReason = "The photo did not pass the quality check."

// verdictWriteTimeout bounds the verdict write, which runs detached from the
// caller's context.
const verdictWriteTimeout = 10 * time.Second

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// slotForEdit loads the order and resolves the slot for a customer edit.
func (c *Coordinator) slotForEdit(ctx context.Context, op string, a Actor, orderID, slotID string) (*entity.Order, *entity.OrderItem, int, error) {
	o, err := c.load(ctx, op, orderID)
	if err != nil {
		return nil, nil, 0, err
	}
	if err := authorize(op, a, o, entity.RoleCustomer, entity.RoleAdmin); err != nil {
		return nil, nil, 0, err
	}
	if o.IsLocked() {
		return nil, nil, 0, invalid(op, fmt.Sprintf("order is locked for editing (status %s)", o.Status))
	}
	item, idx, ok := o.FindSlot(slotID)
	if !ok || item.IsSleeveAddon() {
		return nil, nil, 0, notFound(op, "slot "+slotID+" does not exist on this order")
	}
	return o, item, idx, nil
}

// UpdateSlot changes a slot's pet name, position or halo flag.
func (c *Coordinator) UpdateSlot(ctx context.Context, req UpdateSlotRequest) (*entity.Order, error) {
	const op = "update slot"
	patch := req.patch()
	if patch.Empty() {
		return nil, invalid(op, "nothing to update")
	}
	if err := patch.Validate(); err != nil {
		return nil, invalid(op, err.Error())
	}
	o, item, idx, err := c.slotForEdit(ctx, op, req.Actor, req.OrderID, req.SlotID)
	if err != nil {
		return nil, err
	}

	werr := c.writeSlot(ctx, op, o, item, idx, patch)
	if werr != nil && !isSyncErr(werr) {
		return nil, werr
	}
	o, err = c.recompute(ctx, op, o.ID)
	if err != nil {
		return nil, err
	}
	return o, werr
}

// InitiateUpload stores a new photo and runs it through quality assessment.
func (c *Coordinator) InitiateUpload(ctx context.Context, req InitiateUploadRequest) (UploadResult, error) {
	const op = "upload photo"
	if err := validateImage(op, "photo", req.Image); err != nil {
		return UploadResult{}, err
	}
	o, item, idx, err := c.slotForEdit(ctx, op, req.Actor, req.OrderID, req.SlotID)
	if err != nil {
		return UploadResult{}, err
	}
	return c.runPhotoPipeline(ctx, op, o, item.Slots[idx].ID, req.Image)
}

// EditImage asks the image-edit service to alter a photo, then treats the
// result like a fresh upload.
func (c *Coordinator) EditImage(ctx context.Context, req EditImageRequest) (UploadResult, error) {
	const op = "edit photo"
	if strings.TrimSpace(req.Instruction) == "" {
		return UploadResult{}, invalid(op, "edit instruction is required")
	}
	if err := validateImage(op, "photo", req.Image); err != nil {
		return UploadResult{}, err
	}
	o, item, idx, err := c.slotForEdit(ctx, op, req.Actor, req.OrderID, req.SlotID)
	if err != nil {
		return UploadResult{}, err
	}
	edited, err := c.editor.Edit(ctx, req.Image, req.Instruction)
	if err != nil {
		return UploadResult{}, external(op, "no edited image produced", err)
	}
	if len(edited.Data) == 0 {
		return UploadResult{}, external(op, "no edited image produced", nil)
	}
	if edited.ContentType == "" {
		edited.ContentType = req.Image.ContentType
	}
	return c.runPhotoPipeline(ctx, op, o, item.Slots[idx].ID, edited)
}

// runPhotoPipeline: store, mark ANALYZING, assess, persist the verdict. An
// assessment failure is recorded as a rejection so the slot never stays
// ANALYZING.
func (c *Coordinator) runPhotoPipeline(ctx context.Context, op string, o *entity.Order, slotID string, img Upload) (UploadResult, error) {
	log := logging.FromCtx(ctx).With("op", op, "order_id", o.ID, "slot_id", slotID)

	url, err := c.files.Put(ctx, fmt.Sprintf("orders/%s/slots/%s", o.ID, slotID), img)
	if err != nil {
		log.Error("store photo failed", "err", err)
		return UploadResult{}, external(op, "could not store photo", err)
	}

	analyzing := entity.SlotPatch{
		PhotoURL: &url,
		Status:   entity.Ptr(entity.SlotAnalyzing),
		AIReason: entity.Ptr(""),
	}
	o, syncErr, err := c.applySlotByID(ctx, op, o, slotID, analyzing)
	if err != nil {
		return UploadResult{}, err
	}

	verdict, err := c.assessor.Assess(ctx, img)
	if err != nil {
		log.Warn("quality assessment failed, rejecting", "err", err)
		verdict = Verdict{Approved: false, Reason: AssessmentUnavailableReason}
	}
	result := entity.SlotPatch{Status: entity.Ptr(entity.SlotApproved), AIReason: entity.Ptr("")}
	if !verdict.Approved {
		if strings.TrimSpace(verdict.Reason) == "" {
			verdict.Reason = defaultRejectReason
		}
		result = entity.SlotPatch{Status: entity.Ptr(entity.SlotRejected), AIReason: entity.Ptr(verdict.Reason)}
	}
	// The slot is ANALYZING at this point; the verdict has to land even when
	// the request was cancelled or timed out during assessment.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), verdictWriteTimeout)
	defer cancel()
	o, syncErr2, err := c.applySlotByID(wctx, op, o, slotID, result)
	if err != nil {
		return UploadResult{}, err
	}
	if syncErr == nil {
		syncErr = syncErr2
	}

	item, idx, _ := o.FindSlot(slotID)
	log.Info("photo assessed", "approved", verdict.Approved, "order_status", o.Status)
	return UploadResult{Slot: item.Slots[idx], Verdict: verdict, Status: o.Status}, syncErr
}

// applySlotByID writes p to the slot (and its pack siblings) and recomputes.
// A pack sync failure is returned separately since the source write stands
// and the pipeline continues.
func (c *Coordinator) applySlotByID(ctx context.Context, op string, o *entity.Order, slotID string, p entity.SlotPatch) (*entity.Order, error, error) {
	item, idx, ok := o.FindSlot(slotID)
	if !ok {
		return nil, nil, notFound(op, "slot "+slotID+" does not exist on this order")
	}
	var syncErr error
	if err := c.writeSlot(ctx, op, o, item, idx, p); err != nil {
		if !isSyncErr(err) {
			return nil, nil, err
		}
		logging.FromCtx(ctx).Warn("pack sync incomplete", "op", op, "order_id", o.ID, "err", err)
		syncErr = err
	}
	o, err := c.recompute(ctx, op, o.ID)
	return o, syncErr, err
}
