package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/aq2208/stitch-order-api/internal/entity"
)

// UpdateStatus handles the embroiderer's production steps: start, complete
// and dispatch.
func (c *Coordinator) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*entity.Order, error) {
	const op = "update status"
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleEmbroiderer, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if req.Actor.Role == entity.RoleEmbroiderer && o.EmbroidererID != "" && o.EmbroidererID != req.Actor.Subject {
		return nil, forbidden(op, "order is assigned to another embroiderer")
	}
	if o.Status == req.Status {
		return o, nil
	}

	var patch entity.OrderPatch
	switch req.Status {
	case entity.StatusInProgress:
		if o.Status != entity.StatusReadyToEmbroider {
			return nil, invalid(op, fmt.Sprintf("work can only start on an order ready to embroider (status %s)", o.Status))
		}
		if o.EmbroidererID == "" {
			if req.Actor.Role == entity.RoleEmbroiderer {
				patch.EmbroidererID = &req.Actor.Subject
			} else if id, ok := c.balancer.Assign(ctx, entity.RoleEmbroiderer); ok {
				patch.EmbroidererID = &id
			}
		}
	case entity.StatusReadyForDispatch:
		if o.Status != entity.StatusInProgress {
			return nil, invalid(op, fmt.Sprintf("only an order in progress can be completed (status %s)", o.Status))
		}
	case entity.StatusDispatched:
		if o.Status != entity.StatusReadyForDispatch {
			return nil, invalid(op, fmt.Sprintf("only an order ready for dispatch can be dispatched (status %s)", o.Status))
		}
		if !o.HasEvidence() {
			return nil, invalid(op, "both evidence photos are required before dispatch")
		}
	default:
		return nil, invalid(op, fmt.Sprintf("status %s cannot be set directly", req.Status))
	}

	if err := c.transition(ctx, op, o, req.Status, patch); err != nil {
		return nil, err
	}
	return o, nil
}

// ReportIssue puts an order in progress on hold with the blocking issue.
func (c *Coordinator) ReportIssue(ctx context.Context, req ReportIssueRequest) (*entity.Order, error) {
	const op = "report issue"
	issue := strings.TrimSpace(req.Issue)
	if issue == "" {
		return nil, invalid(op, "issue description is required")
	}
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleDesigner, entity.RoleEmbroiderer, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if o.Status != entity.StatusInProgress {
		return nil, invalid(op, fmt.Sprintf("issues can only be reported while in progress (status %s)", o.Status))
	}
	if err := c.transition(ctx, op, o, entity.StatusOnHold, entity.OrderPatch{ProductionIssue: &issue}); err != nil {
		return nil, err
	}
	return o, nil
}

// ResolveIssue clears the issue and resumes production.
func (c *Coordinator) ResolveIssue(ctx context.Context, req ResolveIssueRequest) (*entity.Order, error) {
	const op = "resolve issue"
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleDesigner, entity.RoleEmbroiderer, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if o.Status != entity.StatusOnHold {
		return nil, invalid(op, fmt.Sprintf("order is not on hold (status %s)", o.Status))
	}
	if err := c.transition(ctx, op, o, entity.StatusInProgress, entity.OrderPatch{ProductionIssue: entity.Ptr("")}); err != nil {
		return nil, err
	}
	return o, nil
}

// UploadEvidence attaches one of the two packing photos required for dispatch.
func (c *Coordinator) UploadEvidence(ctx context.Context, req UploadEvidenceRequest) (*entity.Order, error) {
	const op = "upload evidence photo"
	if req.Slot != 1 && req.Slot != 2 {
		return nil, invalid(op, "evidence slot must be 1 or 2")
	}
	if err := validateImage(op, "evidence photo", req.Image); err != nil {
		return nil, err
	}
	o, err := c.load(ctx, op, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(op, req.Actor, o, entity.RoleEmbroiderer, entity.RoleAdmin); err != nil {
		return nil, err
	}
	if o.Status != entity.StatusReadyForDispatch {
		return nil, invalid(op, "order is not ready for dispatch")
	}

	url, err := c.files.Put(ctx, fmt.Sprintf("orders/%s/evidence/%d", o.ID, req.Slot), req.Image)
	if err != nil {
		return nil, external(op, "could not store evidence photo", err)
	}
	var patch entity.OrderPatch
	if req.Slot == 1 {
		patch.EvidencePhoto1 = &url
	} else {
		patch.EvidencePhoto2 = &url
	}
	if err := c.commitOrder(ctx, op, o, patch); err != nil {
		return nil, err
	}
	return o, nil
}
