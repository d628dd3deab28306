package http

import (
	"net/http"
	"strconv"

	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

// Draft endpoints stage edits in the caller's buffer; nothing is persisted
// until commit.

func (h *OrderHandler) GetDraft(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.drafts.View(ctx, a, c.Param("id"))
	writeDraft(c, v, err)
}

func (h *OrderHandler) StageSlot(c *gin.Context) {
	var body updateSlotReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.drafts.StageSlot(ctx, body.request(a, c))
	writeDraft(c, v, err)
}

func (h *OrderHandler) StageSleeve(c *gin.Context) {
	var body sleeveReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	h.stageSleeve(c, a, &entity.SleeveConfig{Text: body.Text, Icon: body.Icon, Font: body.Font})
}

func (h *OrderHandler) StageSleeveRemoval(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	h.stageSleeve(c, a, nil)
}

func (h *OrderHandler) stageSleeve(c *gin.Context, a usecase.Actor, cfg *entity.SleeveConfig) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.drafts.StageSleeve(ctx, usecase.UpdateSleeveRequest{
		Actor:   a,
		OrderID: c.Param("id"),
		ItemID:  c.Param("itemId"),
		Config:  cfg,
	})
	writeDraft(c, v, err)
}

func (h *OrderHandler) CommitDraft(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	ctx, cancel := h.uploadCtx(c)
	defer cancel()

	v, err := h.drafts.Commit(ctx, a, c.Param("id"))
	if err != nil && v.Order.ID != "" {
		writeError(c, err, gin.H{"draft": v})
		return
	}
	writeDraft(c, v, err)
}

func (h *OrderHandler) DiscardDraft(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	ctx, cancel := h.ctx(c)
	defer cancel()

	v, err := h.drafts.Discard(ctx, a, c.Param("id"), confirmed)
	writeDraft(c, v, err)
}

func writeDraft(c *gin.Context, v usecase.DraftView, err error) {
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, v)
}
