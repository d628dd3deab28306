package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aq2208/stitch-order-api/internal/adapter/http/middleware"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	coord         *usecase.Coordinator
	query         *usecase.OrderQuery
	drafts        *usecase.Drafts
	timeout       time.Duration
	uploadTimeout time.Duration
}

func NewOrderHandler(coord *usecase.Coordinator, query *usecase.OrderQuery, drafts *usecase.Drafts, timeout, uploadTimeout time.Duration) *OrderHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if uploadTimeout <= 0 {
		uploadTimeout = 100 * time.Second
	}
	return &OrderHandler{coord: coord, query: query, drafts: drafts, timeout: timeout, uploadTimeout: uploadTimeout}
}

// orderView adds the sleeve credit summary and per-item photo readiness to
// the order payload.
type orderView struct {
	*entity.Order
	SleeveCredits entity.SleeveCredits        `json:"sleeveCredits"`
	Readiness     map[string]entity.Readiness `json:"readiness"`
}

func viewOf(o *entity.Order) orderView {
	return orderView{Order: o, SleeveCredits: o.SleeveCredits(), Readiness: o.ItemsReadiness()}
}

func actorOf(c *gin.Context) (usecase.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return a, ok
}

// bind decodes the JSON body and resolves the actor; false means the
// response has been written.
func bind[T any](c *gin.Context, req *T) (usecase.Actor, bool) {
	a, ok := actorOf(c)
	if !ok {
		return a, false
	}
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, "bad_request: "+err.Error())
		return a, false
	}
	return a, true
}

func decodeFile(c *gin.Context, field, value string) (usecase.Upload, bool) {
	u, err := usecase.ParseDataURI(value)
	if err != nil {
		badRequest(c, field+": expected a base64 data URI")
		return u, false
	}
	return u, true
}

func (h *OrderHandler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *OrderHandler) uploadCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.uploadTimeout)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	orders, err := h.query.List(ctx, a)
	if err != nil {
		writeError(c, err, nil)
		return
	}
	out := make([]orderView, len(orders))
	for i := range orders {
		out[i] = viewOf(&orders[i])
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.query.Get(ctx, a, c.Param("id"))
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

type updateSlotReq struct {
	PetName  *string `json:"petName"`
	Position *string `json:"position"`
	Halo     *bool   `json:"halo"`
}

func (r updateSlotReq) request(a usecase.Actor, c *gin.Context) usecase.UpdateSlotRequest {
	req := usecase.UpdateSlotRequest{
		Actor:   a,
		OrderID: c.Param("id"),
		SlotID:  c.Param("slotId"),
		PetName: r.PetName,
		Halo:    r.Halo,
	}
	if r.Position != nil {
		p := entity.Position(*r.Position)
		req.Position = &p
	}
	return req
}

func (h *OrderHandler) UpdateSlot(c *gin.Context) {
	var body updateSlotReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.coord.UpdateSlot(ctx, body.request(a, c))
	if err != nil {
		var extra gin.H
		if o != nil {
			extra = gin.H{"order": viewOf(o)}
		}
		writeError(c, err, extra)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

type sleeveReq struct {
	Text string `json:"text" binding:"required"`
	Icon string `json:"icon"`
	Font string `json:"font"`
}

func (h *OrderHandler) SetSleeve(c *gin.Context) {
	var body sleeveReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	h.updateSleeve(c, a, &entity.SleeveConfig{Text: body.Text, Icon: body.Icon, Font: body.Font})
}

func (h *OrderHandler) RemoveSleeve(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	h.updateSleeve(c, a, nil)
}

func (h *OrderHandler) updateSleeve(c *gin.Context, a usecase.Actor, cfg *entity.SleeveConfig) {
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.coord.UpdateSleeve(ctx, usecase.UpdateSleeveRequest{
		Actor:   a,
		OrderID: c.Param("id"),
		ItemID:  c.Param("itemId"),
		Config:  cfg,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

type photoReq struct {
	Image    string `json:"image" binding:"required"`
	Filename string `json:"filename"`
}

func (h *OrderHandler) UploadPhoto(c *gin.Context) {
	var body photoReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	img, ok := decodeFile(c, "image", body.Image)
	if !ok {
		return
	}
	img.Filename = body.Filename
	ctx, cancel := h.uploadCtx(c)
	defer cancel()

	res, err := h.coord.InitiateUpload(ctx, usecase.InitiateUploadRequest{
		Actor:   a,
		OrderID: c.Param("id"),
		SlotID:  c.Param("slotId"),
		Image:   img,
	})
	writeUpload(c, res, err)
}

type editPhotoReq struct {
	Image       string `json:"image" binding:"required"`
	Instruction string `json:"instruction" binding:"required"`
}

func (h *OrderHandler) EditPhoto(c *gin.Context) {
	var body editPhotoReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	img, ok := decodeFile(c, "image", body.Image)
	if !ok {
		return
	}
	ctx, cancel := h.uploadCtx(c)
	defer cancel()

	res, err := h.coord.EditImage(ctx, usecase.EditImageRequest{
		Actor:       a,
		OrderID:     c.Param("id"),
		SlotID:      c.Param("slotId"),
		Image:       img,
		Instruction: body.Instruction,
	})
	writeUpload(c, res, err)
}

// writeUpload reports a pack sync failure alongside the verdict, since the
// slot itself was assessed and saved.
func writeUpload(c *gin.Context, res usecase.UploadResult, err error) {
	if err != nil {
		var extra gin.H
		if res.Slot.ID != "" {
			extra = gin.H{"result": res}
		}
		writeError(c, err, extra)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *OrderHandler) Finalize(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	id := c.Param("id")
	o, err := h.coord.FinalizeOrder(ctx, usecase.FinalizeOrderRequest{
		Actor:          a,
		OrderID:        id,
		PendingChanges: h.drafts.HasPendingChanges(a, id),
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	h.drafts.Settle(ctx, o)
	c.JSON(http.StatusOK, viewOf(o))
}

type designReq struct {
	Image       string `json:"image" binding:"required"`
	MachineFile string `json:"machineFile" binding:"required"`
	TechSheet   string `json:"techSheet" binding:"required"`
}

func (h *OrderHandler) SubmitDesign(c *gin.Context) {
	var body designReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	img, ok := decodeFile(c, "image", body.Image)
	if !ok {
		return
	}
	machine, ok := decodeFile(c, "machineFile", body.MachineFile)
	if !ok {
		return
	}
	sheet, ok := decodeFile(c, "techSheet", body.TechSheet)
	if !ok {
		return
	}
	ctx, cancel := h.uploadCtx(c)
	defer cancel()

	o, err := h.coord.SubmitDesign(ctx, usecase.SubmitDesignRequest{
		Actor:       a,
		OrderID:     c.Param("id"),
		ItemID:      c.Param("itemId"),
		Image:       img,
		MachineFile: machine,
		TechSheet:   sheet,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

type reviewReq struct {
	ItemID   string `json:"itemId"`
	Approved *bool  `json:"approved" binding:"required"`
	Feedback string `json:"feedback"`
}

func (h *OrderHandler) ReviewDesign(c *gin.Context) {
	var body reviewReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.coord.ReviewDesign(ctx, usecase.ReviewDesignRequest{
		Actor:    a,
		OrderID:  c.Param("id"),
		ItemID:   body.ItemID,
		Approved: *body.Approved,
		Feedback: body.Feedback,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var body statusReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.coord.UpdateStatus(ctx, usecase.UpdateStatusRequest{
		Actor:   a,
		OrderID: c.Param("id"),
		Status:  entity.OrderStatus(body.Status),
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

type issueReq struct {
	Issue string `json:"issue" binding:"required"`
}

func (h *OrderHandler) ReportIssue(c *gin.Context) {
	var body issueReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.coord.ReportIssue(ctx, usecase.ReportIssueRequest{Actor: a, OrderID: c.Param("id"), Issue: body.Issue})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

func (h *OrderHandler) ResolveIssue(c *gin.Context) {
	a, ok := actorOf(c)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.coord.ResolveIssue(ctx, usecase.ResolveIssueRequest{Actor: a, OrderID: c.Param("id")})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}

func (h *OrderHandler) UploadEvidence(c *gin.Context) {
	var body photoReq
	a, ok := bind(c, &body)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		badRequest(c, "evidence slot must be a number")
		return
	}
	img, ok := decodeFile(c, "image", body.Image)
	if !ok {
		return
	}
	img.Filename = body.Filename
	ctx, cancel := h.uploadCtx(c)
	defer cancel()

	o, err := h.coord.UploadEvidence(ctx, usecase.UploadEvidenceRequest{
		Actor:   a,
		OrderID: c.Param("id"),
		Slot:    n,
		Image:   img,
	})
	if err != nil {
		writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, viewOf(o))
}
