package http

import (
	"net/http"

	"github.com/aq2208/stitch-order-api/configs"
	"github.com/aq2208/stitch-order-api/internal/adapter/http/middleware"
	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Config      configs.Config
	Orders      *OrderHandler
	Tokens      *TokenHandler
	Authz       *middleware.Authz
	Idempotency usecase.IdempotencyStore
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics())
	r.Use(middleware.Logging(logging.New("http"), d.Config.HTTP.MaxBodyBytes))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.Config.Security.DevTokens && d.Tokens != nil {
		r.POST("/v1/token", d.Tokens.IssueToken)
	}
	if d.Config.Storage.ServePath != "" && d.Config.Storage.Dir != "" {
		r.Static(d.Config.Storage.ServePath, d.Config.Storage.Dir)
	}

	h := d.Orders
	v1 := r.Group("/v1", d.Authz.Require(), middleware.Idempotency(d.Idempotency))
	{
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)

		v1.PATCH("/orders/:id/slots/:slotId", h.UpdateSlot)
		v1.PUT("/orders/:id/items/:itemId/sleeve", h.SetSleeve)
		v1.DELETE("/orders/:id/items/:itemId/sleeve", h.RemoveSleeve)
		v1.POST("/orders/:id/slots/:slotId/photo", h.UploadPhoto)
		v1.POST("/orders/:id/slots/:slotId/photo/edit", h.EditPhoto)
		v1.POST("/orders/:id/finalize", h.Finalize)

		v1.POST("/orders/:id/items/:itemId/design", h.SubmitDesign)
		v1.POST("/orders/:id/review", h.ReviewDesign)

		v1.POST("/orders/:id/status", h.UpdateStatus)
		v1.POST("/orders/:id/issue", h.ReportIssue)
		v1.DELETE("/orders/:id/issue", h.ResolveIssue)
		v1.POST("/orders/:id/evidence/:n", h.UploadEvidence)

		v1.GET("/orders/:id/draft", h.GetDraft)
		v1.PATCH("/orders/:id/draft/slots/:slotId", h.StageSlot)
		v1.PUT("/orders/:id/draft/items/:itemId/sleeve", h.StageSleeve)
		v1.DELETE("/orders/:id/draft/items/:itemId/sleeve", h.StageSleeveRemoval)
		v1.POST("/orders/:id/draft/commit", h.CommitDraft)
		v1.DELETE("/orders/:id/draft", h.DiscardDraft)
	}
	return r
}
