package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/stitch-order-api/configs"
	"github.com/aq2208/stitch-order-api/internal/adapter/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// TokenHandler issues identity tokens for local testing. It is only routed
// when security.dev_tokens is set.
type TokenHandler struct {
	cfg configs.Config
	now func() time.Time
}

func NewTokenHandler(cfg configs.Config) *TokenHandler {
	return &TokenHandler{cfg: cfg, now: time.Now}
}

type tokenReq struct {
	Subject string `json:"subject" binding:"required"`
	Email   string `json:"email"`
}

// IssueToken signs a token carrying subject and email. The role is looked up
// per request, so none is embedded.
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "subject is required")
		return
	}

	ttl := h.cfg.Security.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := h.now()
	claims := middleware.Claims{
		Email: strings.TrimSpace(req.Email),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    h.cfg.Security.Issuer,
			Subject:   req.Subject,
			Audience:  jwt.ClaimStrings{h.cfg.Security.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.Security.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int(ttl.Seconds()),
	})
}
