package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/stitch-order-api/configs"
	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

// Claims is the token payload: identity only. Roles come from the staff
// directory, never from the token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type resolver interface {
	Resolve(ctx context.Context, subject, email string) usecase.Actor
}

type Authz struct {
	cfg      configs.Config
	resolver resolver
}

func NewAuthz(cfg configs.Config, r resolver) *Authz {
	return &Authz{cfg: cfg, resolver: r}
}

// Require verifies the bearer token and stores the resolved Actor.
func (a *Authz) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		var claims Claims
		raw := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(a.cfg.Security.JWTSecret), nil
		},
			jwt.WithLeeway(30*time.Second), // small clock skew
			jwt.WithIssuer(a.cfg.Security.Issuer),
			jwt.WithAudience(a.cfg.Security.Audience),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}
		if claims.Subject == "" {
			unauth(c, "invalid_token", "missing subject")
			return
		}

		actor := a.resolver.Resolve(c.Request.Context(), claims.Subject, claims.Email)
		c.Set(actorKey, actor)
		l := logging.From(c).With("subject", actor.Subject, "role", actor.Role)
		logging.With(c, l)
		c.Next()
	}
}

// ActorFrom returns the Actor stored by Require.
func ActorFrom(c *gin.Context) (usecase.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return usecase.Actor{}, false
	}
	a, ok := v.(usecase.Actor)
	return a, ok
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}
