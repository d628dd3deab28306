package middleware

import (
	"net/http"
	"strconv"

	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

const IdempotencyHeader = "X-Idempotency-Key"

// Idempotency rejects a replayed X-Idempotency-Key from the same subject
// with 409. Reads and requests without the header pass through. Store
// failures never block a request.
func Idempotency(store usecase.IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || store == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		scope := "anon"
		if a, ok := ActorFrom(c); ok {
			scope = a.Subject
		}
		scope += ":" + c.Request.Method + ":" + c.Request.URL.Path
		ctx := c.Request.Context()
		log := logging.From(c)

		locked, err := store.TryLock(ctx, scope, key)
		if err != nil {
			log.Warn("idempotency lock failed", "err", err)
			c.Next()
			return
		}
		if !locked {
			body := gin.H{"error": "duplicate request", "idempotencyKey": key}
			if prev, ok, err := store.Recall(ctx, scope, key); err == nil && ok {
				if code, err := strconv.Atoi(prev); err == nil {
					body["previousStatus"] = code
				}
			}
			c.AbortWithStatusJSON(http.StatusConflict, body)
			return
		}

		c.Next()

		if err := store.Remember(ctx, scope, key, strconv.Itoa(c.Writer.Status())); err != nil {
			log.Warn("idempotency remember failed", "err", err)
		}
	}
}
