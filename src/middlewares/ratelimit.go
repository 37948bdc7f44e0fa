package middlewares

import (
	"esn/src/lib"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles a route per client IP using a fixed redis
// window instead of an in-process table, so limits hold across replicas and
// the store evicts itself. Fails open when redis is unreachable.
func RateLimitMiddleware(limit int64, window time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rd := lib.GetRedisClient()
		if rd == nil {
			ctx.Next()
			return
		}
		key := fmt.Sprintf("ratelimit:%s:%s", ctx.ClientIP(), ctx.FullPath())
		count, err := rd.Incr(ctx.Request.Context(), key).Result()
		if err != nil {
			log.Printf("[ratelimit] Error incrementing %s, failing open: %s\n", key, err.Error())
			ctx.Next()
			return
		}
		if count == 1 {
			if err := rd.Expire(ctx.Request.Context(), key, window).Err(); err != nil {
				log.Printf("[ratelimit] Error setting expiry on %s: %s\n", key, err.Error())
			}
		}
		if count > limit {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		ctx.Next()
	}
}
