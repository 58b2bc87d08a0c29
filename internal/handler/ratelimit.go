package handler

import (
	"net/http"
	"strconv"
	"time"

	"finishflow/shared/models"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRateLimiter ограничивает число запросов с одного IP в минуту.
// Если redisClient nil, счетчики живут в памяти процесса.
func NewRateLimiter(redisClient *redis.Client, perMinute uint, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	var store rateli.Store
	if redisClient != nil {
		store = rateli.RedisStore(&rateli.RedisOptions{
			RedisClient: redisClient,
			Rate:        time.Minute,
			Limit:       perMinute,
		})
	} else {
		store = rateli.InMemoryStore(&rateli.InMemoryOptions{
			Rate:  time.Minute,
			Limit: perMinute,
		})
	}

	return rateli.RateLimiter(store, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			rateLimitedTotal.Inc()
			logger.Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			retry := int(time.Until(info.ResetTime).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				models.NewErrorResponse(models.ErrCodeRateLimited, "Too many requests. Try again in "+time.Until(info.ResetTime).Round(time.Second).String()))
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}
