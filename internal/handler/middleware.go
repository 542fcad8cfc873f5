package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fund-directory/config"
	"fund-directory/internal/ports"

	log "github.com/sirupsen/logrus"
)

// RateLimit : счётчик фиксированного окна в кэше по маршруту и IP.
// Без кэша запросы не ограничиваются.
func RateLimit(cache ports.CacheRepository, route string, cfg *config.RateLimitConfig) func(http.Handler) http.Handler {
	limit := int64(cfg.Requests)
	window := cfg.WindowDuration()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("ratelimit:%s:%s", route, clientIP(r))
			count, ok := cache.Increment(r.Context(), key, window)
			if ok && count > limit {
				retryAfter := cache.TTL(r.Context(), key)
				if retryAfter <= 0 {
					retryAfter = int64(window / time.Second)
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				log.WithFields(log.Fields{
					"route": route,
					"ip":    clientIP(r),
					"count": count,
				}).Warn("превышен лимит запросов")
				sendErrorResponse(w, http.StatusTooManyRequests, "слишком много запросов")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
