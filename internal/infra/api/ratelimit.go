package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"propertyhub-payments/internal/domain"
	"propertyhub-payments/internal/domain/ports/adapter"
	"propertyhub-payments/internal/infra/logging"
	"propertyhub-payments/internal/infra/metrics"
	"propertyhub-payments/internal/infra/redis"
)

// RateLimit caps requests per authenticated user and route per minute.
// It must run after Authenticate. A nil limiter disables it, and limiter
// errors let the request through.
func RateLimit(limiter adapter.RateLimiter, perMinute int, route string, logger *zerolog.Logger, dev bool) Middleware {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, _ := ActorFrom(r.Context())
			ok, err := limiter.Allow(r.Context(), redis.UserRouteKey(actor.UserID, route), perMinute, time.Minute)
			if err != nil {
				logging.With(r.Context(), logger).Warn().Err(err).Msg("rate limiter unavailable")
			} else if !ok {
				metrics.IncRateLimited(route)
				writeError(w, domain.ErrRateLimited, dev)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
