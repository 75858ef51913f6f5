package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/services/metrics"
	"github.com/trezcool/takharruj/services/ratelimit"
)

// roleMiddleware lets through callers whose resolved profile has the given role.
func roleMiddleware(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.Role == role {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// rateLimitMiddleware caps how often a caller may hit the route within window.
func rateLimitMiddleware(limiter ratelimit.Limiter, collector *metrics.Collector, scope string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if limit <= 0 {
				return next(ctx)
			}
			usr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !limiter.Allow(ctx.Request().Context(), scope+":"+usr.ID, limit, window) {
				collector.ObserveRateLimited()
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

func metricsMiddleware(collector *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}
			collector.ObserveRequest(ctx.Request().Method, ctx.Path(), ctx.Response().Status)
			return nil
		}
	}
}
