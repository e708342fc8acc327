package echoapi

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/escolarapp/escolar/core"
)

func adminMiddleware(auth *jwtAuth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := auth.getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && !claims.PendingChange {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// selfMiddleware restricts a detail endpoint to the account it names. A
// pending-change token passes; the service enforces what it may actually do.
func selfMiddleware(auth *jwtAuth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := auth.getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Subject == ctx.Param("id") {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// selfOrAdminMiddleware allows the named account or an admin through.
func selfOrAdminMiddleware(auth *jwtAuth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := auth.getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.PendingChange {
				return errHttpForbidden
			}
			if claims.Subject == ctx.Param("id") || claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// loginRateLimitMiddleware caps login attempts per client IP with a fixed
// redis window. A nil client or a redis failure lets the request through:
// rate limiting degrades before logins do.
func loginRateLimitMiddleware(rdb *redis.Client, conf *core.Config, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if rdb == nil {
				return next(ctx)
			}

			rctx := ctx.Request().Context()
			key := "login_attempts:" + ctx.RealIP()

			count, err := rdb.Incr(rctx, key).Result()
			if err != nil {
				logger.Warn(fmt.Sprintf("login rate limiter unavailable: %v", err))
				return next(ctx)
			}
			if count == 1 {
				if err = rdb.Expire(rctx, key, conf.Redis.LoginRateWindow).Err(); err != nil {
					logger.Warn(fmt.Sprintf("login rate limiter expire failed: %v", err))
				}
			}
			if count > int64(conf.Redis.LoginRateLimit) {
				return errTooManyLogins
			}
			return next(ctx)
		}
	}
}
