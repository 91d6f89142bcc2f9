package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	apperrors "storeadmin/internal/errors"
)

// Allower decides whether key may proceed.
type Allower interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// Limiter throttles requests per client IP. A nil *Limiter lets everything through.
type Limiter struct {
	allower Allower
	limit   redis_rate.Limit
	prefix  string
	logger  *slog.Logger
}

// New connects to redis at addr and allows perMinute requests per client.
// It returns nil when addr is empty or perMinute is not positive.
func New(addr, password string, db, perMinute int, logger *slog.Logger) *Limiter {
	if addr == "" || perMinute <= 0 {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewWithAllower(redis_rate.NewLimiter(rdb), redis_rate.PerMinute(perMinute), logger)
}

// NewWithAllower builds a Limiter on an existing backend.
func NewWithAllower(allower Allower, limit redis_rate.Limit, logger *slog.Logger) *Limiter {
	return &Limiter{
		allower: allower,
		limit:   limit,
		prefix:  "ratelimit:",
		logger:  logger,
	}
}

// Middleware rejects clients over quota with ErrRateLimited.
// Backend failures fail open.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if l == nil {
			return next
		}
		return func(c echo.Context) error {
			key := l.prefix + c.Path() + ":" + c.RealIP()

			res, err := l.allower.Allow(c.Request().Context(), key, l.limit)
			if err != nil {
				l.logger.Warn("rate limiter error, failing open", "error", err, "key", key)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.limit.Rate))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if res.Allowed == 0 {
				retry := int(math.Ceil(res.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				return apperrors.ToEcho(fmt.Errorf("%w: retry in %s", apperrors.ErrRateLimited, time.Duration(retry)*time.Second))
			}
			return next(c)
		}
	}
}
