package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/teslashibe/go-rover/pkg/drive"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// requestID reuses the caller's X-Request-ID or assigns a new UUID.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(requestIDKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// requestLogger logs one line per request. Long-lived streams are logged
// when they start, not when they end.
func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		id, _ := c.Locals(requestIDKey).(string)
		args := []any{
			"request_id", id,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		}

		switch {
		case status >= 500:
			logger.Error("server error", append(args, "error", err)...)
		case status >= 400:
			logger.Warn("client error", args...)
		default:
			logger.Debug("request", args...)
		}
		return err
	}
}

// limiterIdle is how long a client's bucket survives without requests.
const limiterIdle = 5 * time.Minute

// rateLimiter keeps a token bucket per client IP for the command routes, so
// a stuck touch button cannot flood the motor driver. Buckets of clients that
// went quiet are swept on later requests.
type rateLimiter struct {
	mu        sync.Mutex
	bucket    map[string]*clientBucket
	rate      rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		perSecond = DefaultConfig().CommandRate
	}
	if burst <= 0 {
		burst = DefaultConfig().CommandBurst
	}
	return &rateLimiter{
		bucket: make(map[string]*clientBucket),
		rate:   rate.Limit(perSecond),
		burst:  burst,
		idle:   limiterIdle,
		now:    time.Now,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= r.idle {
		r.sweep(now)
	}

	b, ok := r.bucket[ip]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(r.rate, r.burst)}
		r.bucket[ip] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep drops idle buckets. r.mu must be held.
func (r *rateLimiter) sweep(now time.Time) {
	for ip, b := range r.bucket {
		if now.Sub(b.lastSeen) >= r.idle {
			delete(r.bucket, ip)
		}
	}
	r.lastSweep = now
}

// middleware rejects requests over the client's budget. Requests for which
// exempt returns true pass without spending a token: a stop must always reach
// the motors.
func (r *rateLimiter) middleware(logger *slog.Logger, exempt func(*fiber.Ctx) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if exempt != nil && exempt(c) {
			return c.Next()
		}
		ip := c.IP()
		if !r.limiterFor(ip).Allow() {
			logger.Warn("command rate limit exceeded", "ip", ip, "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests",
			})
		}
		return c.Next()
	}
}

// haltsMotors reports whether a command name stops the rover.
func haltsMotors(name string) bool {
	d, err := drive.ParseDirection(name)
	return err == nil && d == drive.Stop
}

func exemptCommand(c *fiber.Ctx) bool {
	cmd := c.FormValue("cmd")
	return cmd == "switch_mode" || haltsMotors(cmd)
}

func exemptDrive(c *fiber.Ctx) bool {
	return haltsMotors(c.Params("direction"))
}
