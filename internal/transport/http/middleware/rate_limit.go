package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
	appLogger "github.com/arklim/maintenance-service/internal/infra/logger"
)

const (
	rateLimitProblemType  = "https://maintenance.arklim.dev/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"

	// AuditActionRateLimit is recorded when an authenticated actor is throttled.
	AuditActionRateLimit = "rate_limit"

	anonymousRole        = "anonymous"
	throttledRoleKey     = "rate_limit_role"
	defaultRateLimitName = "api"
)

// RateLimitPolicy sizes the sliding window for API callers. Authenticated actors get a window of
// their own sized by role; anonymous callers share one per client IP.
type RateLimitPolicy struct {
	Name      string
	Window    time.Duration
	Default   int
	Anonymous int
	Roles     map[domain.Role]int
}

// LimitFor returns the request budget for actor, or 0 when the caller is not limited.
func (p RateLimitPolicy) LimitFor(actor *domain.Actor) int {
	if actor == nil {
		return p.Anonymous
	}
	if limit, ok := p.Roles[actor.Role]; ok {
		return limit
	}
	return p.Default
}

// RateLimiter throttles API callers using a port.RequestWindowStore.
type RateLimiter struct {
	store  port.RequestWindowStore
	audit  port.AuditRecorder
	logger *zap.Logger
	now    func() time.Time
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// NewRateLimiter builds a rate limiter backed by store.
func NewRateLimiter(store port.RequestWindowStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithAudit records throttled authenticated actors in the audit trail.
func (rl *RateLimiter) WithAudit(audit port.AuditRecorder) *RateLimiter {
	rl.audit = audit
	return rl
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// RateLimit returns a Gin middleware enforcing policy. It must run after Authenticate so the
// actor's role selects the budget. Store failures let the request through.
func (rl *RateLimiter) RateLimit(policy RateLimitPolicy) gin.HandlerFunc {
	if policy.Name == "" {
		policy.Name = defaultRateLimitName
	}

	return func(c *gin.Context) {
		if rl.store == nil || policy.Window <= 0 {
			c.Next()
			return
		}

		actor := ActorFromContext(c)
		limit := policy.LimitFor(actor)
		if limit <= 0 {
			c.Next()
			return
		}

		caller, role := callerKey(c, actor)
		if caller == "" {
			c.Next()
			return
		}

		now := rl.now()
		usage, err := rl.store.Admit(c.Request.Context(), policy.Name+":"+caller, limit, policy.Window, now)
		if err != nil {
			rl.logger.Warn("rate limit check failed",
				zap.String("policy", policy.Name),
				zap.String("role", role),
				zap.Error(err),
			)
			c.Next()
			return
		}

		reset := now.Add(policy.Window)
		if !usage.Oldest.IsZero() {
			reset = usage.Oldest.Add(policy.Window)
		}

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(limit-usage.Count, 0)))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if usage.Admitted {
			c.Next()
			return
		}

		retrySeconds := max(int(math.Ceil(reset.Sub(now).Seconds())), 0)
		headers.Set("Retry-After", strconv.Itoa(retrySeconds))

		rl.reject(c, policy, actor, role, limit)
		rl.respondRateLimited(c, policy, role, retrySeconds)
	}
}

func (rl *RateLimiter) reject(c *gin.Context, policy RateLimitPolicy, actor *domain.Actor, role string, limit int) {
	c.Set(throttledRoleKey, role)

	fields := []zap.Field{
		zap.String("policy", policy.Name),
		zap.String("role", role),
		zap.Int("limit", limit),
		zap.Duration("window", policy.Window),
	}
	if actor != nil {
		fields = append(fields, zap.String("actor_id", actor.ID))
	} else {
		fields = append(fields, zap.String("client_ip", appLogger.MaskIP(c.ClientIP())))
	}
	rl.logger.Info("rate limit exceeded", fields...)

	if actor == nil || rl.audit == nil {
		return
	}
	rl.audit.Record(c.Request.Context(), actor.ID, AuditActionRateLimit, "api/"+policy.Name, map[string]any{
		"role":   role,
		"limit":  limit,
		"window": policy.Window.String(),
		"route":  c.Request.Method + " " + c.Request.URL.Path,
	})
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, policy RateLimitPolicy, role string, retrySeconds int) {
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retrySeconds),
		Instance:   instance,
		RetryAfter: retrySeconds,
		TraceID:    GetTraceID(c),
		Extensions: map[string]any{"policy": policy.Name, "role": role},
	})
}

// callerKey identifies the window owner: the actor id when authenticated, the client IP otherwise.
func callerKey(c *gin.Context, actor *domain.Actor) (key, role string) {
	if actor != nil && actor.ID != "" {
		return "actor:" + actor.ID, string(actor.Role)
	}
	ip := c.ClientIP()
	if ip == "" {
		return "", anonymousRole
	}
	return "ip:" + ip, anonymousRole
}

// ThrottledRole reports the role label of a request rejected by RateLimit.
func ThrottledRole(c *gin.Context) (string, bool) {
	v, ok := c.Get(throttledRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
