package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

const tracerName = "github.com/arklim/maintenance-service/internal/usecase"

// Requirement describes what an operation demands of its actor: a permission or a minimum role.
type Requirement struct {
	Permission domain.Permission
	Role       domain.Role
}

// NeedPermission builds a permission requirement.
func NeedPermission(perm domain.Permission) Requirement {
	return Requirement{Permission: perm}
}

// NeedRole builds an "at least this role" requirement.
func NeedRole(role domain.Role) Requirement {
	return Requirement{Role: role}
}

// Gate evaluates an actor against a required permission or role before any data access happens.
type Gate struct {
	audit   port.AuditRecorder
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// NewGate constructs a Gate. Denials are reported to audit.
func NewGate(audit port.AuditRecorder, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		audit:  audit,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// WithMetrics attaches decision counters.
func (g *Gate) WithMetrics(metrics *Metrics) *Gate {
	g.metrics = metrics
	return g
}

// Authorize dispatches to RequirePermission or RequireRole.
func (g *Gate) Authorize(ctx context.Context, actor *domain.Actor, req Requirement) error {
	switch {
	case req.Permission != "":
		return g.RequirePermission(ctx, actor, req.Permission)
	case req.Role != "":
		return g.RequireRole(ctx, actor, req.Role)
	default:
		return errors.New("authorization requirement is empty")
	}
}

// RequirePermission fails with domain.ErrUnauthenticated when actor is nil and with
// domain.ErrForbidden when the actor's role does not grant perm.
func (g *Gate) RequirePermission(ctx context.Context, actor *domain.Actor, perm domain.Permission) error {
	ctx, span := g.tracer.Start(ctx, "authz.RequirePermission",
		trace.WithAttributes(attribute.String("authz.permission", string(perm))))
	defer span.End()

	if actor == nil {
		return g.unauthenticated(ctx, span, "permission", string(perm), perm.Resource())
	}
	span.SetAttributes(attribute.String("authz.role", string(actor.Role)))

	granted, err := domain.HasPermission(actor.Role, perm)
	if err != nil {
		return g.invalidRole(ctx, span, "permission", actor, err)
	}

	if !granted {
		return g.forbidden(ctx, span, "permission", actor, string(perm), perm.Resource())
	}

	g.metrics.observeDecision("permission", outcomeAllowed)
	return nil
}

// RequireRole fails with domain.ErrUnauthenticated when actor is nil and with
// domain.ErrForbidden when the actor's role ranks below role.
func (g *Gate) RequireRole(ctx context.Context, actor *domain.Actor, role domain.Role) error {
	ctx, span := g.tracer.Start(ctx, "authz.RequireRole",
		trace.WithAttributes(attribute.String("authz.required_role", string(role))))
	defer span.End()

	action := "role:" + string(role)

	if actor == nil {
		return g.unauthenticated(ctx, span, "role", action, string(role))
	}
	span.SetAttributes(attribute.String("authz.role", string(actor.Role)))

	required, err := domain.Rank(role)
	if err != nil {
		return g.invalidRole(ctx, span, "role", actor, err)
	}
	actual, err := domain.Rank(actor.Role)
	if err != nil {
		return g.invalidRole(ctx, span, "role", actor, err)
	}

	if actual < required {
		return g.forbidden(ctx, span, "role", actor, action, string(role))
	}

	g.metrics.observeDecision("role", outcomeAllowed)
	return nil
}

func (g *Gate) unauthenticated(ctx context.Context, span trace.Span, check, action, resource string) error {
	g.metrics.observeDecision(check, outcomeUnauthenticated)
	span.SetStatus(codes.Error, "unauthenticated")
	g.logger.Debug("authorization rejected unauthenticated request",
		zap.String("action", action),
		zap.String("resource", resource),
	)
	return domain.Unauthenticated(action, resource)
}

func (g *Gate) forbidden(ctx context.Context, span trace.Span, check string, actor *domain.Actor, action, resource string) error {
	g.metrics.observeDecision(check, outcomeForbidden)
	span.SetStatus(codes.Error, "forbidden")
	g.logger.Info("authorization denied",
		zap.String("actor_id", actor.ID),
		zap.String("role", string(actor.Role)),
		zap.String("action", action),
		zap.String("resource", resource),
	)
	if g.audit != nil {
		g.audit.Record(ctx, actor.ID, action, resource, map[string]any{
			"check": check,
			"role":  string(actor.Role),
		})
	}
	return domain.Forbidden(actor.ID, action, resource)
}

func (g *Gate) invalidRole(_ context.Context, span trace.Span, check string, actor *domain.Actor, err error) error {
	g.metrics.observeDecision(check, outcomeInvalidRole)
	span.RecordError(err)
	span.SetStatus(codes.Error, "invalid role")
	g.logger.Error("unrecognised role reached the authorization gate",
		zap.String("actor_id", actor.ID),
		zap.String("role", string(actor.Role)),
		zap.Error(err),
	)
	return fmt.Errorf("authorize actor %s: %w", actor.ID, err)
}
