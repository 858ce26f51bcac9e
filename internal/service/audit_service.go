package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"admin-console/internal/model"
	"admin-console/pkg/apierror"
)

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

type actorContextKey struct{}

// WithActor attaches the caller recorded by audited actions.
func WithActor(ctx context.Context, actor model.AuditActor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) model.AuditActor {
	actor, _ := ctx.Value(actorContextKey{}).(model.AuditActor)
	return actor
}

// AuditService records authority decisions. A nil *AuditService records
// nothing.
type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

// Record writes one entry; actionErr marks it as a failure. Write errors
// are logged and not returned.
func (s *AuditService) Record(ctx context.Context, action string, subject string, detail any, actionErr error) {
	if s == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC(),
		Actor:      ActorFromContext(ctx),
		Status:     model.AuditStatusSuccess,
		Subject:    subject,
		Detail:     detail,
	}
	if actionErr != nil {
		entry.Status = model.AuditStatusFailure
		entry.Error = actionErr.Error()
	}

	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("failed to write audit entry", "action", action, "subject", subject, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	from, err := parseOptionalAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'from' datetime format", query.From)
	}
	to, err := parseOptionalAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'to' datetime format", query.To)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, model.Meta{}, apierror.BadRequest("'to' is before 'from'", query.To)
	}

	return s.store.Query(ctx, query)
}

func parseOptionalAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, trimmed)
}
