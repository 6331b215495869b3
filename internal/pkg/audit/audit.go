package audit

import (
	"context"

	"go.uber.org/zap"

	"rentora/internal/domain"
)

type entryWriter interface {
	Create(ctx context.Context, e *domain.AuditEntry) error
}

// Logger writes audit entries best-effort: one retry on failure, then the
// entry is dropped with an error log. Audit writes never block or fail the
// operation they describe.
type Logger struct {
	repo entryWriter
	log  *zap.SugaredLogger
}

func New(repo entryWriter, log *zap.SugaredLogger) *Logger {
	return &Logger{repo: repo, log: log}
}

func (l *Logger) Record(ctx context.Context, actor domain.Actor, action, entity string, entityID int64, detail string) {
	e := &domain.AuditEntry{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Detail:   detail,
	}
	if err := l.repo.Create(ctx, e); err != nil {
		if err = l.repo.Create(ctx, e); err != nil {
			l.log.Errorw("audit entry dropped",
				"action", action, "entity", entity, "entity_id", entityID, "err", err)
		}
	}
}
