package reservation

import (
	"context"

	"go.uber.org/zap"
)

// AuditSink receives "actor did X" records. Fire-and-forget: a failing
// sink never changes the outcome of the operation that produced the record.
type AuditSink interface {
	Record(ctx context.Context, actorID, description string) error
}

// NopAudit discards every record.
type NopAudit struct{}

func (NopAudit) Record(context.Context, string, string) error { return nil }

// recordAudit writes to the sink after the unit has committed and swallows
// failures, logging them.
func recordAudit(ctx context.Context, sink AuditSink, log *zap.Logger, actorID, description string) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, actorID, description); err != nil {
		log.Warn("audit record failed",
			zap.String("actor_id", actorID),
			zap.String("description", description),
			zap.Error(err),
		)
	}
}
