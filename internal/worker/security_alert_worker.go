package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-access/internal/events"
	"github.com/spec-kit/ticket-access/internal/observability"
)

// SecurityAlertWorker turns security-relevant events into structured alerts
// and metrics. It is the internal alert sink for denied attempts, role
// changes and audit append failures.
type SecurityAlertWorker struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewSecurityAlertWorker builds the worker.
func NewSecurityAlertWorker(logger *zap.Logger, metrics *observability.Metrics) *SecurityAlertWorker {
	return &SecurityAlertWorker{logger: logger, metrics: metrics}
}

// Register subscribes the worker to the dispatcher.
func (w *SecurityAlertWorker) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventAccessDenied, w.handleAccessDenied)
	dispatcher.Subscribe(events.EventRoleChanged, w.handleRoleChanged)
	dispatcher.Subscribe(events.EventAuditWriteFailed, w.handleAuditWriteFailed)
}

func (w *SecurityAlertWorker) handleAccessDenied(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccessDeniedPayload)
	if !ok {
		return nil
	}
	w.metrics.RecordDenial(string(payload.Action), payload.Reason)
	w.logger.Warn("access denied",
		zap.String("actor_user_id", event.Actor.UserID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.String("action", string(payload.Action)),
		zap.Stringp("target_resource_id", payload.TargetResourceID),
		zap.String("reason", payload.Reason),
		zap.String("source_addr", payload.SourceAddr),
	)
	return nil
}

func (w *SecurityAlertWorker) handleRoleChanged(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleChangedPayload)
	if !ok {
		return nil
	}
	w.logger.Info("role changed",
		zap.String("actor_user_id", event.Actor.UserID),
		zap.String("target_user_id", payload.TargetUserID),
		zap.String("old_role", string(payload.OldRole)),
		zap.String("new_role", string(payload.NewRole)),
	)
	return nil
}

func (w *SecurityAlertWorker) handleAuditWriteFailed(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AuditWriteFailedPayload)
	if !ok {
		return nil
	}
	w.logger.Error("audit append failed, mutation rolled back",
		zap.String("actor_user_id", event.Actor.UserID),
		zap.String("action", string(payload.Action)),
		zap.Stringp("target_resource_id", payload.TargetResourceID),
		zap.String("error", payload.Error),
	)
	return nil
}
