package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/models"
	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

// txRunner executes fn inside one database transaction carried on ctx.
type txRunner interface {
	Within(ctx context.Context, fn func(ctx context.Context) error) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type eventPublisher interface {
	PublishTransition(evt models.TransitionEvent)
	PublishPlotChanged(evt models.PlotChangedEvent)
}

// Notifier delivers requester notifications. Implementations may deliver asynchronously.
type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

type noopPublisher struct{}

func (noopPublisher) PublishTransition(models.TransitionEvent)   {}
func (noopPublisher) PublishPlotChanged(models.PlotChangedEvent) {}

func requireAuthenticated(actor *models.Principal) error {
	if !actor.Authenticated() {
		return appErrors.ErrUnauthorized
	}
	return nil
}

func requireAdmin(actor *models.Principal) error {
	if err := requireAuthenticated(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	return nil
}

// workflow holds the collaborators shared by the request state machines. Everything
// here runs after the transition has committed.
type workflow struct {
	machine  string
	tx       txRunner
	audit    auditLogger
	events   eventPublisher
	notifier Notifier
	logger   *zap.Logger
}

func newWorkflow(machine string, tx txRunner, audit auditLogger, events eventPublisher, notifier Notifier, logger *zap.Logger) workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = noopPublisher{}
	}
	return workflow{machine: machine, tx: tx, audit: audit, events: events, notifier: notifier, logger: logger}
}

func (w *workflow) publishTransition(requestID, plotID, from, to string, actor *models.Principal) {
	w.events.PublishTransition(models.TransitionEvent{
		Machine:    w.machine,
		RequestID:  requestID,
		PlotID:     plotID,
		From:       from,
		To:         to,
		ActorID:    actor.UserID,
		OccurredAt: time.Now().UTC(),
	})
}

// notify returns a user-facing warning when the notifier fails, and never an error.
func (w *workflow) notify(ctx context.Context, notification models.Notification) string {
	if w.notifier == nil {
		return ""
	}
	if err := w.notifier.Notify(ctx, notification); err != nil {
		w.logger.Warn("notification failed",
			zap.String("machine", w.machine),
			zap.String("kind", string(notification.Kind)),
			zap.String("recipient", notification.Recipient),
			zap.Error(err))
		return appErrors.NotificationFailed(err).Message
	}
	return ""
}

func (w *workflow) emitAudit(ctx context.Context, actor *models.Principal, action, resourceID string, oldValues, newValues interface{}) {
	if w.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   w.machine,
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  w.machine + "-service",
	}
	if oldValues != nil {
		log.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		log.NewValues, _ = json.Marshal(newValues)
	}
	if err := w.audit.CreateAuditLog(ctx, log); err != nil {
		w.logger.Warn("failed to persist audit log", zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	v := value
	return &v
}

func pageToLimit(page, size int) (limit, offset int) {
	if size <= 0 || size > 200 {
		size = 50
	}
	if page < 1 {
		page = 1
	}
	return size, (page - 1) * size
}
