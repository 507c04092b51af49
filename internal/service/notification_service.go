package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/cemetery-api/internal/models"
	"github.com/noah-isme/cemetery-api/pkg/jobs"
	"github.com/noah-isme/cemetery-api/pkg/mailer"
)

const notificationJobType = "notification.email"

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type messageRenderer interface {
	Render(name, to string, data map[string]string) (mailer.Message, error)
}

type notificationMetrics interface {
	RecordNotification(kind, result string)
}

// NotificationConfig tunes delivery.
type NotificationConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService renders requester notifications and delivers them on a worker queue.
type NotificationService struct {
	enabled   bool
	queue     *jobs.Queue
	sender    mailSender
	templates messageRenderer
	metrics   notificationMetrics
	logger    *zap.Logger
}

// NewNotificationService wires the mail queue. Call Start before Notify.
func NewNotificationService(cfg NotificationConfig, sender mailSender, templates messageRenderer, metrics notificationMetrics, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		enabled:   cfg.Enabled,
		sender:    sender,
		templates: templates,
		metrics:   metrics,
		logger:    logger,
	}
	svc.queue = jobs.NewQueue("notifications", svc.deliver, jobs.QueueConfig{
		Workers:     cfg.Workers,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
		OnExhausted: svc.exhausted,
		Logger:      logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	if s.enabled {
		s.queue.Start(ctx)
	}
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify validates and enqueues the notification. An error means it will never be sent.
func (s *NotificationService) Notify(ctx context.Context, notification models.Notification) error {
	if notification.Recipient == "" {
		s.record(notification.Kind, NotificationResultDropped)
		return fmt.Errorf("notification %s has no recipient", notification.Kind)
	}
	if !s.enabled {
		s.logger.Info("notifications disabled, skipping",
			zap.String("kind", string(notification.Kind)), zap.String("recipient", notification.Recipient))
		return nil
	}
	if _, err := s.templates.Render(string(notification.Kind), notification.Recipient, notification.Payload); err != nil {
		s.record(notification.Kind, NotificationResultDropped)
		return err
	}
	job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: notification}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.record(notification.Kind, NotificationResultDropped)
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	msg, err := s.templates.Render(string(notification.Kind), notification.Recipient, notification.Payload)
	if err != nil {
		return err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}
	s.record(notification.Kind, NotificationResultSent)
	s.logger.Debug("notification sent", zap.String("job_id", job.ID), zap.String("kind", string(notification.Kind)))
	return nil
}

func (s *NotificationService) exhausted(job jobs.Job, err error) {
	kind := models.NotificationKind("unknown")
	if notification, ok := job.Payload.(models.Notification); ok {
		kind = notification.Kind
	}
	s.record(kind, NotificationResultFailed)
}

func (s *NotificationService) record(kind models.NotificationKind, result string) {
	if s.metrics != nil {
		s.metrics.RecordNotification(string(kind), result)
	}
}

// DefaultNotificationTemplates returns the bundled subject/body pairs per notification kind.
func DefaultNotificationTemplates() map[string][2]string {
	return map[string][2]string{
		string(models.NotificationExhumationApproved): {
			"Your exhumation request for plot {{.plot_id}} was approved",
			"Dear {{.requestor_name}},\n\nThe exhumation request for {{.deceased_name}} (plot {{.plot_id}}) has been approved.\n" +
				"{{if .exhumation_date}}Scheduled date: {{.exhumation_date}}\n{{end}}{{if .notes}}Notes: {{.notes}}\n{{end}}\nReference: {{.request_id}}\n",
		},
		string(models.NotificationExhumationRejected): {
			"Your exhumation request for plot {{.plot_id}} was rejected",
			"Dear {{.requestor_name}},\n\nThe exhumation request for {{.deceased_name}} (plot {{.plot_id}}) was not approved.\n" +
				"{{if .notes}}Reason: {{.notes}}\n{{end}}\nReference: {{.request_id}}\n",
		},
		string(models.NotificationReservationApproved): {
			"Your reservation for plot {{.plot_id}} was approved",
			"Dear {{.requestor_name}},\n\nYour {{.reservation_type}} reservation of plot {{.plot_id}} for {{.beneficiary_name}} has been approved.\n" +
				"Please settle the payment to secure the plot.\n{{if .notes}}Notes: {{.notes}}\n{{end}}\nReference: {{.reservation_id}}\n",
		},
		string(models.NotificationReservationRejected): {
			"Your reservation for plot {{.plot_id}} was rejected",
			"Dear {{.requestor_name}},\n\nYour reservation of plot {{.plot_id}} was not approved.\n" +
				"{{if .notes}}Reason: {{.notes}}\n{{end}}\nReference: {{.reservation_id}}\n",
		},
	}
}
