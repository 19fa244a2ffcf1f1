package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/healthdesk/admin-api/internal/email"
	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/pkg/logger"
	"github.com/healthdesk/admin-api/pkg/messaging"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

const (
	statusSent    = "sent"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

// Service emails doctors about suspension events read from the broker.
type Service struct {
	emailSvc email.Service
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewService(emailSvc email.Service, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{emailSvc: emailSvc, metrics: m, log: log}
}

// Run subscribes Handle to topic. Delivery stops when ctx is cancelled.
func (s *Service) Run(ctx context.Context, broker messaging.MessageBroker, topic string) error {
	if err := broker.Subscribe(ctx, topic, s.Handle); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	s.log.Info("Notification subscriber started", "topic", topic)
	return nil
}

func (s *Service) Handle(ctx context.Context, msg messaging.Message) error {
	switch msg.Type {
	case model.EventDoctorSuspended, model.EventDoctorAutoDeleted, model.EventSuspensionLifted:
	default:
		return nil
	}

	var payload model.SuspensionEventPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.record(msg.Type, statusFailed)
		return fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	if payload.DoctorEmail == "" || (payload.Suspension != nil && !payload.Suspension.Notifications.DoctorNotified) {
		s.record(msg.Type, statusSkipped)
		return nil
	}

	subject, body := render(msg.Type, &payload)
	if err := s.emailSvc.SendCustom(ctx, payload.DoctorEmail, subject, body); err != nil {
		s.record(msg.Type, statusFailed)
		return err
	}
	s.record(msg.Type, statusSent)
	return nil
}

func (s *Service) record(eventType, status string) {
	if s.metrics != nil {
		s.metrics.NotificationsSent.WithLabelValues(eventType, status).Inc()
	}
}

func render(eventType string, p *model.SuspensionEventPayload) (string, string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", p.DoctorName)

	var subject string
	switch eventType {
	case model.EventDoctorSuspended:
		subject = "Your account has been suspended"
		b.WriteString("Your account has been suspended")
		if p.Suspension != nil && p.Suspension.Period.EndDate != nil {
			fmt.Fprintf(&b, " until %s", p.Suspension.Period.EndDate.Format("2 January 2006"))
		}
		b.WriteString(".\n")
		writeReasons(&b, p.Suspension)
		if p.Warning != "" {
			fmt.Fprintf(&b, "\nPlease note: %s.\n", p.Warning)
		}
	case model.EventDoctorAutoDeleted:
		subject = "Your account has been permanently removed"
		fmt.Fprintf(&b, "Your account was removed after %d suspensions.\n", p.SuspensionCount)
		writeReasons(&b, p.Suspension)
	case model.EventSuspensionLifted:
		subject = "Your suspension has ended"
		b.WriteString("One of your suspensions is no longer in effect.\n")
	}

	b.WriteString("\nRegards,\nAdministration")
	return subject, b.String()
}

func writeReasons(b *strings.Builder, rec *model.Suspension) {
	if rec == nil || len(rec.Reasons) == 0 {
		return
	}
	b.WriteString("\nReasons:\n")
	for _, r := range rec.Reasons {
		fmt.Fprintf(b, "  - %s\n", r.Description)
	}
}
