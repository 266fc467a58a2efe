package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-hr-change-reports/internal/repository"
)

// NotificationPublisher publishes change-report workflow events to NATS for
// consumption by the notifications service.
//
// Subject convention: notifications.hr.<event_type>
// Event types: report_submitted, report_accounting_approved,
//              report_audit_approved, report_completed, report_rejected
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so notification failures never interrupt workflow operations.
type NotificationPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string                 `json:"event_type"`
	ActorID      string                 `json:"actor_id"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	EmployeeID   string                 `json:"employee_id"`
	Status       string                 `json:"status"`
	Severity     string                 `json:"severity,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. conn may be nil, in which case every publish is a no-op.
func NewNotificationPublisher(conn *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{conn: conn, log: log}
}

// PublishReportEvent publishes a change-report workflow event.
// Subject: notifications.hr.<eventType>
func (p *NotificationPublisher) PublishReportEvent(
	ctx context.Context,
	eventType string,
	report *repository.ChangeReport,
	actorID string,
	payload map[string]interface{},
) {
	if p.conn == nil {
		return
	}

	event := &NotificationEvent{
		EventType:    eventType,
		ActorID:      actorID,
		ResourceType: "change_report",
		ResourceID:   report.ID,
		EmployeeID:   report.EmployeeID,
		Status:       string(report.Status()),
		Severity:     "info",
		Category:     "hr_approval",
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.hr.%s", eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("report_id", report.ID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("report_id", report.ID).
		Msg("notification: event published")
}
