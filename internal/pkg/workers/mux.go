package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fndlabs/foundation/internal/pkg/dispatch"
	"github.com/fndlabs/foundation/internal/pkg/mail"
)

// Mailer is the slice of the mail package the workers need. Injectable so
// tests don't speak SMTP.
type Mailer interface {
	SendMail(to, subject, body string) error
	SendWelcomeEmail(to, fullName string) error
}

type smtpMailer struct{}

func (smtpMailer) SendMail(to, subject, body string) error { return mail.SendMail(to, subject, body) }
func (smtpMailer) SendWelcomeEmail(to, fullName string) error {
	return mail.SendWelcomeEmail(to, fullName)
}

// Mux routes queue deliveries to their handlers. The same mux serves the
// HTTP worker endpoint (queue-service push) and the local dev queue, so a
// task behaves identically no matter how it arrived.
type Mux struct {
	mailer Mailer
}

// NewMux creates the worker mux with the real SMTP mailer.
func NewMux() *Mux {
	return &Mux{mailer: smtpMailer{}}
}

// NewMuxWithMailer creates the worker mux with an injected mailer.
func NewMuxWithMailer(mailer Mailer) *Mux {
	return &Mux{mailer: mailer}
}

// Handle executes one task. It satisfies dispatch.TaskHandler. An error
// return makes the caller answer non-2xx (or requeue locally), which triggers
// redelivery; handlers must therefore stay idempotent.
func (m *Mux) Handle(ctx context.Context, taskName string, payload []byte) error {
	switch taskName {
	case "events":
		return m.handleEvent(ctx, payload)
	case dispatch.TaskSendEmail:
		return m.handleSendEmail(ctx, payload)
	default:
		// Unknown tasks are acknowledged, not retried: redelivery cannot
		// make a handler appear.
		log.Warnf("[Workers] Ignoring unknown task %s", taskName)
		return nil
	}
}

// handleEvent dispatches a domain event envelope by event name.
func (m *Mux) handleEvent(ctx context.Context, payload []byte) error {
	var envelope dispatch.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("failed to parse event envelope: %w", err)
	}

	switch envelope.EventName {
	case dispatch.EventNameAccountCreated:
		var event dispatch.AccountCreatedEvent
		if err := json.Unmarshal(envelope.Payload, &event); err != nil {
			return fmt.Errorf("failed to parse %s payload: %w", envelope.EventName, err)
		}
		if event.UserEmail == "" {
			return fmt.Errorf("%s event has no user email", envelope.EventName)
		}
		if err := m.mailer.SendWelcomeEmail(event.UserEmail, event.UserFullName); err != nil {
			return fmt.Errorf("failed to send welcome email: %w", err)
		}
		log.Infof("[Workers] Sent welcome email to %s (account %d)", event.UserEmail, event.AccountID)
		return nil
	default:
		log.Warnf("[Workers] Ignoring unknown event %s", envelope.EventName)
		return nil
	}
}

func (m *Mux) handleSendEmail(ctx context.Context, payload []byte) error {
	var task dispatch.SendEmailPayload
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("failed to parse send-email payload: %w", err)
	}
	if task.To == "" {
		return fmt.Errorf("send-email task has no recipient")
	}
	if err := m.mailer.SendMail(task.To, task.Subject, task.HTML); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", task.To, err)
	}
	return nil
}
