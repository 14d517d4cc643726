package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fndlabs/foundation/internal/pkg/dispatch"
)

type fakeMailer struct {
	sent []sentMail
	err  error
}

type sentMail struct {
	to      string
	subject string
	body    string
	welcome bool
}

func (f *fakeMailer) SendMail(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) SendWelcomeEmail(to, fullName string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, body: fullName, welcome: true})
	return nil
}

func mustEnvelope(t *testing.T, event dispatch.Event) []byte {
	t.Helper()
	envelope, err := dispatch.WrapEvent(event)
	require.NoError(t, err)
	body, err := json.Marshal(envelope)
	require.NoError(t, err)
	return body
}

func TestHandleAccountCreatedSendsWelcomeEmail(t *testing.T) {
	mailer := &fakeMailer{}
	mux := NewMuxWithMailer(mailer)

	body := mustEnvelope(t, dispatch.AccountCreatedEvent{
		AccountID:    7,
		UserEmail:    "maria@example.com",
		UserFullName: "Maria Silva",
	})
	require.NoError(t, mux.Handle(context.Background(), "events", body))

	require.Len(t, mailer.sent, 1)
	assert.True(t, mailer.sent[0].welcome)
	assert.Equal(t, "maria@example.com", mailer.sent[0].to)
	assert.Equal(t, "Maria Silva", mailer.sent[0].body)
}

func TestHandleAccountCreatedWithoutEmailFails(t *testing.T) {
	mux := NewMuxWithMailer(&fakeMailer{})

	body := mustEnvelope(t, dispatch.AccountCreatedEvent{AccountID: 7})
	require.Error(t, mux.Handle(context.Background(), "events", body))
}

func TestHandleUnknownEventIsAcknowledged(t *testing.T) {
	mailer := &fakeMailer{}
	mux := NewMuxWithMailer(mailer)

	body, err := json.Marshal(dispatch.Envelope{EventName: "SomethingElse"})
	require.NoError(t, err)
	require.NoError(t, mux.Handle(context.Background(), "events", body))
	assert.Empty(t, mailer.sent)
}

func TestHandleMalformedEnvelopeFails(t *testing.T) {
	mux := NewMuxWithMailer(&fakeMailer{})
	require.Error(t, mux.Handle(context.Background(), "events", []byte("{not json")))
}

func TestHandleSendEmail(t *testing.T) {
	mailer := &fakeMailer{}
	mux := NewMuxWithMailer(mailer)

	body, err := json.Marshal(dispatch.SendEmailPayload{
		To:      "ops@example.com",
		Subject: "Payment failed",
		HTML:    "<p>Details</p>",
	})
	require.NoError(t, err)
	require.NoError(t, mux.Handle(context.Background(), dispatch.TaskSendEmail, body))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ops@example.com", mailer.sent[0].to)
	assert.Equal(t, "Payment failed", mailer.sent[0].subject)
}

func TestHandleSendEmailWithoutRecipientFails(t *testing.T) {
	mux := NewMuxWithMailer(&fakeMailer{})
	body, _ := json.Marshal(dispatch.SendEmailPayload{Subject: "x"})
	require.Error(t, mux.Handle(context.Background(), dispatch.TaskSendEmail, body))
}

func TestHandleMailerFailurePropagates(t *testing.T) {
	mux := NewMuxWithMailer(&fakeMailer{err: errors.New("smtp down")})

	body := mustEnvelope(t, dispatch.AccountCreatedEvent{UserEmail: "maria@example.com"})
	require.Error(t, mux.Handle(context.Background(), "events", body))
}

func TestHandleUnknownTaskIsAcknowledged(t *testing.T) {
	mux := NewMuxWithMailer(&fakeMailer{})
	require.NoError(t, mux.Handle(context.Background(), "resize-avatar", []byte("{}")))
}
