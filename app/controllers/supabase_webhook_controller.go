package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/ledger"
	"github.com/fndlabs/foundation/internal/pkg/provisioning"
	"github.com/fndlabs/foundation/internal/pkg/s3archive"
	"github.com/fndlabs/foundation/internal/pkg/supabase"
)

const providerSupabase = "supabase"

// TenantProvisioner is the slice of the provisioning service the webhook
// controllers need.
type TenantProvisioner interface {
	Provision(ctx context.Context, authUserID, email, fullName string) (*provisioning.Result, error)
}

// SupabaseWebhookController handles the identity provider's auth webhooks.
type SupabaseWebhookController struct {
	cfg         *config.Config
	ledger      *ledger.Service
	provisioner TenantProvisioner
	archiver    *s3archive.Archiver
}

// NewSupabaseWebhookController wires the identity webhook endpoint.
func NewSupabaseWebhookController(cfg *config.Config, ledgerSvc *ledger.Service, provisioner TenantProvisioner, archiver *s3archive.Archiver) *SupabaseWebhookController {
	return &SupabaseWebhookController{
		cfg:         cfg,
		ledger:      ledgerSvc,
		provisioner: provisioner,
		archiver:    archiver,
	}
}

// HandleAuthWebhook processes POST /webhooks/supabase/auth. Answering non-2xx
// makes the provider redeliver, so every failure class maps deliberately:
// bad signature and bad payload are 400 (redelivery cannot fix them, but the
// provider treats 4xx as terminal), handler faults are 500 (retriable).
func (ct *SupabaseWebhookController) HandleAuthWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	signature := c.Get("X-Supabase-Signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Missing signature header"})
	}
	if !supabase.VerifyWebhookSignature(rawBody, signature, ct.cfg.Supabase.WebhookSecret) {
		log.Warn("[Webhook] Rejected identity webhook with invalid signature")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Invalid signature"})
	}

	payload, err := supabase.ParseAuthWebhook(rawBody)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Malformed payload"})
	}

	record, err := ct.ledger.RecordReceived(providerSupabase, "", payload.Type, rawBody)
	if err != nil {
		log.Errorf("[Webhook] Failed to record identity event: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to record event"})
	}
	if !record.NeedsProcessing() {
		return c.JSON(fiber.Map{"success": true, "message": "Event already processed"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	ct.archiver.Archive(ctx, providerSupabase, record.Event.ProviderEventID, rawBody)

	switch payload.Type {
	case supabase.AuthEventInsert:
		return ct.handleInsert(ctx, c, record.Event.ID, payload)
	case supabase.AuthEventUpdate:
		return ct.handleUpdate(c, record.Event.ID, payload)
	default:
		_ = ct.ledger.MarkProcessed(record.Event.ID)
		return c.JSON(fiber.Map{"success": true, "message": "Event acknowledged but not processed"})
	}
}

func (ct *SupabaseWebhookController) handleInsert(ctx context.Context, c *fiber.Ctx, eventID uint, payload *supabase.AuthWebhookPayload) error {
	rec := payload.Record
	if rec.ID == "" || rec.Email == "" {
		_ = ct.ledger.MarkFailed(eventID, errors.New("record is missing id or email"))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Record is missing id or email"})
	}

	result, err := ct.provisioner.Provision(ctx, rec.ID, rec.Email, rec.FullName())
	if err != nil {
		_ = ct.ledger.MarkFailed(eventID, err)
		if errors.Is(err, provisioning.ErrEmailConflict) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Email already in use"})
		}
		log.Errorf("[Webhook] Provisioning failed for %s: %v", rec.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Provisioning failed"})
	}

	_ = ct.ledger.MarkProcessed(eventID)
	if result.Created {
		return c.JSON(fiber.Map{"success": true, "message": "User provisioned"})
	}
	return c.JSON(fiber.Map{"success": true, "message": "User already provisioned"})
}

// handleUpdate covers email confirmations. The provider fires UPDATE when
// email_confirmed_at flips from null; there is nothing to change locally, the
// event is logged for the audit trail.
func (ct *SupabaseWebhookController) handleUpdate(c *fiber.Ctx, eventID uint, payload *supabase.AuthWebhookPayload) error {
	confirmedNow := payload.Record.EmailConfirmedAt != nil
	confirmedBefore := payload.OldRecord != nil && payload.OldRecord.EmailConfirmedAt != nil
	if confirmedNow && !confirmedBefore {
		log.Infof("[Webhook] Email confirmed for identity %s", payload.Record.ID)
		_ = ct.ledger.MarkProcessed(eventID)
		return c.JSON(fiber.Map{"success": true, "message": "User update processed"})
	}
	_ = ct.ledger.MarkProcessed(eventID)
	return c.JSON(fiber.Map{"success": true, "message": "Event acknowledged but not processed"})
}
