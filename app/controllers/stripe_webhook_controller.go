package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/ledger"
	"github.com/fndlabs/foundation/internal/pkg/s3archive"
	"github.com/fndlabs/foundation/internal/pkg/stripe"
)

const providerStripe = "stripe"

// PaymentEventHandler dispatches one verified payment event.
type PaymentEventHandler interface {
	Handle(ctx context.Context, event *stripe.Event) error
}

// StripeWebhookController handles the payment processor's webhooks.
type StripeWebhookController struct {
	cfg      *config.Config
	ledger   *ledger.Service
	payments PaymentEventHandler
	archiver *s3archive.Archiver
}

// NewStripeWebhookController wires the payment webhook endpoint.
func NewStripeWebhookController(cfg *config.Config, ledgerSvc *ledger.Service, payments PaymentEventHandler, archiver *s3archive.Archiver) *StripeWebhookController {
	return &StripeWebhookController{
		cfg:      cfg,
		ledger:   ledgerSvc,
		payments: payments,
		archiver: archiver,
	}
}

// HandleWebhook processes POST /webhooks/stripe. The signature covers the
// exact raw bytes; verification runs before anything touches storage. A
// handler failure answers 500 so the provider redelivers; the redelivery
// finds the failed ledger row and runs the handler again. Only an event that
// already reached processed is acknowledged without reprocessing.
func (ct *StripeWebhookController) HandleWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	event, err := stripe.ConstructEvent(rawBody, c.Get("Stripe-Signature"), ct.cfg.Stripe.WebhookSecret)
	if err != nil {
		log.Warnf("[Webhook] Rejected payment webhook: %v", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Invalid signature"})
	}

	record, err := ct.ledger.RecordReceived(providerStripe, event.ID, event.Type, rawBody)
	if err != nil {
		log.Errorf("[Webhook] Failed to record payment event %s: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to record event"})
	}
	if !record.NeedsProcessing() {
		return c.JSON(fiber.Map{"success": true, "message": "Event already processed"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 15*time.Second)
	defer cancel()

	ct.archiver.Archive(ctx, providerStripe, event.ID, rawBody)

	if err := ct.ledger.MarkProcessing(record.Event.ID); err != nil {
		log.Errorf("[Webhook] Failed to mark event %s processing: %v", event.ID, err)
	}

	if err := ct.payments.Handle(ctx, event); err != nil {
		_ = ct.ledger.MarkFailed(record.Event.ID, err)
		log.Errorf("[Webhook] Payment handler failed for %s (%s): %v", event.ID, event.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}

	if err := ct.ledger.MarkProcessed(record.Event.ID); err != nil {
		log.Errorf("[Webhook] Failed to mark event %s processed: %v", event.ID, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
