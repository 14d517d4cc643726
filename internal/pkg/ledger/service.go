package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fndlabs/foundation/app/models"
	"github.com/fndlabs/foundation/app/repository"
)

// Service is the webhook event ledger. Every inbound provider event gets a
// durable row here before any business handler runs, keyed by
// (provider, provider_event_id) for deduplication.
type Service struct {
	events repository.WebhookEventRepository
}

// NewService creates a ledger service on top of the event repository.
func NewService(events repository.WebhookEventRepository) *Service {
	return &Service{events: events}
}

// Record is the outcome of recording an inbound delivery.
type Record struct {
	Event *models.WebhookEvent
	// Duplicate is true when a row for the same provider event already
	// existed.
	Duplicate bool
}

// NeedsProcessing reports whether the handler must run for this delivery.
// First deliveries always process. A duplicate is replayed while the stored
// row is still pending or failed - the provider's redelivery is the retry
// path for handler faults - and acknowledged without reprocessing once the
// row reached processed, or while a concurrent delivery holds it in
// processing.
func (r *Record) NeedsProcessing() bool {
	if !r.Duplicate {
		return true
	}
	return r.Event.Status == models.WebhookStatusPending ||
		r.Event.Status == models.WebhookStatusFailed
}

// RecordReceived stores an inbound event as pending, or reports it as a
// duplicate when the provider already delivered it. providerEventID may be
// empty; a payload hash stands in so deduplication still works for providers
// that don't send event ids.
func (s *Service) RecordReceived(provider, providerEventID, eventName string, payload []byte) (*Record, error) {
	providerEventID = strings.TrimSpace(providerEventID)
	if providerEventID == "" {
		providerEventID = hashEventID(payload)
	}

	created, stored, err := s.events.CreateIfNotExists(&models.WebhookEvent{
		Provider:        provider,
		ProviderEventID: providerEventID,
		EventName:       eventName,
		Status:          models.WebhookStatusPending,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return nil, err
	}
	if !created {
		log.Infof("[Ledger] Duplicate %s event %s, already recorded as #%d (%s)",
			provider, providerEventID, stored.ID, stored.Status)
	}
	return &Record{Event: stored, Duplicate: !created}, nil
}

// MarkProcessing moves a pending or failed event to processing before its
// handler runs.
func (s *Service) MarkProcessing(id uint) error {
	return s.events.MarkProcessing(id)
}

// MarkProcessed finalizes an event after successful handling. Safe to call
// again on an already processed event.
func (s *Service) MarkProcessed(id uint) error {
	return s.events.MarkProcessed(id)
}

// MarkFailed records a handler failure so the row shows why the provider will
// redeliver. Never downgrades a processed event.
func (s *Service) MarkFailed(id uint, handlerErr error) error {
	msg := ""
	if handlerErr != nil {
		msg = handlerErr.Error()
	}
	return s.events.MarkFailed(id, msg)
}

// hashEventID derives a stable dedup key from the raw payload for providers
// that deliver no event id.
func hashEventID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
