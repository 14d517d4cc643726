package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fndlabs/foundation/app/models"
	"github.com/fndlabs/foundation/app/repository"
	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/dispatch"
	"github.com/fndlabs/foundation/internal/pkg/stripe"
)

// Handler routes verified payment events to their type-specific handlers.
// Unknown event types are acknowledged and logged; the provider keeps sending
// whatever is enabled on the endpoint and we only act on what we know.
type Handler struct {
	accounts repository.AccountRepository
	tasks    dispatch.TaskQueue
	cfg      *config.Config

	handlers map[string]func(ctx context.Context, event *stripe.Event) error
}

// NewHandler creates the payment event handler.
func NewHandler(accounts repository.AccountRepository, tasks dispatch.TaskQueue, cfg *config.Config) *Handler {
	h := &Handler{
		accounts: accounts,
		tasks:    tasks,
		cfg:      cfg,
	}
	h.handlers = map[string]func(ctx context.Context, event *stripe.Event) error{
		"checkout.session.completed":    h.handleCheckoutCompleted,
		"customer.subscription.created": h.handleSubscriptionChange,
		"customer.subscription.updated": h.handleSubscriptionChange,
		"customer.subscription.deleted": h.handleSubscriptionDeleted,
		"invoice.paid":                  h.handleInvoicePaid,
		"invoice.payment_failed":        h.handleInvoicePaymentFailed,
	}
	return h
}

// Handle processes one verified event. A nil return means the event may be
// marked processed; an error means the ledger row goes to failed and the
// provider should redeliver.
func (h *Handler) Handle(ctx context.Context, event *stripe.Event) error {
	handler, ok := h.handlers[event.Type]
	if !ok {
		log.Infof("[Payments] Ignoring unhandled event type %s (%s)", event.Type, event.ID)
		return nil
	}
	return handler(ctx, event)
}

// handleCheckoutCompleted binds the provider's customer reference to the
// account that started the checkout. The account id travels in the session
// metadata set when the checkout was created.
func (h *Handler) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	obj := event.Data.Object
	accountIDRaw := obj.Metadata["accountId"]
	if accountIDRaw == "" {
		return fmt.Errorf("checkout session %s has no accountId metadata", obj.ID)
	}
	accountID, err := strconv.ParseUint(accountIDRaw, 10, 32)
	if err != nil {
		return fmt.Errorf("checkout session %s has invalid accountId %q", obj.ID, accountIDRaw)
	}
	if obj.Customer == "" {
		return fmt.Errorf("checkout session %s has no customer reference", obj.ID)
	}

	if err := h.accounts.SetBillingCustomerID(uint(accountID), obj.Customer); err != nil {
		return fmt.Errorf("failed to bind customer %s to account %d: %w", obj.Customer, accountID, err)
	}
	log.Infof("[Payments] Bound billing customer %s to account %d", obj.Customer, accountID)
	return nil
}

func (h *Handler) handleSubscriptionChange(ctx context.Context, event *stripe.Event) error {
	obj := event.Data.Object
	account, err := h.resolveAccount(obj.Customer)
	if err != nil {
		return err
	}
	if account == nil {
		log.Warnf("[Payments] Subscription %s for unknown customer %s, ignoring", obj.ID, obj.Customer)
		return nil
	}
	log.Infof("[Payments] Subscription %s for account %d is now %s", obj.ID, account.ID, obj.Status)
	return nil
}

// handleSubscriptionDeleted deactivates the account when its subscription
// ends. Reactivation happens through a new checkout.
func (h *Handler) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	obj := event.Data.Object
	account, err := h.resolveAccount(obj.Customer)
	if err != nil {
		return err
	}
	if account == nil {
		log.Warnf("[Payments] Subscription %s ended for unknown customer %s, ignoring", obj.ID, obj.Customer)
		return nil
	}
	if account.Status == models.AccountStatusInactive {
		return nil
	}
	account.Status = models.AccountStatusInactive
	if err := h.accounts.Update(account); err != nil {
		return fmt.Errorf("failed to deactivate account %d: %w", account.ID, err)
	}
	log.Infof("[Payments] Account %d deactivated, subscription %s ended", account.ID, obj.ID)
	return nil
}

func (h *Handler) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	obj := event.Data.Object
	log.Infof("[Payments] Invoice %s paid (customer %s, amount %d)", obj.ID, obj.Customer, obj.AmountPaid)
	return nil
}

// handleInvoicePaymentFailed alerts the operator. The provider retries the
// charge on its own schedule; we only make the failure visible.
func (h *Handler) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	obj := event.Data.Object
	account, err := h.resolveAccount(obj.Customer)
	if err != nil {
		return err
	}
	accountRef := "unknown account"
	if account != nil {
		accountRef = fmt.Sprintf("account %d", account.ID)
	}
	log.Warnf("[Payments] Invoice %s payment failed for %s (customer %s)", obj.ID, accountRef, obj.Customer)

	if h.cfg.SuperAdminEmail == "" {
		return nil
	}
	_, err = h.tasks.Enqueue(ctx, dispatch.TaskSendEmail, dispatch.SendEmailPayload{
		To:      h.cfg.SuperAdminEmail,
		Subject: fmt.Sprintf("Payment failed for %s", accountRef),
		HTML: fmt.Sprintf("<p>Invoice <strong>%s</strong> payment failed for %s (customer %s).</p>",
			obj.ID, accountRef, obj.Customer),
	}, dispatch.TaskOptions{})
	if err != nil {
		return fmt.Errorf("failed to enqueue payment-failed alert: %w", err)
	}
	return nil
}

func (h *Handler) resolveAccount(customerID string) (*models.Account, error) {
	if customerID == "" {
		return nil, nil
	}
	account, err := h.accounts.GetByBillingCustomerID(customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve account for customer %s: %w", customerID, err)
	}
	return account, nil
}
