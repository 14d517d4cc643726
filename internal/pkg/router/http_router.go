package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/fndlabs/foundation/app/controllers"
	"github.com/fndlabs/foundation/app/repository"
	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/dispatch"
	"github.com/fndlabs/foundation/internal/pkg/ledger"
	"github.com/fndlabs/foundation/internal/pkg/middleware"
	"github.com/fndlabs/foundation/internal/pkg/qstash"
	"github.com/fndlabs/foundation/internal/pkg/s3archive"
)

// Deps carries the constructed components the routes hang off.
type Deps struct {
	Cfg            *config.Config
	Repos          *repository.Repositories
	Ledger         *ledger.Service
	Provisioner    controllers.TenantProvisioner
	Payments       controllers.PaymentEventHandler
	WorkerReceiver *qstash.Receiver
	WorkerHandler  dispatch.TaskHandler
	Archiver       *s3archive.Archiver
}

type HttpRouter struct {
	deps Deps
}

func NewHttpRouter(deps Deps) *HttpRouter {
	return &HttpRouter{deps: deps}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	d := h.deps

	app.Get("/health", controllers.HandleHealth)

	// Provider webhooks. Rate limited per source; providers retry on 429
	// like on any other non-2xx.
	webhooks := app.Group("/webhooks", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))
	supabaseCt := controllers.NewSupabaseWebhookController(d.Cfg, d.Ledger, d.Provisioner, d.Archiver)
	webhooks.Post("/supabase/auth", supabaseCt.HandleAuthWebhook)
	stripeCt := controllers.NewStripeWebhookController(d.Cfg, d.Ledger, d.Payments, d.Archiver)
	webhooks.Post("/stripe", stripeCt.HandleWebhook)

	// Queue push deliveries, signature-guarded inside the controller.
	workerCt := controllers.NewWorkerController(d.Cfg, d.WorkerReceiver, d.WorkerHandler)
	app.Post("/workers/:task", workerCt.HandleTask)

	app.Get("/me", middleware.RequireUser(d.Repos.User, d.Cfg), controllers.HandleMe)
}
