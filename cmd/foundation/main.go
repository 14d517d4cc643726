package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fndlabs/foundation/app/repository"
	"github.com/fndlabs/foundation/internal/pkg/cache"
	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/database"
	"github.com/fndlabs/foundation/internal/pkg/dispatch"
	"github.com/fndlabs/foundation/internal/pkg/env"
	"github.com/fndlabs/foundation/internal/pkg/ledger"
	"github.com/fndlabs/foundation/internal/pkg/payments"
	"github.com/fndlabs/foundation/internal/pkg/provisioning"
	"github.com/fndlabs/foundation/internal/pkg/qstash"
	"github.com/fndlabs/foundation/internal/pkg/reconcile"
	"github.com/fndlabs/foundation/internal/pkg/router"
	"github.com/fndlabs/foundation/internal/pkg/s3archive"
	"github.com/fndlabs/foundation/internal/pkg/supabase"
	"github.com/fndlabs/foundation/internal/pkg/workers"
)

func main() {
	env.SetupEnvFile()
	cfg := config.Load()

	app := NewApplication(cfg)
	err := app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort))
	log.Fatal(err)
}

func NewApplication(cfg *config.Config) *fiber.App {
	database.SetupDatabase(cfg.Database)
	repos := repository.NewFactory(database.GetDB()).GetRepositories()

	mux := workers.NewMux()

	// Events and tasks go through the queue service when a token is
	// configured; otherwise a Redis-backed local queue delivers them to the
	// same handler in-process.
	var publisher dispatch.EventPublisher
	var taskQueue dispatch.TaskQueue
	if cfg.QStash.Token != "" {
		d := dispatch.NewQStashDispatcher(cfg.QStash)
		publisher = d
		taskQueue = d
	} else {
		cache.SetupCache()
		local := dispatch.NewLocalQueue(cache.GetClient(), mux.Handle, 3)
		local.Start()
		publisher = local
		taskQueue = local
	}

	archiver, err := s3archive.New(cfg.S3Archive)
	if err != nil {
		log.Printf("Payload archive disabled: %v", err)
	}

	ledgerSvc := ledger.NewService(repos.WebhookEvent)
	provisioner := provisioning.NewService(repos.User, repos.Tenant, publisher, cfg)
	paymentsHandler := payments.NewHandler(repos.Account, taskQueue, cfg)

	authClient := supabase.NewClient(cfg.Supabase)
	reconciler := reconcile.NewWorker(authClient, repos.User, provisioner, cfg.Reconcile.Interval, cfg.Reconcile.BatchSize)
	reconciler.Start()

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20, // webhook payloads are small
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.Deps{
		Cfg:         cfg,
		Repos:       repos,
		Ledger:      ledgerSvc,
		Provisioner: provisioner,
		Payments:    paymentsHandler,
		WorkerReceiver: &qstash.Receiver{
			CurrentSigningKey: cfg.QStash.CurrentSigningKey,
			NextSigningKey:    cfg.QStash.NextSigningKey,
		},
		WorkerHandler: mux.Handle,
		Archiver:      archiver,
	})

	return app
}
