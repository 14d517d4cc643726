package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/dispatch"
	"github.com/fndlabs/foundation/internal/pkg/qstash"
)

// WorkerController receives push deliveries from the queue service. Every
// delivery is signed with the rotating signing keys; an unverifiable request
// is answered 401 and never reaches a handler.
type WorkerController struct {
	cfg      *config.Config
	receiver *qstash.Receiver
	handler  dispatch.TaskHandler
}

// NewWorkerController wires the queue delivery endpoint.
func NewWorkerController(cfg *config.Config, receiver *qstash.Receiver, handler dispatch.TaskHandler) *WorkerController {
	if cfg.QStash.WorkerBaseURL == "" && (cfg.QStash.CurrentSigningKey != "" || cfg.QStash.NextSigningKey != "") {
		log.Warn("[Workers] WORKER_BASE_URL is not set; deliveries are verified without the destination URL check")
	}
	return &WorkerController{
		cfg:      cfg,
		receiver: receiver,
		handler:  handler,
	}
}

// HandleTask processes POST /workers/:task. Non-2xx answers trigger the queue
// service's own redelivery with the retry budget set at enqueue time.
func (ct *WorkerController) HandleTask(c *fiber.Ctx) error {
	taskName := strings.TrimSpace(c.Params("task"))
	if taskName == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Unknown task"})
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Upstash-Signature")
	destination := ct.deliveryURL(taskName)
	if err := ct.receiver.Verify(rawBody, signature, destination); err != nil {
		log.Warnf("[Workers] Rejected delivery for %s: %v", taskName, err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Invalid signature"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 30*time.Second)
	defer cancel()

	if err := ct.handler(ctx, taskName, rawBody); err != nil {
		log.Errorf("[Workers] Task %s failed: %v", taskName, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (ct *WorkerController) deliveryURL(taskName string) string {
	base := strings.TrimRight(ct.cfg.QStash.WorkerBaseURL, "/")
	if base == "" {
		// No configured base URL: skip the subject check, signature and
		// body hash still apply.
		return ""
	}
	return base + "/" + taskName
}
