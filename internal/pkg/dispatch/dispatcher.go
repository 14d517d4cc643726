package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fndlabs/foundation/internal/pkg/config"
	"github.com/fndlabs/foundation/internal/pkg/qstash"
)

// ErrSubmission wraps any failure to hand a message to the queue service.
// Delivery-outcome failures never surface here; the queue retries those on
// its own.
var ErrSubmission = errors.New("dispatch submission failed")

// EventPublisher publishes domain events for asynchronous processing.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
}

// TaskQueue enqueues named deferred tasks.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskName string, payload interface{}, opts TaskOptions) (string, error)
	EnqueueWithDelay(ctx context.Context, taskName string, payload interface{}, delaySeconds int) (string, error)
}

// TaskOptions tunes a single task submission.
type TaskOptions struct {
	Retries int
}

// QStashDispatcher implements EventPublisher and TaskQueue on top of the
// push-based queue service. It performs no retries itself; the retry budget
// is passed along with every submission.
type QStashDispatcher struct {
	client        *qstash.Client
	workerBaseURL string
}

// NewQStashDispatcher creates the production dispatcher.
func NewQStashDispatcher(cfg config.QStash) *QStashDispatcher {
	return &QStashDispatcher{
		client:        qstash.NewClient(cfg),
		workerBaseURL: cfg.WorkerBaseURL,
	}
}

func (d *QStashDispatcher) eventsURL() string {
	return d.workerBaseURL + "/events"
}

func (d *QStashDispatcher) taskURL(taskName string) string {
	return d.workerBaseURL + "/" + taskName
}

// Publish submits one event to the events worker endpoint.
func (d *QStashDispatcher) Publish(ctx context.Context, event Event) error {
	envelope, err := WrapEvent(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	msgID, err := d.client.Publish(ctx, d.eventsURL(), body, qstash.PublishOptions{})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	log.Infof("[Dispatch] Published event %s (message %s)", event.EventName(), msgID)
	return nil
}

// PublishBatch submits several events in one call. A failed batch is treated
// like every event in it failing.
func (d *QStashDispatcher) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]qstash.BatchMessage, 0, len(events))
	for _, event := range events {
		envelope, err := WrapEvent(event)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSubmission, err)
		}
		body, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSubmission, err)
		}
		messages = append(messages, qstash.BatchMessage{
			Destination: d.eventsURL(),
			Body:        body,
		})
	}

	if err := d.client.PublishBatch(ctx, messages); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	log.Infof("[Dispatch] Published batch of %d events", len(events))
	return nil
}

// Enqueue submits a named task for immediate delivery.
func (d *QStashDispatcher) Enqueue(ctx context.Context, taskName string, payload interface{}, opts TaskOptions) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	msgID, err := d.client.Publish(ctx, d.taskURL(taskName), body, qstash.PublishOptions{Retries: opts.Retries})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	log.Infof("[Dispatch] Enqueued task %s (message %s)", taskName, msgID)
	return msgID, nil
}

// EnqueueWithDelay submits a named task for delivery after delaySeconds.
func (d *QStashDispatcher) EnqueueWithDelay(ctx context.Context, taskName string, payload interface{}, delaySeconds int) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	msgID, err := d.client.Publish(ctx, d.taskURL(taskName), body, qstash.PublishOptions{DelaySeconds: delaySeconds})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	log.Infof("[Dispatch] Enqueued delayed task %s (+%ds, message %s)", taskName, delaySeconds, msgID)
	return msgID, nil
}
