package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	taskKeyPrefix     = "dispatch:"
	taskQueueKey      = "dispatch_queue"
	taskProcessingKey = "dispatch_processing"

	taskTTL = 24 * time.Hour // Stored tasks expire after 24 hours
)

// TaskHandler executes a dequeued task in-process. It is the same handler
// the worker HTTP endpoints use, so local and queued delivery share one code
// path.
type TaskHandler func(ctx context.Context, taskName string, payload []byte) error

type localTask struct {
	ID         string          `json:"id"`
	Task       string          `json:"task"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  time.Time       `json:"created_at"`
}

// LocalQueue is the dev-mode dispatcher used when no queue-service token is
// configured. It stores tasks in a Redis list and delivers them to the
// in-process handler with the same retry budget the queue service would get.
type LocalQueue struct {
	client  *redis.Client
	handler TaskHandler
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewLocalQueue creates a local dispatcher with the given worker count.
func NewLocalQueue(client *redis.Client, handler TaskHandler, workers int) *LocalQueue {
	if workers <= 0 {
		workers = 3
	}
	return &LocalQueue{
		client:  client,
		handler: handler,
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the delivery workers.
func (q *LocalQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})

	log.Infof("[LocalQueue] Starting %d workers", q.workers)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops the delivery workers.
func (q *LocalQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[LocalQueue] All workers stopped")
}

func (q *LocalQueue) worker(id int) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[LocalQueue] Worker %d stopping", id)
			return
		default:
			task, err := q.dequeue(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[LocalQueue] Worker %d: dequeue error: %v", id, err)
					time.Sleep(time.Second)
				}
				continue
			}
			if task != nil {
				q.process(ctx, task)
			}
		}
	}
}

func (q *LocalQueue) dequeue(ctx context.Context) (*localTask, error) {
	id, err := q.client.BRPopLPush(ctx, taskQueueKey, taskProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	data, err := q.client.Get(ctx, taskKeyPrefix+id).Result()
	if err != nil {
		q.client.LRem(ctx, taskProcessingKey, 1, id)
		return nil, fmt.Errorf("task data not found for ID %s", id)
	}

	var task localTask
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		q.client.LRem(ctx, taskProcessingKey, 1, id)
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

func (q *LocalQueue) process(ctx context.Context, task *localTask) {
	err := q.handler(ctx, task.Task, task.Payload)
	q.client.LRem(ctx, taskProcessingKey, 1, task.ID)

	if err == nil {
		q.client.Del(ctx, taskKeyPrefix+task.ID)
		return
	}

	log.Errorf("[LocalQueue] Task %s (%s) failed: %v", task.ID, task.Task, err)
	task.RetryCount++
	if task.RetryCount > task.MaxRetries {
		log.Errorf("[LocalQueue] Task %s permanently failed after %d retries", task.ID, task.MaxRetries)
		q.client.Del(ctx, taskKeyPrefix+task.ID)
		return
	}

	q.store(ctx, task)
	// Linear backoff, same shape the queue service applies.
	time.AfterFunc(time.Minute*time.Duration(task.RetryCount), func() {
		q.client.LPush(context.Background(), taskQueueKey, task.ID)
	})
}

func (q *LocalQueue) store(ctx context.Context, task *localTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL).Err()
}

func (q *LocalQueue) submit(ctx context.Context, taskName string, payload []byte, delay time.Duration, retries int) (string, error) {
	if retries <= 0 {
		retries = 3
	}
	task := &localTask{
		ID:         uuid.New().String(),
		Task:       taskName,
		Payload:    payload,
		MaxRetries: retries,
		CreatedAt:  time.Now(),
	}
	if err := q.store(ctx, task); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	push := func() {
		if err := q.client.LPush(context.Background(), taskQueueKey, task.ID).Err(); err != nil {
			log.Errorf("[LocalQueue] Failed to enqueue task %s: %v", task.ID, err)
		}
	}
	if delay > 0 {
		time.AfterFunc(delay, push)
	} else if err := q.client.LPush(ctx, taskQueueKey, task.ID).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return task.ID, nil
}

// Publish implements EventPublisher.
func (q *LocalQueue) Publish(ctx context.Context, event Event) error {
	envelope, err := WrapEvent(event)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	_, err = q.submit(ctx, "events", body, 0, 0)
	return err
}

// PublishBatch implements EventPublisher. Submissions are sequential; the
// first failure aborts, matching the all-or-nothing batch contract.
func (q *LocalQueue) PublishBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		if err := q.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Enqueue implements TaskQueue.
func (q *LocalQueue) Enqueue(ctx context.Context, taskName string, payload interface{}, opts TaskOptions) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return q.submit(ctx, taskName, body, 0, opts.Retries)
}

// EnqueueWithDelay implements TaskQueue.
func (q *LocalQueue) EnqueueWithDelay(ctx context.Context, taskName string, payload interface{}, delaySeconds int) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return q.submit(ctx, taskName, body, time.Duration(delaySeconds)*time.Second, 0)
}
