package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fndlabs/foundation/app/repository"
	"github.com/fndlabs/foundation/internal/pkg/provisioning"
	"github.com/fndlabs/foundation/internal/pkg/supabase"
)

const (
	// listPageSize is the page size used against the identity provider's
	// admin listing endpoint.
	listPageSize = 100
	// passTimeout bounds one full reconciliation pass.
	passTimeout = 2 * time.Minute
)

// AuthUserLister is the slice of the identity provider client the worker
// needs. Satisfied by *supabase.Client.
type AuthUserLister interface {
	ListUsers(ctx context.Context, page, perPage int) ([]supabase.AuthUser, error)
}

// Provisioner is the slice of the provisioning service the worker needs.
type Provisioner interface {
	Provision(ctx context.Context, authUserID, email, fullName string) (*provisioning.Result, error)
}

// ItemError records a single identity the pass could not provision.
type ItemError struct {
	AuthUserID string
	Email      string
	Err        error
}

// Summary reports what one reconciliation pass did.
type Summary struct {
	Attempted int
	Created   int
	Failed    []ItemError
}

// Worker periodically sweeps the identity provider's user listing and
// provisions any identity that has no local tenant. It is the safety net
// behind the webhook path: a dropped webhook is repaired on the next pass.
type Worker struct {
	auth        AuthUserLister
	users       repository.UserRepository
	provisioner Provisioner
	interval    time.Duration
	batchSize   int

	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a reconciliation worker. interval and batchSize fall back
// to sane defaults when zero.
func NewWorker(auth AuthUserLister, users repository.UserRepository, provisioner Provisioner, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Worker{
		auth:        auth,
		users:       users,
		provisioner: provisioner,
		interval:    interval,
		batchSize:   batchSize,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the periodic loop. The first pass runs after one full
// interval, not at startup, so deploys don't hammer the provider.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		log.Infof("[Reconcile] Worker started (interval %s, batch size %d)", w.interval, w.batchSize)
		for {
			select {
			case <-ticker.C:
				w.runScheduled()
			case <-w.stopChan:
				log.Info("[Reconcile] Worker stopped")
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for the goroutine to exit. A pass that
// is already underway finishes.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *Worker) runScheduled() {
	// A pass slower than the interval must not stack on itself.
	if !w.running.CompareAndSwap(false, true) {
		log.Warn("[Reconcile] Previous pass still running, skipping tick")
		return
	}
	defer w.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()

	summary, err := w.RunOnce(ctx)
	if err != nil {
		log.Errorf("[Reconcile] Pass failed: %v", err)
		return
	}
	if summary.Attempted > 0 || len(summary.Failed) > 0 {
		log.Infof("[Reconcile] Pass complete: attempted=%d created=%d failed=%d",
			summary.Attempted, summary.Created, len(summary.Failed))
	}
	for _, item := range summary.Failed {
		log.Errorf("[Reconcile] Failed to provision %s (%s): %v", item.AuthUserID, item.Email, item.Err)
	}
}

// RunOnce executes a single reconciliation pass: list every identity at the
// provider, find the ones with no local user, and provision them in small
// concurrent batches. One bad identity never aborts the pass; it is reported
// in the summary and retried next time.
func (w *Worker) RunOnce(ctx context.Context) (*Summary, error) {
	authUsers, err := w.fetchAllAuthUsers(ctx)
	if err != nil {
		return nil, err
	}

	missing, err := w.findMissing(ctx, authUsers)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Attempted: len(missing)}
	if len(missing) == 0 {
		return summary, nil
	}
	log.Infof("[Reconcile] Found %d identities without a local tenant", len(missing))

	var mu sync.Mutex
	for start := 0; start < len(missing); start += w.batchSize {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		end := start + w.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		var wg sync.WaitGroup
		for _, authUser := range missing[start:end] {
			wg.Add(1)
			go func(u supabase.AuthUser) {
				defer wg.Done()
				res, err := w.provisioner.Provision(ctx, u.ID, u.Email, u.FullName())
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed = append(summary.Failed, ItemError{AuthUserID: u.ID, Email: u.Email, Err: err})
					return
				}
				if res.Created {
					summary.Created++
				}
			}(authUser)
		}
		wg.Wait()
	}
	return summary, nil
}

// fetchAllAuthUsers pages through the provider's listing. A page shorter than
// the page size is the last one.
func (w *Worker) fetchAllAuthUsers(ctx context.Context) ([]supabase.AuthUser, error) {
	var all []supabase.AuthUser
	for page := 1; ; page++ {
		users, err := w.auth.ListUsers(ctx, page, listPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, users...)
		if len(users) < listPageSize {
			return all, nil
		}
	}
}

func (w *Worker) findMissing(ctx context.Context, authUsers []supabase.AuthUser) ([]supabase.AuthUser, error) {
	var missing []supabase.AuthUser
	for _, u := range authUsers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if u.ID == "" || u.Email == "" {
			continue
		}
		_, err := w.users.GetByAuthUserID(u.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		missing = append(missing, u)
	}
	return missing, nil
}
