// Package syncer drains the local mutation queue against the remote store.
// One flush pass per user runs at a time; retries happen only on the next
// external trigger (app resume, connectivity regained, explicit retry), never
// on an internal timer.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kudi/internal/metrics"
	"kudi/internal/mutation"
	"kudi/internal/queue"
	"kudi/internal/remote"

	"golang.org/x/sync/errgroup"
)

// Config tunes the executor.
type Config struct {
	// MaxAttempts caps automatic retries per record. A record at or past the
	// cap is skipped by FlushQueue and only attempted again through an
	// explicit RetryOne from the inspection surface. Zero disables the cap.
	MaxAttempts int

	// AttemptTimeout bounds each remote call (default: 10s). A timeout is a
	// transient failure, not a permanent one.
	AttemptTimeout time.Duration

	// FlushConcurrency bounds how many users FlushAll drains in parallel
	// (default: 4). Queues of different users share no state.
	FlushConcurrency int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      5,
		AttemptTimeout:   10 * time.Second,
		FlushConcurrency: 4,
	}
}

// ErrFlushInFlight is returned when a flush trigger is coalesced into a pass
// already running for the same user.
var ErrFlushInFlight = errors.New("flush already in flight for user")

type Executor struct {
	queue  *queue.Store
	remote remote.Store
	config Config

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(queueStore *queue.Store, remoteStore remote.Store, config Config) *Executor {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = 10 * time.Second
	}
	if config.FlushConcurrency <= 0 {
		config.FlushConcurrency = 4
	}
	return &Executor{
		queue:    queueStore,
		remote:   remoteStore,
		config:   config,
		inFlight: make(map[string]bool),
	}
}

// TrySyncOne attempts a single record against the remote store. On success
// the record is removed from the queue; on failure its retry metadata is
// written back through the store and the record stays queued. The returned
// error is the attempt's failure reason (nil on success).
func (e *Executor) TrySyncOne(ctx context.Context, rec *mutation.Record) error {
	metrics.SyncAttempts.WithLabelValues(string(rec.Kind)).Inc()

	attemptCtx, cancel := context.WithTimeout(ctx, e.config.AttemptTimeout)
	err := e.remote.Apply(attemptCtx, rec)
	cancel()

	if err != nil {
		metrics.SyncFailures.WithLabelValues(string(rec.Kind)).Inc()
		patch := queue.RetryPatch{
			RetryCount:    rec.RetryCount + 1,
			LastAttemptAt: time.Now().UTC(),
			LastError:     err.Error(),
		}
		if updateErr := e.queue.Update(ctx, rec.UserID, rec.ID, patch); updateErr != nil {
			slog.ErrorContext(ctx, "Failed to record sync failure",
				"mutation_id", rec.ID, "error", updateErr)
		}
		slog.WarnContext(ctx, "Mutation sync failed",
			"mutation_id", rec.ID,
			"user_id", rec.UserID,
			"kind", rec.Kind,
			"attempt", rec.RetryCount+1,
			"error", err)
		return err
	}

	// Removal after confirmed remote success. If the process dies in
	// between, the replay is a remote no-op thanks to keyed idempotency.
	if err := e.queue.Remove(ctx, rec.UserID, rec.ID); err != nil {
		slog.ErrorContext(ctx, "Synced mutation could not be removed from queue",
			"mutation_id", rec.ID, "error", err)
	}

	metrics.SyncSuccesses.WithLabelValues(string(rec.Kind)).Inc()
	slog.InfoContext(ctx, "Mutation synced",
		"mutation_id", rec.ID,
		"user_id", rec.UserID,
		"kind", rec.Kind)
	return nil
}

// FlushQueue drains one user's queue in enqueue order. A transport outage
// stops the pass (everything behind it would fail the same way); any other
// per-record failure is isolated and the pass continues, except that later
// records touching the same entities as a failed one are held back so
// same-entity ordering survives the partial pass.
//
// Safe to call from any number of triggers: a second call while a pass runs
// for the same user coalesces into ErrFlushInFlight.
func (e *Executor) FlushQueue(ctx context.Context, userID string) error {
	e.mu.Lock()
	if e.inFlight[userID] {
		e.mu.Unlock()
		metrics.FlushCoalesced.Inc()
		slog.DebugContext(ctx, "Flush coalesced", "user_id", userID)
		return ErrFlushInFlight
	}
	e.inFlight[userID] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, userID)
		e.mu.Unlock()
	}()

	recs, err := e.queue.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list queue for %s: %w", userID, err)
	}
	if len(recs) == 0 {
		return nil
	}

	slog.DebugContext(ctx, "Flushing mutation queue",
		"user_id", userID, "pending", len(recs))

	attempted, synced := 0, 0
	blocked := make(map[string]bool)
	for i := range recs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec := &recs[i]
		refs := mutation.EntityRefs(rec.Payload)
		if anyBlocked(blocked, refs) {
			// An earlier mutation for the same entity failed this pass;
			// sending this one now would reorder update-after-create.
			block(blocked, refs)
			slog.DebugContext(ctx, "Mutation held behind failed predecessor",
				"mutation_id", rec.ID, "kind", rec.Kind)
			continue
		}
		if e.config.MaxAttempts > 0 && rec.RetryCount >= e.config.MaxAttempts {
			block(blocked, refs)
			slog.WarnContext(ctx, "Mutation past retry cap, awaiting manual retry",
				"mutation_id", rec.ID,
				"user_id", userID,
				"kind", rec.Kind,
				"retry_count", rec.RetryCount,
				"last_error", rec.LastError)
			continue
		}

		attempted++
		err := e.TrySyncOne(ctx, rec)
		if err == nil {
			synced++
			continue
		}
		if remote.Unavailable(err) {
			slog.InfoContext(ctx, "Remote unavailable, stopping flush pass",
				"user_id", userID,
				"synced", synced,
				"remaining", len(recs)-i)
			break
		}
		// Remote-side rejection: isolated from unrelated mutations, but
		// anything touching the same entities waits behind it.
		block(blocked, refs)
	}

	e.updateDepthGauge(ctx)
	metrics.FlushPasses.Inc()

	slog.InfoContext(ctx, "Flush pass complete",
		"user_id", userID,
		"attempted", attempted,
		"synced", synced)
	return nil
}

// RetryOne attempts a single queued mutation by id, bypassing the automatic
// retry cap. Used by the inspection surface's "retry one" action. A missing
// id means the record already synced; that is reported as success.
func (e *Executor) RetryOne(ctx context.Context, userID, id string) error {
	rec, err := e.queue.Get(ctx, userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load mutation %s: %w", id, err)
	}
	err = e.TrySyncOne(ctx, rec)
	e.updateDepthGauge(ctx)
	return err
}

// FlushAll flushes every user with pending mutations. Queues are fully
// independent so users are drained in parallel, bounded by FlushConcurrency.
func (e *Executor) FlushAll(ctx context.Context) error {
	users, err := e.queue.UsersWithPending(ctx)
	if err != nil {
		return fmt.Errorf("users with pending: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.FlushConcurrency)
	for _, userID := range users {
		g.Go(func() error {
			if err := e.FlushQueue(gctx, userID); err != nil && !errors.Is(err, ErrFlushInFlight) {
				slog.ErrorContext(gctx, "Flush failed", "user_id", userID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// InFlight reports whether a flush pass is currently running for the user.
func (e *Executor) InFlight(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[userID]
}

func anyBlocked(blocked map[string]bool, refs []string) bool {
	for _, ref := range refs {
		if ref != "" && blocked[ref] {
			return true
		}
	}
	return false
}

func block(blocked map[string]bool, refs []string) {
	for _, ref := range refs {
		if ref != "" {
			blocked[ref] = true
		}
	}
}

// The gauge is a single aggregate: a per-user label would grow the registry
// without bound and leave stale series behind drained users.
func (e *Executor) updateDepthGauge(ctx context.Context) {
	depth, err := e.queue.TotalDepth(ctx)
	if err != nil {
		return
	}
	metrics.QueueDepth.Set(float64(depth))
}
