package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

const defaultRetryDelay = 5 * time.Second

// ReconcilerConfig wires a reconciler's collaborators.
type ReconcilerConfig struct {
	Source Source
	// Backfill is listed after every successful subscription, the first one
	// included, to cover rows written before the feed was attached. Optional.
	Backfill   activity.Repository
	RetryDelay time.Duration
	Observer   Observer
	Logger     *slog.Logger
}

// Reconciler feeds one user's change events into that user's store.
type Reconciler struct {
	userID     string
	store      *activity.Store
	source     Source
	backfill   activity.Repository
	retryDelay time.Duration
	observer   Observer
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReconciler creates a reconciler for userID writing into store.
func NewReconciler(userID string, store *activity.Store, cfg ReconcilerConfig) *Reconciler {
	retry := cfg.RetryDelay
	if retry <= 0 {
		retry = defaultRetryDelay
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		userID:     userID,
		store:      store,
		source:     cfg.Source,
		backfill:   cfg.Backfill,
		retryDelay: retry,
		observer:   observer,
		logger:     logger.With("component", "reconciler", "user_id", userID),
	}
}

// Start launches the subscription loop. Calling it while already running is a no-op.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	go func() {
		defer close(done)
		r.run(ctx)
	}()
}

// Stop cancels the loop and waits for it to exit. It is safe to call repeatedly.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (r *Reconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Reconciler) run(ctx context.Context) {
	subscribed := false
	for {
		events, err := r.source.Subscribe(ctx, r.userID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("realtime subscription failed", "error", err, "retry_in", r.retryDelay)
			if !r.sleep(ctx) {
				return
			}
			continue
		}

		if subscribed {
			r.observer.Resubscribed()
		}
		subscribed = true
		r.logger.Debug("realtime subscription established")
		r.catchUp(ctx)

		for e := range events {
			r.Apply(e)
		}
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("realtime subscription closed", "retry_in", r.retryDelay)
		if !r.sleep(ctx) {
			return
		}
	}
}

// Apply merges one change event into the store. INSERTs for known ids are
// ignored; UPDATEs go through the store's timestamp guard.
func (r *Reconciler) Apply(e Event) activity.MergeResult {
	if e.Row.UserID != r.userID || e.Row.ID == "" {
		r.logger.Debug("ignoring foreign change event", "activity_id", e.Row.ID)
		return activity.MergeInvalid
	}

	a := activity.FromRow(e.Row)
	var result activity.MergeResult
	switch e.Type {
	case EventInsert:
		if r.store.Has(a.ID) {
			result = activity.MergeStale
		} else {
			result = r.store.Merge(a)
		}
	case EventUpdate:
		result = r.store.Merge(a)
	default:
		result = activity.MergeInvalid
	}

	if result == activity.MergeStale {
		r.logger.Debug("stale change event dropped", "type", e.Type, "activity_id", a.ID, "update_time", a.LastUpdateTime)
	}
	r.observer.EventApplied(string(e.Type), result)
	return result
}

func (r *Reconciler) catchUp(ctx context.Context) {
	if r.backfill == nil {
		return
	}
	list, err := r.backfill.List(ctx, r.userID, activity.ListOptions{IncludeDismissed: true})
	if err != nil {
		r.logger.Warn("realtime backfill failed", "error", err)
		return
	}
	applied := 0
	for _, a := range list {
		if res := r.store.Merge(a); res == activity.MergeInserted || res == activity.MergeApplied {
			applied++
		}
	}
	r.logger.Info("realtime backfill complete", "rows", len(list), "applied", applied)
}

func (r *Reconciler) sleep(ctx context.Context) bool {
	t := time.NewTimer(r.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
