package realtime_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/realtime"
	"github.com/rpggio/agenthub/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// countingSource fails the first failures calls, then delegates to the hub.
type countingSource struct {
	hub      *realtime.Hub
	failures int32
	calls    atomic.Int32
}

func (s *countingSource) Subscribe(ctx context.Context, userID string) (<-chan realtime.Event, error) {
	n := s.calls.Add(1)
	if n <= s.failures {
		return nil, errors.New("connection refused")
	}
	return s.hub.Subscribe(ctx, userID)
}

// gatedSource holds every Subscribe until gate is closed.
type gatedSource struct {
	hub  *realtime.Hub
	gate chan struct{}
}

func (s *gatedSource) Subscribe(ctx context.Context, userID string) (<-chan realtime.Event, error) {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.hub.Subscribe(ctx, userID)
}

type recordingObserver struct {
	mu           sync.Mutex
	results      []activity.MergeResult
	resubscribed int
}

func (o *recordingObserver) EventApplied(_ string, r activity.MergeResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

func (o *recordingObserver) Resubscribed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resubscribed++
}

func (o *recordingObserver) resubscriptions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resubscribed
}

func TestReconciler_InsertIgnoredForKnownID(t *testing.T) {
	store := activity.NewStore()
	id, err := store.Add(activity.Activity{AgentID: "calendar", Content: "local"})
	require.NoError(t, err)
	local, _ := store.Get(id)

	r := realtime.NewReconciler("alice", store, realtime.ReconcilerConfig{})
	row := local.ToRow("alice")
	row.Content = "remote"

	require.Equal(t, activity.MergeStale, r.Apply(realtime.Event{Type: realtime.EventInsert, Row: row}))
	require.Equal(t, 1, store.Len())
	got, _ := store.Get(id)
	require.Equal(t, "local", got.Content)
}

func TestReconciler_InsertFromWorkflow(t *testing.T) {
	store := activity.NewStore()
	r := realtime.NewReconciler("alice", store, realtime.ReconcilerConfig{})

	require.Equal(t, activity.MergeInserted, r.Apply(realtime.Event{Type: realtime.EventInsert, Row: rowFor("alice", "w1", t0)}))
	got, ok := store.Get("w1")
	require.True(t, ok)
	require.Equal(t, "calendar", got.AgentID)
}

func TestReconciler_UpdateOrdering(t *testing.T) {
	store := activity.NewStore()
	r := realtime.NewReconciler("alice", store, realtime.ReconcilerConfig{})

	newer := rowFor("alice", "a1", t0.Add(2*time.Second))
	newer.Status = activity.Ptr(string(activity.StatusCompleted))
	older := rowFor("alice", "a1", t0.Add(time.Second))
	older.Status = activity.Ptr(string(activity.StatusInProgress))
	older.Content = "older"

	require.Equal(t, activity.MergeInserted, r.Apply(realtime.Event{Type: realtime.EventUpdate, Row: newer}))
	require.Equal(t, activity.MergeStale, r.Apply(realtime.Event{Type: realtime.EventUpdate, Row: older}))

	got, _ := store.Get("a1")
	require.Equal(t, activity.StatusCompleted, got.Status)
	require.Equal(t, "content a1", got.Content)
}

func TestReconciler_IgnoresOtherUsers(t *testing.T) {
	store := activity.NewStore()
	r := realtime.NewReconciler("alice", store, realtime.ReconcilerConfig{})
	require.Equal(t, activity.MergeInvalid, r.Apply(realtime.Event{Type: realtime.EventInsert, Row: rowFor("bob", "b1", t0)}))
	require.Equal(t, 0, store.Len())
}

func TestReconciler_StartIsIdempotent(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	defer hub.Close()
	src := &countingSource{hub: hub}
	store := activity.NewStore()
	r := realtime.NewReconciler("alice", store, realtime.ReconcilerConfig{Source: src, RetryDelay: 10 * time.Millisecond})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Start(context.Background())
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), src.calls.Load())
	require.True(t, r.Running())

	require.NoError(t, hub.Publish(context.Background(), realtime.Event{Type: realtime.EventInsert, Row: rowFor("alice", "a1", t0)}))
	require.Eventually(t, func() bool { return store.Has("a1") }, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
	require.False(t, r.Running())
	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 0 }, time.Second, 5*time.Millisecond)
}

func TestReconciler_RetriesFailedSubscribe(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	defer hub.Close()
	src := &countingSource{hub: hub, failures: 2}
	r := realtime.NewReconciler("alice", activity.NewStore(), realtime.ReconcilerConfig{Source: src, RetryDelay: 5 * time.Millisecond})

	r.Start(context.Background())
	defer r.Stop()

	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(3), src.calls.Load())
}

func TestReconciler_BackfillsAfterResubscribe(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	defer hub.Close()
	repo := &mocks.ActivityRepository{}
	missed := activity.FromRow(rowFor("alice", "missed", t0))
	firstList := make(chan struct{})
	repo.On("List", mock.Anything, "alice", activity.ListOptions{IncludeDismissed: true}).
		Run(func(mock.Arguments) { close(firstList) }).
		Return([]activity.Activity{}, nil).Once()
	repo.On("List", mock.Anything, "alice", activity.ListOptions{IncludeDismissed: true}).
		Return([]activity.Activity{missed}, nil)

	obs := &recordingObserver{}
	store := activity.NewStore()
	r := realtime.NewReconciler("alice", store, realtime.ReconcilerConfig{
		Source:     hub,
		Backfill:   repo,
		RetryDelay: 5 * time.Millisecond,
		Observer:   obs,
	})
	r.Start(context.Background())
	defer r.Stop()

	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-firstList:
	case <-time.After(time.Second):
		t.Fatal("no backfill after the first subscription")
	}
	require.False(t, store.Has("missed"))

	hub.Disconnect("alice")

	require.Eventually(t, func() bool { return store.Has("missed") }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, obs.resubscriptions())
	require.Eventually(t, func() bool { return hub.Subscribers("alice") == 1 }, time.Second, 5*time.Millisecond)
}

func TestReconciler_BackfillsOnFirstSubscription(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	defer hub.Close()
	src := &gatedSource{hub: hub, gate: make(chan struct{})}

	early := activity.FromRow(rowFor("alice", "early", t0))
	repo := &mocks.ActivityRepository{}
	repo.On("List", mock.Anything, "alice", activity.ListOptions{IncludeDismissed: true}).
		Return([]activity.Activity{early}, nil)

	obs := &recordingObserver{}
	store := activity.NewStore()
	r := realtime.NewReconciler("alice", store, realtime.ReconcilerConfig{
		Source:     src,
		Backfill:   repo,
		RetryDelay: 5 * time.Millisecond,
		Observer:   obs,
	})
	r.Start(context.Background())
	defer r.Stop()

	// Published before any subscription exists, so only the backfill can recover it.
	require.NoError(t, hub.Publish(context.Background(), realtime.Event{Type: realtime.EventInsert, Row: rowFor("alice", "early", t0)}))
	require.False(t, store.Has("early"))

	close(src.gate)
	require.Eventually(t, func() bool { return store.Has("early") }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, obs.resubscriptions())
}
