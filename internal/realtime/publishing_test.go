package realtime_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/realtime"
	"github.com/rpggio/agenthub/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPublishingRepository_PublishesWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(8, nil)
	defer hub.Close()
	events, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)

	a := activity.FromRow(rowFor("alice", "a1", t0))
	updated := a
	updated.Read = true
	updated.LastUpdateTime = t0.Add(time.Second)

	inner := &mocks.ActivityRepository{}
	inner.On("Create", ctx, "alice", &a).Return(nil)
	inner.On("Update", ctx, "alice", "a1", mock.Anything, updated.LastUpdateTime).Return(nil)
	inner.On("Get", ctx, "alice", "a1").Return(&updated, nil)

	repo := realtime.NewPublishingRepository(inner, hub, nil)
	require.NoError(t, repo.Create(ctx, "alice", &a))
	require.NoError(t, repo.Update(ctx, "alice", "a1", activity.Patch{Read: activity.Ptr(true)}, updated.LastUpdateTime))

	first := <-events
	require.Equal(t, realtime.EventInsert, first.Type)
	require.Equal(t, "a1", first.Row.ID)

	second := <-events
	require.Equal(t, realtime.EventUpdate, second.Type)
	require.True(t, second.Row.Read)
	require.Equal(t, updated.LastUpdateTime, second.Row.UpdatedAt)
}

func TestPublishingRepository_FailedWriteIsNotPublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(8, nil)
	defer hub.Close()
	events, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)

	inner := &mocks.ActivityRepository{}
	inner.On("DismissAll", ctx, "alice", t0).Return(nil, context.DeadlineExceeded)

	repo := realtime.NewPublishingRepository(inner, hub, nil)
	_, err = repo.DismissAll(ctx, "alice", t0)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case e := <-events:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}
