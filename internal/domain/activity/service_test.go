package activity_test

import (
	"context"
	"testing"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/repository"
	"github.com/rpggio/agenthub/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_PostAndList(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}

	repo.On("Create", ctx, "user1", mock.AnythingOfType("*activity.Activity")).Return(nil)
	repo.On("List", ctx, "user1", activity.ListOptions{AgentID: "calendar"}).Return([]activity.Activity{}, nil)

	svc := activity.NewService(repo, true, nil)
	posted, err := svc.Post(ctx, "user1", activity.Draft{
		Type:    activity.TypeUpdate,
		Agent:   "Calendar Assistant",
		AgentID: "calendar",
		Content: "Meeting booked",
	})
	require.NoError(t, err)
	require.NotEmpty(t, posted.ID)
	require.Equal(t, posted.Timestamp, posted.LastUpdateTime)

	_, err = svc.List(ctx, "user1", activity.ListOptions{AgentID: "calendar"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestActivityService_RequiresUser(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, true, nil)
	_, err := svc.Post(context.Background(), "", activity.Draft{AgentID: "calendar", Content: "x"})
	require.ErrorIs(t, err, activity.ErrAuthRequired)
}

func TestActivityService_UpdateNotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	repo.On("Get", ctx, "user1", "missing").Return(nil, repository.ErrNotFound)

	svc := activity.NewService(repo, true, nil)
	_, err := svc.Update(ctx, "user1", "missing", activity.Patch{Read: activity.Ptr(true)})
	require.ErrorIs(t, err, activity.ErrActivityNotFound)
}

func TestActivityService_UpdateRejectsReopeningCompleted(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	repo.On("Get", ctx, "user1", "a1").Return(&activity.Activity{ID: "a1", Status: activity.StatusCompleted}, nil)

	svc := activity.NewService(repo, true, nil)
	_, err := svc.Update(ctx, "user1", "a1", activity.Patch{Status: activity.Ptr(activity.StatusInProgress)})
	require.ErrorIs(t, err, activity.ErrTerminalStatus)
}

func TestActivityService_UpdateAdvancesTimestamp(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ActivityRepository{}
	current := &activity.Activity{ID: "a1", Status: activity.StatusPending, Timestamp: base, LastUpdateTime: base}
	repo.On("Get", ctx, "user1", "a1").Return(current, nil)
	repo.On("Update", ctx, "user1", "a1", mock.Anything, mock.Anything).Return(nil)

	svc := activity.NewService(repo, true, nil)
	updated, err := svc.Update(ctx, "user1", "a1", activity.Patch{
		Status:          activity.Ptr(activity.StatusCompleted),
		DetailedContent: activity.Ptr("done"),
	})
	require.NoError(t, err)
	require.Equal(t, activity.StatusCompleted, updated.Status)
	require.True(t, updated.LastUpdateTime.After(base))
}
