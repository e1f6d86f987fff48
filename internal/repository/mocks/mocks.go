package mocks

import (
	"context"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/stretchr/testify/mock"
)

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Create(ctx context.Context, userID string, a *activity.Activity) error {
	args := m.Called(ctx, userID, a)
	return args.Error(0)
}

func (m *ActivityRepository) Get(ctx context.Context, userID, id string) (*activity.Activity, error) {
	args := m.Called(ctx, userID, id)
	if a, ok := args.Get(0).(*activity.Activity); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) Update(ctx context.Context, userID, id string, patch activity.Patch, updatedAt time.Time) error {
	args := m.Called(ctx, userID, id, patch, updatedAt)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, userID string, opts activity.ListOptions) ([]activity.Activity, error) {
	args := m.Called(ctx, userID, opts)
	if list, ok := args.Get(0).([]activity.Activity); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) DismissAll(ctx context.Context, userID string, at time.Time) ([]string, error) {
	args := m.Called(ctx, userID, at)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ActivityRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) ([]string, error) {
	args := m.Called(ctx, userID, at)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

// Notifier is a mock for activity.Notifier.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Notify(ctx context.Context, n activity.Notification, sink activity.ResultSink) error {
	args := m.Called(ctx, n, sink)
	return args.Error(0)
}
