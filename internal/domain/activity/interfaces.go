package activity

import (
	"context"
	"time"
)

// Repository provides durable storage of activities keyed by user.
type Repository interface {
	Create(ctx context.Context, userID string, a *Activity) error
	Get(ctx context.Context, userID, id string) (*Activity, error)
	Update(ctx context.Context, userID, id string, patch Patch, updatedAt time.Time) error
	List(ctx context.Context, userID string, opts ListOptions) ([]Activity, error)
	DismissAll(ctx context.Context, userID string, at time.Time) ([]string, error)
	MarkAllRead(ctx context.Context, userID string, at time.Time) ([]string, error)
}

// Notification is the snapshot forwarded to the workflow engine for a new activity.
type Notification struct {
	Activity         Activity
	User             User
	Command          string
	Source           string
	SuggestedAgentID string
}

// ResultSink receives locally simulated results.
type ResultSink interface {
	Update(ctx context.Context, id string, patch Patch) error
}

// Notifier informs the external workflow engine that an activity needs processing.
type Notifier interface {
	Notify(ctx context.Context, n Notification, sink ResultSink) error
}

// Classifier guesses which agent should handle a free-text command.
type Classifier interface {
	Classify(text string) (agentID string, confidence float64)
}

// Observer receives diagnostic counts from sessions. Nil means no-op.
type Observer interface {
	ActivityCreated(source string)
	PersistFailed(op string)
	NotifyFailed(reason string)
}

type nopObserver struct{}

func (nopObserver) ActivityCreated(string) {}
func (nopObserver) PersistFailed(string)   {}
func (nopObserver) NotifyFailed(string)    {}
