package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

// EventType is the row-level change kind.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

// ErrClosed is returned when subscribing to or publishing on a closed feed.
var ErrClosed = errors.New("realtime feed closed")

// Event is a row-level change notification for one activity.
type Event struct {
	Type EventType    `json:"type"`
	Row  activity.Row `json:"record"`
	At   time.Time    `json:"commit_timestamp"`
}

// Publisher fans change events out to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Source delivers change events for a single user. The returned channel is
// closed when the subscription ends, either because ctx was cancelled or
// because the underlying connection was lost.
type Source interface {
	Subscribe(ctx context.Context, userID string) (<-chan Event, error)
}

// Feed is a change feed that can be both published to and subscribed from.
type Feed interface {
	Publisher
	Source
	Close() error
}

// Observer receives reconciler diagnostics. Nil means no-op.
type Observer interface {
	EventApplied(eventType string, result activity.MergeResult)
	Resubscribed()
}

type nopObserver struct{}

func (nopObserver) EventApplied(string, activity.MergeResult) {}
func (nopObserver) Resubscribed()                             {}
