package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
)

// PublishingRepository wraps a repository and publishes a change event for
// every successful write, acting as the storage layer's row-level change feed.
// Publish failures are logged; the write itself has already succeeded.
type PublishingRepository struct {
	activity.Repository
	pub    Publisher
	logger *slog.Logger
}

// NewPublishingRepository decorates repo.
func NewPublishingRepository(repo activity.Repository, pub Publisher, logger *slog.Logger) *PublishingRepository {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PublishingRepository{Repository: repo, pub: pub, logger: logger}
}

func (r *PublishingRepository) Create(ctx context.Context, userID string, a *activity.Activity) error {
	if err := r.Repository.Create(ctx, userID, a); err != nil {
		return err
	}
	r.publish(ctx, EventInsert, a.ToRow(userID))
	return nil
}

func (r *PublishingRepository) Update(ctx context.Context, userID, id string, patch activity.Patch, updatedAt time.Time) error {
	if err := r.Repository.Update(ctx, userID, id, patch, updatedAt); err != nil {
		return err
	}
	r.publishCurrent(ctx, userID, id)
	return nil
}

func (r *PublishingRepository) DismissAll(ctx context.Context, userID string, at time.Time) ([]string, error) {
	ids, err := r.Repository.DismissAll(ctx, userID, at)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		r.publishCurrent(ctx, userID, id)
	}
	return ids, nil
}

func (r *PublishingRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) ([]string, error) {
	ids, err := r.Repository.MarkAllRead(ctx, userID, at)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		r.publishCurrent(ctx, userID, id)
	}
	return ids, nil
}

func (r *PublishingRepository) publishCurrent(ctx context.Context, userID, id string) {
	a, err := r.Repository.Get(ctx, userID, id)
	if err != nil {
		r.logger.Warn("reloading activity for change event failed", "user_id", userID, "activity_id", id, "error", err)
		return
	}
	r.publish(ctx, EventUpdate, a.ToRow(userID))
}

func (r *PublishingRepository) publish(ctx context.Context, t EventType, row activity.Row) {
	e := Event{Type: t, Row: row, At: time.Now().UTC()}
	if err := r.pub.Publish(ctx, e); err != nil {
		r.logger.Warn("publishing change event failed", "type", t, "user_id", row.UserID, "activity_id", row.ID, "error", err)
	}
}
