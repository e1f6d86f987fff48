package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/agenthub/internal/repository"
)

// Service handles server-side activity operations that bypass any session
// store, such as results written back by the workflow engine.
type Service struct {
	repo          Repository
	lockCompleted bool
	logger        *slog.Logger
}

// NewService creates a new activity service.
func NewService(repo Repository, lockCompleted bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, lockCompleted: lockCompleted, logger: logger}
}

// Post stores an activity generated outside the dashboard, e.g. an agent response.
func (s *Service) Post(ctx context.Context, userID string, d Draft) (*Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrAuthRequired
	}
	if err := ValidateDraft(d); err != nil {
		return nil, err
	}

	a := newActivity(d)
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Timestamp = time.Now().UTC().Truncate(time.Microsecond)
	a.LastUpdateTime = a.Timestamp

	if err := s.repo.Create(ctx, userID, &a); err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}
	s.logger.Info("activity posted", "user_id", userID, "activity_id", a.ID, "agent_id", a.AgentID)
	return &a, nil
}

// Update applies a partial update to a persisted activity.
func (s *Service) Update(ctx context.Context, userID, id string, patch Patch) (*Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrAuthRequired
	}
	if id == "" {
		return nil, ErrInvalidInput
	}
	if err := ValidatePatch(patch); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("loading activity: %w", err)
	}
	if err := ValidateTransition(current.Status, patch.Status, s.lockCompleted); err != nil {
		return nil, err
	}

	updatedAt := time.Now().UTC().Truncate(time.Microsecond)
	if !updatedAt.After(current.LastUpdateTime) {
		updatedAt = current.LastUpdateTime.Add(time.Microsecond)
	}
	if err := s.repo.Update(ctx, userID, id, patch, updatedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrActivityNotFound
		}
		return nil, fmt.Errorf("updating activity: %w", err)
	}

	updated := patch.Apply(*current)
	updated.LastUpdateTime = updatedAt
	return &updated, nil
}

// List returns the user's persisted activities, newest first.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrAuthRequired
	}
	return s.repo.List(ctx, userID, opts)
}
