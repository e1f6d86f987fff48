package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/repository"
)

// ActivityRepository implements activity.Repository for SQLite
type ActivityRepository struct {
	db *DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `
	id, user_id, type, agent, agent_id, content, detailed_content,
	timestamp, updated_at, status, priority, dismissed, read,
	suggestion_chips, attachments`

// Create inserts a new activity row
func (r *ActivityRepository) Create(ctx context.Context, userID string, a *activity.Activity) error {
	if userID == "" {
		return repository.ErrInvalidInput
	}
	row := a.ToRow(userID)

	chips, err := encodeJSON(row.SuggestionChips)
	if err != nil {
		return err
	}
	attachments, err := encodeJSON(row.Attachments)
	if err != nil {
		return err
	}

	query := `INSERT INTO activities (` + activityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		row.ID,
		row.UserID,
		row.Type,
		row.Agent,
		row.AgentID,
		row.Content,
		row.DetailedContent,
		row.Timestamp,
		row.UpdatedAt,
		row.Status,
		row.Priority,
		row.Dismissed,
		row.Read,
		chips,
		attachments,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
		}
		return fmt.Errorf("failed to create activity: %w", err)
	}

	return nil
}

// Get retrieves an activity by ID
func (r *ActivityRepository) Get(ctx context.Context, userID, id string) (*activity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE id = ? AND user_id = ?`

	row, err := scanRow(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	a := activity.FromRow(row)
	return &a, nil
}

// Update applies the non-nil patch fields and stamps updated_at in the same statement
func (r *ActivityRepository) Update(ctx context.Context, userID, id string, patch activity.Patch, updatedAt time.Time) error {
	sets := []string{}
	args := []any{}

	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}
	if patch.DetailedContent != nil {
		sets = append(sets, "detailed_content = ?")
		args = append(args, nullable(*patch.DetailedContent))
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, nullable(string(*patch.Status)))
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, nullable(string(*patch.Priority)))
	}
	if patch.Dismissed != nil {
		sets = append(sets, "dismissed = ?")
		args = append(args, *patch.Dismissed)
	}
	if patch.Read != nil {
		sets = append(sets, "read = ?")
		args = append(args, *patch.Read)
	}
	if patch.SuggestionChips != nil {
		chips, err := encodeJSON(*patch.SuggestionChips)
		if err != nil {
			return err
		}
		sets = append(sets, "suggestion_chips = ?")
		args = append(args, chips)
	}
	if patch.Attachments != nil {
		attachments, err := encodeJSON(*patch.Attachments)
		if err != nil {
			return err
		}
		sets = append(sets, "attachments = ?")
		args = append(args, attachments)
	}
	if len(sets) == 0 {
		return repository.ErrInvalidInput
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, updatedAt.UTC(), id, userID)

	query := `UPDATE activities SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
		}
		return fmt.Errorf("failed to update activity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns the user's activities, newest first
func (r *ActivityRepository) List(ctx context.Context, userID string, opts activity.ListOptions) ([]activity.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = ?`
	args := []any{userID}

	if !opts.IncludeDismissed {
		query += " AND dismissed = 0"
	}
	if opts.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, opts.AgentID)
	}
	if opts.Type != nil {
		query += " AND type = ?"
		args = append(args, string(*opts.Type))
	}

	query += " ORDER BY timestamp DESC, id"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	list := []activity.Activity{}
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		list = append(list, activity.FromRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity rows: %w", err)
	}

	return list, nil
}

// DismissAll flags every visible activity dismissed and returns the affected ids
func (r *ActivityRepository) DismissAll(ctx context.Context, userID string, at time.Time) ([]string, error) {
	return r.bulkUpdate(ctx, userID, at, "dismissed")
}

// MarkAllRead flags every unread activity read and returns the affected ids
func (r *ActivityRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) ([]string, error) {
	return r.bulkUpdate(ctx, userID, at, "read")
}

// bulkUpdate sets a boolean flag column on all rows where it is still false.
func (r *ActivityRepository) bulkUpdate(ctx context.Context, userID string, at time.Time, column string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM activities WHERE user_id = ? AND `+column+` = 0 ORDER BY timestamp DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select activities: %w", err)
	}
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan activity id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity ids: %w", err)
	}

	if len(ids) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE activities SET `+column+` = 1, updated_at = ? WHERE user_id = ? AND `+column+` = 0`,
			at.UTC(), userID); err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", column, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(s rowScanner) (activity.Row, error) {
	var row activity.Row
	var detailed, status, priority, chips, attachments sql.NullString
	if err := s.Scan(
		&row.ID,
		&row.UserID,
		&row.Type,
		&row.Agent,
		&row.AgentID,
		&row.Content,
		&detailed,
		&row.Timestamp,
		&row.UpdatedAt,
		&status,
		&priority,
		&row.Dismissed,
		&row.Read,
		&chips,
		&attachments,
	); err != nil {
		return activity.Row{}, err
	}

	row.Timestamp = row.Timestamp.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()
	if detailed.Valid {
		row.DetailedContent = &detailed.String
	}
	if status.Valid {
		row.Status = &status.String
	}
	if priority.Valid {
		row.Priority = &priority.String
	}
	if chips.Valid && chips.String != "" {
		if err := json.Unmarshal([]byte(chips.String), &row.SuggestionChips); err != nil {
			return activity.Row{}, fmt.Errorf("decoding suggestion_chips: %w", err)
		}
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &row.Attachments); err != nil {
			return activity.Row{}, fmt.Errorf("decoding attachments: %w", err)
		}
	}
	return row, nil
}

// encodeJSON returns NULL for nil slices and the JSON text otherwise.
func encodeJSON[T any](v []T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json column: %w", err)
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
