package sqlite

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/agenthub/internal/domain/activity"
	"github.com/rpggio/agenthub/internal/repository"
)

// ErrInvalidToken is returned when a bearer token matches no API key.
var ErrInvalidToken = errors.New("unauthorized: invalid token")

// APIKeyRepository stores hashed API keys and resolves bearer tokens to users.
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Create issues a new key for the user and returns the plaintext token.
// Only the hash is stored.
func (r *APIKeyRepository) Create(ctx context.Context, user activity.User, description string) (string, error) {
	if strings.TrimSpace(user.ID) == "" {
		return "", repository.ErrInvalidInput
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := "ahk_" + hex.EncodeToString(buf)

	if err := r.Insert(ctx, token, user, description); err != nil {
		return "", err
	}
	return token, nil
}

// Insert stores a caller-chosen token for the user.
func (r *APIKeyRepository) Insert(ctx context.Context, token string, user activity.User, description string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, user_id, email, created_at, description) VALUES (?, ?, ?, ?, ?)`,
		HashToken(token), user.ID, nullable(user.Email), time.Now().UTC(), nullable(description))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// ResolveUser maps a bearer token to its user and records the use.
func (r *APIKeyRepository) ResolveUser(ctx context.Context, token string) (activity.User, error) {
	hash := HashToken(token)
	var user activity.User
	var email sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT user_id, email FROM api_keys WHERE key_hash = ?`, hash).Scan(&user.ID, &email)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && user.ID == "") {
		return activity.User{}, ErrInvalidToken
	}
	if err != nil {
		return activity.User{}, fmt.Errorf("failed to resolve api key: %w", err)
	}
	user.Email = email.String

	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), hash); err != nil {
		return activity.User{}, fmt.Errorf("failed to touch api key: %w", err)
	}
	return user, nil
}

// HashToken returns the stored form of a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
