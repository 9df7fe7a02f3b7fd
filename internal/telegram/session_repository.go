package telegram

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nutrition-bot/internal/database"
	"nutrition-bot/internal/norms"
)

// Session types.
const (
	SessionPortion = "portion"
	SessionSetup   = "setup"
	SessionManual  = "manual"
	SessionName    = "name"
)

// Session represents a pending conversation step, e.g. awaiting a portion weight.
// It replaces per-user in-memory state and lives only until it expires.
type Session struct {
	ID          int64
	UserID      int64
	SessionType string
	State       string
	ContextData string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// SessionContextData holds structured data stored in the context_data JSON field
type SessionContextData struct {
	EntryID int64         `json:"entry_id,omitempty"`
	Barcode string        `json:"barcode,omitempty"`
	Name    string        `json:"name,omitempty"`
	Profile norms.Profile `json:"profile"`
}

// SessionRepository provides access to session persistence operations
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository instance
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Start replaces any session of the user with a new one and returns its ID.
func (sr *SessionRepository) Start(ctx context.Context, userID int64, sessionType, state string, contextData SessionContextData, ttl time.Duration, now time.Time) (int64, error) {
	jsonData, err := json.Marshal(contextData)
	if err != nil {
		return 0, err
	}

	tx, err := sr.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("failed to clear sessions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (user_id, session_type, state, context_data, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, sessionType, state, string(jsonData), database.FormatTime(now.Add(ttl)), database.FormatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to create session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// GetActive retrieves the most recent active session for a user (non-expired)
func (sr *SessionRepository) GetActive(ctx context.Context, userID int64, now time.Time) (*Session, error) {
	var s Session
	var expiresAt, createdAt string
	err := sr.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_type, state, context_data, expires_at, created_at
		FROM sessions
		WHERE user_id = ? AND expires_at > ?
		ORDER BY id DESC LIMIT 1`,
		userID, database.FormatTime(now),
	).Scan(&s.ID, &s.UserID, &s.SessionType, &s.State, &s.ContextData, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.ExpiresAt, err = database.ParseTime(expiresAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetContextData unmarshals the context_data JSON field
func (s *Session) GetContextData() (SessionContextData, error) {
	var data SessionContextData
	err := json.Unmarshal([]byte(s.ContextData), &data)
	return data, err
}

// Update updates the state and context_data for a session
func (sr *SessionRepository) Update(ctx context.Context, sessionID int64, state string, contextData SessionContextData) error {
	jsonData, err := json.Marshal(contextData)
	if err != nil {
		return err
	}

	_, err = sr.db.ExecContext(ctx, `UPDATE sessions SET state = ?, context_data = ? WHERE id = ?`,
		state, string(jsonData), sessionID)
	return err
}

// Delete removes a session
func (sr *SessionRepository) Delete(ctx context.Context, sessionID int64) error {
	_, err := sr.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return err
}

// CleanupExpired removes all expired sessions and returns how many were removed.
func (sr *SessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := sr.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, database.FormatTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
