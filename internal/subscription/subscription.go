// Package subscription gates analyses behind a free-request quota that an
// active subscription lifts.
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nutrition-bot/internal/database"
)

// ErrQuotaExceeded is returned when a user without a subscription has used up the free analyses.
var ErrQuotaExceeded = errors.New("free requests exhausted")

// DaysPerMonth is how long one paid month lasts.
const DaysPerMonth = 30

// Subscription is one paid period.
type Subscription struct {
	ID        int64
	UserID    int64
	StartDate time.Time
	EndDate   time.Time
	Active    bool
	PaymentID string
}

// Quota describes what a user may still do.
type Quota struct {
	Subscribed bool
	Used       int
	Limit      int
	Until      time.Time
}

// Remaining returns the free analyses left. It is meaningless for subscribers.
func (q Quota) Remaining() int {
	return max(0, q.Limit-q.Used)
}

// Allowed reports whether one more analysis may run.
func (q Quota) Allowed() bool {
	return q.Subscribed || q.Remaining() > 0
}

// Store reads and writes subscriptions. Usage is counted from saved analyses.
type Store struct {
	db        *sql.DB
	freeLimit int
}

func NewStore(db *sql.DB, freeLimit int) *Store {
	return &Store{db: db, freeLimit: freeLimit}
}

// Add starts a subscription of months at now.
func (s *Store) Add(ctx context.Context, userID int64, months int, paymentID string, now time.Time) (Subscription, error) {
	if months <= 0 {
		return Subscription{}, fmt.Errorf("subscription length must be positive, got %d months", months)
	}
	sub := Subscription{
		UserID:    userID,
		StartDate: now.UTC().Truncate(time.Second),
		EndDate:   now.UTC().Truncate(time.Second).AddDate(0, 0, DaysPerMonth*months),
		Active:    true,
		PaymentID: paymentID,
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO user_subscriptions (user_id, start_date, end_date, is_active, payment_id)
		VALUES (?, ?, ?, 1, ?)`,
		userID, database.FormatTime(sub.StartDate), database.FormatTime(sub.EndDate), paymentID)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to add subscription: %w", err)
	}
	if sub.ID, err = res.LastInsertId(); err != nil {
		return Subscription{}, fmt.Errorf("failed to read subscription id: %w", err)
	}
	return sub, nil
}

// ActiveUntil returns the latest end date of an active subscription, if any.
func (s *Store) ActiveUntil(ctx context.Context, userID int64, now time.Time) (time.Time, bool, error) {
	var end sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(end_date) FROM user_subscriptions
		WHERE user_id = ? AND is_active = 1 AND end_date > ?`,
		userID, database.FormatTime(now)).Scan(&end)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to check subscription: %w", err)
	}
	if !end.Valid {
		return time.Time{}, false, nil
	}
	until, err := database.ParseTime(end.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return until, true, nil
}

// Cancel deactivates every subscription of userID.
func (s *Store) Cancel(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE user_subscriptions SET is_active = 0 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return nil
}

// Quota reports the user's subscription state and free usage.
func (s *Store) Quota(ctx context.Context, userID int64, now time.Time) (Quota, error) {
	q := Quota{Limit: s.freeLimit}

	until, ok, err := s.ActiveUntil(ctx, userID, now)
	if err != nil {
		return Quota{}, err
	}
	q.Subscribed, q.Until = ok, until

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_analyses WHERE user_id = ?`, userID).Scan(&q.Used)
	if err != nil {
		return Quota{}, fmt.Errorf("failed to count usage: %w", err)
	}
	return q, nil
}

// Check returns ErrQuotaExceeded when another analysis is not allowed.
func (s *Store) Check(ctx context.Context, userID int64, now time.Time) (Quota, error) {
	q, err := s.Quota(ctx, userID, now)
	if err != nil {
		return Quota{}, err
	}
	if !q.Allowed() {
		return q, ErrQuotaExceeded
	}
	return q, nil
}
