// Package profile stores users with their biometric profile and daily targets.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"nutrition-bot/internal/database"
	"nutrition-bot/internal/norms"
)

// ErrNotFound is returned for unknown users.
var ErrNotFound = errors.New("user not found")

// User is a registered user. Profile is nil until the setup dialog completes.
// Norms are the targets in force: computed from Profile, or entered manually
// when Manual is set.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	RegisteredAt time.Time
	Profile      *norms.Profile
	Norms        *norms.Daily
	Manual       bool
}

// Store persists users in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ensure registers the user on first contact and returns the stored row.
func (s *Store) Ensure(ctx context.Context, id int64, username, firstName string, now time.Time) (User, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, registered_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		id, username, firstName, database.FormatTime(now))
	if err != nil {
		return User{}, fmt.Errorf("failed to register user %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Get loads a user.
func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	var (
		u            User
		registeredAt string
		gender, goal sql.NullString
		age          sql.NullInt64
		weight       sql.NullFloat64
		height       sql.NullFloat64
		activity     sql.NullFloat64
		cal, p, f, c sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, first_name, registered_at, gender, age, weight_kg, height_cm,
			activity_factor, goal, daily_calories, daily_proteins, daily_fats, daily_carbs, manual_norms
		FROM users WHERE user_id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.FirstName, &registeredAt, &gender, &age, &weight, &height,
		&activity, &goal, &cal, &p, &f, &c, &u.Manual)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to load user %d: %w", id, err)
	}

	if u.RegisteredAt, err = database.ParseTime(registeredAt); err != nil {
		return User{}, err
	}
	if gender.Valid && age.Valid && weight.Valid && height.Valid && activity.Valid {
		u.Profile = &norms.Profile{
			Gender:         norms.Gender(gender.String),
			Age:            int(age.Int64),
			WeightKg:       weight.Float64,
			HeightCm:       height.Float64,
			ActivityFactor: activity.Float64,
			Goal:           norms.Goal(goal.String),
		}
	}
	if cal.Valid && p.Valid && f.Valid && c.Valid {
		u.Norms = &norms.Daily{Calories: cal.Float64, Proteins: p.Float64, Fats: f.Float64, Carbs: c.Float64}
	}
	return u, nil
}

// UpdateProfile saves a complete profile. Targets are recomputed unless the
// user entered them manually.
func (s *Store) UpdateProfile(ctx context.Context, id int64, prof norms.Profile) (User, error) {
	if err := prof.Validate(); err != nil {
		return User{}, err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	daily := u.Norms
	if !u.Manual {
		computed, err := norms.Compute(prof)
		if err != nil {
			return User{}, err
		}
		daily = &computed
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET gender = ?, age = ?, weight_kg = ?, height_cm = ?, activity_factor = ?, goal = ?
		WHERE user_id = ?`,
		string(prof.Gender), prof.Age, prof.WeightKg, prof.HeightCm, prof.ActivityFactor, string(prof.Goal), id)
	if err != nil {
		return User{}, fmt.Errorf("failed to update profile: %w", err)
	}
	if err := s.saveNorms(ctx, id, daily, u.Manual); err != nil {
		return User{}, err
	}

	u.Profile = &prof
	u.Norms = daily
	return u, nil
}

// SetManualNorms stores user-entered targets and stops automatic recomputation.
func (s *Store) SetManualNorms(ctx context.Context, id int64, d norms.Daily) (User, error) {
	if err := d.Validate(); err != nil {
		return User{}, err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.saveNorms(ctx, id, &d, true); err != nil {
		return User{}, err
	}
	u.Norms = &d
	u.Manual = true
	return u, nil
}

// ResetNorms drops manual targets and recomputes them from the profile, if any.
func (s *Store) ResetNorms(ctx context.Context, id int64) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}

	var daily *norms.Daily
	if u.Profile != nil {
		computed, err := norms.Compute(*u.Profile)
		if err != nil {
			return User{}, err
		}
		daily = &computed
	}
	if err := s.saveNorms(ctx, id, daily, false); err != nil {
		return User{}, err
	}
	u.Norms = daily
	u.Manual = false
	return u, nil
}

func (s *Store) saveNorms(ctx context.Context, id int64, d *norms.Daily, manual bool) error {
	var cal, p, f, c sql.NullFloat64
	if d != nil {
		cal = sql.NullFloat64{Float64: d.Calories, Valid: true}
		p = sql.NullFloat64{Float64: d.Proteins, Valid: true}
		f = sql.NullFloat64{Float64: d.Fats, Valid: true}
		c = sql.NullFloat64{Float64: d.Carbs, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET daily_calories = ?, daily_proteins = ?, daily_fats = ?, daily_carbs = ?, manual_norms = ?
		WHERE user_id = ?`, cal, p, f, c, manual, id)
	if err != nil {
		return fmt.Errorf("failed to save daily norms: %w", err)
	}
	return nil
}
