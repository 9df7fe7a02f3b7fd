// Package diary stores finished analyses and aggregates them per day and meal.
package diary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nutrition-bot/internal/database"
	"nutrition-bot/internal/nutrition"
)

// ErrNotFound is returned when an analysis does not exist or belongs to another user.
var ErrNotFound = errors.New("analysis not found")

// MealType is the bucket an analysis is filed under.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// MealTypes lists the buckets in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snack}

// MealTypeAt buckets t by its wall-clock hour.
func MealTypeAt(t time.Time) MealType {
	switch h := t.Hour(); {
	case h >= 5 && h < 11:
		return Breakfast
	case h >= 11 && h < 16:
		return Lunch
	case h >= 16 && h < 21:
		return Dinner
	default:
		return Snack
	}
}

// Entry is one stored analysis. Original is the record as the pipeline produced
// it; portion updates always rescale from it.
type Entry struct {
	ID         int64
	UserID     int64
	AnalyzedAt time.Time
	Day        string
	MealType   MealType
	Record     nutrition.Record
	Original   nutrition.Record
	ImagePath  string
}

// Repository persists entries in SQLite.
type Repository struct {
	db  *sql.DB
	loc *time.Location
}

// NewRepository creates a Repository that files entries by wall clock in loc.
func NewRepository(db *sql.DB, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.Local
	}
	return &Repository{db: db, loc: loc}
}

// Save stores rec for userID and returns the new entry.
func (r *Repository) Save(ctx context.Context, userID int64, rec nutrition.Record, at time.Time, imagePath string) (Entry, error) {
	local := at.In(r.loc)
	entry := Entry{
		UserID:     userID,
		AnalyzedAt: at.UTC().Truncate(time.Second),
		Day:        local.Format(database.DayLayout),
		MealType:   MealTypeAt(local),
		Record:     rec,
		Original:   rec,
		ImagePath:  imagePath,
	}

	items, original, err := encode(rec)
	if err != nil {
		return Entry{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO food_analyses (user_id, analyzed_at, day, meal_type, name, calories, proteins, fats, carbs,
			portion_weight, estimated, source, barcode, detected_items, original, image_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, database.FormatTime(at), entry.Day, string(entry.MealType), rec.Name,
		rec.Calories, rec.Proteins, rec.Fats, rec.Carbs, rec.PortionWeight, rec.Estimated,
		string(rec.Source), rec.Barcode, items, original, imagePath,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to save analysis: %w", err)
	}

	entry.ID, err = res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read analysis id: %w", err)
	}
	return entry, nil
}

func encode(rec nutrition.Record) (string, string, error) {
	items := rec.DetectedItems
	if items == nil {
		items = []string{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal detected items: %w", err)
	}
	originalJSON, err := json.Marshal(rec)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal record: %w", err)
	}
	return string(itemsJSON), string(originalJSON), nil
}

const selectEntry = `
	SELECT id, user_id, analyzed_at, day, meal_type, name, calories, proteins, fats, carbs,
		portion_weight, estimated, source, barcode, detected_items, original, image_path
	FROM food_analyses`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e          Entry
		analyzedAt string
		mealType   string
		source     string
		items      string
		original   string
	)
	err := s.Scan(&e.ID, &e.UserID, &analyzedAt, &e.Day, &mealType, &e.Record.Name,
		&e.Record.Calories, &e.Record.Proteins, &e.Record.Fats, &e.Record.Carbs,
		&e.Record.PortionWeight, &e.Record.Estimated, &source, &e.Record.Barcode,
		&items, &original, &e.ImagePath)
	if err != nil {
		return Entry{}, err
	}

	e.MealType = MealType(mealType)
	e.Record.Source = nutrition.Source(source)
	if e.AnalyzedAt, err = database.ParseTime(analyzedAt); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(items), &e.Record.DetectedItems); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal detected items: %w", err)
	}
	if err := json.Unmarshal([]byte(original), &e.Original); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal original record: %w", err)
	}
	return e, nil
}

// Get returns entry id if it belongs to userID.
func (r *Repository) Get(ctx context.Context, userID, id int64) (Entry, error) {
	row := r.db.QueryRowContext(ctx, selectEntry+` WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to load analysis %d: %w", id, err)
	}
	return e, nil
}

// UpdatePortion rescales the stored original to grams and saves the result.
// Invalid input leaves the stored entry untouched.
func (r *Repository) UpdatePortion(ctx context.Context, userID, id int64, grams float64) (Entry, error) {
	e, err := r.Get(ctx, userID, id)
	if err != nil {
		return Entry{}, err
	}

	scaled, err := nutrition.Rescale(e.Original, grams)
	if err != nil {
		return Entry{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE food_analyses
		SET calories = ?, proteins = ?, fats = ?, carbs = ?, portion_weight = ?
		WHERE id = ? AND user_id = ?`,
		scaled.Calories, scaled.Proteins, scaled.Fats, scaled.Carbs, scaled.PortionWeight, id, userID,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to update portion: %w", err)
	}

	e.Record = scaled
	return e, nil
}

// Replace overwrites entry id with rec, which also becomes the new original.
// Time, day and meal type are kept.
func (r *Repository) Replace(ctx context.Context, userID, id int64, rec nutrition.Record) (Entry, error) {
	e, err := r.Get(ctx, userID, id)
	if err != nil {
		return Entry{}, err
	}

	items, original, err := encode(rec)
	if err != nil {
		return Entry{}, err
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE food_analyses
		SET name = ?, calories = ?, proteins = ?, fats = ?, carbs = ?, portion_weight = ?,
			estimated = ?, source = ?, barcode = ?, detected_items = ?, original = ?
		WHERE id = ? AND user_id = ?`,
		rec.Name, rec.Calories, rec.Proteins, rec.Fats, rec.Carbs, rec.PortionWeight,
		rec.Estimated, string(rec.Source), rec.Barcode, items, original, id, userID,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to replace analysis: %w", err)
	}

	e.Record = rec
	e.Original = rec
	return e, nil
}

// Count returns how many analyses userID has saved.
func (r *Repository) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_analyses WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return n, nil
}

// ForDay returns the entries of one local day in chronological order.
func (r *Repository) ForDay(ctx context.Context, userID int64, day time.Time) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectEntry+` WHERE user_id = ? AND day = ? ORDER BY analyzed_at, id`,
		userID, day.In(r.loc).Format(database.DayLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HasDataFor reports whether any analysis exists on the local day.
func (r *Repository) HasDataFor(ctx context.Context, userID int64, day time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM food_analyses WHERE user_id = ? AND day = ?`,
		userID, day.In(r.loc).Format(database.DayLayout)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check analyses: %w", err)
	}
	return n > 0, nil
}

// EarliestDay returns the first day with an analysis. ok is false when there is none.
func (r *Repository) EarliestDay(ctx context.Context, userID int64) (day time.Time, ok bool, err error) {
	var s sql.NullString
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(day) FROM food_analyses WHERE user_id = ?`, userID).Scan(&s); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query earliest day: %w", err)
	}
	if !s.Valid {
		return time.Time{}, false, nil
	}
	day, err = time.ParseInLocation(database.DayLayout, s.String, r.loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid stored day %q: %w", s.String, err)
	}
	return day, true, nil
}
