package diary

import (
	"context"
	"fmt"
	"time"

	"nutrition-bot/internal/nutrition"
)

// Totals sums the values of a group of entries.
type Totals struct {
	Count int
	nutrition.Macros
}

func (t *Totals) add(rec nutrition.Record) {
	t.Count++
	t.Calories += rec.Calories
	t.Proteins += rec.Proteins
	t.Fats += rec.Fats
	t.Carbs += rec.Carbs
}

func (t *Totals) round() {
	t.Macros = t.Macros.Scale(1)
}

// Meal groups the entries of one meal type.
type Meal struct {
	Type    MealType
	Totals  Totals
	Entries []Entry
}

// DayStats is the per-meal breakdown of a single day.
type DayStats struct {
	Day   time.Time
	Meals map[MealType]*Meal
	Total Totals
}

// Empty reports whether nothing was logged that day.
func (s DayStats) Empty() bool {
	return s.Total.Count == 0
}

// Aggregate builds DayStats from the entries of one day. Totals are rounded to
// one decimal after summing.
func Aggregate(day time.Time, entries []Entry) DayStats {
	stats := DayStats{Day: day, Meals: make(map[MealType]*Meal, len(MealTypes))}
	for _, mt := range MealTypes {
		stats.Meals[mt] = &Meal{Type: mt}
	}

	for _, e := range entries {
		meal, ok := stats.Meals[e.MealType]
		if !ok {
			meal = stats.Meals[Snack]
		}
		meal.Totals.add(e.Record)
		meal.Entries = append(meal.Entries, e)
		stats.Total.add(e.Record)
	}

	for _, meal := range stats.Meals {
		meal.Totals.round()
	}
	stats.Total.round()
	return stats
}

// DayStats loads and aggregates one local day.
func (r *Repository) DayStats(ctx context.Context, userID int64, day time.Time) (DayStats, error) {
	entries, err := r.ForDay(ctx, userID, day)
	if err != nil {
		return DayStats{}, err
	}
	return Aggregate(day.In(r.loc), entries), nil
}

// Overall sums every analysis userID has saved.
func (r *Repository) Overall(ctx context.Context, userID int64) (Totals, error) {
	var t Totals
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(calories), 0), COALESCE(SUM(proteins), 0),
			COALESCE(SUM(fats), 0), COALESCE(SUM(carbs), 0)
		FROM food_analyses WHERE user_id = ?`, userID,
	).Scan(&t.Count, &t.Calories, &t.Proteins, &t.Fats, &t.Carbs)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to sum analyses: %w", err)
	}
	t.round()
	return t, nil
}
