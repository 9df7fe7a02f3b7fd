package norms

import (
	"fmt"

	"nutrition-bot/internal/nutrition"
)

// Daily is a per-user daily target.
type Daily struct {
	Calories float64 `json:"daily_calories"`
	Proteins float64 `json:"daily_proteins"`
	Fats     float64 `json:"daily_fats"`
	Carbs    float64 `json:"daily_carbs"`
}

type macroSplit struct {
	protein, fat, carb float64
}

var (
	goalEnergy = map[Goal]float64{
		WeightLoss:  0.8,
		Maintenance: 1.0,
		WeightGain:  1.15,
	}
	goalSplit = map[Goal]macroSplit{
		WeightLoss:  {protein: 0.35, fat: 0.30, carb: 0.35},
		Maintenance: {protein: 0.30, fat: 0.30, carb: 0.40},
		WeightGain:  {protein: 0.30, fat: 0.25, carb: 0.45},
	}
)

// BMR returns the Mifflin-St Jeor basal metabolic rate in kcal.
func BMR(p Profile) float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	if p.Gender == Male {
		return base + 5
	}
	return base - 161
}

// Compute derives daily targets from a validated profile.
func Compute(p Profile) (Daily, error) {
	if err := p.Validate(); err != nil {
		return Daily{}, err
	}

	goal := p.Goal
	if goal == "" {
		goal = Maintenance
	}
	calories := BMR(p) * p.ActivityFactor * goalEnergy[goal]
	split := goalSplit[goal]

	return Daily{
		Calories: nutrition.Round1(calories),
		Proteins: nutrition.Round1(calories * split.protein / 4),
		Fats:     nutrition.Round1(calories * split.fat / 9),
		Carbs:    nutrition.Round1(calories * split.carb / 4),
	}, nil
}

// Validate requires every manual target to be positive.
func (d Daily) Validate() error {
	if d.Calories <= 0 || d.Proteins <= 0 || d.Fats <= 0 || d.Carbs <= 0 {
		return fmt.Errorf("%w: daily targets must be positive", ErrInvalidProfile)
	}
	return nil
}

// Effective returns manual targets verbatim when set; otherwise it computes them from p.
func Effective(p Profile, manual *Daily) (Daily, error) {
	if manual != nil {
		return *manual, nil
	}
	return Compute(p)
}
