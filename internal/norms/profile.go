package norms

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidProfile is returned when a profile field is missing or out of range.
var ErrInvalidProfile = errors.New("invalid profile")

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

type Goal string

const (
	WeightLoss  Goal = "weight_loss"
	Maintenance Goal = "maintenance"
	WeightGain  Goal = "weight_gain"
)

// ActivityFactors are the accepted activity multipliers, from sedentary to very active.
var ActivityFactors = []float64{1.2, 1.375, 1.55, 1.725, 1.9}

// Profile holds the body parameters daily targets are derived from.
type Profile struct {
	Gender         Gender  `json:"gender"`
	Age            int     `json:"age"`
	WeightKg       float64 `json:"weight_kg"`
	HeightCm       float64 `json:"height_cm"`
	ActivityFactor float64 `json:"activity_factor"`
	Goal           Goal    `json:"goal"`
}

// Validate checks every field against its allowed range. An empty goal is
// treated as maintenance.
func (p Profile) Validate() error {
	switch p.Gender {
	case Male, Female:
	default:
		return fmt.Errorf("%w: gender must be male or female, got %q", ErrInvalidProfile, p.Gender)
	}
	if p.Age < 12 || p.Age > 100 {
		return fmt.Errorf("%w: age must be between 12 and 100, got %d", ErrInvalidProfile, p.Age)
	}
	if p.WeightKg < 30 || p.WeightKg > 300 {
		return fmt.Errorf("%w: weight must be between 30 and 300 kg, got %v", ErrInvalidProfile, p.WeightKg)
	}
	if p.HeightCm < 100 || p.HeightCm > 250 {
		return fmt.Errorf("%w: height must be between 100 and 250 cm, got %v", ErrInvalidProfile, p.HeightCm)
	}
	if !IsActivityFactor(p.ActivityFactor) {
		return fmt.Errorf("%w: unsupported activity factor %v", ErrInvalidProfile, p.ActivityFactor)
	}
	switch p.Goal {
	case "", WeightLoss, Maintenance, WeightGain:
	default:
		return fmt.Errorf("%w: unknown goal %q", ErrInvalidProfile, p.Goal)
	}
	return nil
}

func IsActivityFactor(f float64) bool {
	for _, a := range ActivityFactors {
		if a == f {
			return true
		}
	}
	return false
}

// ParseGender accepts "male"/"female" in any case, plus the single letters m and f.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m":
		return Male, nil
	case "female", "f":
		return Female, nil
	}
	return "", fmt.Errorf("%w: unknown gender %q", ErrInvalidProfile, s)
}

func ParseGoal(s string) (Goal, error) {
	g := Goal(strings.ToLower(strings.TrimSpace(s)))
	switch g {
	case WeightLoss, Maintenance, WeightGain:
		return g, nil
	}
	return "", fmt.Errorf("%w: unknown goal %q", ErrInvalidProfile, s)
}

func ParseAge(s string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || age < 12 || age > 100 {
		return 0, fmt.Errorf("%w: age must be a whole number between 12 and 100", ErrInvalidProfile)
	}
	return age, nil
}

// ParseWeight accepts both "72.5" and "72,5".
func ParseWeight(s string) (float64, error) {
	w, err := parseDecimal(s)
	if err != nil || w < 30 || w > 300 {
		return 0, fmt.Errorf("%w: weight must be between 30 and 300 kg", ErrInvalidProfile)
	}
	return w, nil
}

func ParseHeight(s string) (float64, error) {
	h, err := parseDecimal(s)
	if err != nil || h < 100 || h > 250 {
		return 0, fmt.Errorf("%w: height must be between 100 and 250 cm", ErrInvalidProfile)
	}
	return h, nil
}

func ParseActivityFactor(s string) (float64, error) {
	f, err := parseDecimal(s)
	if err != nil || !IsActivityFactor(f) {
		return 0, fmt.Errorf("%w: activity factor must be one of %v", ErrInvalidProfile, ActivityFactors)
	}
	return f, nil
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}

// ParseDaily reads manual targets typed as four space-separated numbers:
// calories, proteins, fats and carbs.
func ParseDaily(s string) (Daily, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return Daily{}, fmt.Errorf("%w: expected 4 values (kcal proteins fats carbs), got %d", ErrInvalidProfile, len(fields))
	}
	var values [4]float64
	for i, f := range fields {
		v, err := parseDecimal(f)
		if err != nil {
			return Daily{}, fmt.Errorf("%w: %q is not a number", ErrInvalidProfile, f)
		}
		values[i] = v
	}
	d := Daily{Calories: values[0], Proteins: values[1], Fats: values[2], Carbs: values[3]}
	if err := d.Validate(); err != nil {
		return Daily{}, err
	}
	return d, nil
}
