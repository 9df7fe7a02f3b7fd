package norms

import (
	"fmt"
	"strings"

	"nutrition-bot/internal/nutrition"
)

const progressCells = 10

// Progress describes how much of one daily target a value covers.
type Progress struct {
	Percent float64
	Bar     string
	Emoji   string
}

// Indicators holds progress for all four macros.
type Indicators struct {
	Calories Progress
	Proteins Progress
	Fats     Progress
	Carbs    Progress
}

// ProgressBar renders e.g. "■■■□□□□□□□ 30%". Values above target are capped at 100%.
func ProgressBar(current, target float64) string {
	share := ratio(current, target)
	filled := int(progressCells * share)
	return fmt.Sprintf("%s%s %d%%",
		strings.Repeat("■", filled),
		strings.Repeat("□", progressCells-filled),
		int(share*100))
}

// IndicatorEmoji maps an uncapped share of the target to a traffic-light emoji.
func IndicatorEmoji(share float64) string {
	switch {
	case share < 0.25:
		return "🔴"
	case share < 0.5:
		return "🟠"
	case share < 0.75:
		return "🟡"
	case share < 1.0:
		return "🟢"
	default:
		return "🔵"
	}
}

// Compare measures m against the daily targets d.
func Compare(m nutrition.Macros, d Daily) Indicators {
	return Indicators{
		Calories: progress(m.Calories, d.Calories),
		Proteins: progress(m.Proteins, d.Proteins),
		Fats:     progress(m.Fats, d.Fats),
		Carbs:    progress(m.Carbs, d.Carbs),
	}
}

func progress(value, target float64) Progress {
	var share float64
	if target > 0 {
		share = value / target
	}
	return Progress{
		Percent: share,
		Bar:     ProgressBar(value, target),
		Emoji:   IndicatorEmoji(share),
	}
}

func ratio(current, target float64) float64 {
	if target <= 0 || current <= 0 {
		return 0
	}
	return min(1.0, current/target)
}

// Insights returns short remarks about a single portion.
func Insights(m nutrition.Macros) []string {
	var out []string
	switch {
	case m.Calories < 200:
		out = append(out, "🟢 *Low-calorie dish* - suits weight loss")
	case m.Calories > 600:
		out = append(out, "🟠 *High-calorie dish* - mind it when dieting")
	}
	if m.Proteins > 25 {
		out = append(out, "💪 *High in protein* - good for muscle growth")
	}
	if m.Fats > 30 {
		out = append(out, "⚠️ *High in fat* - keep an eye on your daily target")
	}
	if m.Carbs > 60 {
		out = append(out, "🍚 *High in carbohydrates* - a good energy source")
	}
	return out
}
