package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"nutrition-bot/internal/app"
	"nutrition-bot/internal/database"
	"nutrition-bot/internal/diary"
	"nutrition-bot/internal/metrics"
	"nutrition-bot/internal/norms"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/profile"
	"nutrition-bot/internal/recognition"
	"nutrition-bot/internal/subscription"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var sourceLabels = map[nutrition.Source]string{
	nutrition.SourceBarcode:          "barcode",
	nutrition.SourceVisionStructured: "photo analysis",
	nutrition.SourceNameLookup:       "food table",
	nutrition.SourceFused:            "label recognition",
	nutrition.SourceManual:           "manual entry",
}

var mealLabels = map[diary.MealType]string{
	diary.Breakfast: "🌅 Breakfast",
	diary.Lunch:     "☀️ Lunch",
	diary.Dinner:    "🌙 Dinner",
	diary.Snack:     "🍪 Snacks",
}

var goalLabels = map[norms.Goal]string{
	norms.WeightLoss:  "Weight loss",
	norms.Maintenance: "Maintenance",
	norms.WeightGain:  "Weight gain",
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// num prints 350 as "350" and 12.5 as "12.5".
func num(v float64) string {
	return strconv.FormatFloat(nutrition.Round1(v), 'f', -1, 64)
}

func formatMacros(m nutrition.Macros) string {
	return fmt.Sprintf("🔥 Calories: *%s* kcal\n🥩 Proteins: %s g\n🧈 Fats: %s g\n🍞 Carbs: %s g\n",
		num(m.Calories), num(m.Proteins), num(m.Fats), num(m.Carbs))
}

func formatRecord(rec nutrition.Record) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🍽 *%s*\n", escape(rec.Name)))
	sb.WriteString(fmt.Sprintf("⚖️ Portion: %s g\n\n", num(rec.Basis())))
	sb.WriteString(formatMacros(rec.Macros()))

	if len(rec.DetectedItems) > 0 {
		sb.WriteString(fmt.Sprintf("\n🔎 Detected: %s\n", escape(strings.Join(rec.DetectedItems, ", "))))
	}
	if label, ok := sourceLabels[rec.Source]; ok {
		sb.WriteString(fmt.Sprintf("\n_Source: %s_", label))
		if rec.Barcode != "" {
			sb.WriteString(fmt.Sprintf(" `%s`", rec.Barcode))
		}
		sb.WriteString("\n")
	}
	if rec.Estimated {
		sb.WriteString("_Values are approximate_\n")
	}
	return sb.String()
}

func formatIndicators(ind norms.Indicators) string {
	rows := []struct {
		label string
		p     norms.Progress
	}{
		{"Calories", ind.Calories},
		{"Proteins", ind.Proteins},
		{"Fats", ind.Fats},
		{"Carbs", ind.Carbs},
	}
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s %s: %s\n", r.p.Emoji, r.label, r.p.Bar))
	}
	return sb.String()
}

func formatAnalysis(a app.Analysis) string {
	rec := a.Result.Record
	if a.Entry != nil {
		rec = a.Entry.Record
	}

	var sb strings.Builder
	switch a.Result.Kind {
	case recognition.KindNoFood:
		return "🤷 I don't see any food in this photo. Try another shot with the dish in focus."
	case recognition.KindNothing:
		return "😕 I couldn't recognize the dish. Try a brighter photo or shoot the product barcode."
	case recognition.KindBarcodeUnresolved:
		sb.WriteString(fmt.Sprintf("🔍 Barcode `%s` was read", rec.Barcode))
		if rec.Name != nutrition.UnknownProductName {
			sb.WriteString(fmt.Sprintf(" (*%s*)", escape(rec.Name)))
		}
		sb.WriteString(", but nutrition facts for this product are unknown.\n\n")
		sb.WriteString("✍️ Send the values per 100 g from the label as: kcal proteins fats carbs, e.g. `250 6 12 30`.\n")
		sb.WriteString("Or try a photo of the food itself.")
		return sb.String()
	}

	sb.WriteString(formatRecord(rec))
	if a.Indicators != nil {
		sb.WriteString("\n📊 *Share of your daily target*\n")
		sb.WriteString(formatIndicators(*a.Indicators))
	}
	if len(a.Insights) > 0 {
		sb.WriteString("\n")
		for _, in := range a.Insights {
			sb.WriteString(in + "\n")
		}
	}
	if a.Entry != nil && !a.Quota.Subscribed && a.Quota.Limit > 0 {
		sb.WriteString(fmt.Sprintf("\n_Free analyses left: %d_", a.Quota.Remaining()))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDayReport(r app.DayReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Statistics for %s*\n\n", r.Stats.Day.Format(database.DayLayout)))

	if r.Stats.Empty() {
		sb.WriteString("_Nothing logged this day._")
		return sb.String()
	}

	for _, mt := range diary.MealTypes {
		meal := r.Stats.Meals[mt]
		if meal == nil || meal.Totals.Count == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s: %s kcal\n", mealLabels[mt], num(meal.Totals.Calories)))
		for _, e := range meal.Entries {
			sb.WriteString(fmt.Sprintf("  • %s, %s g, %s kcal\n",
				escape(e.Record.Name), num(e.Record.Basis()), num(e.Record.Calories)))
		}
	}

	total := r.Stats.Total
	sb.WriteString(fmt.Sprintf("\n*Total* (%d analyses)\n", total.Count))
	sb.WriteString(formatMacros(total.Macros))

	if r.Norms != nil && r.Progress != nil {
		sb.WriteString(fmt.Sprintf("\n🎯 *Target*: %s kcal, P %s / F %s / C %s g\n",
			num(r.Norms.Calories), num(r.Norms.Proteins), num(r.Norms.Fats), num(r.Norms.Carbs)))
		sb.WriteString(formatIndicators(*r.Progress))
	} else {
		sb.WriteString("\n_Set up your profile with /setup to see daily targets._")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatOverall(t diary.Totals) string {
	if t.Count == 0 {
		return "📈 No analyses yet. Send me a photo of your meal!"
	}
	return fmt.Sprintf("📈 *All-time statistics*\n\nAnalyses: %d\n%s", t.Count, strings.TrimRight(formatMacros(t.Macros), "\n"))
}

func formatProfile(u profile.User) string {
	var sb strings.Builder
	sb.WriteString("👤 *Your profile*\n\n")

	if p := u.Profile; p != nil {
		gender := "Male"
		if p.Gender == norms.Female {
			gender = "Female"
		}
		goal := goalLabels[p.Goal]
		if goal == "" {
			goal = goalLabels[norms.Maintenance]
		}
		sb.WriteString(fmt.Sprintf("Gender: %s\nAge: %d\nWeight: %s kg\nHeight: %s cm\nActivity: %s\nGoal: %s\n",
			gender, p.Age, num(p.WeightKg), num(p.HeightCm), strconv.FormatFloat(p.ActivityFactor, 'f', -1, 64), goal))
	} else {
		sb.WriteString("_Profile not set. Use /setup._\n")
	}

	if d := u.Norms; d != nil {
		kind := "calculated"
		if u.Manual {
			kind = "manual"
		}
		sb.WriteString(fmt.Sprintf("\n🎯 *Daily targets* (%s)\n", kind))
		sb.WriteString(formatMacros(nutrition.Macros{Calories: d.Calories, Proteins: d.Proteins, Fats: d.Fats, Carbs: d.Carbs}))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatQuota(q subscription.Quota) string {
	if q.Subscribed {
		return fmt.Sprintf("⭐ Subscription active until *%s*.", q.Until.Format(database.DayLayout))
	}
	return fmt.Sprintf("🆓 Free plan: %d of %d analyses used, %d left.", q.Used, q.Limit, q.Remaining())
}

func formatMetrics(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Model Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs, %d failed, avg %dms)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Failures, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s", health.DataDiskSize))
	return sb.String()
}

// entryKeyboard offers a portion change for a logged entry, plus a dish name
// correction when its values are approximate.
func entryKeyboard(e *diary.Entry) *tgbotapi.InlineKeyboardMarkup {
	if e == nil {
		return nil
	}
	row := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⚖️ Change portion", fmt.Sprintf("%s|%d", callbackPortion, e.ID)),
	)
	if e.Record.Estimated {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✏️ Specify dish name", fmt.Sprintf("%s|%d", callbackRename, e.ID)))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

// statsKeyboard offers Prev while earlier data exists and Next until today.
func statsKeyboard(r app.DayReport, today time.Time) *tgbotapi.InlineKeyboardMarkup {
	day := r.Stats.Day.Format(database.DayLayout)
	var row []tgbotapi.InlineKeyboardButton
	if r.HasEarliest && r.Earliest.Format(database.DayLayout) < day {
		prev := r.Stats.Day.AddDate(0, 0, -1).Format(database.DayLayout)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("⬅️ "+prev, callbackStats+"|"+prev))
	}
	if day < today.Format(database.DayLayout) {
		next := r.Stats.Day.AddDate(0, 0, 1).Format(database.DayLayout)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(next+" ➡️", callbackStats+"|"+next))
	}
	if len(row) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}
