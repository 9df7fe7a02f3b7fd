package telegram

import (
	"strconv"

	"nutrition-bot/internal/norms"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Profile setup steps, in dialog order.
const (
	stepGender   = "gender"
	stepAge      = "age"
	stepWeight   = "weight"
	stepHeight   = "height"
	stepActivity = "activity"
	stepGoal     = "goal"
	stepDone     = "done"
)

var activityLabels = map[float64]string{
	1.2:   "Sedentary",
	1.375: "Light",
	1.55:  "Moderate",
	1.725: "High",
	1.9:   "Very high",
}

// advanceSetup applies one answer to the draft and returns the next step. On
// invalid input the step does not change.
func advanceSetup(step string, draft norms.Profile, input string) (string, norms.Profile, error) {
	var err error
	switch step {
	case stepGender:
		if draft.Gender, err = norms.ParseGender(input); err != nil {
			return step, draft, err
		}
		return stepAge, draft, nil
	case stepAge:
		if draft.Age, err = norms.ParseAge(input); err != nil {
			return step, draft, err
		}
		return stepWeight, draft, nil
	case stepWeight:
		if draft.WeightKg, err = norms.ParseWeight(input); err != nil {
			return step, draft, err
		}
		return stepHeight, draft, nil
	case stepHeight:
		if draft.HeightCm, err = norms.ParseHeight(input); err != nil {
			return step, draft, err
		}
		return stepActivity, draft, nil
	case stepActivity:
		if draft.ActivityFactor, err = norms.ParseActivityFactor(input); err != nil {
			return step, draft, err
		}
		return stepGoal, draft, nil
	case stepGoal:
		if draft.Goal, err = norms.ParseGoal(input); err != nil {
			return step, draft, err
		}
		return stepDone, draft, nil
	}
	return stepGender, norms.Profile{}, nil
}

// setupPrompt returns the question for a step and, for choice steps, its keyboard.
func setupPrompt(step string) (string, *tgbotapi.InlineKeyboardMarkup) {
	switch step {
	case stepGender:
		kb := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👨 Male", callbackSetup+"|"+string(norms.Male)),
			tgbotapi.NewInlineKeyboardButtonData("👩 Female", callbackSetup+"|"+string(norms.Female)),
		))
		return "👤 *Profile setup*\n\nWhat is your gender?", &kb
	case stepAge:
		return "How old are you? (12-100)", nil
	case stepWeight:
		return "Your weight in kg? (30-300)", nil
	case stepHeight:
		return "Your height in cm? (100-250)", nil
	case stepActivity:
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, f := range norms.ActivityFactors {
			v := strconv.FormatFloat(f, 'f', -1, 64)
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(activityLabels[f]+" ("+v+")", callbackSetup+"|"+v),
			))
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
		return "How active are you?", &kb
	case stepGoal:
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📉 "+goalLabels[norms.WeightLoss], callbackSetup+"|"+string(norms.WeightLoss))),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("⚖️ "+goalLabels[norms.Maintenance], callbackSetup+"|"+string(norms.Maintenance))),
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📈 "+goalLabels[norms.WeightGain], callbackSetup+"|"+string(norms.WeightGain))),
		)
		return "What is your goal?", &kb
	}
	return "", nil
}
