package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nutrition-bot/internal/app"
	"nutrition-bot/internal/config"
	"nutrition-bot/internal/database"
	"nutrition-bot/internal/diary"
	"nutrition-bot/internal/metrics"
	"nutrition-bot/internal/norms"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/recognition"
	"nutrition-bot/internal/subscription"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data prefixes, "prefix|value".
const (
	callbackPortion = "portion"
	callbackSetup   = "setup"
	callbackStats   = "stats"
	callbackRename  = "rename"
)

const (
	sessionTTL      = 15 * time.Minute
	analysisTimeout = 2 * time.Minute
	maxImageBytes   = 20 << 20
)

const helpText = `🥗 *Nutrition assistant*

Send me a photo of your meal or of a product barcode and I will estimate calories, proteins, fats and carbs.

/setup - set up your profile to get daily targets
/profile - show your profile and targets
/norms - set targets manually: /norms 2000 120 70 230, or /norms reset
/stats - today's statistics, or /stats 2025-03-14
/overall - all-time statistics
/subscribe - subscription status`

// Bot wraps the Telegram API and the nutrition app.
type Bot struct {
	api        *tgbotapi.BotAPI
	app        *app.App
	sessions   *SessionRepository
	cfg        *config.Config
	httpClient *http.Client
	uploadDir  string
	now        func() time.Time
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, application *app.App, sessions *SessionRepository) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	webhookURL := cfg.TelegramWebhookURL
	wh, _ := tgbotapi.NewWebhook(webhookURL)
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:        bot,
		app:        application,
		sessions:   sessions,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		uploadDir:  filepath.Join(filepath.Dir(cfg.DatabasePath), "uploads"),
		now:        time.Now,
	}, nil
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// RunSessionJanitor removes expired sessions every interval until ctx is done.
func (b *Bot) RunSessionJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.sessions.CleanupExpired(ctx, b.now())
			if err != nil {
				log.Printf("Warning: session cleanup failed: %v", err)
			} else if n > 0 {
				log.Printf("Removed %d expired sessions", n)
			}
		}
	}
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		go b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx := context.Background()

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		// Sizes are ordered from smallest to largest.
		b.handleImage(ctx, msg, msg.Photo[len(msg.Photo)-1].FileID)
		return
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		b.handleImage(ctx, msg, msg.Document.FileID)
		return
	}

	if msg.Text != "" {
		b.handleText(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		if _, err := b.app.RegisterUser(ctx, userID, msg.From.UserName, msg.From.FirstName); err != nil {
			log.Printf("Error registering user %d: %v", userID, err)
		}
		b.sendMarkdown(msg.Chat.ID, helpText, nil)
	case "help":
		b.sendMarkdown(msg.Chat.ID, helpText, nil)
	case "setup":
		b.startSetup(ctx, msg.Chat.ID, userID)
	case "profile":
		user, err := b.app.RegisterUser(ctx, userID, msg.From.UserName, msg.From.FirstName)
		if err != nil {
			b.sendError(msg.Chat.ID, "loading profile", err)
			return
		}
		b.sendMarkdown(msg.Chat.ID, formatProfile(user), nil)
	case "norms":
		b.handleNorms(ctx, msg.Chat.ID, userID, args)
	case "stats":
		day := b.now()
		if args != "" {
			parsed, err := time.ParseInLocation(database.DayLayout, args, time.Local)
			if err != nil {
				b.sendMarkdown(msg.Chat.ID, "📅 Use the date format YYYY-MM-DD, e.g. /stats 2025-03-14", nil)
				return
			}
			day = parsed
		}
		b.sendStats(ctx, msg.Chat.ID, 0, userID, day)
	case "overall":
		totals, err := b.app.Overall(ctx, userID)
		if err != nil {
			b.sendError(msg.Chat.ID, "loading statistics", err)
			return
		}
		b.sendMarkdown(msg.Chat.ID, formatOverall(totals), nil)
	case "subscribe":
		q, err := b.app.Quota(ctx, userID)
		if err != nil {
			b.sendError(msg.Chat.ID, "loading subscription", err)
			return
		}
		b.sendMarkdown(msg.Chat.ID, formatQuota(q), nil)
	case "metrics":
		if userID != b.cfg.AdminTelegramID {
			b.sendMarkdown(msg.Chat.ID, "⛔ *Access Denied*: Admin only.", nil)
			return
		}
		b.handleMetricsCommand(ctx, msg.Chat.ID)
	default:
		b.sendMarkdown(msg.Chat.ID, "Unknown command. See /help.", nil)
	}
}

func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, fileID string) {
	sentMsg, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "🔎 Analyzing your photo..."))
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, analysisTimeout)
	defer cancel()

	data, ext, err := b.downloadFile(ctx, fileID)
	if err != nil {
		log.Printf("Error downloading photo from user %d: %v", msg.From.ID, err)
		b.editMarkdown(msg.Chat.ID, sentMsg.MessageID, "❌ Could not download the photo. Please try again.", nil)
		return
	}

	analysis, err := analyzePhoto(ctx, b.app, recognition.Submission{
		UserID:     msg.From.ID,
		Image:      keepPhoto(b.uploadDir, msg.From.ID, data, ext, b.now()),
		ReceivedAt: msg.Time(),
	})
	if errors.Is(err, subscription.ErrQuotaExceeded) {
		text := fmt.Sprintf("🚫 You have used all %d free analyses. Use /subscribe to continue.", analysis.Quota.Limit)
		b.editMarkdown(msg.Chat.ID, sentMsg.MessageID, text, nil)
		return
	}
	if err != nil {
		log.Printf("Error analyzing photo from user %d: %v", msg.From.ID, err)
		b.editMarkdown(msg.Chat.ID, sentMsg.MessageID, "❌ Something went wrong while analyzing the photo.", nil)
		return
	}

	if analysis.Result.Kind == recognition.KindBarcodeUnresolved {
		data := SessionContextData{Barcode: analysis.Result.Record.Barcode, Name: analysis.Result.Record.Name}
		if _, err := b.sessions.Start(ctx, msg.From.ID, SessionManual, "awaiting", data, sessionTTL, b.now()); err != nil {
			log.Printf("Warning: failed to start manual entry for user %d: %v", msg.From.ID, err)
		}
	}

	b.editMarkdown(msg.Chat.ID, sentMsg.MessageID, formatAnalysis(analysis), entryKeyboard(analysis.Entry))
}

// photoAnalyzer is the part of the app that handles photo submissions.
type photoAnalyzer interface {
	AnalyzeImage(ctx context.Context, sub recognition.Submission) (app.Analysis, error)
}

// analyzePhoto runs the analysis and removes the kept copy of the photo unless
// a diary entry now points to it.
func analyzePhoto(ctx context.Context, analyzer photoAnalyzer, sub recognition.Submission) (app.Analysis, error) {
	analysis, err := analyzer.AnalyzeImage(ctx, sub)
	if analysis.Entry == nil && sub.Image.Path != "" {
		if rmErr := os.Remove(sub.Image.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Printf("Warning: failed to remove photo %s: %v", sub.Image.Path, rmErr)
		}
	}
	return analysis, err
}

// downloadFile fetches a Telegram file and returns its bytes and extension.
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("file download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Ext(url), nil
}

// keepPhoto stores a copy of the photo under dir/<user>/. The copy is optional:
// on failure the image carries only its bytes.
func keepPhoto(dir string, userID int64, data []byte, ext string, now time.Time) recognition.Image {
	img := recognition.Image{Data: data}
	userDir := filepath.Join(dir, strconv.FormatInt(userID, 10))
	path := filepath.Join(userDir, fmt.Sprintf("%d%s", now.UnixNano(), ext))
	if err := os.MkdirAll(userDir, 0755); err == nil && os.WriteFile(path, data, 0644) == nil {
		img.Path = path
	} else {
		log.Printf("Warning: failed to keep a copy of the photo for user %d", userID)
	}
	return img
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	session, err := b.sessions.GetActive(ctx, userID, b.now())
	if err != nil {
		log.Printf("Error loading session for user %d: %v", userID, err)
	}
	if session == nil {
		b.sendMarkdown(msg.Chat.ID, "📷 Send me a photo of your meal. See /help for commands.", nil)
		return
	}

	data, err := session.GetContextData()
	if err != nil {
		log.Printf("Warning: corrupt session %d: %v", session.ID, err)
		b.sessions.Delete(ctx, session.ID)
		return
	}

	switch session.SessionType {
	case SessionPortion:
		b.applyPortion(ctx, msg.Chat.ID, userID, session, data, msg.Text)
	case SessionSetup:
		b.continueSetup(ctx, msg.Chat.ID, 0, session, data, msg.Text)
	case SessionManual:
		b.addManual(ctx, msg.Chat.ID, userID, session, data, msg.Text)
	case SessionName:
		b.renameEntry(ctx, msg.Chat.ID, userID, session, data, msg.Text)
	}
}

func (b *Bot) addManual(ctx context.Context, chatID, userID int64, session *Session, data SessionContextData, input string) {
	analysis, err := b.app.AddManual(ctx, userID, data.Name, data.Barcode, input)
	if errors.Is(err, nutrition.ErrInvalidManual) {
		b.sendMarkdown(chatID, "✍️ Send four numbers per 100 g: kcal proteins fats carbs, e.g. `250 6 12 30`.", nil)
		return
	}
	if err != nil {
		b.sendError(chatID, "saving the values", err)
		return
	}

	if err := b.sessions.Delete(ctx, session.ID); err != nil {
		log.Printf("Warning: failed to close session %d: %v", session.ID, err)
	}
	b.sendMarkdown(chatID, "✅ *Saved*\n\n"+formatAnalysis(analysis), entryKeyboard(analysis.Entry))
}

func (b *Bot) renameEntry(ctx context.Context, chatID, userID int64, session *Session, data SessionContextData, input string) {
	analysis, err := b.app.RenameEntry(ctx, userID, data.EntryID, input)
	switch {
	case errors.Is(err, app.ErrUnknownDishName):
		b.sendMarkdown(chatID, "🤷 I don't know this dish. Try a simpler name, e.g. `pizza` or `borscht`.", nil)
		return
	case errors.Is(err, diary.ErrNotFound):
		b.sessions.Delete(ctx, session.ID)
		b.sendMarkdown(chatID, "❌ That analysis no longer exists.", nil)
		return
	case err != nil:
		b.sendError(chatID, "updating the dish", err)
		return
	}

	if err := b.sessions.Delete(ctx, session.ID); err != nil {
		log.Printf("Warning: failed to close session %d: %v", session.ID, err)
	}
	b.sendMarkdown(chatID, "✅ *Dish updated*\n\n"+formatAnalysis(analysis), entryKeyboard(analysis.Entry))
}

func (b *Bot) applyPortion(ctx context.Context, chatID, userID int64, session *Session, data SessionContextData, input string) {
	analysis, err := b.app.ApplyPortion(ctx, userID, data.EntryID, input)
	switch {
	case errors.Is(err, nutrition.ErrInvalidPortion):
		b.sendMarkdown(chatID, "⚖️ Send the weight as a whole number of grams, e.g. 150.", nil)
		return
	case errors.Is(err, diary.ErrNotFound):
		b.sessions.Delete(ctx, session.ID)
		b.sendMarkdown(chatID, "❌ That analysis no longer exists.", nil)
		return
	case err != nil:
		b.sendError(chatID, "updating the portion", err)
		return
	}

	if err := b.sessions.Delete(ctx, session.ID); err != nil {
		log.Printf("Warning: failed to close session %d: %v", session.ID, err)
	}
	b.sendMarkdown(chatID, "✅ *Portion updated*\n\n"+formatAnalysis(analysis), nil)
}

func (b *Bot) startSetup(ctx context.Context, chatID, userID int64) {
	if _, err := b.sessions.Start(ctx, userID, SessionSetup, stepGender, SessionContextData{}, sessionTTL, b.now()); err != nil {
		b.sendError(chatID, "starting setup", err)
		return
	}
	text, kb := setupPrompt(stepGender)
	b.sendMarkdown(chatID, text, kb)
}

// continueSetup handles one answer of the setup dialog. messageID is the
// message holding the keyboard when the answer came from a button.
func (b *Bot) continueSetup(ctx context.Context, chatID int64, messageID int, session *Session, data SessionContextData, input string) {
	next, draft, err := advanceSetup(session.State, data.Profile, input)
	if err != nil {
		text, kb := setupPrompt(session.State)
		b.sendMarkdown(chatID, "⚠️ "+escape(strings.TrimPrefix(err.Error(), norms.ErrInvalidProfile.Error()+": "))+"\n\n"+text, kb)
		return
	}

	if next == stepDone {
		b.sessions.Delete(ctx, session.ID)
		user, err := b.app.UpdateProfile(ctx, session.UserID, draft)
		if err != nil {
			b.sendError(chatID, "saving the profile", err)
			return
		}
		b.sendMarkdown(chatID, "✅ *Profile saved*\n\n"+formatProfile(user), nil)
		return
	}

	if err := b.sessions.Update(ctx, session.ID, next, SessionContextData{Profile: draft}); err != nil {
		b.sendError(chatID, "saving the answer", err)
		return
	}
	text, kb := setupPrompt(next)
	if messageID != 0 {
		b.editMarkdown(chatID, messageID, text, kb)
		return
	}
	b.sendMarkdown(chatID, text, kb)
}

func (b *Bot) handleNorms(ctx context.Context, chatID, userID int64, args string) {
	switch strings.ToLower(args) {
	case "":
		user, err := b.app.User(ctx, userID)
		if err != nil || user.Norms == nil {
			b.sendMarkdown(chatID, "🎯 No targets yet. Use /setup, or set them manually: /norms 2000 120 70 230", nil)
			return
		}
		b.sendMarkdown(chatID, formatProfile(user), nil)
		return
	case "reset":
		user, err := b.app.ResetNorms(ctx, userID)
		if err != nil {
			b.sendError(chatID, "resetting targets", err)
			return
		}
		b.sendMarkdown(chatID, "🔄 Targets reset.\n\n"+formatProfile(user), nil)
		return
	}

	d, err := norms.ParseDaily(args)
	if err != nil {
		b.sendMarkdown(chatID, "⚠️ Send four positive numbers: calories, proteins, fats and carbs, e.g. /norms 2000 120 70 230", nil)
		return
	}
	user, err := b.app.SetManualNorms(ctx, userID, d)
	if err != nil {
		b.sendError(chatID, "saving targets", err)
		return
	}
	b.sendMarkdown(chatID, "✅ Targets saved.\n\n"+formatProfile(user), nil)
}

// sendStats sends a day report, or edits messageID in place when it is set.
func (b *Bot) sendStats(ctx context.Context, chatID int64, messageID int, userID int64, day time.Time) {
	report, err := b.app.DayStats(ctx, userID, day)
	if err != nil {
		b.sendError(chatID, "loading statistics", err)
		return
	}
	text := formatDayReport(report)
	kb := statsKeyboard(report, b.now())
	if messageID != 0 {
		b.editMarkdown(chatID, messageID, text, kb)
		return
	}
	b.sendMarkdown(chatID, text, kb)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()
	userID := query.From.ID

	// Answer callback to remove spinner
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	if query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID

	action, value, ok := strings.Cut(query.Data, "|")
	if !ok {
		return
	}

	switch action {
	case callbackPortion:
		entryID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return
		}
		if _, err := b.sessions.Start(ctx, userID, SessionPortion, "awaiting", SessionContextData{EntryID: entryID}, sessionTTL, b.now()); err != nil {
			b.sendError(chatID, "starting portion update", err)
			return
		}
		b.sendMarkdown(chatID, "⚖️ Send the actual portion weight in grams, e.g. 150.", nil)
	case callbackRename:
		entryID, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return
		}
		if _, err := b.sessions.Start(ctx, userID, SessionName, "awaiting", SessionContextData{EntryID: entryID}, sessionTTL, b.now()); err != nil {
			b.sendError(chatID, "starting dish correction", err)
			return
		}
		b.sendMarkdown(chatID, "✏️ Send the name of the dish, e.g. `caesar salad`.", nil)
	case callbackSetup:
		session, err := b.sessions.GetActive(ctx, userID, b.now())
		if err != nil || session == nil || session.SessionType != SessionSetup {
			b.sendMarkdown(chatID, "⌛ The setup dialog has expired. Start again with /setup.", nil)
			return
		}
		data, err := session.GetContextData()
		if err != nil {
			b.sessions.Delete(ctx, session.ID)
			return
		}
		b.continueSetup(ctx, chatID, query.Message.MessageID, session, data, value)
	case callbackStats:
		day, err := time.ParseInLocation(database.DayLayout, value, time.Local)
		if err != nil {
			return
		}
		b.sendStats(ctx, chatID, query.Message.MessageID, userID, day)
	}
}

func (b *Bot) handleMetricsCommand(ctx context.Context, chatID int64) {
	usage, err := b.app.Usage(ctx, 7)
	if err != nil {
		b.api.Send(tgbotapi.NewMessage(chatID, "❌ Error fetching metrics."))
		return
	}

	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath))
	b.sendMarkdown(chatID, formatMetrics(usage, health), nil)
}

func (b *Bot) sendMarkdown(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message to %d: %v", chatID, err)
	}
}

func (b *Bot) editMarkdown(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = keyboard
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("Failed to edit message %d: %v", messageID, err)
	}
}

func (b *Bot) sendError(chatID int64, action string, err error) {
	log.Printf("Error %s: %v", action, err)
	b.sendMarkdown(chatID, fmt.Sprintf("❌ *Error %s.* Please try again later.", action), nil)
}
