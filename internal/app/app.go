package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"nutrition-bot/internal/barcode"
	"nutrition-bot/internal/diary"
	"nutrition-bot/internal/metrics"
	"nutrition-bot/internal/norms"
	"nutrition-bot/internal/nutrition"
	"nutrition-bot/internal/profile"
	"nutrition-bot/internal/recognition"
	"nutrition-bot/internal/subscription"
)

// Recognizer turns one submission into a nutrition result.
type Recognizer interface {
	Process(ctx context.Context, sub recognition.Submission) (recognition.Result, error)
}

// ProductStore keeps products the user described by hand.
type ProductStore interface {
	Put(p barcode.Product) error
}

// NameLookup resolves a free-text dish name to per-100g values.
type NameLookup interface {
	Lookup(raw string) nutrition.Record
}

// ErrUnknownDishName is returned when a corrected dish name matches nothing.
var ErrUnknownDishName = errors.New("dish name not found in the food table")

// App holds the application's dependencies.
type App struct {
	recognizer Recognizer
	diary      *diary.Repository
	profiles   *profile.Store
	quota      *subscription.Store
	metrics    *metrics.Store
	products   ProductStore
	names      NameLookup
	now        func() time.Time
}

// Option customizes an App.
type Option func(*App)

// WithProductStore makes manual values for a barcode available to later lookups.
func WithProductStore(ps ProductStore) Option {
	return func(a *App) {
		a.products = ps
	}
}

// WithNameLookup enables dish name corrections.
func WithNameLookup(l NameLookup) Option {
	return func(a *App) {
		a.names = l
	}
}

// NewApp creates and initializes a new App instance.
func NewApp(
	recognizer Recognizer,
	diaryRepo *diary.Repository,
	profiles *profile.Store,
	quota *subscription.Store,
	metricsStore *metrics.Store,
	opts ...Option,
) *App {
	a := &App{
		recognizer: recognizer,
		diary:      diaryRepo,
		profiles:   profiles,
		quota:      quota,
		metrics:    metricsStore,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analysis is what the user sees after sending a photo.
type Analysis struct {
	Result recognition.Result
	// Entry is nil when nothing was logged: no food, an unresolved barcode or no signal at all.
	Entry      *diary.Entry
	Norms      *norms.Daily
	Indicators *norms.Indicators
	Insights   []string
	Quota      subscription.Quota
}

// AnalyzeImage checks the quota, runs recognition and logs a found record to the diary.
func (a *App) AnalyzeImage(ctx context.Context, sub recognition.Submission) (Analysis, error) {
	now := a.now()
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = now
	}

	user, err := a.profiles.Ensure(ctx, sub.UserID, "", "", now)
	if err != nil {
		return Analysis{}, err
	}

	quota, err := a.quota.Check(ctx, sub.UserID, now)
	if err != nil {
		return Analysis{Quota: quota}, err
	}

	res, err := a.recognizer.Process(ctx, sub)
	if err != nil {
		return Analysis{}, fmt.Errorf("failed to process image: %w", err)
	}
	a.recordMetas(ctx, res)

	out := Analysis{Result: res, Quota: quota, Norms: user.Norms}
	if !res.Found() {
		return out, nil
	}

	entry, err := a.diary.Save(ctx, sub.UserID, res.Record, sub.ReceivedAt, sub.Image.Path)
	if err != nil {
		return Analysis{}, err
	}
	out.Entry = &entry
	out.Quota.Used++
	a.contextualize(&out, entry.Record)
	return out, nil
}

func (a *App) recordMetas(ctx context.Context, res recognition.Result) {
	if a.metrics == nil {
		return
	}
	for _, meta := range res.Metas {
		if err := a.metrics.RecordMeta(ctx, meta); err != nil {
			log.Printf("Warning: failed to record metrics for %s: %v", meta.AgentName, err)
		}
	}
}

func (a *App) contextualize(out *Analysis, rec nutrition.Record) {
	out.Insights = norms.Insights(rec.Macros())
	if out.Norms != nil {
		ind := norms.Compare(rec.Macros(), *out.Norms)
		out.Indicators = &ind
	}
}

// ApplyPortion rescales a logged entry to the weight the user typed. The stored
// original is always the base, so repeated corrections do not drift.
func (a *App) ApplyPortion(ctx context.Context, userID, entryID int64, input string) (Analysis, error) {
	grams, err := nutrition.ParsePortion(input)
	if err != nil {
		return Analysis{}, err
	}

	entry, err := a.diary.UpdatePortion(ctx, userID, entryID, float64(grams))
	if err != nil {
		return Analysis{}, err
	}

	out := Analysis{Entry: &entry}
	user, err := a.profiles.Get(ctx, userID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return Analysis{}, err
	}
	out.Norms = user.Norms
	a.contextualize(&out, entry.Record)
	return out, nil
}

// AddManual logs per-100g values the user typed, usually after a barcode could
// not be resolved. With a barcode and a product store, the values are also
// cached so the next scan of the same product resolves directly.
func (a *App) AddManual(ctx context.Context, userID int64, name, code, input string) (Analysis, error) {
	if name == nutrition.UnknownProductName {
		name = ""
	}
	if name == "" && code != "" {
		name = "Product " + code
	}
	rec, err := nutrition.ParseManual(name, input)
	if err != nil {
		return Analysis{}, err
	}
	rec.Barcode = code

	now := a.now()
	user, err := a.profiles.Ensure(ctx, userID, "", "", now)
	if err != nil {
		return Analysis{}, err
	}

	entry, err := a.diary.Save(ctx, userID, rec, now, "")
	if err != nil {
		return Analysis{}, err
	}

	if code != "" && a.products != nil {
		err := a.products.Put(barcode.Product{
			Barcode:       code,
			Name:          rec.Name,
			Macros:        rec.Macros(),
			PortionWeight: nutrition.DefaultPortionWeight,
			HasMacros:     true,
			Source:        string(nutrition.SourceManual),
		})
		if err != nil {
			log.Printf("Warning: failed to cache manual product %s: %v", code, err)
		}
	}

	out := Analysis{
		Result: recognition.Result{Kind: recognition.KindManual, Record: entry.Record},
		Entry:  &entry,
		Norms:  user.Norms,
	}
	a.contextualize(&out, entry.Record)
	return out, nil
}

// RenameEntry replaces a logged entry with the food table values for name,
// scaled to the entry's current portion. Names the table does not know leave
// the entry untouched and return ErrUnknownDishName.
func (a *App) RenameEntry(ctx context.Context, userID, entryID int64, name string) (Analysis, error) {
	name = strings.TrimSpace(name)
	if a.names == nil || name == "" {
		return Analysis{}, ErrUnknownDishName
	}

	entry, err := a.diary.Get(ctx, userID, entryID)
	if err != nil {
		return Analysis{}, err
	}

	per100g := a.names.Lookup(name)
	if per100g.Estimated {
		return Analysis{}, ErrUnknownDishName
	}

	rec, err := nutrition.Rescale(per100g, entry.Record.Basis())
	if err != nil {
		return Analysis{}, err
	}
	entry, err = a.diary.Replace(ctx, userID, entryID, rec)
	if err != nil {
		return Analysis{}, err
	}

	out := Analysis{
		Result: recognition.Result{Kind: recognition.KindName, Record: entry.Record},
		Entry:  &entry,
	}
	user, err := a.profiles.Get(ctx, userID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return Analysis{}, err
	}
	out.Norms = user.Norms
	a.contextualize(&out, entry.Record)
	return out, nil
}

// UpdateProfile saves a complete profile and returns the user with fresh targets.
func (a *App) UpdateProfile(ctx context.Context, userID int64, p norms.Profile) (profile.User, error) {
	if _, err := a.profiles.Ensure(ctx, userID, "", "", a.now()); err != nil {
		return profile.User{}, err
	}
	return a.profiles.UpdateProfile(ctx, userID, p)
}

// SetManualNorms pins the user's targets.
func (a *App) SetManualNorms(ctx context.Context, userID int64, d norms.Daily) (profile.User, error) {
	if _, err := a.profiles.Ensure(ctx, userID, "", "", a.now()); err != nil {
		return profile.User{}, err
	}
	return a.profiles.SetManualNorms(ctx, userID, d)
}

// ResetNorms returns the user to computed targets.
func (a *App) ResetNorms(ctx context.Context, userID int64) (profile.User, error) {
	return a.profiles.ResetNorms(ctx, userID)
}

// RegisterUser records the user on first contact.
func (a *App) RegisterUser(ctx context.Context, userID int64, username, firstName string) (profile.User, error) {
	return a.profiles.Ensure(ctx, userID, username, firstName, a.now())
}

// User returns the stored user.
func (a *App) User(ctx context.Context, userID int64) (profile.User, error) {
	return a.profiles.Get(ctx, userID)
}

// DayReport is the daily statistics view.
type DayReport struct {
	Stats diary.DayStats
	Norms *norms.Daily
	// Earliest is the first day with data; Prev navigation stops there.
	Earliest    time.Time
	HasEarliest bool
	Progress    *norms.Indicators
}

// DayStats aggregates one day and compares it with the user's targets.
func (a *App) DayStats(ctx context.Context, userID int64, day time.Time) (DayReport, error) {
	stats, err := a.diary.DayStats(ctx, userID, day)
	if err != nil {
		return DayReport{}, err
	}
	report := DayReport{Stats: stats}

	if report.Earliest, report.HasEarliest, err = a.diary.EarliestDay(ctx, userID); err != nil {
		return DayReport{}, err
	}

	user, err := a.profiles.Get(ctx, userID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return DayReport{}, err
	}
	if user.Norms != nil {
		report.Norms = user.Norms
		ind := norms.Compare(stats.Total.Macros, *user.Norms)
		report.Progress = &ind
	}
	return report, nil
}

// Overall sums every logged analysis.
func (a *App) Overall(ctx context.Context, userID int64) (diary.Totals, error) {
	return a.diary.Overall(ctx, userID)
}

// Quota reports the free-tier state.
func (a *App) Quota(ctx context.Context, userID int64) (subscription.Quota, error) {
	return a.quota.Quota(ctx, userID, a.now())
}

// Subscribe activates a paid period.
func (a *App) Subscribe(ctx context.Context, userID int64, months int, paymentID string) (subscription.Subscription, error) {
	return a.quota.Add(ctx, userID, months, paymentID, a.now())
}

// Usage returns external call totals for the last days.
func (a *App) Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	if a.metrics == nil {
		return nil, nil
	}
	return a.metrics.GetDailyUsage(ctx, days, a.now())
}

// CleanupMetrics deletes metrics older than days.
func (a *App) CleanupMetrics(ctx context.Context, days int) (int64, error) {
	if a.metrics == nil {
		return 0, nil
	}
	return a.metrics.Cleanup(ctx, days, a.now())
}
