package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/imoredv/time-tracker-bot/internal/domain"
)

const tryAgainText = "Something went wrong. Please try again."

// ensureUser makes sure a user row exists; if not, creates it with defaults.
func (r *Router) ensureUser(ctx context.Context, chatID int64, from *tgbotapi.User) (*domain.User, error) {
	u, err := r.repo.GetUser(ctx, chatID)
	if err == nil {
		return u, nil
	}

	u = &domain.User{
		ID:        chatID,
		TZ:        r.zones.DefaultName(),
		CreatedAt: time.Now().UTC(),
	}
	if from != nil {
		u.Username = from.UserName
		u.FirstName = from.FirstName
		u.LastName = from.LastName
	}
	if err := r.repo.UpsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, err := r.ensureUser(ctx, chatID, msg.From); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	r.sendWithKeyboard(chatID, startText, mainKeyboard())
}

func (r *Router) handleStatus(ctx context.Context, chatID int64) {
	u, err := r.ensureUser(ctx, chatID, nil)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}

	open, err := r.tracker.Current(ctx, chatID)
	if err != nil {
		r.log.Error("read current activity failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	if open == nil {
		r.sendText(chatID, "❓ Nothing is being tracked right now.")
		return
	}

	name, emoji := r.display(ctx, chatID, open.ActivityType)
	startLocal := open.StartTime.In(r.zones.Resolve(u.TZ)).Format("15:04")
	elapsed := domain.FormatDuration(open.Elapsed(time.Now()))
	r.sendText(chatID, fmt.Sprintf("%s %s since %s\n⏱ %s", emoji, name, startLocal, elapsed))
}

func (r *Router) handleTime(ctx context.Context, chatID int64) {
	u, err := r.ensureUser(ctx, chatID, nil)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	r.sendText(chatID, fmt.Sprintf("🕒 %s (%s, %s)",
		r.zones.CurrentTime(u.TZ), u.TZ, r.zones.OffsetLabel(u.TZ)))
}

// handleTestInterval switches the user to 5-second test reminders.
func (r *Router) handleTestInterval(ctx context.Context, chatID int64) {
	if _, err := r.ensureUser(ctx, chatID, nil); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	r.setInterval(ctx, chatID, 5)
	r.sendText(chatID, "🧪 Test mode: reminders every 5 seconds. /start menu → Settings to turn it off.")
}

// --- Activities ---

func (r *Router) handleActivity(ctx context.Context, chatID int64, activity domain.ActivityType) {
	if _, err := r.ensureUser(ctx, chatID, nil); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}

	res, err := r.tracker.Start(ctx, chatID, activity)
	if err != nil {
		r.log.Error("start activity failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}

	name, emoji := r.display(ctx, chatID, activity)
	switch {
	case res.AlreadyRunning:
		elapsed := domain.FormatDuration(res.Current.Elapsed(time.Now()))
		r.sendText(chatID, fmt.Sprintf("%s %s is already running — %s so far.", emoji, name, elapsed))
	case res.Completed != nil:
		prevName, prevEmoji := r.display(ctx, chatID, res.Completed.ActivityType)
		r.sendText(chatID, fmt.Sprintf("✅ %s %s: %s\n▶️ Now tracking %s %s",
			prevEmoji, prevName, domain.FormatDuration(res.Completed.DurationSec), emoji, name))
	default:
		r.sendText(chatID, fmt.Sprintf("▶️ Now tracking %s %s", emoji, name))
	}
}

// display resolves a user's custom name/emoji for an activity, falling
// back to the defaults on storage trouble.
func (r *Router) display(ctx context.Context, chatID int64, t domain.ActivityType) (string, string) {
	customs, err := r.repo.GetCustomActivities(ctx, chatID)
	if err != nil {
		r.log.Debug("read custom activities failed", zap.Error(err))
		return domain.Display(t, nil)
	}
	return displayFor(t, customs)
}

// --- Stats ---

func (r *Router) handleStats(ctx context.Context, chatID int64, button string) {
	u, err := r.ensureUser(ctx, chatID, nil)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	loc := r.zones.Resolve(u.TZ)

	var (
		title string
		sums  map[domain.ActivityType]int64
	)
	switch button {
	case btnStatsDay:
		title = "📅 Today"
		sums, err = r.agg.Day(ctx, chatID, loc)
	case btnStatsWeek:
		title = "📆 Last 7 days"
		sums, err = r.agg.Days(ctx, chatID, loc, 7)
	case btnStatsMonth:
		title = "🗓 Last 30 days"
		sums, err = r.agg.Days(ctx, chatID, loc, 30)
	case btnStatsYear:
		title = "📈 Last 365 days"
		sums, err = r.agg.Days(ctx, chatID, loc, 365)
	case btnStats24h:
		title = "🕐 Last 24 hours"
		sums, err = r.agg.Rolling24h(ctx, chatID)
	}
	if err != nil {
		r.log.Error("stats query failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}

	open, err := r.tracker.Current(ctx, chatID)
	if err != nil {
		r.log.Debug("read current activity failed", zap.Error(err))
	}
	customs, err := r.repo.GetCustomActivities(ctx, chatID)
	if err != nil {
		r.log.Debug("read custom activities failed", zap.Error(err))
	}

	text := statsMessage(title, sums, open, customs)
	if graph := barGraph(sums); graph != "" {
		text += "\n\n" + graph
	}
	r.sendText(chatID, text)
}

func (r *Router) handleTimeline(ctx context.Context, chatID int64) {
	u, err := r.ensureUser(ctx, chatID, nil)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}

	loc := r.zones.Resolve(u.TZ)
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	buckets, err := r.agg.Timeline(ctx, chatID, dayStart)
	if err != nil {
		r.log.Error("timeline query failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	r.sendText(chatID, "📊 Today, 30-minute slots:\n\n"+timelineGraph(buckets))
}

// --- Settings ---

func (r *Router) settings(ctx context.Context, chatID int64) (*domain.Settings, error) {
	if _, err := r.ensureUser(ctx, chatID, nil); err != nil {
		return nil, err
	}
	return r.repo.GetSettings(ctx, chatID)
}

func (r *Router) handleReminderSettings(ctx context.Context, chatID int64) {
	s, err := r.settings(ctx, chatID)
	if err != nil {
		r.log.Error("read settings failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	state := "🔔 on"
	if !s.NotificationsEnabled {
		state = "🔕 off"
	}
	text := fmt.Sprintf("Reminders: %s, every %s", state, formatInterval(s.ReminderIntervalSec))
	r.sendInline(chatID, text, intervalKeyboard(s.ReminderIntervalSec, s.NotificationsEnabled))
}

func (r *Router) handleQuietSettings(ctx context.Context, chatID int64) {
	s, err := r.settings(ctx, chatID)
	if err != nil {
		r.log.Error("read settings failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	state := "on"
	if !s.QuietHoursEnabled {
		state = "off"
	}
	text := fmt.Sprintf("🌙 Quiet time is %s: no reminders %s–%s (your local time).",
		state, s.QuietStart, s.QuietEnd)
	r.sendInline(chatID, text, quietKeyboard(s))
}

func (r *Router) handleTimezoneSettings(ctx context.Context, chatID int64) {
	u, err := r.ensureUser(ctx, chatID, nil)
	if err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	text := fmt.Sprintf("🌍 Your timezone: %s (%s), local time %s",
		u.TZ, r.zones.OffsetLabel(u.TZ), r.zones.CurrentTime(u.TZ))
	r.sendInline(chatID, text, timezoneKeyboard())
}

// setInterval persists the new interval and invalidates the scheduler
// cache so the next tick re-anchors at its own time.
func (r *Router) setInterval(ctx context.Context, chatID int64, sec int) bool {
	s, err := r.settings(ctx, chatID)
	if err != nil {
		r.log.Error("read settings failed", zap.Error(err))
		return false
	}
	s.ReminderIntervalSec = sec
	if err := r.repo.SaveSettings(ctx, *s); err != nil {
		r.log.Error("save settings failed", zap.Error(err))
		return false
	}
	r.invalidate(chatID)
	return true
}

func (r *Router) handleIntervalCallback(ctx context.Context, chatID int64, data, cbID string) {
	sec, err := strconv.Atoi(strings.TrimPrefix(data, "interval:"))
	if err != nil || sec < 0 {
		r.answerCallback(cbID, "Bad interval")
		return
	}
	if !r.setInterval(ctx, chatID, sec) {
		r.answerCallback(cbID, tryAgainText)
		return
	}
	if sec == 0 {
		r.answerCallback(cbID, "Reminders off")
		r.sendText(chatID, "🔕 Reminders disabled.")
		return
	}
	r.answerCallback(cbID, "Saved")
	r.sendText(chatID, fmt.Sprintf("⏲ Reminders every %s.", formatInterval(sec)))
}

func (r *Router) handleToggleNotifications(ctx context.Context, chatID int64, cbID string) {
	s, err := r.settings(ctx, chatID)
	if err != nil {
		r.log.Error("read settings failed", zap.Error(err))
		r.answerCallback(cbID, tryAgainText)
		return
	}
	s.NotificationsEnabled = !s.NotificationsEnabled
	if err := r.repo.SaveSettings(ctx, *s); err != nil {
		r.log.Error("save settings failed", zap.Error(err))
		r.answerCallback(cbID, tryAgainText)
		return
	}
	r.invalidate(chatID)

	if s.NotificationsEnabled {
		r.answerCallback(cbID, "Notifications on")
	} else {
		r.answerCallback(cbID, "Notifications off")
	}
	r.handleReminderSettings(ctx, chatID)
}

func (r *Router) handleToggleQuiet(ctx context.Context, chatID int64, cbID string) {
	s, err := r.settings(ctx, chatID)
	if err != nil {
		r.log.Error("read settings failed", zap.Error(err))
		r.answerCallback(cbID, tryAgainText)
		return
	}
	s.QuietHoursEnabled = !s.QuietHoursEnabled
	if err := r.repo.SaveSettings(ctx, *s); err != nil {
		r.log.Error("save settings failed", zap.Error(err))
		r.answerCallback(cbID, tryAgainText)
		return
	}

	if s.QuietHoursEnabled {
		r.answerCallback(cbID, "Quiet time on")
	} else {
		r.answerCallback(cbID, "Quiet time off")
	}
	r.handleQuietSettings(ctx, chatID)
}

// --- Quiet time custom input (two-step HH:MM flow) ---

func (r *Router) askQuietStart(chatID int64, cbID string) {
	r.answerCallback(cbID, "")
	r.setPending(chatID, pendingInput{kind: pendingQuietStart})
	r.sendText(chatID, "Send the quiet time start as HH:MM (e.g. 22:00).")
}

func (r *Router) askCustomTimezone(chatID int64, cbID string) {
	r.answerCallback(cbID, "")
	r.setPending(chatID, pendingInput{kind: pendingTZ})
	r.sendText(chatID, "Send an IANA timezone name (e.g. Europe/Samara).")
}

// handleFreeForm consumes text awaited by a pending flow; anything else
// gets a gentle nudge toward the keyboard.
func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	p := r.getPending(chatID)
	switch p.kind {
	case pendingQuietStart:
		m, err := domain.ParseClock(text)
		if err != nil {
			r.sendText(chatID, "That is not HH:MM. Try again, e.g. 22:00.")
			return
		}
		r.setPending(chatID, pendingInput{kind: pendingQuietEnd, quietStart: domain.FormatClock(m)})
		r.sendText(chatID, "Now send the quiet time end as HH:MM (e.g. 06:00).")

	case pendingQuietEnd:
		m, err := domain.ParseClock(text)
		if err != nil {
			r.sendText(chatID, "That is not HH:MM. Try again, e.g. 06:00.")
			return
		}
		r.clearPending(chatID)

		s, err := r.settings(ctx, chatID)
		if err != nil {
			r.log.Error("read settings failed", zap.Error(err))
			r.sendText(chatID, tryAgainText)
			return
		}
		s.QuietStart = p.quietStart
		s.QuietEnd = domain.FormatClock(m)
		if err := r.repo.SaveSettings(ctx, *s); err != nil {
			r.log.Error("save settings failed", zap.Error(err))
			r.sendText(chatID, tryAgainText)
			return
		}
		r.sendText(chatID, fmt.Sprintf("🌙 Quiet time set: %s–%s.", s.QuietStart, s.QuietEnd))

	case pendingTZ:
		if !r.zones.Validate(text) {
			r.sendText(chatID, "Unknown timezone. Use an IANA name like Europe/Samara.")
			return
		}
		r.clearPending(chatID)
		r.saveTimezone(ctx, chatID, text)

	case pendingRename:
		r.clearPending(chatID)
		emoji, name := splitRename(text)
		if name == "" {
			r.sendText(chatID, "The new name came out empty. Try again from Settings → ✏️ Activities.")
			return
		}
		if err := r.repo.SetCustomActivity(ctx, domain.CustomActivity{
			UserID:       chatID,
			ActivityType: p.renameType,
			Name:         name,
			Emoji:        emoji,
		}); err != nil {
			r.log.Error("save custom activity failed", zap.Error(err))
			r.sendText(chatID, tryAgainText)
			return
		}
		shownName, shownEmoji := r.display(ctx, chatID, p.renameType)
		r.sendText(chatID, fmt.Sprintf("✏️ Saved: %s %s", shownEmoji, shownName))

	default:
		r.sendText(chatID, "Use the keyboard below, or /help.")
	}
}

// --- Activity renaming ---

func (r *Router) handleEditActivities(ctx context.Context, chatID int64) {
	if _, err := r.ensureUser(ctx, chatID, nil); err != nil {
		r.log.Error("ensureUser failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	customs, err := r.repo.GetCustomActivities(ctx, chatID)
	if err != nil {
		r.log.Error("read custom activities failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	r.sendInline(chatID, "✏️ Tap an activity to rename it.", editActivitiesKeyboard(customs))
}

func (r *Router) askRename(chatID int64, raw, cbID string) {
	t, err := domain.ParseActivity(raw)
	if err != nil {
		r.answerCallback(cbID, "Unknown activity")
		return
	}
	r.answerCallback(cbID, "")
	r.setPending(chatID, pendingInput{kind: pendingRename, renameType: t})
	r.sendText(chatID, "Send the new name. Put an emoji first to change the icon too, e.g. 🧠 Deep work.")
}

func (r *Router) handleEditReset(ctx context.Context, chatID int64, cbID string) {
	for _, t := range domain.AllActivities() {
		if err := r.repo.DeleteCustomActivity(ctx, chatID, t); err != nil {
			r.log.Error("delete custom activity failed", zap.Error(err))
			r.answerCallback(cbID, tryAgainText)
			return
		}
	}
	r.answerCallback(cbID, "Defaults restored")
	r.handleEditActivities(ctx, chatID)
}

// splitRename separates an optional leading emoji from the new name.
// A first token that starts with a letter or digit is part of the name.
func splitRename(text string) (emoji, name string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", ""
	}
	first := []rune(fields[0])[0]
	if len(fields) > 1 && !unicode.IsLetter(first) && !unicode.IsDigit(first) {
		return fields[0], strings.Join(fields[1:], " ")
	}
	return "", strings.Join(fields, " ")
}

// --- Timezone ---

func (r *Router) saveTimezone(ctx context.Context, chatID int64, tz string) {
	if err := r.repo.SetTimezone(ctx, chatID, tz); err != nil {
		r.log.Error("set timezone failed", zap.Error(err))
		r.sendText(chatID, tryAgainText)
		return
	}
	r.sendText(chatID, fmt.Sprintf("🌍 Timezone set to %s, local time %s.",
		tz, r.zones.CurrentTime(tz)))
}

func (r *Router) handleTimezoneCallback(ctx context.Context, chatID int64, data, cbID string) {
	tz := strings.TrimPrefix(data, "tz:")
	if !r.zones.Validate(tz) {
		r.answerCallback(cbID, "Unknown timezone")
		return
	}
	r.answerCallback(cbID, "Saved")
	r.saveTimezone(ctx, chatID, tz)
}

func (r *Router) handleTimezoneAuto(ctx context.Context, chatID int64, cbID string) {
	r.answerCallback(cbID, "Detecting…")
	tz := r.zones.DetectByIP(ctx)
	r.saveTimezone(ctx, chatID, tz)
}

// --- Clear data ---

func (r *Router) handleClearConfirm(ctx context.Context, chatID int64, cbID string) {
	if err := r.repo.ClearUserData(ctx, chatID); err != nil {
		r.log.Error("clear user data failed", zap.Error(err))
		r.answerCallback(cbID, tryAgainText)
		return
	}
	r.invalidate(chatID)
	r.answerCallback(cbID, "Done")
	r.sendWithKeyboard(chatID, "🗑 All activity data deleted, settings reset.", mainKeyboard())
}

// formatInterval renders an interval in the largest natural unit.
func formatInterval(sec int) string {
	switch {
	case sec == 0:
		return "off"
	case sec < 60:
		return fmt.Sprintf("%d sec", sec)
	case sec < 3600:
		return fmt.Sprintf("%d min", sec/60)
	default:
		return fmt.Sprintf("%d h", sec/3600)
	}
}
