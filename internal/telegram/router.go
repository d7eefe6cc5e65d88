package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/imoredv/time-tracker-bot/internal/domain"
	"github.com/imoredv/time-tracker-bot/internal/stats"
	"github.com/imoredv/time-tracker-bot/internal/store"
	"github.com/imoredv/time-tracker-bot/internal/timezone"
	"github.com/imoredv/time-tracker-bot/internal/tracker"
)

// Pending state keys used in conversational flows.
const (
	pendingQuietStart = "await_quiet_start"
	pendingQuietEnd   = "await_quiet_end"
	pendingTZ         = "await_tz_text"
	pendingRename     = "await_rename_text"
)

// pendingInput tracks a multi-step text flow for one chat. The quiet
// time flow captures the start boundary while waiting for the end; the
// rename flow remembers which activity is being renamed.
type pendingInput struct {
	kind       string
	quietStart string
	renameType domain.ActivityType
}

// CacheInvalidator drops scheduler state for a user after a settings
// change. Implemented by scheduler.Scheduler.
type CacheInvalidator interface {
	Invalidate(userID int64)
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot     *tgbotapi.BotAPI
	log     *zap.Logger
	repo    store.Repo
	tracker *tracker.Tracker
	agg     *stats.Aggregator
	zones   *timezone.Resolver
	inv     CacheInvalidator

	state map[int64]pendingInput
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, repo store.Repo, tr *tracker.Tracker, agg *stats.Aggregator, zones *timezone.Resolver) *Router {
	return &Router{
		bot:     bot,
		log:     log,
		repo:    repo,
		tracker: tr,
		agg:     agg,
		zones:   zones,
		state:   make(map[int64]pendingInput),
	}
}

// SetInvalidator attaches the scheduler cache hook; the scheduler is
// constructed after the router because it sends through it.
func (r *Router) SetInvalidator(inv CacheInvalidator) { r.inv = inv }

func (r *Router) invalidate(userID int64) {
	if r.inv != nil {
		r.inv.Invalidate(userID)
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, p pendingInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = p
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) pendingInput {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		text := strings.TrimSpace(msg.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			r.handleStart(ctx, msg)
		case strings.HasPrefix(text, "/help"):
			r.sendText(chatID, helpText)
		case strings.HasPrefix(text, "/status"):
			r.handleStatus(ctx, chatID)
		case strings.HasPrefix(text, "/time"):
			r.handleTime(ctx, chatID)
		case strings.HasPrefix(text, "/test5"):
			r.handleTestInterval(ctx, chatID)
		default:
			r.handleButton(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		data := cb.Data
		chatID := cb.Message.Chat.ID

		switch {
		case strings.HasPrefix(data, "interval:"):
			r.handleIntervalCallback(ctx, chatID, data, cb.ID)
		case data == "toggle_notif":
			r.handleToggleNotifications(ctx, chatID, cb.ID)
		case data == "toggle_quiet":
			r.handleToggleQuiet(ctx, chatID, cb.ID)
		case data == "quiet_custom":
			r.askQuietStart(chatID, cb.ID)
		case data == "edit:reset":
			r.handleEditReset(ctx, chatID, cb.ID)
		case strings.HasPrefix(data, "edit:"):
			r.askRename(chatID, strings.TrimPrefix(data, "edit:"), cb.ID)
		case data == "tz:auto":
			r.handleTimezoneAuto(ctx, chatID, cb.ID)
		case data == "tz:custom":
			r.askCustomTimezone(chatID, cb.ID)
		case strings.HasPrefix(data, "tz:"):
			r.handleTimezoneCallback(ctx, chatID, data, cb.ID)
		case data == "clear:confirm":
			r.handleClearConfirm(ctx, chatID, cb.ID)
		case data == "clear:cancel":
			r.answerCallback(cb.ID, "Kept everything")
		default:
			// Unknown callback — ignore silently
		}
		return
	}
}

// handleButton dispatches reply-keyboard presses and free-form input.
func (r *Router) handleButton(ctx context.Context, chatID int64, text string) {
	if activity, ok := labelToActivity[text]; ok {
		r.handleActivity(ctx, chatID, activity)
		return
	}

	switch text {
	case btnStats:
		r.sendWithKeyboard(chatID, "Which period?", statsKeyboard())
	case btnSettings:
		r.sendWithKeyboard(chatID, "What do you want to configure?", settingsKeyboard())
	case btnBack:
		r.sendWithKeyboard(chatID, "Main menu", mainKeyboard())
	case btnStatsDay, btnStatsWeek, btnStatsMonth, btnStatsYear, btnStats24h:
		r.handleStats(ctx, chatID, text)
	case btnStatsTimeline:
		r.handleTimeline(ctx, chatID)
	case btnSetReminders:
		r.handleReminderSettings(ctx, chatID)
	case btnSetQuiet:
		r.handleQuietSettings(ctx, chatID)
	case btnSetTimezone:
		r.handleTimezoneSettings(ctx, chatID)
	case btnSetActivities:
		r.handleEditActivities(ctx, chatID)
	case btnClearData:
		r.sendInline(chatID, "Delete all tracked activities and reset settings?", clearConfirmKeyboard())
	default:
		r.handleFreeForm(ctx, chatID, text)
	}
}

// --- Sending helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendWithKeyboard(chatID int64, text string, kb tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	_, _ = r.bot.Send(msg)
}

func (r *Router) sendInline(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	_, _ = r.bot.Send(msg)
}

func (r *Router) answerCallback(id, text string) {
	if _, err := r.bot.Request(tgbotapi.NewCallback(id, text)); err != nil {
		r.log.Debug("answer callback failed", zap.Error(err))
	}
}

// SendReminder delivers a scheduler ping with the interval keyboard.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendReminder(userID int64, text string) error {
	msg := tgbotapi.NewMessage(userID, text+"\n\nRemind in:")
	msg.ReplyMarkup = reminderIntervalKeyboard()
	_, err := r.bot.Send(msg)
	return err
}
