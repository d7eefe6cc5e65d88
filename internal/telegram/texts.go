package telegram

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/imoredv/time-tracker-bot/internal/domain"
	"github.com/imoredv/time-tracker-bot/internal/stats"
)

// UI texts in English
const (
	startText = "👋 I am a time tracker.\n\n" +
		"Tap an activity to start tracking it; tapping another one stops the previous.\n" +
		"I will ping you now and then so no hour goes missing.\n\n" +
		"📊 Stats — totals for day/week/month/year\n" +
		"⚙️ Settings — reminders, quiet time, timezone"

	helpText = "Commands:\n" +
		"/start — main menu\n" +
		"/status — current activity\n" +
		"/time — your local time\n" +
		"/test5 — 5-second test reminders\n\n" +
		"Everything else is buttons."

	btnStats    = "📊 Stats"
	btnSettings = "⚙️ Settings"
	btnBack     = "⬅️ Back"

	btnStatsDay      = "📅 Today"
	btnStatsWeek     = "📆 Week"
	btnStatsMonth    = "🗓 Month"
	btnStatsYear     = "📈 Year"
	btnStats24h      = "🕐 Last 24h"
	btnStatsTimeline = "📊 Timeline"

	btnSetReminders  = "🔔 Reminders"
	btnSetQuiet      = "🌙 Quiet time"
	btnSetTimezone   = "🌍 Timezone"
	btnSetActivities = "✏️ Activities"
	btnClearData     = "🗑 Clear data"
)

// activityLabel is the reply-keyboard caption for an activity type.
func activityLabel(t domain.ActivityType) string {
	info := t.Info()
	return info.Emoji + " " + info.Name
}

// labelToActivity maps keyboard captions back to activity types.
var labelToActivity = func() map[string]domain.ActivityType {
	m := make(map[string]domain.ActivityType)
	for _, t := range domain.AllActivities() {
		m[activityLabel(t)] = t
	}
	return m
}()

// mainKeyboard is the persistent reply keyboard: activities in pairs,
// then stats and settings.
func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	all := domain.AllActivities()
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(all); i += 2 {
		row := []tgbotapi.KeyboardButton{tgbotapi.NewKeyboardButton(activityLabel(all[i]))}
		if i+1 < len(all) {
			row = append(row, tgbotapi.NewKeyboardButton(activityLabel(all[i+1])))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnStats),
		tgbotapi.NewKeyboardButton(btnSettings),
	))
	return tgbotapi.NewReplyKeyboard(rows...)
}

func statsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStatsDay),
			tgbotapi.NewKeyboardButton(btnStatsWeek),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStatsMonth),
			tgbotapi.NewKeyboardButton(btnStatsYear),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStats24h),
			tgbotapi.NewKeyboardButton(btnStatsTimeline),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBack),
		),
	)
}

func settingsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSetReminders),
			tgbotapi.NewKeyboardButton(btnSetQuiet),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSetTimezone),
			tgbotapi.NewKeyboardButton(btnSetActivities),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnClearData),
			tgbotapi.NewKeyboardButton(btnBack),
		),
	)
}

// editActivitiesKeyboard lists activities for renaming, with the
// user's current captions, plus a reset row.
func editActivitiesKeyboard(customs map[domain.ActivityType]domain.CustomActivity) tgbotapi.InlineKeyboardMarkup {
	all := domain.AllActivities()
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(all); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for j := i; j < i+2 && j < len(all); j++ {
			name, emoji := displayFor(all[j], customs)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(emoji+" "+name, "edit:"+string(all[j])))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("↩️ Reset to defaults", "edit:reset"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// intervalKeyboard offers reminder intervals; the current one is marked.
func intervalKeyboard(currentSec int, notifEnabled bool) tgbotapi.InlineKeyboardMarkup {
	presets := []struct {
		label string
		sec   int
	}{
		{"5 sec (test)", 5},
		{"15 min", 900},
		{"30 min", 1800},
		{"1 hour", 3600},
		{"2 hours", 7200},
		{"Off", 0},
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(presets); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for j := i; j < i+2 && j < len(presets); j++ {
			label := presets[j].label
			if presets[j].sec == currentSec {
				label = "✅ " + label
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "interval:"+strconv.Itoa(presets[j].sec)))
		}
		rows = append(rows, row)
	}
	toggle := "🔕 Disable notifications"
	if !notifEnabled {
		toggle = "🔔 Enable notifications"
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(toggle, "toggle_notif"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// reminderIntervalKeyboard is attached to reminder pings so the user
// can retune the cadence without opening settings.
func reminderIntervalKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("15 min", "interval:900"),
			tgbotapi.NewInlineKeyboardButtonData("30 min", "interval:1800"),
			tgbotapi.NewInlineKeyboardButtonData("1 hour", "interval:3600"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔕 Off", "interval:0"),
		),
	)
}

func quietKeyboard(s *domain.Settings) tgbotapi.InlineKeyboardMarkup {
	toggle := "🌙 Quiet time: on"
	if !s.QuietHoursEnabled {
		toggle = "🌙 Quiet time: off"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, "toggle_quiet"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🕰 %s–%s (change)", s.QuietStart, s.QuietEnd), "quiet_custom"),
		),
	)
}

func timezoneKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Moscow", "tz:Europe/Moscow"),
			tgbotapi.NewInlineKeyboardButtonData("Europe/Berlin", "tz:Europe/Berlin"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Yekaterinburg", "tz:Asia/Yekaterinburg"),
			tgbotapi.NewInlineKeyboardButtonData("Asia/Vladivostok", "tz:Asia/Vladivostok"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz:UTC"),
			tgbotapi.NewInlineKeyboardButtonData("🛰 Auto-detect", "tz:auto"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
	)
}

func clearConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Yes, delete everything", "clear:confirm"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "clear:cancel"),
		),
	)
}

// statsMessage renders one report: sorted rows with durations, the
// current activity marked, and a grand total.
func statsMessage(title string, sums map[domain.ActivityType]int64, current *domain.Session, customs map[domain.ActivityType]domain.CustomActivity) string {
	if len(sums) == 0 {
		return title + ":\n\nNo data yet"
	}

	var b strings.Builder
	b.WriteString(title + ":\n\n")
	for _, e := range stats.Sorted(sums) {
		name, emoji := displayFor(e.Type, customs)
		b.WriteString(emoji + " " + name + ": " + domain.FormatDurationLong(e.Seconds))
		if current != nil && current.ActivityType == e.Type {
			b.WriteString(" ⏱")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n📈 Total: " + domain.FormatDurationLong(stats.Total(sums)))
	return b.String()
}

func displayFor(t domain.ActivityType, customs map[domain.ActivityType]domain.CustomActivity) (string, string) {
	if c, ok := customs[t]; ok {
		return domain.Display(t, &c)
	}
	return domain.Display(t, nil)
}

// barGraph renders a proportional bar per activity, widest bar capped
// at barWidth cells.
const barWidth = 12

func barGraph(sums map[domain.ActivityType]int64) string {
	entries := stats.Sorted(sums)
	if len(entries) == 0 {
		return ""
	}
	max := entries[0].Seconds
	if max == 0 {
		return ""
	}

	var b strings.Builder
	for _, e := range entries {
		cells := int(e.Seconds * barWidth / max)
		if cells == 0 {
			cells = 1
		}
		b.WriteString(e.Type.Emoji() + " " + strings.Repeat("█", cells) + "\n")
	}
	return b.String()
}

// timelineGraph renders the 48 half-hour buckets of a day as two rows
// of activity symbols, idle slots as dots.
func timelineGraph(buckets [stats.BucketsPerDay]stats.Bucket) string {
	var cells [stats.BucketsPerDay]rune
	for i, bucket := range buckets {
		if bucket.Type == "" {
			cells[i] = '·'
		} else {
			cells[i] = bucket.Type.Info().Symbol
		}
	}

	var b strings.Builder
	b.WriteString("00–12  " + string(cells[:24]) + "\n")
	b.WriteString("12–24  " + string(cells[24:]) + "\n\n")
	for _, t := range domain.AllActivities() {
		info := t.Info()
		b.WriteString(string(info.Symbol) + "=" + info.Name + " ")
	}
	return b.String()
}
