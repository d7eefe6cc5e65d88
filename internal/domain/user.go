package domain

import "time"

// DefaultTZ is the timezone assigned to users whose zone is unknown.
const DefaultTZ = "Europe/Moscow"

// User is a bot user. Users are created on first contact and never
// deleted; "clear data" wipes sessions and resets settings instead.
type User struct {
	ID           int64
	Username     string
	FirstName    string
	LastName     string
	TZ           string     // IANA name, DefaultTZ when unset
	LastReminder *time.Time // UTC, nil until the first reminder
	CreatedAt    time.Time  // UTC
}

// Settings are the per-user reminder preferences.
type Settings struct {
	UserID               int64
	ReminderIntervalSec  int // 0 disables reminders; < 60 is a test interval
	NotificationsEnabled bool
	QuietHoursEnabled    bool
	QuietStart           string // "HH:MM" local time
	QuietEnd             string // "HH:MM" local time
}

// DefaultSettings mirror the values a fresh user row gets.
func DefaultSettings(userID int64) Settings {
	return Settings{
		UserID:               userID,
		ReminderIntervalSec:  1800,
		NotificationsEnabled: true,
		QuietHoursEnabled:    true,
		QuietStart:           "22:00",
		QuietEnd:             "06:00",
	}
}
