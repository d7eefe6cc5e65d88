package store

import (
	"context"
	"time"

	"github.com/imoredv/time-tracker-bot/internal/domain"
)

// EligibleUser is the projection the reminder scheduler polls:
// everything needed to decide whether and when to ping a user.
type EligibleUser struct {
	UserID       int64
	FirstName    string
	TZ           string
	IntervalSec  int
	QuietEnabled bool
	QuietStart   string
	QuietEnd     string
	LastReminder *time.Time
}

// Repo defines storage operations for users, sessions and settings.
type Repo interface {
	UpsertUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	SetTimezone(ctx context.Context, userID int64, tz string) error
	SetLastReminder(ctx context.Context, userID int64, at time.Time) error

	// GetOpenSession returns the user's open session, or nil when idle.
	GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error)
	OpenSession(ctx context.Context, userID int64, t domain.ActivityType, start time.Time) error
	// SwitchSession closes the open session and opens a new one as a
	// single transaction, preserving the at-most-one-open invariant.
	SwitchSession(ctx context.Context, userID int64, end time.Time, durationSec int64, newType domain.ActivityType, start time.Time) error

	GetSettings(ctx context.Context, userID int64) (*domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) error

	// SumDurations aggregates closed-session durations grouped by
	// activity type, over sessions started in [from, to).
	SumDurations(ctx context.Context, userID int64, from, to time.Time) (map[domain.ActivityType]int64, error)
	// SessionsInRange returns sessions whose span overlaps [from, to),
	// open session included. Ordered by start time.
	SessionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]domain.Session, error)

	// ListEligible returns users with notifications enabled and a
	// positive reminder interval. Quiet hours are evaluated by the
	// scheduler in the user's own timezone, not here.
	ListEligible(ctx context.Context) ([]EligibleUser, error)

	GetCustomActivities(ctx context.Context, userID int64) (map[domain.ActivityType]domain.CustomActivity, error)
	SetCustomActivity(ctx context.Context, c domain.CustomActivity) error
	DeleteCustomActivity(ctx context.Context, userID int64, t domain.ActivityType) error

	// ClearUserData deletes the user's sessions and custom activities
	// and resets settings to defaults. The user row stays.
	ClearUserData(ctx context.Context, userID int64) error

	Close() error
}
