// Package tracker implements the activity session state machine:
// starting an activity closes the previous one, restarting the same
// activity is a no-op, and at most one session is ever open per user.
package tracker

import (
	"context"
	"time"

	"github.com/imoredv/time-tracker-bot/internal/domain"
)

// SessionStore is the slice of the repository the tracker needs.
type SessionStore interface {
	GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error)
	OpenSession(ctx context.Context, userID int64, t domain.ActivityType, start time.Time) error
	SwitchSession(ctx context.Context, userID int64, end time.Time, durationSec int64, newType domain.ActivityType, start time.Time) error
}

// StartResult describes what a Start call did.
type StartResult struct {
	// AlreadyRunning is set when the requested activity was already
	// open; nothing was mutated and Current holds the untouched session.
	AlreadyRunning bool
	// Completed is the previously open session that Start closed, with
	// EndTime and DurationSec filled in. Nil if the user was idle.
	Completed *domain.Session
	// Current is the open session after the call.
	Current *domain.Session
}

// Tracker is the session machine over a SessionStore.
type Tracker struct {
	store SessionStore
	now   func() time.Time
}

func New(store SessionStore) *Tracker {
	return &Tracker{store: store, now: time.Now}
}

// Start begins the requested activity for the user at "now".
//
// If the same activity is already open this is an idempotent no-op.
// If a different activity is open it is closed with its duration
// computed (floored to whole seconds, clamped to zero on clock skew),
// and the new activity opens at the same instant; close and open commit
// as one transaction. Storage errors are returned unmutated — retries
// belong to the caller, not here.
func (t *Tracker) Start(ctx context.Context, userID int64, activity domain.ActivityType) (StartResult, error) {
	now := t.now().UTC().Truncate(time.Second)

	open, err := t.store.GetOpenSession(ctx, userID)
	if err != nil {
		return StartResult{}, err
	}

	if open != nil && open.ActivityType == activity {
		return StartResult{AlreadyRunning: true, Current: open}, nil
	}

	if open == nil {
		if err := t.store.OpenSession(ctx, userID, activity, now); err != nil {
			return StartResult{}, err
		}
		return StartResult{Current: openSession(userID, activity, now)}, nil
	}

	dur := open.Elapsed(now)
	if err := t.store.SwitchSession(ctx, userID, now, dur, activity, now); err != nil {
		return StartResult{}, err
	}

	closed := *open
	end := now
	closed.EndTime = &end
	closed.DurationSec = dur
	return StartResult{
		Completed: &closed,
		Current:   openSession(userID, activity, now),
	}, nil
}

// Current returns the user's open session, or nil when idle.
func (t *Tracker) Current(ctx context.Context, userID int64) (*domain.Session, error) {
	return t.store.GetOpenSession(ctx, userID)
}

func openSession(userID int64, activity domain.ActivityType, start time.Time) *domain.Session {
	return &domain.Session{
		UserID:       userID,
		ActivityType: activity,
		StartTime:    start,
	}
}
