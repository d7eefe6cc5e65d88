// Package scheduler runs the reminder loop: it polls eligible users,
// computes per-user next-fire times in their own timezones, honors
// quiet hours, and pings users about their current activity.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/imoredv/time-tracker-bot/internal/domain"
	"github.com/imoredv/time-tracker-bot/internal/store"
)

// Sender delivers a reminder message to a user. The telegram router
// implements this and attaches the interval-choice keyboard.
type Sender interface {
	SendReminder(userID int64, text string) error
}

// Store is the slice of the repository the scheduler needs.
type Store interface {
	ListEligible(ctx context.Context) ([]store.EligibleUser, error)
	GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error)
	SetLastReminder(ctx context.Context, userID int64, at time.Time) error
}

// ZoneResolver maps a stored IANA name to a location, with fallback.
type ZoneResolver interface {
	Resolve(iana string) *time.Location
}

// cacheKey identifies a next-fire entry. The interval is part of the
// key so a changed interval naturally orphans the old entry.
type cacheKey struct {
	userID      int64
	intervalSec int
}

// Scheduler owns the next-fire cache and the tick loop.
type Scheduler struct {
	store  Store
	zones  ZoneResolver
	sender Sender
	log    *zap.Logger

	mu   sync.Mutex
	next map[cacheKey]time.Time

	now func() time.Time

	// testIntervalMax is the threshold (seconds) below which an
	// interval counts as a test interval: no clock alignment and no
	// quiet-hours suppression. 60 matches long-standing behavior.
	testIntervalMax int

	activeSleep time.Duration // poll period while any test interval exists
	idleSleep   time.Duration // poll period otherwise
	staleAfter  time.Duration // cache entries older than this get swept
}

func New(st Store, zones ZoneResolver, sender Sender, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:           st,
		zones:           zones,
		sender:          sender,
		log:             log,
		next:            make(map[cacheKey]time.Time),
		now:             time.Now,
		testIntervalMax: 60,
		activeSleep:     time.Second,
		idleSleep:       30 * time.Second,
		staleAfter:      24 * time.Hour,
	}
}

// NextFire computes when the next reminder is due given the user's
// local time and interval.
//
// Sub-minute (test) intervals schedule relative to now. Intervals up to
// 30 minutes align to the next multiple-of-interval minute mark past
// the hour, so a 15-minute interval fires at :00/:15/:30/:45 — always
// strictly in the future, a full interval ahead when now is exactly on
// a mark. Longer intervals schedule relative to now without alignment.
func NextFire(nowLocal time.Time, intervalSec int) time.Time {
	interval := time.Duration(intervalSec) * time.Second
	if intervalSec < 60 {
		return nowLocal.Add(interval)
	}

	intervalMin := intervalSec / 60
	if intervalMin <= 30 {
		toNext := intervalMin - nowLocal.Minute()%intervalMin
		onMinute := time.Date(
			nowLocal.Year(), nowLocal.Month(), nowLocal.Day(),
			nowLocal.Hour(), nowLocal.Minute(), 0, 0, nowLocal.Location(),
		)
		return onMinute.Add(time.Duration(toNext) * time.Minute)
	}

	return nowLocal.Add(interval)
}

// Run drives the loop until ctx is canceled. The sleep shrinks to
// activeSleep whenever any eligible user has a test interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("reminder scheduler started")
	timer := time.NewTimer(s.activeSleep)
	defer timer.Stop()

	for {
		hasShort := s.tick(ctx)
		s.sweep()

		sleep := s.idleSleep
		if hasShort {
			sleep = s.activeSleep
		}
		timer.Reset(sleep)

		select {
		case <-ctx.Done():
			s.log.Info("reminder scheduler stopping")
			return
		case <-timer.C:
		}
	}
}

// tick processes one scheduling cycle and reports whether any eligible
// user runs on a test interval. A single user's failure never aborts
// the cycle for the others.
func (s *Scheduler) tick(ctx context.Context) bool {
	users, err := s.store.ListEligible(ctx)
	if err != nil {
		s.log.Error("list eligible users failed", zap.Error(err))
		return false
	}

	hasShort := false
	for _, u := range users {
		if u.IntervalSec < s.testIntervalMax {
			hasShort = true
		}
		s.process(ctx, u)
	}
	return hasShort
}

// process evaluates one user: quiet hours, cache, due check, send.
func (s *Scheduler) process(ctx context.Context, u store.EligibleUser) {
	nowLocal := s.now().In(s.zones.Resolve(u.TZ))

	// Quiet hours are bypassed for test intervals so manual testing
	// works around the clock.
	if u.QuietEnabled && u.IntervalSec >= s.testIntervalMax {
		localM := nowLocal.Hour()*60 + nowLocal.Minute()
		if domain.InQuietHours(localM, u.QuietStart, u.QuietEnd) {
			return
		}
	}

	key := cacheKey{userID: u.UserID, intervalSec: u.IntervalSec}

	s.mu.Lock()
	next, ok := s.next[key]
	if !ok {
		next = NextFire(nowLocal, u.IntervalSec)
		s.next[key] = next
	}
	s.mu.Unlock()

	due := !nowLocal.Before(next)
	if !ok {
		// A freshly computed entry that is effectively immediate
		// counts as due; otherwise the first reminder waits its turn.
		due = next.Sub(nowLocal) < time.Second
	}
	if !due {
		return
	}

	s.fire(ctx, u, nowLocal)

	s.mu.Lock()
	s.next[key] = NextFire(nowLocal, u.IntervalSec)
	s.mu.Unlock()
}

// fire sends the reminder and records the send time. Delivery errors
// are logged and dropped, never retried or propagated.
func (s *Scheduler) fire(ctx context.Context, u store.EligibleUser, nowLocal time.Time) {
	text, err := s.reminderText(ctx, u.UserID, nowLocal)
	if err != nil {
		s.log.Error("build reminder failed", zap.Int64("userID", u.UserID), zap.Error(err))
		return
	}

	if err := s.sender.SendReminder(u.UserID, text); err != nil {
		s.log.Error("send reminder failed", zap.Int64("userID", u.UserID), zap.Error(err))
	}

	if err := s.store.SetLastReminder(ctx, u.UserID, s.now().UTC()); err != nil {
		s.log.Error("record last reminder failed", zap.Int64("userID", u.UserID), zap.Error(err))
	}
}

// reminderText asks what the user is doing, or names the open activity
// with its elapsed time.
func (s *Scheduler) reminderText(ctx context.Context, userID int64, nowLocal time.Time) (string, error) {
	open, err := s.store.GetOpenSession(ctx, userID)
	if err != nil {
		return "", err
	}
	if open == nil {
		return "❓ What are you doing?", nil
	}
	info := open.ActivityType.Info()
	elapsed := domain.FormatDuration(open.Elapsed(nowLocal))
	return info.Emoji + " " + info.Name + "?\n" + elapsed, nil
}

// Invalidate drops every cached next-fire entry for the user. Called
// when the interval or the notifications flag changes, so the next tick
// re-anchors at its own current time.
func (s *Scheduler) Invalidate(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.next {
		if key.userID == userID {
			delete(s.next, key)
		}
	}
}

// sweep drops entries whose fire time passed more than staleAfter ago —
// users who disabled reminders or vanished.
func (s *Scheduler) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, next := range s.next {
		if now.Sub(next) > s.staleAfter {
			delete(s.next, key)
		}
	}
}
