// Package stats aggregates session durations over reporting windows and
// into the 30-minute buckets backing the timeline graph. An open
// session contributes its live elapsed time to any window containing
// its start.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/imoredv/time-tracker-bot/internal/domain"
)

// BucketsPerDay is the number of 30-minute timeline slots in one day.
const BucketsPerDay = 48

// BucketSize is the width of one timeline slot.
const BucketSize = 30 * time.Minute

// Store is the slice of the repository the aggregator needs.
type Store interface {
	SumDurations(ctx context.Context, userID int64, from, to time.Time) (map[domain.ActivityType]int64, error)
	GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error)
	SessionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]domain.Session, error)
}

// Entry is one row of a sorted report.
type Entry struct {
	Type    domain.ActivityType
	Seconds int64
}

// Bucket is one 30-minute timeline slot: the dominant activity in the
// slot and how many of its seconds fall inside. Zero value means idle.
type Bucket struct {
	Type    domain.ActivityType
	Seconds int64
}

// Aggregator computes reports over the session history.
type Aggregator struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Aggregator {
	return &Aggregator{store: store, now: time.Now}
}

// Range sums durations by activity type over sessions started in
// [from, to), merging in the open session's live elapsed time when its
// start falls in the window.
func (a *Aggregator) Range(ctx context.Context, userID int64, from, to time.Time) (map[domain.ActivityType]int64, error) {
	sums, err := a.store.SumDurations(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	open, err := a.store.GetOpenSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if open != nil && !open.StartTime.Before(from) && open.StartTime.Before(to) {
		sums[open.ActivityType] += open.Elapsed(a.now())
	}
	return sums, nil
}

// Day reports the user's current local calendar day.
func (a *Aggregator) Day(ctx context.Context, userID int64, loc *time.Location) (map[domain.ActivityType]int64, error) {
	from := midnight(a.now().In(loc))
	return a.Range(ctx, userID, from, from.Add(24*time.Hour))
}

// Days reports a lookback of n calendar days including today, in the
// user's local time. Week, month and year views are 7, 30 and 365 days.
func (a *Aggregator) Days(ctx context.Context, userID int64, loc *time.Location, n int) (map[domain.ActivityType]int64, error) {
	now := a.now().In(loc)
	from := midnight(now).AddDate(0, 0, -(n - 1))
	return a.Range(ctx, userID, from, now)
}

// Rolling24h reports the last 24 hours regardless of calendar days.
func (a *Aggregator) Rolling24h(ctx context.Context, userID int64) (map[domain.ActivityType]int64, error) {
	now := a.now()
	return a.Range(ctx, userID, now.Add(-24*time.Hour), now)
}

// Timeline cuts the sessions overlapping the given local day into
// BucketsPerDay slots. Each session adds its covered seconds to every
// slot it overlaps; the activity with the most covered seconds owns a
// contested slot. With the single-open-session invariant holding, slots
// are never truly contested, so the tie-break is defensive only.
func (a *Aggregator) Timeline(ctx context.Context, userID int64, dayStart time.Time) ([BucketsPerDay]Bucket, error) {
	var buckets [BucketsPerDay]Bucket

	dayEnd := dayStart.Add(24 * time.Hour)
	sessions, err := a.store.SessionsInRange(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return buckets, err
	}

	now := a.now()
	coverage := make([]map[domain.ActivityType]int64, BucketsPerDay)

	for _, s := range sessions {
		spanStart := maxTime(s.StartTime, dayStart)
		spanEnd := now
		if s.EndTime != nil {
			spanEnd = *s.EndTime
		}
		spanEnd = minTime(spanEnd, dayEnd)
		if !spanEnd.After(spanStart) {
			continue
		}

		first := int(spanStart.Sub(dayStart) / BucketSize)
		last := int((spanEnd.Sub(dayStart) - time.Second) / BucketSize)
		for i := first; i <= last && i < BucketsPerDay; i++ {
			bStart := dayStart.Add(time.Duration(i) * BucketSize)
			bEnd := bStart.Add(BucketSize)
			sec := int64(minTime(spanEnd, bEnd).Sub(maxTime(spanStart, bStart)) / time.Second)
			if sec <= 0 {
				continue
			}
			if coverage[i] == nil {
				coverage[i] = make(map[domain.ActivityType]int64)
			}
			coverage[i][s.ActivityType] += sec
		}
	}

	for i, c := range coverage {
		for t, sec := range c {
			if sec > buckets[i].Seconds {
				buckets[i] = Bucket{Type: t, Seconds: sec}
			}
		}
	}
	return buckets, nil
}

// Sorted flattens a report into entries ordered by descending total.
func Sorted(sums map[domain.ActivityType]int64) []Entry {
	entries := make([]Entry, 0, len(sums))
	for t, sec := range sums {
		entries = append(entries, Entry{Type: t, Seconds: sec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Seconds != entries[j].Seconds {
			return entries[i].Seconds > entries[j].Seconds
		}
		return entries[i].Type < entries[j].Type
	})
	return entries
}

// Total sums a report.
func Total(sums map[domain.ActivityType]int64) int64 {
	var total int64
	for _, sec := range sums {
		total += sec
	}
	return total
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
