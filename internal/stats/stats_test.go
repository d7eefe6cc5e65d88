package stats

import (
	"context"
	"testing"
	"time"

	"github.com/imoredv/time-tracker-bot/internal/domain"
)

// fakeStore serves canned sessions; SumDurations is derived from the
// closed sessions so the tests stay declarative.
type fakeStore struct {
	sessions []domain.Session
}

func (f *fakeStore) SumDurations(_ context.Context, userID int64, from, to time.Time) (map[domain.ActivityType]int64, error) {
	res := make(map[domain.ActivityType]int64)
	for _, s := range f.sessions {
		if s.UserID != userID || s.Open() {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		res[s.ActivityType] += s.DurationSec
	}
	return res, nil
}

func (f *fakeStore) GetOpenSession(_ context.Context, userID int64) (*domain.Session, error) {
	for i := range f.sessions {
		if f.sessions[i].UserID == userID && f.sessions[i].Open() {
			s := f.sessions[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SessionsInRange(_ context.Context, userID int64, from, to time.Time) ([]domain.Session, error) {
	var res []domain.Session
	for _, s := range f.sessions {
		if s.UserID != userID || !s.StartTime.Before(to) {
			continue
		}
		if s.EndTime != nil && !s.EndTime.After(from) {
			continue
		}
		res = append(res, s)
	}
	return res, nil
}

func closed(userID int64, t domain.ActivityType, start time.Time, dur time.Duration) domain.Session {
	end := start.Add(dur)
	return domain.Session{
		UserID:       userID,
		ActivityType: t,
		StartTime:    start,
		EndTime:      &end,
		DurationSec:  int64(dur / time.Second),
	}
}

func newTestAggregator(store *fakeStore, now time.Time) *Aggregator {
	a := New(store)
	a.now = func() time.Time { return now }
	return a
}

var day = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func TestRangeMergesOpenSession(t *testing.T) {
	// One closed 1800s work session plus an open work session started
	// 600s ago: the day total must read 2400s.
	now := day.Add(10 * time.Hour)
	store := &fakeStore{sessions: []domain.Session{
		closed(1, domain.ActivityWork, day.Add(8*time.Hour), 30*time.Minute),
		{UserID: 1, ActivityType: domain.ActivityWork, StartTime: now.Add(-600 * time.Second)},
	}}
	a := newTestAggregator(store, now)

	sums, err := a.Range(context.Background(), 1, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if sums[domain.ActivityWork] != 2400 {
		t.Fatalf("work = %d, want 2400", sums[domain.ActivityWork])
	}
}

func TestRangeExcludesOpenSessionStartedOutsideWindow(t *testing.T) {
	now := day.Add(time.Hour)
	store := &fakeStore{sessions: []domain.Session{
		// Open session started the previous day.
		{UserID: 1, ActivityType: domain.ActivitySleep, StartTime: day.Add(-2 * time.Hour)},
	}}
	a := newTestAggregator(store, now)

	sums, err := a.Range(context.Background(), 1, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(sums) != 0 {
		t.Fatalf("sums = %v, want empty (open session starts before window)", sums)
	}
}

func TestDayUsesLocalMidnight(t *testing.T) {
	msk, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	// 22:30 UTC on March 9 is 01:30 March 10 in Moscow; a session
	// started 22:10 UTC (01:10 MSK) belongs to the Moscow day.
	now := time.Date(2025, time.March, 9, 22, 30, 0, 0, time.UTC)
	store := &fakeStore{sessions: []domain.Session{
		closed(1, domain.ActivityRest, time.Date(2025, time.March, 9, 22, 10, 0, 0, time.UTC), 10*time.Minute),
	}}
	a := newTestAggregator(store, now)

	sums, err := a.Day(context.Background(), 1, msk)
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	if sums[domain.ActivityRest] != 600 {
		t.Fatalf("rest = %d, want 600 (inside Moscow day)", sums[domain.ActivityRest])
	}

	utcSums, err := a.Day(context.Background(), 1, time.UTC)
	if err != nil {
		t.Fatalf("day: %v", err)
	}
	if utcSums[domain.ActivityRest] != 600 {
		t.Fatalf("rest = %d in UTC day", utcSums[domain.ActivityRest])
	}
}

func TestRolling24h(t *testing.T) {
	now := day.Add(12 * time.Hour)
	store := &fakeStore{sessions: []domain.Session{
		closed(1, domain.ActivityWork, now.Add(-23*time.Hour), time.Hour),
		closed(1, domain.ActivityWork, now.Add(-25*time.Hour), time.Hour), // outside
	}}
	a := newTestAggregator(store, now)

	sums, err := a.Rolling24h(context.Background(), 1)
	if err != nil {
		t.Fatalf("rolling: %v", err)
	}
	if sums[domain.ActivityWork] != 3600 {
		t.Fatalf("work = %d, want 3600", sums[domain.ActivityWork])
	}
}

func TestTimelineBucketsSessions(t *testing.T) {
	now := day.Add(23 * time.Hour)
	store := &fakeStore{sessions: []domain.Session{
		// 09:00-10:15 work: buckets 18, 19 full, bucket 20 half.
		closed(1, domain.ActivityWork, day.Add(9*time.Hour), 75*time.Minute),
		// Open rest session from 22:00, live until "now" 23:00.
		{UserID: 1, ActivityType: domain.ActivityRest, StartTime: day.Add(22 * time.Hour)},
	}}
	a := newTestAggregator(store, now)

	buckets, err := a.Timeline(context.Background(), 1, day)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}

	if buckets[18].Type != domain.ActivityWork || buckets[18].Seconds != 1800 {
		t.Fatalf("bucket 18 = %+v", buckets[18])
	}
	if buckets[19].Type != domain.ActivityWork || buckets[19].Seconds != 1800 {
		t.Fatalf("bucket 19 = %+v", buckets[19])
	}
	if buckets[20].Type != domain.ActivityWork || buckets[20].Seconds != 900 {
		t.Fatalf("bucket 20 = %+v", buckets[20])
	}
	if buckets[21].Type != "" {
		t.Fatalf("bucket 21 should be idle, got %+v", buckets[21])
	}
	// Open session covers 22:00-23:00: buckets 44 and 45.
	if buckets[44].Type != domain.ActivityRest || buckets[44].Seconds != 1800 {
		t.Fatalf("bucket 44 = %+v", buckets[44])
	}
	if buckets[45].Type != domain.ActivityRest || buckets[45].Seconds != 1800 {
		t.Fatalf("bucket 45 = %+v", buckets[45])
	}
	if buckets[46].Type != "" {
		t.Fatalf("bucket 46 should be idle, got %+v", buckets[46])
	}
}

func TestTimelineLongerCoverageWins(t *testing.T) {
	// Two overlapping spans in bucket 0 cannot happen under the
	// single-open-session invariant; the defensive tie-break picks the
	// one covering more of the bucket.
	now := day.Add(2 * time.Hour)
	store := &fakeStore{sessions: []domain.Session{
		closed(1, domain.ActivityWork, day, 10*time.Minute),
		closed(1, domain.ActivityStudy, day, 20*time.Minute),
	}}
	a := newTestAggregator(store, now)

	buckets, err := a.Timeline(context.Background(), 1, day)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if buckets[0].Type != domain.ActivityStudy || buckets[0].Seconds != 1200 {
		t.Fatalf("bucket 0 = %+v, want study/1200", buckets[0])
	}
}

func TestTimelineClampsSessionSpanningMidnight(t *testing.T) {
	now := day.Add(26 * time.Hour)
	store := &fakeStore{sessions: []domain.Session{
		// 23:00 previous day to 01:00 of this day.
		closed(1, domain.ActivitySleep, day.Add(-time.Hour), 2*time.Hour),
	}}
	a := newTestAggregator(store, now)

	buckets, err := a.Timeline(context.Background(), 1, day)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if buckets[0].Type != domain.ActivitySleep || buckets[0].Seconds != 1800 {
		t.Fatalf("bucket 0 = %+v", buckets[0])
	}
	if buckets[1].Type != domain.ActivitySleep || buckets[1].Seconds != 1800 {
		t.Fatalf("bucket 1 = %+v", buckets[1])
	}
	if buckets[2].Type != "" {
		t.Fatalf("bucket 2 should be idle, got %+v", buckets[2])
	}
}

func TestSortedAndTotal(t *testing.T) {
	sums := map[domain.ActivityType]int64{
		domain.ActivityRest:  100,
		domain.ActivityWork:  500,
		domain.ActivitySport: 100,
	}
	entries := Sorted(sums)
	if entries[0].Type != domain.ActivityWork {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
	if Total(sums) != 700 {
		t.Fatalf("total = %d", Total(sums))
	}
}
