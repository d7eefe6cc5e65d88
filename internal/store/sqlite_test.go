package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/imoredv/time-tracker-bot/internal/domain"
)

func openTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepo, id int64) {
	t.Helper()
	err := repo.UpsertUser(context.Background(), &domain.User{
		ID: id, FirstName: "Test", TZ: domain.DefaultTZ, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("upsert user: %v", err)
	}
}

func TestUpsertUserCreatesDefaultSettings(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, 1)

	s, err := repo.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	want := domain.DefaultSettings(1)
	if *s != want {
		t.Fatalf("settings = %+v, want %+v", *s, want)
	}

	// Second upsert must not reset anything.
	s.ReminderIntervalSec = 300
	if err := repo.SaveSettings(ctx, *s); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	seedUser(t, repo, 1)
	s2, err := repo.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if s2.ReminderIntervalSec != 300 {
		t.Fatalf("interval = %d after re-upsert, want 300", s2.ReminderIntervalSec)
	}
}

func TestSwitchSessionKeepsSingleOpen(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, 1)

	t0 := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	if err := repo.OpenSession(ctx, 1, domain.ActivityWork, t0); err != nil {
		t.Fatalf("open session: %v", err)
	}

	t1 := t0.Add(30 * time.Minute)
	if err := repo.SwitchSession(ctx, 1, t1, 1800, domain.ActivityRest, t1); err != nil {
		t.Fatalf("switch session: %v", err)
	}

	open, err := repo.GetOpenSession(ctx, 1)
	if err != nil {
		t.Fatalf("get open session: %v", err)
	}
	if open == nil || open.ActivityType != domain.ActivityRest {
		t.Fatalf("open session = %+v, want open rest session", open)
	}
	if !open.StartTime.Equal(t1) {
		t.Fatalf("open start = %v, want %v", open.StartTime, t1)
	}

	sums, err := repo.SumDurations(ctx, 1, t0, t0.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("sum durations: %v", err)
	}
	if sums[domain.ActivityWork] != 1800 {
		t.Fatalf("work sum = %d, want 1800", sums[domain.ActivityWork])
	}
}

func TestOpenSessionRejectsSecondOpen(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, 1)

	now := time.Now().UTC()
	if err := repo.OpenSession(ctx, 1, domain.ActivityWork, now); err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := repo.OpenSession(ctx, 1, domain.ActivityRest, now); err == nil {
		t.Fatal("second open session must violate the unique index")
	}
}

func TestListEligibleFiltersDisabled(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, 1)
	seedUser(t, repo, 2)
	seedUser(t, repo, 3)

	s2 := domain.DefaultSettings(2)
	s2.NotificationsEnabled = false
	if err := repo.SaveSettings(ctx, s2); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	s3 := domain.DefaultSettings(3)
	s3.ReminderIntervalSec = 0
	if err := repo.SaveSettings(ctx, s3); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	list, err := repo.ListEligible(ctx)
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if len(list) != 1 || list[0].UserID != 1 {
		t.Fatalf("eligible = %+v, want only user 1", list)
	}
	if list[0].IntervalSec != 1800 || !list[0].QuietEnabled {
		t.Fatalf("eligible projection = %+v", list[0])
	}
}

func TestSessionsInRangeIncludesOpen(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, 1)

	dayStart := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	t0 := dayStart.Add(9 * time.Hour)
	if err := repo.OpenSession(ctx, 1, domain.ActivityWork, t0); err != nil {
		t.Fatalf("open session: %v", err)
	}
	t1 := t0.Add(time.Hour)
	if err := repo.SwitchSession(ctx, 1, t1, 3600, domain.ActivityStudy, t1); err != nil {
		t.Fatalf("switch session: %v", err)
	}

	sessions, err := repo.SessionsInRange(ctx, 1, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("sessions in range: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if !sessions[1].Open() {
		t.Fatal("second session should still be open")
	}
}

func TestClearUserDataResetsSettings(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, 1)

	now := time.Now().UTC()
	if err := repo.OpenSession(ctx, 1, domain.ActivityWork, now); err != nil {
		t.Fatalf("open session: %v", err)
	}
	s := domain.DefaultSettings(1)
	s.ReminderIntervalSec = 5
	s.QuietHoursEnabled = false
	if err := repo.SaveSettings(ctx, s); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if err := repo.SetCustomActivity(ctx, domain.CustomActivity{
		UserID: 1, ActivityType: domain.ActivityWork, Name: "Grind", Emoji: "🔥",
	}); err != nil {
		t.Fatalf("set custom: %v", err)
	}

	if err := repo.ClearUserData(ctx, 1); err != nil {
		t.Fatalf("clear user data: %v", err)
	}

	open, err := repo.GetOpenSession(ctx, 1)
	if err != nil {
		t.Fatalf("get open session: %v", err)
	}
	if open != nil {
		t.Fatalf("open session should be gone, got %+v", open)
	}
	got, err := repo.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if *got != domain.DefaultSettings(1) {
		t.Fatalf("settings after clear = %+v", *got)
	}
	custom, err := repo.GetCustomActivities(ctx, 1)
	if err != nil {
		t.Fatalf("get custom: %v", err)
	}
	if len(custom) != 0 {
		t.Fatalf("custom activities should be gone, got %+v", custom)
	}
	if _, err := repo.GetUser(ctx, 1); err != nil {
		t.Fatalf("user row must survive clear: %v", err)
	}
}

func TestSetLastReminderRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	seedUser(t, repo, 1)

	at := time.Date(2025, time.March, 10, 15, 4, 5, 0, time.UTC)
	if err := repo.SetLastReminder(ctx, 1, at); err != nil {
		t.Fatalf("set last reminder: %v", err)
	}
	u, err := repo.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.LastReminder == nil || !u.LastReminder.Equal(at) {
		t.Fatalf("last reminder = %v, want %v", u.LastReminder, at)
	}
}
