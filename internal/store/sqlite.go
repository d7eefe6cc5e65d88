package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/imoredv/time-tracker-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// UpsertUser inserts a user on first contact or refreshes the mutable
// profile fields. A default settings row is created alongside.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	tz := u.TZ
	if tz == "" {
		tz = domain.DefaultTZ
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name, tz, created_at, last_reminder)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username   = excluded.username,
			first_name = excluded.first_name,
			last_name  = excluded.last_name`,
		u.ID, u.Username, u.FirstName, u.LastName, tz, created, toNullInt64(u.LastReminder),
	)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_settings (user_id) VALUES (?)`,
		u.ID,
	)
	return err
}

// GetUser returns a user by id or an error if not found.
func (r *SQLiteRepo) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, username, first_name, last_name, tz, created_at, last_reminder
		FROM users
		WHERE user_id = ?`,
		userID,
	)

	var (
		u       domain.User
		created int64
		lastNS  sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.TZ, &created, &lastNS); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.LastReminder = fromNullInt64(lastNS)
	return &u, nil
}

// SetTimezone updates the user's IANA timezone.
func (r *SQLiteRepo) SetTimezone(ctx context.Context, userID int64, tz string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET tz = ? WHERE user_id = ?`,
		tz, userID,
	)
	return err
}

// SetLastReminder records when the user was last reminded.
func (r *SQLiteRepo) SetLastReminder(ctx context.Context, userID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_reminder = ? WHERE user_id = ?`,
		at.UTC().Unix(), userID,
	)
	return err
}

// GetOpenSession returns the user's open session, or (nil, nil) when idle.
func (r *SQLiteRepo) GetOpenSession(ctx context.Context, userID int64) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, activity_type, start_time, end_time, duration_sec
		FROM activities
		WHERE user_id = ? AND end_time IS NULL
		LIMIT 1`,
		userID,
	)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// OpenSession inserts a new open session. The unique partial index on
// (user_id) WHERE end_time IS NULL rejects a second open session.
func (r *SQLiteRepo) OpenSession(ctx context.Context, userID int64, t domain.ActivityType, start time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activities (user_id, activity_type, start_time)
		VALUES (?, ?, ?)`,
		userID, string(t), start.UTC().Unix(),
	)
	return err
}

// SwitchSession closes the current open session and opens a new one in
// a single transaction, so a crash cannot leave the user with a closed
// session and no open one when a switch was requested.
func (r *SQLiteRepo) SwitchSession(ctx context.Context, userID int64, end time.Time, durationSec int64, newType domain.ActivityType, start time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE activities
		SET end_time = ?, duration_sec = ?
		WHERE user_id = ? AND end_time IS NULL`,
		end.UTC().Unix(), durationSec, userID,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activities (user_id, activity_type, start_time)
		VALUES (?, ?, ?)`,
		userID, string(newType), start.UTC().Unix(),
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// GetSettings returns the user's reminder settings, or an error if the
// settings row does not exist yet.
func (r *SQLiteRepo) GetSettings(ctx context.Context, userID int64) (*domain.Settings, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT user_id, reminder_interval, notifications_enabled,
		       quiet_enabled, quiet_start, quiet_end
		FROM user_settings
		WHERE user_id = ?`,
		userID,
	)

	var (
		s        domain.Settings
		notifInt int
		quietInt int
	)
	if err := row.Scan(&s.UserID, &s.ReminderIntervalSec, &notifInt, &quietInt, &s.QuietStart, &s.QuietEnd); err != nil {
		return nil, err
	}
	s.NotificationsEnabled = notifInt != 0
	s.QuietHoursEnabled = quietInt != 0
	return &s, nil
}

// SaveSettings upserts the full settings row.
func (r *SQLiteRepo) SaveSettings(ctx context.Context, s domain.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, reminder_interval, notifications_enabled,
		                           quiet_enabled, quiet_start, quiet_end)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			reminder_interval     = excluded.reminder_interval,
			notifications_enabled = excluded.notifications_enabled,
			quiet_enabled         = excluded.quiet_enabled,
			quiet_start           = excluded.quiet_start,
			quiet_end             = excluded.quiet_end`,
		s.UserID, s.ReminderIntervalSec, boolToInt(s.NotificationsEnabled),
		boolToInt(s.QuietHoursEnabled), s.QuietStart, s.QuietEnd,
	)
	return err
}

// SumDurations aggregates closed-session durations by activity type
// over sessions started in [from, to).
func (r *SQLiteRepo) SumDurations(ctx context.Context, userID int64, from, to time.Time) (map[domain.ActivityType]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_type, SUM(duration_sec)
		FROM activities
		WHERE user_id = ?
		  AND duration_sec IS NOT NULL
		  AND start_time >= ? AND start_time < ?
		GROUP BY activity_type`,
		userID, from.UTC().Unix(), to.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[domain.ActivityType]int64)
	for rows.Next() {
		var (
			t   string
			sum int64
		)
		if err := rows.Scan(&t, &sum); err != nil {
			return nil, err
		}
		res[domain.ActivityType(t)] = sum
	}
	return res, rows.Err()
}

// SessionsInRange returns sessions overlapping [from, to), the open
// session included, ordered by start time.
func (r *SQLiteRepo) SessionsInRange(ctx context.Context, userID int64, from, to time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, activity_type, start_time, end_time, duration_sec
		FROM activities
		WHERE user_id = ?
		  AND start_time < ?
		  AND (end_time IS NULL OR end_time > ?)
		ORDER BY start_time ASC`,
		userID, to.UTC().Unix(), from.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

// ListEligible returns users with notifications on and interval > 0.
func (r *SQLiteRepo) ListEligible(ctx context.Context) ([]EligibleUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.user_id, u.first_name, u.tz, u.last_reminder,
		       s.reminder_interval, s.quiet_enabled, s.quiet_start, s.quiet_end
		FROM users u
		JOIN user_settings s ON s.user_id = u.user_id
		WHERE s.notifications_enabled = 1 AND s.reminder_interval > 0`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []EligibleUser
	for rows.Next() {
		var (
			e        EligibleUser
			lastNS   sql.NullInt64
			quietInt int
		)
		if err := rows.Scan(&e.UserID, &e.FirstName, &e.TZ, &lastNS,
			&e.IntervalSec, &quietInt, &e.QuietStart, &e.QuietEnd); err != nil {
			return nil, err
		}
		e.QuietEnabled = quietInt != 0
		e.LastReminder = fromNullInt64(lastNS)
		res = append(res, e)
	}
	return res, rows.Err()
}

// GetCustomActivities returns the user's display overrides keyed by type.
func (r *SQLiteRepo) GetCustomActivities(ctx context.Context, userID int64) (map[domain.ActivityType]domain.CustomActivity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT activity_type, custom_name, emoji
		FROM custom_activities
		WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[domain.ActivityType]domain.CustomActivity)
	for rows.Next() {
		var (
			t     string
			name  string
			emoji string
		)
		if err := rows.Scan(&t, &name, &emoji); err != nil {
			return nil, err
		}
		res[domain.ActivityType(t)] = domain.CustomActivity{
			UserID:       userID,
			ActivityType: domain.ActivityType(t),
			Name:         name,
			Emoji:        emoji,
		}
	}
	return res, rows.Err()
}

// SetCustomActivity upserts a display override.
func (r *SQLiteRepo) SetCustomActivity(ctx context.Context, c domain.CustomActivity) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO custom_activities (user_id, activity_type, custom_name, emoji)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, activity_type) DO UPDATE SET
			custom_name = excluded.custom_name,
			emoji       = excluded.emoji`,
		c.UserID, string(c.ActivityType), c.Name, c.Emoji,
	)
	return err
}

// DeleteCustomActivity removes a display override.
func (r *SQLiteRepo) DeleteCustomActivity(ctx context.Context, userID int64, t domain.ActivityType) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM custom_activities
		WHERE user_id = ? AND activity_type = ?`,
		userID, string(t),
	)
	return err
}

// ClearUserData wipes sessions and overrides and resets settings; the
// user row itself stays.
func (r *SQLiteRepo) ClearUserData(ctx context.Context, userID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmts := []string{
		`DELETE FROM activities WHERE user_id = ?`,
		`DELETE FROM custom_activities WHERE user_id = ?`,
		`UPDATE user_settings
		 SET reminder_interval = 1800, notifications_enabled = 1,
		     quiet_enabled = 1, quiet_start = '22:00', quiet_end = '06:00'
		 WHERE user_id = ?`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// scanner abstracts *sql.Row and *sql.Rows for scanSession.
type scanner interface{ Scan(dest ...any) error }

func scanSession(row scanner) (*domain.Session, error) {
	var (
		s     domain.Session
		t     string
		start int64
		endNS sql.NullInt64
		durNS sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.UserID, &t, &start, &endNS, &durNS); err != nil {
		return nil, err
	}
	s.ActivityType = domain.ActivityType(t)
	s.StartTime = time.Unix(start, 0).UTC()
	s.EndTime = fromNullInt64(endNS)
	if durNS.Valid {
		s.DurationSec = durNS.Int64
	}
	return &s, nil
}

// boolToInt converts a boolean to 1/0 for SQLite.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
