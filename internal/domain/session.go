package domain

import (
	"fmt"
	"time"
)

// Session is one contiguous span of a user doing one activity.
// An open session has a nil EndTime; at most one session per user may
// be open at any time.
type Session struct {
	ID           int64
	UserID       int64
	ActivityType ActivityType
	StartTime    time.Time  // UTC
	EndTime      *time.Time // UTC, nil while open
	DurationSec  int64      // whole seconds, set when closed
}

// Open reports whether the session has no end time yet.
func (s *Session) Open() bool { return s.EndTime == nil }

// Elapsed returns the whole seconds from the session start to now,
// clamped to zero against clock skew.
func (s *Session) Elapsed(now time.Time) int64 {
	d := int64(now.Sub(s.StartTime) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// FormatDuration renders seconds compactly: "1:02:03" above an hour,
// "12:03" above a minute, "45 sec" below.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	case m > 0:
		return fmt.Sprintf("%02d:%02d", m, s)
	default:
		return fmt.Sprintf("%d sec", s)
	}
}

// FormatDurationLong renders seconds verbosely for stats listings,
// e.g. "2 h 05 min 30 sec".
func FormatDurationLong(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%d h %02d min %02d sec", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d min %02d sec", m, s)
	default:
		return fmt.Sprintf("%d sec", s)
	}
}
