package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ClockMinutes converts an "HH:MM" string to minutes since midnight.
// Malformed input resolves to 0 (midnight): quiet-hour boundaries come
// from stored user data and a bad row must degrade, not crash the
// scheduler. New input should be validated with ParseClock first.
func ClockMinutes(s string) int {
	m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return m
}

// ParseClock strictly parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

// FormatClock returns "HH:MM" for minutes since midnight.
func FormatClock(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// InQuietHours reports whether a local time of day (minutes since
// midnight) falls inside the quiet window [start, end).
// A window that wraps midnight (start > end, e.g. 22:00–06:00) covers
// the evening and the early morning. start == end is an empty window.
func InQuietHours(localM int, startHHMM, endHHMM string) bool {
	start := ClockMinutes(startHHMM)
	end := ClockMinutes(endHHMM)
	if start == end {
		return false
	}
	if start < end {
		return localM >= start && localM < end
	}
	return localM >= start || localM < end
}
