package domain

import (
	"errors"
	"fmt"
)

// ActivityType is the closed set of trackable activities.
type ActivityType string

const (
	ActivityWork  ActivityType = "work"
	ActivityStudy ActivityType = "study"
	ActivitySport ActivityType = "sport"
	ActivityHobby ActivityType = "hobby"
	ActivitySleep ActivityType = "sleep"
	ActivityRest  ActivityType = "rest"
)

var ErrUnknownActivity = errors.New("unknown activity type")

// ActivityInfo carries the default presentation of an activity type.
type ActivityInfo struct {
	Name   string // display name
	Emoji  string
	Symbol rune // one-rune marker for the timeline graph
}

var activities = map[ActivityType]ActivityInfo{
	ActivityWork:  {Name: "Work", Emoji: "💼", Symbol: 'W'},
	ActivityStudy: {Name: "Study", Emoji: "📚", Symbol: 'S'},
	ActivitySport: {Name: "Sport", Emoji: "🏃", Symbol: 'P'},
	ActivityHobby: {Name: "Hobby", Emoji: "🎨", Symbol: 'H'},
	ActivitySleep: {Name: "Sleep", Emoji: "😴", Symbol: 'Z'},
	ActivityRest:  {Name: "Rest", Emoji: "🏖", Symbol: 'R'},
}

// AllActivities returns the activity types in stable menu order.
func AllActivities() []ActivityType {
	return []ActivityType{
		ActivityWork, ActivityStudy, ActivitySport,
		ActivityHobby, ActivitySleep, ActivityRest,
	}
}

// ParseActivity validates a raw tag coming from button callback data.
func ParseActivity(s string) (ActivityType, error) {
	t := ActivityType(s)
	if _, ok := activities[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownActivity, s)
	}
	return t, nil
}

// Info returns the default presentation for t. Unknown types get a
// neutral stopwatch presentation instead of failing; stored history may
// predate an enum change.
func (t ActivityType) Info() ActivityInfo {
	if info, ok := activities[t]; ok {
		return info
	}
	return ActivityInfo{Name: string(t), Emoji: "⏱", Symbol: '?'}
}

func (t ActivityType) Name() string  { return t.Info().Name }
func (t ActivityType) Emoji() string { return t.Info().Emoji }

// CustomActivity is a per-user override of an activity's display name
// and emoji.
type CustomActivity struct {
	UserID       int64
	ActivityType ActivityType
	Name         string
	Emoji        string
}

// Display resolves the presentation of t for a user, preferring the
// custom override when one exists.
func Display(t ActivityType, custom *CustomActivity) (name, emoji string) {
	info := t.Info()
	name, emoji = info.Name, info.Emoji
	if custom != nil {
		if custom.Name != "" {
			name = custom.Name
		}
		if custom.Emoji != "" {
			emoji = custom.Emoji
		}
	}
	return name, emoji
}
