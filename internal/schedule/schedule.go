// Package schedule holds the calendar arithmetic behind challenges: which
// day-task falls on which date, whether it is due, and whether today's
// deadline has already gone by. Every function takes the reference time
// explicitly and works in that time's location.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// LocalDateString renders the calendar date of t in t's own location.
func LocalDateString(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ParseDate accepts either a bare "YYYY-MM-DD" date, interpreted in loc, or an
// RFC3339 timestamp, whose calendar date in loc is used.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return StartOfDay(t.In(loc)), nil
}

// TaskDate is start + (dayNumber-1) calendar days, at midnight in start's location.
func TaskDate(start time.Time, dayNumber int) time.Time {
	y, m, d := start.Date()
	return time.Date(y, m, d+dayNumber-1, 0, 0, 0, 0, start.Location())
}

// civil strips the location so two calendar dates from different zones compare by date only.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func IsDueToday(start time.Time, dayNumber int, now time.Time) bool {
	return civil(TaskDate(start, dayNumber)).Equal(civil(now))
}

func IsInPast(start time.Time, dayNumber int, now time.Time) bool {
	return civil(TaskDate(start, dayNumber)).Before(civil(now))
}

// DayIndex is the 1-based day of the challenge that now falls on. It is <= 0
// before the start and > durationDays after the end.
func DayIndex(start time.Time, now time.Time) int {
	days := int(civil(now).Sub(civil(start)).Hours() / 24)
	return days + 1
}

// IsFinished reports whether the last day of the window is behind now.
func IsFinished(start time.Time, durationDays int, now time.Time) bool {
	return DayIndex(start, now) > durationDays
}

// ParseClock parses a 24h "HH:MM" string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// IsDeadlinePassed compares the wall clock of now against an "HH:MM" deadline.
// The deadline minute itself counts as passed. An empty or malformed deadline
// never passes.
func IsDeadlinePassed(deadline string, now time.Time) bool {
	if deadline == "" {
		return false
	}
	h, m, err := ParseClock(deadline)
	if err != nil {
		return false
	}
	if now.Hour() != h {
		return now.Hour() > h
	}
	return now.Minute() >= m
}

// DeadlineAt returns today's deadline instant in now's location.
func DeadlineAt(deadline string, now time.Time) (time.Time, bool) {
	h, m, err := ParseClock(deadline)
	if err != nil {
		return time.Time{}, false
	}
	y, mo, d := now.Date()
	return time.Date(y, mo, d, h, m, 0, 0, now.Location()), true
}

// FriendlyDate renders "Today", "Yesterday" or a short weekday/month/day label.
func FriendlyDate(t time.Time, now time.Time) string {
	switch civil(now).Sub(civil(t)) {
	case 0:
		return "Today"
	case 24 * time.Hour:
		return "Yesterday"
	}
	return t.Format("Mon, Jan 2")
}
