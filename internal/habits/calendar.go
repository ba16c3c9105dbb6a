package habits

import (
	"fmt"
	"time"
)

const clockLayout = "15:04"

func startOfDay(moment time.Time, location *time.Location) time.Time {
	local := moment.In(location)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
}

func endOfDay(moment time.Time, location *time.Location) time.Time {
	return startOfDay(moment, location).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func sameDay(first time.Time, second time.Time, location *time.Location) bool {
	a := first.In(location)
	b := second.In(location)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func withinDay(moment time.Time, start time.Time, end time.Time) bool {
	return !moment.Before(start) && !moment.After(end)
}

// ClockMinute formats the wall-clock minute of moment as HH:MM in location.
func ClockMinute(moment time.Time, location *time.Location) string {
	return moment.In(location).Format(clockLayout)
}

// ParseClockMinute validates a zero-padded HH:MM reminder time.
func ParseClockMinute(value string) (string, error) {
	parsed, err := time.Parse(clockLayout, value)
	if err != nil {
		return "", fmt.Errorf("invalid reminder time %q: %w", value, err)
	}
	if canonical := parsed.Format(clockLayout); canonical != value {
		return "", fmt.Errorf("invalid reminder time %q: want %q", value, canonical)
	}
	return value, nil
}

// completedTodayIsStale reports whether the completed-today flag no longer matches the
// completion history, i.e. the most recent completion is not on now's calendar day.
func completedTodayIsStale(habit Habit, now time.Time, location *time.Location) bool {
	if !habit.CompletedToday {
		return false
	}
	last, ok := habit.LastCompletion()
	if !ok {
		return true
	}
	return !sameDay(last, now, location)
}
