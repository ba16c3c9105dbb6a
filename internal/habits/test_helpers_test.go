package habits

import (
	"testing"
	"time"
)

var testLocation = time.UTC

func mustUserID(t *testing.T, value string) UserID {
	t.Helper()
	id, err := NewUserID(value)
	if err != nil {
		t.Fatalf("unexpected user id error: %v", err)
	}
	return id
}

func mustHabitID(t *testing.T, value string) HabitID {
	t.Helper()
	id, err := NewHabitID(value)
	if err != nil {
		t.Fatalf("unexpected habit id error: %v", err)
	}
	return id
}

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, testLocation)
}

func habitWithCompletions(id string, createdAt time.Time, completions ...time.Time) Habit {
	habit := Habit{
		ID:        id,
		UserID:    "user-1",
		Name:      "Read",
		Frequency: FrequencyDaily,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	for _, completedAt := range completions {
		habit.Completions = append(habit.Completions, Completion{HabitID: id, CompletedAt: completedAt})
	}
	return habit
}
