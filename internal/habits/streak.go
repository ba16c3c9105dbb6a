package habits

import "time"

// completionGraceWindow is how long after the previous completion a new one still
// continues the streak. It deliberately spans two full days rather than comparing
// calendar days.
const completionGraceWindow = 48 * time.Hour

// EventKind enumerates the domain events emitted by habit operations.
type EventKind string

const (
	// EventHabitCreated fires once when a habit is created.
	EventHabitCreated EventKind = "habit_created"
	// EventStreakMilestone fires when a streak lands exactly on a milestone value.
	EventStreakMilestone EventKind = "streak_milestone"
)

// milestones maps milestone streak values to whether they are email eligible.
var milestones = map[int]bool{
	7:  false,
	30: true,
}

// Event describes a side effect requested by a habit operation.
type Event struct {
	Kind          EventKind
	UserID        string
	HabitID       string
	HabitName     string
	Streak        int
	EmailEligible bool
	OccurredAt    time.Time
}

// CompletionResult is the outcome of logging a completion.
// Changed is false when the habit was already completed today.
type CompletionResult struct {
	Habit   Habit
	Changed bool
	Events  []Event
}

// LogCompletion applies a completion at now to the habit and returns the updated state.
// The input habit is never mutated.
func LogCompletion(habit Habit, now time.Time) CompletionResult {
	if habit.CompletedToday {
		return CompletionResult{Habit: habit, Changed: false}
	}

	updated := habit
	last, hasPrevious := habit.LastCompletion()
	if !hasPrevious || now.Sub(last) <= completionGraceWindow {
		updated.CurrentStreak = habit.CurrentStreak + 1
	} else {
		updated.CurrentStreak = 1
	}
	if updated.CurrentStreak > habit.BestStreak {
		updated.BestStreak = updated.CurrentStreak
	}

	completions := make([]Completion, len(habit.Completions), len(habit.Completions)+1)
	copy(completions, habit.Completions)
	updated.Completions = append(completions, Completion{HabitID: habit.ID, CompletedAt: now})
	updated.CompletedToday = true

	result := CompletionResult{Habit: updated, Changed: true}
	if emailEligible, ok := milestones[updated.CurrentStreak]; ok {
		result.Events = append(result.Events, Event{
			Kind:          EventStreakMilestone,
			UserID:        habit.UserID,
			HabitID:       habit.ID,
			HabitName:     habit.Name,
			Streak:        updated.CurrentStreak,
			EmailEligible: emailEligible,
			OccurredAt:    now,
		})
	}
	return result
}
