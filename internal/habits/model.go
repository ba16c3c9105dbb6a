package habits

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency enumerates how often a habit is expected to be completed.
type Frequency string

const (
	// FrequencyDaily expects a completion every day.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly expects a completion every week.
	FrequencyWeekly Frequency = "weekly"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidHabitID indicates that a habit identifier is empty or exceeds storage bounds.
	ErrInvalidHabitID = errors.New("habits: invalid habit id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("habits: invalid user id")
	// ErrHabitNotFound indicates the habit does not exist or belongs to another user.
	ErrHabitNotFound = errors.New("habits: habit not found")
)

// HabitID represents a validated habit identifier.
type HabitID string

// NewHabitID validates raw input and returns a HabitID.
func NewHabitID(rawInput string) (HabitID, error) {
	trimmed, err := validateIdentifier(rawInput)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHabitID, err)
	}
	return HabitID(trimmed), nil
}

// String returns the underlying string identifier.
func (id HabitID) String() string {
	return string(id)
}

// UserID represents a validated owner identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed, err := validateIdentifier(rawInput)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

func validateIdentifier(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", errors.New("empty")
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("exceeds %d characters", maxIdentifierLength)
	}
	return trimmed, nil
}

// Habit is a user-owned routine with its streak counters and completion history.
type Habit struct {
	ID              string       `gorm:"column:id;primaryKey;size:64;not null"`
	UserID          string       `gorm:"column:user_id;size:190;not null;index:idx_habits_user_created,priority:1"`
	Name            string       `gorm:"column:name;size:50;not null"`
	Description     string       `gorm:"column:description;size:200;not null;default:''"`
	Frequency       Frequency    `gorm:"column:frequency;size:16;not null;default:'daily'"`
	CurrentStreak   int          `gorm:"column:current_streak;not null;default:0"`
	BestStreak      int          `gorm:"column:best_streak;not null;default:0"`
	CompletedToday  bool         `gorm:"column:completed_today;not null;default:false"`
	ReminderEnabled bool         `gorm:"column:reminder_enabled;not null;default:false;index:idx_habits_reminder,priority:1"`
	ReminderTime    string       `gorm:"column:reminder_time;size:5;not null;default:'';index:idx_habits_reminder,priority:2"`
	CreatedAt       time.Time    `gorm:"column:created_at;not null;index:idx_habits_user_created,priority:2"`
	UpdatedAt       time.Time    `gorm:"column:updated_at;not null"`
	Completions     []Completion `gorm:"foreignKey:HabitID;references:ID"`
}

// TableName provides the explicit table binding for GORM.
func (Habit) TableName() string {
	return "habits"
}

// LastCompletion returns the most recent completion timestamp.
func (h Habit) LastCompletion() (time.Time, bool) {
	if len(h.Completions) == 0 {
		return time.Time{}, false
	}
	return h.Completions[len(h.Completions)-1].CompletedAt, true
}

// CompletionTimes returns the completion history in chronological order.
func (h Habit) CompletionTimes() []time.Time {
	times := make([]time.Time, 0, len(h.Completions))
	for _, completion := range h.Completions {
		times = append(times, completion.CompletedAt)
	}
	return times
}

// Completion is one append-only entry of a habit's completion history.
type Completion struct {
	ID          int64     `gorm:"column:completion_id;primaryKey;autoIncrement"`
	HabitID     string    `gorm:"column:habit_id;size:64;not null;index:idx_completions_habit_time,priority:1"`
	CompletedAt time.Time `gorm:"column:completed_at;not null;index:idx_completions_habit_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Completion) TableName() string {
	return "habit_completions"
}
