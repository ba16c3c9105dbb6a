package habits

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Patch carries the editable habit fields. Streaks and history are never patched.
type Patch struct {
	Name            string
	Description     string
	Frequency       Frequency
	ReminderEnabled bool
	ReminderTime    string
}

// Store is the habit record accessor, always scoped by owning user for user-initiated calls.
type Store struct {
	db *gorm.DB
}

// NewStore wraps the gorm handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func preloadCompletions(db *gorm.DB) *gorm.DB {
	return db.Preload("Completions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("completed_at ASC, completion_id ASC")
	})
}

// Find returns every habit owned by the user, newest first.
func (s *Store) Find(ctx context.Context, userID UserID) ([]Habit, error) {
	var habits []Habit
	err := preloadCompletions(s.db.WithContext(ctx)).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC").
		Find(&habits).Error
	if err != nil {
		return nil, err
	}
	return habits, nil
}

// FindOne returns the habit when it exists and belongs to the user.
func (s *Store) FindOne(ctx context.Context, habitID HabitID, userID UserID) (Habit, error) {
	var habit Habit
	err := preloadCompletions(s.db.WithContext(ctx)).
		Where("id = ? AND user_id = ?", habitID.String(), userID.String()).
		Take(&habit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Habit{}, ErrHabitNotFound
	}
	if err != nil {
		return Habit{}, err
	}
	return habit, nil
}

// Insert persists a new habit without completions.
func (s *Store) Insert(ctx context.Context, habit *Habit) error {
	return s.db.WithContext(ctx).Omit("Completions").Create(habit).Error
}

// Update applies the patch to the user's habit. It reports whether a record matched.
func (s *Store) Update(ctx context.Context, habitID HabitID, userID UserID, patch Patch, updatedAt time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Habit{}).
		Where("id = ? AND user_id = ?", habitID.String(), userID.String()).
		Updates(map[string]interface{}{
			"name":             patch.Name,
			"description":      patch.Description,
			"frequency":        patch.Frequency,
			"reminder_enabled": patch.ReminderEnabled,
			"reminder_time":    patch.ReminderTime,
			"updated_at":       updatedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete hard-deletes the user's habit and its completion history.
// It reports whether a record matched.
func (s *Store) Delete(ctx context.Context, habitID HabitID, userID UserID) (bool, error) {
	deleted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", habitID.String(), userID.String()).Delete(&Habit{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("habit_id = ?", habitID.String()).Delete(&Completion{}).Error
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// FindReminderCandidates returns every habit with reminders enabled at the HH:MM minute.
func (s *Store) FindReminderCandidates(ctx context.Context, clockMinute string) ([]Habit, error) {
	var habits []Habit
	err := preloadCompletions(s.db.WithContext(ctx)).
		Where("reminder_enabled = ? AND reminder_time = ?", true, clockMinute).
		Order("created_at ASC").
		Find(&habits).Error
	if err != nil {
		return nil, err
	}
	return habits, nil
}

// completedSince matches habits holding a completion at or after the bound instant.
const completedSince = "EXISTS (SELECT 1 FROM habit_completions WHERE habit_completions.habit_id = habits.id AND habit_completions.completed_at >= ?)"

// ResetCompletedToday clears completed-today flags on habits with no completion since
// dayStart, without touching streaks. A completion written after the caller's read keeps
// its flag.
func (s *Store) ResetCompletedToday(ctx context.Context, habitIDs []string, dayStart time.Time) error {
	if len(habitIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&Habit{}).
		Where("id IN ? AND completed_today = ?", habitIDs, true).
		Where("NOT "+completedSince, dayStart.UTC()).
		Update("completed_today", false).Error
}

// ApplyCompletion persists the engine's result as a single conditional update: the row is
// only written while it still holds the streaks observed in before and has no completion
// since dayStart. It reports false when another writer got there first.
func (s *Store) ApplyCompletion(ctx context.Context, before Habit, after Habit, completedAt time.Time, dayStart time.Time) (bool, error) {
	applied := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Habit{}).
			Where("id = ? AND user_id = ? AND current_streak = ? AND best_streak = ?",
				before.ID, before.UserID, before.CurrentStreak, before.BestStreak).
			Where("NOT "+completedSince, dayStart.UTC()).
			Updates(map[string]interface{}{
				"completed_today": true,
				"current_streak":  after.CurrentStreak,
				"best_streak":     after.BestStreak,
				"updated_at":      completedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		if err := tx.Create(&Completion{HabitID: before.ID, CompletedAt: completedAt}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
