package server

import (
	"time"

	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"github.com/MarcoPoloResearchLab/habitual/internal/notifications"
)

const dateLayout = "2006-01-02"

type habitPayload struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Frequency       string    `json:"frequency"`
	CurrentStreak   int       `json:"current_streak"`
	BestStreak      int       `json:"best_streak"`
	CompletedToday  bool      `json:"completed_today"`
	CompletionDates []string  `json:"completion_dates"`
	ReminderEnabled bool      `json:"reminder_enabled"`
	ReminderTime    string    `json:"reminder_time,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newHabitPayload(habit habits.Habit) habitPayload {
	dates := make([]string, 0, len(habit.Completions))
	for _, completedAt := range habit.CompletionTimes() {
		dates = append(dates, completedAt.UTC().Format(time.RFC3339))
	}
	return habitPayload{
		ID:              habit.ID,
		Name:            habit.Name,
		Description:     habit.Description,
		Frequency:       string(habit.Frequency),
		CurrentStreak:   habit.CurrentStreak,
		BestStreak:      habit.BestStreak,
		CompletedToday:  habit.CompletedToday,
		CompletionDates: dates,
		ReminderEnabled: habit.ReminderEnabled,
		ReminderTime:    habit.ReminderTime,
		CreatedAt:       habit.CreatedAt.UTC(),
	}
}

type habitListPayload struct {
	Habits []habitPayload `json:"habits"`
}

type completionPayload struct {
	Habit   habitPayload `json:"habit"`
	Changed bool         `json:"changed"`
}

type dayStatPayload struct {
	Day            string `json:"day"`
	Date           string `json:"date"`
	Completed      bool   `json:"completed"`
	CompletedCount int    `json:"completed_count"`
	MissedCount    int    `json:"missed_count"`
}

type statsPayload struct {
	TotalHabits    int              `json:"total_habits"`
	ActiveHabits   int              `json:"active_habits"`
	CompletionRate int              `json:"completion_rate"`
	CurrentStreak  int              `json:"current_streak"`
	BestStreak     int              `json:"best_streak"`
	StreakData     []dayStatPayload `json:"streak_data"`
}

func newStatsPayload(stats habits.Stats) statsPayload {
	response := statsPayload{
		TotalHabits:    stats.TotalHabits,
		ActiveHabits:   stats.ActiveHabits,
		CompletionRate: stats.CompletionRate,
		CurrentStreak:  stats.CurrentStreak,
		BestStreak:     stats.BestStreak,
		StreakData:     make([]dayStatPayload, 0, len(stats.StreakData)),
	}
	for _, day := range stats.StreakData {
		response.StreakData = append(response.StreakData, dayStatPayload{
			Day:            day.Day,
			Date:           day.Date.Format(dateLayout),
			Completed:      day.Completed,
			CompletedCount: day.CompletedCount,
			MissedCount:    day.MissedCount,
		})
	}
	return response
}

type notificationPayload struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func newNotificationPayload(notification notifications.Notification) notificationPayload {
	return notificationPayload{
		ID:        notification.ID,
		Title:     notification.Title,
		Message:   notification.Message,
		Type:      string(notification.Type),
		Read:      notification.Read,
		CreatedAt: notification.CreatedAt.UTC(),
	}
}

type notificationListPayload struct {
	Notifications []notificationPayload `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
}

type settingsPayload struct {
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PushEnabled bool   `json:"push_enabled"`
}

type reminderResponsePayload struct {
	Success            bool `json:"success"`
	RemindersProcessed int  `json:"reminders_processed"`
}

type fieldErrorPayload struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationErrorPayload struct {
	Error   string              `json:"error"`
	Details []fieldErrorPayload `json:"details"`
}

func newFieldErrorPayloads(validationErrs habits.ValidationErrors) []fieldErrorPayload {
	details := make([]fieldErrorPayload, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		details = append(details, fieldErrorPayload{Field: fieldErr.Field, Message: fieldErr.Message})
	}
	return details
}
