package notifications

import (
	"context"
	"fmt"

	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"go.uber.org/zap"
)

// Notifier fans a message out across channels.
type Notifier interface {
	Notify(ctx context.Context, message Message) Report
}

// EventRouter turns habit domain events into notifications.
type EventRouter struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewEventRouter(notifier Notifier, logger *zap.Logger) *EventRouter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventRouter{notifier: notifier, logger: logger}
}

// Publish dispatches one notification per event. Delivery problems never surface to the caller.
func (r *EventRouter) Publish(ctx context.Context, events []habits.Event) {
	if r == nil || r.notifier == nil {
		return
	}
	for _, event := range events {
		message, ok := MessageForEvent(event)
		if !ok {
			r.logger.Debug("habit event ignored", zap.String("kind", string(event.Kind)))
			continue
		}
		r.notifier.Notify(ctx, message)
	}
}

// MessageForEvent describes the notification a habit event produces.
func MessageForEvent(event habits.Event) (Message, bool) {
	switch event.Kind {
	case habits.EventHabitCreated:
		return Message{
			UserID:   event.UserID,
			Title:    "New Habit Created",
			Body:     fmt.Sprintf("You've created a new habit: %s. Keep it up!", event.HabitName),
			Type:     TypeSystem,
			Channels: []Channel{ChannelInApp},
		}, true
	case habits.EventStreakMilestone:
		return milestoneMessage(event)
	default:
		return Message{}, false
	}
}

func milestoneMessage(event habits.Event) (Message, bool) {
	switch event.Streak {
	case 7:
		return Message{
			UserID:   event.UserID,
			Title:    "One Week Streak! 🎉",
			Body:     fmt.Sprintf("You've completed \"%s\" for 7 days in a row. Great job!", event.HabitName),
			Type:     TypeStreak,
			Channels: []Channel{ChannelInApp},
		}, true
	case 30:
		message := Message{
			UserID:       event.UserID,
			Title:        "One Month Streak! 🏆",
			Body:         fmt.Sprintf("Amazing! You've maintained \"%s\" for 30 days straight.", event.HabitName),
			Type:         TypeStreak,
			EmailSubject: "Congratulations on Your 30-Day Streak!",
			EmailText:    fmt.Sprintf("You've completed \"%s\" for 30 days in a row. That's a huge achievement!", event.HabitName),
			Channels:     []Channel{ChannelInApp},
		}
		if event.EmailEligible {
			message.Channels = append(message.Channels, ChannelEmail)
		}
		return message, true
	default:
		return Message{
			UserID:   event.UserID,
			Title:    fmt.Sprintf("%d Day Streak!", event.Streak),
			Body:     fmt.Sprintf("You've completed \"%s\" for %d days in a row.", event.HabitName, event.Streak),
			Type:     TypeStreak,
			Channels: []Channel{ChannelInApp},
		}, true
	}
}

// ReminderMessage describes the reminder sent for a habit not yet completed today.
func ReminderMessage(habit habits.Habit) Message {
	return Message{
		UserID:   habit.UserID,
		Title:    "Habit Reminder",
		Body:     fmt.Sprintf("Don't forget to complete your habit: %s", habit.Name),
		Type:     TypeReminder,
		URL:      "/",
		Channels: AllChannels,
	}
}
