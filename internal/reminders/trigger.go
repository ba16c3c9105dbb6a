package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"github.com/MarcoPoloResearchLab/habitual/internal/notifications"
	"go.uber.org/zap"
)

// ErrUnauthorized indicates the trigger was invoked without the shared credential.
var ErrUnauthorized = errors.New("reminders: unauthorized trigger")

var (
	errMissingCredential = errors.New("credential verifier is required")
	errMissingHabits     = errors.New("habit source is required")
	errMissingNotifier   = errors.New("notifier is required")
)

// CredentialVerifier checks the pre-shared trigger secret.
type CredentialVerifier interface {
	Verify(presented string) error
}

// HabitSource selects the habits whose reminder is due at a moment.
type HabitSource interface {
	DueForReminder(ctx context.Context, now time.Time) ([]habits.Habit, error)
	Location() *time.Location
}

type Notifier interface {
	Notify(ctx context.Context, message notifications.Message) notifications.Report
}

type TriggerConfig struct {
	Credential CredentialVerifier
	Habits     HabitSource
	Notifier   Notifier
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Trigger is the stateless reminder pass invoked by an external scheduler.
type Trigger struct {
	credential CredentialVerifier
	habits     HabitSource
	notifier   Notifier
	clock      func() time.Time
	logger     *zap.Logger
}

// Result summarizes one reminder pass.
type Result struct {
	Minute    string
	Processed int
}

func NewTrigger(cfg TriggerConfig) (*Trigger, error) {
	if cfg.Credential == nil {
		return nil, fmt.Errorf("reminders.trigger.new: %w", errMissingCredential)
	}
	if cfg.Habits == nil {
		return nil, fmt.Errorf("reminders.trigger.new: %w", errMissingHabits)
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("reminders.trigger.new: %w", errMissingNotifier)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		credential: cfg.Credential,
		habits:     cfg.Habits,
		notifier:   cfg.Notifier,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Process verifies the credential, then sends a reminder for every habit due this minute
// that has not been completed today. Nothing is read or written before the credential passes.
func (t *Trigger) Process(ctx context.Context, presented string) (Result, error) {
	if err := t.credential.Verify(presented); err != nil {
		t.logger.Warn("reminder trigger rejected", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	now := t.clock()
	result := Result{Minute: habits.ClockMinute(now, t.habits.Location())}
	due, err := t.habits.DueForReminder(ctx, now)
	if err != nil {
		t.logger.Error("reminder selection failed",
			zap.String("minute", result.Minute),
			zap.Error(err))
		return result, err
	}

	for _, habit := range due {
		report := t.notifier.Notify(ctx, notifications.ReminderMessage(habit))
		result.Processed++
		t.logger.Debug("reminder dispatched",
			zap.String("habit_id", habit.ID),
			zap.String("user_id", habit.UserID),
			zap.String("notification_id", report.NotificationID))
	}

	t.logger.Info("reminder pass complete",
		zap.String("minute", result.Minute),
		zap.Int("processed", result.Processed))
	return result, nil
}
