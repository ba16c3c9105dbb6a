package habits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew    = "habits.service.new"
	opListHabits    = "habits.list"
	opGetHabit      = "habits.get"
	opCreateHabit   = "habits.create"
	opUpdateHabit   = "habits.update"
	opDeleteHabit   = "habits.delete"
	opLogCompletion = "habits.log_completion"
	opStats         = "habits.stats"
	opDueReminders  = "habits.due_reminders"
	opCorrectToday  = "habits.correct_completed_today"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// EventSink receives domain events after the write that produced them has committed.
type EventSink interface {
	Publish(ctx context.Context, events []Event)
}

type IDProvider interface {
	NewID() (string, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	Location   *time.Location
	IDProvider IDProvider
	Events     EventSink
	Logger     *zap.Logger
}

type Service struct {
	store      *Store
	clock      func() time.Time
	location   *time.Location
	idProvider IDProvider
	events     EventSink
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      NewStore(cfg.Database),
		clock:      clock,
		location:   location,
		idProvider: cfg.IDProvider,
		events:     cfg.Events,
		logger:     logger,
	}, nil
}

// Location returns the time zone used for calendar-day boundaries.
func (s *Service) Location() *time.Location {
	return s.location
}

// ListHabits returns the user's habits, newest first, with stale completed-today flags corrected.
func (s *Service) ListHabits(ctx context.Context, rawUserID string) ([]Habit, error) {
	userID, err := NewUserID(rawUserID)
	if err != nil {
		return nil, newServiceError(opListHabits, "invalid_user_id", err)
	}
	if s.store == nil {
		return nil, newServiceError(opListHabits, "missing_database", errMissingDatabase)
	}
	habits, err := s.store.Find(ctx, userID)
	if err != nil {
		s.logError(opListHabits, "query_failed", err, zap.String("user_id", userID.String()))
		return nil, newServiceError(opListHabits, "query_failed", err)
	}
	return s.correctCompletedToday(ctx, habits, s.clock()), nil
}

// GetHabit returns a single habit owned by the user.
func (s *Service) GetHabit(ctx context.Context, rawUserID string, rawHabitID string) (Habit, error) {
	userID, habitID, err := parseOwnership(rawUserID, rawHabitID)
	if err != nil {
		return Habit{}, newServiceError(opGetHabit, "invalid_identifier", err)
	}
	if s.store == nil {
		return Habit{}, newServiceError(opGetHabit, "missing_database", errMissingDatabase)
	}
	habit, err := s.store.FindOne(ctx, habitID, userID)
	if errors.Is(err, ErrHabitNotFound) {
		return Habit{}, newServiceError(opGetHabit, "not_found", err)
	}
	if err != nil {
		s.logError(opGetHabit, "query_failed", err, zap.String("habit_id", habitID.String()))
		return Habit{}, newServiceError(opGetHabit, "query_failed", err)
	}
	return s.correctCompletedToday(ctx, []Habit{habit}, s.clock())[0], nil
}

// CreateHabit validates the draft and stores a new habit with an empty history.
func (s *Service) CreateHabit(ctx context.Context, rawUserID string, input Draft) (Habit, error) {
	userID, err := NewUserID(rawUserID)
	if err != nil {
		return Habit{}, newServiceError(opCreateHabit, "invalid_user_id", err)
	}
	draft, validationErrs := ValidateDraft(input)
	if len(validationErrs) > 0 {
		return Habit{}, validationErrs
	}
	if s.store == nil {
		return Habit{}, newServiceError(opCreateHabit, "missing_database", errMissingDatabase)
	}

	habitID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateHabit, "id_generation_failed", err)
		return Habit{}, newServiceError(opCreateHabit, "id_generation_failed", err)
	}
	now := s.clock().UTC()
	habit := Habit{
		ID:              habitID,
		UserID:          userID.String(),
		Name:            draft.Name,
		Description:     draft.Description,
		Frequency:       draft.Frequency,
		ReminderEnabled: draft.ReminderEnabled,
		ReminderTime:    draft.ReminderTime,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Insert(ctx, &habit); err != nil {
		s.logError(opCreateHabit, "insert_failed", err, zap.String("user_id", userID.String()))
		return Habit{}, newServiceError(opCreateHabit, "insert_failed", err)
	}

	s.publish(ctx, []Event{{
		Kind:       EventHabitCreated,
		UserID:     habit.UserID,
		HabitID:    habit.ID,
		HabitName:  habit.Name,
		OccurredAt: now,
	}})
	return habit, nil
}

// UpdateHabit replaces the editable fields of the user's habit.
// A habit that does not exist or belongs to someone else is left untouched without error.
func (s *Service) UpdateHabit(ctx context.Context, rawUserID string, rawHabitID string, input Draft) error {
	userID, habitID, err := parseOwnership(rawUserID, rawHabitID)
	if err != nil {
		return newServiceError(opUpdateHabit, "invalid_identifier", err)
	}
	draft, validationErrs := ValidateDraft(input)
	if len(validationErrs) > 0 {
		return validationErrs
	}
	if s.store == nil {
		return newServiceError(opUpdateHabit, "missing_database", errMissingDatabase)
	}
	matched, err := s.store.Update(ctx, habitID, userID, Patch{
		Name:            draft.Name,
		Description:     draft.Description,
		Frequency:       draft.Frequency,
		ReminderEnabled: draft.ReminderEnabled,
		ReminderTime:    draft.ReminderTime,
	}, s.clock().UTC())
	if err != nil {
		s.logError(opUpdateHabit, "update_failed", err, zap.String("habit_id", habitID.String()))
		return newServiceError(opUpdateHabit, "update_failed", err)
	}
	if !matched {
		s.loggerOrDefault().Debug("habit update matched nothing",
			zap.String("user_id", userID.String()),
			zap.String("habit_id", habitID.String()))
	}
	return nil
}

// DeleteHabit hard-deletes the user's habit. Foreign or unknown habits are a silent no-op.
func (s *Service) DeleteHabit(ctx context.Context, rawUserID string, rawHabitID string) error {
	userID, habitID, err := parseOwnership(rawUserID, rawHabitID)
	if err != nil {
		return newServiceError(opDeleteHabit, "invalid_identifier", err)
	}
	if s.store == nil {
		return newServiceError(opDeleteHabit, "missing_database", errMissingDatabase)
	}
	if _, err := s.store.Delete(ctx, habitID, userID); err != nil {
		s.logError(opDeleteHabit, "delete_failed", err, zap.String("habit_id", habitID.String()))
		return newServiceError(opDeleteHabit, "delete_failed", err)
	}
	return nil
}

// LogCompletion records a completion for today. Logging an already completed habit is a no-op
// reported through CompletionResult.Changed.
func (s *Service) LogCompletion(ctx context.Context, rawUserID string, rawHabitID string) (CompletionResult, error) {
	userID, habitID, err := parseOwnership(rawUserID, rawHabitID)
	if err != nil {
		return CompletionResult{}, newServiceError(opLogCompletion, "invalid_identifier", err)
	}
	if s.store == nil {
		return CompletionResult{}, newServiceError(opLogCompletion, "missing_database", errMissingDatabase)
	}
	habit, err := s.store.FindOne(ctx, habitID, userID)
	if errors.Is(err, ErrHabitNotFound) {
		return CompletionResult{}, newServiceError(opLogCompletion, "not_found", err)
	}
	if err != nil {
		s.logError(opLogCompletion, "query_failed", err, zap.String("habit_id", habitID.String()))
		return CompletionResult{}, newServiceError(opLogCompletion, "query_failed", err)
	}

	now := s.clock()
	habit = s.correctCompletedToday(ctx, []Habit{habit}, now)[0]
	result := LogCompletion(habit, now)
	if !result.Changed {
		return result, nil
	}

	applied, err := s.store.ApplyCompletion(ctx, habit, result.Habit, now.UTC(), startOfDay(now, s.location))
	if err != nil {
		s.logError(opLogCompletion, "update_failed", err, zap.String("habit_id", habitID.String()))
		return CompletionResult{}, newServiceError(opLogCompletion, "update_failed", err)
	}
	if !applied {
		current, err := s.store.FindOne(ctx, habitID, userID)
		if err != nil {
			return CompletionResult{}, newServiceError(opLogCompletion, "reload_failed", err)
		}
		return CompletionResult{Habit: current, Changed: false}, nil
	}

	s.publish(ctx, result.Events)
	return result, nil
}

// Stats computes the dashboard summary for the user's habits.
func (s *Service) Stats(ctx context.Context, rawUserID string) (Stats, error) {
	userID, err := NewUserID(rawUserID)
	if err != nil {
		return Stats{}, newServiceError(opStats, "invalid_user_id", err)
	}
	if s.store == nil {
		return Stats{}, newServiceError(opStats, "missing_database", errMissingDatabase)
	}
	habits, err := s.store.Find(ctx, userID)
	if err != nil {
		s.logError(opStats, "query_failed", err, zap.String("user_id", userID.String()))
		return Stats{}, newServiceError(opStats, "query_failed", err)
	}
	return ComputeStats(habits, s.clock(), s.location), nil
}

// DueForReminder returns the habits whose reminder fires at now's minute and which have not
// been completed today.
func (s *Service) DueForReminder(ctx context.Context, now time.Time) ([]Habit, error) {
	if s.store == nil {
		return nil, newServiceError(opDueReminders, "missing_database", errMissingDatabase)
	}
	clockMinute := ClockMinute(now, s.location)
	candidates, err := s.store.FindReminderCandidates(ctx, clockMinute)
	if err != nil {
		s.logError(opDueReminders, "query_failed", err, zap.String("reminder_time", clockMinute))
		return nil, newServiceError(opDueReminders, "query_failed", err)
	}
	candidates = s.correctCompletedToday(ctx, candidates, now)
	due := make([]Habit, 0, len(candidates))
	for _, habit := range candidates {
		if !habit.CompletedToday {
			due = append(due, habit)
		}
	}
	return due, nil
}

// correctCompletedToday clears completed-today flags whose latest completion is not today.
// Persisting the correction is best effort; the returned view is always corrected.
func (s *Service) correctCompletedToday(ctx context.Context, habits []Habit, now time.Time) []Habit {
	var stale []string
	for index := range habits {
		if completedTodayIsStale(habits[index], now, s.location) {
			habits[index].CompletedToday = false
			stale = append(stale, habits[index].ID)
		}
	}
	if len(stale) == 0 {
		return habits
	}
	if err := s.store.ResetCompletedToday(ctx, stale, startOfDay(now, s.location)); err != nil {
		s.logError(opCorrectToday, "update_failed", err, zap.Strings("habit_ids", stale))
	}
	return habits
}

func (s *Service) publish(ctx context.Context, events []Event) {
	if s.events == nil || len(events) == 0 {
		return
	}
	s.events.Publish(context.WithoutCancel(ctx), events)
}

func parseOwnership(rawUserID string, rawHabitID string) (UserID, HabitID, error) {
	userID, err := NewUserID(rawUserID)
	if err != nil {
		return "", "", err
	}
	habitID, err := NewHabitID(rawHabitID)
	if err != nil {
		return "", "", err
	}
	return userID, habitID, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("habits service error", attrs...)
}
