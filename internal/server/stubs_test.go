package server

import (
	"context"
	"net/http"

	"github.com/MarcoPoloResearchLab/habitual/internal/auth"
	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"github.com/MarcoPoloResearchLab/habitual/internal/notifications"
	"github.com/MarcoPoloResearchLab/habitual/internal/reminders"
	"github.com/MarcoPoloResearchLab/habitual/internal/users"
)

type stubSessionValidator struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

type stubUserService struct {
	user          users.User
	resolveErr    error
	subscriptions map[string]users.PushSubscription
}

func (s *stubUserService) ResolveUser(context.Context, auth.SessionClaims) (users.User, error) {
	return s.user, s.resolveErr
}

func (s *stubUserService) UpsertPushSubscription(_ context.Context, externalID string, subscription users.PushSubscription) error {
	if subscription.Endpoint == "" {
		return users.ErrInvalidPushSubscription
	}
	if s.subscriptions == nil {
		s.subscriptions = make(map[string]users.PushSubscription)
	}
	s.subscriptions[externalID] = subscription
	return nil
}

func (s *stubUserService) ClearPushSubscription(_ context.Context, externalID string) error {
	delete(s.subscriptions, externalID)
	return nil
}

type stubHabitService struct {
	habits     []habits.Habit
	created    []habits.Draft
	createErr  error
	getErr     error
	logResult  habits.CompletionResult
	logErr     error
	stats      habits.Stats
	updatedIDs []string
	deletedIDs []string
}

func (s *stubHabitService) ListHabits(context.Context, string) ([]habits.Habit, error) {
	return s.habits, nil
}

func (s *stubHabitService) GetHabit(_ context.Context, _ string, habitID string) (habits.Habit, error) {
	if s.getErr != nil {
		return habits.Habit{}, s.getErr
	}
	for _, habit := range s.habits {
		if habit.ID == habitID {
			return habit, nil
		}
	}
	return habits.Habit{}, habits.ErrHabitNotFound
}

func (s *stubHabitService) CreateHabit(_ context.Context, userID string, draft habits.Draft) (habits.Habit, error) {
	if s.createErr != nil {
		return habits.Habit{}, s.createErr
	}
	s.created = append(s.created, draft)
	return habits.Habit{ID: "habit-new", UserID: userID, Name: draft.Name, Frequency: habits.FrequencyDaily}, nil
}

func (s *stubHabitService) UpdateHabit(_ context.Context, _ string, habitID string, _ habits.Draft) error {
	s.updatedIDs = append(s.updatedIDs, habitID)
	return nil
}

func (s *stubHabitService) DeleteHabit(_ context.Context, _ string, habitID string) error {
	s.deletedIDs = append(s.deletedIDs, habitID)
	return nil
}

func (s *stubHabitService) LogCompletion(context.Context, string, string) (habits.CompletionResult, error) {
	return s.logResult, s.logErr
}

func (s *stubHabitService) Stats(context.Context, string) (habits.Stats, error) {
	return s.stats, nil
}

type stubNotificationService struct {
	list      []notifications.Notification
	unread    int64
	markErr   error
	markedIDs []string
}

func (s *stubNotificationService) List(context.Context, string) ([]notifications.Notification, error) {
	return s.list, nil
}

func (s *stubNotificationService) UnreadCount(context.Context, string) (int64, error) {
	return s.unread, nil
}

func (s *stubNotificationService) MarkRead(_ context.Context, _ string, notificationID string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markedIDs = append(s.markedIDs, notificationID)
	return nil
}

func (s *stubNotificationService) MarkAllRead(context.Context, string) (int, error) {
	return len(s.list), nil
}

type stubReminderTrigger struct {
	presented []string
	result    reminders.Result
	err       error
}

func (s *stubReminderTrigger) Process(_ context.Context, presented string) (reminders.Result, error) {
	s.presented = append(s.presented, presented)
	return s.result, s.err
}
