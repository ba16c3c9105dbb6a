package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/habitual/internal/auth"
	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"github.com/MarcoPoloResearchLab/habitual/internal/reminders"
	"github.com/MarcoPoloResearchLab/habitual/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type routerFixture struct {
	handler       http.Handler
	habits        *stubHabitService
	notifications *stubNotificationService
	users         *stubUserService
	reminders     *stubReminderTrigger
	realtime      *RealtimeDispatcher
}

var fixtureTime = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fixture := routerFixture{
		habits:        &stubHabitService{},
		notifications: &stubNotificationService{},
		users:         &stubUserService{user: users.User{ExternalID: "user-1", Email: "ada@example.com", FirstName: "Ada"}},
		reminders:     &stubReminderTrigger{},
		realtime:      NewRealtimeDispatcher(),
	}
	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: stubSessionValidator{claims: auth.SessionClaims{UserID: "user-1"}},
		Users:            fixture.users,
		Habits:           fixture.habits,
		Notifications:    fixture.notifications,
		Reminders:        fixture.reminders,
		Realtime:         fixture.realtime,
		PushPublicKey:    "public-key",
		Clock:            func() time.Time { return fixtureTime },
		Logger:           zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	fixture.handler = handler
	return fixture
}

func (f routerFixture) do(method string, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, path, http.NoBody)
	} else {
		request = httptest.NewRequest(method, path, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatalf("expected missing dependency error")
	}
}

func TestCreateHabitReturnsCreatedPayload(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(http.MethodPost, "/habits", `{"name":"Read","frequency":"daily","reminder_enabled":true,"reminder_time":"08:00"}`, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload habitPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.ID != "habit-new" || payload.Name != "Read" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if len(fixture.habits.created) != 1 || !fixture.habits.created[0].ReminderEnabled || fixture.habits.created[0].ReminderTime != "08:00" {
		t.Fatalf("expected draft to be forwarded, got %#v", fixture.habits.created)
	}
}

func TestHabitChangeEventsUseInjectedClock(t *testing.T) {
	fixture := newRouterFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, cleanup := fixture.realtime.Subscribe(ctx, "user-1")
	defer cleanup()

	recorder := fixture.do(http.MethodPost, "/habits", `{"name":"Read","frequency":"daily"}`, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", recorder.Code)
	}

	select {
	case message := <-stream:
		if message.EventType != RealtimeEventHabitsChanged {
			t.Fatalf("unexpected event type %q", message.EventType)
		}
		if !message.Timestamp.Equal(fixtureTime) {
			t.Fatalf("expected timestamp %s, got %s", fixtureTime, message.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a habits change event")
	}
}

func TestCreateHabitReportsFieldErrors(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.habits.createErr = habits.ValidationErrors{{Field: "name", Message: "Name is required"}}

	recorder := fixture.do(http.MethodPost, "/habits", `{"name":""}`, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", recorder.Code)
	}
	expected := `{"error":"invalid_habit","details":[{"field":"name","message":"Name is required"}]}`
	if recorder.Body.String() != expected {
		t.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestLogCompletionMapsMissingHabitToNotFound(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.habits.logErr = habits.ErrHabitNotFound

	recorder := fixture.do(http.MethodPost, "/habits/habit-9/complete", "", nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", recorder.Code)
	}
}

func TestLogCompletionReturnsHabitAndChangeFlag(t *testing.T) {
	fixture := newRouterFixture(t)
	completedAt := time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)
	fixture.habits.logResult = habits.CompletionResult{
		Habit: habits.Habit{
			ID:             "habit-1",
			Name:           "Read",
			CurrentStreak:  3,
			BestStreak:     5,
			CompletedToday: true,
			Completions:    []habits.Completion{{HabitID: "habit-1", CompletedAt: completedAt}},
		},
		Changed: true,
	}

	recorder := fixture.do(http.MethodPost, "/habits/habit-1/complete", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var payload completionPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if !payload.Changed || payload.Habit.CurrentStreak != 3 || payload.Habit.BestStreak != 5 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if len(payload.Habit.CompletionDates) != 1 || payload.Habit.CompletionDates[0] != "2024-03-01T09:00:00Z" {
		t.Fatalf("unexpected completion dates: %#v", payload.Habit.CompletionDates)
	}
}

func TestUpdateAndDeleteRespondNoContent(t *testing.T) {
	fixture := newRouterFixture(t)

	update := fixture.do(http.MethodPatch, "/habits/habit-1", `{"name":"Write","frequency":"weekly"}`, nil)
	if update.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 for update, got %d", update.Code)
	}
	remove := fixture.do(http.MethodDelete, "/habits/habit-1", "", nil)
	if remove.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 for delete, got %d", remove.Code)
	}
	if len(fixture.habits.updatedIDs) != 1 || len(fixture.habits.deletedIDs) != 1 {
		t.Fatalf("expected update and delete to reach the service")
	}
}

func TestStatsPayloadFormatsSeries(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.habits.stats = habits.Stats{
		TotalHabits:    2,
		ActiveHabits:   1,
		CompletionRate: 50,
		CurrentStreak:  10,
		BestStreak:     10,
		StreakData: []habits.DayStat{
			{Day: "Sun", Date: time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC), Completed: true, CompletedCount: 1, MissedCount: 1},
		},
	}

	recorder := fixture.do(http.MethodGet, "/stats", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var payload statsPayload
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.CompletionRate != 50 || payload.CurrentStreak != 10 {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if len(payload.StreakData) != 1 || payload.StreakData[0].Date != "2024-03-10" || payload.StreakData[0].Day != "Sun" {
		t.Fatalf("unexpected series: %#v", payload.StreakData)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: stubSessionValidator{err: auth.ErrMissingSessionToken},
		Users:            &stubUserService{},
		Habits:           &stubHabitService{},
		Notifications:    &stubNotificationService{},
		Reminders:        &stubReminderTrigger{},
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/habits"},
		{http.MethodPost, "/habits/habit-1/complete"},
		{http.MethodGet, "/notifications"},
		{http.MethodGet, "/settings"},
	} {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(route.method, route.path, http.NoBody))
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, recorder.Code)
		}
	}
}

func TestReminderTriggerEndpoint(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.reminders.result = reminders.Result{Minute: "08:00", Processed: 3}

	recorder := fixture.do(http.MethodGet, "/cron/reminders", "", map[string]string{"Authorization": "Bearer cron-secret"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"success":true,"reminders_processed":3}` {
		t.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
	if len(fixture.reminders.presented) != 1 || fixture.reminders.presented[0] != "cron-secret" {
		t.Fatalf("expected bearer credential to be forwarded, got %#v", fixture.reminders.presented)
	}
}

func TestReminderTriggerRejectsBadCredential(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.reminders.err = reminders.ErrUnauthorized

	recorder := fixture.do(http.MethodPost, "/cron/reminders", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", recorder.Code)
	}
}
