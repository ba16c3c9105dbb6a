package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/habitual/internal/auth"
	"github.com/MarcoPoloResearchLab/habitual/internal/database"
	"github.com/MarcoPoloResearchLab/habitual/internal/habits"
	"github.com/MarcoPoloResearchLab/habitual/internal/notifications"
	"github.com/MarcoPoloResearchLab/habitual/internal/reminders"
	"github.com/MarcoPoloResearchLab/habitual/internal/users"
	githubsqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "test-signing-secret"
	testCookieName    = "app_session"
)

func TestRealtimeStreamEmitsNotificationEvents(t *testing.T) {
	db, err := gorm.Open(githubsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct session validator: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to construct user service: %v", err)
	}

	realtime := NewRealtimeDispatcher()
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherConfig{
		Database:   db,
		Users:      userService,
		IDProvider: habits.NewUUIDProvider(),
		Listener:   realtime,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to construct dispatcher: %v", err)
	}
	habitService, err := habits.NewService(habits.ServiceConfig{
		Database:   db,
		IDProvider: habits.NewUUIDProvider(),
		Events:     notifications.NewEventRouter(dispatcher, zap.NewNop()),
	})
	if err != nil {
		t.Fatalf("failed to construct habit service: %v", err)
	}
	notificationService, err := notifications.NewService(notifications.ServiceConfig{Database: db, Listener: realtime})
	if err != nil {
		t.Fatalf("failed to construct notification service: %v", err)
	}
	trigger, err := reminders.NewTrigger(reminders.TriggerConfig{
		Credential: auth.NewTriggerCredential("cron-secret"),
		Habits:     habitService,
		Notifier:   dispatcher,
	})
	if err != nil {
		t.Fatalf("failed to construct reminder trigger: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		SessionValidator: sessionValidator,
		Users:            userService,
		Habits:           habitService,
		Notifications:    notificationService,
		Reminders:        trigger,
		Realtime:         realtime,
		Logger:           zap.NewExample(),
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	token := signSessionToken(t, "user-123")

	streamRequest, err := http.NewRequest(http.MethodGet, server.URL+"/notifications/stream", http.NoBody)
	if err != nil {
		t.Fatalf("failed to construct stream request: %v", err)
	}
	streamRequest.AddCookie(&http.Cookie{Name: testCookieName, Value: token})
	streamResp, err := http.DefaultClient.Do(streamRequest)
	if err != nil {
		t.Fatalf("failed to open stream: %v", err)
	}
	t.Cleanup(func() {
		_ = streamResp.Body.Close()
	})
	if streamResp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected stream status: %d", streamResp.StatusCode)
	}

	streamReader := bufio.NewReader(streamResp.Body)

	payload := `{"name":"Read","description":"Twenty pages","frequency":"daily"}`
	createReq, err := http.NewRequest(http.MethodPost, server.URL+"/habits", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("failed to construct create request: %v", err)
	}
	createReq.Header.Set("Authorization", "Bearer "+token)
	createReq.Header.Set("Content-Type", "application/json")
	createResp, err := http.DefaultClient.Do(createReq)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if createResp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", createResp.StatusCode)
	}
	var created habitPayload
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	_ = createResp.Body.Close()
	if created.Name != "Read" || created.CurrentStreak != 0 {
		t.Fatalf("unexpected created habit: %#v", created)
	}

	type eventPayload struct {
		IDs []string `json:"ids"`
	}

	currentEventType := ""
	deadline := time.After(5 * time.Second)
	type readResult struct {
		line string
		err  error
	}
	for {
		resultCh := make(chan readResult, 1)
		go func() {
			line, err := streamReader.ReadString('\n')
			resultCh <- readResult{line: line, err: err}
		}()
		select {
		case <-deadline:
			t.Fatal("timed out waiting for realtime event")
		case res := <-resultCh:
			if res.err != nil {
				t.Fatalf("failed to read stream: %v", res.err)
			}
			line := strings.TrimSpace(res.line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "event:") {
				currentEventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				continue
			}
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			if currentEventType != RealtimeEventNotificationCreated {
				continue
			}
			dataJSON := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			var event eventPayload
			if err := json.Unmarshal([]byte(dataJSON), &event); err != nil {
				t.Fatalf("failed to decode event payload: %v", err)
			}
			if len(event.IDs) != 1 || event.IDs[0] == "" {
				t.Fatalf("unexpected notification identifiers: %#v", event.IDs)
			}
			return
		}
	}
}

func signSessionToken(t *testing.T, userID string) string {
	t.Helper()
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID:          userID,
		UserEmail:       userID + "@example.com",
		UserDisplayName: "Test User",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tauth",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
