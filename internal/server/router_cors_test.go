package server

import (
	"net/http"
	"strings"
	"testing"
)

func TestPreflightAllowsAuthorizedHabitEdits(t *testing.T) {
	fixture := newRouterFixture(t)

	recorder := fixture.do(http.MethodOptions, "/habits/habit-1", "", map[string]string{
		"Origin":                         "https://habits.example.com",
		"Access-Control-Request-Method":  http.MethodPatch,
		"Access-Control-Request-Headers": "Authorization, Content-Type",
	})

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "https://habits.example.com" {
		t.Fatalf("expected origin to be echoed, got %q", origin)
	}
	allowMethods := recorder.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allowMethods, http.MethodPatch) {
		t.Fatalf("expected PATCH in allowed methods, got %q", allowMethods)
	}
	allowHeaders := strings.ToLower(recorder.Header().Get("Access-Control-Allow-Headers"))
	for _, header := range []string{"authorization", "content-type"} {
		if !strings.Contains(allowHeaders, header) {
			t.Fatalf("expected %s in allowed headers, got %q", header, allowHeaders)
		}
	}
	if recorder.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials to be enabled")
	}
	if len(fixture.habits.updatedIDs) != 0 {
		t.Fatalf("preflight must not reach the habit service")
	}
}
