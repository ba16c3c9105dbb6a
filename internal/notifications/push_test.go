package notifications

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/habitual/internal/users"
	webpush "github.com/SherClockHolmes/webpush-go"
)

func newBrowserSubscription(t *testing.T, endpoint string) users.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate client key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("failed to generate auth secret: %v", err)
	}
	return users.PushSubscription{
		Endpoint: endpoint,
		Keys: users.PushKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func newTestPushSender(t *testing.T) *WebPushSender {
	t.Helper()
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("failed to generate vapid keys: %v", err)
	}
	sender, err := NewWebPushSender(WebPushConfig{
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		Subscriber: "mailto:test@example.com",
	})
	if err != nil {
		t.Fatalf("failed to construct push sender: %v", err)
	}
	return sender
}

func TestWebPushSenderDeliversEncryptedPayload(t *testing.T) {
	var gotAuthorization, gotEncoding string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthorization = r.Header.Get("Authorization")
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	sender := newTestPushSender(t)
	err := sender.Send(context.Background(), newBrowserSubscription(t, server.URL+"/push/abc"), PushPayload{
		Title:   "Habit Reminder",
		Message: "Don't forget to complete your habit: Read",
		URL:     "/",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.HasPrefix(gotAuthorization, "vapid ") {
		t.Fatalf("expected vapid authorization, got %q", gotAuthorization)
	}
	if gotEncoding != "aes128gcm" {
		t.Fatalf("expected aes128gcm encoding, got %q", gotEncoding)
	}
}

func TestWebPushSenderReportsGoneSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	sender := newTestPushSender(t)
	err := sender.Send(context.Background(), newBrowserSubscription(t, server.URL), PushPayload{Title: "t"})
	if !errors.Is(err, ErrSubscriptionGone) {
		t.Fatalf("expected gone subscription, got %v", err)
	}
}

func TestWebPushSenderRequiresKeys(t *testing.T) {
	if _, err := NewWebPushSender(WebPushConfig{PublicKey: "public"}); !errors.Is(err, ErrChannelNotConfigured) {
		t.Fatalf("expected not configured error, got %v", err)
	}
	if _, err := NewResendSender("", "from@example.com"); !errors.Is(err, ErrChannelNotConfigured) {
		t.Fatalf("expected not configured email error, got %v", err)
	}
}
