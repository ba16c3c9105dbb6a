package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/habitual/internal/users"
	webpush "github.com/SherClockHolmes/webpush-go"
)

const defaultPushTTLSeconds = 60 * 60 * 24

// WebPushConfig carries the VAPID identity of the application server.
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
	TTLSeconds int
	HTTPClient webpush.HTTPClient
}

// WebPushSender delivers encrypted Web Push messages signed with VAPID.
type WebPushSender struct {
	options webpush.Options
}

func NewWebPushSender(cfg WebPushConfig) (*WebPushSender, error) {
	if strings.TrimSpace(cfg.PublicKey) == "" || strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, ErrChannelNotConfigured
	}
	ttl := cfg.TTLSeconds
	if ttl <= 0 {
		ttl = defaultPushTTLSeconds
	}
	return &WebPushSender{options: webpush.Options{
		HTTPClient:      cfg.HTTPClient,
		Subscriber:      cfg.Subscriber,
		VAPIDPublicKey:  cfg.PublicKey,
		VAPIDPrivateKey: cfg.PrivateKey,
		TTL:             ttl,
	}}, nil
}

// PublicKey returns the VAPID public key browsers subscribe with.
func (s *WebPushSender) PublicKey() string {
	return s.options.VAPIDPublicKey
}

func (s *WebPushSender) Send(ctx context.Context, subscription users.PushSubscription, payload PushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	options := s.options
	response, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: subscription.Endpoint,
		Keys: webpush.Keys{
			Auth:   subscription.Keys.Auth,
			P256dh: subscription.Keys.P256dh,
		},
	}, &options)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	switch {
	case response.StatusCode == http.StatusNotFound || response.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case response.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("push service responded with status %d", response.StatusCode)
	default:
		return nil
	}
}
