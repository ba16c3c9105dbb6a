package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/habitual/internal/users"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Channel names an independent delivery path.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// AllChannels fans out to every delivery path.
var AllChannels = []Channel{ChannelInApp, ChannelEmail, ChannelPush}

// DeliveryStatus is the per-channel outcome of a fan-out.
type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "sent"
	StatusSkipped DeliveryStatus = "skipped"
	StatusFailed  DeliveryStatus = "failed"
)

const defaultChannelTimeout = 10 * time.Second

var (
	// ErrChannelNotConfigured indicates the channel has no sender or credentials.
	ErrChannelNotConfigured = errors.New("notifications: channel not configured")
	// ErrNoRecipient indicates the user has no address for the channel.
	ErrNoRecipient = errors.New("notifications: no recipient for channel")
	// ErrSubscriptionGone indicates the push service no longer accepts the subscription.
	ErrSubscriptionGone = errors.New("notifications: push subscription gone")

	errMissingDispatcherDatabase = errors.New("database handle is required")
	errMissingDispatcherIDs      = errors.New("id provider is required")
)

// Message is one logical notification to fan out.
// EmailSubject and EmailText default to Title and Body.
type Message struct {
	UserID       string
	Title        string
	Body         string
	Type         Type
	URL          string
	EmailSubject string
	EmailText    string
	Channels     []Channel
}

// Delivery records what happened on one channel.
type Delivery struct {
	Channel Channel
	Status  DeliveryStatus
	Err     error
}

// Report summarizes a fan-out. It never carries an error for the caller to handle.
type Report struct {
	NotificationID string
	Deliveries     []Delivery
}

// Status returns the outcome for the channel, or skipped when the channel was not requested.
func (r Report) Status(channel Channel) DeliveryStatus {
	for _, delivery := range r.Deliveries {
		if delivery.Channel == channel {
			return delivery.Status
		}
	}
	return StatusSkipped
}

// PushPayload is the JSON body delivered to the browser service worker.
type PushPayload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

type EmailSender interface {
	Send(ctx context.Context, to string, subject string, text string) error
}

type PushSender interface {
	Send(ctx context.Context, subscription users.PushSubscription, payload PushPayload) error
}

// UserDirectory resolves delivery addresses for a user.
type UserDirectory interface {
	FindByExternalID(ctx context.Context, externalID string) (users.User, error)
	ClearPushSubscription(ctx context.Context, externalID string) error
}

// ChangeListener observes notification writes, e.g. to push them to live clients.
type ChangeListener interface {
	NotificationsChanged(change Change)
}

type IDProvider interface {
	NewID() (string, error)
}

type DispatcherConfig struct {
	Database       *gorm.DB
	Users          UserDirectory
	Email          EmailSender
	Push           PushSender
	IDProvider     IDProvider
	Clock          func() time.Time
	ChannelTimeout time.Duration
	// LinkBase, when set, turns relative push URLs into absolute links.
	LinkBase       string
	Listener       ChangeListener
	Logger         *zap.Logger
}

// Dispatcher persists in-app notifications and fans messages out to external channels.
type Dispatcher struct {
	store      *Store
	users      UserDirectory
	email      EmailSender
	push       PushSender
	idProvider IDProvider
	clock      func() time.Time
	timeout    time.Duration
	linkBase   string
	listener   ChangeListener
	logger     *zap.Logger
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("notifications.dispatcher.new: %w", errMissingDispatcherDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("notifications.dispatcher.new: %w", errMissingDispatcherIDs)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	timeout := cfg.ChannelTimeout
	if timeout <= 0 {
		timeout = defaultChannelTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:      NewStore(cfg.Database),
		users:      cfg.Users,
		email:      cfg.Email,
		push:       cfg.Push,
		idProvider: cfg.IDProvider,
		clock:      clock,
		timeout:    timeout,
		linkBase:   strings.TrimRight(strings.TrimSpace(cfg.LinkBase), "/"),
		listener:   cfg.Listener,
		logger:     logger,
	}, nil
}

// Notify persists the in-app record and attempts every requested external channel
// concurrently. Channel failures are logged and reported, never returned.
func (d *Dispatcher) Notify(ctx context.Context, message Message) Report {
	report := Report{}
	if strings.TrimSpace(message.UserID) == "" {
		d.logger.Warn("notification dropped without recipient", zap.String("title", message.Title))
		return report
	}
	if !message.Type.valid() {
		d.logger.Warn("notification type invalid",
			zap.String("user_id", message.UserID),
			zap.String("type", string(message.Type)))
		message.Type = TypeSystem
	}

	inApp := d.deliverInApp(ctx, message)
	report.NotificationID = inApp.notificationID
	deliveries := []Delivery{inApp.delivery}

	external := requestedExternalChannels(message.Channels)
	if len(external) == 0 {
		report.Deliveries = deliveries
		return report
	}

	user, userErr := d.lookupUser(ctx, message.UserID)
	results := make([]Delivery, len(external))
	var group errgroup.Group
	for index, channel := range external {
		index, channel := index, channel
		group.Go(func() error {
			results[index] = d.deliverExternal(ctx, channel, user, userErr, message)
			return nil
		})
	}
	_ = group.Wait()

	report.Deliveries = append(deliveries, results...)
	return report
}

type inAppResult struct {
	notificationID string
	delivery       Delivery
}

func (d *Dispatcher) deliverInApp(ctx context.Context, message Message) inAppResult {
	notificationID, err := d.idProvider.NewID()
	if err != nil {
		d.logDeliveryFailure(ChannelInApp, message.UserID, err)
		return inAppResult{delivery: Delivery{Channel: ChannelInApp, Status: StatusFailed, Err: err}}
	}
	notification := Notification{
		ID:        notificationID,
		UserID:    message.UserID,
		Title:     message.Title,
		Message:   message.Body,
		Type:      message.Type,
		Read:      false,
		CreatedAt: d.clock().UTC(),
	}

	channelCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.store.Insert(channelCtx, &notification); err != nil {
		d.logDeliveryFailure(ChannelInApp, message.UserID, err)
		return inAppResult{delivery: Delivery{Channel: ChannelInApp, Status: StatusFailed, Err: err}}
	}
	if d.listener != nil {
		d.listener.NotificationsChanged(Change{
			UserID:          notification.UserID,
			Kind:            ChangeCreated,
			NotificationIDs: []string{notification.ID},
			Timestamp:       notification.CreatedAt,
		})
	}
	return inAppResult{
		notificationID: notification.ID,
		delivery:       Delivery{Channel: ChannelInApp, Status: StatusSent},
	}
}

func (d *Dispatcher) lookupUser(ctx context.Context, userID string) (users.User, error) {
	if d.users == nil {
		return users.User{}, ErrChannelNotConfigured
	}
	lookupCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.users.FindByExternalID(lookupCtx, userID)
}

func (d *Dispatcher) deliverExternal(ctx context.Context, channel Channel, user users.User, userErr error, message Message) Delivery {
	if userErr != nil {
		if errors.Is(userErr, users.ErrUserNotFound) {
			return d.skip(channel, message.UserID, ErrNoRecipient)
		}
		if errors.Is(userErr, ErrChannelNotConfigured) {
			return d.skip(channel, message.UserID, userErr)
		}
		d.logDeliveryFailure(channel, message.UserID, userErr)
		return Delivery{Channel: channel, Status: StatusFailed, Err: userErr}
	}

	channelCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	switch channel {
	case ChannelEmail:
		if d.email == nil {
			return d.skip(channel, message.UserID, ErrChannelNotConfigured)
		}
		if !user.HasEmail() {
			return d.skip(channel, message.UserID, ErrNoRecipient)
		}
		err = d.email.Send(channelCtx, user.Email, firstNonEmpty(message.EmailSubject, message.Title), firstNonEmpty(message.EmailText, message.Body))
	case ChannelPush:
		if d.push == nil {
			return d.skip(channel, message.UserID, ErrChannelNotConfigured)
		}
		subscription, ok := user.PushSubscription()
		if !ok {
			return d.skip(channel, message.UserID, ErrNoRecipient)
		}
		err = d.push.Send(channelCtx, subscription, PushPayload{
			Title:   message.Title,
			Message: message.Body,
			URL:     d.link(firstNonEmpty(message.URL, "/")),
		})
		if errors.Is(err, ErrSubscriptionGone) {
			d.forgetSubscription(ctx, message.UserID)
		}
	default:
		return d.skip(channel, message.UserID, fmt.Errorf("unknown channel %q", channel))
	}

	if err != nil {
		d.logDeliveryFailure(channel, message.UserID, err)
		return Delivery{Channel: channel, Status: StatusFailed, Err: err}
	}
	return Delivery{Channel: channel, Status: StatusSent}
}

func (d *Dispatcher) link(target string) string {
	if d.linkBase == "" || !strings.HasPrefix(target, "/") {
		return target
	}
	return d.linkBase + target
}

func (d *Dispatcher) forgetSubscription(ctx context.Context, userID string) {
	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.users.ClearPushSubscription(clearCtx, userID); err != nil {
		d.logger.Warn("failed to clear expired push subscription",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (d *Dispatcher) skip(channel Channel, userID string, reason error) Delivery {
	level := d.logger.Debug
	if errors.Is(reason, ErrChannelNotConfigured) {
		level = d.logger.Warn
	}
	level("notification channel skipped",
		zap.String("channel", string(channel)),
		zap.String("user_id", userID),
		zap.Error(reason))
	return Delivery{Channel: channel, Status: StatusSkipped, Err: reason}
}

func (d *Dispatcher) logDeliveryFailure(channel Channel, userID string, err error) {
	d.logger.Error("notification delivery failed",
		zap.String("channel", string(channel)),
		zap.String("user_id", userID),
		zap.Error(err))
}

// requestedExternalChannels returns the distinct email and push channels of requested.
func requestedExternalChannels(requested []Channel) []Channel {
	seen := make(map[Channel]struct{}, len(requested))
	external := make([]Channel, 0, 2)
	for _, channel := range requested {
		if channel == ChannelInApp {
			continue
		}
		if _, ok := seen[channel]; ok {
			continue
		}
		seen[channel] = struct{}{}
		external = append(external, channel)
	}
	return external
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
