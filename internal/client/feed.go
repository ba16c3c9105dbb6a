package client

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultRefreshInterval = 30 * time.Second

var errMissingSource = errors.New("client: notification source is required")

// NotificationSource is the remote side of a NotificationFeed.
type NotificationSource interface {
	ListNotifications(ctx context.Context) (NotificationList, error)
	MarkRead(ctx context.Context, notificationID string) error
	MarkAllRead(ctx context.Context) (int, error)
}

type FeedConfig struct {
	Source          NotificationSource
	RefreshInterval time.Duration
	Clock           func() time.Time
}

// NotificationFeed caches the caller's notification list. Reads refresh the cache once it
// is older than the refresh interval; mutations through the feed invalidate it.
type NotificationFeed struct {
	source   NotificationSource
	interval time.Duration
	clock    func() time.Time

	mu        sync.Mutex
	snapshot  NotificationList
	fetchedAt time.Time
	valid     bool
}

func NewNotificationFeed(cfg FeedConfig) (*NotificationFeed, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &NotificationFeed{source: cfg.Source, interval: interval, clock: clock}, nil
}

// Get returns the cached list, fetching it when missing, invalidated, or stale.
func (f *NotificationFeed) Get(ctx context.Context) (NotificationList, error) {
	f.mu.Lock()
	if f.valid && f.clock().Sub(f.fetchedAt) < f.interval {
		snapshot := f.snapshot
		f.mu.Unlock()
		return snapshot, nil
	}
	f.mu.Unlock()
	return f.Refresh(ctx)
}

// Refresh fetches the list unconditionally and replaces the cache.
func (f *NotificationFeed) Refresh(ctx context.Context) (NotificationList, error) {
	list, err := f.source.ListNotifications(ctx)
	if err != nil {
		return NotificationList{}, err
	}
	f.mu.Lock()
	f.snapshot = list
	f.fetchedAt = f.clock()
	f.valid = true
	f.mu.Unlock()
	return list, nil
}

// Invalidate forces the next Get to fetch.
func (f *NotificationFeed) Invalidate() {
	f.mu.Lock()
	f.valid = false
	f.mu.Unlock()
}

func (f *NotificationFeed) MarkRead(ctx context.Context, notificationID string) error {
	defer f.Invalidate()
	return f.source.MarkRead(ctx, notificationID)
}

func (f *NotificationFeed) MarkAllRead(ctx context.Context) (int, error) {
	defer f.Invalidate()
	return f.source.MarkAllRead(ctx)
}

// Poll refreshes the feed every interval and hands each fresh list to onUpdate until ctx ends.
// Fetch errors are passed to onError and polling continues.
func (f *NotificationFeed) Poll(ctx context.Context, onUpdate func(NotificationList), onError func(error)) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		list, err := f.Refresh(ctx)
		switch {
		case err != nil && onError != nil:
			onError(err)
		case err == nil && onUpdate != nil:
			onUpdate(list)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
