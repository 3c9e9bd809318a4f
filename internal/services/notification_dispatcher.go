package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/foodhub/api/internal/domain"
	"github.com/foodhub/api/internal/repositories"
)

const (
	// MaxPushBatch is the largest token list a single multicast may target.
	MaxPushBatch = 500

	// DeliveryRoom is joined by every connected driver.
	DeliveryRoom = "delivery:all"
	// AdminRoom is joined by every connected admin.
	AdminRoom = "admin:all"

	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
	defaultQueueSize     = 256
	defaultWorkers       = 4
	broadcastPageSize    = 200

	notificationMeter = "github.com/foodhub/api/internal/services/notifications"
)

// Realtime events emitted to rooms.
const (
	EventOrderCreated       = "order:new"
	EventOrderStatusUpdated = "order:status_updated"
	EventOrderAccepted      = "order:accepted"
	EventOrderDelivered     = "order:delivered"
	EventOrderAssigned      = "order:assigned"
	EventOrderCancelled     = "order:cancelled"
	EventOrderReady         = "order:ready_for_pickup"
	EventBroadcastCompleted = "notification:broadcast_completed"
)

// UserRoom is the personal room of a user or driver.
func UserRoom(userID string) string { return "user:" + userID }

// VendorRoom is the room of a vendor's staff.
func VendorRoom(vendorID string) string { return "vendor:" + vendorID }

// BroadcastAudience selects the users a broadcast targets.
type BroadcastAudience string

const (
	AudienceAll      BroadcastAudience = "all"
	AudienceUser     BroadcastAudience = "user"
	AudienceVendor   BroadcastAudience = "vendor"
	AudienceDelivery BroadcastAudience = "delivery"
	AudienceAdmin    BroadcastAudience = "admin"
)

// UserType returns the user type filter of the audience; empty for AudienceAll.
func (a BroadcastAudience) UserType() (domain.UserType, bool) {
	if a == AudienceAll {
		return "", true
	}
	t := domain.UserType(a)
	return t, t.Valid()
}

// Notification is one unit of fan-out: realtime rooms plus an optional push to users.
type Notification struct {
	Event       string
	Rooms       []string
	Payload     map[string]any
	PushUserIDs []string
	Push        *PushMessage
}

// NotificationDispatcherDeps bundles collaborators required to construct the dispatcher.
type NotificationDispatcherDeps struct {
	Rooms RoomPublisher
	// Push is optional; without it notifications are realtime only.
	Push          PushSender
	Users         repositories.UserRepository
	RetryAttempts int
	RetryDelay    time.Duration
	QueueSize     int
	Workers       int
	Sleep         func(ctx context.Context, d time.Duration) error
	Meter         metric.Meter
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type dispatchJob struct {
	ctx          context.Context
	notification *Notification
	broadcast    *BroadcastCommand
}

type notificationDispatcher struct {
	rooms    RoomPublisher
	push     PushSender
	users    repositories.UserRepository
	attempts int
	delay    time.Duration
	workers  int
	sleep    func(context.Context, time.Duration) error
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)

	published metric.Int64Counter
	dropped   metric.Int64Counter
	pushed    metric.Int64Counter

	mu      sync.RWMutex
	queue   chan dispatchJob
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewNotificationDispatcher wires dependencies into a NotificationDispatcher. Workers run
// after Start and stop when Close has drained the queue.
func NewNotificationDispatcher(deps NotificationDispatcherDeps) (NotificationDispatcher, error) {
	if deps.Rooms == nil {
		return nil, errors.New("notification dispatcher: room publisher is required")
	}
	if deps.Users == nil {
		return nil, errors.New("notification dispatcher: user repository is required")
	}
	d := &notificationDispatcher{
		rooms:    deps.Rooms,
		push:     deps.Push,
		users:    deps.Users,
		attempts: deps.RetryAttempts,
		delay:    deps.RetryDelay,
		workers:  deps.Workers,
		sleep:    deps.Sleep,
		logger:   deps.Logger,
	}
	if d.attempts <= 0 {
		d.attempts = defaultRetryAttempts
	}
	if d.delay <= 0 {
		d.delay = defaultRetryDelay
	}
	if d.workers <= 0 {
		d.workers = defaultWorkers
	}
	size := deps.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	d.queue = make(chan dispatchJob, size)
	if d.sleep == nil {
		d.sleep = sleepContext
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	d.clock = func() time.Time { return clock().UTC() }
	if d.logger == nil {
		d.logger = func(context.Context, string, map[string]any) {}
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(notificationMeter)
	}
	var err error
	if d.published, err = meter.Int64Counter("notifications.room.publish", metric.WithDescription("Room publish outcomes")); err != nil {
		return nil, fmt.Errorf("notification dispatcher: register metric: %w", err)
	}
	if d.dropped, err = meter.Int64Counter("notifications.dropped", metric.WithDescription("Notifications dropped before dispatch")); err != nil {
		return nil, fmt.Errorf("notification dispatcher: register metric: %w", err)
	}
	if d.pushed, err = meter.Int64Counter("notifications.push.tokens", metric.WithDescription("Push deliveries by outcome")); err != nil {
		return nil, fmt.Errorf("notification dispatcher: register metric: %w", err)
	}
	return d, nil
}

// Start launches the worker group. Calling it more than once has no effect.
func (d *notificationDispatcher) Start(context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for range d.workers {
		d.wg.Add(1)
		go d.run()
	}
}

// Close stops accepting work and waits for queued notifications until ctx expires.
func (d *notificationDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher: drain: %w", ctx.Err())
	}
}

func (d *notificationDispatcher) Dispatch(ctx context.Context, n Notification) bool {
	if len(n.Rooms) == 0 && (n.Push == nil || len(n.PushUserIDs) == 0) {
		return true
	}
	return d.enqueue(ctx, dispatchJob{notification: &n}, n.Event)
}

func (d *notificationDispatcher) Broadcast(ctx context.Context, cmd BroadcastCommand) error {
	if _, ok := cmd.Audience.UserType(); !ok {
		return fmt.Errorf("%w: unknown audience %q", ErrInvalidInput, cmd.Audience)
	}
	if strings.TrimSpace(cmd.Message.Title) == "" || strings.TrimSpace(cmd.Message.Body) == "" {
		return fmt.Errorf("%w: title and body are required", ErrInvalidInput)
	}
	if d.push == nil {
		return fmt.Errorf("%w: push notifications are disabled", ErrUnavailable)
	}
	if !d.enqueue(ctx, dispatchJob{broadcast: &cmd}, "broadcast") {
		return ErrQueueFull
	}
	return nil
}

func (d *notificationDispatcher) enqueue(ctx context.Context, job dispatchJob, event string) bool {
	// Workers outlive the request; keep its values but not its cancellation.
	job.ctx = context.WithoutCancel(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, event, "closed")
		return false
	}
	select {
	case d.queue <- job:
		return true
	default:
		d.drop(ctx, event, "queue_full")
		return false
	}
}

func (d *notificationDispatcher) drop(ctx context.Context, event string, reason string) {
	d.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	d.logger(ctx, "notification.dropped", map[string]any{"event": event, "reason": reason})
}

func (d *notificationDispatcher) run() {
	defer d.wg.Done()
	for job := range d.queue {
		switch {
		case job.notification != nil:
			d.deliver(job.ctx, *job.notification)
		case job.broadcast != nil:
			d.runBroadcast(job.ctx, *job.broadcast)
		}
	}
}

func (d *notificationDispatcher) deliver(ctx context.Context, n Notification) {
	sentAt := d.clock()
	for _, room := range n.Rooms {
		d.publish(ctx, RoomMessage{Room: room, Event: n.Event, Payload: n.Payload, SentAt: sentAt})
	}
	if d.push == nil || n.Push == nil || len(n.PushUserIDs) == 0 {
		return
	}
	users, err := d.users.FindByIDs(ctx, compactIDs(n.PushUserIDs))
	if err != nil {
		d.logger(ctx, "notification.push.lookup_failed", map[string]any{"event": n.Event, "error": err.Error()})
		return
	}
	d.sendPush(ctx, *n.Push, users)
}

// publish emits to one room, retrying with a fixed delay. Failures are logged and abandoned.
func (d *notificationDispatcher) publish(ctx context.Context, msg RoomMessage) {
	var err error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if err = d.rooms.PublishToRoom(ctx, msg); err == nil {
			d.published.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
			return
		}
		d.logger(ctx, "notification.room.retry", map[string]any{
			"room":    msg.Room,
			"event":   msg.Event,
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt < d.attempts {
			if sleepErr := d.sleep(ctx, d.delay); sleepErr != nil {
				break
			}
		}
	}
	d.published.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "abandoned")))
	d.logger(ctx, "notification.room.publish_failed", map[string]any{
		"room":     msg.Room,
		"event":    msg.Event,
		"attempts": d.attempts,
		"error":    errorString(err),
	})
}

// sendPush multicasts to every token of the users in batches, then prunes the tokens the
// provider reported as invalid from their owners.
func (d *notificationDispatcher) sendPush(ctx context.Context, msg PushMessage, users []User) {
	owners := make(map[string]string)
	tokens := make([]string, 0, len(users))
	for _, user := range users {
		for _, token := range user.FCMTokens {
			if token == "" {
				continue
			}
			if _, seen := owners[token]; seen {
				continue
			}
			owners[token] = user.ID
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return
	}

	var invalid []string
	for start := 0; start < len(tokens); start += MaxPushBatch {
		batch := tokens[start:min(start+MaxPushBatch, len(tokens))]
		report, err := d.push.SendMulticast(ctx, msg, batch)
		if err != nil {
			d.pushed.Add(ctx, int64(len(batch)), metric.WithAttributes(attribute.String("outcome", "error")))
			d.logger(ctx, "notification.push.send_failed", map[string]any{"tokens": len(batch), "error": err.Error()})
			continue
		}
		d.pushed.Add(ctx, int64(report.SuccessCount), metric.WithAttributes(attribute.String("outcome", "ok")))
		d.pushed.Add(ctx, int64(report.FailureCount), metric.WithAttributes(attribute.String("outcome", "failed")))
		invalid = append(invalid, report.InvalidTokens...)
	}
	if len(invalid) == 0 {
		return
	}

	byOwner := make(map[string][]string)
	for _, token := range invalid {
		if owner, ok := owners[token]; ok {
			byOwner[owner] = append(byOwner[owner], token)
		}
	}
	for owner, stale := range byOwner {
		if err := d.users.RemoveFCMTokens(ctx, owner, stale); err != nil {
			d.logger(ctx, "notification.push.prune_failed", map[string]any{"userId": owner, "tokens": len(stale), "error": err.Error()})
			continue
		}
		d.logger(ctx, "notification.push.pruned", map[string]any{"userId": owner, "tokens": len(stale)})
	}
}

func (d *notificationDispatcher) runBroadcast(ctx context.Context, cmd BroadcastCommand) {
	userType, _ := cmd.Audience.UserType()
	filter := repositories.UserListFilter{Type: userType, Pagination: domain.Pagination{PageSize: broadcastPageSize}}
	recipients := 0
	for {
		page, err := d.users.ListByType(ctx, filter)
		if err != nil {
			d.logger(ctx, "notification.broadcast.list_failed", map[string]any{"audience": string(cmd.Audience), "error": err.Error()})
			return
		}
		recipients += len(page.Items)
		d.sendPush(ctx, cmd.Message, page.Items)
		if page.NextPageToken == "" {
			break
		}
		filter.Pagination.PageToken = page.NextPageToken
	}
	d.logger(ctx, "notification.broadcast.completed", map[string]any{"audience": string(cmd.Audience), "recipients": recipients})
	d.publish(ctx, RoomMessage{
		Room:    AdminRoom,
		Event:   EventBroadcastCompleted,
		Payload: map[string]any{"audience": string(cmd.Audience), "recipients": recipients, "title": cmd.Message.Title},
		SentAt:  d.clock(),
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
