// Package notify turns session-wide change events into user-visible alerts.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/sjnosa/connect/internal/metrics"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/realtime"
)

const (
	EventTitle = "New Event!"
	sinkBanner = "banner"
	sinkAlert  = "platform"
)

// EventFilter selects the changes the dispatcher turns into notifications.
var EventFilter = realtime.Filter{Table: realtime.TableSchoolEvents, Op: realtime.OpInsert}

// ItemForEvent builds the notification announcing a newly created school event.
func ItemForEvent(title string) models.NotificationItem {
	return models.NotificationItem{
		ID:      uuid.NewString(),
		Title:   EventTitle,
		Message: fmt.Sprintf("%s has been added to the calendar.", title),
		Type:    models.NotificationEvent,
	}
}

// Dispatcher listens to new school events for the lifetime of a session and emits one
// notification per event to the banner and, when permitted, to the platform alerter.
type Dispatcher struct {
	hub     *realtime.Hub
	banner  *Banner
	alerter PlatformAlerter
	logger  *slog.Logger

	mu        sync.Mutex
	sub       *realtime.Subscription
	exited    chan struct{}
	permitted bool
	seen      map[string]struct{}
}

func NewDispatcher(hub *realtime.Hub, banner *Banner, alerter PlatformAlerter, logger *slog.Logger) *Dispatcher {
	if alerter == nil {
		alerter = NoAlerter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		hub:     hub,
		banner:  banner,
		alerter: alerter,
		logger:  logger.With("component", "notify"),
	}
}

// Start requests alert permission and opens the events subscription.
// Calling Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sub != nil {
		return nil
	}

	granted, err := d.alerter.RequestPermission(ctx)
	if err != nil {
		d.logger.Warn("platform alert permission request failed", "error", err)
	}
	d.permitted = granted

	sub, err := d.hub.Subscribe(ctx, models.EventsScope(), EventFilter)
	if err != nil {
		return fmt.Errorf("notify: subscribe events: %w", err)
	}
	d.sub = sub
	d.seen = make(map[string]struct{})
	d.exited = make(chan struct{})
	go d.loop(ctx, sub, d.exited)

	d.logger.Info("notification dispatcher started", "platform_alerts", granted)
	return nil
}

// Stop closes the subscription and clears the banner. No notification is emitted after
// Stop returns.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	sub, exited := d.sub, d.exited
	d.sub, d.exited = nil, nil
	d.mu.Unlock()
	if sub == nil {
		return
	}
	sub.Close()
	<-exited
	d.banner.Clear()
	d.logger.Info("notification dispatcher stopped")
}

// Permitted reports whether platform alerts were granted, as of Start or the last
// dispatched event.
func (d *Dispatcher) Permitted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permitted
}

func (d *Dispatcher) loop(ctx context.Context, sub *realtime.Subscription, exited chan struct{}) {
	defer close(exited)
	for c := range sub.Events() {
		if !d.firstSighting(c.Record.ID) {
			continue
		}
		d.dispatch(ctx, ItemForEvent(c.Record.Content), d.refreshPermission())
	}
}

// refreshPermission picks up a grant given or withdrawn since Start.
func (d *Dispatcher) refreshPermission() bool {
	granted := d.alerter.Permission()
	d.mu.Lock()
	d.permitted = granted
	d.mu.Unlock()
	return granted
}

// firstSighting filters redelivered events so each one is announced once.
func (d *Dispatcher) firstSighting(id string) bool {
	if id == "" {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		return false
	}
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

func (d *Dispatcher) dispatch(ctx context.Context, item models.NotificationItem, permitted bool) {
	d.banner.Show(item)
	metrics.NotificationsDispatched.WithLabelValues(sinkBanner, "shown").Inc()

	if !permitted {
		metrics.NotificationsDispatched.WithLabelValues(sinkAlert, "skipped").Inc()
		return
	}
	if err := d.alerter.Show(ctx, item.Title, item.Message); err != nil {
		metrics.NotificationsDispatched.WithLabelValues(sinkAlert, "failed").Inc()
		d.logger.Warn("platform alert failed", "id", item.ID, "error", err)
		return
	}
	metrics.NotificationsDispatched.WithLabelValues(sinkAlert, "shown").Inc()
}
