// Package dispatcher turns alerts into a persisted record, a local
// notification and a relay queue entry.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/notifier"
	"github.com/julianstephens/mimamori/internal/storage"
)

// Notifier delivers a local device notification.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// TokenSource returns the relay delivery token, or keyring.ErrNotFound.
type TokenSource func() (string, error)

// Store is the slice of storage the dispatcher writes to.
type Store interface {
	storage.AlertStore
	storage.RelayQueue
	storage.SettingsStore
}

type Dispatcher struct {
	store    Store
	notifier Notifier
	token    TokenSource
	now      func() time.Time
	log      *log.Logger
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithTokenSource(ts TokenSource) Option {
	return func(d *Dispatcher) { d.token = ts }
}

// New builds a dispatcher. A nil notifier disables local notifications.
func New(store Store, n Notifier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		notifier: n,
		token:    keyring.GetRelayToken,
		now:      time.Now,
		log:      logger.With("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch records and delivers an alert. Every step is best effort: a
// failure is logged and the remaining steps still run.
func (d *Dispatcher) Dispatch(ctx context.Context, kind models.AlertKind, message string) models.Alert {
	alert := models.Alert{
		ID:        uuid.New().String(),
		Kind:      kind,
		Message:   message,
		CreatedAt: d.now(),
	}

	if err := d.store.AppendAlert(ctx, alert); err != nil {
		d.log.Error("failed to save alert", "id", alert.ID, "error", err)
	}

	settings := d.settings(ctx)
	if settings.NotificationsEnabled && d.notifier != nil {
		err := d.notifier.Notify(ctx, notifier.Notification{
			Title: constants.NotificationTitle,
			Body:  message,
			Tag:   alert.ID,
		})
		switch {
		case err == nil:
		case errors.Is(err, notifier.ErrTrayNotRunning):
			d.log.Debug("no tray companion, skipping local notification")
		default:
			d.log.Warn("failed to send local notification", "error", err)
		}
	}

	if settings.RelayEnabled {
		d.enqueue(ctx, string(kind), kind.Emoji()+" "+message, kind.Urgent())
	}

	d.log.Info("alert dispatched", "id", alert.ID, "kind", kind)
	return alert
}

// NotifyActivity forwards a senior activity to the relay when the kind is
// selected in settings. Emergencies are always forwarded.
func (d *Dispatcher) NotifyActivity(ctx context.Context, ev models.ActivityEvent) bool {
	settings := d.settings(ctx)
	if !settings.RelayEnabled || !settings.ShouldRelay(ev.Kind) {
		return false
	}
	return d.enqueue(ctx, string(ev.Kind), ev.Kind.Emoji()+" "+ev.Message, ev.Kind == models.ActivityEmergency)
}

func (d *Dispatcher) enqueue(ctx context.Context, category, message string, urgent bool) bool {
	token, err := d.token()
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			d.log.Warn("failed to read relay token", "error", err)
		} else {
			d.log.Debug("no relay token configured, skipping relay")
		}
		return false
	}

	req := models.RelayRequest{
		ID:            uuid.New().String(),
		DeliveryToken: token,
		Message:       message,
		Category:      category,
		Urgent:        urgent,
		Status:        models.RelayPending,
		CreatedAt:     d.now(),
	}
	if err := d.store.EnqueueRelay(ctx, req); err != nil {
		d.log.Error("failed to enqueue relay request", "error", err)
		return false
	}
	return true
}

func (d *Dispatcher) settings(ctx context.Context) models.Settings {
	s, err := d.store.GetSettings(ctx)
	if err != nil {
		d.log.Warn("failed to load settings, using defaults", "error", err)
		return models.DefaultSettings()
	}
	return s
}
