// Package storage defines the persistence contract shared by the sqlite,
// postgres and in-memory backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/julianstephens/mimamori/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrNotInitialized = errors.New("storage not initialized, run 'mimamori init' first")
	ErrRelayClaimed   = errors.New("relay request is not in the expected state")
)

// ActivityLog is the append-only record of senior activity. It retains the
// most recent constants.MaxActivities entries by insertion order.
type ActivityLog interface {
	AppendActivity(ctx context.Context, ev models.ActivityEvent) error
	// RecentActivities returns up to n events ordered by OccurredAt, newest first.
	RecentActivities(ctx context.Context, n int) ([]models.ActivityEvent, error)
	// AllActivities returns every retained event in insertion order.
	AllActivities(ctx context.Context) ([]models.ActivityEvent, error)
}

// AlertStore retains the most recent constants.MaxAlerts alerts.
type AlertStore interface {
	AppendAlert(ctx context.Context, a models.Alert) error
	MarkAlertRead(ctx context.Context, id string) error
	ClearAlerts(ctx context.Context) error
	// RecentAlerts returns up to n alerts, newest first.
	RecentAlerts(ctx context.Context, n int) ([]models.Alert, error)
}

type StatusStore interface {
	// GetStatus returns the stored snapshot, or models.DefaultStatus when none was written yet.
	GetStatus(ctx context.Context) (models.StatusSnapshot, error)
	PutStatus(ctx context.Context, s models.StatusSnapshot) error
}

// RelayQueue holds outbound relay requests for the relay worker.
type RelayQueue interface {
	EnqueueRelay(ctx context.Context, r models.RelayRequest) error
	// PendingRelays returns up to n pending requests, oldest first.
	PendingRelays(ctx context.Context, n int) ([]models.RelayRequest, error)
	// ClaimRelay moves a pending request to sending. It fails with
	// ErrRelayClaimed when another worker got there first.
	ClaimRelay(ctx context.Context, id string) error
	// ReleaseRelay returns a claimed request to pending.
	ReleaseRelay(ctx context.Context, id string) error
	// MarkRelaySent and MarkRelayFailed only apply to claimed requests.
	// Finished requests beyond constants.MaxRelays are dropped.
	MarkRelaySent(ctx context.Context, id string, at time.Time) error
	MarkRelayFailed(ctx context.Context, id string, reason string) error
	// RecentRelays returns up to n requests of any status, newest first.
	RecentRelays(ctx context.Context, n int) ([]models.RelayRequest, error)
}

type SettingsStore interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) error
}

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	ActivityLog
	AlertStore
	StatusStore
	RelayQueue
	SettingsStore

	// GetConfigPath returns a non-sensitive description of the backing store.
	GetConfigPath() string
}
