// Package watch is the senior and family facade over the activity log, the
// status projection and the alert store.
package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/detector"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/projector"
	"github.com/julianstephens/mimamori/internal/report"
	"github.com/julianstephens/mimamori/internal/storage"
	"github.com/julianstephens/mimamori/internal/utils"
)

// Dispatcher is the subset of dispatcher.Dispatcher the service drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind models.AlertKind, message string) models.Alert
	NotifyActivity(ctx context.Context, ev models.ActivityEvent) bool
}

type Service struct {
	store      storage.Provider
	dispatcher Dispatcher
	projector  *projector.Projector
	detector   *detector.Detector
	loc        *time.Location
	now        func() time.Time

	// mu serializes append-then-project so the stored snapshot always
	// reflects the log in insertion order.
	mu sync.Mutex
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithThresholds(th detector.Thresholds) Option {
	return func(s *Service) { s.detector = detector.New(th) }
}

func New(store storage.Provider, d Dispatcher, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		store:      store,
		dispatcher: d,
		projector:  projector.New(loc),
		detector:   detector.New(nil),
		loc:        loc,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordActivity appends a new event, folds it into the stored snapshot and
// hands it to the dispatcher. Emergencies raise an alert immediately.
func (s *Service) RecordActivity(ctx context.Context, kind models.ActivityKind, message string) (models.ActivityEvent, error) {
	if _, err := models.ParseActivityKind(string(kind)); err != nil {
		return models.ActivityEvent{}, err
	}

	now := s.now()
	message = strings.TrimSpace(message)
	if message == "" {
		message = utils.FormatClock(now, s.loc) + " " + kind.DefaultMessage()
	}
	ev := models.ActivityEvent{
		ID:         uuid.New().String(),
		Kind:       kind,
		OccurredAt: now,
		Message:    message,
	}

	s.mu.Lock()
	if err := s.store.AppendActivity(ctx, ev); err != nil {
		s.mu.Unlock()
		return models.ActivityEvent{}, fmt.Errorf("failed to record activity: %w", err)
	}
	s.project(ctx, ev)
	s.mu.Unlock()

	if ev.IsAlertWorthy() {
		s.dispatcher.Dispatch(ctx, models.AlertEmergency, ev.Message)
	} else {
		s.dispatcher.NotifyActivity(ctx, ev)
	}

	logger.Debug("Activity recorded", "id", ev.ID, "kind", ev.Kind)
	return ev, nil
}

func (s *Service) project(ctx context.Context, ev models.ActivityEvent) {
	current, err := s.store.GetStatus(ctx)
	if err != nil {
		logger.Error("Failed to load status, rebuilding from log", "error", err)
		if _, err := s.rebuildLocked(ctx); err != nil {
			logger.Error("Failed to rebuild status", "error", err)
		}
		return
	}
	if err := s.store.PutStatus(ctx, s.projector.Apply(current, ev)); err != nil {
		logger.Error("Failed to save status", "error", err)
	}
}

// Status returns the snapshot rolled over to the current local day.
func (s *Service) Status(ctx context.Context) (models.StatusSnapshot, error) {
	st, err := s.store.GetStatus(ctx)
	if err != nil {
		return models.StatusSnapshot{}, fmt.Errorf("failed to load status: %w", err)
	}
	return s.projector.Rollover(st, s.now()), nil
}

// Anomalies evaluates the current snapshot without alerting.
func (s *Service) Anomalies(ctx context.Context) ([]models.Finding, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return s.detector.Detect(st, s.now()), nil
}

func (s *Service) Activities(ctx context.Context, n int) ([]models.ActivityEvent, error) {
	return s.store.RecentActivities(ctx, n)
}

func (s *Service) Alerts(ctx context.Context, n int) ([]models.Alert, error) {
	return s.store.RecentAlerts(ctx, n)
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkAlertRead(ctx, id)
}

func (s *Service) ClearAlerts(ctx context.Context) error {
	return s.store.ClearAlerts(ctx)
}

// UnreadCount returns the number of unread alerts.
func (s *Service) UnreadCount(ctx context.Context) (int, error) {
	alerts, err := s.store.RecentAlerts(ctx, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range alerts {
		if !a.IsRead {
			n++
		}
	}
	return n, nil
}

// WeeklyReport summarizes the last seven local days of the retained log.
func (s *Service) WeeklyReport(ctx context.Context) (report.Weekly, error) {
	events, err := s.store.AllActivities(ctx)
	if err != nil {
		return report.Weekly{}, fmt.Errorf("failed to load activities: %w", err)
	}
	return report.Build(events, s.now(), s.loc), nil
}

// Rebuild replays the whole retained log into a fresh snapshot and stores it.
func (s *Service) Rebuild(ctx context.Context) (models.StatusSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

// LogTruncated reports whether the activity log is at its retention cap, in
// which case a rebuild may lose older last-seen times and streak history.
func (s *Service) LogTruncated(ctx context.Context) (bool, error) {
	events, err := s.store.AllActivities(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load activities: %w", err)
	}
	return len(events) >= constants.MaxActivities, nil
}

func (s *Service) rebuildLocked(ctx context.Context) (models.StatusSnapshot, error) {
	events, err := s.store.AllActivities(ctx)
	if err != nil {
		return models.StatusSnapshot{}, fmt.Errorf("failed to load activities: %w", err)
	}
	if len(events) >= constants.MaxActivities {
		logger.Warn("Rebuilding from a truncated activity log", "events", len(events))
	}
	st := s.projector.Replay(events)
	if err := s.store.PutStatus(ctx, st); err != nil {
		return st, fmt.Errorf("failed to save status: %w", err)
	}
	return st, nil
}
