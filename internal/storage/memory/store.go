// Package memory is a process-local storage.Provider used by tests and by
// `mimamori watch --ephemeral`.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage"
)

type Store struct {
	mu         sync.RWMutex
	activities []models.ActivityEvent // insertion order
	alerts     []models.Alert         // insertion order
	status     *models.StatusSnapshot
	settings   *models.Settings
	relays     []models.RelayRequest
}

var _ storage.Provider = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		def := models.DefaultSettings()
		s.settings = &def
	}
	return nil
}

func (s *Store) Load() error  { return s.Init() }
func (s *Store) Close() error { return nil }

func (s *Store) GetConfigPath() string { return "memory" }

func (s *Store) AppendActivity(ctx context.Context, ev models.ActivityEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.activities {
		if existing.ID == ev.ID {
			return fmt.Errorf("activity %s already exists", ev.ID)
		}
	}
	s.activities = append(s.activities, ev)
	if over := len(s.activities) - constants.MaxActivities; over > 0 {
		s.activities = append([]models.ActivityEvent(nil), s.activities[over:]...)
	}
	return nil
}

func (s *Store) RecentActivities(ctx context.Context, n int) ([]models.ActivityEvent, error) {
	if n <= 0 || n > constants.MaxActivities {
		n = constants.MaxActivities
	}
	s.mu.RLock()
	out := make([]models.ActivityEvent, len(s.activities))
	copy(out, s.activities)
	s.mu.RUnlock()

	// Stable sort on the reversed insertion order keeps later inserts first on ties.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *Store) AllActivities(ctx context.Context) ([]models.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ActivityEvent, len(s.activities))
	copy(out, s.activities)
	return out, nil
}

func (s *Store) AppendAlert(ctx context.Context, a models.Alert) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	if over := len(s.alerts) - constants.MaxAlerts; over > 0 {
		s.alerts = append([]models.Alert(nil), s.alerts[over:]...)
	}
	return nil
}

func (s *Store) MarkAlertRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("alert %s: %w", id, storage.ErrNotFound)
}

func (s *Store) ClearAlerts(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
	return nil
}

func (s *Store) RecentAlerts(ctx context.Context, n int) ([]models.Alert, error) {
	if n <= 0 || n > constants.MaxAlerts {
		n = constants.MaxAlerts
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, 0, n)
	for i := len(s.alerts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.alerts[i])
	}
	return out, nil
}

func (s *Store) GetStatus(ctx context.Context) (models.StatusSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return models.DefaultStatus(), nil
	}
	return *s.status, nil
}

func (s *Store) PutStatus(ctx context.Context, st models.StatusSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &st
	return nil
}

func (s *Store) GetSettings(ctx context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return models.Settings{}, fmt.Errorf("settings: %w", storage.ErrNotFound)
	}
	out := *s.settings
	out.NotifyKinds = append([]models.ActivityKind{}, s.settings.NotifyKinds...)
	return out, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.NotifyKinds = append([]models.ActivityKind{}, settings.NotifyKinds...)
	s.settings = &settings
	return nil
}

func (s *Store) EnqueueRelay(ctx context.Context, r models.RelayRequest) error {
	if r.ID == "" {
		return fmt.Errorf("relay request id cannot be empty")
	}
	if r.Status == "" {
		r.Status = models.RelayPending
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relays = append(s.relays, r)
	return nil
}

func (s *Store) PendingRelays(ctx context.Context, n int) ([]models.RelayRequest, error) {
	if n <= 0 {
		n = constants.RelayBatchSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.RelayRequest
	for _, r := range s.relays {
		if r.Status == models.RelayPending {
			out = append(out, r)
			if len(out) == n {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) RecentRelays(ctx context.Context, n int) ([]models.RelayRequest, error) {
	if n <= 0 {
		n = constants.RelayBatchSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RelayRequest, 0, n)
	for i := len(s.relays) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.relays[i])
	}
	return out, nil
}

func (s *Store) ClaimRelay(ctx context.Context, id string) error {
	return s.update(id, models.RelayPending, func(r *models.RelayRequest) {
		r.Status = models.RelaySending
	})
}

func (s *Store) ReleaseRelay(ctx context.Context, id string) error {
	return s.update(id, models.RelaySending, func(r *models.RelayRequest) {
		r.Status = models.RelayPending
	})
}

func (s *Store) MarkRelaySent(ctx context.Context, id string, at time.Time) error {
	return s.finish(id, func(r *models.RelayRequest) {
		r.Status = models.RelaySent
		r.Error = ""
		r.SentAt = &at
	})
}

func (s *Store) MarkRelayFailed(ctx context.Context, id string, reason string) error {
	return s.finish(id, func(r *models.RelayRequest) {
		r.Status = models.RelayError
		r.Error = reason
	})
}

func (s *Store) finish(id string, fn func(*models.RelayRequest)) error {
	if err := s.update(id, models.RelaySending, fn); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	finished := 0
	for _, r := range s.relays {
		if r.Status == models.RelaySent || r.Status == models.RelayError {
			finished++
		}
	}
	if finished <= constants.MaxRelays {
		return nil
	}
	drop := finished - constants.MaxRelays
	kept := s.relays[:0]
	for _, r := range s.relays {
		if drop > 0 && (r.Status == models.RelaySent || r.Status == models.RelayError) {
			drop--
			continue
		}
		kept = append(kept, r)
	}
	s.relays = kept
	return nil
}

func (s *Store) update(id string, from models.RelayStatus, fn func(*models.RelayRequest)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.relays {
		if s.relays[i].ID != id {
			continue
		}
		if s.relays[i].Status != from {
			return fmt.Errorf("relay request %s: %w", id, storage.ErrRelayClaimed)
		}
		fn(&s.relays[i])
		return nil
	}
	return fmt.Errorf("relay request %s: %w", id, storage.ErrNotFound)
}
