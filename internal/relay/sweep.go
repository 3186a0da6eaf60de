package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage"
)

// SweepMessage is relayed when the senior has not checked in for a day.
const SweepMessage = "⚠️ No check-in for over 24 hours. Please check on them."

// SweepStore is what the daily sweep reads and writes.
type SweepStore interface {
	storage.StatusStore
	storage.SettingsStore
	storage.RelayQueue
}

type SweepResult struct {
	Enqueued    bool
	LastCheckIn *time.Time
	Reason      string
}

// Sweep is the coarse daily safety net, independent of the in-app detector.
type Sweep struct {
	store     SweepStore
	token     func() (string, error)
	now       func() time.Time
	threshold time.Duration
}

func NewSweep(store SweepStore, token func() (string, error), now func() time.Time) *Sweep {
	if token == nil {
		token = keyring.GetRelayToken
	}
	if now == nil {
		now = time.Now
	}
	return &Sweep{store: store, token: token, now: now, threshold: constants.SweepCheckInThreshold}
}

// Run enqueues an urgent relay message when the last check-in is older than
// the threshold. A senior who never checked in is skipped.
func (s *Sweep) Run(ctx context.Context) (SweepResult, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.RelayEnabled {
		return SweepResult{Reason: "relay disabled"}, nil
	}

	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to load status: %w", err)
	}
	res := SweepResult{LastCheckIn: status.LastCheckIn}
	if status.LastCheckIn == nil {
		res.Reason = "no check-in recorded yet"
		return res, nil
	}
	now := s.now()
	if now.Sub(*status.LastCheckIn) <= s.threshold {
		res.Reason = "checked in within the last 24 hours"
		return res, nil
	}

	token, err := s.token()
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && token == "") {
		res.Reason = "no relay token configured"
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("failed to read relay token: %w", err)
	}

	req := models.RelayRequest{
		ID:            uuid.New().String(),
		DeliveryToken: token,
		Message:       SweepMessage,
		Category:      string(models.AlertWarning),
		Urgent:        true,
		Status:        models.RelayPending,
		CreatedAt:     now,
	}
	if err := s.store.EnqueueRelay(ctx, req); err != nil {
		return res, fmt.Errorf("failed to enqueue sweep message: %w", err)
	}
	logger.Info("Daily sweep enqueued missed check-in message", "last_check_in", status.LastCheckIn)
	res.Enqueued = true
	return res, nil
}
