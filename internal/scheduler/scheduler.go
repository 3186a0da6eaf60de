// Package scheduler runs the anomaly detector on a fixed cadence and
// suppresses repeat alerts inside a cool-down window.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/detector"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
)

// Clock supplies the current time. Tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// StatusSource returns the current snapshot, already rolled over to now.
type StatusSource interface {
	Status(ctx context.Context) (models.StatusSnapshot, error)
}

// Emitter turns an accepted finding into a persisted, delivered alert.
type Emitter interface {
	Dispatch(ctx context.Context, kind models.AlertKind, message string) models.Alert
}

type Config struct {
	Period       time.Duration
	InitialDelay time.Duration
	Cooldown     time.Duration
	Thresholds   detector.Thresholds
}

func (c *Config) applyDefaults() {
	if c.Period <= 0 {
		c.Period = constants.DefaultDetectInterval
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = constants.DefaultInitialDelay
	}
	if c.Cooldown <= 0 {
		c.Cooldown = constants.DefaultAlertCooldown
	}
}

type dedupKey struct {
	category models.Category
	severity models.Severity
}

type Scheduler struct {
	cfg      Config
	clock    Clock
	source   StatusSource
	emitter  Emitter
	detector *detector.Detector
	log      *log.Logger

	mu            sync.Mutex
	lastAlertedAt map[dedupKey]time.Time

	tickMu  sync.Mutex
	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config, clock Clock, source StatusSource, emitter Emitter) *Scheduler {
	cfg.applyDefaults()
	if clock == nil {
		clock = SystemClock
	}
	return &Scheduler{
		cfg:           cfg,
		clock:         clock,
		source:        source,
		emitter:       emitter,
		detector:      detector.New(cfg.Thresholds),
		log:           logger.With("component", "scheduler"),
		lastAlertedAt: make(map[dedupKey]time.Time),
		done:          make(chan struct{}),
	}
}

// Start arms the initial-delay timer and the periodic ticker. It is safe to
// call only once; later calls are ignored.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		s.log.Warn("Start called more than once, ignoring")
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.loop(loopCtx)
}

// Stop cancels both timers and waits for the loop to exit.
func (s *Scheduler) Stop() {
	if !s.started.Load() {
		return
	}
	s.cancel()
	<-s.done
}

// Done is closed once the loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	initial := time.NewTimer(s.cfg.InitialDelay)
	defer initial.Stop()
	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	s.log.Info("detector scheduled", "period", s.cfg.Period, "initial_delay", s.cfg.InitialDelay, "cooldown", s.cfg.Cooldown)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("detector stopped")
			return
		case <-initial.C:
			s.Tick(ctx)
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one detection cycle and returns the alerts it emitted.
func (s *Scheduler) Tick(ctx context.Context) []models.Alert {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	status, err := s.source.Status(ctx)
	if err != nil {
		s.log.Error("failed to read status", "error", err)
		return nil
	}

	now := s.clock.Now()
	var emitted []models.Alert
	for _, f := range s.detector.Detect(status, now) {
		if !s.admit(f, now) {
			s.log.Debug("suppressed repeat finding", "category", f.Category, "severity", f.Severity)
			continue
		}
		emitted = append(emitted, s.emitter.Dispatch(ctx, f.AlertKind(), f.AlertMessage()))
	}
	return emitted
}

// admit records f as alerted at now unless an identical finding was alerted
// within the cool-down window.
func (s *Scheduler) admit(f models.Finding, now time.Time) bool {
	key := dedupKey{category: f.Category, severity: f.Severity}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastAlertedAt[key]; ok && now.Sub(last) <= s.cfg.Cooldown {
		return false
	}
	s.lastAlertedAt[key] = now
	return true
}
