package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/mimamori/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSource struct {
	mu     sync.Mutex
	status models.StatusSnapshot
	err    error
	reads  int
}

func (f *fakeSource) Status(ctx context.Context) (models.StatusSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.status, f.err
}

func (f *fakeSource) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type recordingEmitter struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (e *recordingEmitter) Dispatch(ctx context.Context, kind models.AlertKind, message string) models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := models.Alert{ID: "a", Kind: kind, Message: message, CreatedAt: time.Now()}
	e.alerts = append(e.alerts, a)
	return a
}

func (e *recordingEmitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.alerts)
}

var start = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

// staleCheckIn has a 13h-old check-in and fresh meal and medicine.
func staleCheckIn() models.StatusSnapshot {
	checkIn := start.Add(-13 * time.Hour)
	meal := start.Add(-time.Hour)
	med := start.Add(-time.Hour)
	return models.StatusSnapshot{
		LastCheckIn:  &checkIn,
		LastMeal:     &meal,
		LastMedicine: &med,
		IsAwake:      true,
	}
}

func TestTick_StaleCheckInEmitsEmergency(t *testing.T) {
	clock := &fakeClock{now: start}
	em := &recordingEmitter{}
	s := New(Config{}, clock, &fakeSource{status: staleCheckIn()}, em)

	got := s.Tick(context.Background())
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].Kind != models.AlertEmergency {
		t.Errorf("kind = %s, want emergency", got[0].Kind)
	}
	if !strings.Contains(got[0].Message, "13") {
		t.Errorf("message %q does not mention 13 hours", got[0].Message)
	}
	if !strings.Contains(got[0].Message, ". ") {
		t.Errorf("message %q does not carry the recommendation", got[0].Message)
	}
}

func TestTick_DedupWindow(t *testing.T) {
	clock := &fakeClock{now: start}
	em := &recordingEmitter{}
	s := New(Config{Cooldown: time.Hour}, clock, &fakeSource{status: staleCheckIn()}, em)
	ctx := context.Background()

	steps := []struct {
		advance time.Duration
		want    int
	}{
		{0, 1},                // first sighting
		{5 * time.Minute, 1},  // inside window
		{55 * time.Minute, 1}, // exactly one hour later, still suppressed
		{time.Second, 2},      // window elapsed
		{10 * time.Minute, 2},
	}

	for i, step := range steps {
		clock.Advance(step.advance)
		s.Tick(ctx)
		if em.Count() != step.want {
			t.Fatalf("step %d: emitted %d alerts, want %d", i, em.Count(), step.want)
		}
	}
}

func TestTick_SeverityChangeIsNewKey(t *testing.T) {
	clock := &fakeClock{now: start}
	em := &recordingEmitter{}
	src := &fakeSource{}

	warn := start.Add(-7 * time.Hour)
	fresh := start
	src.status = models.StatusSnapshot{LastCheckIn: &warn, LastMeal: &fresh, LastMedicine: &fresh, IsAwake: true}

	s := New(Config{}, clock, src, em)
	s.Tick(context.Background())

	clock.Advance(6 * time.Hour)
	src.mu.Lock()
	src.status.LastMeal = &start
	src.status.LastMedicine = &start
	src.mu.Unlock()
	s.Tick(context.Background())

	if em.Count() != 2 {
		t.Fatalf("emitted %d alerts, want 2", em.Count())
	}
	if em.alerts[0].Kind != models.AlertWarning || em.alerts[1].Kind != models.AlertEmergency {
		t.Errorf("kinds = %s, %s; want warning, emergency", em.alerts[0].Kind, em.alerts[1].Kind)
	}
}

func TestTick_StatusErrorDoesNotEmit(t *testing.T) {
	em := &recordingEmitter{}
	s := New(Config{}, &fakeClock{now: start}, &fakeSource{err: errors.New("boom")}, em)

	if got := s.Tick(context.Background()); got != nil {
		t.Errorf("expected no alerts, got %+v", got)
	}
	if em.Count() != 0 {
		t.Errorf("emitter called %d times", em.Count())
	}
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{status: staleCheckIn()}
	em := &recordingEmitter{}
	s := New(Config{
		Period:       20 * time.Millisecond,
		InitialDelay: 5 * time.Millisecond,
		Cooldown:     time.Hour,
	}, &fakeClock{now: start}, src, em)

	s.Start(context.Background())
	s.Start(context.Background()) // ignored

	deadline := time.After(2 * time.Second)
	for src.Reads() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks before deadline", src.Reads())
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
	select {
	case <-s.Done():
	default:
		t.Fatal("loop still running after Stop")
	}

	reads := src.Reads()
	time.Sleep(60 * time.Millisecond)
	if src.Reads() != reads {
		t.Errorf("ticks continued after Stop: %d -> %d", reads, src.Reads())
	}
	if em.Count() != 1 {
		t.Errorf("emitted %d alerts across ticks, want 1 (deduplicated)", em.Count())
	}
}

func TestStart_ContextCancelStopsLoop(t *testing.T) {
	s := New(Config{Period: time.Hour, InitialDelay: time.Hour}, nil, &fakeSource{}, &recordingEmitter{})
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancellation")
	}
}

func TestStop_WithoutStart(t *testing.T) {
	s := New(Config{}, nil, &fakeSource{}, &recordingEmitter{})
	s.Stop()
}
