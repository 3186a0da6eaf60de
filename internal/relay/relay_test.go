package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage/memory"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type pushServer struct {
	mu       sync.Mutex
	messages []string
	tokens   []string
	status   int
}

func (p *pushServer) handler(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.messages = append(p.messages, r.PostForm.Get("message"))
	p.tokens = append(p.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if p.status != 0 {
		w.WriteHeader(p.status)
		_, _ = w.Write([]byte(`{"message":"Invalid access token"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":200}`))
}

func newQueue(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	return s
}

func enqueue(t *testing.T, q *memory.Store, id, token, message string, urgent bool) {
	t.Helper()
	err := q.EnqueueRelay(context.Background(), models.RelayRequest{
		ID: id, DeliveryToken: token, Message: message, Category: "info", Urgent: urgent, CreatedAt: now,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func relayByID(t *testing.T, q *memory.Store, id string) models.RelayRequest {
	t.Helper()
	all, _ := q.RecentRelays(context.Background(), 100)
	for _, r := range all {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("relay %s not found", id)
	return models.RelayRequest{}
}

func TestHTTPSender(t *testing.T) {
	p := &pushServer{}
	srv := httptest.NewServer(http.HandlerFunc(p.handler))
	defer srv.Close()

	s := NewHTTPSender(srv.URL)
	if err := s.Send(context.Background(), "tok", "hello & bye"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if p.messages[0] != "hello & bye" || p.tokens[0] != "tok" {
		t.Errorf("server saw message=%q token=%q", p.messages[0], p.tokens[0])
	}

	p.status = http.StatusUnauthorized
	err := s.Send(context.Background(), "bad", "x")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected 401 error, got %v", err)
	}
}

func TestWorker_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	p := &pushServer{}
	srv := httptest.NewServer(http.HandlerFunc(p.handler))
	defer srv.Close()

	q := newQueue(t)
	enqueue(t, q, "ok", "tok", "💚 Reported", false)
	enqueue(t, q, "urgent", "tok", "🚨 Help", true)
	enqueue(t, q, "no-token", "", "x", false)
	enqueue(t, q, "no-message", "tok", "", false)

	w := NewWorker(q, NewHTTPSender(srv.URL), WorkerConfig{Now: clock})
	sent, failed := w.ProcessBatch(ctx)
	if sent != 2 || failed != 2 {
		t.Fatalf("sent=%d failed=%d, want 2/2", sent, failed)
	}

	if r := relayByID(t, q, "ok"); r.Status != models.RelaySent || r.SentAt == nil || !r.SentAt.Equal(now) {
		t.Errorf("ok = %+v", r)
	}
	if p.messages[1] != constants.UrgentBanner+"🚨 Help" {
		t.Errorf("urgent message = %q", p.messages[1])
	}
	for _, id := range []string{"no-token", "no-message"} {
		r := relayByID(t, q, id)
		if r.Status != models.RelayError || r.Error != models.ErrRelayIncomplete.Error() {
			t.Errorf("%s = %+v", id, r)
		}
	}

	// Validation failures are not surfaced as alerts
	if alerts, _ := q.RecentAlerts(ctx, 10); len(alerts) != 0 {
		t.Errorf("unexpected alerts %+v", alerts)
	}

	// Nothing left to do and nothing is retried
	if sent, failed := w.ProcessBatch(ctx); sent != 0 || failed != 0 {
		t.Errorf("second batch sent=%d failed=%d", sent, failed)
	}
	if len(p.messages) != 2 {
		t.Errorf("server received %d messages, want 2", len(p.messages))
	}
}

func TestWorker_TransportErrorSurfacesAlert(t *testing.T) {
	ctx := context.Background()
	p := &pushServer{status: http.StatusInternalServerError}
	srv := httptest.NewServer(http.HandlerFunc(p.handler))
	defer srv.Close()

	q := newQueue(t)
	enqueue(t, q, "r1", "tok", "⚠️ x", false)

	w := NewWorker(q, NewHTTPSender(srv.URL), WorkerConfig{Now: clock})
	if _, failed := w.ProcessBatch(ctx); failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}

	r := relayByID(t, q, "r1")
	if r.Status != models.RelayError || !strings.Contains(r.Error, "500") {
		t.Errorf("r1 = %+v", r)
	}

	alerts, _ := q.RecentAlerts(ctx, 10)
	if len(alerts) != 1 || alerts[0].Kind != models.AlertInfo || !strings.HasPrefix(alerts[0].Message, "Relay delivery failed: ") {
		t.Errorf("alerts = %+v", alerts)
	}
	if pending, _ := q.PendingRelays(ctx, 10); len(pending) != 0 {
		t.Errorf("failure alert fed back into the relay queue: %+v", pending)
	}
}

type countingSender struct {
	mu sync.Mutex
	n  int
}

func (c *countingSender) Send(ctx context.Context, token, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func TestWorker_StartDrain(t *testing.T) {
	q := newQueue(t)
	s := &countingSender{}
	w := NewWorker(q, s, WorkerConfig{PollInterval: time.Hour, Now: clock})

	w.Start(context.Background())
	enqueue(t, q, "late", "tok", "x", false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.Drain(ctx)

	select {
	case <-w.Done():
	default:
		t.Fatal("worker still running after Drain")
	}
	if s.n != 1 {
		t.Errorf("final drain sent %d, want 1", s.n)
	}
}

// cancellingSender cancels the batch context mid-send, like a daemon shutdown.
type cancellingSender struct {
	cancel context.CancelFunc
}

func (c *cancellingSender) Send(ctx context.Context, token, message string) error {
	c.cancel()
	<-ctx.Done()
	return ctx.Err()
}

func TestWorker_InterruptedSendStaysPending(t *testing.T) {
	q := newQueue(t)
	enqueue(t, q, "r1", "tok", "💚 Reported", false)
	enqueue(t, q, "r2", "tok", "💚 Reported", false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := NewWorker(q, &cancellingSender{cancel: cancel}, WorkerConfig{Now: clock})
	if sent, failed := w.ProcessBatch(ctx); sent != 0 || failed != 0 {
		t.Errorf("sent=%d failed=%d, want 0/0", sent, failed)
	}

	for _, id := range []string{"r1", "r2"} {
		if r := relayByID(t, q, id); r.Status != models.RelayPending || r.Error != "" {
			t.Errorf("%s = %+v, want pending", id, r)
		}
	}
	if alerts, _ := q.RecentAlerts(context.Background(), 10); len(alerts) != 0 {
		t.Errorf("shutdown reported as a delivery failure: %+v", alerts)
	}
}

func TestWorker_SkipsClaimedRequest(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	enqueue(t, q, "busy", "tok", "x", false)
	enqueue(t, q, "free", "tok", "y", false)

	// Another worker took "busy" between our read and our claim.
	if err := q.ClaimRelay(ctx, "busy"); err != nil {
		t.Fatal(err)
	}
	s := &countingSender{}
	w := NewWorker(q, s, WorkerConfig{Now: clock})
	if sent, failed := w.ProcessBatch(ctx); sent != 1 || failed != 0 {
		t.Errorf("sent=%d failed=%d, want 1/0", sent, failed)
	}
	if s.n != 1 {
		t.Errorf("sender called %d times, want 1", s.n)
	}
	if r := relayByID(t, q, "busy"); r.Status != models.RelaySending {
		t.Errorf("busy = %+v, want untouched", r)
	}
}

func TestWorker_ConcurrentWorkersSendOnce(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	for i := 0; i < 10; i++ {
		enqueue(t, q, fmt.Sprintf("r%d", i), "tok", "x", false)
	}

	s := &countingSender{}
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			NewWorker(q, s, WorkerConfig{Now: clock}).ProcessBatch(ctx)
		}()
	}
	wg.Wait()

	if s.n != 10 {
		t.Errorf("sender called %d times, want 10", s.n)
	}
}

type sweepFixture struct {
	store *memory.Store
	token string
}

func (f *sweepFixture) tokens() (string, error) {
	if f.token == "" {
		return "", keyring.ErrNotFound
	}
	return f.token, nil
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	ago := func(d time.Duration) *time.Time { v := now.Add(-d); return &v }

	tests := []struct {
		name        string
		relay       bool
		token       string
		lastCheckIn *time.Time
		want        bool
	}{
		{"stale check-in", true, "tok", ago(25 * time.Hour), true},
		{"recent check-in", true, "tok", ago(23 * time.Hour), false},
		{"never checked in", true, "tok", nil, false},
		{"relay disabled", false, "tok", ago(30 * time.Hour), false},
		{"no token", true, "", ago(30 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &sweepFixture{store: newQueue(t), token: tt.token}
			settings, _ := f.store.GetSettings(ctx)
			settings.RelayEnabled = tt.relay
			_ = f.store.SaveSettings(ctx, settings)
			st := models.DefaultStatus()
			st.LastCheckIn = tt.lastCheckIn
			_ = f.store.PutStatus(ctx, st)

			res, err := NewSweep(f.store, f.tokens, clock).Run(ctx)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Enqueued != tt.want {
				t.Errorf("Enqueued = %v (%s), want %v", res.Enqueued, res.Reason, tt.want)
			}
			pending, _ := f.store.PendingRelays(ctx, 10)
			if !tt.want {
				if len(pending) != 0 {
					t.Errorf("unexpected relay %+v", pending)
				}
				return
			}
			if len(pending) != 1 {
				t.Fatalf("pending = %+v", pending)
			}
			r := pending[0]
			if r.Message != SweepMessage || !r.Urgent || r.Category != "warning" {
				t.Errorf("sweep relay = %+v", r)
			}
		})
	}
}

func TestSweep_TokenError(t *testing.T) {
	ctx := context.Background()
	store := newQueue(t)
	s, _ := store.GetSettings(ctx)
	s.RelayEnabled = true
	_ = store.SaveSettings(ctx, s)
	st := models.DefaultStatus()
	old := now.Add(-48 * time.Hour)
	st.LastCheckIn = &old
	_ = store.PutStatus(ctx, st)

	boom := errors.New("dbus down")
	_, err := NewSweep(store, func() (string, error) { return "", boom }, clock).Run(ctx)
	if !errors.Is(err, boom) {
		t.Errorf("Run = %v, want wrapped %v", err, boom)
	}
}
