package dispatcher

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/notifier"
	"github.com/julianstephens/mimamori/internal/storage/memory"
)

type fakeNotifier struct {
	sent []notifier.Notification
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, n notifier.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

var fixed = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T, mutate func(*models.Settings), token string) (*Dispatcher, *memory.Store, *fakeNotifier) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.Init(); err != nil {
		t.Fatal(err)
	}
	s, _ := store.GetSettings(ctx)
	if mutate != nil {
		mutate(&s)
	}
	if err := store.SaveSettings(ctx, s); err != nil {
		t.Fatal(err)
	}

	n := &fakeNotifier{}
	tokens := func() (string, error) {
		if token == "" {
			return "", keyring.ErrNotFound
		}
		return token, nil
	}
	d := New(store, n, WithClock(func() time.Time { return fixed }), WithTokenSource(tokens))
	return d, store, n
}

func TestDispatch_EmergencyScenario(t *testing.T) {
	ctx := context.Background()
	d, store, n := setup(t, func(s *models.Settings) { s.RelayEnabled = true }, "tok")

	alert := d.Dispatch(ctx, models.AlertEmergency, "Emergency button pressed!")

	if alert.ID == "" || alert.IsRead || !alert.CreatedAt.Equal(fixed) {
		t.Errorf("unexpected alert %+v", alert)
	}

	alerts, _ := store.RecentAlerts(ctx, 10)
	if len(alerts) != 1 || alerts[0].ID != alert.ID || alerts[0].Kind != models.AlertEmergency {
		t.Errorf("alert not persisted: %+v", alerts)
	}

	if len(n.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(n.sent))
	}
	if n.sent[0].Tag != alert.ID || n.sent[0].Body != "Emergency button pressed!" {
		t.Errorf("notification = %+v", n.sent[0])
	}

	pending, _ := store.PendingRelays(ctx, 10)
	if len(pending) != 1 {
		t.Fatalf("queued %d relays, want 1", len(pending))
	}
	r := pending[0]
	if !r.Urgent || r.DeliveryToken != "tok" || r.Category != "emergency" || r.Status != models.RelayPending {
		t.Errorf("relay request = %+v", r)
	}
	if !strings.HasPrefix(r.Message, "🚨 ") {
		t.Errorf("relay message %q lacks emoji prefix", r.Message)
	}
}

func TestDispatch_RespectsPermissions(t *testing.T) {
	ctx := context.Background()
	d, store, n := setup(t, func(s *models.Settings) {
		s.NotificationsEnabled = false
		s.RelayEnabled = false
	}, "tok")

	d.Dispatch(ctx, models.AlertWarning, "No meal recorded for 9 hours")

	if len(n.sent) != 0 {
		t.Errorf("notified without permission: %+v", n.sent)
	}
	if pending, _ := store.PendingRelays(ctx, 10); len(pending) != 0 {
		t.Errorf("relayed while disabled: %+v", pending)
	}
	if alerts, _ := store.RecentAlerts(ctx, 10); len(alerts) != 1 {
		t.Errorf("alert should still be stored")
	}
}

func TestDispatch_NoTokenSkipsRelay(t *testing.T) {
	ctx := context.Background()
	d, store, _ := setup(t, func(s *models.Settings) { s.RelayEnabled = true }, "")

	d.Dispatch(ctx, models.AlertWarning, "x")
	if pending, _ := store.PendingRelays(ctx, 10); len(pending) != 0 {
		t.Errorf("relayed without token: %+v", pending)
	}
}

func TestDispatch_NotifierFailureIsBestEffort(t *testing.T) {
	ctx := context.Background()
	d, store, n := setup(t, func(s *models.Settings) { s.RelayEnabled = true }, "tok")
	n.err = errors.New("tray exploded")

	d.Dispatch(ctx, models.AlertWarning, "x")

	if alerts, _ := store.RecentAlerts(ctx, 10); len(alerts) != 1 {
		t.Error("alert should be stored despite notifier failure")
	}
	if pending, _ := store.PendingRelays(ctx, 10); len(pending) != 1 {
		t.Error("relay should be queued despite notifier failure")
	}
}

func TestNotifyActivity(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		relay   bool
		kinds   []models.ActivityKind
		kind    models.ActivityKind
		want    bool
		urgent  bool
		message string
	}{
		{"selected kind", true, []models.ActivityKind{models.ActivityMeal}, models.ActivityMeal, true, false, "🍽️ Had a meal"},
		{"unselected kind", true, []models.ActivityKind{models.ActivityMeal}, models.ActivitySleep, false, false, ""},
		{"emergency always", true, []models.ActivityKind{}, models.ActivityEmergency, true, true, "🚨 Emergency button pressed!"},
		{"relay disabled", false, []models.ActivityKind{models.ActivityMeal}, models.ActivityMeal, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store, _ := setup(t, func(s *models.Settings) {
				s.RelayEnabled = tt.relay
				s.NotifyKinds = tt.kinds
			}, "tok")

			ev := models.ActivityEvent{ID: "e", Kind: tt.kind, OccurredAt: fixed, Message: tt.kind.DefaultMessage()}
			if got := d.NotifyActivity(ctx, ev); got != tt.want {
				t.Fatalf("NotifyActivity = %v, want %v", got, tt.want)
			}
			pending, _ := store.PendingRelays(ctx, 10)
			if !tt.want {
				if len(pending) != 0 {
					t.Errorf("unexpected relay %+v", pending)
				}
				return
			}
			if len(pending) != 1 || pending[0].Message != tt.message || pending[0].Urgent != tt.urgent {
				t.Errorf("relay = %+v", pending)
			}
			if pending[0].Category != string(tt.kind) {
				t.Errorf("category = %s, want %s", pending[0].Category, tt.kind)
			}
		})
	}
}
