// Package storagetest holds the behavioural tests every storage.Provider must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage"
)

var base = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

// Run exercises p, which must be initialized and empty.
func Run(t *testing.T, newProvider func(t *testing.T) storage.Provider) {
	t.Run("ActivityOrdering", func(t *testing.T) { testActivityOrdering(t, newProvider(t)) })
	t.Run("ActivityRetention", func(t *testing.T) { testActivityRetention(t, newProvider(t)) })
	t.Run("AlertLifecycle", func(t *testing.T) { testAlertLifecycle(t, newProvider(t)) })
	t.Run("AlertRetention", func(t *testing.T) { testAlertRetention(t, newProvider(t)) })
	t.Run("Status", func(t *testing.T) { testStatus(t, newProvider(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newProvider(t)) })
	t.Run("RelayQueue", func(t *testing.T) { testRelayQueue(t, newProvider(t)) })
	t.Run("RelayRetention", func(t *testing.T) { testRelayRetention(t, newProvider(t)) })
}

func activity(i int, kind models.ActivityKind, at time.Time) models.ActivityEvent {
	return models.ActivityEvent{ID: fmt.Sprintf("act-%03d", i), Kind: kind, OccurredAt: at, Message: kind.DefaultMessage()}
}

func testActivityOrdering(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	// Inserted out of chronological order
	events := []models.ActivityEvent{
		activity(1, models.ActivityMeal, base.Add(2*time.Hour)),
		activity(2, models.ActivityCheckIn, base),
		activity(3, models.ActivityMedicine, base.Add(time.Hour)),
	}
	for _, ev := range events {
		if err := p.AppendActivity(ctx, ev); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	recent, err := p.RecentActivities(ctx, 10)
	if err != nil {
		t.Fatalf("RecentActivities: %v", err)
	}
	wantRecent := []string{"act-001", "act-003", "act-002"}
	if len(recent) != len(wantRecent) {
		t.Fatalf("got %d activities, want %d", len(recent), len(wantRecent))
	}
	for i, id := range wantRecent {
		if recent[i].ID != id {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].ID, id)
		}
	}
	if !recent[0].OccurredAt.Equal(events[0].OccurredAt) {
		t.Errorf("OccurredAt round trip: got %v, want %v", recent[0].OccurredAt, events[0].OccurredAt)
	}

	all, err := p.AllActivities(ctx)
	if err != nil {
		t.Fatalf("AllActivities: %v", err)
	}
	for i, ev := range events {
		if all[i].ID != ev.ID {
			t.Errorf("all[%d] = %s, want %s (insertion order)", i, all[i].ID, ev.ID)
		}
	}

	if err := p.AppendActivity(ctx, models.ActivityEvent{ID: "bad", Kind: "dance", OccurredAt: base}); err == nil {
		t.Error("expected validation error for unknown kind")
	}
}

func testActivityRetention(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	total := constants.MaxActivities + 5
	for i := 0; i < total; i++ {
		if err := p.AppendActivity(ctx, activity(i, models.ActivityCheckIn, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("AppendActivity %d: %v", i, err)
		}
	}

	all, err := p.AllActivities(ctx)
	if err != nil {
		t.Fatalf("AllActivities: %v", err)
	}
	if len(all) != constants.MaxActivities {
		t.Fatalf("retained %d activities, want %d", len(all), constants.MaxActivities)
	}
	if all[0].ID != "act-005" {
		t.Errorf("oldest retained = %s, want act-005", all[0].ID)
	}
}

func alert(i int, kind models.AlertKind) models.Alert {
	return models.Alert{
		ID:        fmt.Sprintf("alert-%03d", i),
		Kind:      kind,
		Message:   fmt.Sprintf("message %d", i),
		CreatedAt: base.Add(time.Duration(i) * time.Second),
	}
}

func testAlertLifecycle(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	for i, k := range []models.AlertKind{models.AlertWarning, models.AlertEmergency} {
		if err := p.AppendAlert(ctx, alert(i, k)); err != nil {
			t.Fatalf("AppendAlert: %v", err)
		}
	}

	alerts, err := p.RecentAlerts(ctx, 10)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(alerts) != 2 || alerts[0].ID != "alert-001" {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	if alerts[0].IsRead || alerts[1].IsRead {
		t.Error("new alerts should be unread")
	}

	if err := p.MarkAlertRead(ctx, "alert-000"); err != nil {
		t.Fatalf("MarkAlertRead: %v", err)
	}
	alerts, _ = p.RecentAlerts(ctx, 10)
	if !alerts[1].IsRead || alerts[0].IsRead {
		t.Errorf("read flags = %v, %v; want false, true", alerts[0].IsRead, alerts[1].IsRead)
	}

	if err := p.MarkAlertRead(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MarkAlertRead(missing) = %v, want ErrNotFound", err)
	}

	if err := p.ClearAlerts(ctx); err != nil {
		t.Fatalf("ClearAlerts: %v", err)
	}
	alerts, _ = p.RecentAlerts(ctx, 10)
	if len(alerts) != 0 {
		t.Errorf("after clear got %d alerts", len(alerts))
	}
}

func testAlertRetention(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	for i := 0; i < constants.MaxAlerts+3; i++ {
		if err := p.AppendAlert(ctx, alert(i, models.AlertInfo)); err != nil {
			t.Fatalf("AppendAlert %d: %v", i, err)
		}
	}
	alerts, err := p.RecentAlerts(ctx, 0)
	if err != nil {
		t.Fatalf("RecentAlerts: %v", err)
	}
	if len(alerts) != constants.MaxAlerts {
		t.Fatalf("retained %d alerts, want %d", len(alerts), constants.MaxAlerts)
	}
	if alerts[len(alerts)-1].ID != "alert-003" {
		t.Errorf("oldest retained = %s, want alert-003", alerts[len(alerts)-1].ID)
	}
}

func testStatus(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	s, err := p.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !s.IsAwake || s.LastCheckIn != nil {
		t.Errorf("empty store should return the default status, got %+v", s)
	}

	at := base
	s.LastCheckIn = &at
	s.TodayCheckIns = 2
	s.CountDate = "2026-03-10"
	s.Streak = 4
	if err := p.PutStatus(ctx, s); err != nil {
		t.Fatalf("PutStatus: %v", err)
	}
	s.Streak = 5
	if err := p.PutStatus(ctx, s); err != nil {
		t.Fatalf("PutStatus overwrite: %v", err)
	}

	got, err := p.GetStatus(ctx)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if got.LastCheckIn == nil || !got.LastCheckIn.Equal(at) {
		t.Errorf("LastCheckIn = %v, want %v", got.LastCheckIn, at)
	}
	if got.TodayCheckIns != 2 || got.Streak != 5 || got.CountDate != "2026-03-10" {
		t.Errorf("unexpected status %+v", got)
	}
}

func testSettings(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	s, err := p.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if s.DetectIntervalSec != constants.DefaultDetectIntervalSec || !s.NotificationsEnabled {
		t.Errorf("unexpected default settings %+v", s)
	}

	s.RelayEnabled = true
	s.Timezone = "Asia/Tokyo"
	s.NotifyKinds = []models.ActivityKind{models.ActivityMeal}
	if err := p.SaveSettings(ctx, s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	got, err := p.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !got.RelayEnabled || got.Timezone != "Asia/Tokyo" {
		t.Errorf("settings not saved: %+v", got)
	}
	if len(got.NotifyKinds) != 1 || got.NotifyKinds[0] != models.ActivityMeal {
		t.Errorf("NotifyKinds = %v", got.NotifyKinds)
	}
}

func testRelayQueue(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		r := models.RelayRequest{
			ID:            fmt.Sprintf("relay-%d", i),
			DeliveryToken: "tok",
			Message:       fmt.Sprintf("msg %d", i),
			Category:      string(models.AlertWarning),
			Urgent:        i == 2,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
		if err := p.EnqueueRelay(ctx, r); err != nil {
			t.Fatalf("EnqueueRelay: %v", err)
		}
	}

	pending, err := p.PendingRelays(ctx, 10)
	if err != nil {
		t.Fatalf("PendingRelays: %v", err)
	}
	if len(pending) != 3 || pending[0].ID != "relay-0" {
		t.Fatalf("unexpected pending %+v", pending)
	}
	if pending[0].Status != models.RelayPending || pending[0].DeliveryToken != "tok" || !pending[2].Urgent {
		t.Errorf("fields not round-tripped: %+v", pending)
	}

	if err := p.MarkRelaySent(ctx, "relay-0", base); !errors.Is(err, storage.ErrRelayClaimed) {
		t.Errorf("MarkRelaySent(unclaimed) = %v, want ErrRelayClaimed", err)
	}
	for _, id := range []string{"relay-0", "relay-1"} {
		if err := p.ClaimRelay(ctx, id); err != nil {
			t.Fatalf("ClaimRelay(%s): %v", id, err)
		}
	}
	if err := p.ClaimRelay(ctx, "relay-0"); !errors.Is(err, storage.ErrRelayClaimed) {
		t.Errorf("second ClaimRelay = %v, want ErrRelayClaimed", err)
	}
	if err := p.ClaimRelay(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ClaimRelay(missing) = %v, want ErrNotFound", err)
	}
	pending, _ = p.PendingRelays(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "relay-2" {
		t.Errorf("claimed requests still pending: %+v", pending)
	}

	sentAt := base.Add(time.Minute)
	if err := p.MarkRelaySent(ctx, "relay-0", sentAt); err != nil {
		t.Fatalf("MarkRelaySent: %v", err)
	}
	if err := p.MarkRelayFailed(ctx, "relay-1", models.ErrRelayIncomplete.Error()); err != nil {
		t.Fatalf("MarkRelayFailed: %v", err)
	}
	if err := p.MarkRelaySent(ctx, "missing", sentAt); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("MarkRelaySent(missing) = %v, want ErrNotFound", err)
	}

	pending, _ = p.PendingRelays(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "relay-2" {
		t.Errorf("pending after marking = %+v", pending)
	}

	recent, err := p.RecentRelays(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRelays: %v", err)
	}
	byID := map[string]models.RelayRequest{}
	for _, r := range recent {
		byID[r.ID] = r
	}
	if r := byID["relay-0"]; r.Status != models.RelaySent || r.SentAt == nil || !r.SentAt.Equal(sentAt) {
		t.Errorf("relay-0 = %+v", r)
	}
	if r := byID["relay-1"]; r.Status != models.RelayError || r.Error != models.ErrRelayIncomplete.Error() {
		t.Errorf("relay-1 = %+v", r)
	}
	if err := p.ClaimRelay(ctx, "relay-0"); !errors.Is(err, storage.ErrRelayClaimed) {
		t.Errorf("ClaimRelay(sent) = %v, want ErrRelayClaimed", err)
	}

	if err := p.ClaimRelay(ctx, "relay-2"); err != nil {
		t.Fatalf("ClaimRelay: %v", err)
	}
	if err := p.ReleaseRelay(ctx, "relay-2"); err != nil {
		t.Fatalf("ReleaseRelay: %v", err)
	}
	if err := p.ReleaseRelay(ctx, "relay-2"); !errors.Is(err, storage.ErrRelayClaimed) {
		t.Errorf("ReleaseRelay(pending) = %v, want ErrRelayClaimed", err)
	}
	pending, _ = p.PendingRelays(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "relay-2" {
		t.Errorf("released request not pending: %+v", pending)
	}
}

func testRelayRetention(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	total := constants.MaxRelays + 5
	for i := 0; i < total; i++ {
		id := fmt.Sprintf("relay-%03d", i)
		r := models.RelayRequest{
			ID: id, DeliveryToken: "tok", Message: "m", Category: string(models.AlertInfo),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := p.EnqueueRelay(ctx, r); err != nil {
			t.Fatalf("EnqueueRelay: %v", err)
		}
		if i == 0 {
			continue // stays pending
		}
		if err := p.ClaimRelay(ctx, id); err != nil {
			t.Fatalf("ClaimRelay: %v", err)
		}
		var err error
		if i%2 == 0 {
			err = p.MarkRelayFailed(ctx, id, "boom")
		} else {
			err = p.MarkRelaySent(ctx, id, base)
		}
		if err != nil {
			t.Fatalf("finishing %s: %v", id, err)
		}
	}

	all, err := p.RecentRelays(ctx, 1000)
	if err != nil {
		t.Fatalf("RecentRelays: %v", err)
	}
	if len(all) != constants.MaxRelays+1 {
		t.Fatalf("retained %d relays, want %d", len(all), constants.MaxRelays+1)
	}
	if all[0].ID != fmt.Sprintf("relay-%03d", total-1) {
		t.Errorf("newest = %s", all[0].ID)
	}
	if oldest := all[len(all)-1]; oldest.ID != "relay-000" || oldest.Status != models.RelayPending {
		t.Errorf("pending request was trimmed, oldest = %+v", oldest)
	}
	if all[len(all)-2].ID != "relay-005" {
		t.Errorf("oldest finished = %s, want relay-005", all[len(all)-2].ID)
	}
}
