package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage"
	"github.com/julianstephens/mimamori/internal/storage/memory"
)

func newHub(t *testing.T) *storage.Hub {
	t.Helper()
	m := memory.New()
	if err := m.Init(); err != nil {
		t.Fatal(err)
	}
	return storage.NewHub(m)
}

func TestHub_ActivitySubscribersGetNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	var deliveries [][]models.ActivityEvent
	unsubscribe := h.SubscribeActivities(func(list []models.ActivityEvent) {
		deliveries = append(deliveries, list)
	})

	for i := 0; i < 3; i++ {
		ev := models.ActivityEvent{
			ID:         fmt.Sprintf("a%d", i),
			Kind:       models.ActivityMeal,
			OccurredAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := h.AppendActivity(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	if len(deliveries) != 3 {
		t.Fatalf("got %d deliveries, want 3", len(deliveries))
	}
	last := deliveries[2]
	if len(last) != 3 || last[0].ID != "a2" || last[2].ID != "a0" {
		t.Errorf("last delivery not newest first: %+v", last)
	}

	unsubscribe()
	_ = h.AppendActivity(ctx, models.ActivityEvent{ID: "a9", Kind: models.ActivityMeal, OccurredAt: base})
	if len(deliveries) != 3 {
		t.Errorf("delivered after unsubscribe")
	}
}

func TestHub_AlertSubscribers(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)

	var latest []models.Alert
	calls := 0
	h.SubscribeAlerts(func(list []models.Alert) {
		calls++
		latest = list
	})

	a := models.Alert{ID: "x", Kind: models.AlertWarning, Message: "m", CreatedAt: time.Now()}
	if err := h.AppendAlert(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := h.MarkAlertRead(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if len(latest) != 1 || !latest[0].IsRead {
		t.Errorf("latest = %+v", latest)
	}

	// Failed writes publish nothing
	if err := h.MarkAlertRead(ctx, "missing"); err == nil {
		t.Error("expected ErrNotFound")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	if err := h.ClearAlerts(ctx); err != nil {
		t.Fatal(err)
	}
	if len(latest) != 0 || calls != 3 {
		t.Errorf("after clear: calls=%d latest=%+v", calls, latest)
	}
}

func TestHub_StatusSubscribers(t *testing.T) {
	ctx := context.Background()
	h := newHub(t)

	var got models.StatusSnapshot
	h.SubscribeStatus(func(s models.StatusSnapshot) { got = s })

	s := models.DefaultStatus()
	s.TodayCheckIns = 3
	if err := h.PutStatus(ctx, s); err != nil {
		t.Fatal(err)
	}
	if got.TodayCheckIns != 3 {
		t.Errorf("subscriber saw %+v", got)
	}
}
