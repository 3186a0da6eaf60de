package storage

import (
	"context"
	"sync"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
)

// Hub wraps a Provider and publishes the full recent list to subscribers
// after every successful write. Delivery happens on the writer's goroutine,
// so a subscriber always observes the latest state last.
type Hub struct {
	Provider

	mu         sync.RWMutex
	nextID     int
	activities map[int]func([]models.ActivityEvent)
	alerts     map[int]func([]models.Alert)
	status     map[int]func(models.StatusSnapshot)
}

func NewHub(p Provider) *Hub {
	return &Hub{
		Provider:   p,
		activities: make(map[int]func([]models.ActivityEvent)),
		alerts:     make(map[int]func([]models.Alert)),
		status:     make(map[int]func(models.StatusSnapshot)),
	}
}

// SubscribeActivities registers fn and returns a function that removes it.
func (h *Hub) SubscribeActivities(fn func([]models.ActivityEvent)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.activities[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.activities, id)
	}
}

func (h *Hub) SubscribeAlerts(fn func([]models.Alert)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.alerts[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.alerts, id)
	}
}

func (h *Hub) SubscribeStatus(fn func(models.StatusSnapshot)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.status[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.status, id)
	}
}

func (h *Hub) AppendActivity(ctx context.Context, ev models.ActivityEvent) error {
	if err := h.Provider.AppendActivity(ctx, ev); err != nil {
		return err
	}
	h.publishActivities(ctx)
	return nil
}

func (h *Hub) AppendAlert(ctx context.Context, a models.Alert) error {
	if err := h.Provider.AppendAlert(ctx, a); err != nil {
		return err
	}
	h.publishAlerts(ctx)
	return nil
}

func (h *Hub) MarkAlertRead(ctx context.Context, id string) error {
	if err := h.Provider.MarkAlertRead(ctx, id); err != nil {
		return err
	}
	h.publishAlerts(ctx)
	return nil
}

func (h *Hub) ClearAlerts(ctx context.Context) error {
	if err := h.Provider.ClearAlerts(ctx); err != nil {
		return err
	}
	h.publishAlerts(ctx)
	return nil
}

func (h *Hub) PutStatus(ctx context.Context, s models.StatusSnapshot) error {
	if err := h.Provider.PutStatus(ctx, s); err != nil {
		return err
	}
	h.mu.RLock()
	subs := make([]func(models.StatusSnapshot), 0, len(h.status))
	for _, fn := range h.status {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(s)
	}
	return nil
}

func (h *Hub) publishActivities(ctx context.Context) {
	h.mu.RLock()
	subs := make([]func([]models.ActivityEvent), 0, len(h.activities))
	for _, fn := range h.activities {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	list, err := h.Provider.RecentActivities(ctx, constants.MaxActivities)
	if err != nil {
		logger.Warn("Failed to load activities for subscribers", "error", err)
		return
	}
	for _, fn := range subs {
		fn(list)
	}
}

func (h *Hub) publishAlerts(ctx context.Context) {
	h.mu.RLock()
	subs := make([]func([]models.Alert), 0, len(h.alerts))
	for _, fn := range h.alerts {
		subs = append(subs, fn)
	}
	h.mu.RUnlock()
	if len(subs) == 0 {
		return
	}

	list, err := h.Provider.RecentAlerts(ctx, constants.MaxAlerts)
	if err != nil {
		logger.Warn("Failed to load alerts for subscribers", "error", err)
		return
	}
	for _, fn := range subs {
		fn(list)
	}
}
