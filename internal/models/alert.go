package models

import (
	"fmt"
	"time"
)

type AlertKind string

const (
	AlertEmergency AlertKind = "emergency"
	AlertWarning   AlertKind = "warning"
	AlertInfo      AlertKind = "info"
)

// Emoji is the prefix used when the alert is forwarded to the relay.
func (k AlertKind) Emoji() string {
	switch k {
	case AlertEmergency:
		return "🚨"
	case AlertWarning:
		return "⚠️"
	case AlertInfo:
		return "ℹ️"
	}
	return "📢"
}

// Urgent reports whether relay messages for this kind carry the urgent banner.
func (k AlertKind) Urgent() bool {
	return k == AlertEmergency
}

// Alert is a persisted, family-facing notification. Only IsRead may change after creation.
type Alert struct {
	ID        string    `json:"id"`
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	IsRead    bool      `json:"is_read"`
}

func (a *Alert) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("alert id cannot be empty")
	}
	if a.Message == "" {
		return fmt.Errorf("alert message cannot be empty")
	}
	switch a.Kind {
	case AlertEmergency, AlertWarning, AlertInfo:
	default:
		return fmt.Errorf("invalid alert kind %q", a.Kind)
	}
	if a.CreatedAt.IsZero() {
		return fmt.Errorf("alert created_at cannot be empty")
	}
	return nil
}
