package models

import (
	"fmt"
	"time"
)

type ActivityKind string

const (
	ActivityCheckIn   ActivityKind = "check_in"
	ActivityEmergency ActivityKind = "emergency"
	ActivityMeal      ActivityKind = "meal"
	ActivityMedicine  ActivityKind = "medicine"
	ActivitySleep     ActivityKind = "sleep"
	ActivityWake      ActivityKind = "wake"
	ActivityOuting    ActivityKind = "outing"
	ActivityReturn    ActivityKind = "return"
)

// ActivityKinds lists every kind in display order.
var ActivityKinds = []ActivityKind{
	ActivityCheckIn,
	ActivityEmergency,
	ActivityMeal,
	ActivityMedicine,
	ActivitySleep,
	ActivityWake,
	ActivityOuting,
	ActivityReturn,
}

// ParseActivityKind converts s into an ActivityKind, rejecting anything outside the closed set.
func ParseActivityKind(s string) (ActivityKind, error) {
	for _, k := range ActivityKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown activity kind %q", s)
}

// DefaultMessage is the text recorded when the senior does not supply one.
func (k ActivityKind) DefaultMessage() string {
	switch k {
	case ActivityCheckIn:
		return "Reported \"I'm OK!\""
	case ActivityEmergency:
		return "Emergency button pressed!"
	case ActivityMeal:
		return "Had a meal"
	case ActivityMedicine:
		return "Took medicine"
	case ActivitySleep:
		return "Good night"
	case ActivityWake:
		return "Good morning"
	case ActivityOuting:
		return "Going out"
	case ActivityReturn:
		return "Back home"
	}
	return string(k)
}

// Emoji is the prefix used when the activity is forwarded to the relay.
func (k ActivityKind) Emoji() string {
	switch k {
	case ActivityCheckIn:
		return "💚"
	case ActivityEmergency:
		return "🚨"
	case ActivityMeal:
		return "🍽️"
	case ActivityMedicine:
		return "💊"
	case ActivitySleep:
		return "🌙"
	case ActivityWake:
		return "☀️"
	case ActivityOuting:
		return "🚶"
	case ActivityReturn:
		return "🏠"
	}
	return "📢"
}

type ActivityEvent struct {
	ID         string       `json:"id"`
	Kind       ActivityKind `json:"kind"`
	OccurredAt time.Time    `json:"occurred_at"`
	Message    string       `json:"message"`
}

// IsAlertWorthy reports whether the event bypasses the detector and raises an alert directly.
func (e ActivityEvent) IsAlertWorthy() bool {
	return e.Kind == ActivityEmergency
}

func (e *ActivityEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("activity id cannot be empty")
	}
	if _, err := ParseActivityKind(string(e.Kind)); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("activity timestamp cannot be empty")
	}
	return nil
}
