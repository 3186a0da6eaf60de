package models

// Settings represents application-wide settings
type Settings struct {
	Timezone             string         `json:"timezone"`              // IANA timezone name, or "Local"
	NotificationsEnabled bool           `json:"notifications_enabled"` // local notification permission
	RelayEnabled         bool           `json:"relay_enabled"`         // forward alerts to the external relay
	NotifyKinds          []ActivityKind `json:"notify_kinds"`          // activity kinds forwarded to the relay
	DetectIntervalSec    int            `json:"detect_interval_sec"`   // detector period
	InitialDelaySec      int            `json:"initial_delay_sec"`     // delay before the first detector run
	CooldownSec          int            `json:"cooldown_sec"`          // minimum gap between identical alerts
}

// ShouldRelay reports whether an activity of kind k is forwarded to the relay.
// Emergencies are always forwarded.
func (s Settings) ShouldRelay(k ActivityKind) bool {
	if k == ActivityEmergency {
		return true
	}
	for _, nk := range s.NotifyKinds {
		if nk == k {
			return true
		}
	}
	return false
}
