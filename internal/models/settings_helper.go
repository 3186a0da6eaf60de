package models

import (
	"fmt"
	"strings"

	"github.com/julianstephens/mimamori/internal/constants"
)

// MapToSettings converts a map of key-value pairs to a Settings struct.
func MapToSettings(data map[string]string) (Settings, error) {
	settings := Settings{}

	for key, value := range data {
		switch key {
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingNotificationsEnabled:
			settings.NotificationsEnabled = value == "true"
		case constants.SettingRelayEnabled:
			settings.RelayEnabled = value == "true"
		case constants.SettingNotifyKinds:
			kinds, err := ParseActivityKinds(value)
			if err != nil {
				return Settings{}, fmt.Errorf("parsing notify_kinds: %w", err)
			}
			settings.NotifyKinds = kinds
		case constants.SettingDetectIntervalSec:
			if _, err := fmt.Sscanf(value, "%d", &settings.DetectIntervalSec); err != nil {
				return Settings{}, fmt.Errorf("parsing detect_interval_sec: %w", err)
			}
		case constants.SettingInitialDelaySec:
			if _, err := fmt.Sscanf(value, "%d", &settings.InitialDelaySec); err != nil {
				return Settings{}, fmt.Errorf("parsing initial_delay_sec: %w", err)
			}
		case constants.SettingCooldownSec:
			if _, err := fmt.Sscanf(value, "%d", &settings.CooldownSec); err != nil {
				return Settings{}, fmt.Errorf("parsing cooldown_sec: %w", err)
			}
		}
	}
	return settings, nil
}

// SettingsToMap converts a Settings struct to a map of key-value pairs.
func SettingsToMap(settings Settings) map[string]string {
	return map[string]string{
		constants.SettingTimezone:             settings.Timezone,
		constants.SettingNotificationsEnabled: fmt.Sprintf("%v", settings.NotificationsEnabled),
		constants.SettingRelayEnabled:         fmt.Sprintf("%v", settings.RelayEnabled),
		constants.SettingNotifyKinds:          FormatActivityKinds(settings.NotifyKinds),
		constants.SettingDetectIntervalSec:    fmt.Sprintf("%d", settings.DetectIntervalSec),
		constants.SettingInitialDelaySec:      fmt.Sprintf("%d", settings.InitialDelaySec),
		constants.SettingCooldownSec:          fmt.Sprintf("%d", settings.CooldownSec),
	}
}

// DefaultSettings returns the settings written by a fresh init.
func DefaultSettings() Settings {
	s := Settings{
		NotificationsEnabled: constants.DefaultNotificationsEnabled,
		RelayEnabled:         constants.DefaultRelayEnabled,
	}
	ApplyDefaultSettings(&s)
	return s
}

// ApplyDefaultSettings applies default values to missing settings.
func ApplyDefaultSettings(settings *Settings) {
	if settings.Timezone == "" {
		settings.Timezone = constants.DefaultTimezone
	}
	if settings.NotifyKinds == nil {
		settings.NotifyKinds, _ = ParseActivityKinds(constants.DefaultNotifyKinds)
	}
	if settings.DetectIntervalSec == 0 {
		settings.DetectIntervalSec = constants.DefaultDetectIntervalSec
	}
	if settings.InitialDelaySec == 0 {
		settings.InitialDelaySec = constants.DefaultInitialDelaySec
	}
	if settings.CooldownSec == 0 {
		settings.CooldownSec = constants.DefaultCooldownSec
	}
}

// ParseActivityKinds parses a comma-separated list of activity kinds.
func ParseActivityKinds(s string) ([]ActivityKind, error) {
	kinds := []ActivityKind{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := ParseActivityKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// FormatActivityKinds joins kinds into the comma-separated form stored in settings.
func FormatActivityKinds(kinds []ActivityKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
