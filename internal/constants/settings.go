package constants

const (
	// Settings keys
	SettingTimezone             = "timezone"
	SettingNotificationsEnabled = "notifications_enabled"
	SettingRelayEnabled         = "relay_enabled"
	SettingNotifyKinds          = "notify_kinds"
	SettingDetectIntervalSec    = "detect_interval_sec"
	SettingInitialDelaySec      = "initial_delay_sec"
	SettingCooldownSec          = "cooldown_sec"

	// Default Settings Values
	DefaultTimezone             = "Local" // Use system local timezone by default
	DefaultNotificationsEnabled = true
	DefaultRelayEnabled         = false
	DefaultNotifyKinds          = "check_in,emergency,meal,medicine"
	DefaultDetectIntervalSec    = 300
	DefaultInitialDelaySec      = 10
	DefaultCooldownSec          = 3600
)
