package constants

import "time"

const (
	AppName            = "mimamori"
	DefaultKeyringUser = "database-connection"
	RelayKeyringUser   = "relay-delivery-token"
	DefaultConfigPath  = "~/.config/mimamori/mimamori.db"
	Version            = "v0.3.0"

	// Retention caps for the activity log, alert list and finished relay requests
	MaxActivities = 100
	MaxAlerts     = 50
	MaxRelays     = 100

	// Scheduler defaults
	DefaultDetectInterval = 5 * time.Minute
	DefaultInitialDelay   = 10 * time.Second
	DefaultAlertCooldown  = time.Hour

	// Daily sweep threshold, independent of the in-app detector table
	SweepCheckInThreshold = 24 * time.Hour

	// Notify constants
	NotifierLockfileName   = "mimamori-notifier.lock"
	NotificationDurationMs = 8000
	NotificationTitle      = "mimamori - alert"
	TrayAppIdentifier      = "com.julianstephens.mimamori"
	TrayAppExecutable      = "mimamori-tray"

	// Relay constants
	DefaultRelayEndpoint     = "https://notify-api.line.me/api/notify"
	DefaultRelayPollInterval = 15 * time.Second
	RelayBatchSize           = 20
	RelayRequestTimeout      = 10 * time.Second
	UrgentBanner             = "🚨 URGENT 🚨\n"

	// HTTP API
	DefaultListenAddr = "127.0.0.1:8787"
)
