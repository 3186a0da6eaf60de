package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/cli/family"
	"github.com/julianstephens/mimamori/internal/cli/senior"
	"github.com/julianstephens/mimamori/internal/cli/settings"
	"github.com/julianstephens/mimamori/internal/cli/system"
	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/errors"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/notifier"
	"github.com/julianstephens/mimamori/internal/storage"
	"github.com/julianstephens/mimamori/internal/storage/sqlite"
)

var CLI struct {
	Version       kong.VersionFlag
	Config        string `help:"Config file path or PostgreSQL connection string. Credentials must NOT be embedded in the connection string; use the OS keyring, MIMAMORI_DB_CONNECTION, or .pgpass." type:"string" default:"${default_config}" env:"MIMAMORI_CONFIG"`
	Debug         bool   `help:"Log debug output to stderr." env:"MIMAMORI_DEBUG"`
	Addr          string `help:"Listen address for the family dashboard API." default:"${default_addr}" env:"MIMAMORI_ADDR"`
	RelayEndpoint string `help:"Push API endpoint for the family relay." default:"${default_relay}" env:"MIMAMORI_RELAY_ENDPOINT"`

	Init    system.InitCmd    `cmd:"" help:"Initialize mimamori storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Rebuild system.RebuildCmd `cmd:"" help:"Recompute the status snapshot from the activity log."`
	Backup  struct {
		Create system.BackupCreateCmd `cmd:"" help:"Create a manual backup." default:"1"`
		List   system.BackupListCmd   `cmd:"" help:"List available backups."`
	} `cmd:"" help:"Manage database backups."`

	Checkin   senior.CheckinCmd   `cmd:"" help:"Record a check-in."`
	Activity  senior.ActivityCmd  `cmd:"" help:"Record an activity."`
	Emergency senior.EmergencyCmd `cmd:"" help:"Alert the family immediately."`

	Status family.StatusCmd `cmd:"" help:"Show current status and anomalies." default:"1"`
	Log    family.LogCmd    `cmd:"" help:"Show recent activities."`
	Report family.ReportCmd `cmd:"" help:"Show the weekly report."`
	Alerts struct {
		List  family.AlertListCmd  `cmd:"" help:"List alerts." default:"1"`
		Read  family.AlertReadCmd  `cmd:"" help:"Mark alerts as read."`
		Clear family.AlertClearCmd `cmd:"" help:"Delete all alerts."`
	} `cmd:"" help:"Manage family alerts."`

	Settings settings.SettingsCmd `cmd:"" help:"Manage application settings."`
	Keyring  struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a PostgreSQL connection string."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
	} `cmd:"" help:"Manage database credentials in the OS keyring."`
	Relay struct {
		Token struct {
			Set    system.RelayTokenSetCmd    `cmd:"" help:"Store the relay delivery token."`
			Get    system.RelayTokenGetCmd    `cmd:"" help:"Show the stored relay token."`
			Delete system.RelayTokenDeleteCmd `cmd:"" help:"Remove the relay token."`
		} `cmd:"" help:"Manage the relay delivery token."`
		List  system.RelayListCmd  `cmd:"" help:"List recent relay messages."`
		Flush system.RelayFlushCmd `cmd:"" help:"Deliver pending relay messages now."`
	} `cmd:"" help:"Manage the family relay."`
	Sweep  system.SweepCmd  `cmd:"" help:"Run the daily missed check-in sweep."`
	Watch  system.WatchCmd  `cmd:"" help:"Run the scheduler, relay worker and dashboard API."`
	Notify system.NotifyCmd `cmd:"" hidden:"" help:"Send a notification (used internally)."`
}

// storeless lists commands that run without loading the database.
var storeless = []string{"init", "keyring", "notify", "relay token"}

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Watch-over companion for a senior living alone"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":        constants.Version,
			"default_config": constants.DefaultConfigPath,
			"default_addr":   constants.DefaultListenAddr,
			"default_relay":  constants.DefaultRelayEndpoint,
		},
	)

	provider, err := cli.ResolveStore(CLI.Config, CLI.Watch.Ephemeral)
	if err != nil {
		errors.Fatal(err)
	}

	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: logDir(provider),
		Daemon:    commandPath(ctx) == "watch",
	}); err != nil {
		errors.Fatal(err)
	}

	store := storage.NewHub(provider)
	appCtx := &cli.Context{
		Store:         store,
		Notifier:      notifier.New(),
		RelayEndpoint: CLI.RelayEndpoint,
		Addr:          CLI.Addr,
	}

	if !skipLoad(commandPath(ctx)) {
		if err := store.Load(); err != nil {
			errors.Fatal(err)
		}
	}

	err = ctx.Run(appCtx)
	if cerr := store.Close(); cerr != nil {
		logger.Warn("Failed to close store", "error", cerr)
	}
	errors.Fatal(err)
}

// commandPath returns the selected command without its arguments, such as
// "alerts read" or "relay token set".
func commandPath(ctx *kong.Context) string {
	var parts []string
	for _, f := range strings.Fields(ctx.Command()) {
		if strings.HasPrefix(f, "<") {
			break
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

func skipLoad(path string) bool {
	for _, prefix := range storeless {
		if path == prefix || strings.HasPrefix(path, prefix+" ") {
			return true
		}
	}
	return false
}

func logDir(p storage.Provider) string {
	if s, ok := p.(*sqlite.Store); ok {
		return filepath.Dir(s.GetConfigPath())
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, constants.AppName)
	}
	return os.TempDir()
}
