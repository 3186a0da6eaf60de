package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/julianstephens/mimamori/internal/constants"
	"github.com/julianstephens/mimamori/internal/dispatcher"
	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/logger"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage"
	"github.com/julianstephens/mimamori/internal/storage/memory"
	"github.com/julianstephens/mimamori/internal/storage/postgres"
	"github.com/julianstephens/mimamori/internal/storage/sqlite"
	"github.com/julianstephens/mimamori/internal/utils"
	"github.com/julianstephens/mimamori/internal/watch"
)

// ConnectionEnvVar overrides --config with a PostgreSQL connection string.
const ConnectionEnvVar = "MIMAMORI_DB_CONNECTION"

// Context is shared by every command.
type Context struct {
	Store         *storage.Hub
	Notifier      dispatcher.Notifier
	TokenSource   dispatcher.TokenSource
	RelayEndpoint string
	Addr          string
	Now           func() time.Time
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Context) token() dispatcher.TokenSource {
	if c.TokenSource != nil {
		return c.TokenSource
	}
	return keyring.GetRelayToken
}

// RelayToken reads the delivery token from the configured source.
func (c *Context) RelayToken() (string, error) {
	return c.token()()
}

// Settings loads the persisted settings, falling back to defaults when
// the settings table is empty.
func (c *Context) Settings(ctx context.Context) (models.Settings, error) {
	settings, err := c.Store.GetSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// Location resolves the configured timezone.
func (c *Context) Location(ctx context.Context) (*time.Location, error) {
	settings, err := c.Settings(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		logger.Warn("Invalid timezone in settings, using local time", "timezone", settings.Timezone, "error", err)
		return time.Local, nil
	}
	return loc, nil
}

func (c *Context) Dispatcher() *dispatcher.Dispatcher {
	return dispatcher.New(c.Store, c.Notifier,
		dispatcher.WithClock(c.now),
		dispatcher.WithTokenSource(c.token()),
	)
}

// Service builds the watch service over the current store.
func (c *Context) Service(ctx context.Context) (*watch.Service, error) {
	loc, err := c.Location(ctx)
	if err != nil {
		return nil, err
	}
	return watch.New(c.Store, c.Dispatcher(), loc, watch.WithClock(c.now)), nil
}

// ResolveStore picks the backend for a --config value. A PostgreSQL URL or
// DSN selects the postgres store; when config is left at its default, the
// environment and then the OS keyring may supply a connection string.
// Embedded passwords are accepted only from those two sources.
func ResolveStore(config string, ephemeral bool) (storage.Provider, error) {
	if ephemeral {
		return memory.New(), nil
	}

	secret := false
	if config == constants.DefaultConfigPath {
		if connStr := os.Getenv(ConnectionEnvVar); connStr != "" {
			config, secret = connStr, true
		} else if connStr, err := keyring.GetConnectionString(); err == nil {
			logger.Debug("Using connection string from OS keyring")
			config, secret = connStr, true
		}
	}

	if postgres.IsConnString(config) {
		err := postgres.ValidateConnString(config)
		switch {
		case err == nil:
		case errors.Is(err, postgres.ErrEmbeddedCredentials) && secret:
		case errors.Is(err, postgres.ErrEmbeddedCredentials):
			return nil, fmt.Errorf("%w: use the OS keyring ('mimamori keyring set'), %s, or .pgpass", err, ConnectionEnvVar)
		default:
			return nil, err
		}
		return postgres.New(config), nil
	}

	path, err := expandHome(config)
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(path), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return home + strings.TrimPrefix(path, "~"), nil
}

// Truncate shortens s to n runes for table output.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// FormatTime renders t in loc, or "-" for nil.
func FormatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format(constants.DateFormat + " " + constants.TimeFormat)
}
