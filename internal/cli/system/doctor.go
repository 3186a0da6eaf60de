package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/mimamori/internal/backup"
	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/keyring"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/storage/sqlite"
	"github.com/julianstephens/mimamori/internal/utils"
)

type schemaVersioner interface {
	SchemaVersion(ctx context.Context) (current, latest int, err error)
}

type availabilityChecker interface {
	Available() error
}

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	bg := context.Background()
	hasError := false
	dbReachable := false

	// Check 1: DB reachable
	if err := checkDBReachable(bg, ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
		dbReachable = true
	}

	// Check 2: Schema version
	if dbReachable {
		if err := checkSchemaVersion(bg, ctx); err != nil {
			fmt.Printf("❌ Schema version: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else {
			fmt.Printf("✓ Schema version: OK\n")
		}
	} else {
		fmt.Printf("⊘ Schema version: SKIPPED (database not reachable)\n")
	}

	// Check 3: Timezone setting
	if dbReachable {
		if err := checkTimezone(bg, ctx); err != nil {
			fmt.Printf("❌ Timezone setting: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else {
			fmt.Printf("✓ Timezone setting: OK\n")
		}
	} else {
		fmt.Printf("⊘ Timezone setting: SKIPPED (database not reachable)\n")
	}

	// Check 4: Status snapshot agrees with the retained log (warning only)
	if dbReachable {
		if err := checkProjection(bg, ctx); err != nil {
			fmt.Printf("⚠ Status snapshot: WARNING\n")
			fmt.Printf("   %v\n", err)
			fmt.Printf("   Run 'mimamori rebuild' to recompute it from the activity log.\n")
		} else {
			fmt.Printf("✓ Status snapshot: OK\n")
		}
	} else {
		fmt.Printf("⊘ Status snapshot: SKIPPED (database not reachable)\n")
	}

	// Check 5: Relay configuration (warning only)
	if dbReachable {
		if err := checkRelay(bg, ctx); err != nil {
			fmt.Printf("⚠ Family relay: WARNING\n")
			fmt.Printf("   %v\n", err)
		} else {
			fmt.Printf("✓ Family relay: OK\n")
		}
	} else {
		fmt.Printf("⊘ Family relay: SKIPPED (database not reachable)\n")
	}

	// Check 6: Tray notifier (warning only)
	if err := checkNotifier(ctx); err != nil {
		fmt.Printf("⚠ Tray notifier: WARNING\n")
		fmt.Printf("   %v\n", err)
	} else {
		fmt.Printf("✓ Tray notifier: OK\n")
	}

	// Check 7: OS keyring (warning only)
	if keyring.IsAvailable() {
		fmt.Printf("✓ OS keyring: OK\n")
	} else {
		fmt.Printf("⚠ OS keyring: WARNING\n")
		fmt.Printf("   OS keyring is not available; relay tokens cannot be stored\n")
	}

	// Check 8: Backups present (warning only)
	if err := checkBackupsPresent(ctx); err != nil {
		fmt.Printf("⚠ Backups present: WARNING\n")
		fmt.Printf("   %v\n", err)
	} else {
		fmt.Printf("✓ Backups present: OK\n")
	}

	// Check 9: Clock sanity
	if err := checkClock(); err != nil {
		fmt.Printf("❌ Clock: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Clock: OK\n")
	}

	fmt.Println()
	if hasError {
		fmt.Println("Some checks failed. Please review the errors above.")
		return errors.New("diagnostics failed")
	}
	fmt.Println("All critical checks passed!")
	return nil
}

func checkDBReachable(bg context.Context, ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if _, err := ctx.Store.GetStatus(bg); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkSchemaVersion(bg context.Context, ctx *cli.Context) error {
	sv, ok := ctx.Store.Provider.(schemaVersioner)
	if !ok {
		return nil
	}
	current, latest, err := sv.SchemaVersion(bg)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("database schema version (%d) is behind (%d); run 'mimamori migrate'", current, latest)
	}
	return nil
}

func checkTimezone(bg context.Context, ctx *cli.Context) error {
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("invalid timezone %q", settings.Timezone)
	}
	return nil
}

// checkProjection compares the newest retained event of each timestamped
// kind with the matching snapshot field.
func checkProjection(bg context.Context, ctx *cli.Context) error {
	status, err := ctx.Store.GetStatus(bg)
	if err != nil {
		return err
	}
	events, err := ctx.Store.AllActivities(bg)
	if err != nil {
		return err
	}

	latest := map[models.ActivityKind]time.Time{}
	for _, ev := range events {
		if cur, ok := latest[ev.Kind]; !ok || ev.OccurredAt.After(cur) {
			latest[ev.Kind] = ev.OccurredAt
		}
	}

	fields := []struct {
		kind models.ActivityKind
		got  *time.Time
	}{
		{models.ActivityCheckIn, status.LastCheckIn},
		{models.ActivityMeal, status.LastMeal},
		{models.ActivityMedicine, status.LastMedicine},
	}
	for _, f := range fields {
		want, ok := latest[f.kind]
		if !ok {
			continue
		}
		if f.got == nil || !f.got.Equal(want) {
			return fmt.Errorf("last %s in snapshot does not match the activity log", f.kind)
		}
	}
	return nil
}

func checkRelay(bg context.Context, ctx *cli.Context) error {
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}
	if !settings.RelayEnabled {
		return nil
	}

	if _, err := ctx.RelayToken(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("relay is enabled but no delivery token is stored; run 'mimamori relay token set'")
		}
		return fmt.Errorf("failed to read relay token: %w", err)
	}

	recent, err := ctx.Store.RecentRelays(bg, 20)
	if err != nil {
		return fmt.Errorf("failed to read relay queue: %w", err)
	}
	failed, sending := 0, 0
	for _, r := range recent {
		switch r.Status {
		case models.RelayError:
			failed++
		case models.RelaySending:
			sending++
		}
	}
	if sending > 0 {
		return fmt.Errorf("%d relay messages are mid-delivery; if no watcher is running they were interrupted, see 'mimamori relay list'", sending)
	}
	if failed > 0 {
		return fmt.Errorf("%d of the last %d relay messages failed; see 'mimamori relay list'", failed, len(recent))
	}
	return nil
}

func checkNotifier(ctx *cli.Context) error {
	ac, ok := ctx.Notifier.(availabilityChecker)
	if !ok {
		return errors.New("local notifications are not configured")
	}
	return ac.Available()
}

func checkBackupsPresent(ctx *cli.Context) error {
	if _, ok := ctx.Store.Provider.(*sqlite.Store); !ok {
		return nil
	}
	backups, err := backup.NewManager(ctx.Store.GetConfigPath()).List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return errors.New("no backups found; run 'mimamori backup create'")
	}
	return nil
}

func checkClock() error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}
