package settings

import (
	"context"
	"fmt"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/utils"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	Timezone             *string `help:"IANA timezone name, or Local."`
	NotificationsEnabled *bool   `help:"Enable or disable local notifications."`
	RelayEnabled         *bool   `help:"Enable or disable forwarding to the family relay."`
	NotifyKinds          *string `help:"Comma-separated activity kinds forwarded to the relay."`
	DetectIntervalSec    *int    `help:"Seconds between anomaly checks."`
	InitialDelaySec      *int    `help:"Seconds before the first anomaly check."`
	CooldownSec          *int    `help:"Minimum seconds between identical alerts."`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	settings, err := ctx.Settings(bg)
	if err != nil {
		return err
	}

	if c.List {
		printSettings(settings)
		return nil
	}

	updated := false
	if c.Timezone != nil {
		if !utils.ValidateTimezone(*c.Timezone) {
			return fmt.Errorf("invalid timezone: %s", *c.Timezone)
		}
		settings.Timezone = *c.Timezone
		updated = true
	}
	if c.NotificationsEnabled != nil {
		settings.NotificationsEnabled = *c.NotificationsEnabled
		updated = true
	}
	if c.RelayEnabled != nil {
		settings.RelayEnabled = *c.RelayEnabled
		updated = true
	}
	if c.NotifyKinds != nil {
		kinds, err := models.ParseActivityKinds(*c.NotifyKinds)
		if err != nil {
			return err
		}
		settings.NotifyKinds = kinds
		updated = true
	}
	for _, f := range []struct {
		name string
		val  *int
		dst  *int
	}{
		{"detect-interval-sec", c.DetectIntervalSec, &settings.DetectIntervalSec},
		{"initial-delay-sec", c.InitialDelaySec, &settings.InitialDelaySec},
		{"cooldown-sec", c.CooldownSec, &settings.CooldownSec},
	} {
		if f.val == nil {
			continue
		}
		if *f.val <= 0 {
			return fmt.Errorf("%s must be positive", f.name)
		}
		*f.dst = *f.val
		updated = true
	}

	if !updated {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
		return nil
	}

	if err := ctx.Store.SaveSettings(bg, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	fmt.Println("Settings updated successfully.")
	return nil
}

func printSettings(s models.Settings) {
	fmt.Println("Current Settings:")
	fmt.Printf("  Timezone:              %s\n", s.Timezone)
	fmt.Println("\nNotification Settings:")
	fmt.Printf("  Notifications Enabled: %v\n", s.NotificationsEnabled)
	fmt.Printf("  Relay Enabled:         %v\n", s.RelayEnabled)
	fmt.Printf("  Relayed Activities:    %s\n", models.FormatActivityKinds(s.NotifyKinds))
	fmt.Println("\nDetection Settings:")
	fmt.Printf("  Check Interval:        %d sec\n", s.DetectIntervalSec)
	fmt.Printf("  Initial Delay:         %d sec\n", s.InitialDelaySec)
	fmt.Printf("  Alert Cooldown:        %d sec\n", s.CooldownSec)
}
