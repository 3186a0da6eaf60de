package family

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/storage"
)

type AlertListCmd struct {
	Limit  int  `help:"Maximum number of alerts to show." default:"20"`
	Unread bool `help:"Only show unread alerts."`
}

func (c *AlertListCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}
	loc, err := ctx.Location(bg)
	if err != nil {
		return err
	}

	alerts, err := svc.Alerts(bg, c.Limit)
	if err != nil {
		return err
	}

	shown := 0
	for _, a := range alerts {
		if c.Unread && a.IsRead {
			continue
		}
		if shown == 0 {
			fmt.Printf("%-36s %-16s %-4s %-50s\n", "ID", "Time", "", "Message")
			fmt.Println(strings.Repeat("-", 110))
		}
		mark := a.Kind.Emoji()
		if !a.IsRead {
			mark += "•"
		}
		fmt.Printf("%-36s %-16s %-4s %-50s\n", a.ID, cli.FormatTime(&a.CreatedAt, loc), mark, cli.Truncate(a.Message, 50))
		shown++
	}

	if shown == 0 {
		fmt.Println("No alerts.")
	}
	return nil
}

type AlertReadCmd struct {
	ID  string `arg:"" optional:"" help:"Alert ID to mark as read."`
	All bool   `help:"Mark every alert as read."`
}

func (c *AlertReadCmd) Run(ctx *cli.Context) error {
	if c.ID == "" && !c.All {
		return errors.New("specify an alert ID or --all")
	}

	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}

	if !c.All {
		if err := svc.MarkRead(bg, c.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("alert %s not found", c.ID)
			}
			return err
		}
		fmt.Println("✓ Alert marked as read.")
		return nil
	}

	alerts, err := svc.Alerts(bg, 0)
	if err != nil {
		return err
	}
	marked := 0
	for _, a := range alerts {
		if a.IsRead {
			continue
		}
		if err := svc.MarkRead(bg, a.ID); err != nil {
			return err
		}
		marked++
	}
	fmt.Printf("✓ Marked %d alert(s) as read.\n", marked)
	return nil
}

type AlertClearCmd struct{}

func (c *AlertClearCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}
	if err := svc.ClearAlerts(bg); err != nil {
		return err
	}
	fmt.Println("✓ All alerts cleared.")
	return nil
}
