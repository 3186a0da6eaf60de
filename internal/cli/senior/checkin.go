package senior

import (
	"context"
	"fmt"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/models"
)

type CheckinCmd struct {
	Message string `arg:"" optional:"" help:"Optional note; defaults to a timestamped check-in message."`
}

func (c *CheckinCmd) Run(ctx *cli.Context) error {
	return record(ctx, models.ActivityCheckIn, c.Message)
}

type ActivityCmd struct {
	Kind    string `arg:"" enum:"check_in,emergency,meal,medicine,sleep,wake,outing,return" help:"Activity kind (${enum})."`
	Message string `arg:"" optional:"" help:"Optional note."`
}

func (c *ActivityCmd) Run(ctx *cli.Context) error {
	kind, err := models.ParseActivityKind(c.Kind)
	if err != nil {
		return err
	}
	return record(ctx, kind, c.Message)
}

// EmergencyCmd raises an urgent alert to the family immediately.
type EmergencyCmd struct {
	Message string `arg:"" optional:"" help:"What happened."`
}

func (c *EmergencyCmd) Run(ctx *cli.Context) error {
	return record(ctx, models.ActivityEmergency, c.Message)
}

func record(ctx *cli.Context, kind models.ActivityKind, message string) error {
	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}

	ev, err := svc.RecordActivity(bg, kind, message)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n", kind.Emoji(), ev.Message)
	if kind == models.ActivityEmergency {
		fmt.Println("🚨 Your family has been alerted.")
	}
	return nil
}
