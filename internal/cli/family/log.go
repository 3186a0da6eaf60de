package family

import (
	"context"
	"fmt"

	"github.com/julianstephens/mimamori/internal/cli"
)

// LogCmd prints the most recent activities, newest first.
type LogCmd struct {
	Limit int `help:"Maximum number of activities to show." default:"20"`
}

func (c *LogCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}
	loc, err := ctx.Location(bg)
	if err != nil {
		return err
	}

	events, err := svc.Activities(bg, c.Limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No activity recorded yet.")
		return nil
	}

	for _, ev := range events {
		fmt.Printf("%s  %s %s\n", cli.FormatTime(&ev.OccurredAt, loc), ev.Kind.Emoji(), ev.Message)
	}
	return nil
}
