package system

import (
	"context"
	"fmt"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/constants"
)

// RebuildCmd recomputes the status snapshot from the retained activity log.
type RebuildCmd struct{}

func (c *RebuildCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}
	truncated, err := svc.LogTruncated(bg)
	if err != nil {
		return err
	}
	if truncated {
		fmt.Printf("⚠ Only the last %d activities are kept; older meal and medicine times and streak history cannot be recovered.\n", constants.MaxActivities)
	}
	st, err := svc.Rebuild(bg)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Status rebuilt (%d check-in(s) today, streak %d)\n", st.TodayCheckIns, st.Streak)
	return nil
}
