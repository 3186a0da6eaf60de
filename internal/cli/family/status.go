package family

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/julianstephens/mimamori/internal/cli"
	"github.com/julianstephens/mimamori/internal/models"
)

type StatusCmd struct {
	JSON bool `help:"Print the snapshot and findings as JSON."`
}

type statusOutput struct {
	Status    models.StatusSnapshot `json:"status"`
	Anomalies []models.Finding      `json:"anomalies"`
	Unread    int                   `json:"unread_alerts"`
}

func (c *StatusCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}
	loc, err := ctx.Location(bg)
	if err != nil {
		return err
	}

	st, err := svc.Status(bg)
	if err != nil {
		return err
	}
	findings, err := svc.Anomalies(bg)
	if err != nil {
		return err
	}
	unread, err := svc.UnreadCount(bg)
	if err != nil {
		return err
	}

	if c.JSON {
		if findings == nil {
			findings = []models.Finding{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statusOutput{Status: st, Anomalies: findings, Unread: unread})
	}

	awake := "asleep"
	if st.IsAwake {
		awake = "awake"
	}
	where := "at home"
	if st.IsOutside {
		where = "outside"
	}

	fmt.Println("Current Status:")
	fmt.Printf("  Last Check-in:     %s\n", cli.FormatTime(st.LastCheckIn, loc))
	fmt.Printf("  Last Meal:         %s\n", cli.FormatTime(st.LastMeal, loc))
	fmt.Printf("  Last Medicine:     %s\n", cli.FormatTime(st.LastMedicine, loc))
	fmt.Printf("  State:             %s, %s\n", awake, where)
	fmt.Printf("  Check-ins Today:   %d\n", st.TodayCheckIns)
	fmt.Printf("  Streak:            %d day(s)\n", st.Streak)
	fmt.Printf("  Unread Alerts:     %d\n", unread)

	if len(findings) == 0 {
		fmt.Println("\n✓ Everything looks normal.")
		return nil
	}

	fmt.Println("\nAnomalies:")
	for _, f := range findings {
		fmt.Printf("  %s [%s] %s\n", f.AlertKind().Emoji(), f.Severity, f.Message)
		if f.Recommendation != "" {
			fmt.Printf("     → %s\n", f.Recommendation)
		}
	}
	return nil
}
