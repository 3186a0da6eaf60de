package family

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/mimamori/internal/cli"
)

type ReportCmd struct {
	JSON bool `help:"Print the report as JSON."`
}

func (c *ReportCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	svc, err := ctx.Service(bg)
	if err != nil {
		return err
	}

	w, err := svc.WeeklyReport(bg)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(w)
	}

	fmt.Println("Weekly Report:")
	fmt.Printf("%-12s %9s %6s %9s\n", "Date", "Check-ins", "Meals", "Medicine")
	fmt.Println(strings.Repeat("-", 40))
	for _, d := range w.Days {
		fmt.Printf("%-12s %9d %6d %9d\n", d.Date, d.CheckIns, d.Meals, d.Medicines)
	}
	fmt.Println(strings.Repeat("-", 40))
	fmt.Printf("%-12s %9d %6d %9d\n", "Total", w.CheckIns, w.Meals, w.Medicines)

	p := w.Pattern
	fmt.Println("\nPattern:")
	fmt.Printf("  Daily Check-ins:   %.1f\n", p.DailyCheckIns)
	if p.AverageCheckInTime != "" {
		fmt.Printf("  Avg Check-in Time: %s\n", p.AverageCheckInTime)
	}
	if p.MostActiveHour >= 0 {
		fmt.Printf("  Most Active Hour:  %02d:00\n", p.MostActiveHour)
	}
	fmt.Printf("  Activity Score:    %d/100\n", p.ActivityScore)
	return nil
}
