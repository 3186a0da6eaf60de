// Package report summarizes the retained activity log for the family.
package report

import (
	"math"
	"time"

	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/utils"
)

const (
	reportDays = 7
	// expectedPerDay is the activity count that scores 100: three check-ins,
	// three meals and one dose of medicine.
	expectedPerDay = 7
)

type DayStats struct {
	Date      string `json:"date"`
	CheckIns  int    `json:"check_ins"`
	Meals     int    `json:"meals"`
	Medicines int    `json:"medicines"`
}

type Pattern struct {
	DailyCheckIns      float64 `json:"daily_check_ins"`
	AverageCheckInTime string  `json:"average_check_in_time,omitempty"`
	// MostActiveHour is -1 when there was no activity in the window.
	MostActiveHour int `json:"most_active_hour"`
	ActivityScore  int `json:"activity_score"`
}

type Weekly struct {
	Days      []DayStats `json:"days"` // oldest first, ending today
	CheckIns  int        `json:"check_ins"`
	Meals     int        `json:"meals"`
	Medicines int        `json:"medicines"`
	Pattern   Pattern    `json:"pattern"`
}

// Build computes the seven-day report ending on the local day containing now.
func Build(events []models.ActivityEvent, now time.Time, loc *time.Location) Weekly {
	if loc == nil {
		loc = time.Local
	}
	today := utils.StartOfDay(now, loc)

	w := Weekly{Days: make([]DayStats, reportDays)}
	index := make(map[string]int, reportDays)
	for i := 0; i < reportDays; i++ {
		d := today.AddDate(0, 0, i-(reportDays-1))
		date := utils.LocalDate(d, loc)
		w.Days[i] = DayStats{Date: date}
		index[date] = i
	}

	for _, ev := range events {
		i, ok := index[utils.LocalDate(ev.OccurredAt, loc)]
		if !ok {
			continue
		}
		switch ev.Kind {
		case models.ActivityCheckIn:
			w.Days[i].CheckIns++
			w.CheckIns++
		case models.ActivityMeal:
			w.Days[i].Meals++
			w.Meals++
		case models.ActivityMedicine:
			w.Days[i].Medicines++
			w.Medicines++
		}
	}

	w.Pattern = Analyze(events, now, loc)
	return w
}

// Analyze looks at the trailing seven days (by elapsed time, not calendar days).
func Analyze(events []models.ActivityEvent, now time.Time, loc *time.Location) Pattern {
	if loc == nil {
		loc = time.Local
	}
	p := Pattern{MostActiveHour: -1}

	since := now.Add(-reportDays * 24 * time.Hour)
	var recent []models.ActivityEvent
	for _, ev := range events {
		if !ev.OccurredAt.Before(since) {
			recent = append(recent, ev)
		}
	}
	if len(recent) == 0 {
		return p
	}

	checkIns := 0
	minutes := 0
	var hours [24]int
	for _, ev := range recent {
		local := ev.OccurredAt.In(loc)
		hours[local.Hour()]++
		if ev.Kind == models.ActivityCheckIn {
			checkIns++
			minutes += local.Hour()*60 + local.Minute()
		}
	}

	p.DailyCheckIns = math.Round(float64(checkIns)/reportDays*10) / 10
	if checkIns > 0 {
		avg := minutes / checkIns
		p.AverageCheckInTime = clock(avg/60, avg%60)
	}

	best := 0
	for h, n := range hours {
		if n > best {
			best = n
			p.MostActiveHour = h
		}
	}

	perDay := float64(len(recent)) / reportDays
	p.ActivityScore = int(math.Min(100, math.Round(perDay/expectedPerDay*100)))
	return p
}

func clock(h, m int) string {
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format("15:04")
}
