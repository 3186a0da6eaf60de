// Package detector evaluates a StatusSnapshot against staleness thresholds.
package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/julianstephens/mimamori/internal/models"
)

// Threshold is the warning/danger pair for one category, in hours.
type Threshold struct {
	Category models.Category
	Warning  float64
	Danger   float64
}

// Thresholds is evaluated in order; Detect emits findings in the same order.
type Thresholds []Threshold

// DefaultThresholds returns the fixed table used by the scheduler.
func DefaultThresholds() Thresholds {
	return Thresholds{
		{Category: models.CategoryCheckIn, Warning: 6, Danger: 12},
		{Category: models.CategoryMeal, Warning: 8, Danger: 16},
		{Category: models.CategoryMedicine, Warning: 26, Danger: 48},
		{Category: models.CategoryOuting, Warning: 4, Danger: 8},
		{Category: models.CategorySleep, Warning: 12, Danger: 18},
	}
}

type Detector struct {
	thresholds Thresholds
}

func New(thresholds Thresholds) *Detector {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds()
	}
	return &Detector{thresholds: thresholds}
}

// Detect returns one finding per category whose elapsed time reaches the warning level.
func (d *Detector) Detect(s models.StatusSnapshot, now time.Time) []models.Finding {
	var findings []models.Finding
	for _, th := range d.thresholds {
		since, applies := reference(s, th.Category)
		if !applies {
			continue
		}
		if f, ok := evaluate(th, since, now); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

// Detect runs the default table.
func Detect(s models.StatusSnapshot, now time.Time) []models.Finding {
	return New(nil).Detect(s, now)
}

// reference returns the timestamp a category is measured from, and whether the
// category applies to the current state at all.
func reference(s models.StatusSnapshot, c models.Category) (*time.Time, bool) {
	switch c {
	case models.CategoryCheckIn:
		return s.LastCheckIn, true
	case models.CategoryMeal:
		return s.LastMeal, true
	case models.CategoryMedicine:
		return s.LastMedicine, true
	case models.CategoryOuting:
		return s.OutsideSince, s.IsOutside
	case models.CategorySleep:
		return s.AsleepSince, !s.IsAwake
	}
	return nil, false
}

func evaluate(th Threshold, since *time.Time, now time.Time) (models.Finding, bool) {
	elapsed := math.Inf(1)
	hours := -1
	if since != nil {
		elapsed = now.Sub(*since).Hours()
		hours = int(math.Floor(elapsed))
	}

	var sev models.Severity
	switch {
	case elapsed >= th.Danger:
		sev = models.SeverityDanger
	case elapsed >= th.Warning:
		sev = models.SeverityWarning
	default:
		return models.Finding{}, false
	}

	f := models.Finding{
		Severity:     sev,
		Category:     th.Category,
		Message:      message(th.Category, hours),
		ElapsedHours: hours,
	}
	if sev == models.SeverityDanger {
		f.Recommendation = recommendation(th.Category)
	}
	return f, true
}

func message(c models.Category, hours int) string {
	if hours < 0 {
		switch c {
		case models.CategoryCheckIn:
			return "A check-in has never been recorded"
		case models.CategoryMeal:
			return "A meal has never been recorded"
		case models.CategoryMedicine:
			return "Medicine has never been recorded"
		case models.CategoryOuting:
			return "Outing start has never been recorded"
		case models.CategorySleep:
			return "Bedtime has never been recorded"
		}
		return fmt.Sprintf("%s has never been recorded", c)
	}
	switch c {
	case models.CategoryCheckIn:
		return fmt.Sprintf("No check-in for %d hours", hours)
	case models.CategoryMeal:
		return fmt.Sprintf("No meal recorded for %d hours", hours)
	case models.CategoryMedicine:
		return fmt.Sprintf("No medicine recorded for %d hours", hours)
	case models.CategoryOuting:
		return fmt.Sprintf("Out of the house for %d hours", hours)
	case models.CategorySleep:
		return fmt.Sprintf("Asleep for %d hours", hours)
	}
	return fmt.Sprintf("%s: %d hours elapsed", c, hours)
}

func recommendation(c models.Category) string {
	switch c {
	case models.CategoryCheckIn:
		return "Please call them directly to confirm they are safe"
	case models.CategoryMeal:
		return "Please contact them and make sure they are eating"
	case models.CategoryMedicine:
		return "Please contact them to confirm their medication"
	case models.CategoryOuting:
		return "Please contact them to confirm where they are"
	case models.CategorySleep:
		return "Please contact them to make sure they are all right"
	}
	return "Please contact them directly"
}
