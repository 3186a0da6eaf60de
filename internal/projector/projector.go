// Package projector folds the activity log into the current StatusSnapshot.
package projector

import (
	"time"

	"github.com/julianstephens/mimamori/internal/models"
	"github.com/julianstephens/mimamori/internal/utils"
)

// Projector applies activity events to a snapshot. Day boundaries for
// TodayCheckIns and Streak are evaluated in Location.
type Projector struct {
	Location *time.Location
}

func New(loc *time.Location) *Projector {
	if loc == nil {
		loc = time.Local
	}
	return &Projector{Location: loc}
}

// Apply returns the snapshot that results from applying ev to s.
// It never mutates s and never rejects an event.
func (p *Projector) Apply(s models.StatusSnapshot, ev models.ActivityEvent) models.StatusSnapshot {
	next := p.rollCount(clone(s), ev.OccurredAt)
	at := ev.OccurredAt

	switch ev.Kind {
	case models.ActivityCheckIn:
		if utils.LocalDate(at, p.Location) == next.CountDate {
			next.TodayCheckIns++
		}
		if isLatest(s.LastCheckIn, at) {
			next.Streak = p.nextStreak(s, at)
			next.LastCheckIn = &at
		}
	case models.ActivityMeal:
		if isLatest(s.LastMeal, at) {
			next.LastMeal = &at
		}
	case models.ActivityMedicine:
		if isLatest(s.LastMedicine, at) {
			next.LastMedicine = &at
		}
	case models.ActivitySleep:
		next.IsAwake = false
		next.AsleepSince = &at
	case models.ActivityWake:
		next.IsAwake = true
		next.AsleepSince = nil
	case models.ActivityOuting:
		next.IsOutside = true
		next.OutsideSince = &at
	case models.ActivityReturn:
		next.IsOutside = false
		next.OutsideSince = nil
	case models.ActivityEmergency:
		// status unaffected; the emergency alert is raised by the caller
	}

	return next
}

// Replay folds events, in insertion order, from the default snapshot.
func (p *Projector) Replay(events []models.ActivityEvent) models.StatusSnapshot {
	s := models.DefaultStatus()
	for _, ev := range events {
		s = p.Apply(s, ev)
	}
	return s
}

// Rollover brings s up to the local day containing now: the daily counter is
// reset when the day changed and the streak is broken when the last check-in
// is older than yesterday.
func (p *Projector) Rollover(s models.StatusSnapshot, now time.Time) models.StatusSnapshot {
	next := p.rollCount(clone(s), now)
	if next.LastCheckIn != nil && utils.DaysBetween(*next.LastCheckIn, now, p.Location) > 1 {
		next.Streak = 0
	}
	return next
}

func (p *Projector) rollCount(s models.StatusSnapshot, at time.Time) models.StatusSnapshot {
	day := utils.LocalDate(at, p.Location)
	if s.CountDate == day {
		return s
	}
	// Out-of-order timestamps from an earlier day never reopen a past counter.
	if s.CountDate != "" && day < s.CountDate {
		return s
	}
	s.CountDate = day
	s.TodayCheckIns = 0
	return s
}

// isLatest reports whether at is not older than the recorded cur, so late
// events never move a last-seen timestamp backwards.
func isLatest(cur *time.Time, at time.Time) bool {
	return cur == nil || !at.Before(*cur)
}

func (p *Projector) nextStreak(prev models.StatusSnapshot, at time.Time) int {
	if prev.LastCheckIn == nil {
		return 1
	}
	switch days := utils.DaysBetween(*prev.LastCheckIn, at, p.Location); {
	case days <= 0:
		if prev.Streak < 1 {
			return 1
		}
		return prev.Streak
	case days == 1:
		return prev.Streak + 1
	default:
		return 1
	}
}

func clone(s models.StatusSnapshot) models.StatusSnapshot {
	out := s
	out.LastCheckIn = copyTime(s.LastCheckIn)
	out.LastMeal = copyTime(s.LastMeal)
	out.LastMedicine = copyTime(s.LastMedicine)
	out.AsleepSince = copyTime(s.AsleepSince)
	out.OutsideSince = copyTime(s.OutsideSince)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
