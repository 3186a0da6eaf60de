package models

import "time"

// StatusSnapshot is the derived wellbeing state, a fold over the activity log.
type StatusSnapshot struct {
	LastCheckIn   *time.Time `json:"last_check_in,omitempty"`
	LastMeal      *time.Time `json:"last_meal,omitempty"`
	LastMedicine  *time.Time `json:"last_medicine,omitempty"`
	IsAwake       bool       `json:"is_awake"`
	IsOutside     bool       `json:"is_outside"`
	AsleepSince   *time.Time `json:"asleep_since,omitempty"`
	OutsideSince  *time.Time `json:"outside_since,omitempty"`
	TodayCheckIns int        `json:"today_check_ins"`
	CountDate     string     `json:"count_date,omitempty"` // YYYY-MM-DD that TodayCheckIns belongs to
	Streak        int        `json:"streak"`
}

// DefaultStatus returns the snapshot of a senior with no recorded history.
func DefaultStatus() StatusSnapshot {
	return StatusSnapshot{
		IsAwake: true,
	}
}
