package domain

import "time"

// ScheduleRange bounds a scheduling query; both ends are inclusive.
type ScheduleRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether at falls inside the inclusive range.
func (r ScheduleRange) Contains(at time.Time) bool {
	return !at.Before(r.Start) && !at.After(r.End)
}

// ScheduleStats aggregates work order outcomes over a date range.
type ScheduleStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	// Open counts pending and approved work orders.
	Open      int `json:"open"`
	Cancelled int `json:"cancelled"`
	// CompletionRate is completed/total as a percentage, 0 when total is 0.
	CompletionRate float64 `json:"completion_rate"`
}
