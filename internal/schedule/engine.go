// Package schedule computes candidate interview slots for a time window and
// matches them against parsed day/time preferences.
//
// The grid is fixed: morning 09:00–13:00 and afternoon 14:00–18:00, weekends
// skipped. Availability reads exclude already-booked slots but are only
// advisory — storage.BookSlot is the final arbiter under concurrency.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/hireloop/hireloop/internal/model"
	"github.com/hireloop/hireloop/internal/storage"
)

// Daily windows, hours in 24h local-to-UTC terms.
const (
	MorningStartHour   = 9
	MorningEndHour     = 13
	AfternoonStartHour = 14
	AfternoonEndHour   = 18
)

// Slot grid granularities.
const (
	GranularityHalfHour = 30 * time.Minute
	GranularityHour     = time.Hour
)

// Availability answers which (date, time) pairs are already occupied by a
// scheduled or confirmed interview. Implemented by storage.DB.
type Availability interface {
	BookedTimes(ctx context.Context, from, to time.Time) (map[string]bool, error)
}

// Engine generates and filters interview slots.
type Engine struct {
	avail Availability
	now   func() time.Time
}

// NewEngine creates a slot engine. now may be nil for wall-clock time.
func NewEngine(avail Availability, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{avail: avail, now: now}
}

// GenerateSlots returns all open slots within the next windowDays calendar
// days, starting tomorrow, in chronological order. pref narrows the daily
// windows; gran sets the slot increment (30 or 60 minutes).
func (e *Engine) GenerateSlots(ctx context.Context, windowDays int, pref model.TimePreference, gran time.Duration) ([]model.SlotRef, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("schedule: window days must be positive, got %d", windowDays)
	}
	if gran <= 0 {
		gran = GranularityHalfHour
	}

	start := dateOnly(e.now()).AddDate(0, 0, 1)
	end := start.AddDate(0, 0, windowDays-1)

	taken, err := e.avail.BookedTimes(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("schedule: generate slots: %w", err)
	}

	var out []model.SlotRef
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if isWeekend(day) {
			continue
		}
		out = append(out, daySlots(day, pref, gran, taken)...)
	}
	return out, nil
}

// GenerateSlotsForWeekday resolves the next future occurrence of wd (today
// excluded) and returns that day's open slots.
func (e *Engine) GenerateSlotsForWeekday(ctx context.Context, wd time.Weekday, pref model.TimePreference, gran time.Duration) ([]model.SlotRef, error) {
	if gran <= 0 {
		gran = GranularityHalfHour
	}
	day := NextWeekday(e.now(), wd)
	if isWeekend(day) {
		return nil, nil
	}

	taken, err := e.avail.BookedTimes(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("schedule: generate slots for %s: %w", wd, err)
	}
	return daySlots(day, pref, gran, taken), nil
}

// IsAvailable reports whether the (date, time) pair is free of any scheduled
// or confirmed booking.
func (e *Engine) IsAvailable(ctx context.Context, date time.Time, hm string) (bool, error) {
	day := dateOnly(date)
	taken, err := e.avail.BookedTimes(ctx, day, day)
	if err != nil {
		return false, fmt.Errorf("schedule: availability check: %w", err)
	}
	return !taken[storage.SlotKey(day, hm)], nil
}

// AvailableCount returns the number of open slots over the window. Used by
// the health surface.
func (e *Engine) AvailableCount(ctx context.Context, windowDays int) (int, error) {
	slots, err := e.GenerateSlots(ctx, windowDays, model.PreferNone, GranularityHalfHour)
	if err != nil {
		return 0, err
	}
	return len(slots), nil
}

// MatchPreference filters slots by day-name membership and period band.
// An empty day list keeps all days; PreferNone keeps all periods.
func MatchPreference(slots []model.SlotRef, days []time.Weekday, pref model.TimePreference) []model.SlotRef {
	daySet := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		daySet[d] = true
	}

	var out []model.SlotRef
	for _, s := range slots {
		if len(daySet) > 0 && !daySet[s.Weekday()] {
			continue
		}
		if !InPeriod(s.Hour(), pref) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// InPeriod reports whether a starting hour falls inside the preference band.
func InPeriod(hour int, pref model.TimePreference) bool {
	switch pref {
	case model.PreferMorning:
		return hour >= MorningStartHour && hour < MorningEndHour
	case model.PreferAfternoon:
		return hour >= AfternoonStartHour && hour < AfternoonEndHour
	default:
		return true
	}
}

// NextWeekday returns the next future occurrence of wd after from,
// today excluded: asking for Friday on a Friday yields next week's.
func NextWeekday(from time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return dateOnly(from).AddDate(0, 0, days)
}

// daySlots builds the open slots for one day under a preference and grid.
func daySlots(day time.Time, pref model.TimePreference, gran time.Duration, taken map[string]bool) []model.SlotRef {
	type window struct{ start, end int }
	var windows []window
	if pref == model.PreferNone || pref == model.PreferMorning {
		windows = append(windows, window{MorningStartHour, MorningEndHour})
	}
	if pref == model.PreferNone || pref == model.PreferAfternoon {
		windows = append(windows, window{AfternoonStartHour, AfternoonEndHour})
	}

	var out []model.SlotRef
	for _, w := range windows {
		start := time.Date(day.Year(), day.Month(), day.Day(), w.start, 0, 0, 0, time.UTC)
		end := time.Date(day.Year(), day.Month(), day.Day(), w.end, 0, 0, 0, time.UTC)
		for t := start; t.Before(end); t = t.Add(gran) {
			hm := t.Format("15:04")
			if taken[storage.SlotKey(day, hm)] {
				continue
			}
			out = append(out, model.SlotRef{
				Date:  day,
				Time:  hm,
				Label: fmt.Sprintf("%s, %s at %s", day.Weekday(), day.Format("Jan 2"), hm),
			})
		}
	}
	return out
}

func isWeekend(day time.Time) bool {
	return day.Weekday() == time.Saturday || day.Weekday() == time.Sunday
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
