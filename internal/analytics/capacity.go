package analytics

import (
	"math"
	"time"

	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// WindowKind names a capacity window.
type WindowKind string

const (
	WindowWeek  WindowKind = "week"
	WindowMonth WindowKind = "month"
)

// Window is a half-open calendar interval [Start, End) with a fixed
// denominator in hours.
type Window struct {
	Kind       WindowKind
	Start, End time.Time
	Hours      float64
}

// WeekWindow covers Monday 00:00 through Sunday of the week containing now.
func WeekWindow(now time.Time) Window {
	// Sunday is day 0 and belongs to the week that started six days earlier.
	offset := int(now.Weekday()) - 1
	if offset < 0 {
		offset = 6
	}
	y, m, d := now.Date()
	start := time.Date(y, m, d-offset, 0, 0, 0, 0, now.Location())
	return Window{
		Kind:  WindowWeek,
		Start: start,
		End:   start.AddDate(0, 0, 7),
		Hours: 24 * 7,
	}
}

// MonthWindow covers the calendar month containing now.
func MonthWindow(now time.Time) Window {
	y, m, _ := now.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	// day 0 of the next month is the last day of this one
	days := time.Date(y, m+1, 0, 0, 0, 0, 0, now.Location()).Day()
	return Window{
		Kind:  WindowMonth,
		Start: start,
		End:   start.AddDate(0, 1, 0),
		Hours: float64(24 * days),
	}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// CapacityReading is a machine's utilization over one window.
type CapacityReading struct {
	Window     WindowKind `json:"window"`
	Percent    int        `json:"percent"`
	Hours      float64    `json:"hours"`
	Overbooked bool       `json:"overbooked"` // above 100%, double-booked spans
}

// Capacity computes the share of the window covered by the machine's job
// spans. Overlapping jobs are summed, not merged, so the result may exceed
// 100; that is reported through Overbooked rather than clamped.
func Capacity(s *schedule.Snapshot, id types.MachineID, w Window) CapacityReading {
	var hours float64
	for _, e := range s.ByMachine(id) {
		start, end, ok := e.Span()
		if !ok {
			continue
		}
		hours += overlapHours(start, end, w.Start, w.End)
	}

	percent := int(math.Round(hours / w.Hours * 100))
	return CapacityReading{
		Window:     w.Kind,
		Percent:    percent,
		Hours:      hours,
		Overbooked: percent > 100,
	}
}

// WeeklyCapacity is Capacity over WeekWindow(now).
func WeeklyCapacity(s *schedule.Snapshot, id types.MachineID, now time.Time) CapacityReading {
	return Capacity(s, id, WeekWindow(now))
}

// MonthlyCapacity is Capacity over MonthWindow(now).
func MonthlyCapacity(s *schedule.Snapshot, id types.MachineID, now time.Time) CapacityReading {
	return Capacity(s, id, MonthWindow(now))
}

func overlapHours(start, end, winStart, winEnd time.Time) float64 {
	lo := start
	if winStart.After(lo) {
		lo = winStart
	}
	hi := end
	if winEnd.Before(hi) {
		hi = winEnd
	}
	if !hi.After(lo) {
		return 0
	}
	return hi.Sub(lo).Hours()
}
