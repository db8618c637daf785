package datetime

import "time"

const (
	// DayFirstLayout is the canonical instant string handed to the assistant.
	DayFirstLayout = "02.01.2006 15:04:05"
	// DayFirstShortLayout matches the plan's own cell format.
	DayFirstShortLayout = "02.01.2006 15:04"
	// TimelineLayout is what the timeline widget expects.
	TimelineLayout = "2006-01-02 15:04"
)

func FormatDayFirst(t time.Time) string { return t.Format(DayFirstLayout) }
func FormatDayFirstShort(t time.Time) string { return t.Format(DayFirstShortLayout) }
func FormatTimeline(t time.Time) string { return t.Format(TimelineLayout) }

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AtClock returns t's calendar day at hour:minute.
func AtClock(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, t.Location())
}
