package analytics

import (
	"time"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// MachineState is what a machine is doing today.
type MachineState string

const (
	StateIdle        MachineState = "idle"
	StateProduction  MachineState = "production"
	StateMaintenance MachineState = "maintenance"
)

// ActiveStatus is the resolver's answer. Entry is meaningful only when State
// is not StateIdle.
type ActiveStatus struct {
	State MachineState
	Entry schedule.Entry
}

// ActiveJob returns the first job, in source order, whose span overlaps
// today. Iteration order decides between overlapping jobs.
func ActiveJob(s *schedule.Snapshot, id types.MachineID, now time.Time) ActiveStatus {
	dayStart, dayEnd := todayBounds(now)

	for _, e := range s.ByMachine(id) {
		start, end, ok := e.Span()
		if !ok {
			continue
		}
		if start.Before(dayEnd) && !end.Before(dayStart) {
			if e.Job.IsMaintenance() {
				return ActiveStatus{State: StateMaintenance, Entry: e}
			}
			return ActiveStatus{State: StateProduction, Entry: e}
		}
	}
	return ActiveStatus{State: StateIdle}
}

// todayBounds returns [today 00:00, tomorrow 00:00) in now's location.
func todayBounds(now time.Time) (time.Time, time.Time) {
	start := datetime.StartOfDay(now)
	return start, start.AddDate(0, 0, 1)
}
