package dashboard

import (
	"time"

	"github.com/ChuLiYu/plantrack/internal/analytics"
	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/metrics"
	"github.com/ChuLiYu/plantrack/internal/projector"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// ActiveJob is the machine's job for today, if any.
type ActiveJob struct {
	State    analytics.MachineState `json:"state"`
	PartNo   string                 `json:"part_no,omitempty"`
	PartName string                 `json:"part_name,omitempty"`
	Customer string                 `json:"customer,omitempty"`
	Start    string                 `json:"start,omitempty"`
	End      string                 `json:"end,omitempty"`
}

// MachineStatus is one card of the status board.
type MachineStatus struct {
	ID      types.MachineID           `json:"id"`
	Tonnage int                       `json:"tonnage"`
	Weekly  analytics.CapacityReading `json:"weekly"`
	Monthly analytics.CapacityReading `json:"monthly"`
	Active  ActiveJob                 `json:"active"`
	Overdue int                       `json:"overdue"`
}

// View is everything the dashboard shows for one instant.
type View struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Revision    string                 `json:"revision"`
	Jobs        int                    `json:"jobs"`
	Unparseable int                    `json:"unparseable"`
	Downtime    []types.DowntimeSample `json:"downtime"`
	Machines    []MachineStatus        `json:"machines"`
	Timeline    projector.Tree         `json:"timeline"`
}

// BuildView derives the dashboard from plan at now. It has no side effects
// and returns the same view for the same plan and now.
func BuildView(plan *schedule.Snapshot, now time.Time, labels projector.Labels) View {
	timeline := projector.Project(plan, projector.Options{Labels: labels})
	overdue := timeline.OverdueCount()

	view := View{
		GeneratedAt: now,
		Revision:    plan.Revision(),
		Jobs:        plan.Len(),
		Unparseable: plan.UnusableSpans(),
		Downtime:    analytics.Downtime(plan),
		Timeline:    timeline,
	}

	catalog := plan.Catalog()
	for _, id := range catalog.IDs() {
		ton, _ := catalog.Tonnage(id)
		view.Machines = append(view.Machines, MachineStatus{
			ID:      id,
			Tonnage: ton,
			Weekly:  analytics.WeeklyCapacity(plan, id, now),
			Monthly: analytics.MonthlyCapacity(plan, id, now),
			Active:  activeJob(analytics.ActiveJob(plan, id, now)),
			Overdue: overdue[id],
		})
	}
	return view
}

func activeJob(status analytics.ActiveStatus) ActiveJob {
	out := ActiveJob{State: status.State}
	if status.State == analytics.StateIdle {
		return out
	}
	job := status.Entry.Job
	out.PartNo = job.PartNo
	out.PartName = job.PartName
	out.Customer = job.Customer
	if start, end, ok := status.Entry.Span(); ok {
		out.Start = datetime.FormatDayFirstShort(start)
		out.End = datetime.FormatDayFirstShort(end)
	}
	return out
}

// Status returns the card for id.
func (v View) Status(id types.MachineID) (MachineStatus, bool) {
	for _, m := range v.Machines {
		if m.ID == id {
			return m, true
		}
	}
	return MachineStatus{}, false
}

// readings flattens the view into metric readings. Machines without a
// downtime row, which happens for an empty plan, report zero loss.
func (v View) readings() []metrics.MachineReading {
	loss := make(map[types.MachineID]types.DowntimeSample, len(v.Downtime))
	for _, d := range v.Downtime {
		loss[d.MachineID] = d
	}

	out := make([]metrics.MachineReading, 0, len(v.Machines))
	for _, m := range v.Machines {
		d := loss[m.ID]
		out = append(out, metrics.MachineReading{
			MachineID:      int(m.ID),
			DowntimeHours:  d.RecordedDowntimeHours,
			IdleHours:      d.IdleHours,
			TotalLossHours: d.TotalLossHours,
			WeeklyPercent:  m.Weekly.Percent,
			MonthlyPercent: m.Monthly.Percent,
			State:          string(m.Active.State),
			OverdueJobs:    m.Overdue,
		})
	}
	return out
}
