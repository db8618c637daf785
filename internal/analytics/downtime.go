// Package analytics derives per-machine figures from a plan snapshot:
// recorded downtime and idle gaps, capacity over calendar windows, and the
// job active today. Every function is pure; the current instant is always a
// parameter.
package analytics

import (
	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// Downtime aggregates loss per known machine. An empty snapshot yields an
// empty result; otherwise every catalog machine gets a row, zero or not.
func Downtime(s *schedule.Snapshot) []types.DowntimeSample {
	if s.Len() == 0 {
		return []types.DowntimeSample{}
	}

	ids := s.Catalog().IDs()
	out := make([]types.DowntimeSample, 0, len(ids))
	for _, id := range ids {
		recorded := RecordedDowntimeHours(s, id)
		idle := IdleHours(s, id)
		out = append(out, types.DowntimeSample{
			MachineID:             id,
			RecordedDowntimeHours: recorded,
			IdleHours:             idle,
			TotalLossHours:        recorded + idle,
		})
	}
	return out
}

// RecordedDowntimeHours sums the downtime logged against the machine's jobs.
// Dates play no part; malformed figures count as zero.
func RecordedDowntimeHours(s *schedule.Snapshot, id types.MachineID) float64 {
	var total float64
	for _, e := range s.ByMachine(id) {
		total += datetime.DurationToHours(e.Job.Downtime)
	}
	return total
}

// IdleHours sums the strictly positive gaps between consecutive jobs of the
// machine timeline. Overlapping pairs contribute nothing.
func IdleHours(s *schedule.Snapshot, id types.MachineID) float64 {
	timeline := s.Timeline(id)

	var total float64
	for i := 0; i+1 < len(timeline); i++ {
		_, prevEnd, _ := timeline[i].Span()
		nextStart, _, _ := timeline[i+1].Span()
		if nextStart.After(prevEnd) {
			total += nextStart.Sub(prevEnd).Hours()
		}
	}
	return total
}
