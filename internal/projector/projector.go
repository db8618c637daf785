// Package projector turns a plan snapshot into the machine → job tree the
// timeline widget draws.
package projector

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// Labels are the display words used in parent rows.
type Labels struct {
	Machine string
	Ton     string
	NoName  string
}

// DefaultLabels are the English labels.
var DefaultLabels = Labels{Machine: "Machine", Ton: "ton", NoName: "N/A"}

// Options controls a projection.
type Options struct {
	Filter schedule.Filter
	Labels Labels
}

// MachineNode is a parent row.
type MachineNode struct {
	ID        string          `json:"id"`
	Text      string          `json:"text"`
	MachineID types.MachineID `json:"machine_id"`
	Tonnage   int             `json:"tonnage"`
	Jobs      []JobNode       `json:"jobs"`
}

// JobNode is one drawable job.
type JobNode struct {
	ID            string          `json:"id"`
	Parent        string          `json:"parent"`
	Text          string          `json:"text"`
	MachineID     types.MachineID `json:"machine_id"`
	StartDate     string          `json:"start_date"`
	EndDate       string          `json:"end_date"`
	DueDate       string          `json:"due_date,omitempty"`
	Overdue       bool            `json:"overdue"`
	Corrected     bool            `json:"corrected,omitempty"` // end recomputed from run hours
	Maintenance   bool            `json:"maintenance,omitempty"`
	Customer      string          `json:"customer"`
	PartNo        string          `json:"part_no"`
	TotalQuantity string          `json:"total_quantity"`
	PaintCode     string          `json:"paint_code"`
	SourceIndex   int             `json:"source_index"`

	Start time.Time `json:"-"`
	End   time.Time `json:"-"`
}

// Tree is the projected timeline. Parents are in ascending machine order;
// jobs keep source order.
type Tree struct {
	Machines []MachineNode `json:"machines"`
	Omitted  int           `json:"omitted"` // jobs that could not be drawn
}

// Project builds the tree. Jobs on machines outside the catalog, jobs without
// a parseable start or end, and inverted jobs without usable run hours are
// left out; they remain in the snapshot.
func Project(s *schedule.Snapshot, opts Options) Tree {
	labels := opts.Labels
	if labels == (Labels{}) {
		labels = DefaultLabels
	}
	catalog := s.Catalog()
	selected := s.Select(opts.Filter)

	parents := make(map[types.MachineID]*MachineNode)
	for _, e := range selected {
		id := e.Job.MachineID
		if _, ok := parents[id]; ok || !catalog.Known(id) {
			continue
		}
		ton, _ := catalog.Tonnage(id)
		parents[id] = &MachineNode{
			ID:        parentID(id),
			Text:      fmt.Sprintf("%s %d (%d %s)", labels.Machine, id, ton, labels.Ton),
			MachineID: id,
			Tonnage:   ton,
			Jobs:      []JobNode{},
		}
	}

	tree := Tree{}
	for _, e := range selected {
		parent, ok := parents[e.Job.MachineID]
		if !ok {
			tree.Omitted++
			continue
		}
		node, ok := projectEntry(e, parent.ID, labels)
		if !ok {
			slog.Debug("job omitted from timeline",
				"machine", e.Job.MachineID, "index", e.Index, "part", e.Job.PartNo)
			tree.Omitted++
			continue
		}
		parent.Jobs = append(parent.Jobs, node)
	}

	ids := make([]types.MachineID, 0, len(parents))
	for id := range parents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		tree.Machines = append(tree.Machines, *parents[id])
	}
	return tree
}

func projectEntry(e schedule.Entry, parent string, labels Labels) (JobNode, bool) {
	start, end, ok := e.Span()
	if !ok {
		return JobNode{}, false
	}

	text := e.Job.PartName
	if text == "" {
		text = labels.NoName
	}

	node := JobNode{
		ID:            fmt.Sprintf("%d-%s", e.Job.MachineID, e.SequenceKey()),
		Parent:        parent,
		Text:          text,
		MachineID:     e.Job.MachineID,
		StartDate:     datetime.FormatTimeline(start),
		EndDate:       datetime.FormatTimeline(end),
		Corrected:     e.Corrected(),
		Maintenance:   e.Job.IsMaintenance(),
		Customer:      e.Job.Customer,
		PartNo:        e.Job.PartNo,
		TotalQuantity: e.Job.TotalQuantity,
		PaintCode:     e.Job.PaintCode,
		SourceIndex:   e.Index,
		Start:         start,
		End:           end,
	}
	if e.Due.Valid {
		node.DueDate = datetime.FormatTimeline(e.Due.At)
		node.Overdue = end.After(e.Due.At)
	}
	return node, true
}

func parentID(id types.MachineID) string {
	return fmt.Sprintf("machine-%d", id)
}

// Find resolves a job node id back to the node.
func (t Tree) Find(nodeID string) (JobNode, bool) {
	for _, m := range t.Machines {
		for _, j := range m.Jobs {
			if j.ID == nodeID {
				return j, true
			}
		}
	}
	return JobNode{}, false
}

// OverdueCount counts overdue jobs per machine.
func (t Tree) OverdueCount() map[types.MachineID]int {
	out := make(map[types.MachineID]int, len(t.Machines))
	for _, m := range t.Machines {
		n := 0
		for _, j := range m.Jobs {
			if j.Overdue {
				n++
			}
		}
		out[m.MachineID] = n
	}
	return out
}
