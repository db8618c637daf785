// ============================================================================
// plantrack schedule repository - immutable plan snapshots
// ============================================================================
//
// Package: internal/schedule
// File: snapshot.go
// Purpose: Holds the current job set and the instants resolved from it.
//
// Design:
//   A Snapshot is never mutated after construction. Full dataset replacement
//   (WithJobs) and maintenance insertion (AppendMaintenance) both return a new
//   Snapshot with a new revision, so a view computed from an older snapshot
//   stays consistent with the data it was computed from.
//
//   Each job is resolved once into an Entry carrying its parsed start, due and
//   end instants. Analytics read entries, never raw cells.
//
//   entries []Entry             - source order, index = original row position
//   byMachine map[id][]int      - entry indexes per machine, source order
//
// ============================================================================

package schedule

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/pkg/types"
	"github.com/google/uuid"
)

var (
	// ErrUnknownMachine is returned when an operation names a machine outside the catalog.
	ErrUnknownMachine = errors.New("unknown machine")
)

// Maintenance block layout, local wall clock.
const (
	maintenanceStartHour = 8
	maintenanceEndHour   = 17
	maintenanceRunHours  = "8"
	maintenanceMinutes   = "480"
	placeholder          = "-"
)

// Entry is one job with its resolved instants.
type Entry struct {
	Index int // position in the source dataset
	Job   types.ProductionJob
	Start types.Instant
	Due   types.Instant
	End   types.Instant
}

// Span returns the drawable interval of the job. An inverted span is
// corrected to start + nominal run hours; when that is impossible, or either
// end is unparseable, ok is false.
func (e Entry) Span() (start, end time.Time, ok bool) {
	if !e.Start.Valid || !e.End.Valid {
		return time.Time{}, time.Time{}, false
	}
	if !e.End.At.Before(e.Start.At) {
		return e.Start.At, e.End.At, true
	}
	hours, valid := datetime.ParseHours(e.Job.RunHours)
	if !valid {
		return time.Time{}, time.Time{}, false
	}
	return e.Start.At, datetime.AddHours(e.Start.At, hours), true
}

// Corrected reports whether Span applies the run-hours fallback.
func (e Entry) Corrected() bool {
	if !e.Start.Valid || !e.End.Valid || !e.End.At.Before(e.Start.At) {
		return false
	}
	_, valid := datetime.ParseHours(e.Job.RunHours)
	return valid
}

// SequenceKey identifies the entry within its machine: the sequence number
// when present, the source index otherwise.
func (e Entry) SequenceKey() string {
	if s := strings.TrimSpace(e.Job.SequenceNumber); s != "" {
		return s
	}
	return strconv.Itoa(e.Index)
}

// Snapshot is an immutable job set.
type Snapshot struct {
	catalog   *Catalog
	parser    *datetime.Parser
	revision  string
	entries   []Entry
	byMachine map[types.MachineID][]int
}

// NewSnapshot resolves jobs into a new snapshot. The slice is copied.
func NewSnapshot(jobs []types.ProductionJob, catalog *Catalog, parser *datetime.Parser) *Snapshot {
	return newSnapshot(jobs, catalog, parser, uuid.NewString())
}

// NewSnapshotWithRevision is NewSnapshot with a caller-provided revision, used
// when restoring persisted plans.
func NewSnapshotWithRevision(jobs []types.ProductionJob, catalog *Catalog, parser *datetime.Parser, revision string) *Snapshot {
	if revision == "" {
		revision = uuid.NewString()
	}
	return newSnapshot(jobs, catalog, parser, revision)
}

func newSnapshot(jobs []types.ProductionJob, catalog *Catalog, parser *datetime.Parser, revision string) *Snapshot {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if parser == nil {
		parser = datetime.NewParser(nil)
	}

	s := &Snapshot{
		catalog:   catalog,
		parser:    parser,
		revision:  revision,
		entries:   make([]Entry, len(jobs)),
		byMachine: make(map[types.MachineID][]int),
	}
	for i, job := range jobs {
		s.entries[i] = Entry{
			Index: i,
			Job:   job,
			Start: parser.ParseInstant(job.StartAt),
			Due:   parser.ParseInstant(job.DueAt),
			End:   parser.ParseInstant(job.EndAt),
		}
		s.byMachine[job.MachineID] = append(s.byMachine[job.MachineID], i)
	}
	return s
}

func (s *Snapshot) Catalog() *Catalog { return s.catalog }
func (s *Snapshot) Parser() *datetime.Parser { return s.parser }
func (s *Snapshot) Revision() string { return s.revision }
func (s *Snapshot) Len() int { return len(s.entries) }

// Jobs returns a copy of the job set in source order.
func (s *Snapshot) Jobs() []types.ProductionJob {
	out := make([]types.ProductionJob, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Job
	}
	return out
}

// Entries returns a copy of all entries in source order.
func (s *Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Entry returns the entry at a source index.
func (s *Snapshot) Entry(index int) (Entry, bool) {
	if index < 0 || index >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[index], true
}

// MachineIDs returns the distinct machine ids present, ascending. Unknown ids
// are included; callers keyed by the catalog filter them out.
func (s *Snapshot) MachineIDs() []types.MachineID {
	ids := make([]types.MachineID, 0, len(s.byMachine))
	for id := range s.byMachine {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ByMachine returns the machine's entries in source order.
func (s *Snapshot) ByMachine(id types.MachineID) []Entry {
	idx := s.byMachine[id]
	out := make([]Entry, len(idx))
	for i, n := range idx {
		out[i] = s.entries[n]
	}
	return out
}

// Timeline returns the machine's entries with a usable span, sorted by start.
// Equal starts keep source order.
func (s *Snapshot) Timeline(id types.MachineID) []Entry {
	var out []Entry
	for _, n := range s.byMachine[id] {
		if _, _, ok := s.entries[n].Span(); ok {
			out = append(out, s.entries[n])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.At.Before(out[j].Start.At)
	})
	return out
}

// UnusableSpans counts entries excluded from time-based aggregation.
func (s *Snapshot) UnusableSpans() int {
	n := 0
	for _, e := range s.entries {
		if _, _, ok := e.Span(); !ok {
			n++
		}
	}
	return n
}

// Filter narrows a projection. Zero values select everything.
type Filter struct {
	Machines []types.MachineID
	Customer string
}

// Match reports whether the entry passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.Customer != "" && e.Job.Customer != f.Customer {
		return false
	}
	if len(f.Machines) == 0 {
		return true
	}
	for _, id := range f.Machines {
		if id == e.Job.MachineID {
			return true
		}
	}
	return false
}

// Select returns the entries that pass f, in source order.
func (s *Snapshot) Select(f Filter) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Customers returns the distinct non-empty customer names in first-seen order.
func (s *Snapshot) Customers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.entries {
		c := e.Job.Customer
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// WithJobs replaces the whole dataset.
func (s *Snapshot) WithJobs(jobs []types.ProductionJob) *Snapshot {
	return NewSnapshot(jobs, s.catalog, s.parser)
}

// AppendMaintenance returns a new snapshot with a same-day maintenance block
// for machine id. The receiver is left untouched.
func (s *Snapshot) AppendMaintenance(now time.Time, id types.MachineID, label string) (*Snapshot, error) {
	if !s.catalog.Known(id) {
		return nil, ErrUnknownMachine
	}

	jobs := make([]types.ProductionJob, 0, len(s.entries)+1)
	jobs = append(jobs, s.Jobs()...)
	jobs = append(jobs, MaintenanceJob(now, id, label))

	return NewSnapshot(jobs, s.catalog, s.parser), nil
}

// MaintenanceJob builds the synthetic maintenance block for now's day.
func MaintenanceJob(now time.Time, id types.MachineID, label string) types.ProductionJob {
	return types.ProductionJob{
		MachineID:     id,
		StartAt:       types.DateCell(datetime.AtClock(now, maintenanceStartHour, 0)),
		DueAt:         types.DateCell(datetime.StartOfDay(now)),
		EndAt:         types.DateCell(datetime.AtClock(now, maintenanceEndHour, 0)),
		Customer:      placeholder,
		PartNo:        types.MaintenancePartNo,
		PartName:      label,
		TotalQuantity: placeholder,
		CycleTime:     placeholder,
		TotalMinutes:  maintenanceMinutes,
		GrossWeight:   placeholder,
		Material:      placeholder,
		MaterialKg:    placeholder,
		PaintCode:     placeholder,
		PaintQuantity: placeholder,
		PaintKg:       placeholder,
		CavityCount:   placeholder,
		ShotCount:     placeholder,
		RunHours:      maintenanceRunHours,
		Downtime:      "00:00:00",
	}
}
