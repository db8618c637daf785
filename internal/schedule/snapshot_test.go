package schedule

import (
	"testing"
	"time"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

func newTestParser() *datetime.Parser {
	return datetime.NewParser(time.UTC)
}

// newTestJob creates a job with day-first text cells
func newTestJob(machine types.MachineID, start, end string) types.ProductionJob {
	return types.ProductionJob{
		MachineID: machine,
		StartAt:   types.TextCell(start),
		DueAt:     types.TextCell("30.06.2024"),
		EndAt:     types.TextCell(end),
		PartNo:    "P-100",
		PartName:  "Cover",
		Downtime:  "00:00:00",
	}
}

func newTestSnapshot(jobs ...types.ProductionJob) *Snapshot {
	return NewSnapshot(jobs, DefaultCatalog(), newTestParser())
}

// ============================================================================
// Catalog
// ============================================================================

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, []types.MachineID{1, 2, 3, 4, 5, 6}, c.IDs())
	ton, ok := c.Tonnage(1)
	assert.True(t, ok)
	assert.Equal(t, 320, ton)
	assert.False(t, c.Known(7))
	assert.Equal(t, "MAKİNE 3", c.Machines()[2].Sheet)
}

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]types.Machine{{ID: 1}, {ID: 1}})
	assert.Error(t, err)
}

func TestNewCatalog_SortsAndDefaultsSheet(t *testing.T) {
	c, err := NewCatalog([]types.Machine{{ID: 9, Tonnage: 90}, {ID: 2, Tonnage: 20, Sheet: "Press 2"}})
	require.NoError(t, err)

	assert.Equal(t, []types.MachineID{2, 9}, c.IDs())
	assert.Equal(t, "MAKİNE 9", c.Machines()[1].Sheet)
	assert.Equal(t, "Press 2", c.Machines()[0].Sheet)
}

// ============================================================================
// Snapshot
// ============================================================================

func TestNewSnapshot_ResolvesInstants(t *testing.T) {
	s := newTestSnapshot(newTestJob(3, "01.06.2024 08:00", "01.06.2024 16:00"))

	require.Equal(t, 1, s.Len())
	e, ok := s.Entry(0)
	require.True(t, ok)
	assert.True(t, e.Start.Valid)
	assert.True(t, e.End.Valid)
	assert.True(t, e.Due.Valid)
	assert.Equal(t, time.Date(2024, 6, 1, 16, 0, 0, 0, time.UTC), e.End.At)
	assert.NotEmpty(t, s.Revision())
}

func TestSpan_Inversions(t *testing.T) {
	job := newTestJob(1, "01.06.2024 08:00", "01.06.2024 06:00")
	job.RunHours = "4"
	s := newTestSnapshot(job)

	e, _ := s.Entry(0)
	start, end, ok := e.Span()
	require.True(t, ok)
	assert.Equal(t, start.Add(4*time.Hour), end)
	assert.True(t, e.Corrected())

	job.RunHours = "4,5"
	e, _ = newTestSnapshot(job).Entry(0)
	_, end, ok = e.Span()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC), end)

	job.RunHours = "-"
	e, _ = newTestSnapshot(job).Entry(0)
	_, _, ok = e.Span()
	assert.False(t, ok, "inverted span without run hours is unusable")
	assert.False(t, e.Corrected())
}

func TestSpan_Unparseable(t *testing.T) {
	s := newTestSnapshot(
		newTestJob(1, "not a date", "01.06.2024 06:00"),
		newTestJob(1, "01.06.2024 06:00", ""),
	)

	for _, e := range s.Entries() {
		_, _, ok := e.Span()
		assert.False(t, ok)
	}
	assert.Equal(t, 2, s.UnusableSpans())
	assert.Empty(t, s.Timeline(1))
	assert.Len(t, s.ByMachine(1), 2, "unparseable jobs stay in listings")
}

func TestTimeline_SortedByStart(t *testing.T) {
	s := newTestSnapshot(
		newTestJob(2, "03.06.2024 08:00", "03.06.2024 10:00"),
		newTestJob(2, "01.06.2024 08:00", "01.06.2024 10:00"),
		newTestJob(1, "02.06.2024 08:00", "02.06.2024 10:00"),
		newTestJob(2, "02.06.2024 08:00", "02.06.2024 10:00"),
	)

	timeline := s.Timeline(2)
	require.Len(t, timeline, 3)
	assert.Equal(t, 1, timeline[0].Index)
	assert.Equal(t, 3, timeline[1].Index)
	assert.Equal(t, 0, timeline[2].Index)

	byMachine := s.ByMachine(2)
	assert.Equal(t, 0, byMachine[0].Index, "ByMachine keeps source order")
}

func TestMachineIDs(t *testing.T) {
	s := newTestSnapshot(
		newTestJob(4, "", ""),
		newTestJob(1, "", ""),
		newTestJob(4, "", ""),
		newTestJob(42, "", ""),
	)
	assert.Equal(t, []types.MachineID{1, 4, 42}, s.MachineIDs())
}

func TestSelectAndCustomers(t *testing.T) {
	a := newTestJob(1, "", "")
	a.Customer = "Acme"
	b := newTestJob(2, "", "")
	b.Customer = "Beta"
	c := newTestJob(2, "", "")
	c.Customer = "Acme"
	s := newTestSnapshot(a, b, c)

	assert.Equal(t, []string{"Acme", "Beta"}, s.Customers())
	assert.Len(t, s.Select(Filter{}), 3)
	assert.Len(t, s.Select(Filter{Customer: "Acme"}), 2)
	assert.Len(t, s.Select(Filter{Machines: []types.MachineID{2}}), 2)

	got := s.Select(Filter{Machines: []types.MachineID{2}, Customer: "Acme"})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Index)
}

func TestSequenceKey(t *testing.T) {
	withSeq := newTestJob(1, "", "")
	withSeq.SequenceNumber = "17"
	s := newTestSnapshot(newTestJob(1, "", ""), withSeq)

	e0, _ := s.Entry(0)
	e1, _ := s.Entry(1)
	assert.Equal(t, "0", e0.SequenceKey())
	assert.Equal(t, "17", e1.SequenceKey())
}

// ============================================================================
// Mutations
// ============================================================================

func TestAppendMaintenance(t *testing.T) {
	now := time.Date(2024, 6, 5, 13, 45, 0, 0, time.UTC)
	original := newTestSnapshot(newTestJob(1, "01.06.2024 08:00", "01.06.2024 16:00"))

	next, err := original.AppendMaintenance(now, 3, "Scheduled maintenance")
	require.NoError(t, err)

	assert.Equal(t, 1, original.Len(), "receiver must not change")
	require.Equal(t, 2, next.Len())
	assert.NotEqual(t, original.Revision(), next.Revision())

	e, _ := next.Entry(1)
	assert.True(t, e.Job.IsMaintenance())
	assert.Equal(t, types.MachineID(3), e.Job.MachineID)
	assert.Equal(t, "Scheduled maintenance", e.Job.PartName)
	assert.Equal(t, "8", e.Job.RunHours)
	assert.Equal(t, "480", e.Job.TotalMinutes)
	assert.Equal(t, "00:00:00", e.Job.Downtime)
	assert.Empty(t, e.Job.SequenceNumber)

	start, end, ok := e.Span()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 6, 5, 17, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), e.Due.At)

	first, _ := next.Entry(0)
	assert.Equal(t, original.Jobs()[0], first.Job, "existing jobs are untouched")
}

func TestAppendMaintenance_UnknownMachine(t *testing.T) {
	s := newTestSnapshot()

	next, err := s.AppendMaintenance(time.Now(), 99, "x")
	assert.ErrorIs(t, err, ErrUnknownMachine)
	assert.Nil(t, next)
}

func TestWithJobs_NewRevision(t *testing.T) {
	s := newTestSnapshot(newTestJob(1, "", ""))
	replaced := s.WithJobs(nil)

	assert.Equal(t, 0, replaced.Len())
	assert.NotEqual(t, s.Revision(), replaced.Revision())
	assert.Same(t, s.Catalog(), replaced.Catalog())
}

func TestNewSnapshotWithRevision(t *testing.T) {
	s := NewSnapshotWithRevision(nil, nil, nil, "rev-1")
	assert.Equal(t, "rev-1", s.Revision())
	assert.NotNil(t, s.Catalog())
	assert.NotNil(t, s.Parser())

	generated := NewSnapshotWithRevision(nil, nil, nil, "")
	assert.NotEmpty(t, generated.Revision())
}
