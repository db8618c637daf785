// ============================================================================
// plantrack dashboard service - coordinator
// ============================================================================
//
// Package: internal/dashboard
//
// The service owns the current plan and ties the other modules together:
//   - schedule: immutable plan snapshots and the machine catalog
//   - snapshot: persistence of the plan between runs
//   - journal: append-only history of plan changes
//   - analytics / projector: the read side (downtime, capacity, timeline)
//   - metrics: gauges refreshed on every view
//
// Mutations persist first and only then swap the in-memory plan, so a failed
// write leaves the previous plan in place.
// ============================================================================

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/metrics"
	"github.com/ChuLiYu/plantrack/internal/projector"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/internal/snapshot"
	"github.com/ChuLiYu/plantrack/internal/storage/journal"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// ErrNotOpen is returned by mutations before Open has succeeded.
var ErrNotOpen = errors.New("dashboard service is not open")

// ============================================================================
// Configuration
// ============================================================================

// Config wires the service.
type Config struct {
	Catalog          *schedule.Catalog
	Location         *time.Location // plant wall clock
	SnapshotPath     string
	KeepBackups      int    // 0 overwrites the snapshot without backups
	JournalPath      string // empty disables the change journal
	JournalMaxEvents int    // rotate the journal at this many events, 0 never
	MaintenanceLabel string // part name of inserted maintenance blocks
	Labels           projector.Labels
	Metrics          *metrics.Collector
}

// Service coordinates the plan and its derived views.
type Service struct {
	mu       sync.Mutex
	config   Config
	catalog  *schedule.Catalog
	parser   *datetime.Parser
	store    *snapshot.Manager
	journal  *journal.Journal
	metrics  *metrics.Collector
	plan     *schedule.Snapshot
	source   string
	savedAt  time.Time
	isOpened bool
}

// NewService builds a service. Nothing is read from disk until Open.
func NewService(config Config) *Service {
	catalog := config.Catalog
	if catalog == nil {
		catalog = schedule.DefaultCatalog()
	}
	if config.MaintenanceLabel == "" {
		config.MaintenanceLabel = "Maintenance"
	}
	collector := config.Metrics
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	parser := datetime.NewParser(config.Location)

	return &Service{
		config:  config,
		catalog: catalog,
		parser:  parser,
		store:   snapshot.NewManager(config.SnapshotPath),
		metrics: collector,
		plan:    schedule.NewSnapshot(nil, catalog, parser),
	}
}

// Open restores the persisted plan and opens the journal. A missing snapshot
// file yields an empty plan.
func (s *Service) Open() error {
	start := time.Now()

	data, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}

	s.mu.Lock()
	if s.config.JournalPath != "" && s.journal == nil {
		j, err := journal.Open(s.config.JournalPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to open journal: %w", err)
		}
		s.journal = j
	}
	s.plan = schedule.NewSnapshotWithRevision(data.Jobs, s.catalog, s.parser, data.Revision)
	s.source = data.Source
	s.savedAt = data.SavedAt
	s.isOpened = true
	s.mu.Unlock()

	slog.Info("Plan restored",
		"duration", time.Since(start),
		"jobs", len(data.Jobs),
		"revision", s.plan.Revision())
	return nil
}

// ============================================================================
// Mutations
// ============================================================================

// Replace swaps the whole plan for jobs, as after a workbook upload.
func (s *Service) Replace(jobs []types.ProductionJob, source string) (*schedule.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOpened {
		return nil, ErrNotOpen
	}

	next := s.plan.WithJobs(jobs)
	if err := s.persist(next, source); err != nil {
		return nil, err
	}
	s.plan = next
	s.source = source
	s.metrics.RecordLoad()
	s.record(journal.Event{Type: journal.EventLoad, Revision: next.Revision(), Source: source, Jobs: next.Len()})

	slog.Info("Plan replaced", "jobs", next.Len(), "source", source, "revision", next.Revision())
	return next, nil
}

// AddMaintenance appends a maintenance block for machine id on now's day.
func (s *Service) AddMaintenance(now time.Time, id types.MachineID) (*schedule.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOpened {
		return nil, ErrNotOpen
	}

	next, err := s.plan.AppendMaintenance(s.local(now), id, s.config.MaintenanceLabel)
	if err != nil {
		return nil, err
	}
	if err := s.persist(next, s.source); err != nil {
		return nil, err
	}
	s.plan = next
	s.metrics.RecordMaintenance()
	s.record(journal.Event{Type: journal.EventMaintenance, Revision: next.Revision(), Source: s.source, MachineID: id, Jobs: next.Len()})

	slog.Info("Maintenance scheduled", "machine", id, "revision", next.Revision())
	return next, nil
}

func (s *Service) persist(plan *schedule.Snapshot, source string) error {
	data := types.PlanSnapshot{
		Jobs:     plan.Jobs(),
		Revision: plan.Revision(),
		Source:   source,
	}

	var err error
	if s.config.KeepBackups > 0 {
		err = s.store.WriteWithBackup(data, s.config.KeepBackups)
	} else {
		err = s.store.Write(data)
	}
	if err != nil {
		return fmt.Errorf("failed to persist plan: %w", err)
	}
	s.savedAt = time.Now()
	return nil
}

// record appends a change to the journal. The plan is already persisted, so
// journal failures are logged and not returned.
func (s *Service) record(e journal.Event) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Append(e); err != nil {
		slog.Warn("Failed to journal plan change", "type", e.Type, "revision", e.Revision, "error", err)
		return
	}
	if s.config.JournalMaxEvents > 0 && s.journal.Len() >= s.config.JournalMaxEvents {
		rotated, err := s.journal.Rotate()
		if err != nil {
			slog.Warn("Failed to rotate journal", "error", err)
			return
		}
		slog.Info("Journal rotated", "path", rotated)
	}
}

// Close releases the journal. The service can not be mutated afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isOpened = false
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

// ============================================================================
// Read side
// ============================================================================

// History returns the journaled plan changes of the current journal file,
// oldest first. Without a journal it is empty.
func (s *Service) History() ([]journal.Event, error) {
	s.mu.Lock()
	j := s.journal
	s.mu.Unlock()

	if j == nil {
		return nil, nil
	}
	return j.Events()
}

// Plan returns the current snapshot.
func (s *Service) Plan() *schedule.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Source returns the workbook the current plan came from.
func (s *Service) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Metrics returns the collector the service updates.
func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

// View computes the dashboard for now and refreshes the metrics.
func (s *Service) View(now time.Time) View {
	start := time.Now()
	plan := s.Plan()

	view := BuildView(plan, s.local(now), s.config.Labels)
	s.metrics.Update(view.readings(), view.Jobs, view.Unparseable)
	s.metrics.ObserveViewBuild(time.Since(start).Seconds())
	return view
}

// Timeline projects the current plan with a filter.
func (s *Service) Timeline(filter schedule.Filter) projector.Tree {
	return projector.Project(s.Plan(), projector.Options{Filter: filter, Labels: s.config.Labels})
}

// GetStatus summarizes the service state.
func (s *Service) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]interface{}{
		"revision":    s.plan.Revision(),
		"jobs":        s.plan.Len(),
		"machines":    len(s.catalog.IDs()),
		"source":      s.source,
		"saved_at":    s.savedAt,
		"unparseable": s.plan.UnusableSpans(),
		"journal_seq": s.journal.LastSeq(),
	}
}

// RunMetricsLoop rebuilds the view every interval and writes the metrics
// textfile until ctx is done. clock supplies "now"; nil means time.Now.
func (s *Service) RunMetricsLoop(ctx context.Context, interval time.Duration, path string, clock func() time.Time) error {
	if clock == nil {
		clock = time.Now
	}
	if interval <= 0 {
		return fmt.Errorf("invalid metrics interval %v", interval)
	}

	refresh := func() {
		s.View(clock())
		if err := s.metrics.WriteTextfile(path); err != nil {
			slog.Error("Failed to write metrics textfile", "path", path, "error", err)
		}
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Metrics loop stopped")
			return nil
		case <-ticker.C:
			refresh()
		}
	}
}

func (s *Service) local(t time.Time) time.Time {
	if s.config.Location != nil {
		return t.In(s.config.Location)
	}
	return t
}
