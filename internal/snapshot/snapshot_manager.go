package snapshot

// ============================================================================
// Plan persistence
// 1. Serializes the current plan as a JSON snapshot file
// 2. Atomic write (temp file + rename) so a crash never leaves half a file
// 3. Schema version and CRC32 checksum verified on load
// ============================================================================

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ChuLiYu/plantrack/pkg/types"
)

// SchemaVersion is the only layout Load accepts.
const SchemaVersion = 1

const backupLayout = "20060102_150405.000000000"

// ============================================================================
// Errors
// ============================================================================

var (
	ErrCorruptedSnapshot   = errors.New("snapshot file is corrupted")
	ErrIncompatibleVersion = errors.New("snapshot schema version is incompatible")
	ErrChecksumMismatch    = errors.New("snapshot checksum mismatch")
)

// ============================================================================
// Manager
// ============================================================================

// Manager owns one snapshot file.
type Manager struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// fileLayout is PlanSnapshot with the jobs kept raw so the checksum can be
// verified against exactly what was stored.
type fileLayout struct {
	Jobs      json.RawMessage `json:"jobs"`
	SchemaVer int             `json:"schema_ver"`
	Revision  string          `json:"revision"`
	SavedAt   time.Time       `json:"saved_at"`
	Source    string          `json:"source,omitempty"`
	Checksum  uint32          `json:"checksum"`
}

// NewManager creates a manager for path.
func NewManager(path string) *Manager {
	return &Manager{path: path, now: time.Now}
}

// Checksum is the CRC32-IEEE of the compact JSON encoding of jobs.
func Checksum(jobs []types.ProductionJob) (uint32, error) {
	if jobs == nil {
		jobs = []types.ProductionJob{}
	}
	b, err := json.Marshal(jobs)
	if err != nil {
		return 0, err
	}
	return crc32.ChecksumIEEE(b), nil
}

// Write atomically replaces the snapshot file. SchemaVer, SavedAt and
// Checksum are filled in by the manager.
func (m *Manager) Write(data types.PlanSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(data)
}

func (m *Manager) write(data types.PlanSnapshot) error {
	if data.Jobs == nil {
		data.Jobs = []types.ProductionJob{}
	}
	sum, err := Checksum(data.Jobs)
	if err != nil {
		return fmt.Errorf("failed to checksum snapshot: %w", err)
	}
	data.SchemaVer = SchemaVersion
	data.Checksum = sum
	if data.SavedAt.IsZero() {
		data.SavedAt = m.now().UTC()
	}

	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}

	tmpPath := m.path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is not an error: it yields an
// empty plan at the current schema version.
func (m *Manager) Load() (types.PlanSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	jsonBytes, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.PlanSnapshot{
				Jobs:      []types.ProductionJob{},
				SchemaVer: SchemaVersion,
			}, nil
		}
		return types.PlanSnapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var file fileLayout
	if err := json.Unmarshal(jsonBytes, &file); err != nil {
		return types.PlanSnapshot{}, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	if file.SchemaVer != SchemaVersion {
		return types.PlanSnapshot{}, fmt.Errorf("%w: got %d, want %d", ErrIncompatibleVersion, file.SchemaVer, SchemaVersion)
	}

	var compact bytes.Buffer
	if len(file.Jobs) > 0 {
		if err := json.Compact(&compact, file.Jobs); err != nil {
			return types.PlanSnapshot{}, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
		}
	} else {
		compact.WriteString("[]")
	}
	if got := crc32.ChecksumIEEE(compact.Bytes()); got != file.Checksum {
		return types.PlanSnapshot{}, fmt.Errorf("%w: got %08x, want %08x", ErrChecksumMismatch, got, file.Checksum)
	}

	data := types.PlanSnapshot{
		SchemaVer: file.SchemaVer,
		Revision:  file.Revision,
		SavedAt:   file.SavedAt,
		Source:    file.Source,
		Checksum:  file.Checksum,
	}
	if err := json.Unmarshal(compact.Bytes(), &data.Jobs); err != nil {
		return types.PlanSnapshot{}, fmt.Errorf("%w: %v", ErrCorruptedSnapshot, err)
	}
	if data.Jobs == nil {
		data.Jobs = []types.ProductionJob{}
	}
	return data, nil
}

// Exists reports whether the snapshot file is present.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// GetPath returns the snapshot file path.
func (m *Manager) GetPath() string {
	return m.path
}

// ============================================================================
// Backups
// ============================================================================

// WriteWithBackup moves the current file aside as a timestamped backup before
// writing, then prunes all but the newest keepBackups backups.
func (m *Manager) WriteWithBackup(data types.PlanSnapshot, keepBackups int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.path); err == nil {
		backupPath := fmt.Sprintf("%s.%s", m.path, m.now().Format(backupLayout))
		if err := os.Rename(m.path, backupPath); err != nil {
			return fmt.Errorf("failed to backup old snapshot: %w", err)
		}
	}

	if err := m.write(data); err != nil {
		return err
	}
	return m.pruneBackups(keepBackups)
}

// Backups lists backup files, oldest first.
func (m *Manager) Backups() ([]string, error) {
	matches, err := filepath.Glob(m.path + ".*")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range matches {
		if strings.HasSuffix(p, ".tmp") {
			continue
		}
		out = append(out, p)
	}
	// the timestamp suffix sorts chronologically
	sort.Strings(out)
	return out, nil
}

func (m *Manager) pruneBackups(keep int) error {
	if keep < 0 {
		keep = 0
	}
	backups, err := m.Backups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	for len(backups) > keep {
		if err := os.Remove(backups[0]); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to prune backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}
