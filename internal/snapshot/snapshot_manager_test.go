package snapshot

// ============================================================================
// Snapshot manager tests: atomic write, load, version and checksum checks
// ============================================================================

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ChuLiYu/plantrack/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPlan(revision string, n int) types.PlanSnapshot {
	jobs := make([]types.ProductionJob, n)
	for i := range jobs {
		jobs[i] = types.ProductionJob{
			MachineID: types.MachineID(i%6 + 1),
			StartAt:   types.DateCell(time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)),
			DueAt:     types.TextCell("10.06.2024"),
			EndAt:     types.NumberCell(45446.5),
			PartNo:    fmt.Sprintf("P-%d", i),
			PartName:  "Kapak <iç>",
			RunHours:  "4,5",
			Downtime:  "01:30:00",
		}
	}
	return types.PlanSnapshot{Jobs: jobs, Revision: revision, Source: "plan.xlsx"}
}

// ============================================================================
// Basics
// ============================================================================

func TestNewManager(t *testing.T) {
	manager := NewManager("test_snapshot.json")
	assert.NotNil(t, manager)
	assert.Equal(t, "test_snapshot.json", manager.GetPath())
}

func TestWriteAndLoad(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "plan.json")
	manager := NewManager(snapshotPath)

	original := testPlan("rev-1", 3)
	require.NoError(t, manager.Write(original))

	loaded, err := manager.Load()
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, loaded.SchemaVer)
	assert.Equal(t, "rev-1", loaded.Revision)
	assert.Equal(t, "plan.xlsx", loaded.Source)
	assert.False(t, loaded.SavedAt.IsZero())
	assert.Equal(t, original.Jobs, loaded.Jobs, "cell variants survive the round trip")

	sum, err := Checksum(original.Jobs)
	require.NoError(t, err)
	assert.Equal(t, sum, loaded.Checksum)
}

func TestWrite_CreatesDirectory(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "nested", "data", "plan.json")
	manager := NewManager(snapshotPath)

	require.NoError(t, manager.Write(testPlan("rev", 1)))
	assert.True(t, manager.Exists())
}

func TestAtomicWrite(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "plan.json")
	manager := NewManager(snapshotPath)
	require.NoError(t, manager.Write(testPlan("old", 1)))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		assert.NoError(t, manager.Write(testPlan("new", 2)))
	}()

	var loaded types.PlanSnapshot
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		data, err := manager.Load()
		assert.NoError(t, err)
		loaded = data
	}()

	wg.Wait()

	assert.True(t, loaded.Revision == "old" || loaded.Revision == "new",
		"should load a complete snapshot, got %q", loaded.Revision)

	_, err := os.Stat(snapshotPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should not exist after write")
}

func TestExists(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "plan.json"))

	assert.False(t, manager.Exists())
	require.NoError(t, manager.Write(types.PlanSnapshot{}))
	assert.True(t, manager.Exists())
}

// ============================================================================
// Error handling
// ============================================================================

func TestFirstBoot(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "missing.json"))

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, loaded.SchemaVer)
	assert.NotNil(t, loaded.Jobs)
	assert.Empty(t, loaded.Jobs)
	assert.Empty(t, loaded.Revision)
}

func TestEmptyPlanRoundTrip(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "plan.json"))
	require.NoError(t, manager.Write(types.PlanSnapshot{Revision: "empty"}))

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.NotNil(t, loaded.Jobs)
	assert.Empty(t, loaded.Jobs)
}

func TestVersionMismatch(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "plan.json")
	manager := NewManager(snapshotPath)

	jsonBytes, err := json.Marshal(map[string]interface{}{"jobs": []interface{}{}, "schema_ver": 2})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(snapshotPath, jsonBytes, 0o644))

	_, err = manager.Load()
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestCorrupted(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "plan.json")
	manager := NewManager(snapshotPath)

	corrupted := `{"jobs": [{"machine_id": 1, "part_no": "P-1"`
	require.NoError(t, os.WriteFile(snapshotPath, []byte(corrupted), 0o644))

	_, err := manager.Load()
	assert.ErrorIs(t, err, ErrCorruptedSnapshot)
}

func TestChecksumMismatch(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "plan.json")
	manager := NewManager(snapshotPath)
	require.NoError(t, manager.Write(testPlan("rev", 2)))

	raw, err := os.ReadFile(snapshotPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(raw), `"P-1"`, `"P-9"`, 1)
	require.NotEqual(t, string(raw), tampered)
	require.NoError(t, os.WriteFile(snapshotPath, []byte(tampered), 0o644))

	_, err = manager.Load()
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestChecksum_ReformattedFileStillVerifies(t *testing.T) {
	snapshotPath := filepath.Join(t.TempDir(), "plan.json")
	manager := NewManager(snapshotPath)
	require.NoError(t, manager.Write(testPlan("rev", 2)))

	raw, err := os.ReadFile(snapshotPath)
	require.NoError(t, err)
	// whitespace is not content
	var compact strings.Builder
	require.NoError(t, json.NewEncoder(&compact).Encode(json.RawMessage(raw)))
	require.NoError(t, os.WriteFile(snapshotPath, []byte(compact.String()), 0o644))

	_, err = manager.Load()
	assert.NoError(t, err)
}

func TestWriteFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer os.Chmod(readOnlyDir, 0o755)

	manager := NewManager(filepath.Join(readOnlyDir, "plan.json"))
	assert.Error(t, manager.Write(testPlan("rev", 1)))
}

// ============================================================================
// Backups
// ============================================================================

func TestWriteWithBackup(t *testing.T) {
	tempDir := t.TempDir()
	snapshotPath := filepath.Join(tempDir, "plan.json")
	manager := NewManager(snapshotPath)

	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	manager.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, manager.Write(testPlan("rev-0", 1)))
	for i := 1; i <= 4; i++ {
		require.NoError(t, manager.WriteWithBackup(testPlan(fmt.Sprintf("rev-%d", i), 1), 2))
	}

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, "rev-4", loaded.Revision)

	backups, err := manager.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 2, "older backups are pruned")

	// the newest backup holds the revision written just before the last one
	newest := NewManager(backups[1])
	prev, err := newest.Load()
	require.NoError(t, err)
	assert.Equal(t, "rev-3", prev.Revision)
}

func TestWriteWithBackup_NoExistingFile(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "plan.json"))

	require.NoError(t, manager.WriteWithBackup(testPlan("rev", 1), 3))
	backups, err := manager.Backups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

// ============================================================================
// Larger plans and concurrency
// ============================================================================

func TestLargeSnapshot(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "plan.json"))
	large := testPlan("big", 1000)

	start := time.Now()
	require.NoError(t, manager.Write(large))
	writeDuration := time.Since(start)

	start = time.Now()
	loaded, err := manager.Load()
	require.NoError(t, err)
	loadDuration := time.Since(start)
	t.Logf("write %v, load %v for 1000 jobs", writeDuration, loadDuration)

	assert.Len(t, loaded.Jobs, 1000)
	assert.Less(t, writeDuration, 2*time.Second)
	assert.Less(t, loadDuration, 2*time.Second)
}

func TestConcurrentWrites(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "plan.json"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			assert.NoError(t, manager.Write(testPlan(fmt.Sprintf("rev-%d", index), index)))
		}(i)
	}
	wg.Wait()

	loaded, err := manager.Load()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, loaded.SchemaVer)
	assert.NotNil(t, loaded.Jobs)
}

func TestConcurrentReads(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "plan.json"))
	require.NoError(t, manager.Write(testPlan("rev", 5)))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loaded, err := manager.Load()
			assert.NoError(t, err)
			assert.Len(t, loaded.Jobs, 5)
		}()
	}
	wg.Wait()
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkWrite(b *testing.B) {
	manager := NewManager(filepath.Join(b.TempDir(), "plan.json"))
	data := testPlan("bench", 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = manager.Write(data)
	}
}

func BenchmarkLoad(b *testing.B) {
	manager := NewManager(filepath.Join(b.TempDir(), "plan.json"))
	_ = manager.Write(testPlan("bench", 100))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.Load()
	}
}
