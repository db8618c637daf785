package journal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.journal")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func TestAppendAndReplay(t *testing.T) {
	j, _ := openTestJournal(t)

	first, err := j.Append(Event{Type: EventLoad, Revision: "rev-1", Source: "plan.xlsx", Jobs: 12})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Seq)
	assert.NotZero(t, first.Timestamp)
	assert.True(t, VerifyChecksum(first))

	second, err := j.Append(Event{Type: EventMaintenance, Revision: "rev-2", MachineID: 4, Jobs: 13})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.Seq)

	events, err := j.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first, events[0])
	assert.Equal(t, second, events[1])
	assert.Equal(t, 2, j.Len())
	assert.Equal(t, uint64(2), j.LastSeq())
}

func TestReplay_HandlerErrorStops(t *testing.T) {
	j, _ := openTestJournal(t)
	for i := 0; i < 3; i++ {
		_, err := j.Append(Event{Type: EventLoad, Revision: "rev"})
		require.NoError(t, err)
	}

	stop := errors.New("stop")
	seen := 0
	err := j.Replay(func(e Event) error {
		seen++
		if e.Seq == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, seen)
}

func TestOpen_ContinuesNumbering(t *testing.T) {
	j, path := openTestJournal(t)
	_, err := j.Append(Event{Type: EventLoad, Revision: "rev-1"})
	require.NoError(t, err)
	_, err = j.Append(Event{Type: EventLoad, Revision: "rev-2"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(2), reopened.LastSeq())
	assert.Equal(t, 2, reopened.Len())
	e, err := reopened.Append(Event{Type: EventLoad, Revision: "rev-3"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), e.Seq)
}

func TestReplay_ChecksumMismatch(t *testing.T) {
	j, path := openTestJournal(t)
	_, err := j.Append(Event{Type: EventLoad, Revision: "rev-1", Jobs: 5})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"jobs":5`, `"jobs":6`, 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o644))

	_, err = j.Events()
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	var checksumErr *ChecksumError
	require.True(t, errors.As(err, &checksumErr))
	assert.Equal(t, uint64(1), checksumErr.Seq)
}

func TestOpen_MovesDamagedFileAside(t *testing.T) {
	j, path := openTestJournal(t)
	_, err := j.Append(Event{Type: EventLoad, Revision: "rev-1"})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":2,"type":"LO`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = replayAll(path)
	assert.ErrorIs(t, err, ErrCorruptedJournal)

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint64(1), reopened.LastSeq(), "numbering continues from the last good record")
	assert.Equal(t, 0, reopened.Len())

	damaged, err := filepath.Glob(path + ".damaged-*")
	require.NoError(t, err)
	assert.Len(t, damaged, 1)

	e, err := reopened.Append(Event{Type: EventLoad, Revision: "rev-2"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Seq)
}

func TestRotate(t *testing.T) {
	j, path := openTestJournal(t)
	j.now = func() time.Time { return time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC) }

	_, err := j.Append(Event{Type: EventLoad, Revision: "rev-1"})
	require.NoError(t, err)

	rotated, err := j.Rotate()
	require.NoError(t, err)
	assert.Equal(t, path+".20240605_090000.000000000", rotated)
	assert.Equal(t, 0, j.Len())

	events, err := j.Events()
	require.NoError(t, err)
	assert.Empty(t, events)

	e, err := j.Append(Event{Type: EventLoad, Revision: "rev-2"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.Seq, "numbering survives rotation")
	require.NoError(t, j.Close())

	// a fresh file after rotation still continues from the rotated one
	require.NoError(t, os.Truncate(path, 0))
	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(1), reopened.LastSeq())

	list, err := Rotated(path)
	require.NoError(t, err)
	assert.Equal(t, []string{rotated}, list)
}

func TestClosedJournal(t *testing.T) {
	j, _ := openTestJournal(t)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "closing twice is a no-op")

	_, err := j.Append(Event{Type: EventLoad})
	assert.ErrorIs(t, err, ErrJournalClosed)
	_, err = j.Events()
	assert.ErrorIs(t, err, ErrJournalClosed)
	_, err = j.Rotate()
	assert.ErrorIs(t, err, ErrJournalClosed)
}

func TestChecksumCoversFields(t *testing.T) {
	base := Event{Seq: 1, Type: EventLoad, Revision: "r", Source: "s", Jobs: 3, Timestamp: 1000}
	sum := CalculateChecksum(base)

	changed := base
	changed.Source = "t"
	assert.NotEqual(t, sum, CalculateChecksum(changed))

	changed = base
	changed.MachineID = 2
	assert.NotEqual(t, sum, CalculateChecksum(changed))
}

func replayAll(path string) ([]Event, error) {
	var events []Event
	err := replay(path, func(e Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}
