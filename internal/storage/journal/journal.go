package journal

// ============================================================================
// Plan change journal
// Responsibilities:
// 1. Append plan change events to a JSON-lines file (append-only)
// 2. Replay them with checksum verification for the history view
// 3. Rotate the file while keeping sequence numbers increasing
// ============================================================================

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const rotateLayout = "20060102_150405.000000000"

// Journal is an append-only log of plan changes.
type Journal struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	path    string
	seq     uint64
	count   int // events in the current file
	closed  bool
	now     func() time.Time
}

// Open creates or opens the journal at path. Numbering continues from the
// last good record of the file or, when the file is empty, of the newest
// rotated file. A damaged file is moved aside to path.damaged-<time> and a
// fresh one is started.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: failed to create directory: %w", err)
	}

	seq, count, damaged, err := scan(path)
	if err != nil {
		return nil, err
	}
	if damaged {
		aside := path + ".damaged-" + time.Now().Format(rotateLayout)
		if err := os.Rename(path, aside); err != nil {
			return nil, fmt.Errorf("journal: failed to move damaged file aside: %w", err)
		}
		slog.Warn("Damaged journal moved aside", "path", aside, "last_seq", seq)
		count = 0
	}
	if seq == 0 {
		if rotated, _ := Rotated(path); len(rotated) > 0 {
			seq, _, _, _ = scan(rotated[len(rotated)-1])
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: failed to open: %w", err)
	}

	return &Journal{
		file:    file,
		encoder: json.NewEncoder(file),
		path:    path,
		seq:     seq,
		count:   count,
		now:     time.Now,
	}, nil
}

// Append assigns the next sequence number, stamps and checksums e, and
// writes it through to disk. The stored event is returned.
func (j *Journal) Append(e Event) (Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return Event{}, ErrJournalClosed
	}

	e.Seq = j.seq + 1
	if e.Timestamp == 0 {
		e.Timestamp = j.now().UnixMilli()
	}
	e.Checksum = CalculateChecksum(e)

	if err := j.encoder.Encode(e); err != nil {
		return Event{}, fmt.Errorf("journal: append failed at seq=%d: %w", e.Seq, err)
	}
	if err := j.file.Sync(); err != nil {
		return Event{}, fmt.Errorf("journal: sync failed at seq=%d: %w", e.Seq, err)
	}
	j.seq = e.Seq
	j.count++
	return e, nil
}

// Replay reads the current file from the start, verifies every record and
// hands it to handler. It stops at the first bad record or handler error.
func (j *Journal) Replay(handler EventHandler) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrJournalClosed
	}
	return replay(j.path, handler)
}

// Events returns every event in the current file.
func (j *Journal) Events() ([]Event, error) {
	var events []Event
	err := j.Replay(func(e Event) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

// Rotate moves the current file aside under a timestamped name and starts a
// new one. Numbering continues. The rotated path is returned.
func (j *Journal) Rotate() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return "", ErrJournalClosed
	}
	if err := j.file.Close(); err != nil {
		return "", err
	}

	backupPath := j.path + "." + j.now().Format(rotateLayout)
	if err := os.Rename(j.path, backupPath); err != nil {
		return "", err
	}

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		j.closed = true
		return "", fmt.Errorf("journal: failed to reopen after rotation: %w", err)
	}
	j.file = file
	j.encoder = json.NewEncoder(file)
	j.count = 0
	return backupPath, nil
}

// Close closes the journal. A closed journal must not be reused.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.file.Close()
}

// LastSeq returns the sequence number of the last appended event.
func (j *Journal) LastSeq() uint64 {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Len returns the number of events in the current file.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count
}

// GetPath returns the journal file path.
func (j *Journal) GetPath() string {
	return j.path
}

// ============================================================================
// Internal helpers
// ============================================================================

func replay(path string, handler EventHandler) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var last uint64
	for {
		offset := decoder.InputOffset()
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				return nil
			}
			return &CorruptionError{AfterSeq: last, Offset: offset, Cause: err}
		}
		if expected := CalculateChecksum(event); expected != event.Checksum {
			return &ChecksumError{Seq: event.Seq, Expected: expected, Actual: event.Checksum}
		}
		if err := handler(event); err != nil {
			return err
		}
		last = event.Seq
	}
}

// Rotated lists the rotated files of the journal at path, oldest first.
func Rotated(path string) ([]string, error) {
	matches, err := filepath.Glob(path + ".2*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// scan finds the last good sequence number and the number of good records
// of path, and reports whether a bad record follows them.
func scan(path string) (seq uint64, count int, damaged bool, err error) {
	err = replay(path, func(e Event) error {
		seq = e.Seq
		count++
		return nil
	})
	if errors.Is(err, ErrCorruptedJournal) || errors.Is(err, ErrChecksumMismatch) {
		return seq, count, true, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("journal: failed to scan: %w", err)
	}
	return seq, count, false, nil
}
