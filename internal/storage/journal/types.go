package journal

import "github.com/ChuLiYu/plantrack/pkg/types"

// ============================================================================
// Journal Type Definitions
// Responsibility: Define the records of the plan change journal
// ============================================================================

// EventType defines journal event types
type EventType string

const (
	EventLoad        EventType = "LOAD"        // Plan replaced from a workbook
	EventMaintenance EventType = "MAINTENANCE" // Maintenance block appended
)

// Event is one plan change.
type Event struct {
	Seq       uint64          `json:"seq"`                  // monotonically increasing across rotations
	Type      EventType       `json:"type"`                 // event type
	Revision  string          `json:"revision"`             // plan revision after the change
	Source    string          `json:"source,omitempty"`     // workbook the plan came from
	MachineID types.MachineID `json:"machine_id,omitempty"` // target of a maintenance event
	Jobs      int             `json:"jobs"`                 // plan size after the change
	Timestamp int64           `json:"timestamp"`            // Unix millisecond timestamp
	Checksum  uint32          `json:"checksum"`             // CRC32 over the other fields
}

// EventHandler is called for every event during Replay. A non-nil error
// stops the replay.
type EventHandler func(event Event) error
