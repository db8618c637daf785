// Package types defines the core domain model shared across plantrack.
package types

import (
	"time"
)

// MachineID identifies one injection-molding machine.
type MachineID int

// Machine is an entry of the known machine set.
type Machine struct {
	ID      MachineID `yaml:"id" json:"id"`
	Tonnage int       `yaml:"tonnage" json:"tonnage"` // clamping force in tons
	Sheet   string    `yaml:"sheet" json:"sheet"`     // workbook sheet holding this machine's plan
}

// MaintenancePartNo is the part number sentinel of a synthetic maintenance block.
const MaintenancePartNo = "BAKIM"

// ProductionJob is one scheduled unit of work on one machine, as mapped from
// a plan row. Date and duration columns keep their raw cell form; descriptive
// columns are opaque pass-through text.
type ProductionJob struct {
	MachineID      MachineID `json:"machine_id"`
	SequenceNumber string    `json:"sequence_number,omitempty"` // display only, empty when absent

	StartAt RawCell `json:"start_at"` // work-order start
	DueAt   RawCell `json:"due_at"`   // delivery deadline
	EndAt   RawCell `json:"end_at"`   // production end, may be empty

	Customer      string `json:"customer"`
	PartNo        string `json:"part_no"`
	PartName      string `json:"part_name"`
	TotalQuantity string `json:"total_quantity"`
	CycleTime     string `json:"cycle_time"`
	TotalMinutes  string `json:"total_minutes"`
	GrossWeight   string `json:"gross_weight"`
	Material      string `json:"material"`
	MaterialKg    string `json:"material_kg"`
	PaintCode     string `json:"paint_code"`
	PaintQuantity string `json:"paint_quantity"`
	PaintKg       string `json:"paint_kg"`
	CavityCount   string `json:"cavity_count"`
	ShotCount     string `json:"shot_count"`

	RunHours string `json:"run_hours"` // nominal machine run hours, e.g. "8" or "4,5"
	Downtime string `json:"downtime"`  // recorded stoppage as HH:MM:SS
}

// IsMaintenance reports whether the job is a synthetic maintenance block.
func (j ProductionJob) IsMaintenance() bool {
	return j.PartNo == MaintenancePartNo
}

// Instant is an optional point in time. The zero value is unparseable.
type Instant struct {
	At    time.Time
	Valid bool
}

// Unparseable is the absent instant.
var Unparseable = Instant{}

// Parsed wraps a successfully parsed time.
func Parsed(t time.Time) Instant {
	return Instant{At: t, Valid: true}
}

// DowntimeSample is the per-machine loss aggregation.
type DowntimeSample struct {
	MachineID             MachineID `json:"machine_id"`
	RecordedDowntimeHours float64   `json:"recorded_downtime_hours"`
	IdleHours             float64   `json:"idle_hours"`
	TotalLossHours        float64   `json:"total_loss_hours"`
}

// PlanSnapshot is the persisted form of a plan.
type PlanSnapshot struct {
	Jobs      []ProductionJob `json:"jobs"`
	SchemaVer int             `json:"schema_ver"` // bumped on incompatible layout changes
	Revision  string          `json:"revision"`   // changes on every replacement or append
	SavedAt   time.Time       `json:"saved_at"`
	Source    string          `json:"source,omitempty"` // workbook the plan was loaded from
	Checksum  uint32          `json:"checksum"`         // CRC32 over the serialized jobs
}
