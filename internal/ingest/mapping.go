// Package ingest maps plan workbook rows onto production jobs.
package ingest

import (
	"strings"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

// Workbook column letters.
const (
	ColSequence      = "A"
	ColStart         = "B"
	ColDue           = "C"
	ColCustomer      = "D"
	ColPartNo        = "E"
	ColPartName      = "F"
	ColTotalQuantity = "G"
	ColCycleTime     = "H"
	ColTotalMinutes  = "I"
	ColGrossWeight   = "L"
	ColMaterial      = "M"
	ColMaterialKg    = "N"
	ColPaintCode     = "O"
	ColPaintQuantity = "P"
	ColPaintKg       = "Q"
	ColCavityCount   = "R"
	ColShotCount     = "S"
	ColRunHours      = "V"
	ColDowntime      = "X"
	ColEnd           = "AA"
)

// rawColumns are read as stored values so dates and durations keep their
// serial form instead of a locale-formatted string.
var rawColumns = []string{ColStart, ColDue, ColDowntime, ColEnd}

// mappedColumns is every column MapRow looks at.
var mappedColumns = []string{
	ColSequence, ColStart, ColDue, ColCustomer, ColPartNo, ColPartName,
	ColTotalQuantity, ColCycleTime, ColTotalMinutes, ColGrossWeight,
	ColMaterial, ColMaterialKg, ColPaintCode, ColPaintQuantity, ColPaintKg,
	ColCavityCount, ColShotCount, ColRunHours, ColDowntime, ColEnd,
}

const notAvailable = "#N/A"

// MapRow builds a job from a row keyed by column letter. Rows without a part
// number, or with the lookup error marker in its place, are rejected.
func MapRow(machine types.MachineID, cells map[string]types.RawCell) (types.ProductionJob, bool) {
	partNo := strings.TrimSpace(cells[ColPartNo].String())
	if partNo == "" || partNo == notAvailable {
		return types.ProductionJob{}, false
	}

	text := func(col string) string {
		return strings.TrimSpace(cells[col].String())
	}

	return types.ProductionJob{
		MachineID:      machine,
		SequenceNumber: text(ColSequence),
		StartAt:        cells[ColStart],
		DueAt:          cells[ColDue],
		EndAt:          cells[ColEnd],
		Customer:       text(ColCustomer),
		PartNo:         partNo,
		PartName:       text(ColPartName),
		TotalQuantity:  text(ColTotalQuantity),
		CycleTime:      text(ColCycleTime),
		TotalMinutes:   text(ColTotalMinutes),
		GrossWeight:    text(ColGrossWeight),
		Material:       text(ColMaterial),
		MaterialKg:     text(ColMaterialKg),
		PaintCode:      text(ColPaintCode),
		PaintQuantity:  text(ColPaintQuantity),
		PaintKg:        text(ColPaintKg),
		CavityCount:    text(ColCavityCount),
		ShotCount:      text(ColShotCount),
		RunHours:       text(ColRunHours),
		Downtime:       datetime.NormalizeDuration(cells[ColDowntime]),
	}, true
}
