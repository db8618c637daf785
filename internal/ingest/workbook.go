package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

var (
	// ErrUnreadableWorkbook wraps failures to open or read the workbook file.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
)

// SheetStats summarizes one machine sheet.
type SheetStats struct {
	Sheet       string          `json:"sheet"`
	MachineID   types.MachineID `json:"machine_id"`
	Rows        int             `json:"rows"`
	Accepted    int             `json:"accepted"`
	Rejected    int             `json:"rejected"`
	Unparseable int             `json:"unparseable"` // accepted rows with an unreadable start
}

// Result is the outcome of reading a workbook.
type Result struct {
	Jobs    []types.ProductionJob `json:"jobs"`
	Sheets  []SheetStats          `json:"sheets"`
	Missing []string              `json:"missing,omitempty"`
}

// ReadWorkbook reads every catalog machine's sheet. The first row of each
// sheet is a header and is skipped. Jobs are returned in catalog order, then
// row order.
func ReadWorkbook(path string, catalog *schedule.Catalog, parser *datetime.Parser) (Result, error) {
	if catalog == nil {
		catalog = schedule.DefaultCatalog()
	}
	if parser == nil {
		parser = datetime.NewParser(nil)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrUnreadableWorkbook, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close workbook", "path", path, "error", cerr)
		}
	}()

	columns, err := columnIndexes()
	if err != nil {
		return Result{}, err
	}

	present := make(map[string]bool)
	for _, name := range f.GetSheetList() {
		present[name] = true
	}

	result := Result{Jobs: []types.ProductionJob{}}
	for _, m := range catalog.Machines() {
		if !present[m.Sheet] {
			slog.Warn("machine sheet missing from workbook", "sheet", m.Sheet, "machine", m.ID)
			result.Missing = append(result.Missing, m.Sheet)
			continue
		}

		jobs, stats, err := readSheet(f, m, columns, parser)
		if err != nil {
			return Result{}, fmt.Errorf("%w: sheet %q: %v", ErrUnreadableWorkbook, m.Sheet, err)
		}
		slog.Debug("sheet read", "sheet", m.Sheet, "rows", stats.Rows,
			"accepted", stats.Accepted, "rejected", stats.Rejected)
		result.Jobs = append(result.Jobs, jobs...)
		result.Sheets = append(result.Sheets, stats)
	}

	slog.Info("workbook loaded", "path", path, "jobs", len(result.Jobs), "missing_sheets", len(result.Missing))
	return result, nil
}

func readSheet(f *excelize.File, m types.Machine, columns map[string]int, parser *datetime.Parser) ([]types.ProductionJob, SheetStats, error) {
	stats := SheetStats{Sheet: m.Sheet, MachineID: m.ID}

	formatted, err := f.GetRows(m.Sheet)
	if err != nil {
		return nil, stats, err
	}
	raw, err := f.GetRows(m.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, stats, err
	}

	var jobs []types.ProductionJob
	for r := 1; r < len(formatted); r++ {
		var rawRow []string
		if r < len(raw) {
			rawRow = raw[r]
		}
		cells := rowCells(formatted[r], rawRow, columns)
		if len(cells) == 0 {
			// blank spacer row
			continue
		}
		stats.Rows++

		job, ok := MapRow(m.ID, cells)
		if !ok {
			stats.Rejected++
			continue
		}
		stats.Accepted++
		if !parser.ParseInstant(job.StartAt).Valid {
			stats.Unparseable++
		}
		jobs = append(jobs, job)
	}
	return jobs, stats, nil
}

// rowCells picks the mapped columns out of a row. Raw columns prefer the
// stored value; everything else takes the formatted text.
func rowCells(formatted, raw []string, columns map[string]int) map[string]types.RawCell {
	cells := make(map[string]types.RawCell, len(columns))
	for col, idx := range columns {
		var cell types.RawCell
		if isRawColumn(col) {
			cell = rawCell(at(raw, idx))
			if cell.IsEmpty() {
				cell = textCell(at(formatted, idx))
			}
		} else {
			cell = textCell(at(formatted, idx))
		}
		if !cell.IsEmpty() {
			cells[col] = cell
		}
	}
	return cells
}

func columnIndexes() (map[string]int, error) {
	out := make(map[string]int, len(mappedColumns))
	for _, col := range mappedColumns {
		n, err := excelize.ColumnNameToNumber(col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		out[col] = n - 1
	}
	return out, nil
}

func isRawColumn(col string) bool {
	for _, c := range rawColumns {
		if c == col {
			return true
		}
	}
	return false
}

func at(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// rawCell types a stored value: numbers become number cells so serial dates
// and day fractions survive, anything else stays text.
func rawCell(v string) types.RawCell {
	v = strings.TrimSpace(v)
	if v == "" {
		return types.RawCell{}
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return types.NumberCell(n)
	}
	return types.TextCell(v)
}

func textCell(v string) types.RawCell {
	if strings.TrimSpace(v) == "" {
		return types.RawCell{}
	}
	return types.TextCell(v)
}
