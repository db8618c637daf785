// ============================================================================
// plantrack date/time normalizer
// ============================================================================
//
// Package: internal/datetime
// File: parser.go
// Purpose: Turns spreadsheet cells of unknown shape into instants.
//
// Accepted shapes, in priority order:
//   1. Native date cells, returned unchanged
//   2. Numbers, re-attempted as their text form
//   3. Day-first text: D.M.Y, D/M/Y or D-M-Y with an optional H:M[:S] token
//   4. Spreadsheet serial day numbers (45292.5 = 2024-01-01 12:00)
//   5. ISO-like text
//
// Nothing here returns an error. An unparseable cell is a normal outcome and
// callers exclude it from time-based aggregation.
//
// ============================================================================

package datetime

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ChuLiYu/plantrack/pkg/types"
)

// serialEpoch is day zero of the spreadsheet serial calendar. 25569 serial
// days separate it from 1970-01-01.
var serialEpoch = struct{ year, month, day int }{1899, 12, 30}

var dayFirstPattern = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})$`)

// fallbackLayouts are tried when the text is neither day-first nor a serial.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parser resolves cells into instants in a fixed location. Wall-clock values
// (day-first text, serials) are interpreted in Location.
type Parser struct {
	Location *time.Location
}

// NewParser returns a parser for loc; nil means time.Local.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{Location: loc}
}

func (p *Parser) loc() *time.Location {
	if p == nil || p.Location == nil {
		return time.Local
	}
	return p.Location
}

// ParseInstant resolves a cell. The result is types.Unparseable for empty or
// malformed input.
func (p *Parser) ParseInstant(cell types.RawCell) types.Instant {
	switch cell.Kind {
	case types.CellDate:
		return types.Parsed(cell.Date)
	case types.CellNumber:
		if math.IsNaN(cell.Number) || math.IsInf(cell.Number, 0) {
			return types.Unparseable
		}
		return p.ParseText(strconv.FormatFloat(cell.Number, 'f', -1, 64))
	case types.CellText:
		return p.ParseText(cell.Text)
	}
	return types.Unparseable
}

// ParseText resolves free text.
func (p *Parser) ParseText(text string) types.Instant {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Unparseable
	}

	fields := strings.Fields(text)
	m := dayFirstPattern.FindStringSubmatch(fields[0])
	if m == nil {
		if t, ok := p.parseSerial(text); ok {
			return types.Parsed(t)
		}
		return p.parseLayouts(text)
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 100 {
		year += 2000
	}
	if year < 1900 || month < 1 || month > 12 || day < 1 || day > 31 {
		return types.Unparseable
	}

	var hour, minute, second int
	if len(fields) > 1 && strings.Contains(fields[1], ":") {
		hour, minute, second = parseClock(fields[1])
	}

	return types.Parsed(time.Date(year, time.Month(month), day, hour, minute, second, 0, p.loc()))
}

// parseClock reads H:M[:S]. A malformed component resets the clock to midnight.
func parseClock(token string) (hour, minute, second int) {
	parts := strings.Split(token, ":")
	vals := make([]int, 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		if parts[i] == "" {
			continue
		}
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 {
			return 0, 0, 0
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2]
}

// parseSerial interprets the whole text as a positive serial day number. The
// serial is a wall-clock value, so it is laid out in the parser's location
// rather than UTC.
func (p *Parser) parseSerial(text string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(text, 64)
	if err != nil || serial <= 0 || math.IsInf(serial, 0) || math.IsNaN(serial) {
		return time.Time{}, false
	}
	// beyond year 9999 in serial days
	if serial > 2958465 {
		return time.Time{}, false
	}

	days := math.Floor(serial)
	millis := int(math.Round((serial - days) * 86400 * 1000))

	return time.Date(serialEpoch.year, time.Month(serialEpoch.month), serialEpoch.day+int(days),
		0, 0, 0, millis*int(time.Millisecond), p.loc()), true
}

func (p *Parser) parseLayouts(text string) types.Instant {
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, text, p.loc()); err == nil {
			return types.Parsed(t)
		}
	}
	return types.Unparseable
}

// ParseHours reads a nominal run-hours figure. A decimal comma is accepted.
// Only finite, strictly positive values are valid.
func ParseHours(s string) (float64, bool) {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// AddHours adds a fractional number of hours to t.
func AddHours(t time.Time, hours float64) time.Time {
	return t.Add(time.Duration(math.Round(hours * float64(time.Hour))))
}
