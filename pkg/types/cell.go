package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellKind tags the shape of a spreadsheet value.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
	CellDate
)

// RawCell is an untyped spreadsheet value: text, number or native date.
type RawCell struct {
	Kind   CellKind
	Text   string
	Number float64
	Date   time.Time
}

func TextCell(s string) RawCell { return RawCell{Kind: CellText, Text: s} }
func NumberCell(f float64) RawCell { return RawCell{Kind: CellNumber, Number: f} }
func DateCell(t time.Time) RawCell { return RawCell{Kind: CellDate, Date: t} }

// IsEmpty reports whether the cell carries no value. Blank text counts as empty.
func (c RawCell) IsEmpty() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	}
	return false
}

// String renders the cell as display text.
func (c RawCell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return c.Date.Format(time.RFC3339)
	}
	return ""
}

type dateCellJSON struct {
	Date string `json:"date"`
}

// MarshalJSON keeps the variant tag recoverable: dates are wrapped in an
// object so they are not confused with text.
func (c RawCell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellText:
		return json.Marshal(c.Text)
	case CellNumber:
		return json.Marshal(c.Number)
	case CellDate:
		return json.Marshal(dateCellJSON{Date: c.Date.Format(time.RFC3339Nano)})
	}
	return []byte("null"), nil
}

func (c *RawCell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = RawCell{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextCell(s)
	case '{':
		var d dateCellJSON
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, d.Date)
		if err != nil {
			return fmt.Errorf("invalid date cell %q: %w", d.Date, err)
		}
		*c = DateCell(t)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*c = NumberCell(f)
	}
	return nil
}
