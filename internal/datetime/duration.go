package datetime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ChuLiYu/plantrack/pkg/types"
)

var (
	clockPattern      = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})\s*([AaPp][Mm])?$`)
	normalizedPattern = regexp.MustCompile(`^\d+:\d{2}:\d{2}$`)
)

// NormalizeDuration renders a downtime cell as HH:MM:SS. Text that matches
// none of the known shapes is returned unchanged so it is never lost;
// DurationToHours later reads it as zero.
func NormalizeDuration(cell types.RawCell) string {
	switch cell.Kind {
	case types.CellEmpty:
		return ""
	case types.CellDate:
		return cell.Date.Format("15:04:05")
	case types.CellNumber:
		if s, ok := fractionToClock(cell.Number); ok {
			return s
		}
		return cell.String()
	}

	text := strings.TrimSpace(cell.Text)
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		switch strings.ToLower(m[4]) {
		case "pm":
			if h < 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		}
		return fmt.Sprintf("%02d:%s:%s", h, m[2], m[3])
	}

	if normalizedPattern.MatchString(text) {
		return text
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		if s, ok := fractionToClock(f); ok {
			return s
		}
	}
	return cell.Text
}

// fractionToClock converts a day fraction in [0, 1) to HH:MM:SS.
func fractionToClock(f float64) (string, bool) {
	if math.IsNaN(f) || f < 0 || f >= 1 {
		return "", false
	}
	total := int(math.Round(f * 86400))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60), true
}

// DurationToHours converts HH:MM:SS to fractional hours. Every other input,
// including negative or non-finite components, yields 0.
func DurationToHours(s string) float64 {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0
	}

	var vals [3]float64
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		vals[i] = v
	}

	hours := vals[0] + vals[1]/60 + vals[2]/3600
	if math.IsInf(hours, 0) {
		return 0
	}
	return hours
}
