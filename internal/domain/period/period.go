// Package period converts provider period encodings into calendar dates
// and display labels.
//
// Providers encode observation periods in several shapes: ISO monthly
// ("2024-05" or SDMX "2024-M05"), quarterly ("2024-Q2"), half-yearly
// ("2024-H1"), and annual ("2024" or "2024-A"). Every shape maps to a
// date pinned to the first day of the period plus a human-readable label
// that is part of the release identity key. Labels use English month
// names so they never depend on locale-sensitive formatting.
package period

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date shape used across the
// pipeline.
const DateLayout = "2006-01-02"

var (
	monthRe   = regexp.MustCompile(`^(\d{4})-M?(\d{2})$`)
	quarterRe = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)
	halfRe    = regexp.MustCompile(`^(\d{4})-H([1-2])$`)
	annualRe  = regexp.MustCompile(`^(\d{4})(-A)?$`)
)

// Parse converts a provider period code into the first day of the period
// and a display label. Codes are matched case-sensitively; providers emit
// uppercase frequency letters.
func Parse(code string) (time.Time, string, error) {
	code = strings.TrimSpace(code)

	if m := monthRe.FindStringSubmatch(code); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return time.Time{}, "", fmt.Errorf("period: month out of range in %q", code)
		}
		d := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		return d, fmt.Sprintf("%s %d", d.Month().String(), year), nil
	}

	if m := quarterRe.FindStringSubmatch(code); m != nil {
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		d := time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return d, fmt.Sprintf("Q%d %d", q, year), nil
	}

	if m := halfRe.FindStringSubmatch(code); m != nil {
		year, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		d := time.Date(year, time.Month((h-1)*6+1), 1, 0, 0, 0, 0, time.UTC)
		return d, fmt.Sprintf("H%d %d", h, year), nil
	}

	if m := annualRe.FindStringSubmatch(code); m != nil {
		year, _ := strconv.Atoi(m[1])
		d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return d, strconv.Itoa(year), nil
	}

	return time.Time{}, "", fmt.Errorf("period: unrecognized code %q", code)
}

// LabelForDate derives a display label from a date already pinned to the
// first day of a period, given the series frequency ("monthly",
// "quarterly", "semiannual", "annual"). Used by clients whose payloads
// carry plain dates instead of period codes.
func LabelForDate(d time.Time, frequency string) string {
	switch strings.ToLower(frequency) {
	case "quarterly":
		q := (int(d.Month())-1)/3 + 1
		return fmt.Sprintf("Q%d %d", q, d.Year())
	case "semiannual":
		h := (int(d.Month())-1)/6 + 1
		return fmt.Sprintf("H%d %d", h, d.Year())
	case "annual":
		return strconv.Itoa(d.Year())
	default:
		return fmt.Sprintf("%s %d", d.Month().String(), d.Year())
	}
}
