// Package dedupe collapses records that share a composite identity key.
//
// The fold is last-write-wins: on a key collision the later record in
// iteration order overwrites the earlier one and the collision is
// counted. Cross-source merges stable-sort by ascending source priority
// first, so the fold leaves the highest-priority record per key.
package dedupe

import (
	"regexp"
	"sort"
	"strings"

	"github.com/macrofeed/macrofeed/internal/domain/model"
)

// Deduplicate folds records into an ordered map keyed by keyFn. The
// returned slice preserves first-seen key order while each key holds the
// last record that produced it.
func Deduplicate[T any](records []T, keyFn func(T) string) ([]T, int) {
	index := make(map[string]int, len(records))
	unique := make([]T, 0, len(records))
	duplicates := 0

	for _, rec := range records {
		key := keyFn(rec)
		if at, seen := index[key]; seen {
			unique[at] = rec
			duplicates++
			continue
		}
		index[key] = len(unique)
		unique = append(unique, rec)
	}
	return unique, duplicates
}

// MergeBySourcePriority collapses records from multiple sources onto one
// record per key, letting higher-priority sources win ties. The sort is
// stable and ascending, so within one source the later record still wins
// the last-write-wins fold.
func MergeBySourcePriority[T any](records []T, keyFn func(T) string, priorityFn func(T) int) ([]T, int) {
	ordered := make([]T, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priorityFn(ordered[i]) < priorityFn(ordered[j])
	})
	return Deduplicate(ordered, keyFn)
}

// adjustmentSuffixes are statistical-adjustment qualifiers stripped from
// event names so that superficially different labels for the same
// release collapse to one key.
var adjustmentSuffixes = map[string]struct{}{
	"yoy":         {},
	"mom":         {},
	"qoq":         {},
	"sa":          {},
	"nsa":         {},
	"final":       {},
	"preliminary": {},
	"flash":       {},
	"revised":     {},
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeEventName lowercases, collapses whitespace and punctuation,
// and strips adjustment suffix tokens. "US: CPI (YoY)" and "US: CPI YoY"
// normalize to the same string.
func NormalizeEventName(name string) string {
	lowered := nonAlnumRe.ReplaceAllString(strings.ToLower(name), " ")
	fields := strings.Fields(lowered)
	kept := fields[:0]
	for _, f := range fields {
		if _, drop := adjustmentSuffixes[f]; drop {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// EventKey is the identity key for calendar events:
// country + normalized event name + date.
func EventKey(e model.CalendarEvent) string {
	return e.Country + "|" + NormalizeEventName(e.EventName) + "|" + e.Date
}
