// Package sources contains the provider clients that feed the import
// pipeline: a FRED-style bulk-history client, an SDMX-JSON statistics
// agency client, and scraped HTML calendar clients. Each client owns its
// throttle state and maps provider payloads onto canonical records.
package sources

import (
	"context"
	"time"

	"github.com/macrofeed/macrofeed/internal/domain/model"
)

// SeriesRef identifies one fetchable series after catalog resolution.
type SeriesRef struct {
	ID        string // provider series id (or flow/key for SDMX)
	Name      string
	Country   string // ISO-3166 alpha-2
	Category  string
	Frequency string // monthly, quarterly, semiannual, annual
}

// Month identifies one calendar-month fetch unit.
type Month struct {
	Year  int
	Month time.Month
}

// String renders the unit identity used in error reports, e.g. "2024-05".
func (m Month) String() string {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// ObservationSource fetches historical indicator readings.
type ObservationSource interface {
	Name() string
	FetchObservations(ctx context.Context, ref SeriesRef, start, end time.Time) ([]model.Observation, error)
}

// EventSource fetches scheduled or occurred release events.
type EventSource interface {
	Name() string
	FetchMonth(ctx context.Context, m Month) ([]model.CalendarEvent, error)
}

// Source names, also used as source-priority keys.
const (
	NameFRED              = "fred"
	NameSDMX              = "sdmx"
	NameCalendarPrimary   = "calendar"
	NameCalendarSecondary = "calendar-fallback"
)

// priorities ranks providers for cross-source merges. Higher wins ties.
var priorities = map[string]int{
	NameCalendarSecondary: 1,
	NameCalendarPrimary:   2,
	NameSDMX:              3,
	NameFRED:              4,
}

// Priority returns the fixed ranking for a source name; unknown sources
// rank lowest.
func Priority(name string) int {
	return priorities[name]
}
