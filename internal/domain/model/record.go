// Package model contains domain models passed between layers.
package model

import "time"

// MissingValue is the canonical missing-value sentinel shared by all
// providers after normalization. Source clients map provider-specific
// sentinels (".", "-", null) onto it.
const MissingValue = "."

// Impact classifies how market-moving a calendar event is expected to be.
type Impact string

// Impact levels, lowest to highest.
const (
	ImpactLow    Impact = "Low"
	ImpactMedium Impact = "Medium"
	ImpactHigh   Impact = "High"
)

// Observation is one historical indicator reading as fetched from a
// bulk-history provider. Value keeps the provider's original numeric
// string; parsing happens during validation. Immutable once created.
type Observation struct {
	Date              string // YYYY-MM-DD, first day of the period
	Value             string // original numeric string or MissingValue
	Period            string // display label, e.g. "Q2 2024"
	SourceIndicatorID string // provider's series id
	CountryCode       string // ISO-3166 alpha-2, may be empty
}

// CalendarEvent is a scheduled or occurred release from a calendar-style
// provider.
type CalendarEvent struct {
	Country    string
	EventName  string
	Date       string // YYYY-MM-DD
	Time       string // HH:MM, provider-local, may be empty
	Impact     Impact
	Category   string
	SourceLink string
}

// Indicator is a named economic series tracked for one country. Rows are
// created lazily on first sight of a (name, country) pair and reused by
// every subsequent import run; this subsystem never deletes them.
type Indicator struct {
	ID          string
	Name        string
	CountryCode string
	Category    string
	SourceName  string
	SourceURL   string
}

// Release is one dated reading of an indicator. The identity key for
// reconciliation and deduplication is (IndicatorID, ReleaseAt, Period):
// all three must match for two records to be the same release. Mutable
// fields are updated in place; a key is never inserted twice.
type Release struct {
	ID          string
	IndicatorID string
	ReleaseAt   time.Time
	Period      string
	Actual      string
	Forecast    string
	Previous    string
	Unit        string
	Notes       string
}

// Key returns the release identity key.
func (r Release) Key() ReleaseKey {
	return ReleaseKey{IndicatorID: r.IndicatorID, ReleaseAt: r.ReleaseAt, Period: r.Period}
}

// ReleaseKey is the composite identity of a Release.
type ReleaseKey struct {
	IndicatorID string
	ReleaseAt   time.Time
	Period      string
}

// ValidationResult is a per-record judgment. Never persisted.
type ValidationResult struct {
	Valid  bool
	Reason string // set when Valid is false, names the failed check
}

// ScheduleChangeType enumerates detected release-schedule changes.
type ScheduleChangeType string

// Schedule change kinds. This subsystem emits New and TimeChanged;
// DateChanged and Cancelled are reserved for a wider schedule diff.
const (
	ScheduleNew         ScheduleChangeType = "new"
	ScheduleTimeChanged ScheduleChangeType = "time_changed"
	ScheduleDateChanged ScheduleChangeType = "date_changed"
	ScheduleCancelled   ScheduleChangeType = "cancelled"
)

// ScheduleChange is a derived fact emitted when an event's expected
// timestamp differs from what is already stored for the same day.
// Transient, scoped to one import run.
type ScheduleChange struct {
	IndicatorID string
	ChangeType  ScheduleChangeType
	OldValue    string
	NewValue    string
	ReleaseID   string
}

// UnitError records one failed import unit (a series, a country, or a
// year-month) with enough identity to be actionable from the summary.
type UnitError struct {
	Source string
	Unit   string
	Err    string
}

// ImportResult is the summary of one import run. Built incrementally by
// the orchestrator, immutable once returned.
type ImportResult struct {
	Source              string
	UnitsAttempted      int
	UnitsSucceeded      int
	UnitsFailed         int
	RecordsSeen         int
	Inserted            int
	Updated             int
	Skipped             int
	SkipReasons         map[string]int
	Duplicates          int
	Outliers            int
	ScheduleChanges     []ScheduleChange // display-capped; ScheduleChangeCount is not
	ScheduleChangeCount int
	Errors              []UnitError
	StartedAt           time.Time
	FinishedAt          time.Time
}
