// Package repository defines the record store interface and errors.
//
// The store holds Indicator and Release rows. Release identity is the
// (IndicatorID, ReleaseAt, Period) triple; callers never insert a second
// row for an existing key.
package repository

import (
	"context"
	"time"

	"github.com/macrofeed/macrofeed/internal/domain/model"
)

// ReleaseFields carries the mutable fields of a Release for updates.
// Nil pointers leave the stored value untouched.
type ReleaseFields struct {
	Actual    *string
	Forecast  *string
	Previous  *string
	Unit      *string
	Notes     *string
	ReleaseAt *time.Time // set to move a release's timestamp (schedule change)
}

// RecordStore provides queryable access to persisted indicators and
// releases. Implementations must distinguish not-found from other
// failures via ErrNotFound.
type RecordStore interface {
	// GetIndicator looks up an indicator by (name, countryCode).
	// Returns ErrNotFound when the pair is unknown.
	GetIndicator(ctx context.Context, name, countryCode string) (model.Indicator, error)

	// CreateIndicator persists a new indicator and returns it with its
	// assigned ID.
	CreateIndicator(ctx context.Context, ind model.Indicator) (model.Indicator, error)

	// FindReleases resolves a chunk of identity keys in one filtered
	// query. Keys with no stored release are simply absent from the
	// result; this is not an error.
	FindReleases(ctx context.Context, keys []model.ReleaseKey) ([]model.Release, error)

	// FindReleasesByDay returns the releases stored for an indicator on
	// one calendar day with the given period label, regardless of the
	// time of day. Used for schedule-change detection.
	FindReleasesByDay(ctx context.Context, indicatorID string, day time.Time, periodLabel string) ([]model.Release, error)

	// InsertReleases persists a batch of new releases.
	InsertReleases(ctx context.Context, releases []model.Release) error

	// UpdateRelease mutates the stored release matching key. Returns
	// ErrNotFound when the key does not exist.
	UpdateRelease(ctx context.Context, key model.ReleaseKey, fields ReleaseFields) error
}
