package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/macrofeed/macrofeed/internal/adapters/repository"
	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/internal/domain/period"
	"github.com/macrofeed/macrofeed/pkg/logger"
	"github.com/macrofeed/macrofeed/pkg/metrics"
)

// SeriesMeta describes the indicator a batch of observations belongs to.
type SeriesMeta struct {
	Name       string
	Country    string
	Category   string
	SourceName string
	SourceURL  string
}

// Outcome summarizes one reconciliation pass.
type Outcome struct {
	Inserted int
	Updated  int
	Changes  []model.ScheduleChange
	Errors   []model.UnitError
}

// Reconciler resolves canonical records against the record store. One
// reconciler serves one import run; the indicator cache is scoped to it.
// No transaction spans a run: writes follow the minimal-risk order
// (indicator before release, insert before schedule-change bookkeeping)
// and a rerun converges idempotently through the release identity key.
type Reconciler struct {
	store             repository.RecordStore
	lookupChunkSize   int
	insertBatchSize   int
	updateConcurrency int
	logger            logger.Logger

	// indicators caches (name|country) -> Indicator to avoid repeated
	// store lookups within a run.
	indicators map[string]model.Indicator
}

// New constructs a Reconciler over a record store.
func New(store repository.RecordStore, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:             store,
		lookupChunkSize:   defaultLookupChunkSize,
		insertBatchSize:   defaultInsertBatchSize,
		updateConcurrency: defaultUpdateConcurrency,
		indicators:        make(map[string]model.Indicator),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	return r
}

// indicatorFor resolves the owning indicator for (name, country),
// creating it on first sight and caching it for the rest of the run.
func (r *Reconciler) indicatorFor(ctx context.Context, meta SeriesMeta) (model.Indicator, error) {
	cacheKey := meta.Name + "|" + meta.Country
	if ind, ok := r.indicators[cacheKey]; ok {
		return ind, nil
	}

	ind, err := r.store.GetIndicator(ctx, meta.Name, meta.Country)
	if errors.Is(err, repository.ErrNotFound) {
		ind, err = r.store.CreateIndicator(ctx, model.Indicator{
			Name:        meta.Name,
			CountryCode: meta.Country,
			Category:    meta.Category,
			SourceName:  meta.SourceName,
			SourceURL:   meta.SourceURL,
		})
		if err == nil {
			r.logger.Debug(ctx, "created indicator",
				logger.String("name", meta.Name),
				logger.String("country", meta.Country),
			)
		}
	}
	if err != nil {
		return model.Indicator{}, fmt.Errorf("resolve indicator %s/%s: %w", meta.Name, meta.Country, err)
	}

	r.indicators[cacheKey] = ind
	return ind, nil
}

// Observations reconciles a validated observation batch for one series.
// Existing keys become updates of the mutable fields; missing keys become
// batched inserts.
func (r *Reconciler) Observations(ctx context.Context, meta SeriesMeta, observations []model.Observation) (Outcome, error) {
	var out Outcome
	if len(observations) == 0 {
		return out, nil
	}

	ind, err := r.indicatorFor(ctx, meta)
	if err != nil {
		return out, err
	}

	candidates := make([]model.Release, 0, len(observations))
	for _, obs := range observations {
		at, err := time.Parse(period.DateLayout, obs.Date)
		if err != nil {
			// Validation already rejected unparseable dates.
			continue
		}
		candidates = append(candidates, model.Release{
			IndicatorID: ind.ID,
			ReleaseAt:   at.UTC(),
			Period:      obs.Period,
			Actual:      obs.Value,
		})
	}

	existing, err := r.lookupExisting(ctx, candidates)
	if err != nil {
		return out, err
	}

	var inserts []model.Release
	var updates []updateOp
	for _, cand := range candidates {
		if _, found := existing[cand.Key()]; found {
			actual := cand.Actual
			updates = append(updates, updateOp{
				key:    cand.Key(),
				fields: repository.ReleaseFields{Actual: &actual},
			})
			continue
		}
		inserts = append(inserts, cand)
	}

	out.Inserted, out.Errors = r.flushInserts(ctx, meta.SourceName, inserts, out.Errors)
	out.Updated, out.Errors = r.runUpdates(ctx, meta.SourceName, updates, out.Errors)
	return out, nil
}

// Events reconciles a deduplicated calendar-event batch. Matching is by
// (indicator, day, period): a stored release on the same day with a
// different timestamp is a schedule change, recorded for the summary and
// then updated in place rather than silently overwritten.
func (r *Reconciler) Events(ctx context.Context, sourceName string, events []model.CalendarEvent) (Outcome, error) {
	var out Outcome
	var inserts []model.Release

	for _, ev := range events {
		ind, err := r.indicatorFor(ctx, SeriesMeta{
			Name:       ev.EventName,
			Country:    ev.Country,
			Category:   ev.Category,
			SourceName: sourceName,
			SourceURL:  ev.SourceLink,
		})
		if err != nil {
			out.Errors = append(out.Errors, model.UnitError{Source: sourceName, Unit: ev.EventName, Err: err.Error()})
			continue
		}

		releaseAt, err := eventTimestamp(ev)
		if err != nil {
			out.Errors = append(out.Errors, model.UnitError{Source: sourceName, Unit: ev.EventName, Err: err.Error()})
			continue
		}

		day, _ := time.Parse(period.DateLayout, ev.Date)
		stored, err := r.store.FindReleasesByDay(ctx, ind.ID, day, ev.Date)
		if err != nil {
			out.Errors = append(out.Errors, model.UnitError{Source: sourceName, Unit: ev.EventName, Err: err.Error()})
			continue
		}

		if len(stored) == 0 {
			inserts = append(inserts, model.Release{
				IndicatorID: ind.ID,
				ReleaseAt:   releaseAt,
				Period:      ev.Date,
				Notes:       string(ev.Impact),
			})
			out.Changes = append(out.Changes, model.ScheduleChange{
				IndicatorID: ind.ID,
				ChangeType:  model.ScheduleNew,
				NewValue:    releaseAt.Format(time.RFC3339),
			})
			continue
		}

		// Detection reads the pre-update stored value; the change
		// reflects state as of this pass' read.
		prev := stored[0]
		if !prev.ReleaseAt.Equal(releaseAt) {
			at := releaseAt
			if err := r.store.UpdateRelease(ctx, prev.Key(), repository.ReleaseFields{ReleaseAt: &at}); err != nil {
				out.Errors = append(out.Errors, model.UnitError{Source: sourceName, Unit: ev.EventName, Err: err.Error()})
				continue
			}
			out.Updated++
			out.Changes = append(out.Changes, model.ScheduleChange{
				IndicatorID: ind.ID,
				ChangeType:  model.ScheduleTimeChanged,
				OldValue:    prev.ReleaseAt.Format(time.RFC3339),
				NewValue:    releaseAt.Format(time.RFC3339),
				ReleaseID:   prev.ID,
			})
			metrics.RecordScheduleChange()
		}
	}

	var inserted int
	inserted, out.Errors = r.flushInserts(ctx, sourceName, inserts, out.Errors)
	out.Inserted = inserted
	return out, nil
}

// lookupExisting resolves candidate keys against the store in fixed-size
// chunks, one filtered query per chunk.
func (r *Reconciler) lookupExisting(ctx context.Context, candidates []model.Release) (map[model.ReleaseKey]model.Release, error) {
	keys := make([]model.ReleaseKey, len(candidates))
	for i, cand := range candidates {
		keys[i] = cand.Key()
	}

	existing := make(map[model.ReleaseKey]model.Release)
	for at := 0; at < len(keys); at += r.lookupChunkSize {
		chunk := keys[at:min(at+r.lookupChunkSize, len(keys))]
		found, err := r.store.FindReleases(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("lookup releases: %w", err)
		}
		for _, rel := range found {
			key := rel.Key()
			key.ReleaseAt = key.ReleaseAt.UTC()
			existing[key] = rel
		}
	}
	return existing, nil
}

// flushInserts writes inserts in fixed-size batches. A failed batch is
// recorded and the remaining batches still flush.
func (r *Reconciler) flushInserts(ctx context.Context, sourceName string, inserts []model.Release, errs []model.UnitError) (int, []model.UnitError) {
	inserted := 0
	for at := 0; at < len(inserts); at += r.insertBatchSize {
		batch := inserts[at:min(at+r.insertBatchSize, len(inserts))]
		if err := r.store.InsertReleases(ctx, batch); err != nil {
			errs = append(errs, model.UnitError{
				Source: sourceName,
				Unit:   fmt.Sprintf("insert batch %d-%d", at, at+len(batch)),
				Err:    err.Error(),
			})
			continue
		}
		inserted += len(batch)
		metrics.RecordInserts(sourceName, len(batch))
	}
	return inserted, errs
}

type updateOp struct {
	key    model.ReleaseKey
	fields repository.ReleaseFields
}

// runUpdates issues per-record updates concurrently. The store's
// update-matching API takes one key at a time, so these cannot be
// batched; there is no ordering guarantee and no rollback across the
// batch.
func (r *Reconciler) runUpdates(ctx context.Context, sourceName string, updates []updateOp, errs []model.UnitError) (int, []model.UnitError) {
	if len(updates) == 0 {
		return 0, errs
	}

	var (
		mu      sync.Mutex
		updated int
	)
	sem := make(chan struct{}, r.updateConcurrency)
	var wg sync.WaitGroup

	for _, op := range updates {
		wg.Add(1)
		sem <- struct{}{}
		go func(op updateOp) {
			defer wg.Done()
			defer func() { <-sem }()

			err := r.store.UpdateRelease(ctx, op.key, op.fields)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, model.UnitError{
					Source: sourceName,
					Unit:   fmt.Sprintf("update %s %s", op.key.IndicatorID, op.key.Period),
					Err:    err.Error(),
				})
				return
			}
			updated++
		}(op)
	}
	wg.Wait()

	metrics.RecordUpdates(sourceName, updated)
	return updated, errs
}

// eventTimestamp combines an event's date and optional HH:MM time into a
// UTC timestamp; a missing time pins the release to midnight.
func eventTimestamp(ev model.CalendarEvent) (time.Time, error) {
	day, err := time.Parse(period.DateLayout, ev.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %q: bad date %q", ev.EventName, ev.Date)
	}
	if ev.Time == "" {
		return day.UTC(), nil
	}
	clock, err := time.Parse("15:04", ev.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("event %q: bad time %q", ev.EventName, ev.Time)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC), nil
}
