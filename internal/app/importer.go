// Package app drives import runs: it sequences source clients, feeds the
// validation and reconciliation pipeline, and aggregates per-unit results
// into a summary. One unit's failure never aborts the batch.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/macrofeed/macrofeed/internal/adapters/repository"
	"github.com/macrofeed/macrofeed/internal/adapters/sources"
	"github.com/macrofeed/macrofeed/internal/domain/dedupe"
	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/internal/domain/reconcile"
	"github.com/macrofeed/macrofeed/internal/domain/validate"
	"github.com/macrofeed/macrofeed/pkg/logger"
	"github.com/macrofeed/macrofeed/pkg/metrics"
)

// RunState tracks where a run is in its lifecycle. Summarizing is
// terminal.
type RunState string

// Run states in order. Fetching moves straight to validating because
// payload normalization happens inside the source clients.
const (
	StateConfiguring RunState = "configuring"
	StateFetching    RunState = "fetching"
	StateValidating  RunState = "validating"
	StateReconciling RunState = "reconciling"
	StateSummarizing RunState = "summarizing"
)

// defaultScheduleChangeCap bounds the schedule-change list kept for
// display. The count is never capped.
const defaultScheduleChangeCap = 50

// Importer orchestrates import runs against one record store. The design
// assumes one run at a time; nothing here protects the store's chunked
// lookups against concurrent writers.
type Importer struct {
	store       repository.RecordStore
	valOpts     validate.Options
	scheduleCap int
	reconOpts   []reconcile.Option
	logger      logger.Logger

	state RunState
}

// Option applies a configuration option to the Importer.
type Option func(*Importer)

// WithValidationOptions sets the validation policy for observation runs.
func WithValidationOptions(opts validate.Options) Option {
	return func(imp *Importer) {
		imp.valOpts = opts
	}
}

// WithScheduleChangeCap bounds the schedule changes listed in summaries.
func WithScheduleChangeCap(n int) Option {
	return func(imp *Importer) {
		if n > 0 {
			imp.scheduleCap = n
		}
	}
}

// WithReconcilerOptions passes sizing options through to each run's
// reconciler.
func WithReconcilerOptions(opts ...reconcile.Option) Option {
	return func(imp *Importer) {
		imp.reconOpts = opts
	}
}

// WithLogger sets a custom logger for the importer.
func WithLogger(log logger.Logger) Option {
	return func(imp *Importer) {
		if log != nil {
			imp.logger = log
		}
	}
}

// New constructs an Importer over a record store.
func New(store repository.RecordStore, opts ...Option) *Importer {
	imp := &Importer{
		store:       store,
		valOpts:     validate.NewOptions(),
		scheduleCap: defaultScheduleChangeCap,
		state:       StateConfiguring,
	}
	for _, opt := range opts {
		opt(imp)
	}
	if imp.logger == nil {
		imp.logger = logger.Get()
	}
	return imp
}

// State reports the current run state.
func (imp *Importer) State() RunState { return imp.state }

func (imp *Importer) setState(ctx context.Context, s RunState) {
	imp.state = s
	imp.logger.Debug(ctx, "run state", logger.String("state", string(s)))
}

// RunObservations imports historical observations for a list of series
// units. A failed unit is recorded and the loop continues; the run only
// escalates to a hard failure when every unit failed.
func (imp *Importer) RunObservations(ctx context.Context, src sources.ObservationSource, refs []sources.SeriesRef, start, end time.Time) (model.ImportResult, error) {
	imp.setState(ctx, StateConfiguring)
	result := newResult(src.Name())
	recon := reconcile.New(imp.store, append(imp.reconOpts, reconcile.WithLogger(imp.logger))...)

	for _, ref := range refs {
		result.UnitsAttempted++

		imp.setState(ctx, StateFetching)
		fetchStart := time.Now()
		observations, err := src.FetchObservations(ctx, ref, start, end)
		metrics.ObserveFetchDuration(time.Since(fetchStart).Seconds())
		if err != nil {
			imp.recordUnitError(ctx, &result, src.Name(), ref.ID, err)
			continue
		}
		result.RecordsSeen += len(observations)
		metrics.RecordFetched(src.Name(), len(observations))

		imp.setState(ctx, StateValidating)
		survivors, stats := validate.ProcessObservations(observations, imp.valOpts)
		result.Skipped += stats.Skipped
		result.Duplicates += stats.Duplicates
		result.Outliers += stats.Outliers
		mergeReasons(result.SkipReasons, stats.SkipReasons)
		metrics.RecordSkips(src.Name(), stats.Skipped)
		metrics.RecordDuplicates(src.Name(), stats.Duplicates)
		metrics.RecordOutliers(src.Name(), stats.Outliers)

		imp.setState(ctx, StateReconciling)
		outcome, err := recon.Observations(ctx, reconcile.SeriesMeta{
			Name:       ref.Name,
			Country:    ref.Country,
			Category:   ref.Category,
			SourceName: src.Name(),
		}, survivors)
		if err != nil {
			imp.recordUnitError(ctx, &result, src.Name(), ref.ID, err)
			continue
		}

		result.Inserted += outcome.Inserted
		result.Updated += outcome.Updated
		result.Errors = append(result.Errors, outcome.Errors...)
		result.UnitsSucceeded++
	}

	imp.setState(ctx, StateSummarizing)
	return imp.summarize(ctx, result)
}

// sourcedEvent pairs an event with the source that supplied it, for
// cross-source priority merges.
type sourcedEvent struct {
	event  model.CalendarEvent
	source string
}

// RunCalendar imports scheduled release events month by month. When
// every month fails against the primary source, the secondary is
// attempted before the run is declared unavailable; the summary records
// which source actually supplied the data.
func (imp *Importer) RunCalendar(ctx context.Context, primary, secondary sources.EventSource, months []sources.Month) (model.ImportResult, error) {
	imp.setState(ctx, StateConfiguring)
	result := newResult(primary.Name())

	collected, allFailed := imp.fetchMonths(ctx, primary, months, &result)
	if allFailed && secondary != nil {
		imp.logger.Warn(ctx, "primary calendar source failed for every month, falling back",
			logger.String("primary", primary.Name()),
			logger.String("secondary", secondary.Name()),
		)
		result.Source = secondary.Name()
		collected, allFailed = imp.fetchMonths(ctx, secondary, months, &result)
	}
	if allFailed {
		imp.setState(ctx, StateSummarizing)
		result.FinishedAt = time.Now().UTC()
		return result, fmt.Errorf("calendar import: %w", sources.ErrUnavailable)
	}

	imp.setState(ctx, StateValidating)
	merged, duplicates := dedupe.MergeBySourcePriority(collected,
		func(se sourcedEvent) string { return dedupe.EventKey(se.event) },
		func(se sourcedEvent) int { return sources.Priority(se.source) },
	)
	result.Duplicates += duplicates
	metrics.RecordDuplicates(result.Source, duplicates)

	events := make([]model.CalendarEvent, len(merged))
	for i, se := range merged {
		events[i] = se.event
	}

	imp.setState(ctx, StateReconciling)
	recon := reconcile.New(imp.store, append(imp.reconOpts, reconcile.WithLogger(imp.logger))...)
	outcome, err := recon.Events(ctx, result.Source, events)
	if err != nil {
		imp.setState(ctx, StateSummarizing)
		result.FinishedAt = time.Now().UTC()
		return result, err
	}

	result.Inserted += outcome.Inserted
	result.Updated += outcome.Updated
	result.Errors = append(result.Errors, outcome.Errors...)
	result.ScheduleChangeCount = len(outcome.Changes)
	if len(outcome.Changes) > imp.scheduleCap {
		result.ScheduleChanges = outcome.Changes[:imp.scheduleCap]
	} else {
		result.ScheduleChanges = outcome.Changes
	}

	imp.setState(ctx, StateSummarizing)
	return imp.summarize(ctx, result)
}

// fetchMonths pulls every requested month from one source, recording
// failures per month. Returns true when no month succeeded.
func (imp *Importer) fetchMonths(ctx context.Context, src sources.EventSource, months []sources.Month, result *model.ImportResult) ([]sourcedEvent, bool) {
	var collected []sourcedEvent
	succeeded := 0

	for _, m := range months {
		result.UnitsAttempted++

		imp.setState(ctx, StateFetching)
		fetchStart := time.Now()
		events, err := src.FetchMonth(ctx, m)
		metrics.ObserveFetchDuration(time.Since(fetchStart).Seconds())
		if err != nil {
			imp.recordUnitError(ctx, result, src.Name(), m.String(), err)
			continue
		}

		result.RecordsSeen += len(events)
		metrics.RecordFetched(src.Name(), len(events))
		for _, ev := range events {
			collected = append(collected, sourcedEvent{event: ev, source: src.Name()})
		}
		result.UnitsSucceeded++
		succeeded++
	}
	return collected, succeeded == 0 && len(months) > 0
}

func (imp *Importer) recordUnitError(ctx context.Context, result *model.ImportResult, source, unit string, err error) {
	result.UnitsFailed++
	result.Errors = append(result.Errors, model.UnitError{Source: source, Unit: unit, Err: err.Error()})
	metrics.RecordUnitFailure(source)
	imp.logger.Warn(ctx, "import unit failed",
		logger.String("source", source),
		logger.String("unit", unit),
		logger.Error(err),
	)
}

// summarize finalizes the run. A run where every unit failed escalates
// to a hard source-unavailable error.
func (imp *Importer) summarize(ctx context.Context, result model.ImportResult) (model.ImportResult, error) {
	result.FinishedAt = time.Now().UTC()
	elapsed := result.FinishedAt.Sub(result.StartedAt)
	metrics.ObserveRunDuration(elapsed.Seconds(), float64(result.FinishedAt.Unix()), len(result.Errors))

	imp.logger.Info(ctx, "import run finished",
		logger.String("source", result.Source),
		logger.Int("units", result.UnitsAttempted),
		logger.Int("succeeded", result.UnitsSucceeded),
		logger.Int("failed", result.UnitsFailed),
		logger.Int("seen", result.RecordsSeen),
		logger.Int("inserted", result.Inserted),
		logger.Int("updated", result.Updated),
		logger.Int("skipped", result.Skipped),
		logger.Duration("elapsed", elapsed),
	)

	if result.UnitsAttempted > 0 && result.UnitsSucceeded == 0 {
		return result, fmt.Errorf("source %s: %w", result.Source, sources.ErrUnavailable)
	}
	return result, nil
}

func newResult(source string) model.ImportResult {
	return model.ImportResult{
		Source:      source,
		SkipReasons: make(map[string]int),
		StartedAt:   time.Now().UTC(),
	}
}

func mergeReasons(into, from map[string]int) {
	for reason, n := range from {
		into[reason] += n
	}
}
