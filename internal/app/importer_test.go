package app_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/macrofeed/macrofeed/internal/adapters/repository"
	"github.com/macrofeed/macrofeed/internal/adapters/sources"
	"github.com/macrofeed/macrofeed/internal/app"
	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// fakeObservationSource serves canned observations per series ID and
// fails the IDs listed in failing.
type fakeObservationSource struct {
	name    string
	data    map[string][]model.Observation
	failing map[string]bool
}

func (f *fakeObservationSource) Name() string { return f.name }

func (f *fakeObservationSource) FetchObservations(_ context.Context, ref sources.SeriesRef, _, _ time.Time) ([]model.Observation, error) {
	if f.failing[ref.ID] {
		return nil, &sources.SourceError{Source: f.name, Unit: ref.ID, Err: errors.New("boom")}
	}
	return f.data[ref.ID], nil
}

// fakeEventSource serves canned events per month, or fails every month.
type fakeEventSource struct {
	name     string
	byMonth  map[string][]model.CalendarEvent
	failAll  bool
	requests []string
}

func (f *fakeEventSource) Name() string { return f.name }

func (f *fakeEventSource) FetchMonth(_ context.Context, m sources.Month) ([]model.CalendarEvent, error) {
	f.requests = append(f.requests, m.String())
	if f.failAll {
		return nil, &sources.SourceError{Source: f.name, Unit: m.String(), Err: errors.New("down")}
	}
	return f.byMonth[m.String()], nil
}

func obs(date, value, period string) model.Observation {
	return model.Observation{Date: date, Value: value, Period: period, CountryCode: "US"}
}

func seriesRefs(ids ...string) []sources.SeriesRef {
	refs := make([]sources.SeriesRef, len(ids))
	for i, id := range ids {
		refs[i] = sources.SeriesRef{ID: id, Name: "Series " + id, Country: "US", Frequency: "monthly"}
	}
	return refs
}

func TestRunObservations(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)

	Convey("Given a source where one unit fails", t, func() {
		store := repository.NewMemStore()
		src := &fakeObservationSource{
			name: sources.NameFRED,
			data: map[string][]model.Observation{
				"A": {obs("2024-01-01", "1.1", "January 2024"), obs("2024-02-01", "1.2", "February 2024")},
				"C": {obs("2024-01-01", "7.5", "January 2024")},
			},
			failing: map[string]bool{"B": true},
		}

		Convey("When running the import", func() {
			imp := app.New(store)
			result, err := imp.RunObservations(context.Background(), src, seriesRefs("A", "B", "C"), start, end)

			Convey("Then the run ends in the terminal state", func() {
				So(imp.State(), ShouldEqual, app.StateSummarizing)
			})

			Convey("Then the failure is contained to its unit", func() {
				So(err, ShouldBeNil)
				So(result.UnitsAttempted, ShouldEqual, 3)
				So(result.UnitsSucceeded, ShouldEqual, 2)
				So(result.UnitsFailed, ShouldEqual, 1)
				So(result.Inserted, ShouldEqual, 3)
				So(store.ReleaseCount(), ShouldEqual, 3)

				So(len(result.Errors), ShouldEqual, 1)
				So(result.Errors[0].Unit, ShouldEqual, "B")
			})

			Convey("Then the summary carries timing and source", func() {
				So(result.Source, ShouldEqual, sources.NameFRED)
				So(result.FinishedAt.IsZero(), ShouldBeFalse)
				So(result.FinishedAt.Before(result.StartedAt), ShouldBeFalse)
			})
		})

		Convey("When the same import runs twice", func() {
			imp := app.New(store)
			_, err := imp.RunObservations(context.Background(), src, seriesRefs("A", "C"), start, end)
			So(err, ShouldBeNil)
			result, err := imp.RunObservations(context.Background(), src, seriesRefs("A", "C"), start, end)

			Convey("Then the second run converges to updates", func() {
				So(err, ShouldBeNil)
				So(result.Inserted, ShouldEqual, 0)
				So(result.Updated, ShouldEqual, 3)
				So(store.ReleaseCount(), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a source where every unit fails", t, func() {
		store := repository.NewMemStore()
		src := &fakeObservationSource{
			name:    sources.NameFRED,
			failing: map[string]bool{"A": true, "B": true},
		}

		Convey("When running the import", func() {
			result, err := app.New(store).RunObservations(context.Background(), src, seriesRefs("A", "B"), start, end)

			Convey("Then the run escalates to a hard unavailable error", func() {
				So(errors.Is(err, sources.ErrUnavailable), ShouldBeTrue)
				So(result.UnitsFailed, ShouldEqual, 2)
				So(len(result.Errors), ShouldEqual, 2)
			})
		})
	})

	Convey("Given validation drops some records", t, func() {
		store := repository.NewMemStore()
		src := &fakeObservationSource{
			name: sources.NameFRED,
			data: map[string][]model.Observation{
				"A": {
					obs("2024-01-01", "1.1", "January 2024"),
					obs("2024-02-01", model.MissingValue, "February 2024"),
					obs("not-a-date", "1.3", "March 2024"),
				},
			},
		}

		Convey("When running the import", func() {
			result, err := app.New(store).RunObservations(context.Background(), src, seriesRefs("A"), start, end)

			Convey("Then skips are counted by reason and survivors land", func() {
				So(err, ShouldBeNil)
				So(result.RecordsSeen, ShouldEqual, 3)
				So(result.Skipped, ShouldEqual, 2)
				So(result.SkipReasons["Missing value"], ShouldEqual, 1)
				So(result.SkipReasons["Invalid date format"], ShouldEqual, 1)
				So(result.Inserted, ShouldEqual, 1)
			})
		})
	})
}

func calendarEvent(name, date, hhmm string) model.CalendarEvent {
	return model.CalendarEvent{
		Country:    "US",
		EventName:  name,
		Date:       date,
		Time:       hhmm,
		Impact:     model.ImpactHigh,
		Category:   "Inflation",
		SourceLink: fmt.Sprintf("https://example.org/%s", date),
	}
}

func TestRunCalendar(t *testing.T) {
	months := []sources.Month{
		{Year: 2024, Month: time.May},
		{Year: 2024, Month: time.June},
	}

	Convey("Given a healthy primary source", t, func() {
		store := repository.NewMemStore()
		primary := &fakeEventSource{
			name: sources.NameCalendarPrimary,
			byMonth: map[string][]model.CalendarEvent{
				"2024-05": {
					calendarEvent("US CPI (YoY)", "2024-05-15", "08:30"),
					calendarEvent("US: CPI YoY", "2024-05-15", "08:30"), // same event, different label
				},
				"2024-06": {calendarEvent("US CPI (YoY)", "2024-06-12", "08:30")},
			},
		}
		secondary := &fakeEventSource{name: sources.NameCalendarSecondary, failAll: true}

		Convey("When running the calendar import", func() {
			result, err := app.New(store).RunCalendar(context.Background(), primary, secondary, months)

			Convey("Then duplicates merge and the fallback is never consulted", func() {
				So(err, ShouldBeNil)
				So(result.Source, ShouldEqual, sources.NameCalendarPrimary)
				So(result.Duplicates, ShouldEqual, 1)
				So(result.Inserted, ShouldEqual, 2)
				So(result.ScheduleChangeCount, ShouldEqual, 2)
				So(secondary.requests, ShouldBeEmpty)
			})
		})

		Convey("When the schedule-change list is capped", func() {
			result, err := app.New(store, app.WithScheduleChangeCap(1)).
				RunCalendar(context.Background(), primary, secondary, months)

			Convey("Then the list is truncated but the count is not", func() {
				So(err, ShouldBeNil)
				So(result.ScheduleChangeCount, ShouldEqual, 2)
				So(len(result.ScheduleChanges), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a primary that fails every month", t, func() {
		store := repository.NewMemStore()
		primary := &fakeEventSource{name: sources.NameCalendarPrimary, failAll: true}
		secondary := &fakeEventSource{
			name: sources.NameCalendarSecondary,
			byMonth: map[string][]model.CalendarEvent{
				"2024-05": {calendarEvent("US CPI (YoY)", "2024-05-15", "08:30")},
			},
		}

		Convey("When running the calendar import", func() {
			result, err := app.New(store).RunCalendar(context.Background(), primary, secondary, months)

			Convey("Then the fallback supplies the data and is credited", func() {
				So(err, ShouldBeNil)
				So(result.Source, ShouldEqual, sources.NameCalendarSecondary)
				So(result.Inserted, ShouldEqual, 1)
				So(secondary.requests, ShouldResemble, []string{"2024-05", "2024-06"})
			})
		})

		Convey("When the fallback fails too", func() {
			secondary.failAll = true
			result, err := app.New(store).RunCalendar(context.Background(), primary, secondary, months)

			Convey("Then the run is declared unavailable", func() {
				So(errors.Is(err, sources.ErrUnavailable), ShouldBeTrue)
				So(result.UnitsFailed, ShouldEqual, 4) // both sources, both months
				So(store.ReleaseCount(), ShouldEqual, 0)
			})
		})
	})
}
