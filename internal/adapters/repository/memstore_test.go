package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/macrofeed/macrofeed/internal/adapters/repository"
	"github.com/macrofeed/macrofeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemStoreIndicators(t *testing.T) {
	Convey("Given an empty store", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()

		Convey("When looking up an unknown indicator", func() {
			_, err := store.GetIndicator(ctx, "Consumer Price Index", "US")

			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When creating an indicator", func() {
			created, err := store.CreateIndicator(ctx, model.Indicator{
				Name:        "Consumer Price Index",
				CountryCode: "US",
				Category:    "Inflation",
			})
			So(err, ShouldBeNil)

			Convey("Then it gets an ID and becomes retrievable", func() {
				So(created.ID, ShouldNotBeEmpty)

				got, err := store.GetIndicator(ctx, "Consumer Price Index", "US")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, created)
			})

			Convey("Then the same name in another country is distinct", func() {
				_, err := store.GetIndicator(ctx, "Consumer Price Index", "DE")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestMemStoreReleases(t *testing.T) {
	Convey("Given a store holding releases", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()

		at := time.Date(2024, time.May, 15, 8, 30, 0, 0, time.UTC)
		seed := []model.Release{
			{IndicatorID: "ind-1", ReleaseAt: at, Period: "April 2024", Actual: "3.4"},
			{IndicatorID: "ind-1", ReleaseAt: at.AddDate(0, 1, 0), Period: "May 2024", Actual: "3.3"},
		}
		So(store.InsertReleases(ctx, seed), ShouldBeNil)

		Convey("When inserting an empty batch", func() {
			err := store.InsertReleases(ctx, nil)

			So(errors.Is(err, repository.ErrEmptyBatch), ShouldBeTrue)
		})

		Convey("When finding by identity keys", func() {
			found, err := store.FindReleases(ctx, []model.ReleaseKey{
				{IndicatorID: "ind-1", ReleaseAt: at, Period: "April 2024"},
				{IndicatorID: "ind-1", ReleaseAt: at, Period: "March 2024"}, // absent
			})

			Convey("Then only stored keys come back", func() {
				So(err, ShouldBeNil)
				So(len(found), ShouldEqual, 1)
				So(found[0].Actual, ShouldEqual, "3.4")
			})
		})

		Convey("When the lookup key is in another zone", func() {
			est := time.FixedZone("EST", -5*3600)
			found, err := store.FindReleases(ctx, []model.ReleaseKey{
				{IndicatorID: "ind-1", ReleaseAt: at.In(est), Period: "April 2024"},
			})

			Convey("Then the same instant still matches", func() {
				So(err, ShouldBeNil)
				So(len(found), ShouldEqual, 1)
			})
		})

		Convey("When finding by day", func() {
			found, err := store.FindReleasesByDay(ctx, "ind-1",
				time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC), "April 2024")

			So(err, ShouldBeNil)
			So(len(found), ShouldEqual, 1)

			Convey("And a mismatched period label excludes the release", func() {
				none, err := store.FindReleasesByDay(ctx, "ind-1",
					time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC), "May 2024")
				So(err, ShouldBeNil)
				So(none, ShouldBeEmpty)
			})
		})

		Convey("When updating scalar fields", func() {
			actual := "3.5"
			key := model.ReleaseKey{IndicatorID: "ind-1", ReleaseAt: at, Period: "April 2024"}
			err := store.UpdateRelease(ctx, key, repository.ReleaseFields{Actual: &actual})

			Convey("Then the value changes and nothing else does", func() {
				So(err, ShouldBeNil)
				found, err := store.FindReleases(ctx, []model.ReleaseKey{key})
				So(err, ShouldBeNil)
				So(found[0].Actual, ShouldEqual, "3.5")
				So(store.ReleaseCount(), ShouldEqual, 2)
			})
		})

		Convey("When updating the release timestamp", func() {
			moved := at.Add(30 * time.Minute)
			key := model.ReleaseKey{IndicatorID: "ind-1", ReleaseAt: at, Period: "April 2024"}
			err := store.UpdateRelease(ctx, key, repository.ReleaseFields{ReleaseAt: &moved})

			Convey("Then the release is re-keyed, not duplicated", func() {
				So(err, ShouldBeNil)
				So(store.ReleaseCount(), ShouldEqual, 2)

				old, err := store.FindReleases(ctx, []model.ReleaseKey{key})
				So(err, ShouldBeNil)
				So(old, ShouldBeEmpty)

				now, err := store.FindReleases(ctx, []model.ReleaseKey{
					{IndicatorID: "ind-1", ReleaseAt: moved, Period: "April 2024"},
				})
				So(err, ShouldBeNil)
				So(len(now), ShouldEqual, 1)
			})
		})

		Convey("When updating an unknown key", func() {
			actual := "0"
			err := store.UpdateRelease(ctx,
				model.ReleaseKey{IndicatorID: "nope", ReleaseAt: at, Period: "April 2024"},
				repository.ReleaseFields{Actual: &actual})

			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}
