package validate_test

import (
	"testing"

	"github.com/macrofeed/macrofeed/internal/domain/model"
	"github.com/macrofeed/macrofeed/internal/domain/validate"
	. "github.com/smartystreets/goconvey/convey"
)

func obs(date, value string) model.Observation {
	return model.Observation{
		Date:              date,
		Value:             value,
		Period:            date,
		SourceIndicatorID: "TEST",
		CountryCode:       "US",
	}
}

func TestValidate(t *testing.T) {
	Convey("Given default options", t, func() {
		opts := validate.NewOptions()

		Convey("When the date is not a real calendar date", func() {
			res := validate.Validate(obs("2024-02-30", "1"), opts)

			Convey("Then it is rejected with the date reason", func() {
				So(res.Valid, ShouldBeFalse)
				So(res.Reason, ShouldEqual, validate.ReasonInvalidDate)
			})
		})

		Convey("When the date shape is wrong", func() {
			res := validate.Validate(obs("01/02/2024", "1"), opts)

			So(res.Valid, ShouldBeFalse)
			So(res.Reason, ShouldEqual, validate.ReasonInvalidDate)
		})

		Convey("When the date is in the future", func() {
			res := validate.Validate(obs("2999-01-01", "1"), opts)

			So(res.Valid, ShouldBeFalse)
			So(res.Reason, ShouldEqual, validate.ReasonFutureDate)
		})

		Convey("When the value is the missing sentinel", func() {
			res := validate.Validate(obs("2024-01-02", model.MissingValue), opts)

			Convey("Then it is rejected by default", func() {
				So(res.Valid, ShouldBeFalse)
				So(res.Reason, ShouldEqual, validate.ReasonMissingValue)
			})
		})

		Convey("When the value is not numeric", func() {
			res := validate.Validate(obs("2024-01-02", "n/a"), opts)

			So(res.Valid, ShouldBeFalse)
			So(res.Reason, ShouldEqual, validate.ReasonInvalidNumber)
		})

		Convey("When the value is a plain number", func() {
			res := validate.Validate(obs("2024-01-02", "3.14"), opts)

			So(res.Valid, ShouldBeTrue)
		})

		Convey("When the value parses but is not finite", func() {
			Convey("Then NaN and infinities are rejected as numbers", func() {
				for _, v := range []string{"NaN", "nan", "Inf", "+Inf", "-Inf"} {
					res := validate.Validate(obs("2024-01-02", v), opts)
					So(res.Valid, ShouldBeFalse)
					So(res.Reason, ShouldEqual, validate.ReasonInvalidNumber)
				}
			})
		})
	})

	Convey("Given AllowMissing", t, func() {
		opts := validate.NewOptions(validate.WithAllowMissing())

		Convey("When the value is the missing sentinel", func() {
			res := validate.Validate(obs("2024-01-02", model.MissingValue), opts)

			Convey("Then it is accepted", func() {
				So(res.Valid, ShouldBeTrue)
			})
		})
	})

	Convey("Given a value range", t, func() {
		opts := validate.NewOptions(validate.WithValueRange(0, 100))

		Convey("When the value sits exactly on a bound", func() {
			Convey("Then both bounds are inclusive", func() {
				So(validate.Validate(obs("2024-01-02", "0"), opts).Valid, ShouldBeTrue)
				So(validate.Validate(obs("2024-01-02", "100"), opts).Valid, ShouldBeTrue)
			})
		})

		Convey("When the value is one unit outside", func() {
			below := validate.Validate(obs("2024-01-02", "-1"), opts)
			above := validate.Validate(obs("2024-01-02", "101"), opts)

			So(below.Valid, ShouldBeFalse)
			So(below.Reason, ShouldEqual, validate.ReasonBelowMinimum)
			So(above.Valid, ShouldBeFalse)
			So(above.Reason, ShouldEqual, validate.ReasonAboveMaximum)
		})
	})
}

func TestDetectOutliers(t *testing.T) {
	Convey("Given a clustered batch with one distant value", t, func() {
		batch := []model.Observation{
			obs("2024-01-01", "100"),
			obs("2024-01-02", "101"),
			obs("2024-01-03", "99"),
			obs("2024-01-04", "100"),
			obs("2024-01-05", "102"),
			obs("2024-01-06", "500"),
		}

		Convey("When detecting at two standard deviations", func() {
			idxs := validate.DetectOutliers(batch, 2)

			Convey("Then exactly the distant value is flagged", func() {
				So(idxs, ShouldResemble, []int{5})
			})
		})
	})

	Convey("Given an all-constant batch", t, func() {
		batch := []model.Observation{
			obs("2024-01-01", "7"),
			obs("2024-01-02", "7"),
			obs("2024-01-03", "7"),
		}

		Convey("When detecting at any threshold", func() {
			Convey("Then zero standard deviation short-circuits to none", func() {
				So(validate.DetectOutliers(batch, 0.5), ShouldBeNil)
				So(validate.DetectOutliers(batch, 3), ShouldBeNil)
			})
		})
	})

	Convey("Given a batch containing a non-finite value", t, func() {
		batch := []model.Observation{
			obs("2024-01-01", "100"),
			obs("2024-01-02", "101"),
			obs("2024-01-03", "99"),
			obs("2024-01-04", "100"),
			obs("2024-01-05", "102"),
			obs("2024-01-06", "NaN"),
			obs("2024-01-07", "9000"),
		}

		Convey("When detecting at two standard deviations", func() {
			idxs := validate.DetectOutliers(batch, 2)

			Convey("Then the non-finite value neither poisons the mean nor flags itself", func() {
				So(idxs, ShouldResemble, []int{6})
			})
		})
	})

	Convey("Given a disabled threshold", t, func() {
		So(validate.DetectOutliers([]model.Observation{obs("2024-01-01", "1")}, 0), ShouldBeNil)
	})
}

func TestProcessObservations(t *testing.T) {
	Convey("Given a batch with one missing value", t, func() {
		batch := []model.Observation{
			obs("2024-01-01", "100"),
			obs("2024-01-02", model.MissingValue),
			obs("2024-01-03", "200"),
		}

		Convey("When processing with default options", func() {
			valid, stats := validate.ProcessObservations(batch, validate.NewOptions())

			Convey("Then two survive and the skip histogram names the miss", func() {
				So(len(valid), ShouldEqual, 2)
				So(stats.Received, ShouldEqual, 3)
				So(stats.Valid, ShouldEqual, 2)
				So(stats.Skipped, ShouldEqual, 1)
				So(stats.SkipReasons[validate.ReasonMissingValue], ShouldEqual, 1)
			})
		})
	})

	Convey("Given duplicates within a batch", t, func() {
		batch := []model.Observation{
			obs("2024-01-01", "100"),
			obs("2024-01-01", "105"),
			obs("2024-01-02", "110"),
		}

		Convey("When processing", func() {
			valid, stats := validate.ProcessObservations(batch, validate.NewOptions())

			Convey("Then the later record wins its key", func() {
				So(len(valid), ShouldEqual, 2)
				So(stats.Duplicates, ShouldEqual, 1)
				So(valid[0].Value, ShouldEqual, "105")
			})
		})
	})

	Convey("Given a batch with both an outlier and a bad record", t, func() {
		batch := []model.Observation{
			obs("2024-01-01", "100"),
			obs("2024-01-02", "101"),
			obs("2024-01-03", "99"),
			obs("2024-01-04", "100"),
			obs("2024-01-05", "102"),
			obs("2024-01-06", "9000"),
			obs("bad-date", "100"),
		}

		Convey("When processing with outlier detection enabled", func() {
			valid, stats := validate.ProcessObservations(batch, validate.NewOptions(validate.WithOutlierStdDevs(2)))

			Convey("Then exclusions union and outliers keep a distinct count", func() {
				So(len(valid), ShouldEqual, 5)
				So(stats.Skipped, ShouldEqual, 2)
				So(stats.Outliers, ShouldEqual, 1)
				So(stats.SkipReasons[validate.ReasonInvalidDate], ShouldEqual, 1)
				So(stats.SkipReasons[validate.ReasonOutlier], ShouldEqual, 1)
			})
		})
	})
}
