package dedupe_test

import (
	"testing"

	"github.com/macrofeed/macrofeed/internal/domain/dedupe"
	"github.com/macrofeed/macrofeed/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDeduplicate(t *testing.T) {
	Convey("Given records sharing identity keys", t, func() {
		type rec struct {
			key   string
			value int
		}
		records := []rec{
			{"a", 1},
			{"b", 2},
			{"a", 3},
			{"c", 4},
			{"b", 5},
		}

		Convey("When deduplicating", func() {
			unique, duplicates := dedupe.Deduplicate(records, func(r rec) string { return r.key })

			Convey("Then the later record wins each key", func() {
				So(duplicates, ShouldEqual, 2)
				So(len(unique), ShouldEqual, 3)
				So(unique[0], ShouldResemble, rec{"a", 3})
				So(unique[1], ShouldResemble, rec{"b", 5})
				So(unique[2], ShouldResemble, rec{"c", 4})
			})
		})

		Convey("When there are no collisions", func() {
			unique, duplicates := dedupe.Deduplicate(records[:2], func(r rec) string { return r.key })

			So(duplicates, ShouldEqual, 0)
			So(len(unique), ShouldEqual, 2)
		})
	})
}

func TestNormalizeEventName(t *testing.T) {
	Convey("Given superficially different labels for the same release", t, func() {
		Convey("When normalizing", func() {
			Convey("Then adjustment suffixes and punctuation collapse", func() {
				So(dedupe.NormalizeEventName("US: CPI (YoY)"), ShouldEqual, "us cpi")
				So(dedupe.NormalizeEventName("US: CPI YoY"), ShouldEqual, "us cpi")
				So(dedupe.NormalizeEventName("GDP  (QoQ)  Final"), ShouldEqual, "gdp")
				So(dedupe.NormalizeEventName("Retail Sales SA"), ShouldEqual, "retail sales")
				So(dedupe.NormalizeEventName("Flash PMI"), ShouldEqual, "pmi")
			})
		})
	})
}

func TestMergeBySourcePriority(t *testing.T) {
	Convey("Given the same event from two sources", t, func() {
		type sourced struct {
			event    model.CalendarEvent
			priority int
		}
		records := []sourced{
			{model.CalendarEvent{Country: "US", EventName: "US: CPI (YoY)", Date: "2024-05-15", SourceLink: "high"}, 4},
			{model.CalendarEvent{Country: "US", EventName: "US: CPI YoY", Date: "2024-05-15", SourceLink: "low"}, 1},
		}

		Convey("When merging by priority", func() {
			merged, duplicates := dedupe.MergeBySourcePriority(records,
				func(s sourced) string { return dedupe.EventKey(s.event) },
				func(s sourced) int { return s.priority },
			)

			Convey("Then one record remains and the higher priority wins", func() {
				So(duplicates, ShouldEqual, 1)
				So(len(merged), ShouldEqual, 1)
				So(merged[0].event.SourceLink, ShouldEqual, "high")
			})
		})

		Convey("When priorities tie", func() {
			records[0].priority = 1

			merged, _ := dedupe.MergeBySourcePriority(records,
				func(s sourced) string { return dedupe.EventKey(s.event) },
				func(s sourced) int { return s.priority },
			)

			Convey("Then the stable sort keeps input order and the later wins", func() {
				So(merged[0].event.SourceLink, ShouldEqual, "low")
			})
		})
	})
}
