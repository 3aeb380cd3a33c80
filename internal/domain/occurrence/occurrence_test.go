package occurrence_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/groupsplit/internal/domain/occurrence"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOccurrence_New(t *testing.T) {
	Convey("Given groupings owned by the caller", t, func() {
		date := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		groupings := [][]string{{"A", "B"}, {"C", "D"}}
		occ := occurrence.New(date, groupings)

		Convey("When the caller mutates its slices afterwards", func() {
			groupings[0][0] = "Z"
			groupings[1] = append(groupings[1], "E")

			Convey("Then the occurrence is unaffected", func() {
				So(occ.Grouping(0), ShouldResemble, occurrence.Grouping{"A", "B"})
				So(occ.Grouping(1), ShouldResemble, occurrence.Grouping{"C", "D"})
				So(occ.Date(), ShouldEqual, date)
			})
		})

		Convey("When a returned grouping is mutated", func() {
			gs := occ.Groupings()
			gs[0][1] = "Q"

			Convey("Then the occurrence is unaffected", func() {
				So(occ.Grouping(0), ShouldResemble, occurrence.Grouping{"A", "B"})
			})
		})

		Convey("Then membership helpers work", func() {
			So(occ.Len(), ShouldEqual, 2)
			So(occ.Together("A", "B"), ShouldBeTrue)
			So(occ.Together("A", "C"), ShouldBeFalse)
			So(occ.Together("a", "B"), ShouldBeFalse)
			So(occ.Members(), ShouldResemble, []string{"A", "B", "C", "D"})
			So(occ.String(), ShouldEqual, "[A B] [C D]")
		})
	})
}

func TestOccurrence_Validate(t *testing.T) {
	Convey("Given a roster of four", t, func() {
		roster := []string{"A", "B", "C", "D"}
		now := time.Now()

		Convey("A proper partition is valid", func() {
			So(occurrence.New(now, [][]string{{"A", "D"}, {"B", "C"}}).Validate(roster), ShouldBeNil)
		})

		Convey("A missing member is rejected", func() {
			err := occurrence.New(now, [][]string{{"A", "D"}, {"B"}}).Validate(roster)
			So(errors.Is(err, occurrence.ErrInvalidPartition), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, `"C" is missing`)
		})

		Convey("A duplicated member is rejected", func() {
			err := occurrence.New(now, [][]string{{"A", "B"}, {"B", "C", "D"}}).Validate(roster)
			So(errors.Is(err, occurrence.ErrInvalidPartition), ShouldBeTrue)
		})

		Convey("A stranger is rejected", func() {
			err := occurrence.New(now, [][]string{{"A", "B"}, {"C", "D", "E"}}).Validate(roster)
			So(errors.Is(err, occurrence.ErrInvalidPartition), ShouldBeTrue)
		})

		Convey("An empty grouping is rejected", func() {
			err := occurrence.New(now, [][]string{{"A", "B", "C", "D"}, {}}).Validate(roster)
			So(errors.Is(err, occurrence.ErrInvalidPartition), ShouldBeTrue)
		})
	})
}

func TestOccurrence_Signature(t *testing.T) {
	Convey("Given two orderings of the same partition", t, func() {
		a := occurrence.New(time.Now(), [][]string{{"A", "B"}, {"C", "D"}})
		b := occurrence.New(time.Now(), [][]string{{"D", "C"}, {"B", "A"}})
		c := occurrence.New(time.Now(), [][]string{{"A", "C"}, {"B", "D"}})

		Convey("Then their signatures match", func() {
			So(a.Signature(), ShouldEqual, b.Signature())
		})

		Convey("And a different partition has a different signature", func() {
			So(a.Signature(), ShouldNotEqual, c.Signature())
		})
	})
}

func TestOccurrence_JSON(t *testing.T) {
	Convey("Given an occurrence", t, func() {
		date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		occ := occurrence.New(date, [][]string{{"A", "B"}, {"C", "D", "E"}})

		Convey("When encoded", func() {
			data, err := json.Marshal(occ)
			So(err, ShouldBeNil)

			Convey("Then it uses the date/groupings shape", func() {
				So(string(data), ShouldEqual, `{"date":"2024-03-01T00:00:00Z","groupings":[["A","B"],["C","D","E"]]}`)
			})

			Convey("And it decodes back to the same partition", func() {
				var back occurrence.Occurrence
				So(json.Unmarshal(data, &back), ShouldBeNil)
				So(back.Date().Equal(date), ShouldBeTrue)
				So(back.Groupings(), ShouldResemble, occ.Groupings())
			})
		})
	})
}
