package performance_test

import (
	"context"
	"testing"

	"github.com/okian/rfqmatch/internal/domain/model"
	"github.com/okian/rfqmatch/internal/domain/performance"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStaticProvider(t *testing.T) {
	Convey("Given a provider with one known supplier", t, func() {
		known := model.PerformanceMetrics{AvgResponseTimeHours: 6, AcceptanceRate: 90, SimilarRFQsCount: 14}
		p := performance.NewStaticProvider(performance.WithProfile("sup-1", known))
		ctx := context.Background()

		Convey("When asking for no suppliers", func() {
			got, err := p.GetMetrics(ctx, nil)

			Convey("Then it returns an empty map without error", func() {
				So(err, ShouldBeNil)
				So(got, ShouldBeEmpty)
			})
		})

		Convey("When asking for known and unknown suppliers", func() {
			got, err := p.GetMetrics(ctx, []string{"sup-1", "sup-unknown"})

			Convey("Then every id is present and unknowns get the default profile", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got["sup-1"], ShouldResemble, known)
				So(got["sup-unknown"].IsZero(), ShouldBeTrue)
			})
		})

		Convey("When a profile is replaced", func() {
			p.Set("sup-1", model.PerformanceMetrics{CompletionRate: 99})
			got, _ := p.GetMetrics(ctx, []string{"sup-1"})

			Convey("Then the new profile is served", func() {
				So(got["sup-1"].CompletionRate, ShouldEqual, 99)
			})
		})
	})
}

func TestComplete(t *testing.T) {
	Convey("Given a partial metrics map", t, func() {
		partial := map[string]model.PerformanceMetrics{"a": {AcceptanceRate: 50}, "stray": {}}

		Convey("Then Complete keeps requested ids only and fills the gaps", func() {
			out := performance.Complete([]string{"a", "b"}, partial)
			So(out, ShouldHaveLength, 2)
			So(out["a"].AcceptanceRate, ShouldEqual, 50)
			So(out["b"].IsZero(), ShouldBeTrue)
		})

		Convey("Then a nil map yields defaults", func() {
			out := performance.Complete([]string{"x"}, nil)
			So(out["x"].IsZero(), ShouldBeTrue)
		})
	})
}
