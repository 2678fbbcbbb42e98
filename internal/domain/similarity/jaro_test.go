package similarity_test

import (
	"testing"

	"github.com/okian/rfqmatch/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestJaro(t *testing.T) {
	Convey("Given pairs of strings", t, func() {
		Convey("Then identical strings score 1", func() {
			So(similarity.Jaro("acme", "acme"), ShouldEqual, 1.0)
			So(similarity.Jaro("", ""), ShouldEqual, 1.0)
		})

		Convey("Then an empty side scores 0", func() {
			So(similarity.Jaro("acme", ""), ShouldEqual, 0.0)
			So(similarity.Jaro("", "acme"), ShouldEqual, 0.0)
		})

		Convey("Then disjoint strings score 0", func() {
			So(similarity.Jaro("abc", "xyz"), ShouldEqual, 0.0)
		})

		Convey("Then the classic MARTHA/MARHTA pair matches the reference value", func() {
			So(similarity.Jaro("MARTHA", "MARHTA"), ShouldAlmostEqual, 0.944444, 0.0001)
			So(similarity.Jaro("DIXON", "DICKSONX"), ShouldAlmostEqual, 0.766667, 0.0001)
		})

		Convey("Then the measure is symmetric", func() {
			So(similarity.Jaro("CRATE", "TRACE"), ShouldAlmostEqual, similarity.Jaro("TRACE", "CRATE"), 1e-9)
		})
	})
}

func TestJaroWinkler(t *testing.T) {
	Convey("Given pairs of strings", t, func() {
		Convey("Then the shared prefix boosts the score", func() {
			So(similarity.JaroWinkler("MARTHA", "MARHTA"), ShouldAlmostEqual, 0.961111, 0.0001)
			So(similarity.JaroWinkler("DIXON", "DICKSONX"), ShouldAlmostEqual, 0.813333, 0.0001)
			So(similarity.JaroWinkler("MARTHA", "MARHTA"), ShouldBeGreaterThan, similarity.Jaro("MARTHA", "MARHTA"))
		})

		Convey("Then the prefix bonus stops at four runes", func() {
			j := similarity.Jaro("abcdefgh", "abcdefxy")
			So(similarity.JaroWinkler("abcdefgh", "abcdefxy"), ShouldAlmostEqual, j+0.4*(1-j), 1e-9)
		})

		Convey("Then multi-byte runes are compared as characters", func() {
			So(similarity.JaroWinkler("café", "café"), ShouldEqual, 1.0)
			So(similarity.JaroWinkler("café", "cafe"), ShouldBeBetween, 0.8, 1.0)
		})

		Convey("Then scores stay within [0,1]", func() {
			for _, p := range [][2]string{{"a", "b"}, {"acme", "acme corp"}, {"x", "xxxxxxxx"}} {
				So(similarity.JaroWinkler(p[0], p[1]), ShouldBeBetweenOrEqual, 0.0, 1.0)
			}
		})
	})
}
