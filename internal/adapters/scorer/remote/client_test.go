package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/rfqmatch/internal/adapters/scorer/remote"
	"github.com/okian/rfqmatch/internal/domain/model"
	"github.com/okian/rfqmatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func batch() []model.EnrichedSupplier {
	return []model.EnrichedSupplier{
		{Supplier: model.Supplier{ID: "sup-a", Industry: "Electronics"}},
		{Supplier: model.Supplier{ID: "sup-b", Industry: "Textiles"}},
	}
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ScoreBatch(t *testing.T) {
	rfq := model.RFQ{ID: "rfq-1", Industry: "Electronics"}

	Convey("Given a predictor that scores every candidate", t, func() {
		var got map[string]any
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/score" || r.Method != http.MethodPost {
				http.NotFound(w, r)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte(`{"scores":[{"supplier_id":"sup-a","score":87.4},{"supplier_id":"sup-b","score":12}]}`))
		})
		c := remote.New(srv.URL + "/")

		Convey("When scoring a batch", func() {
			scores, err := c.ScoreBatch(context.Background(), rfq, batch())

			Convey("Then scores are rounded and the request carries rfq and suppliers", func() {
				So(err, ShouldBeNil)
				So(scores, ShouldResemble, map[string]int{"sup-a": 87, "sup-b": 12})
				So(got["rfq"].(map[string]any)["id"], ShouldEqual, "rfq-1")
				So(got["suppliers"], ShouldHaveLength, 2)
				So(c.Name(), ShouldEqual, "external")
			})
		})
	})

	failures := []struct {
		name   string
		status int
		body   string
		want   error
		reason string
	}{
		{"a non-2xx status", http.StatusServiceUnavailable, `{}`, scoring.ErrUnexpectedStatus, "bad_status"},
		{"a malformed body", http.StatusOK, `not json`, scoring.ErrMalformedResponse, "malformed_response"},
		{"a missing candidate", http.StatusOK, `{"scores":[{"supplier_id":"sup-a","score":50}]}`, scoring.ErrMissingScore, "missing_score"},
		{"an out-of-range score", http.StatusOK, `{"scores":[{"supplier_id":"sup-a","score":50},{"supplier_id":"sup-b","score":140}]}`, scoring.ErrScoreOutOfRange, "out_of_range"},
		{"a null score", http.StatusOK, `{"scores":[{"supplier_id":"sup-a","score":null},{"supplier_id":"sup-b","score":1}]}`, scoring.ErrMalformedResponse, "malformed_response"},
		{"a repeated supplier", http.StatusOK, `{"scores":[{"supplier_id":"sup-a","score":5},{"supplier_id":"sup-a","score":6}]}`, scoring.ErrMalformedResponse, "malformed_response"},
	}
	for _, f := range failures {
		Convey("Given a predictor returning "+f.name, t, func() {
			srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(f.status)
				_, _ = w.Write([]byte(f.body))
			})
			scores, err := remote.New(srv.URL).ScoreBatch(context.Background(), rfq, batch())

			Convey("Then the whole batch fails with a classified error", func() {
				So(scores, ShouldBeNil)
				So(errors.Is(err, scoring.ErrExternalScorer), ShouldBeTrue)
				So(errors.Is(err, f.want), ShouldBeTrue)
				So(scoring.FailureReason(err), ShouldEqual, f.reason)
			})
		})
	}

	Convey("Given a predictor slower than the client timeout", t, func() {
		release := make(chan struct{})
		srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err := remote.New(srv.URL, remote.WithTimeout(time.Second)).ScoreBatch(ctx, rfq, batch())

		Convey("Then the call fails as a timeout", func() {
			So(errors.Is(err, scoring.ErrExternalScorer), ShouldBeTrue)
			So(scoring.FailureReason(err), ShouldEqual, "timeout")
		})
	})

	Convey("Given an unreachable predictor", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := remote.New(url).ScoreBatch(context.Background(), rfq, batch())

		Convey("Then the failure is reported as transport", func() {
			So(errors.Is(err, scoring.ErrExternalScorer), ShouldBeTrue)
			So(scoring.FailureReason(err), ShouldEqual, "transport")
		})
	})
}
