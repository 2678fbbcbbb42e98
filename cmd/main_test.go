package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/rfqmatch/internal/config"
	"github.com/okian/rfqmatch/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

const fixtureYAML = `
rfqs:
  - id: rfq-1
    title: PCB assembly
    industry: Electronics
    budget: "5000"
suppliers:
  - id: sup-a
    name: Alpha Circuits
    industry: Electronics
    rating: 4.5
    verified: true
  - id: sup-b
    name: Beta Weaves
    industry: Textiles
quotes:
  - {supplier_id: sup-a, rfq_id: old-1, industry: Electronics, response_hours: 6, accepted: true, completed: true, price_deviation: -4}
  - {supplier_id: sup-a, rfq_id: old-2, industry: Electronics, response_hours: 8, accepted: true, completed: true, price_deviation: -2}
`

type matchOutput struct {
	RFQID   string `json:"rfq_id"`
	Matches []struct {
		Supplier struct {
			ID string `json:"id"`
		} `json:"supplier"`
		Score       int    `json:"match_score"`
		Strategy    string `json:"strategy"`
		Submitted   bool   `json:"submitted"`
		Explanation []struct {
			Feature string `json:"feature"`
		} `json:"explanation"`
	} `json:"matches"`
}

func writeFixtures(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	if err := os.WriteFile(path, []byte(fixtureYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the CLI with args and returns stdout.
func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMatchCommand(t *testing.T) {
	fixtures := writeFixtures(t)

	convey.Convey("Given the in-memory store seeded from fixtures", t, func() {
		convey.Convey("When matching an RFQ", func() {
			out, err := execute("match", "rfq-1", "--fixtures", fixtures)

			convey.Convey("Then the ranking is printed as JSON", func() {
				convey.So(err, convey.ShouldBeNil)
				var got matchOutput
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got.RFQID, convey.ShouldEqual, "rfq-1")
				convey.So(got.Matches, convey.ShouldHaveLength, 2)
				convey.So(got.Matches[0].Supplier.ID, convey.ShouldEqual, "sup-a")
				convey.So(got.Matches[0].Score, convey.ShouldEqual, 100)
				convey.So(got.Matches[0].Strategy, convey.ShouldEqual, "heuristic")
				convey.So(got.Matches[0].Explanation[0].Feature, convey.ShouldEqual, "Industry Match")
				convey.So(got.Matches[1].Supplier.ID, convey.ShouldEqual, "sup-b")
				convey.So(got.Matches[1].Score, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the RFQ is unknown", func() {
			_, err := execute("match", "rfq-missing", "--fixtures", fixtures)

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When no RFQ id is given", func() {
			_, err := execute("match")

			convey.Convey("Then argument validation fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestLedgerPersistsAcrossRuns(t *testing.T) {
	fixtures := writeFixtures(t)
	t.Setenv("RFQMATCH_STORAGE_DRIVER", config.StorageSQLite)
	t.Setenv("RFQMATCH_STORAGE_DSN", filepath.Join(t.TempDir(), "rfq.db"))

	convey.Convey("Given a sqlite ledger", t, func() {
		_, err := execute("match", "rfq-1", "--fixtures", fixtures)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When a supplier is marked as submitted in a later run", func() {
			_, err := execute("submit", "rfq-1", "sup-a")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then matching again reuses the record with the flag set", func() {
				out, err := execute("match", "rfq-1")
				convey.So(err, convey.ShouldBeNil)
				var got matchOutput
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got.Matches, convey.ShouldHaveLength, 2)
				convey.So(got.Matches[0].Score, convey.ShouldEqual, 100)
				convey.So(got.Matches[0].Submitted, convey.ShouldBeTrue)
				convey.So(got.Matches[1].Submitted, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When submitting for a supplier that was never matched", func() {
			_, err := execute("submit", "rfq-1", "sup-z")

			convey.Convey("Then the command fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When listing migrations", func() {
			out, err := execute("migrate")

			convey.Convey("Then the initial schema is applied", func() {
				convey.So(err, convey.ShouldBeNil)
				var got struct {
					Driver  string `json:"driver"`
					Applied []int  `json:"applied"`
				}
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got.Driver, convey.ShouldEqual, "sqlite")
				convey.So(got.Applied, convey.ShouldResemble, []int{1})
			})
		})
	})
}

func TestVerifyAndStatsCommands(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		convey.Convey("When verifying names that differ only by legal suffix", func() {
			out, err := execute("verify", "Acme Industries Pvt Ltd", "ACME INDUSTRIES PRIVATE LIMITED")

			convey.Convey("Then they match", func() {
				convey.So(err, convey.ShouldBeNil)
				var got struct {
					Similarity float64 `json:"similarity"`
					Match      bool    `json:"match"`
				}
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got.Match, convey.ShouldBeTrue)
				convey.So(got.Similarity, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When printing stats", func() {
			out, err := execute("stats")

			convey.Convey("Then the scorer and storage counts are reported", func() {
				convey.So(err, convey.ShouldBeNil)
				var got map[string]any
				convey.So(json.Unmarshal([]byte(out), &got), convey.ShouldBeNil)
				convey.So(got["scorer"], convey.ShouldEqual, "heuristic")
				convey.So(got["storage"], convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When listing migrations on the memory store", func() {
			_, err := execute("migrate")

			convey.Convey("Then the command explains that no database is configured", func() {
				convey.So(errors.Is(err, errNoDatabase), convey.ShouldBeTrue)
			})
		})
	})
}

func TestSimilarityCommand(t *testing.T) {
	convey.Convey("Given two strings", t, func() {
		out, err := execute("similarity", "MARTHA", "MARHTA")

		convey.Convey("Then the Jaro-Winkler score is printed", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldEqual, "0.9611\n")
		})
	})
}

func TestConfigFlag(t *testing.T) {
	t.Setenv(config.EnvFile, "")

	convey.Convey("Given a config file with an invalid scorer mode", t, func() {
		path := filepath.Join(t.TempDir(), "config.yaml")
		convey.So(os.WriteFile(path, []byte("scorer_mode: oracle\n"), 0o600), convey.ShouldBeNil)

		convey.Convey("When it is passed with --config", func() {
			_, err := execute("stats", "--config", path)

			convey.Convey("Then loading fails validation", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestBuildScorer(t *testing.T) {
	convey.Convey("Given each scorer mode", t, func() {
		cfg := config.New(context.Background())
		heuristic := scoring.NewHeuristicScorer()

		convey.Convey("Then heuristic mode has no preferred scorer", func() {
			convey.So(buildScorer(cfg, heuristic), convey.ShouldBeNil)
		})

		convey.Convey("Then remote mode uses the HTTP client", func() {
			cfg.ScorerMode = config.ScorerRemote
			cfg.ScorerURL = "http://127.0.0.1:1"
			convey.So(buildScorer(cfg, heuristic).Name(), convey.ShouldEqual, "external")
		})

		convey.Convey("Then simulated mode uses the simulated scorer", func() {
			cfg.ScorerMode = config.ScorerSimulated
			convey.So(buildScorer(cfg, heuristic).Name(), convey.ShouldEqual, "simulated")
		})
	})
}
