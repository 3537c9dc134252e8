package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/cadence/internal/domain/generator"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
	. "github.com/smartystreets/goconvey/convey"
)

const participantsYAML = `participants:
  - id: m1
    name: Mara
    layer: leadership
    pillar: platform
    reports: [r1, r2]
  - id: r1
    name: Ravi
    layer: contributor
    pillar: platform
  - id: r2
    name: Rosa
    layer: contributor
    pillar: platform
    managers: [m1]
`

const legacyJSON = `[
  {"cycleId": "2024-12", "type": "SELF_ASSESSMENT", "giver": {"id": "r1", "name": "Ravi"}, "status": "completed",
   "scores": [1, 1, 1, 1, 1, 1], "createdAt": 1733011200000},
  {"cycle": "2024-12", "kind": "manager_to_report", "assessorId": "m1", "subjectId": "r1"},
  {"cycleId": "2024-12", "kind": "gossip", "giverId": "m1", "receiverId": "r2"}
]`

func write(dir, name, body string) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, []byte(body), 0o600), ShouldBeNil)
	return path
}

func exec(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestCyclectl(t *testing.T) {
	Convey("Given a store seeded through the CLI", t, func() {
		dir := t.TempDir()
		store := filepath.Join(dir, "cadence.db")
		out, err := exec("import-participants", "--store", store, "--file", write(dir, "org.yaml", participantsYAML))
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "imported 3 participants")

		Convey("When generating without a start", func() {
			_, err := exec("generate", "--store", store)

			Convey("Then an explicit start is demanded", func() {
				So(errors.Is(err, generator.ErrStartRequired), ShouldBeTrue)
			})
		})

		Convey("When generating from a start month", func() {
			out, err := exec("generate", "--store", store, "--start", "2025-01")
			So(err, ShouldBeNil)
			var sum generator.Summary
			So(json.Unmarshal([]byte(out), &sum), ShouldBeNil)

			Convey("Then three cycles are created", func() {
				So(sum.CycleIDs, ShouldResemble, []string{"2025-01", "2025-02", "2025-03"})
			})

			Convey("And the 360 month audits clean", func() {
				out, err := exec("audit", "--store", store, "--cycle", "2025-03")
				So(err, ShouldBeNil)
				var report pairing.AuditReport
				So(json.Unmarshal([]byte(out), &report), ShouldBeNil)
				So(report.Clean(), ShouldBeTrue)
				So(report.Pairs, ShouldEqual, 2)
			})

			Convey("And a report's pairings resolve", func() {
				out, err := exec("pairings", "--store", store, "--cycle", "2025-03", "--participant", "r1")
				So(err, ShouldBeNil)
				var pairs []model.Pairing
				So(json.Unmarshal([]byte(out), &pairs), ShouldBeNil)
				So(pairs, ShouldHaveLength, 1)
				So(pairs[0].Publisher, ShouldEqual, "m1")
			})

			Convey("And the run continues from the latest cycle", func() {
				out, err := exec("generate", "--store", store)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, `"2025-04"`)
			})

			Convey("And a legacy copy of a generated record is not written twice", func() {
				path := write(dir, "dup.json", `[{"id": "legacy-7", "cycleId": "2025-01", "kind": "self", "giverId": "r1"}]`)
				out, err := exec("import-legacy", "--store", store, "--file", path)
				So(err, ShouldBeNil)
				var res legacyResult
				So(json.Unmarshal([]byte(out), &res), ShouldBeNil)
				So(res.Read, ShouldEqual, 1)
				So(res.Written, ShouldEqual, 0)
			})

			Convey("And a cycle can be closed", func() {
				out, err := exec("close", "--store", store, "--cycle", "2025-01")
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "cycle 2025-01 closed")
			})
		})

		Convey("When importing legacy records", func() {
			path := write(dir, "legacy.json", legacyJSON)
			out, err := exec("import-legacy", "--store", store, "--file", path)

			Convey("Then usable records are written and the rest reported", func() {
				So(err, ShouldBeNil)
				var res legacyResult
				So(json.Unmarshal([]byte(out), &res), ShouldBeNil)
				So(res.Read, ShouldEqual, 3)
				So(res.Written, ShouldEqual, 2)
				So(res.Rejected, ShouldHaveLength, 1)
			})

			Convey("And a second import writes nothing new", func() {
				out, err := exec("import-legacy", "--store", store, "--file", path)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, `"written": 0`)
			})

			Convey("And strict mode fails on the unusable record", func() {
				_, err := exec("import-legacy", "--store", store, "--file", path, "--strict")
				So(errors.Is(err, model.ErrLegacyRecord), ShouldBeTrue)
			})
		})

		Convey("When a required flag is missing", func() {
			_, err := exec("audit", "--store", store)

			Convey("Then the command fails", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
