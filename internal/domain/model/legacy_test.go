package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/cadence/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func decode(s string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		panic(err)
	}
	return m
}

func TestNormalizeLegacyEvaluation(t *testing.T) {
	Convey("Given legacy evaluation documents", t, func() {
		Convey("When the giver is nested and the receiver is flat", func() {
			e, err := model.NormalizeLegacyEvaluation(decode(`{
				"cycle": "2025-03", "type": "managerToReport",
				"giver": {"id": "m1", "name": "Mia"},
				"receiverId": "r1", "pairId": "p1", "status": "completed",
				"scores": {"value": [1,2,0], "growth": [2,2,1]},
				"createdAt": "2025-03-01T10:00:00Z"
			}`))

			Convey("Then both parties are normalized", func() {
				So(err, ShouldBeNil)
				So(e.Kind, ShouldEqual, model.KindManagerDown)
				So(e.Giver, ShouldResemble, model.Party{ID: "m1", Name: "Mia"})
				So(e.Receiver.ID, ShouldEqual, "r1")
				So(e.Status, ShouldEqual, model.StatusCompleted)
				So(e.Scores.Growth, ShouldResemble, [3]int{2, 2, 1})
				So(e.CreatedAt, ShouldEqual, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
				So(e.ID, ShouldEqual, model.EvaluationID("2025-03", "m1", "r1"))
			})
		})

		Convey("When the legacy record carries its own id", func() {
			e, err := model.NormalizeLegacyEvaluation(decode(`{
				"id": "legacy-42", "cycleId": "2025-03", "kind": "manager-down",
				"giverId": "m1", "receiverId": "r1"
			}`))

			Convey("Then the record is keyed by its triple and the old id is kept aside", func() {
				So(err, ShouldBeNil)
				So(e.ID, ShouldEqual, model.EvaluationID("2025-03", "m1", "r1"))
				So(e.LegacyID, ShouldEqual, "legacy-42")
			})
		})

		Convey("When a self record only names the subject and uses 360Pairs", func() {
			e, err := model.NormalizeLegacyEvaluation(decode(`{
				"cycleId": "2025-03", "kind": "self", "subjectId": "r1",
				"360Pairs": ["p1", "p2", "p1"]
			}`))

			Convey("Then giver mirrors receiver and the pair list is de-duplicated", func() {
				So(err, ShouldBeNil)
				So(e.Giver.ID, ShouldEqual, "r1")
				So(e.PairIDs, ShouldResemble, []string{"p1", "p2"})
				So(e.Status, ShouldEqual, model.StatusPending)
			})
		})

		Convey("When scores are a flat array", func() {
			e, err := model.NormalizeLegacyEvaluation(decode(`{
				"cycleId": "c", "kind": "peer", "assessorId": "a", "subjectId": "b",
				"scores": [1,1,1,2,2,2]
			}`))

			Convey("Then the first three go to the value axis", func() {
				So(err, ShouldBeNil)
				So(e.Scores.Value, ShouldResemble, [3]int{1, 1, 1})
				So(e.Scores.Growth, ShouldResemble, [3]int{2, 2, 2})
			})
		})

		Convey("When the receiver is missing on a directional record", func() {
			_, err := model.NormalizeLegacyEvaluation(decode(`{"cycleId": "c", "kind": "up", "giverId": "a"}`))

			Convey("Then normalization fails", func() {
				So(errors.Is(err, model.ErrLegacyRecord), ShouldBeTrue)
			})
		})

		Convey("When the kind is unknown", func() {
			_, err := model.NormalizeLegacyEvaluation(decode(`{"cycleId": "c", "kind": "sideways", "giverId": "a", "receiverId": "b"}`))

			Convey("Then normalization fails", func() {
				So(errors.Is(err, model.ErrLegacyRecord), ShouldBeTrue)
			})
		})
	})
}
