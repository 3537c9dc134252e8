package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/cadence/internal/app"
	"github.com/okian/cadence/internal/domain/generator"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/pairing"
	"github.com/okian/cadence/internal/domain/publish"
	"github.com/okian/cadence/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

const threeSixty = "2025-03"

var (
	mid  = model.Scores{Value: [3]int{1, 1, 1}, Growth: [3]int{1, 1, 1}}
	star = model.Scores{Value: [3]int{2, 2, 2}, Growth: [3]int{2, 2, 2}}
)

// team is an executive over two leadership managers in different pillars.
func team() []model.Participant {
	return []model.Participant{
		{ID: "e1", Name: "Esme", Layer: model.LayerExecutive, ReportIDs: []string{"m1", "m2"}},
		{ID: "m1", Name: "Mara", Layer: model.LayerLeadership, Pillar: "platform", ReportIDs: []string{"r1", "r2"}},
		{ID: "m2", Name: "Milo", Layer: model.LayerLeadership, Pillar: "data", ReportIDs: []string{"r3"}},
		{ID: "r1", Name: "Ravi", Layer: model.LayerContributor, Pillar: "platform"},
		{ID: "r2", Name: "Rosa", Layer: model.LayerContributor, Pillar: "platform"},
		{ID: "r3", Name: "Rene", Layer: model.LayerContributor, Pillar: "data", ManagerIDs: []string{"m2"}},
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with an imported organization", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc := service.New(
			service.WithBatchLimit(8),
			service.WithScoring(scoring.WithLeadershipWeight(0.6)),
			service.WithClock(func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		So(svc.ImportParticipants(ctx, team()), ShouldBeNil)

		start, err := model.ParsePeriod("2025-01")
		So(err, ShouldBeNil)
		sum, err := svc.GenerateNextCycle(ctx, &start)
		So(err, ShouldBeNil)

		submit := func(giver, receiver string, s model.Scores) {
			_, err := svc.SubmitEvaluation(ctx, model.EvaluationID(threeSixty, giver, receiver), giver, s, "")
			So(err, ShouldBeNil)
		}

		Convey("When the run is generated", func() {
			Convey("Then three cycles exist with the third a 360 month", func() {
				So(sum.CycleIDs, ShouldResemble, []string{"2025-01", "2025-02", threeSixty})
				cycles, err := svc.ListCycles(ctx)
				So(err, ShouldBeNil)
				So(cycles, ShouldHaveLength, 3)
				So(cycles[0].Kind, ShouldEqual, model.CycleOneToOne)
				So(cycles[2].Kind, ShouldEqual, model.CycleThreeSixty)
			})

			Convey("And rerunning with the same start is a duplicate", func() {
				_, err := svc.GenerateNextCycle(ctx, &start)
				So(errors.Is(err, generator.ErrDuplicateCycle), ShouldBeTrue)
			})

			Convey("And the 360 month audits clean", func() {
				report, err := svc.AuditPairLinking(ctx, threeSixty)
				So(err, ShouldBeNil)
				So(report.Clean(), ShouldBeTrue)
				So(report.Pairs, ShouldBeGreaterThan, 0)
			})

			Convey("And a leadership manager sees manager and peer pairings", func() {
				pairs, err := svc.ResolvePairingsForParticipant(ctx, threeSixty, "m1")
				So(err, ShouldBeNil)
				So(pairs, ShouldHaveLength, 5)
				peers := 0
				for _, p := range pairs {
					So(p.Broken, ShouldBeFalse)
					if p.Relationship == model.RelationshipPeer {
						peers++
					}
				}
				So(peers, ShouldEqual, 2)
			})

			Convey("And an unknown cycle is reported", func() {
				_, err := svc.ResolvePairingsForParticipant(ctx, "2030-01", "m1")
				So(errors.Is(err, pairing.ErrCycleNotFound), ShouldBeTrue)
			})
		})

		Convey("When pairs are filled in and published", func() {
			submit("m1", "m1", mid)
			submit("r1", "r1", mid)
			submit("m2", "m2", mid)
			submit("r3", "r3", mid)
			submit("m1", "r1", star)
			submit("r1", "m1", mid)
			submit("m2", "r3", mid)
			submit("r3", "m2", mid)
			submit("m2", "m1", star)

			mr1 := model.ManagerPairID(threeSixty, "m1", "r1")
			mr3 := model.ManagerPairID(threeSixty, "m2", "r3")
			peer := model.PeerPairID(threeSixty, "m2", "m1")

			first, err := svc.PublishPair(ctx, mr1, "r1", "m1")
			So(err, ShouldBeNil)
			_, err = svc.PublishPair(ctx, mr1, "m1", "m1")
			So(err, ShouldBeNil)
			_, err = svc.PublishPair(ctx, mr3, "r3", "m2")
			So(err, ShouldBeNil)
			last, err := svc.PublishPair(ctx, peer, "m1", "m1")
			So(err, ShouldBeNil)

			Convey("Then sequences increase across pairs", func() {
				So(first.Sequence, ShouldEqual, 1)
				So(last.Sequence, ShouldEqual, 4)
				st, err := svc.PairState(ctx, peer, "m1")
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.StatePublished)
			})

			Convey("Then the index blends leadership and pillar means", func() {
				idx, err := svc.Index(ctx, threeSixty)
				So(err, ShouldBeNil)
				So(idx.LeadershipSubjects, ShouldEqual, 1)
				So(idx.Leadership, ShouldAlmostEqual, 9.0)
				So(idx.Pillars, ShouldHaveLength, 2)
				So(idx.Pillars[0].Pillar, ShouldEqual, "data")
				So(idx.Pillars[0].Score, ShouldAlmostEqual, 6.0)
				So(idx.Pillars[0].Blended, ShouldAlmostEqual, 7.8, 0.0001)
				So(idx.Pillars[1].Pillar, ShouldEqual, "platform")
				So(idx.Pillars[1].Blended, ShouldAlmostEqual, 10.2, 0.0001)
				So(idx.Overall, ShouldAlmostEqual, 9.0, 0.0001)
			})

			Convey("Then an ad-hoc publication continues the sequence outside the index", func() {
				rec, err := svc.PublishAdHoc(ctx, "r2", "m1", star)
				So(err, ShouldBeNil)
				So(rec.Sequence, ShouldEqual, 5)
				idx, err := svc.Index(ctx, threeSixty)
				So(err, ShouldBeNil)
				So(idx.Pillars[1].Subjects, ShouldEqual, 1)
			})

			Convey("Then published records are locked", func() {
				_, err := svc.SubmitEvaluation(ctx, model.EvaluationID(threeSixty, "m1", "r1"), "m1", mid, "")
				So(errors.Is(err, publish.ErrLocked), ShouldBeTrue)
			})

			Convey("Then published pairs refuse navigation and resolve as locked", func() {
				So(errors.Is(svc.CheckNavigable(ctx, mr1), publish.ErrLocked), ShouldBeTrue)
				pairs, err := svc.ResolvePairingsForParticipant(ctx, threeSixty, "r1")
				So(err, ShouldBeNil)
				So(pairs, ShouldHaveLength, 1)
				So(pairs[0].Locked, ShouldBeTrue)
			})
		})

		Convey("When a cycle is closed", func() {
			So(svc.CloseCycle(ctx, threeSixty), ShouldBeNil)

			Convey("Then submissions are refused", func() {
				_, err := svc.SubmitEvaluation(ctx, model.EvaluationID(threeSixty, "m1", "m1"), "m1", mid, "")
				So(errors.Is(err, publish.ErrCycleClosed), ShouldBeTrue)
			})

			Convey("Then closing an unknown cycle fails", func() {
				So(errors.Is(svc.CloseCycle(ctx, "1999-01"), pairing.ErrCycleNotFound), ShouldBeTrue)
			})
		})

		Convey("When computing a composite directly", func() {
			res, err := svc.ComputeComposite(mid)

			Convey("Then it is the core player cell", func() {
				So(err, ShouldBeNil)
				So(res.Composite, ShouldEqual, 6)
				So(res.Class.Label, ShouldEqual, "Core Player")
			})
		})

		Convey("When importing a participant with an unknown layer", func() {
			err := svc.ImportParticipants(ctx, []model.Participant{{ID: "x", Layer: "intern"}})

			Convey("Then the import is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
