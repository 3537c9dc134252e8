package publish_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/domain/generator"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/internal/domain/publish"
	"github.com/okian/cadence/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

const threeSixty = "2025-03"

var (
	mid  = model.Scores{Value: [3]int{1, 1, 1}, Growth: [3]int{1, 1, 1}}
	star = model.Scores{Value: [3]int{2, 2, 2}, Growth: [3]int{2, 2, 2}}
)

// setup seeds one manager with two reports and generates a run whose third
// month is a 360 month.
func setup(ctx context.Context) *repository.MemoryStore {
	store := repository.NewMemoryStore()
	for _, p := range []model.Participant{
		{ID: "m1", Name: "Mara", Layer: model.LayerLeadership, ReportIDs: []string{"r1", "r2"}},
		{ID: "r1", Name: "Ravi", Layer: model.LayerContributor, ManagerIDs: []string{"m1"}},
		{ID: "r2", Name: "Rosa", Layer: model.LayerContributor, ManagerIDs: []string{"m1"}},
	} {
		doc, err := repository.EncodeParticipant(p)
		So(err, ShouldBeNil)
		So(store.Set(ctx, repository.Participants, doc), ShouldBeNil)
	}
	start, err := model.ParsePeriod("2025-01")
	So(err, ShouldBeNil)
	_, err = generator.New(store).GenerateNextCycle(ctx, &start)
	So(err, ShouldBeNil)
	return store
}

func submit(ctx context.Context, g *publish.Gate, giver, receiver string, s model.Scores) {
	_, err := g.Submit(ctx, model.EvaluationID(threeSixty, giver, receiver), giver, s, "")
	So(err, ShouldBeNil)
}

// completePair fills in every record of the m1/r1 pair.
func completePair(ctx context.Context, g *publish.Gate) {
	submit(ctx, g, "m1", "m1", mid)
	submit(ctx, g, "r1", "r1", mid)
	submit(ctx, g, "m1", "r1", star)
	submit(ctx, g, "r1", "m1", mid)
}

func newGate(store *repository.MemoryStore) *publish.Gate {
	return publish.New(store, store, publish.WithClock(func() time.Time { return fixedNow }))
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	pairID := model.ManagerPairID(threeSixty, "m1", "r1")

	Convey("Given a generated 360 month", t, func() {
		store := setup(ctx)
		gate := newGate(store)

		Convey("When the pair id does not exist", func() {
			_, err := gate.Publish(ctx, "nope", "r1", "m1")

			Convey("Then publication is rejected as not found", func() {
				So(errors.Is(err, publish.ErrPairNotFound), ShouldBeTrue)
			})
		})

		Convey("When the pair has not been filled in", func() {
			_, err := gate.Publish(ctx, pairID, "r1", "m1")

			Convey("Then publication is rejected as incomplete", func() {
				So(errors.Is(err, publish.ErrNotComplete), ShouldBeTrue)
			})

			Convey("And the state is not started", func() {
				st, err := gate.State(ctx, pairID, "r1")
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.StateNotStarted)
			})
		})

		Convey("When only some records are filled in", func() {
			submit(ctx, gate, "m1", "r1", star)

			Convey("Then the state is partially complete and publish is rejected", func() {
				st, err := gate.State(ctx, pairID, "r1")
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.StatePartiallyComplete)
				_, err = gate.Publish(ctx, pairID, "r1", "m1")
				So(errors.Is(err, publish.ErrNotComplete), ShouldBeTrue)
			})
		})

		Convey("When the pair is complete", func() {
			completePair(ctx, gate)

			Convey("Then the state is all complete", func() {
				st, err := gate.State(ctx, pairID, "r1")
				So(err, ShouldBeNil)
				So(st, ShouldEqual, model.StateAllComplete)
			})

			Convey("Then a caller other than the publisher is refused", func() {
				_, err := gate.Publish(ctx, pairID, "r1", "r1")
				So(errors.Is(err, publish.ErrNotAuthorized), ShouldBeTrue)
			})

			Convey("Then a subject outside the pair is refused", func() {
				_, err := gate.Publish(ctx, pairID, "r2", "m1")
				So(errors.Is(err, publish.ErrSubjectNotInPair), ShouldBeTrue)
			})

			Convey("Then the manager publishes the report's outcome", func() {
				rec, err := gate.Publish(ctx, pairID, "r1", "m1")
				So(err, ShouldBeNil)
				So(rec.Key, ShouldEqual, model.PublishedKey(pairID, "r1"))
				So(rec.Sequence, ShouldEqual, 1)
				So(rec.CycleID, ShouldEqual, threeSixty)
				So(rec.Composite, ShouldEqual, 12)
				So(rec.Label, ShouldEqual, "Star")
				So(rec.PublishedAt, ShouldEqual, fixedNow)

				Convey("And the directional record is marked published", func() {
					doc, err := store.Get(ctx, repository.Evaluations, model.EvaluationID(threeSixty, "m1", "r1"))
					So(err, ShouldBeNil)
					So(doc.Fields[repository.FieldStatus], ShouldEqual, string(model.StatusPublished))
				})

				Convey("And a second attempt is rejected", func() {
					_, err := gate.Publish(ctx, pairID, "r1", "m1")
					So(errors.Is(err, publish.ErrAlreadyPublished), ShouldBeTrue)
					st, err := gate.State(ctx, pairID, "r1")
					So(err, ShouldBeNil)
					So(st, ShouldEqual, model.StatePublished)
				})

				Convey("And the other direction gets the next sequence", func() {
					other, err := gate.Publish(ctx, pairID, "m1", "m1")
					So(err, ShouldBeNil)
					So(other.Sequence, ShouldEqual, 2)
					So(other.Composite, ShouldEqual, 6)
				})

				Convey("And the pair's records can no longer be edited or opened", func() {
					So(errors.Is(gate.CheckNavigable(ctx, pairID), publish.ErrLocked), ShouldBeTrue)
					_, err := gate.Submit(ctx, model.EvaluationID(threeSixty, "r1", "m1"), "r1", star, "")
					So(errors.Is(err, publish.ErrLocked), ShouldBeTrue)
					_, err = gate.Submit(ctx, model.EvaluationID(threeSixty, "m1", "m1"), "m1", star, "")
					So(errors.Is(err, publish.ErrLocked), ShouldBeTrue)
				})

				Convey("And an untouched pair stays navigable", func() {
					So(gate.CheckNavigable(ctx, model.ManagerPairID(threeSixty, "m1", "r2")), ShouldBeNil)
				})
			})
		})

		Convey("When a pair is missing its counterpart record", func() {
			broken := model.ManagerPairID(threeSixty, "m1", "r2")
			So(store.Update(ctx, repository.Evaluations, model.EvaluationID(threeSixty, "r2", "m1"), repository.Patch{
				Fields: map[string]string{repository.FieldPair: "elsewhere"},
				Set:    map[string]any{"pairId": "elsewhere"},
			}), ShouldBeNil)
			_, err := gate.Publish(ctx, broken, "r2", "m1")

			Convey("Then publication is rejected as malformed", func() {
				So(errors.Is(err, publish.ErrMalformedPair), ShouldBeTrue)
			})
		})

		Convey("When required arguments are missing", func() {
			_, err := gate.Publish(ctx, pairID, "", "m1")

			Convey("Then the request is invalid", func() {
				So(errors.Is(err, publish.ErrInvalidRequest), ShouldBeTrue)
			})
		})
	})
}

func TestPublishExactlyOnce(t *testing.T) {
	ctx := context.Background()
	pairID := model.ManagerPairID(threeSixty, "m1", "r1")

	Convey("Given a complete pair", t, func() {
		store := setup(ctx)
		completePair(ctx, newGate(store))

		race := func(gates ...*publish.Gate) (ok, rejected int) {
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				errs []error
			)
			for _, g := range gates {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := g.Publish(ctx, pairID, "r1", "m1")
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}()
			}
			wg.Wait()
			for _, err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, publish.ErrAlreadyPublished):
					rejected++
				}
			}
			return ok, rejected
		}

		Convey("When one gate publishes twice concurrently", func() {
			g := newGate(store)
			ok, rejected := race(g, g)

			Convey("Then exactly one attempt succeeds", func() {
				So(ok, ShouldEqual, 1)
				So(rejected, ShouldEqual, 1)
				docs, err := store.Query(ctx, repository.Published, repository.Eq(repository.FieldPair, pairID))
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 1)
			})
		})

		Convey("When two independent gates share the store", func() {
			ok, rejected := race(newGate(store), newGate(store))

			Convey("Then the conditional write admits one", func() {
				So(ok, ShouldEqual, 1)
				So(rejected, ShouldEqual, 1)
				docs, err := store.List(ctx, repository.Published)
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 1)
			})
		})
	})
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	downID := model.EvaluationID(threeSixty, "m1", "r1")

	Convey("Given a generated 360 month", t, func() {
		store := setup(ctx)
		gate := newGate(store)

		Convey("When the giver submits scores", func() {
			ev, err := gate.Submit(ctx, downID, "m1", star, model.StatusCalibrated)

			Convey("Then composite and label are stored", func() {
				So(err, ShouldBeNil)
				So(*ev.Composite, ShouldEqual, 12)
				doc, err := store.Get(ctx, repository.Evaluations, downID)
				So(err, ShouldBeNil)
				stored, err := repository.Decode[model.Evaluation](doc)
				So(err, ShouldBeNil)
				So(stored.Status, ShouldEqual, model.StatusCalibrated)
				So(stored.Label, ShouldEqual, "Star")
				So(*stored.Scores, ShouldResemble, star)
				So(stored.PairID, ShouldEqual, model.ManagerPairID(threeSixty, "m1", "r1"))
				So(stored.UpdatedAt, ShouldEqual, fixedNow)
			})
		})

		Convey("When someone else submits", func() {
			_, err := gate.Submit(ctx, downID, "r1", star, "")

			Convey("Then it is refused", func() {
				So(errors.Is(err, publish.ErrNotAuthorized), ShouldBeTrue)
			})
		})

		Convey("When scores are out of range", func() {
			_, err := gate.Submit(ctx, downID, "m1", model.Scores{Value: [3]int{3, 0, 0}}, "")

			Convey("Then the scorer error is returned", func() {
				So(errors.Is(err, scoring.ErrScoreOutOfRange), ShouldBeTrue)
			})
		})

		Convey("When the status is not a submission status", func() {
			_, err := gate.Submit(ctx, downID, "m1", mid, model.StatusPublished)

			Convey("Then it is refused", func() {
				So(errors.Is(err, publish.ErrInvalidStatus), ShouldBeTrue)
			})
		})

		Convey("When the evaluation does not exist", func() {
			_, err := gate.Submit(ctx, "missing", "m1", mid, "")

			Convey("Then it is not found", func() {
				So(errors.Is(err, publish.ErrEvaluationNotFound), ShouldBeTrue)
			})
		})

		Convey("When the cycle is closed", func() {
			So(store.Update(ctx, repository.Cycles, threeSixty, repository.Patch{
				Fields: map[string]string{repository.FieldStatus: string(model.CycleClosed)},
				Set:    map[string]any{"status": model.CycleClosed},
			}), ShouldBeNil)
			_, err := gate.Submit(ctx, downID, "m1", mid, "")

			Convey("Then submissions are refused", func() {
				So(errors.Is(err, publish.ErrCycleClosed), ShouldBeTrue)
			})
		})
	})
}

func TestPublishAdHoc(t *testing.T) {
	ctx := context.Background()

	Convey("Given a gate with one cycle publication", t, func() {
		store := setup(ctx)
		gate := newGate(store)
		completePair(ctx, gate)
		_, err := gate.Publish(ctx, model.ManagerPairID(threeSixty, "m1", "r1"), "r1", "m1")
		So(err, ShouldBeNil)

		Convey("When an ad-hoc outcome is published", func() {
			rec, err := gate.PublishAdHoc(ctx, "r2", "m1", mid)

			Convey("Then it shares the sequence and carries an ad-hoc key", func() {
				So(err, ShouldBeNil)
				So(rec.Sequence, ShouldEqual, 2)
				So(rec.AdHoc, ShouldBeTrue)
				So(rec.Key, ShouldStartWith, "adhoc:")
				So(rec.Label, ShouldEqual, "Core Player")
				docs, err := store.Query(ctx, repository.Published, repository.Eq(repository.FieldSubject, "r2"))
				So(err, ShouldBeNil)
				So(docs, ShouldHaveLength, 1)
			})
		})

		Convey("When the subject is missing", func() {
			_, err := gate.PublishAdHoc(ctx, "", "m1", mid)

			Convey("Then the request is invalid", func() {
				So(errors.Is(err, publish.ErrInvalidRequest), ShouldBeTrue)
			})
		})
	})
}

func TestPublishSameLayerPair(t *testing.T) {
	ctx := context.Background()

	Convey("Given a leader who manages another leader", t, func() {
		store := repository.NewMemoryStore()
		for _, p := range []model.Participant{
			{ID: "l1", Layer: model.LayerLeadership, ReportIDs: []string{"l2"}},
			{ID: "l2", Layer: model.LayerLeadership},
		} {
			doc, err := repository.EncodeParticipant(p)
			So(err, ShouldBeNil)
			So(store.Set(ctx, repository.Participants, doc), ShouldBeNil)
		}
		start, err := model.ParsePeriod("2025-01")
		So(err, ShouldBeNil)
		_, err = generator.New(store).GenerateNextCycle(ctx, &start)
		So(err, ShouldBeNil)

		gate := newGate(store)
		submit(ctx, gate, "l1", "l1", mid)
		submit(ctx, gate, "l2", "l2", mid)
		submit(ctx, gate, "l1", "l2", star)
		submit(ctx, gate, "l2", "l1", mid)
		pairID := model.ManagerPairID(threeSixty, "l1", "l2")

		Convey("When the report tries to publish their own outcome", func() {
			_, err := gate.Publish(ctx, pairID, "l2", "l2")

			Convey("Then only the manager may publish", func() {
				So(errors.Is(err, publish.ErrNotAuthorized), ShouldBeTrue)
			})
		})

		Convey("When the manager publishes", func() {
			rec, err := gate.Publish(ctx, pairID, "l2", "l1")

			Convey("Then the outcome is published", func() {
				So(err, ShouldBeNil)
				So(rec.SubjectID, ShouldEqual, "l2")
				So(rec.PublisherID, ShouldEqual, "l1")
			})
		})
	})
}
