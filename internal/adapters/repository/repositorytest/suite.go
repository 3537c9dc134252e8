// Package repositorytest holds a behavioural suite every repository.Backend
// implementation must pass.
package repositorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/cadence/internal/adapters/repository"
	. "github.com/smartystreets/goconvey/convey"
)

// Factory builds a fresh, empty backend with the given batch limit.
type Factory func(t *testing.T, batchLimit int) repository.Backend

func doc(id, status string, body string) repository.Document {
	return repository.Document{
		ID:     id,
		Fields: map[string]string{"status": status, "cycle": "2025-03"},
		Body:   []byte(body),
	}
}

// Run exercises the Backend contract.
func Run(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	Convey("Given an empty backend", t, func() {
		s := newBackend(t, 4)
		Reset(func() { _ = s.Close() })

		Convey("When reading a missing document", func() {
			_, err := s.Get(ctx, "evaluations", "nope")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When documents are set", func() {
			So(s.Set(ctx, "evaluations", doc("b", "pending", `{"id":"b"}`)), ShouldBeNil)
			So(s.Set(ctx, "evaluations", doc("a", "completed", `{"id":"a"}`)), ShouldBeNil)
			So(s.Set(ctx, "cycles", doc("a", "active", `{"id":"a"}`)), ShouldBeNil)

			Convey("Then Get returns the stored body and fields", func() {
				got, err := s.Get(ctx, "evaluations", "a")
				So(err, ShouldBeNil)
				So(string(got.Body), ShouldEqual, `{"id":"a"}`)
				So(got.Fields["status"], ShouldEqual, "completed")
			})

			Convey("Then List is ordered by id and scoped to the collection", func() {
				docs, err := s.List(ctx, "evaluations")
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 2)
				So(docs[0].ID, ShouldEqual, "a")
				So(docs[1].ID, ShouldEqual, "b")
			})

			Convey("Then Query filters on indexed fields", func() {
				docs, err := s.Query(ctx, "evaluations", repository.Eq("status", "pending"))
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 1)
				So(docs[0].ID, ShouldEqual, "b")

				docs, err = s.Query(ctx, "evaluations",
					repository.In("status", "pending", "completed"),
					repository.Eq("cycle", "2025-03"))
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 2)

				docs, err = s.Query(ctx, "evaluations", repository.Eq("missing", "x"))
				So(err, ShouldBeNil)
				So(docs, ShouldBeEmpty)
			})

			Convey("Then Set replaces indexed fields", func() {
				So(s.Set(ctx, "evaluations", repository.Document{
					ID: "b", Fields: map[string]string{"status": "published"}, Body: []byte(`{"id":"b"}`),
				}), ShouldBeNil)
				docs, err := s.Query(ctx, "evaluations", repository.Eq("status", "pending"))
				So(err, ShouldBeNil)
				So(docs, ShouldBeEmpty)
				docs, err = s.Query(ctx, "evaluations", repository.Eq("cycle", "2025-03"))
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 1)
			})

			Convey("Then Update patches fields and body keys", func() {
				err := s.Update(ctx, "evaluations", "b", repository.Patch{
					Fields: map[string]string{"status": "completed"},
					Set:    map[string]any{"status": "completed", "composite": 7},
				})
				So(err, ShouldBeNil)
				got, err := s.Get(ctx, "evaluations", "b")
				So(err, ShouldBeNil)
				So(got.Fields["status"], ShouldEqual, "completed")
				So(got.Fields["cycle"], ShouldEqual, "2025-03")
				So(string(got.Body), ShouldEqual, `{"composite":7,"id":"b","status":"completed"}`)
			})

			Convey("Then Update of a missing document fails", func() {
				err := s.Update(ctx, "evaluations", "zz", repository.Patch{Set: map[string]any{"x": 1}})
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When creating the same id twice", func() {
			first := s.Create(ctx, "published", doc("k", "x", `{"n":1}`))
			second := s.Create(ctx, "published", doc("k", "x", `{"n":2}`))

			Convey("Then only the first succeeds and the document is unchanged", func() {
				So(first, ShouldBeNil)
				So(errors.Is(second, repository.ErrAlreadyExists), ShouldBeTrue)
				got, err := s.Get(ctx, "published", "k")
				So(err, ShouldBeNil)
				So(string(got.Body), ShouldEqual, `{"n":1}`)
			})
		})

		Convey("When many goroutines create the same id", func() {
			const n = 16
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				wins    int
				rejects int
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := s.Create(ctx, "published", doc("race", "x", fmt.Sprintf(`{"n":%d}`, i)))
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						wins++
					} else if errors.Is(err, repository.ErrAlreadyExists) {
						rejects++
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(wins, ShouldEqual, 1)
				So(rejects, ShouldEqual, n-1)
			})
		})

		Convey("When committing a batch with appends", func() {
			err := s.Commit(ctx, []repository.Mutation{
				repository.SetMutation("evaluations", doc("self", "pending", `{"id":"self"}`)),
				repository.AppendUniqueMutation("evaluations", "self", "pairIds", "p1", "p2"),
				repository.AppendUniqueMutation("evaluations", "self", "pairIds", "p2", "p3"),
			})

			Convey("Then the set-union is applied in order", func() {
				So(err, ShouldBeNil)
				got, err := s.Get(ctx, "evaluations", "self")
				So(err, ShouldBeNil)
				So(string(got.Body), ShouldEqual, `{"id":"self","pairIds":["p1","p2","p3"]}`)
			})

			Convey("And appending again is idempotent", func() {
				So(s.Commit(ctx, []repository.Mutation{
					repository.AppendUniqueMutation("evaluations", "self", "pairIds", "p1"),
				}), ShouldBeNil)
				got, err := s.Get(ctx, "evaluations", "self")
				So(err, ShouldBeNil)
				So(string(got.Body), ShouldEqual, `{"id":"self","pairIds":["p1","p2","p3"]}`)
			})
		})

		Convey("When a batch contains a failing mutation", func() {
			err := s.Commit(ctx, []repository.Mutation{
				repository.SetMutation("evaluations", doc("x1", "pending", `{"id":"x1"}`)),
				repository.AppendUniqueMutation("evaluations", "ghost", "pairIds", "p1"),
			})

			Convey("Then nothing from the batch is written", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err := s.Get(ctx, "evaluations", "x1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a batch exceeds the limit", func() {
			muts := make([]repository.Mutation, 0, 5)
			for i := 0; i < 5; i++ {
				muts = append(muts, repository.SetMutation("evaluations", doc(fmt.Sprintf("d%d", i), "pending", `{}`)))
			}
			err := s.Commit(ctx, muts)

			Convey("Then it is rejected before any write", func() {
				So(s.BatchLimit(), ShouldEqual, 4)
				So(errors.Is(err, repository.ErrBatchTooLarge), ShouldBeTrue)
				docs, err := s.List(ctx, "evaluations")
				So(err, ShouldBeNil)
				So(docs, ShouldBeEmpty)
			})
		})

		Convey("When counters are advanced", func() {
			a1, err1 := s.Next(ctx, "published_records")
			a2, err2 := s.Next(ctx, "published_records")
			b1, err3 := s.Next(ctx, "other")

			Convey("Then each name counts independently from 1", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(a1, ShouldEqual, 1)
				So(a2, ShouldEqual, 2)
				So(b1, ShouldEqual, 1)
			})
		})

		Convey("When counters are advanced concurrently", func() {
			const n = 20
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				seen = map[int64]bool{}
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					v, err := s.Next(ctx, "seq")
					if err != nil {
						return
					}
					mu.Lock()
					seen[v] = true
					mu.Unlock()
				}()
			}
			wg.Wait()

			Convey("Then every value is distinct", func() {
				So(len(seen), ShouldEqual, n)
				So(seen[1], ShouldBeTrue)
				So(seen[n], ShouldBeTrue)
			})
		})
	})
}
