package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/okian/cadence/internal/adapters/repository"
	"github.com/okian/cadence/internal/adapters/repository/repositorytest"
	"github.com/okian/cadence/internal/adapters/repository/sqlite"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStoreContract(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T, limit int) repository.Backend {
		s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "cadence.db"), sqlite.WithBatchLimit(limit))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		return s
	})
}

func TestStoreReopen(t *testing.T) {
	Convey("Given a store file with data and counters", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "cadence.db")

		s, err := sqlite.Open(ctx, path)
		So(err, ShouldBeNil)
		So(s.Set(ctx, "cycles", repository.Document{
			ID:     "2025-03",
			Fields: map[string]string{"status": "active"},
			Body:   []byte(`{"id":"2025-03"}`),
		}), ShouldBeNil)
		_, err = s.Next(ctx, "published_records")
		So(err, ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		Convey("When it is reopened", func() {
			s, err := sqlite.Open(ctx, path)
			So(err, ShouldBeNil)
			Reset(func() { _ = s.Close() })

			Convey("Then migrations are not reapplied and state survives", func() {
				docs, err := s.Query(ctx, "cycles", repository.Eq("status", "active"))
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 1)
				v, err := s.Next(ctx, "published_records")
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 2)
			})
		})
	})
}

func TestOpenRequiresPath(t *testing.T) {
	Convey("Given an empty path", t, func() {
		_, err := sqlite.Open(context.Background(), " ")

		Convey("Then Open fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestInMemoryDatabase(t *testing.T) {
	Convey("Given an in-memory database", t, func() {
		ctx := context.Background()
		s, err := sqlite.Open(ctx, ":memory:")
		So(err, ShouldBeNil)
		Reset(func() { _ = s.Close() })

		Convey("Then writes are visible to later reads", func() {
			So(s.Set(ctx, "c", repository.Document{ID: "a", Body: []byte(`{}`)}), ShouldBeNil)
			_, err := s.Get(ctx, "c", "a")
			So(err, ShouldBeNil)
		})
	})
}
